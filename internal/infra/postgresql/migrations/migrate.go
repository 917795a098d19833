package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/notification-orders/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_order_chains",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.OrderChainModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.OrderChainModel{})
			},
		},
		{
			ID: "000002_create_orders",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.OrderModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_orders_chain_id ON orders (chain_id)`,
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_alternate_creator ON orders (alternate_id, creator)`,
					`CREATE INDEX IF NOT EXISTS idx_orders_due ON orders (requested_send_time) WHERE processing_status = 'REGISTERED'`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.OrderModel{})
			},
		},
		{
			ID: "000003_create_order_contents",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&repository.EmailContentModel{},
					&repository.SmsContentModel{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				if err := tx.Migrator().DropTable(&repository.EmailContentModel{}); err != nil {
					return err
				}
				return tx.Migrator().DropTable(&repository.SmsContentModel{})
			},
		},
		{
			ID: "000004_create_notifications",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.NotificationModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_notifications_order_id ON notifications (order_id)`,
					`CREATE INDEX IF NOT EXISTS idx_notifications_ready ON notifications (channel, sending_time_policy, created_at) WHERE result = 'New'`,
					`CREATE INDEX IF NOT EXISTS idx_notifications_open ON notifications (order_id) WHERE result IN ('New', 'Sending', 'Accepted')`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.NotificationModel{})
			},
		},
		{
			ID: "000005_create_status_feed",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&repository.FeedSequenceModel{},
					&repository.FeedEntryModel{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				if err := tx.Migrator().DropTable(&repository.FeedEntryModel{}); err != nil {
					return err
				}
				return tx.Migrator().DropTable(&repository.FeedSequenceModel{})
			},
		},
		{
			ID: "000006_create_dead_delivery_reports",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.DeadLetterModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_dead_reports_notification ON dead_delivery_reports (channel, notification_id) WHERE notification_id IS NOT NULL AND resolved = false`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.DeadLetterModel{})
			},
		},
	})

	return m.Migrate()
}
