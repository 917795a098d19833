package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/notification-orders/internal/domain"
	"github.com/kursadbilgin/notification-orders/internal/observability"
	"github.com/kursadbilgin/notification-orders/internal/repository"
	"go.uber.org/zap"
)

// ManifestService serves the delivery manifest read model.
type ManifestService struct {
	shipments repository.ShipmentRepository
	logger    *zap.Logger
	metrics   *observability.Metrics
}

func NewManifestService(shipments repository.ShipmentRepository, logger *zap.Logger) (*ManifestService, error) {
	if shipments == nil {
		return nil, fmt.Errorf("shipment repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ManifestService{
		shipments: shipments,
		logger:    logger,
	}, nil
}

func (s *ManifestService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// GetManifest returns the manifest for one shipment owned by creator. A
// shipment owned by someone else is indistinguishable from a missing one.
func (s *ManifestService) GetManifest(ctx context.Context, shipmentID, creator string) (*domain.DeliveryManifest, error) {
	shipmentID = strings.TrimSpace(shipmentID)
	creator = strings.TrimSpace(creator)
	if shipmentID == "" {
		return nil, fmt.Errorf("%w: shipment id is required", domain.ErrValidation)
	}
	if creator == "" {
		return nil, fmt.Errorf("%w: creator is required", domain.ErrValidation)
	}

	var manifest *domain.DeliveryManifest
	err := observability.Observe(s.metrics, "manifest", "get", func() error {
		var err error
		manifest, err = s.shipments.GetManifest(ctx, shipmentID, creator)
		return err
	})
	if err != nil {
		return nil, err
	}
	return manifest, nil
}
