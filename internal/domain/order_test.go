package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseChannelFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseChannelFromString(" sms ")
	if err != nil {
		t.Fatalf("ParseChannelFromString() unexpected error = %v", err)
	}
	if got != ChannelSMS {
		t.Fatalf("ParseChannelFromString() = %s, want %s", got, ChannelSMS)
	}

	_, err = ParseChannelFromString("fax")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseChannelFromString() error = %v, want ErrValidation", err)
	}
}

func TestSendingTimePolicyPermitsAt(t *testing.T) {
	t.Parallel()

	day := func(hour int) time.Time {
		return time.Date(2026, time.March, 10, hour, 30, 0, 0, time.Local)
	}

	tests := []struct {
		name   string
		policy SendingTimePolicy
		at     time.Time
		want   bool
	}{
		{name: "anytime at night", policy: SendingPolicyAnytime, at: day(3), want: true},
		{name: "anytime during day", policy: SendingPolicyAnytime, at: day(12), want: true},
		{name: "daytime at 03:00", policy: SendingPolicyDaytime, at: day(3), want: false},
		{name: "daytime at 08:59", policy: SendingPolicyDaytime, at: time.Date(2026, time.March, 10, 8, 59, 0, 0, time.Local), want: false},
		{name: "daytime at 09:00", policy: SendingPolicyDaytime, at: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.Local), want: true},
		{name: "daytime at noon", policy: SendingPolicyDaytime, at: day(12), want: true},
		{name: "daytime at 16:59", policy: SendingPolicyDaytime, at: time.Date(2026, time.March, 10, 16, 59, 0, 0, time.Local), want: true},
		{name: "daytime at 17:00", policy: SendingPolicyDaytime, at: time.Date(2026, time.March, 10, 17, 0, 0, 0, time.Local), want: false},
		{name: "empty policy behaves as anytime", policy: "", at: day(3), want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.policy.PermitsAt(tt.at); got != tt.want {
				t.Fatalf("PermitsAt(%s) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestNotificationOrderValidate(t *testing.T) {
	t.Parallel()

	base := NotificationOrder{
		Creator:    "ttd",
		Channel:    ChannelEmail,
		Recipients: []string{"user@example.com"},
		EmailContent: &EmailContent{
			FromAddress: "noreply@example.com",
			Subject:     "subject",
			Body:        "body",
			ContentType: "text/plain",
		},
	}

	tests := []struct {
		name    string
		mutate  func(*NotificationOrder)
		wantErr bool
	}{
		{name: "valid email order", mutate: func(o *NotificationOrder) {}},
		{
			name: "valid sms order",
			mutate: func(o *NotificationOrder) {
				o.Channel = ChannelSMS
				o.EmailContent = nil
				o.SmsContent = &SmsContent{Sender: "Org", Body: "hi"}
				o.SendingTimePolicy = SendingPolicyDaytime
			},
		},
		{
			name:    "missing creator",
			mutate:  func(o *NotificationOrder) { o.Creator = " " },
			wantErr: true,
		},
		{
			name:    "invalid channel",
			mutate:  func(o *NotificationOrder) { o.Channel = "PIGEON" },
			wantErr: true,
		},
		{
			name:    "no recipients",
			mutate:  func(o *NotificationOrder) { o.Recipients = nil },
			wantErr: true,
		},
		{
			name:    "email order without content",
			mutate:  func(o *NotificationOrder) { o.EmailContent = nil },
			wantErr: true,
		},
		{
			name: "sms order without policy",
			mutate: func(o *NotificationOrder) {
				o.Channel = ChannelSMS
				o.EmailContent = nil
				o.SmsContent = &SmsContent{Sender: "Org", Body: "hi"}
				o.SendingTimePolicy = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			order := base
			tt.mutate(&order)

			err := order.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestReminderValidate(t *testing.T) {
	t.Parallel()

	delay := 2
	at := time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC)

	valid := Reminder{
		DelayDays:  &delay,
		Channel:    ChannelSMS,
		Recipients: []string{"+4799999999"},
		SmsContent: &SmsContent{Sender: "Org", Body: "reminder"},

		SendingTimePolicy: SendingPolicyDaytime,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}

	neither := valid
	neither.DelayDays = nil
	if err := neither.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() without schedule error = %v, want ErrValidation", err)
	}

	both := valid
	both.RequestedSendTime = &at
	if err := both.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() with both schedules error = %v, want ErrValidation", err)
	}

	zeroDelay := valid
	zero := 0
	zeroDelay.DelayDays = &zero
	if err := zeroDelay.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() with zero delay error = %v, want ErrValidation", err)
	}
}

func TestReminderSendTimeFrom(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC)

	delay := 2
	relative := Reminder{DelayDays: &delay}
	if got := relative.SendTimeFrom(base); !got.Equal(base.Add(48 * time.Hour)) {
		t.Fatalf("SendTimeFrom() = %s, want %s", got, base.Add(48*time.Hour))
	}

	at := time.Date(2026, time.June, 6, 8, 0, 0, 0, time.UTC)
	absolute := Reminder{RequestedSendTime: &at}
	if got := absolute.SendTimeFrom(base); !got.Equal(at) {
		t.Fatalf("SendTimeFrom() = %s, want %s", got, at)
	}
}

func TestOrderChainRequestValidate(t *testing.T) {
	t.Parallel()

	delay := 5
	chain := OrderChainRequest{
		Creator:           "ttd",
		IdempotencyID:     "idem-1",
		RequestedSendTime: time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC),
		Channel:           ChannelEmail,
		Recipients:        []string{"user@example.com"},
		EmailContent: &EmailContent{
			FromAddress: "noreply@example.com",
			Subject:     "subject",
			Body:        "body",
			ContentType: "text/plain",
		},
		Reminders: []Reminder{{
			DelayDays:         &delay,
			Channel:           ChannelSMS,
			Recipients:        []string{"+4799999999"},
			SmsContent:        &SmsContent{Sender: "Org", Body: "reminder"},
			SendingTimePolicy: SendingPolicyDaytime,
		}},
	}
	if err := chain.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}

	noIdem := chain
	noIdem.IdempotencyID = ""
	if err := noIdem.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() without idempotency id error = %v, want ErrValidation", err)
	}

	badReminder := chain
	badReminder.Reminders = []Reminder{{Channel: ChannelSMS}}
	if err := badReminder.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() with invalid reminder error = %v, want ErrValidation", err)
	}
}

func TestSendResultIsTerminal(t *testing.T) {
	t.Parallel()

	nonTerminal := []SendResult{ResultNew, ResultSending, ResultAccepted, ""}
	for _, r := range nonTerminal {
		if r.IsTerminal() {
			t.Fatalf("%q should not be terminal", r)
		}
	}

	terminal := []SendResult{
		ResultSucceeded, ResultDelivered, ResultFailed,
		ResultFailedBounced, ResultFailedExpired, ResultFailedRejected,
	}
	for _, r := range terminal {
		if !r.IsTerminal() {
			t.Fatalf("%q should be terminal", r)
		}
	}
}
