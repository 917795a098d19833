package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notification-orders/internal/domain"
	"github.com/kursadbilgin/notification-orders/internal/transport"
)

type DeadLetterReader interface {
	Get(ctx context.Context, id string) (*domain.DeadDeliveryReport, error)
	Resolve(ctx context.Context, id string, resolved bool) error
}

type DeadLetterHandler struct {
	service DeadLetterReader
}

func NewDeadLetterHandler(service DeadLetterReader) (*DeadLetterHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("dead letter service is required")
	}
	return &DeadLetterHandler{service: service}, nil
}

func RegisterDeadLetterRoutes(router fiber.Router, service DeadLetterReader) error {
	h, err := NewDeadLetterHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/deadletters/:id", h.GetReport)
	v1.Put("/deadletters/:id/resolved", h.SetResolved)

	return nil
}

type deadLetterResponse struct {
	ID             string          `json:"id"`
	NotificationID *string         `json:"notificationId,omitempty"`
	Channel        string          `json:"channel"`
	AttemptCount   int             `json:"attemptCount"`
	DeliveryReport json.RawMessage `json:"deliveryReport"`
	Resolved       bool            `json:"resolved"`
	FirstSeen      time.Time       `json:"firstSeen"`
	LastAttempt    time.Time       `json:"lastAttempt"`
	Reason         *string         `json:"reason,omitempty"`
	Message        *string         `json:"message,omitempty"`
}

type setResolvedRequest struct {
	Resolved bool `json:"resolved"`
}

func (h *DeadLetterHandler) GetReport(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	report, err := h.service.Get(c.Context(), id)
	if err != nil {
		return transport.ToHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(deadLetterResponse{
		ID:             report.ID,
		NotificationID: report.NotificationID,
		Channel:        report.Channel.String(),
		AttemptCount:   report.AttemptCount,
		DeliveryReport: report.DeliveryReport,
		Resolved:       report.Resolved,
		FirstSeen:      report.FirstSeen,
		LastAttempt:    report.LastAttempt,
		Reason:         report.Reason,
		Message:        report.Message,
	})
}

func (h *DeadLetterHandler) SetResolved(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))

	var req setResolvedRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.Resolve(c.Context(), id, req.Resolved); err != nil {
		return transport.ToHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"reportId": id,
		"resolved": req.Resolved,
	})
}
