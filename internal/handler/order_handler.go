package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notification-orders/internal/domain"
	"github.com/kursadbilgin/notification-orders/internal/transport"
)

const (
	defaultFeedLimit = 50
	maxFeedLimit     = 500
)

type OrderRegistrar interface {
	Register(ctx context.Context, req *domain.OrderChainRequest) (*domain.OrderChainReceipt, error)
}

type ManifestReader interface {
	GetManifest(ctx context.Context, shipmentID, creator string) (*domain.DeliveryManifest, error)
}

type FeedReader interface {
	GetFeed(ctx context.Context, creator string, sinceSeq int64, limit int) ([]domain.StatusFeedEntry, error)
}

type OrderHandler struct {
	registrar OrderRegistrar
	manifests ManifestReader
	feed      FeedReader
}

func NewOrderHandler(registrar OrderRegistrar, manifests ManifestReader, feed FeedReader) (*OrderHandler, error) {
	if registrar == nil {
		return nil, fmt.Errorf("registrar is required")
	}
	if manifests == nil {
		return nil, fmt.Errorf("manifest reader is required")
	}
	if feed == nil {
		return nil, fmt.Errorf("feed reader is required")
	}
	return &OrderHandler{
		registrar: registrar,
		manifests: manifests,
		feed:      feed,
	}, nil
}

func RegisterOrderRoutes(router fiber.Router, registrar OrderRegistrar, manifests ManifestReader, feed FeedReader) error {
	h, err := NewOrderHandler(registrar, manifests, feed)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/orders", h.RegisterChain)
	v1.Get("/shipments/:shipmentId/manifest", h.GetManifest)
	v1.Get("/feed", h.GetFeed)

	return nil
}

type emailContentRequest struct {
	FromAddress string `json:"fromAddress"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	ContentType string `json:"contentType"`
}

type smsContentRequest struct {
	Sender string `json:"sender"`
	Body   string `json:"body"`
}

type reminderRequest struct {
	SendersReference  *string              `json:"sendersReference,omitempty"`
	DelayDays         *int                 `json:"delayDays,omitempty"`
	RequestedSendTime *time.Time           `json:"requestedSendTime,omitempty"`
	Channel           string               `json:"channel"`
	Recipients        []string             `json:"recipients"`
	EmailContent      *emailContentRequest `json:"emailContent,omitempty"`
	SmsContent        *smsContentRequest   `json:"smsContent,omitempty"`
	SendingTimePolicy string               `json:"sendingTimePolicy,omitempty"`
}

type registerChainRequest struct {
	Creator           string               `json:"creator"`
	IdempotencyID     string               `json:"idempotencyId"`
	SendersReference  *string              `json:"sendersReference,omitempty"`
	RequestedSendTime time.Time            `json:"requestedSendTime"`
	Channel           string               `json:"channel"`
	Recipients        []string             `json:"recipients"`
	EmailContent      *emailContentRequest `json:"emailContent,omitempty"`
	SmsContent        *smsContentRequest   `json:"smsContent,omitempty"`
	SendingTimePolicy string               `json:"sendingTimePolicy,omitempty"`
	Reminders         []reminderRequest    `json:"reminders,omitempty"`
}

type shipmentReceiptResponse struct {
	ShipmentID       string  `json:"shipmentId"`
	SendersReference *string `json:"sendersReference,omitempty"`
}

type chainReceiptResponse struct {
	OrderChainID string                    `json:"orderChainId"`
	Shipment     shipmentReceiptResponse   `json:"shipment"`
	Reminders    []shipmentReceiptResponse `json:"reminders,omitempty"`
}

type recipientDeliveryResponse struct {
	Destination string    `json:"destination"`
	Status      string    `json:"status"`
	LastUpdate  time.Time `json:"lastUpdate"`
}

type manifestResponse struct {
	ShipmentID       string                      `json:"shipmentId"`
	SendersReference string                      `json:"sendersReference"`
	Type             string                      `json:"type"`
	Status           string                      `json:"status"`
	LastUpdate       time.Time                   `json:"lastUpdate"`
	Recipients       []recipientDeliveryResponse `json:"recipients"`
}

type feedEntryResponse struct {
	SequenceNumber int64                      `json:"sequenceNumber"`
	OrderStatus    domain.OrderStatusSnapshot `json:"orderStatus"`
	Created        time.Time                  `json:"created"`
}

func (h *OrderHandler) RegisterChain(c *fiber.Ctx) error {
	var req registerChainRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	chain, err := requestToChain(&req)
	if err != nil {
		return transport.ToHTTPError(err)
	}

	receipt, err := h.registrar.Register(c.Context(), chain)
	if err != nil {
		return transport.ToHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toChainReceiptResponse(receipt))
}

func (h *OrderHandler) GetManifest(c *fiber.Ctx) error {
	shipmentID := strings.TrimSpace(c.Params("shipmentId"))
	creator := strings.TrimSpace(c.Query("creator"))

	manifest, err := h.manifests.GetManifest(c.Context(), shipmentID, creator)
	if err != nil {
		return transport.ToHTTPError(err)
	}

	recipients := make([]recipientDeliveryResponse, 0, len(manifest.Recipients))
	for _, r := range manifest.Recipients {
		recipients = append(recipients, recipientDeliveryResponse{
			Destination: r.Destination,
			Status:      string(r.Status),
			LastUpdate:  r.LastUpdate,
		})
	}

	return c.Status(fiber.StatusOK).JSON(manifestResponse{
		ShipmentID:       manifest.ShipmentID,
		SendersReference: manifest.SendersReference,
		Type:             manifest.Type,
		Status:           string(manifest.Status),
		LastUpdate:       manifest.LastUpdate,
		Recipients:       recipients,
	})
}

func (h *OrderHandler) GetFeed(c *fiber.Ctx) error {
	creator := strings.TrimSpace(c.Query("creator"))
	sinceSeq := int64(c.QueryInt("seq", 0))
	limit := c.QueryInt("limit", defaultFeedLimit)
	if limit < 1 || limit > maxFeedLimit {
		return transport.ToHTTPError(fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, maxFeedLimit))
	}

	entries, err := h.feed.GetFeed(c.Context(), creator, sinceSeq, limit)
	if err != nil {
		return transport.ToHTTPError(err)
	}

	responses := make([]feedEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, feedEntryResponse{
			SequenceNumber: entry.SequenceNumber,
			OrderStatus:    entry.OrderStatus,
			Created:        entry.Created,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": responses,
	})
}

func requestToChain(req *registerChainRequest) (*domain.OrderChainRequest, error) {
	channel, err := domain.ParseChannelFromString(req.Channel)
	if err != nil {
		return nil, err
	}

	chain := &domain.OrderChainRequest{
		Creator:           strings.TrimSpace(req.Creator),
		IdempotencyID:     strings.TrimSpace(req.IdempotencyID),
		SendersReference:  req.SendersReference,
		RequestedSendTime: req.RequestedSendTime,
		Channel:           channel,
		Recipients:        req.Recipients,
		EmailContent:      toEmailContent(req.EmailContent),
		SmsContent:        toSmsContent(req.SmsContent),
	}
	if chain.SendingTimePolicy, err = parsePolicy(req.SendingTimePolicy); err != nil {
		return nil, err
	}

	for i := range req.Reminders {
		reminder, err := requestToReminder(&req.Reminders[i])
		if err != nil {
			return nil, fmt.Errorf("reminder %d: %w", i, err)
		}
		chain.Reminders = append(chain.Reminders, *reminder)
	}

	return chain, nil
}

func requestToReminder(req *reminderRequest) (*domain.Reminder, error) {
	channel, err := domain.ParseChannelFromString(req.Channel)
	if err != nil {
		return nil, err
	}

	reminder := &domain.Reminder{
		SendersReference:  req.SendersReference,
		DelayDays:         req.DelayDays,
		RequestedSendTime: req.RequestedSendTime,
		Channel:           channel,
		Recipients:        req.Recipients,
		EmailContent:      toEmailContent(req.EmailContent),
		SmsContent:        toSmsContent(req.SmsContent),
	}
	if reminder.SendingTimePolicy, err = parsePolicy(req.SendingTimePolicy); err != nil {
		return nil, err
	}
	return reminder, nil
}

func parsePolicy(raw string) (domain.SendingTimePolicy, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	if trimmed == "" {
		return domain.SendingPolicyAnytime, nil
	}
	policy := domain.SendingTimePolicy(trimmed)
	if !policy.IsValid() {
		return "", fmt.Errorf("%w: invalid sending time policy %q", domain.ErrValidation, raw)
	}
	return policy, nil
}

func toEmailContent(req *emailContentRequest) *domain.EmailContent {
	if req == nil {
		return nil
	}
	return &domain.EmailContent{
		FromAddress: req.FromAddress,
		Subject:     req.Subject,
		Body:        req.Body,
		ContentType: req.ContentType,
	}
}

func toSmsContent(req *smsContentRequest) *domain.SmsContent {
	if req == nil {
		return nil
	}
	return &domain.SmsContent{
		Sender: req.Sender,
		Body:   req.Body,
	}
}

func toChainReceiptResponse(receipt *domain.OrderChainReceipt) chainReceiptResponse {
	if receipt == nil {
		return chainReceiptResponse{}
	}

	resp := chainReceiptResponse{
		OrderChainID: receipt.OrderChainID,
		Shipment: shipmentReceiptResponse{
			ShipmentID:       receipt.Shipment.ShipmentID,
			SendersReference: receipt.Shipment.SendersReference,
		},
	}
	for _, reminder := range receipt.Reminders {
		resp.Reminders = append(resp.Reminders, shipmentReceiptResponse{
			ShipmentID:       reminder.ShipmentID,
			SendersReference: reminder.SendersReference,
		})
	}
	return resp
}
