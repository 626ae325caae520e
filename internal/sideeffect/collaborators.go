package sideeffect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/okonomi/yoyaku-go/internal/domain"
)

// The payment and notification systems are external collaborators reached
// over plain webhooks. This core only needs fire-and-acknowledge semantics;
// retries live in the dispatcher.

type WebhookRefunder struct {
	url    string
	client *http.Client
}

func NewWebhookRefunder(url string) *WebhookRefunder {
	return &WebhookRefunder{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type refundRequest struct {
	ReservationID string `json:"reservation_id"`
	ResourceType  string `json:"resource_type"`
}

func (w *WebhookRefunder) Refund(ctx context.Context, reservationID uuid.UUID, resourceType domain.ResourceType) error {
	const op = "sideeffect.WebhookRefunder.Refund"

	// no collaborator configured
	if w.url == "" {
		return nil
	}

	return postJSON(ctx, w.client, op, w.url, refundRequest{
		ReservationID: reservationID.String(),
		ResourceType:  string(resourceType),
	})
}

type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type notifyRequest struct {
	CustomerID int64          `json:"customer_id"`
	Kind       string         `json:"kind"`
	Payload    map[string]any `json:"payload,omitempty"`
}

func (w *WebhookNotifier) Notify(ctx context.Context, customerID int64, kind domain.NotificationKind, payload map[string]any) error {
	const op = "sideeffect.WebhookNotifier.Notify"

	if w.url == "" {
		return nil
	}

	return postJSON(ctx, w.client, op, w.url, notifyRequest{
		CustomerID: customerID,
		Kind:       string(kind),
		Payload:    payload,
	})
}

func postJSON(ctx context.Context, client *http.Client, op, url string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	return nil
}
