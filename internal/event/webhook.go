package event

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	domainevent "github.com/utafrali/commercecore/internal/domain/event"
	"github.com/utafrali/commercecore/pkg/httpclient"
)

// WebhookPoster is the part of httpclient.CircuitBreakerClient the webhook
// publisher needs.
type WebhookPoster interface {
	Post(ctx context.Context, url string, contentType string, body []byte) (*http.Response, error)
}

// Webhook POSTs every event as JSON to a fixed URL. Any 2xx response is a
// delivery; anything else is returned as an httpclient.ResponseError.
type Webhook struct {
	client WebhookPoster
	url    string
}

// NewWebhook creates a webhook publisher.
func NewWebhook(client WebhookPoster, url string) *Webhook {
	return &Webhook{client: client, url: url}
}

func (p *Webhook) Publish(ctx context.Context, e domainevent.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.Type(), err)
	}

	resp, err := p.client.Post(ctx, p.url, "application/json", body)
	if err == nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		err = httpclient.ParseResponseError(resp, "webhook")
	} else if err == nil {
		_ = resp.Body.Close()
	}
	observe("webhook", e.Type(), err)
	if err != nil {
		return fmt.Errorf("deliver %s to webhook: %w", e.Type(), err)
	}
	return nil
}
