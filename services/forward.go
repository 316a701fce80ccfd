package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/toftmakemore/makemoreV2/models"
)

// Forwarder pushes persisted posts to the downstream publishing endpoint.
// Delivery is best effort: the post is already persisted locally, so a
// failed forward is logged by the caller and never retried here.
type Forwarder struct {
	url    string
	client *http.Client
}

func NewForwarder(url string, client *http.Client) *Forwarder {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Forwarder{url: url, client: client}
}

type forwardPayload struct {
	Post      *models.PostUnit `json:"post"`
	DealerID  string           `json:"dealerId"`
	PageID    string           `json:"pageId"`
	PageToken string           `json:"pageToken"`
	SentAt    time.Time        `json:"sentAt"`
}

// Send posts one unit to the configured endpoint. A nil receiver or empty
// URL is a no-op so the daemon runs without a publisher attached.
func (f *Forwarder) Send(ctx context.Context, tenant *models.Tenant, post *models.PostUnit) error {
	if f == nil || f.url == "" {
		return nil
	}

	body, err := json.Marshal(forwardPayload{
		Post:      post,
		DealerID:  tenant.DealerID,
		PageID:    tenant.FacebookPageID,
		PageToken: tenant.PageToken,
		SentAt:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to %s: %w", f.url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}
