package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"

	"github.com/toftmakemore/makemoreV2/render"
)

// Uploader is the durable storage the rendered assets are re-hosted into.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
	PublicURL(key string) string
}

// AssetWorker performs one render against the external service and
// immediately re-hosts the ephemeral result into durable storage. It is the
// Renderer behind the rate-limited queue.
type AssetWorker struct {
	apiKey     string
	httpClient *http.Client
	uploader   Uploader
}

func NewAssetWorker(apiKey string, client *http.Client, uploader Uploader) *AssetWorker {
	return &AssetWorker{
		apiKey:     apiKey,
		httpClient: client,
		uploader:   uploader,
	}
}

// Render fetches the signed render link and stores the image under a
// content-hash key. The ephemeral URL is never persisted.
func (w *AssetWorker) Render(ctx context.Context, req render.Request) (string, error) {
	link := render.SignedRenderLink(w.apiKey, req)

	httpReq, err := http.NewRequestWithContext(ctx, "GET", link, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "image/*,*/*")

	resp, err := w.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("render fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("render status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 50*1024*1024))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	hash := sha256.Sum256(data)
	contentHash := hex.EncodeToString(hash[:])
	key := fmt.Sprintf("renders/%s/%s/%s.jpg", req.TenantID, contentHash[:2], contentHash)

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	if w.uploader != nil {
		if err := w.uploader.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
			return "", fmt.Errorf("upload: %w", err)
		}
		return w.uploader.PublicURL(key), nil
	}

	// No durable store configured; hand back the ephemeral link.
	return link, nil
}

// NoOpUploader skips the actual upload, for tests and local runs.
type NoOpUploader struct{}

func (u *NoOpUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	io.Copy(io.Discard, data)
	return nil
}

func (u *NoOpUploader) PublicURL(key string) string {
	return "noop://" + key
}

func NewNoOpUploader() *NoOpUploader {
	return &NoOpUploader{}
}
