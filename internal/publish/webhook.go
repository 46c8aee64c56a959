package publish

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/clipforge/clipforge-render/internal/logging"
)

// SignatureHeader carries the HMAC-SHA256 hex digest of the raw body
// when a shared secret is configured.
const SignatureHeader = "X-Callback-Signature"

// CallbackPayload is the completion notification body.
type CallbackPayload struct {
	JobID       string `json:"jobId"`
	Status      string `json:"status"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	Error       string `json:"error,omitempty"`
}

// WebhookNotifier posts completion callbacks. Delivery is best-effort
// by contract: failures are logged and swallowed, never retried, and
// never affect the job outcome.
type WebhookNotifier struct {
	client *http.Client
	secret string
	logger *slog.Logger
}

func NewWebhookNotifier(secret string, logger *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		client: &http.Client{Timeout: 15 * time.Second},
		secret: secret,
		logger: logger,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, callbackURL string, p CallbackPayload) {
	if callbackURL == "" {
		return
	}

	body, err := json.Marshal(p)
	if err != nil {
		n.warn("marshal callback payload", callbackURL, p.JobID, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		n.warn("create callback request", callbackURL, p.JobID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.warn("deliver callback", callbackURL, p.JobID, err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if n.logger != nil {
			n.logger.Warn("callback rejected",
				"url", logging.SanitizeURL(callbackURL),
				"jobId", p.JobID,
				"status", resp.StatusCode,
			)
		}
		return
	}
	if n.logger != nil {
		n.logger.Info("callback delivered", "url", logging.SanitizeURL(callbackURL), "jobId", p.JobID)
	}
}

func (n *WebhookNotifier) warn(msg, callbackURL, jobID string, err error) {
	if n.logger != nil {
		n.logger.Warn(msg, "url", logging.SanitizeURL(callbackURL), "jobId", jobID, "error", err)
	}
}

// Sign computes the hex HMAC-SHA256 digest a receiver should verify
// against the raw request body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
