package publish

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"
)

const (
	uploadExpiry   = 15 * time.Minute
	unsignedPayload = "UNSIGNED-PAYLOAD"
)

// UploadError carries the storage response for a failed write.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed with status %d: %s", e.StatusCode, e.Body)
}

// S3Config points at any S3-compatible object store (MinIO, R2, B2,
// AWS itself). Only path-style addressing is used.
type S3Config struct {
	Endpoint     string
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	PublicRead   bool
	SignedURLTTL time.Duration
}

// S3Publisher uploads artifacts with presigned PUT requests and hands
// out presigned GET URLs for download. Requests are signed with the
// V4 query scheme, so no vendor SDK is involved.
type S3Publisher struct {
	cfg        S3Config
	httpClient *http.Client
	logger     *slog.Logger
}

func NewS3Publisher(cfg S3Config, logger *slog.Logger) (*S3Publisher, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("storage endpoint and bucket are required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("storage credentials are required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = 7 * 24 * time.Hour
	}
	cfg.Endpoint = strings.TrimSuffix(cfg.Endpoint, "/")
	return &S3Publisher{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     logger,
	}, nil
}

// Publish uploads the file under key and returns the download URL.
func (p *S3Publisher) Publish(ctx context.Context, key, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat artifact: %w", err)
	}

	putURL, err := p.presign(http.MethodPut, key, uploadExpiry)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, putURL, f)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.ContentLength = fi.Size()
	req.Header.Set("Content-Type", contentTypeFor(key))

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UploadError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if p.logger != nil {
		p.logger.Info("uploaded artifact",
			"key", key,
			"bytes", fi.Size(),
			"elapsed", time.Since(start).Round(time.Millisecond).String(),
		)
	}

	if p.cfg.PublicRead {
		return p.objectURL(key), nil
	}
	return p.presign(http.MethodGet, key, p.cfg.SignedURLTTL)
}

func (p *S3Publisher) objectURL(key string) string {
	return p.cfg.Endpoint + "/" + p.cfg.Bucket + "/" + escapePath(key)
}

// presign builds a V4 query-signed URL for the object. The payload is
// left unsigned, which is the standard arrangement for presigned
// transfers.
func (p *S3Publisher) presign(method, key string, expiry time.Duration) (string, error) {
	base, err := url.Parse(p.objectURL(key))
	if err != nil {
		return "", fmt.Errorf("parse object url: %w", err)
	}

	now := time.Now().UTC()
	amzDate := now.Format("20060102T150405Z")
	shortDate := now.Format("20060102")
	scope := shortDate + "/" + p.cfg.Region + "/s3/aws4_request"

	q := url.Values{}
	q.Set("X-Amz-Algorithm", "AWS4-HMAC-SHA256")
	q.Set("X-Amz-Credential", p.cfg.AccessKey+"/"+scope)
	q.Set("X-Amz-Date", amzDate)
	q.Set("X-Amz-Expires", strconv.Itoa(int(expiry.Seconds())))
	q.Set("X-Amz-SignedHeaders", "host")
	canonicalQuery := q.Encode()

	canonicalRequest := strings.Join([]string{
		method,
		base.EscapedPath(),
		canonicalQuery,
		"host:" + base.Host,
		"",
		"host",
		unsignedPayload,
	}, "\n")

	hashed := sha256.Sum256([]byte(canonicalRequest))
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		scope,
		hex.EncodeToString(hashed[:]),
	}, "\n")

	signature := hex.EncodeToString(hmacSHA256(signingKey(p.cfg.SecretKey, shortDate, p.cfg.Region), []byte(stringToSign)))

	base.RawQuery = canonicalQuery + "&X-Amz-Signature=" + signature
	return base.String(), nil
}

func signingKey(secret, shortDate, region string) []byte {
	k := hmacSHA256([]byte("AWS4"+secret), []byte(shortDate))
	k = hmacSHA256(k, []byte(region))
	k = hmacSHA256(k, []byte("s3"))
	return hmacSHA256(k, []byte("aws4_request"))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func contentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
