package publish

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func testConfig(endpoint string) S3Config {
	return S3Config{
		Endpoint:  endpoint,
		Bucket:    "renders",
		Region:    "us-east-1",
		AccessKey: "AKIATEST",
		SecretKey: "secret",
	}
}

func TestS3Publisher_UploadsWithPresignedPut(t *testing.T) {
	var (
		gotMethod  string
		gotPath    string
		gotType    string
		gotLength  int64
		gotBody    []byte
		gotQueries url.Values
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotLength = r.ContentLength
		gotBody, _ = io.ReadAll(r.Body)
		gotQueries = r.URL.Query()
	}))
	defer srv.Close()

	p, err := NewS3Publisher(testConfig(srv.URL), nil)
	if err != nil {
		t.Fatalf("NewS3Publisher: %v", err)
	}

	artifact := writeArtifact(t, "encoded video bytes")
	dl, err := p.Publish(context.Background(), "jobs/job-1.mp4", artifact)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if gotMethod != http.MethodPut {
		t.Errorf("method = %s, want PUT", gotMethod)
	}
	if gotPath != "/renders/jobs/job-1.mp4" {
		t.Errorf("path = %s", gotPath)
	}
	if gotType != "video/mp4" {
		t.Errorf("content type = %s, want video/mp4", gotType)
	}
	if gotLength != int64(len("encoded video bytes")) {
		t.Errorf("content length = %d", gotLength)
	}
	if string(gotBody) != "encoded video bytes" {
		t.Errorf("body = %q", gotBody)
	}
	for _, param := range []string{"X-Amz-Algorithm", "X-Amz-Credential", "X-Amz-Date", "X-Amz-Expires", "X-Amz-Signature"} {
		if gotQueries.Get(param) == "" {
			t.Errorf("missing presign parameter %s", param)
		}
	}

	// Default TTL on the download URL is seven days.
	if !strings.Contains(dl, "X-Amz-Expires=604800") {
		t.Errorf("download url = %s, want 7-day expiry", dl)
	}
	if !strings.Contains(dl, "X-Amz-Signature=") {
		t.Errorf("download url should be signed: %s", dl)
	}
}

func TestS3Publisher_PublicReadURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.PublicRead = true
	p, err := NewS3Publisher(cfg, nil)
	if err != nil {
		t.Fatalf("NewS3Publisher: %v", err)
	}

	dl, err := p.Publish(context.Background(), "jobs/job-2.mp4", writeArtifact(t, "x"))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	want := srv.URL + "/renders/jobs/job-2.mp4"
	if dl != want {
		t.Errorf("download url = %s, want %s", dl, want)
	}
}

func TestS3Publisher_UploadErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "access denied", http.StatusForbidden)
	}))
	defer srv.Close()

	p, err := NewS3Publisher(testConfig(srv.URL), nil)
	if err != nil {
		t.Fatalf("NewS3Publisher: %v", err)
	}

	_, err = p.Publish(context.Background(), "jobs/job-3.mp4", writeArtifact(t, "x"))
	var ue *UploadError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want UploadError", err)
	}
	if ue.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", ue.StatusCode)
	}
	if !strings.Contains(ue.Body, "access denied") {
		t.Errorf("body = %q", ue.Body)
	}
}

func TestS3Publisher_ConfigValidation(t *testing.T) {
	if _, err := NewS3Publisher(S3Config{Bucket: "b", AccessKey: "a", SecretKey: "s"}, nil); err == nil {
		t.Error("missing endpoint should fail")
	}
	if _, err := NewS3Publisher(S3Config{Endpoint: "http://s3", Bucket: "b"}, nil); err == nil {
		t.Error("missing credentials should fail")
	}
}

func TestS3Publisher_SignedTTLHonored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.SignedURLTTL = time.Hour
	p, err := NewS3Publisher(cfg, nil)
	if err != nil {
		t.Fatalf("NewS3Publisher: %v", err)
	}

	dl, err := p.Publish(context.Background(), "jobs/job-4.mp4", writeArtifact(t, "x"))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !strings.Contains(dl, "X-Amz-Expires=3600") {
		t.Errorf("download url = %s, want 1h expiry", dl)
	}
}

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"jobs/a.mp4":    "video/mp4",
		"jobs/a.MOV":    "video/quicktime",
		"posters/a.jpg": "image/jpeg",
		"posters/a.png": "image/png",
		"misc/blob":     "application/octet-stream",
	}
	for key, want := range cases {
		if got := contentTypeFor(key); got != want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestStub_RecordsPublishes(t *testing.T) {
	s := NewStub(nil)
	dl, err := s.Publish(context.Background(), "jobs/j1.mp4", "/tmp/a.mp4")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !strings.HasPrefix(dl, "stub://") {
		t.Errorf("url = %s", dl)
	}
	if p, ok := s.Published("jobs/j1.mp4"); !ok || p != "/tmp/a.mp4" {
		t.Errorf("recorded = %q, %v", p, ok)
	}
}
