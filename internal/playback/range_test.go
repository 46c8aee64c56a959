package playback

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		size      int64
		wantStart int64
		wantEnd   int64
		wantNil   bool
		wantErr   error
	}{
		{name: "no header means whole file", header: "", size: 1000, wantNil: true},
		{name: "explicit full span", header: "bytes=0-999", size: 1000, wantStart: 0, wantEnd: 999},
		{name: "open end", header: "bytes=500-", size: 1000, wantStart: 500, wantEnd: 999},
		{name: "suffix span", header: "bytes=-500", size: 1000, wantStart: 500, wantEnd: 999},
		{name: "suffix larger than file", header: "bytes=-2000", size: 500, wantStart: 0, wantEnd: 499},
		{name: "single byte", header: "bytes=0-0", size: 1000, wantStart: 0, wantEnd: 0},
		{name: "end clamped to size", header: "bytes=0-2000", size: 1000, wantStart: 0, wantEnd: 999},
		{name: "multi range collapses to first", header: "bytes=0-99, 200-299", size: 1000, wantStart: 0, wantEnd: 99},

		{name: "start at size", header: "bytes=1000-", size: 1000, wantErr: ErrUnsatisfiable},
		{name: "span past end", header: "bytes=1500-2000", size: 1000, wantErr: ErrUnsatisfiable},
		{name: "inverted span", header: "bytes=9-2", size: 1000, wantErr: ErrUnsatisfiable},
		{name: "missing unit", header: "0-100", size: 1000, wantErr: ErrMalformedRange},
		{name: "wrong unit", header: "chars=0-100", size: 1000, wantErr: ErrMalformedRange},
		{name: "non-numeric start", header: "bytes=abc-100", size: 1000, wantErr: ErrMalformedRange},
		{name: "non-numeric end", header: "bytes=0-abc", size: 1000, wantErr: ErrMalformedRange},
		{name: "zero suffix", header: "bytes=-0", size: 1000, wantErr: ErrMalformedRange},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRange(tc.header, tc.size)

			if tc.wantErr != nil {
				if err != tc.wantErr {
					t.Fatalf("ParseRange() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRange() unexpected error: %v", err)
			}
			if tc.wantNil {
				if got != nil {
					t.Fatalf("ParseRange() = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("ParseRange() = nil, want span")
			}
			if got.Start != tc.wantStart || got.End != tc.wantEnd {
				t.Errorf("ParseRange() = {%d, %d}, want {%d, %d}", got.Start, got.End, tc.wantStart, tc.wantEnd)
			}
		})
	}
}

func TestByteRangeLengthAndHeader(t *testing.T) {
	r := ByteRange{Start: 500, End: 999}
	if got := r.Length(); got != 500 {
		t.Errorf("Length() = %d, want 500", got)
	}
	if got := r.ContentRange(1000); got != "bytes 500-999/1000" {
		t.Errorf("ContentRange() = %q", got)
	}
}

func testServer() *Server {
	return NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestServeFile_WholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(path, []byte("abcdefghij"), 0o644); err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/artifact", nil)
	if err := testServer().ServeFile(rr, req, path); err != nil {
		t.Fatalf("ServeFile() error = %v", err)
	}

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if rr.Body.String() != "abcdefghij" {
		t.Errorf("body = %q", rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("Content-Type = %q, want video/mp4", ct)
	}
	if ar := rr.Header().Get("Accept-Ranges"); ar != "bytes" {
		t.Errorf("Accept-Ranges = %q, want bytes", ar)
	}
}

func TestServeFile_PartialContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(path, []byte("abcdefghij"), 0o644); err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/artifact", nil)
	req.Header.Set("Range", "bytes=3-6")
	if err := testServer().ServeFile(rr, req, path); err != nil {
		t.Fatalf("ServeFile() error = %v", err)
	}

	if rr.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusPartialContent)
	}
	if rr.Body.String() != "defg" {
		t.Errorf("body = %q, want %q", rr.Body.String(), "defg")
	}
	if cr := rr.Header().Get("Content-Range"); cr != "bytes 3-6/10" {
		t.Errorf("Content-Range = %q", cr)
	}
}

func TestServeFile_UnsatisfiableRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/artifact", nil)
	req.Header.Set("Range", "bytes=100-")
	if err := testServer().ServeFile(rr, req, path); err != nil {
		t.Fatalf("ServeFile() error = %v", err)
	}

	if rr.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusRequestedRangeNotSatisfiable)
	}
	if cr := rr.Header().Get("Content-Range"); cr != "bytes */3" {
		t.Errorf("Content-Range = %q, want bytes */3", cr)
	}
}

func TestServeFile_MissingFileIs404(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/artifact", nil)
	if err := testServer().ServeFile(rr, req, "/nonexistent/out.mp4"); err != nil {
		t.Fatalf("ServeFile() error = %v", err)
	}
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}
