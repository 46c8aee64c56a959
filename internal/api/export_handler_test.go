package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/clipforge/clipforge-render/internal/export"
)

func TestExportEDLReturnsContent(t *testing.T) {
	cfg, _, _ := newTestConfig(t)

	body := `{
		"projectName": "My Cut",
		"format": "edl",
		"frameRate": 30,
		"clips": [
			{"name": "Opening", "source": "/media/open.mp4", "trimStart": 0, "trimEnd": 2},
			{"name": "Fast Part", "source": "/media/fast.mp4", "trimStart": 1, "trimEnd": 5, "speed": 2}
		]
	}`
	rr := doRequest(cfg, http.MethodPost, "/v1/export/edl", body, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp export.Response
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Format != "edl" {
		t.Errorf("format = %q, want edl", resp.Format)
	}
	if resp.FileName != "My Cut.edl" {
		t.Errorf("fileName = %q", resp.FileName)
	}
	if resp.ClipCount != 2 {
		t.Errorf("clipCount = %d, want 2", resp.ClipCount)
	}
	if !strings.Contains(resp.Content, "TITLE: My Cut") {
		t.Errorf("content missing title: %q", resp.Content)
	}
	if !strings.Contains(resp.Content, "M2   AX") {
		t.Errorf("content missing motion memo for 2x clip: %q", resp.Content)
	}
}

func TestExportEDLRejectsUnknownFormat(t *testing.T) {
	cfg, _, _ := newTestConfig(t)
	rr := doRequest(cfg, http.MethodPost, "/v1/export/edl",
		`{"format":"xml","clips":[{"source":"/a.mp4","trimStart":0,"trimEnd":1}]}`, true)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestExportEDLRejectsEmptyClips(t *testing.T) {
	cfg, _, _ := newTestConfig(t)
	rr := doRequest(cfg, http.MethodPost, "/v1/export/edl", `{"format":"edl","clips":[]}`, true)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestExportEDLRejectsInvertedTrim(t *testing.T) {
	cfg, _, _ := newTestConfig(t)
	rr := doRequest(cfg, http.MethodPost, "/v1/export/edl",
		`{"format":"edl","clips":[{"source":"/a.mp4","trimStart":5,"trimEnd":2}]}`, true)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestExportEDLDefaultsProjectName(t *testing.T) {
	cfg, _, _ := newTestConfig(t)
	rr := doRequest(cfg, http.MethodPost, "/v1/export/edl",
		`{"format":"edl","clips":[{"source":"/a.mp4","trimStart":0,"trimEnd":1}]}`, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp export.Response
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.FileName != "clipforge_export.edl" {
		t.Errorf("fileName = %q, want clipforge_export.edl", resp.FileName)
	}
}
