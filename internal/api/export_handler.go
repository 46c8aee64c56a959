package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/clipforge/clipforge-render/internal/export"
)

// exportEDLHandler turns a clip sequence into a CMX 3600 EDL. The file
// content comes back in the response body; the caller decides where it
// lands on disk.
func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.Format != "" && strings.ToLower(req.Format) != "edl" {
			WriteError(w, http.StatusBadRequest, "format must be edl", "BAD_REQUEST")
			return
		}
		if len(req.Clips) == 0 {
			WriteError(w, http.StatusBadRequest, "clips must not be empty", "BAD_REQUEST")
			return
		}

		projectName := export.SanitizeName(req.ProjectName, 120)
		if projectName == "" {
			projectName = "clipforge_export"
		}

		frameRate := req.FrameRate
		if frameRate <= 0 {
			frameRate = 30.0
		}

		resolved := make([]export.ResolvedClip, 0, len(req.Clips))
		for i, clip := range req.Clips {
			if strings.TrimSpace(clip.Source) == "" {
				WriteError(w, http.StatusBadRequest, "clip source is required", "BAD_REQUEST")
				return
			}
			if clip.TrimStart < 0 || clip.TrimEnd <= clip.TrimStart {
				WriteError(w, http.StatusBadRequest, "trimStart must be before trimEnd", "BAD_REQUEST")
				return
			}

			name := export.SanitizeName(clip.Name, 160)
			if name == "" {
				name = fmt.Sprintf("clip_%03d", i+1)
			}

			resolved = append(resolved, export.ResolvedClip{
				Name:      name,
				MediaPath: clip.Source,
				SourceIn:  clip.TrimStart,
				SourceOut: clip.TrimEnd,
				Speed:     clip.Speed,
			})
		}

		edl := export.GenerateEDL(resolved, projectName, frameRate)

		WriteJSON(w, http.StatusOK, export.Response{
			Format:    "edl",
			FileName:  projectName + ".edl",
			Content:   edl,
			ClipCount: len(resolved),
		})
	}
}
