package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge-render/internal/engine"
	"github.com/clipforge/clipforge-render/internal/jobs"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Route("/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Store, cfg.Logger))

		r.Post("/render", renderHandler(cfg))
		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
		r.Get("/jobs/{id}/artifact", artifactHandler(cfg))
		r.Post("/export/edl", exportEDLHandler(cfg))
		r.Get("/doctor", doctorHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:     "ok",
			Version:    cfg.Version,
			UptimeS:    int64(time.Since(cfg.StartTime).Seconds()),
			InstanceID: cfg.InstanceID,
		}
		if cfg.Engine != nil {
			resp.Paused = cfg.Engine.IsPaused()
			resp.QueueDepth = cfg.Engine.QueueDepth()
			resp.ActiveJobs = cfg.Engine.ActiveCount()
		}
		if cfg.Doctor != nil {
			if report := cfg.Doctor.Peek(); report != nil {
				resp.EncoderReady = &report.Ready
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func renderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req engine.RenderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		job, err := cfg.Engine.Submit(r.Context(), &req)
		if err != nil {
			var verr *engine.ValidationError
			switch {
			case errors.As(err, &verr):
				WriteError(w, http.StatusBadRequest, verr.Error(), "VALIDATION_ERROR")
			case errors.Is(err, engine.ErrPaused):
				WriteError(w, http.StatusServiceUnavailable, err.Error(), "PAUSED")
			default:
				cfg.Logger.Error("submit failed", "error", err)
				WriteError(w, http.StatusInternalServerError, "failed to submit job", "INTERNAL_ERROR")
			}
			return
		}

		WriteJSON(w, http.StatusAccepted, RenderResponse{
			JobID:  job.ID,
			Status: "processing",
		})
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := cfg.Store.List(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(list))}
		for i, j := range list {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Store.Get(r.Context(), id)
		if errors.Is(err, jobs.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

// artifactHandler streams the finished render with Range support so a
// browser player can seek without downloading the whole file.
func artifactHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Store.Get(r.Context(), id)
		if errors.Is(err, jobs.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		if job.Status != jobs.StatusCompleted || job.ArtifactPath == "" {
			WriteError(w, http.StatusConflict, "job has no artifact yet", "NOT_READY")
			return
		}

		if err := cfg.Playback.ServeFile(w, r, job.ArtifactPath); err != nil {
			cfg.Logger.Error("artifact serve error", "error", err, "job_id", id)
		}
	}
}

func doctorHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := cfg.Doctor.Get(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "toolchain check failed", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, report)
	}
}
