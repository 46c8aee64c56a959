// Package engine executes render jobs: fetch sources, probe them,
// build the encode plan, drive the encoder subprocess, and publish the
// artifact. Concurrency is bounded by a process-wide semaphore; excess
// submissions queue in memory and do not survive a restart.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/clipforge/clipforge-render/internal/config"
	"github.com/clipforge/clipforge-render/internal/fetch"
	"github.com/clipforge/clipforge-render/internal/filtergraph"
	"github.com/clipforge/clipforge-render/internal/jobs"
	"github.com/clipforge/clipforge-render/internal/logging"
	"github.com/clipforge/clipforge-render/internal/probe"
	"github.com/clipforge/clipforge-render/internal/publish"
)

// Overall progress baselines per stage. The encode stage interpolates
// between its bounds from the encoder's reported timestamps.
const (
	progressQueued      = 0
	progressDownloading = 5
	progressProbing     = 25
	progressEncoding    = 35
	progressEncodingEnd = 80
	progressUploading   = 80
	progressDone        = 100
)

const defaultImageDuration = 5.0

// ErrPaused is returned by Submit while intake is paused.
var ErrPaused = errors.New("job intake is paused")

// Options wires an Engine. Store, Fetcher, Prober, Encoder and
// Publisher are required; Notifier is optional.
type Options struct {
	Store         jobs.Store
	Fetcher       fetch.Fetcher
	Prober        probe.Prober
	Encoder       Encoder
	Publisher     publish.Publisher
	Notifier      *publish.WebhookNotifier
	Presets       config.PresetTable
	ScratchDir    string
	ArtifactsDir  string
	MaxConcurrent int64
	EncodeTimeout time.Duration
	Logger        *slog.Logger
}

type Engine struct {
	opts   Options
	sem    *semaphore.Weighted
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	paused atomic.Bool
	queued atomic.Int64
	active atomic.Int64
}

func New(opts Options) (*Engine, error) {
	if opts.Store == nil || opts.Fetcher == nil || opts.Prober == nil ||
		opts.Encoder == nil || opts.Publisher == nil {
		return nil, fmt.Errorf("engine: store, fetcher, prober, encoder and publisher are required")
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = config.DefaultMaxConcurrent
	}
	if opts.EncodeTimeout <= 0 {
		opts.EncodeTimeout = config.DefaultEncodeTimeout * time.Second
	}
	if opts.Presets == nil {
		opts.Presets = config.DefaultPresets()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if err := os.MkdirAll(opts.ScratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create scratch dir: %w", err)
	}
	if err := os.MkdirAll(opts.ArtifactsDir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create artifacts dir: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		opts:   opts,
		sem:    semaphore.NewWeighted(opts.MaxConcurrent),
		logger: logging.WithComponent(opts.Logger, "engine"),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Submit validates a render request, records it as queued and starts
// it asynchronously. The returned job is already persisted; callers
// poll the store for progress.
func (e *Engine) Submit(ctx context.Context, req *RenderRequest) (*jobs.Job, error) {
	if e.paused.Load() {
		return nil, ErrPaused
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode job payload: %w", err)
	}

	job := &jobs.Job{
		ID:          jobs.NewID(),
		Status:      jobs.StatusQueued,
		Progress:    progressQueued,
		Payload:     string(payload),
		CallbackURL: req.CallbackURL,
	}
	if err := e.opts.Store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("record job: %w", err)
	}

	e.wg.Add(1)
	e.queued.Add(1)
	go e.run(job.ID, req)

	e.logger.Info("job submitted", "job_id", job.ID, "clips", len(req.Clips))
	return job, nil
}

// Pause stops accepting new submissions. Jobs already queued or
// running are unaffected.
func (e *Engine) Pause()         { e.paused.Store(true) }
func (e *Engine) Resume()        { e.paused.Store(false) }
func (e *Engine) IsPaused() bool { return e.paused.Load() }

// QueueDepth is the number of submitted jobs still waiting on a slot.
func (e *Engine) QueueDepth() int64 { return e.queued.Load() }

// ActiveCount is the number of jobs holding a slot right now.
func (e *Engine) ActiveCount() int64 { return e.active.Load() }

// Shutdown stops slot acquisition and waits for in-flight jobs, up to
// the context deadline. Jobs still queued are marked interrupted.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.cancel()
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) run(jobID string, req *RenderRequest) {
	defer e.wg.Done()

	logger := logging.WithJobID(e.logger, jobID)

	if err := e.sem.Acquire(e.ctx, 1); err != nil {
		e.queued.Add(-1)
		e.fail(jobID, req, fmt.Errorf("job interrupted before start: %w", err))
		return
	}
	e.queued.Add(-1)
	e.active.Add(1)
	defer func() {
		e.active.Add(-1)
		e.sem.Release(1)
	}()

	scratch := filepath.Join(e.opts.ScratchDir, jobID)
	defer os.RemoveAll(scratch)

	if err := e.process(e.ctx, jobID, req, scratch, logger); err != nil {
		e.fail(jobID, req, err)
	}
}

// process walks the job through its stages. Any returned error moves
// the job to failed.
func (e *Engine) process(ctx context.Context, jobID string, req *RenderRequest, scratch string, logger *slog.Logger) error {
	store := e.opts.Store

	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("create scratch: %w", err)
	}

	// Download. Sources are fetched sequentially in clip order so
	// failures name the offending index.
	if err := store.SetStatus(ctx, jobID, jobs.StatusDownloading, progressDownloading); err != nil {
		return err
	}
	paths := make([]string, len(req.Clips))
	for i, clip := range req.Clips {
		p, err := e.opts.Fetcher.Fetch(ctx, clip.SourceURL)
		if err != nil {
			return fmt.Errorf("clip %d: %w", i, err)
		}
		paths[i] = p
		pct := progressDownloading + (i+1)*(progressProbing-progressDownloading)/len(req.Clips)
		store.SetProgress(ctx, jobID, pct)
	}
	if req.Enhancements != nil {
		if m := req.Enhancements.Music; m != nil {
			p, err := e.opts.Fetcher.Fetch(ctx, m.URL)
			if err != nil {
				return fmt.Errorf("music: %w", err)
			}
			m.Path = p
		}
		if v := req.Enhancements.Voice; v != nil {
			p, err := e.opts.Fetcher.Fetch(ctx, v.URL)
			if err != nil {
				return fmt.Errorf("voice: %w", err)
			}
			v.Path = p
		}
	}

	// Probe. One unreadable asset fails the whole job; there is no
	// partial composition.
	if err := store.SetStatus(ctx, jobID, jobs.StatusProbing, progressProbing); err != nil {
		return err
	}
	clips := make([]filtergraph.SourceClip, len(req.Clips))
	for i, spec := range req.Clips {
		info, err := e.opts.Prober.Probe(ctx, paths[i])
		if err != nil {
			return fmt.Errorf("clip %d: %w", i, err)
		}
		clips[i] = sourceClip(spec, paths[i], info)
		pct := progressProbing + (i+1)*(progressEncoding-progressProbing)/len(req.Clips)
		store.SetProgress(ctx, jobID, pct)
	}

	out, err := resolveOutput(req.Output, e.opts.Presets)
	if err != nil {
		return &filtergraph.BuildError{Reason: err.Error()}
	}
	plan, err := filtergraph.Build(clips, req.Enhancements, out)
	if err != nil {
		return err
	}
	logger.Info("plan built",
		"mode", plan.Mode.String(),
		"inputs", len(plan.Inputs),
		"total_duration", plan.TotalDuration,
	)

	// Encode.
	if err := store.SetStatus(ctx, jobID, jobs.StatusEncoding, progressEncoding); err != nil {
		return err
	}
	artifact := filepath.Join(e.opts.ArtifactsDir, jobID+"."+out.Format)
	args, err := e.encoderArgs(plan, out, scratch, artifact)
	if err != nil {
		return err
	}

	encodeCtx, cancel := context.WithTimeout(ctx, e.opts.EncodeTimeout)
	defer cancel()
	onProgress := func(seconds float64) {
		store.SetProgress(context.Background(), jobID, encodePercent(seconds, plan.TotalDuration))
	}
	if _, err := e.opts.Encoder.Run(encodeCtx, args, onProgress); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &TimeoutError{Limit: e.opts.EncodeTimeout}
		}
		return err
	}

	st, err := os.Stat(artifact)
	if err != nil {
		return &EncodeError{ExitCode: 0, Excerpt: "encoder exited cleanly but produced no output"}
	}
	if st.Size() == 0 {
		os.Remove(artifact)
		return &EncodeError{ExitCode: 0, Excerpt: "encoder produced an empty output file"}
	}

	e.thumbnail(ctx, jobID, artifact, plan.TotalDuration, logger)

	// Upload.
	if err := store.SetStatus(ctx, jobID, jobs.StatusUploading, progressUploading); err != nil {
		return err
	}
	key := "renders/" + filepath.Base(artifact)
	downloadURL, err := e.opts.Publisher.Publish(ctx, key, artifact)
	if err != nil {
		return err
	}

	if err := store.MarkCompleted(ctx, jobID, artifact, downloadURL); err != nil {
		return err
	}
	logger.Info("job completed", "artifact", logging.SanitizePath(artifact), "bytes", st.Size())

	e.notify(publish.CallbackPayload{
		JobID:       jobID,
		Status:      jobs.StatusCompleted,
		DownloadURL: downloadURL,
	}, req.CallbackURL)
	return nil
}

// encoderArgs renders the plan into an argv, writing the concat list
// file for stream-copy plans.
func (e *Engine) encoderArgs(plan *filtergraph.Plan, out filtergraph.OutputSettings, scratch, artifact string) ([]string, error) {
	if plan.Mode == filtergraph.ModeStreamCopy {
		listPath := filepath.Join(scratch, "concat.txt")
		if err := os.WriteFile(listPath, []byte(filtergraph.ConcatListContent(plan)), 0o644); err != nil {
			return nil, fmt.Errorf("write concat list: %w", err)
		}
		return filtergraph.CopyArgs(listPath, artifact), nil
	}
	return filtergraph.EncodeArgs(plan, out, artifact)
}

// thumbnail extracts a poster frame next to the artifact. Best-effort:
// failure is logged and never fails the job.
func (e *Engine) thumbnail(ctx context.Context, jobID, artifact string, total float64, logger *slog.Logger) {
	at := total / 4
	if at > 3 {
		at = 3
	}
	thumbPath := filepath.Join(e.opts.ArtifactsDir, jobID+".jpg")
	tctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := e.opts.Encoder.Run(tctx, filtergraph.ThumbnailArgs(artifact, thumbPath, at), nil); err != nil {
		logger.Warn("thumbnail generation failed", "error", err)
		os.Remove(thumbPath)
	}
}

func (e *Engine) fail(jobID string, req *RenderRequest, err error) {
	kind := errKind(err)
	logging.WithJobID(e.logger, jobID).Warn("job failed", "error_type", kind, "error", err)

	// The store write uses a fresh context: the job context may already
	// be the reason we are here.
	if serr := e.opts.Store.MarkFailed(context.Background(), jobID, err.Error(), kind); serr != nil {
		e.logger.Error("record job failure", "job_id", jobID, "error", serr)
	}

	e.notify(publish.CallbackPayload{
		JobID:  jobID,
		Status: jobs.StatusFailed,
		Error:  err.Error(),
	}, req.CallbackURL)
}

// notify delivers the completion callback best-effort. Failures inside
// the notifier are logged there and cannot re-enter the job's error
// path.
func (e *Engine) notify(payload publish.CallbackPayload, callbackURL string) {
	if e.opts.Notifier == nil || callbackURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	e.opts.Notifier.Notify(ctx, callbackURL, payload)
}

// errKind maps an error to the coarse class exposed by status queries.
func errKind(err error) string {
	var (
		ve *ValidationError
		fe *fetch.FetchError
		pe *probe.ProbeError
		be *filtergraph.BuildError
		ee *EncodeError
		te *TimeoutError
		ue *publish.UploadError
	)
	switch {
	case errors.As(err, &ve):
		return jobs.ErrTypeValidation
	case errors.As(err, &fe):
		return jobs.ErrTypeFetch
	case errors.As(err, &pe):
		return jobs.ErrTypeProbe
	case errors.As(err, &be):
		return jobs.ErrTypeBuild
	case errors.As(err, &te), errors.Is(err, context.DeadlineExceeded):
		return jobs.ErrTypeTimeout
	case errors.As(err, &ee):
		return jobs.ErrTypeEncode
	case errors.As(err, &ue):
		return jobs.ErrTypeUpload
	default:
		return jobs.ErrTypeInternal
	}
}

// sourceClip merges the submitted clip spec with its probed metadata.
func sourceClip(spec ClipSpec, path string, info *probe.MediaInfo) filtergraph.SourceClip {
	c := filtergraph.SourceClip{
		Path:      path,
		IsImage:   info.IsImage(),
		HasAudio:  info.HasAudio,
		Duration:  info.Duration,
		Width:     info.Width,
		Height:    info.Height,
		TrimStart: spec.TrimStart,
		TrimEnd:   spec.TrimEnd,
		Speed:     spec.Speed,
		Volume:    spec.Volume,
		Muted:     spec.Muted,
	}
	if c.IsImage {
		c.DisplayDuration = spec.Duration
		if c.DisplayDuration <= 0 {
			c.DisplayDuration = defaultImageDuration
		}
	}
	return c
}

// encodePercent maps an encoder timestamp into the encode stage's
// share of overall progress.
func encodePercent(seconds, total float64) int {
	if total <= 0 {
		return progressEncoding
	}
	span := float64(progressEncodingEnd - progressEncoding)
	pct := progressEncoding + int(span*seconds/total)
	if pct < progressEncoding {
		pct = progressEncoding
	}
	if pct > progressEncodingEnd {
		pct = progressEncodingEnd
	}
	return pct
}
