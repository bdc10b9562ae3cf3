package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"motif/internal/ir"
	"motif/internal/pkg/errors"
	"motif/internal/pkg/logger"
	"motif/internal/ports"
	"motif/internal/timeline"
)

// CancelMessage is recorded as the error of a job canceled by its owner.
const CancelMessage = "canceled by user"

// maxSceneParallel caps engine subprocesses per job. The job-level worker
// cap bounds total jobs; this bounds scenes within one job.
const maxSceneParallel = 4

// SceneRenderer renders one scene program into a video artifact.
type SceneRenderer interface {
	RenderScene(ctx context.Context, scene ir.Scene, program *timeline.Program, sceneIndex int, workdir string) (string, error)
}

// MediaAssembler joins scene artifacts and converts containers.
type MediaAssembler interface {
	Assemble(ctx context.Context, artifacts []string, outPath string) (string, error)
	Transcode(ctx context.Context, inPath, format string) (string, error)
}

type Config struct {
	// Workers caps how many jobs render at once. Jobs beyond the cap
	// stay pending until a slot frees.
	Workers int
	// WorkDir hosts per-job scratch directories.
	WorkDir string
}

// Deps wires the scheduler's collaborators.
type Deps struct {
	Registry  Registry
	Queue     Queue
	Renderer  SceneRenderer
	// RendererFor, when set, supplies a renderer specialized for a job's
	// quality and style. Renderer is used as-is otherwise.
	RendererFor func(quality, style string) SceneRenderer
	Assembler   MediaAssembler
	Storage     ports.StorageProvider
	Log         *logger.Logger
}

type Scheduler struct {
	cfg     Config
	reg     Registry
	queue   Queue
	rend    SceneRenderer
	rendFor func(quality, style string) SceneRenderer
	asm     MediaAssembler
	store ports.StorageProvider
	log   *logger.Logger

	sem chan struct{}
	wg  sync.WaitGroup

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func New(cfg Config, deps Deps) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if deps.Registry == nil {
		deps.Registry = NewMemoryRegistry()
	}
	if deps.Queue == nil {
		deps.Queue = NewChannelQueue(0)
	}
	if deps.Log == nil {
		deps.Log = logger.NewDefault()
	}
	return &Scheduler{
		cfg:     cfg,
		reg:     deps.Registry,
		queue:   deps.Queue,
		rend:    deps.Renderer,
		rendFor: deps.RendererFor,
		asm:     deps.Assembler,
		store:   deps.Storage,
		log:     deps.Log.WithComponent("scheduler"),
		sem:     make(chan struct{}, cfg.Workers),
		cancels: make(map[string]context.CancelFunc),
	}
}

type SubmitRequest struct {
	OwnerID      string
	Definition   *ir.IR
	OutputFormat string
	Quality      string
}

// Submit validates the definition, records a pending job and enqueues it.
// It returns immediately; a full worker pool never delays admission.
func (s *Scheduler) Submit(ctx context.Context, req SubmitRequest) (*Job, error) {
	if req.Definition == nil {
		return nil, errors.Validation("definition is required")
	}
	if violations := ir.Validate(req.Definition); len(violations) > 0 {
		return nil, errors.Validation("definition failed validation").
			WithField("violations", violations)
	}
	format := req.OutputFormat
	if format == "" {
		format = ir.FormatMP4
	}
	switch format {
	case ir.FormatMP4, ir.FormatGIF, ir.FormatWebM:
	default:
		return nil, errors.Validation(fmt.Sprintf("unsupported output format %q", format)).
			WithField("field", "output_format")
	}
	switch req.Quality {
	case "", "low", "medium", "high":
	default:
		return nil, errors.Validation(fmt.Sprintf("unsupported quality %q", req.Quality)).
			WithField("field", "quality")
	}

	job := &Job{
		ID:                uuid.NewString(),
		OwnerID:           req.OwnerID,
		Definition:        req.Definition.Clone(),
		OutputFormat:      format,
		Quality:           req.Quality,
		Status:            StatusPending,
		EstimatedDuration: EstimateDuration(req.Definition),
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.reg.Create(ctx, job); err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		_ = s.reg.SetFailed(ctx, job.ID, "failed to enqueue job")
		return nil, errors.Wrap(err, "scheduler.submit", "failed to enqueue job")
	}

	s.log.FromContext(ctx).Info("job submitted",
		"job_id", job.ID,
		"owner_id", job.OwnerID,
		"scenes", len(job.Definition.Scenes),
		"estimated_duration", job.EstimatedDuration,
	)
	return job.clone(), nil
}

// Get returns the job record by ID.
func (s *Scheduler) Get(ctx context.Context, id string) (*Job, error) {
	return s.reg.Get(ctx, id)
}

// ListByOwner returns all jobs submitted by an owner, newest first.
func (s *Scheduler) ListByOwner(ctx context.Context, ownerID string) ([]*Job, error) {
	return s.reg.ListByOwner(ctx, ownerID)
}

// Cancel moves a job to failed with CancelMessage. A running render is
// interrupted; a queued job is marked so the run loop skips it. Canceling
// a terminal job is a conflict.
func (s *Scheduler) Cancel(ctx context.Context, id string) (*Job, error) {
	job, err := s.reg.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, errors.Conflict("job already finished").
			WithField("job_id", id).
			WithField("status", string(job.Status))
	}
	if err := s.reg.SetFailed(ctx, id, CancelMessage); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
	}
	s.mu.Unlock()

	s.log.FromContext(ctx).Info("job canceled", "job_id", id)
	return s.reg.Get(ctx, id)
}

// Run consumes the queue until ctx is done, renders each claimed job and
// waits for in-flight jobs before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	log := s.log.FromContext(ctx)
	log.Info("run loop started", "workers", s.cfg.Workers)

	for {
		jobID, err := s.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warn("dequeue failed", "error", err.Error())
			continue
		}

		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			// the job stays pending; a later run picks it up
			s.wg.Wait()
			log.Info("run loop stopped")
			return nil
		}

		claimed, err := s.reg.SetProcessing(ctx, jobID)
		if err != nil || !claimed {
			if err != nil {
				log.LogError(ctx, "failed to claim job", err, "job_id", jobID)
			}
			<-s.sem
			continue
		}

		s.wg.Add(1)
		go func(id string) {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			s.process(ctx, id)
		}(jobID)
	}

	s.wg.Wait()
	log.Info("run loop stopped")
	return nil
}

func (s *Scheduler) process(ctx context.Context, jobID string) {
	jobCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancels[jobID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.cancels, jobID)
		s.mu.Unlock()
		cancel()
	}()

	log := s.log.WithJobID(jobID)
	job, err := s.reg.Get(jobCtx, jobID)
	if err != nil {
		log.LogError(ctx, "failed to load claimed job", err)
		return
	}

	uri, err := s.render(jobCtx, job, log)

	// status writes must survive job cancellation
	bg := context.WithoutCancel(ctx)
	if err != nil {
		msg := err.Error()
		if jobCtx.Err() != nil && ctx.Err() == nil {
			// owner cancel already recorded CancelMessage; the guard
			// makes this a no-op
			msg = CancelMessage
		}
		if ferr := s.reg.SetFailed(bg, jobID, msg); ferr != nil {
			log.LogError(ctx, "failed to record job failure", ferr)
		}
		log.LogError(ctx, "job failed", err)
		return
	}
	if cerr := s.reg.SetCompleted(bg, jobID, uri); cerr != nil {
		log.LogError(ctx, "failed to record job completion", cerr)
		return
	}
	log.Info("job completed", "video_uri", uri)
}

// render runs the full pipeline for one job: compile every scene, render
// scenes in parallel, join in scene order, convert, publish. The scratch
// directory is removed on every exit path, so a failed job leaves no
// partial artifacts behind.
func (s *Scheduler) render(ctx context.Context, job *Job, log *logger.Logger) (string, error) {
	workdir, err := os.MkdirTemp(s.cfg.WorkDir, "job_")
	if err != nil {
		return "", errors.Wrap(err, "scheduler.render", "failed to create scratch dir")
	}
	defer os.RemoveAll(workdir)

	scenes := job.Definition.Scenes
	programs := make([]*timeline.Program, len(scenes))
	for i, scene := range scenes {
		p, err := timeline.Compile(scene)
		if err != nil {
			return "", err
		}
		programs[i] = p
	}

	rend := s.rend
	if s.rendFor != nil {
		rend = s.rendFor(job.Quality, job.Definition.Style)
	}

	artifacts := make([]string, len(scenes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxSceneParallel)
	for i := range scenes {
		g.Go(func() error {
			path, err := rend.RenderScene(gctx, scenes[i], programs[i], i, workdir)
			if err != nil {
				return err
			}
			artifacts[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	outPath := filepath.Join(workdir, "final.mp4")
	joined, err := s.asm.Assemble(ctx, artifacts, outPath)
	if err != nil {
		return "", err
	}
	final, err := s.asm.Transcode(ctx, joined, job.OutputFormat)
	if err != nil {
		return "", err
	}

	if s.store == nil {
		return final, errors.Internal("no storage provider configured")
	}

	f, err := os.Open(final)
	if err != nil {
		return "", errors.Wrap(err, "scheduler.publish", "failed to open final artifact")
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", errors.Wrap(err, "scheduler.publish", "failed to stat final artifact")
	}

	objectKey := fmt.Sprintf("renders/%s/final%s", job.ID, filepath.Ext(final))
	put, err := s.store.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   objectKey,
		ContentType: contentTypeFor(job.OutputFormat),
		Reader:      f,
		Size:        info.Size(),
	})
	if err != nil {
		return "", errors.Wrap(err, "scheduler.publish", "failed to publish artifact")
	}

	log.Debug("artifact published", "object_key", put.ObjectKey, "size", put.Size)
	return put.ObjectKey, nil
}

func contentTypeFor(format string) string {
	switch format {
	case ir.FormatGIF:
		return "image/gif"
	case ir.FormatWebM:
		return "video/webm"
	default:
		return "video/mp4"
	}
}
