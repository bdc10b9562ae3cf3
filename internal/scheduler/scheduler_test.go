package scheduler

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"motif/internal/ir"
	"motif/internal/pkg/errors"
	"motif/internal/ports"
	"motif/internal/timeline"
)

func validIR(sceneIDs ...string) *ir.IR {
	def := &ir.IR{Version: "1.0"}
	for _, id := range sceneIDs {
		def.Scenes = append(def.Scenes, ir.Scene{
			SceneID:  id,
			Duration: 2.0,
			Objects: []ir.Object{{
				ID:      "title",
				Kind:    ir.KindText,
				Content: "hello",
				Operations: []ir.Operation{
					{Kind: ir.OpWrite, StartTime: 0, Duration: 1},
				},
			}},
		})
	}
	return def
}

type fakeRenderer struct {
	fn    func(ctx context.Context, scene ir.Scene, workdir string) error
	calls atomic.Int32
}

func (f *fakeRenderer) RenderScene(ctx context.Context, scene ir.Scene, program *timeline.Program, sceneIndex int, workdir string) (string, error) {
	f.calls.Add(1)
	if f.fn != nil {
		if err := f.fn(ctx, scene, workdir); err != nil {
			return "", err
		}
	}
	path := filepath.Join(workdir, "scene_"+scene.SceneID+".mp4")
	if err := os.WriteFile(path, []byte(scene.SceneID), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeAssembler struct{}

func (fakeAssembler) Assemble(_ context.Context, artifacts []string, outPath string) (string, error) {
	var buf bytes.Buffer
	for _, p := range artifacts {
		b, err := os.ReadFile(p)
		if err != nil {
			return "", err
		}
		buf.Write(b)
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	return outPath, nil
}

func (fakeAssembler) Transcode(_ context.Context, inPath, _ string) (string, error) {
	return inPath, nil
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (s *memStorage) Provider() string { return "memory" }

func (s *memStorage) PutObject(_ context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Reader)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	s.mu.Lock()
	s.objects[in.ObjectKey] = b
	s.mu.Unlock()
	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: int64(len(b))}, nil
}

func (s *memStorage) GetObject(_ context.Context, key string) (io.ReadCloser, string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	if !ok {
		return nil, "", 0, errors.NotFound("object", key)
	}
	return io.NopCloser(bytes.NewReader(b)), "video/mp4", int64(len(b)), nil
}

func (s *memStorage) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStorage) GetSignedURL(context.Context, string, time.Duration) (ports.SignedURLOutput, error) {
	return ports.SignedURLOutput{}, errors.New(errors.CodeUnavailable, "not supported")
}

func (s *memStorage) keysFor(jobID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if strings.Contains(k, jobID) {
			keys = append(keys, k)
		}
	}
	return keys
}

func newTestScheduler(t *testing.T, workers int, rend SceneRenderer, store ports.StorageProvider) *Scheduler {
	t.Helper()
	if store == nil {
		store = newMemStorage()
	}
	return New(
		Config{Workers: workers, WorkDir: t.TempDir()},
		Deps{Renderer: rend, Assembler: fakeAssembler{}, Storage: store},
	)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSubmitValidates(t *testing.T) {
	s := newTestScheduler(t, 1, &fakeRenderer{}, nil)

	def := validIR("s1")
	def.Scenes[0].Objects[0].Position = [3]float64{8, 0, 0}
	_, err := s.Submit(context.Background(), SubmitRequest{OwnerID: "u1", Definition: def})
	if err == nil {
		t.Fatal("want validation error")
	}
	if !errors.IsValidation(err) {
		t.Errorf("code = %v", errors.GetCode(err))
	}
	viols, ok := errors.GetFields(err)["violations"].([]ir.Violation)
	if !ok || len(viols) != 1 {
		t.Fatalf("violations = %v", errors.GetFields(err)["violations"])
	}
	if viols[0].Field != "position" {
		t.Errorf("field = %q", viols[0].Field)
	}
}

func TestSubmitSnapshotsDefinition(t *testing.T) {
	s := newTestScheduler(t, 1, &fakeRenderer{}, nil)
	def := validIR("s1")

	job, err := s.Submit(context.Background(), SubmitRequest{OwnerID: "u1", Definition: def})
	if err != nil {
		t.Fatal(err)
	}
	def.Scenes[0].Objects[0].Content = "mutated"

	stored, err := s.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got := stored.Definition.Scenes[0].Objects[0].Content; got != "hello" {
		t.Errorf("stored definition mutated through caller reference: %q", got)
	}
	if job.EstimatedDuration != 4.0 {
		t.Errorf("estimated duration = %g, want 4 (2x total)", job.EstimatedDuration)
	}
}

func TestConcurrencyCapAndImmediatePending(t *testing.T) {
	var running atomic.Int32
	var peak atomic.Int32
	release := make(chan struct{})

	rend := &fakeRenderer{fn: func(ctx context.Context, _ ir.Scene, _ string) error {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		defer running.Add(-1)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}}

	s := newTestScheduler(t, 3, rend, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { _ = s.Run(ctx); close(done) }()

	ids := make([]string, 5)
	for i := range ids {
		job, err := s.Submit(ctx, SubmitRequest{OwnerID: "u1", Definition: validIR("s1")})
		if err != nil {
			t.Fatal(err)
		}
		if job.Status != StatusPending {
			t.Errorf("submit %d returned status %q, want pending", i, job.Status)
		}
		ids[i] = job.ID
	}

	waitFor(t, "three jobs processing", func() bool { return running.Load() == 3 })

	// with the pool full, the rest are admitted but not running
	pending := 0
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status == StatusPending {
			pending++
		}
	}
	if pending != 2 {
		t.Errorf("pending jobs while pool is full = %d, want 2", pending)
	}

	close(release)
	waitFor(t, "all jobs completed", func() bool {
		for _, id := range ids {
			job, err := s.Get(ctx, id)
			if err != nil || job.Status != StatusCompleted {
				return false
			}
		}
		return true
	})

	if peak.Load() > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak.Load())
	}

	cancel()
	<-done
}

func TestFailureIsolation(t *testing.T) {
	rend := &fakeRenderer{fn: func(_ context.Context, scene ir.Scene, _ string) error {
		if scene.SceneID == "bad" {
			return errors.EngineFailure("renderer.run", "Traceback: invalid mobject", os.ErrInvalid)
		}
		return nil
	}}
	store := newMemStorage()
	s := newTestScheduler(t, 2, rend, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	badJob, err := s.Submit(ctx, SubmitRequest{OwnerID: "u1", Definition: validIR("a", "bad", "c")})
	if err != nil {
		t.Fatal(err)
	}
	goodJob, err := s.Submit(ctx, SubmitRequest{OwnerID: "u1", Definition: validIR("s1", "s2")})
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, "both jobs terminal", func() bool {
		b, _ := s.Get(ctx, badJob.ID)
		g, _ := s.Get(ctx, goodJob.ID)
		return b != nil && g != nil && b.Status.IsTerminal() && g.Status.IsTerminal()
	})

	b, _ := s.Get(ctx, badJob.ID)
	if b.Status != StatusFailed {
		t.Errorf("bad job status = %q, want failed", b.Status)
	}
	if !strings.Contains(b.ErrorMessage, "Traceback") {
		t.Errorf("engine diagnostic not preserved: %q", b.ErrorMessage)
	}
	if keys := store.keysFor(badJob.ID); len(keys) != 0 {
		t.Errorf("failed job published artifacts: %v", keys)
	}

	g, _ := s.Get(ctx, goodJob.ID)
	if g.Status != StatusCompleted {
		t.Errorf("good job status = %q, want completed", g.Status)
	}
	if g.VideoURI == "" {
		t.Error("completed job has no video URI")
	}
	if keys := store.keysFor(goodJob.ID); len(keys) != 1 {
		t.Errorf("completed job artifacts = %v, want exactly one", keys)
	}
}

func TestCancelQueuedJob(t *testing.T) {
	release := make(chan struct{})
	var rendered sync.Map
	rend := &fakeRenderer{fn: func(ctx context.Context, scene ir.Scene, _ string) error {
		rendered.Store(scene.SceneID, true)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}}
	s := newTestScheduler(t, 1, rend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	blocker, err := s.Submit(ctx, SubmitRequest{OwnerID: "u1", Definition: validIR("hold")})
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "blocker processing", func() bool {
		j, _ := s.Get(ctx, blocker.ID)
		return j != nil && j.Status == StatusProcessing
	})

	queued, err := s.Submit(ctx, SubmitRequest{OwnerID: "u1", Definition: validIR("skipme")})
	if err != nil {
		t.Fatal(err)
	}

	canceled, err := s.Cancel(ctx, queued.ID)
	if err != nil {
		t.Fatal(err)
	}
	if canceled.Status != StatusFailed || canceled.ErrorMessage != CancelMessage {
		t.Errorf("canceled job = %q/%q", canceled.Status, canceled.ErrorMessage)
	}

	close(release)
	waitFor(t, "blocker completed", func() bool {
		j, _ := s.Get(ctx, blocker.ID)
		return j != nil && j.Status == StatusCompleted
	})

	// the canceled job must never reach the renderer and must stay failed
	if _, ok := rendered.Load("skipme"); ok {
		t.Error("canceled queued job was rendered")
	}
	j, _ := s.Get(ctx, queued.ID)
	if j.Status != StatusFailed || j.ErrorMessage != CancelMessage {
		t.Errorf("canceled job drifted to %q/%q", j.Status, j.ErrorMessage)
	}
}

func TestCancelRunningJob(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	rend := &fakeRenderer{fn: func(ctx context.Context, _ ir.Scene, _ string) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}}
	s := newTestScheduler(t, 1, rend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	job, err := s.Submit(ctx, SubmitRequest{OwnerID: "u1", Definition: validIR("s1")})
	if err != nil {
		t.Fatal(err)
	}
	<-started

	if _, err := s.Cancel(ctx, job.ID); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "job failed", func() bool {
		j, _ := s.Get(ctx, job.ID)
		return j != nil && j.Status == StatusFailed
	})
	j, _ := s.Get(ctx, job.ID)
	if j.ErrorMessage != CancelMessage {
		t.Errorf("error message = %q, want %q", j.ErrorMessage, CancelMessage)
	}
}

func TestCancelTerminalJobConflicts(t *testing.T) {
	s := newTestScheduler(t, 1, &fakeRenderer{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	job, err := s.Submit(ctx, SubmitRequest{OwnerID: "u1", Definition: validIR("s1")})
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "job completed", func() bool {
		j, _ := s.Get(ctx, job.ID)
		return j != nil && j.Status == StatusCompleted
	})

	if _, err := s.Cancel(ctx, job.ID); !errors.IsCode(err, errors.CodeConflict) {
		t.Errorf("cancel of terminal job: err = %v, want conflict", err)
	}
}

func TestListByOwner(t *testing.T) {
	s := newTestScheduler(t, 1, &fakeRenderer{}, nil)
	ctx := context.Background()

	for _, owner := range []string{"alice", "alice", "bob"} {
		if _, err := s.Submit(ctx, SubmitRequest{OwnerID: owner, Definition: validIR("s1")}); err != nil {
			t.Fatal(err)
		}
	}

	jobs, err := s.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Fatalf("len = %d, want 2", len(jobs))
	}
	for _, j := range jobs {
		if j.OwnerID != "alice" {
			t.Errorf("owner = %q", j.OwnerID)
		}
	}
}

func TestMemoryRegistryTerminalGuard(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	job := &Job{ID: "j1", Status: StatusPending, CreatedAt: time.Now().UTC()}
	if err := r.Create(ctx, job); err != nil {
		t.Fatal(err)
	}

	if err := r.SetFailed(ctx, "j1", "boom"); err != nil {
		t.Fatal(err)
	}
	if err := r.SetCompleted(ctx, "j1", "renders/j1/final.mp4"); err != nil {
		t.Fatal(err)
	}
	got, _ := r.Get(ctx, "j1")
	if got.Status != StatusFailed || got.VideoURI != "" {
		t.Errorf("terminal job mutated: %q %q", got.Status, got.VideoURI)
	}

	claimed, err := r.SetProcessing(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	if claimed {
		t.Error("terminal job must not be claimable")
	}
}

func TestChannelQueueBlocksUntilEnqueue(t *testing.T) {
	q := NewChannelQueue(4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = q.Enqueue(ctx, "j1")
	}()

	id, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if id != "j1" {
		t.Errorf("id = %q", id)
	}
}
