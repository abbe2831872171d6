package backend

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"trtd/internal/cuda"
)

// fakeExecutor scripts completion events per request and records the native
// requests it receives.
type fakeExecutor struct {
	mu         sync.Mutex
	nextID     uint64
	requests   map[RequestID]Request
	batches    map[RequestID][][]Response // scripted AwaitResponses results
	script     [][]Response               // assigned to each request in enqueue order
	enqueueErr error
	closed     bool
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		requests: make(map[RequestID]Request),
		batches:  make(map[RequestID][][]Response),
	}
}

// scriptNext queues batches for the next enqueued request.
func (f *fakeExecutor) scriptNext(batches ...[]Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = batches
}

func (f *fakeExecutor) EnqueueRequest(req Request) (RequestID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return 0, f.enqueueErr
	}
	f.nextID++
	id := RequestID(f.nextID)
	f.requests[id] = req
	if f.script != nil {
		f.batches[id] = f.script
		f.script = nil
	}
	return id, nil
}

func (f *fakeExecutor) AwaitResponses(id RequestID) []Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.batches[id]
	if len(q) == 0 {
		// Never block tests: behave like a drained stream.
		return []Response{{ID: id, Error: "no scripted events"}}
	}
	batch := q[0]
	f.batches[id] = q[1:]
	for i := range batch {
		batch[i].ID = id
	}
	return batch
}

func (f *fakeExecutor) LatestIterationStats() IterationStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return IterationStats{NumActiveRequests: len(f.batches)}
}

func (f *fakeExecutor) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// writeEngineConfig drops a config.json into dir and returns dir.
func writeEngineConfig(t *testing.T, dir, content string) string {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, engineConfigFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write engine config: %v", err)
	}
	return dir
}

const singleEngineConfig = `{"version":"0.11.0","pretrained_config":{"mapping":{"world_size":1}}}`

// newTestBackend builds a backend around a fake executor with a pinned
// capability, restoring the swapped package hooks on cleanup.
func newTestBackend(t *testing.T, fake *fakeExecutor, cfg Config, cap cuda.Capability) *Backend {
	t.Helper()
	if cfg.EnginesDir == "" {
		cfg.EnginesDir = writeEngineConfig(t, t.TempDir(), singleEngineConfig)
	}
	cfg.Logger = zerolog.Nop()

	origStart, origProbe := startExecutor, probeCapability
	startExecutor = func(procConfig) (Executor, error) { return fake, nil }
	probeCapability = func() cuda.Capability { return cap }
	t.Cleanup(func() {
		startExecutor = origStart
		probeCapability = origProbe
	})

	b, err := New(cfg)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	return b
}
