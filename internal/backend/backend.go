package backend

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trtd/internal/cuda"
	"trtd/pkg/types"
)

// Config holds the tunables for Backend construction.
type Config struct {
	// EnginesDir contains the engine artifacts, including config.json.
	EnginesDir string
	// ExecutorBin is the executor runtime binary spawned by the backend.
	ExecutorBin string
	// ExecutorWorker is the worker executable launched by the executor in
	// orchestrator mode. Unused for single-engine deployments.
	ExecutorWorker string
	// MaxInFlight caps concurrently submitted-and-undrained requests.
	// Zero means unlimited.
	MaxInFlight int
	// StartupTimeout bounds the executor configure/ready handshake.
	StartupTimeout time.Duration
	Logger         zerolog.Logger
}

// startExecutor is swapped by tests to construct backends around a fake
// executor without spawning a process.
var startExecutor = func(cfg procConfig) (Executor, error) {
	return newProcExecutor(cfg)
}

// probeCapability is swapped by tests to pin the hardware probe result.
var probeCapability = cuda.Probe

// Backend owns the opaque executor handle and the parsed engine
// configuration for the process lifetime. Exactly one Backend exists per
// process; it is never copied, and Close must run only after all in-flight
// drains have finished.
type Backend struct {
	engine     EngineConfig
	execCfg    ExecutorConfig
	capability cuda.Capability
	exec       Executor
	id         string
	inflight   chan struct{} // nil when MaxInFlight is 0
	log        zerolog.Logger
}

// New constructs the backend: parse engine config, probe hardware, derive the
// executor configuration, then start the executor. Every failure is fatal;
// there is no partial or degraded construction state.
func New(cfg Config) (*Backend, error) {
	engine, err := LoadEngineConfig(cfg.EnginesDir)
	if err != nil {
		return nil, err
	}

	meta := engine.Sharding()
	if meta.WorldSize > 1 {
		if fi, serr := os.Stat(cfg.ExecutorWorker); serr != nil || fi.IsDir() {
			return nil, fmt.Errorf("sharded engine (world_size=%d) requires an orchestrator worker executable: %q not usable",
				meta.WorldSize, cfg.ExecutorWorker)
		}
	}

	capability := probeCapability()
	execCfg := BuildExecutorConfig(meta, capability, cfg.ExecutorWorker)

	log := cfg.Logger.With().Str("component", "backend").Logger()
	log.Info().
		Str("version", engine.Version).
		Int("world_size", meta.WorldSize).
		Str("mode", string(execCfg.Mode)).
		Str("compute_capability", capability.String()).
		Bool("chunked_context", execCfg.ChunkedContextEnabled).
		Msg("engine configuration loaded")

	exec, err := startExecutor(procConfig{
		Bin:            cfg.ExecutorBin,
		EnginesDir:     cfg.EnginesDir,
		ModelType:      ModelTypeDecoderOnly,
		Executor:       execCfg,
		StartupTimeout: cfg.StartupTimeout,
		Log:            log,
	})
	if err != nil {
		return nil, err
	}

	b := &Backend{
		engine:     engine,
		execCfg:    execCfg,
		capability: capability,
		exec:       exec,
		id:         uuid.NewString(),
		log:        log,
	}
	if cfg.MaxInFlight > 0 {
		b.inflight = make(chan struct{}, cfg.MaxInFlight)
	}
	return b, nil
}

// Ready reports whether the executor accepted initialization and is still
// owned by this backend.
func (b *Backend) Ready() bool { return b.exec != nil }

// Info summarizes the running engine for the /info endpoint.
func (b *Backend) Info() types.InfoResponse {
	return types.InfoResponse{
		Version:               b.engine.Version,
		WorldSize:             b.engine.Sharding().WorldSize,
		ParallelismMode:       string(b.execCfg.Mode),
		KVCacheEnabled:        b.execCfg.KVCacheEnabled,
		ChunkedContextEnabled: b.execCfg.ChunkedContextEnabled,
		ComputeCapability:     b.capability.String(),
		InstanceID:            b.id,
	}
}

// Close releases the executor. Callers must ensure no drain is in flight.
func (b *Backend) Close() error {
	if b.exec == nil {
		return nil
	}
	err := b.exec.Close()
	b.exec = nil
	return err
}
