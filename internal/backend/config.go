package backend

import "trtd/internal/cuda"

// ParallelismMode selects the execution topology requested from the executor.
type ParallelismMode string

const (
	// ModeLeader runs a single process-local executor instance; no
	// distributed communication substrate is engaged.
	ModeLeader ParallelismMode = "leader"
	// ModeOrchestrator coordinates worldSize shards through a launched
	// worker executable.
	ModeOrchestrator ParallelismMode = "orchestrator"
)

// ShardingMetadata is the slice of the engine configuration that drives
// topology selection.
type ShardingMetadata struct {
	WorldSize int
}

// ExecutorConfig is the immutable configuration handed to the executor at
// construction.
type ExecutorConfig struct {
	Mode ParallelismMode
	// OrchestratorWorkerPath is set iff Mode is ModeOrchestrator and is
	// passed through to the executor unmodified.
	OrchestratorWorkerPath string
	KVCacheEnabled         bool
	ChunkedContextEnabled  bool
}

// BuildExecutorConfig derives the executor configuration from sharding
// metadata and the probed hardware capability. It cannot fail: worldSize < 1
// is rejected upstream when the engine config is parsed, and the capability
// sentinel {0,0} correctly disables chunked context.
func BuildExecutorConfig(meta ShardingMetadata, cap cuda.Capability, workerPath string) ExecutorConfig {
	cfg := ExecutorConfig{
		// A KV cache for attention state is always beneficial for
		// autoregressive decoding.
		KVCacheEnabled: true,
		// Chunked context is only correctly supported from sm_80 onward.
		ChunkedContextEnabled: cap.Major >= 8,
	}
	if meta.WorldSize == 1 {
		cfg.Mode = ModeLeader
	} else {
		cfg.Mode = ModeOrchestrator
		cfg.OrchestratorWorkerPath = workerPath
	}
	return cfg
}
