package backend

import (
	"testing"

	"trtd/internal/cuda"
)

func TestBuildExecutorConfigLeaderMode(t *testing.T) {
	cfg := BuildExecutorConfig(ShardingMetadata{WorldSize: 1}, cuda.Capability{Major: 8, Minor: 6}, "/opt/worker")
	if cfg.Mode != ModeLeader {
		t.Fatalf("expected leader mode, got %s", cfg.Mode)
	}
	if cfg.OrchestratorWorkerPath != "" {
		t.Fatalf("leader mode must not carry a worker path, got %q", cfg.OrchestratorWorkerPath)
	}
}

func TestBuildExecutorConfigOrchestratorMode(t *testing.T) {
	for _, ws := range []int{2, 4, 8} {
		cfg := BuildExecutorConfig(ShardingMetadata{WorldSize: ws}, cuda.Capability{}, "/opt/worker")
		if cfg.Mode != ModeOrchestrator {
			t.Fatalf("world_size=%d: expected orchestrator mode, got %s", ws, cfg.Mode)
		}
		if cfg.OrchestratorWorkerPath != "/opt/worker" {
			t.Fatalf("world_size=%d: worker path not carried through: %q", ws, cfg.OrchestratorWorkerPath)
		}
	}
}

func TestBuildExecutorConfigChunkedContext(t *testing.T) {
	cases := []struct {
		cap  cuda.Capability
		want bool
	}{
		{cuda.Capability{}, false}, // sentinel: unknown hardware
		{cuda.Capability{Major: 7, Minor: 5}, false},
		{cuda.Capability{Major: 8, Minor: 0}, true},
		{cuda.Capability{Major: 8, Minor: 6}, true},
		{cuda.Capability{Major: 9, Minor: 0}, true},
	}
	for _, c := range cases {
		cfg := BuildExecutorConfig(ShardingMetadata{WorldSize: 1}, c.cap, "")
		if cfg.ChunkedContextEnabled != c.want {
			t.Fatalf("%s: expected chunked_context=%v, got %v", c.cap, c.want, cfg.ChunkedContextEnabled)
		}
	}
}

func TestBuildExecutorConfigKVCacheAlwaysOn(t *testing.T) {
	for _, ws := range []int{1, 2} {
		for _, cap := range []cuda.Capability{{}, {Major: 9}} {
			cfg := BuildExecutorConfig(ShardingMetadata{WorldSize: ws}, cap, "/w")
			if !cfg.KVCacheEnabled {
				t.Fatalf("kv cache must always be enabled (ws=%d cap=%s)", ws, cap)
			}
		}
	}
}
