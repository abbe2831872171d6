package cuda

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Capability is the compute-capability version of the first accelerator.
// The zero value {0,0} is a sentinel meaning unknown/unsupported hardware;
// callers must treat it as a degraded-feature signal, not an error.
type Capability struct {
	Major int
	Minor int
}

// Detected reports whether a device was found and queried successfully.
func (c Capability) Detected() bool { return c.Major > 0 || c.Minor > 0 }

// String renders the capability the way CUDA names architectures, e.g. sm_86.
func (c Capability) String() string {
	if !c.Detected() {
		return "unknown"
	}
	return fmt.Sprintf("sm_%d%d", c.Major, c.Minor)
}

const probeTimeout = 5 * time.Second

// Probe queries the first available accelerator for its compute capability.
// All failure paths (no nvidia-smi, no device, unparseable output) degrade to
// the sentinel; Probe never returns an error.
func Probe() Capability {
	smi, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return Capability{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, smi,
		"--query-gpu=compute_cap", "--format=csv,noheader", "--id=0").Output()
	if err != nil {
		return Capability{}
	}
	cap, err := parseComputeCap(string(out))
	if err != nil {
		return Capability{}
	}
	return cap
}

// parseComputeCap parses nvidia-smi compute_cap output, e.g. "8.6\n".
// Multi-GPU hosts print one line per device; only the first is used.
func parseComputeCap(s string) (Capability, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	line = strings.TrimSpace(line)
	majs, mins, ok := strings.Cut(line, ".")
	if !ok {
		return Capability{}, fmt.Errorf("unexpected compute_cap output: %q", line)
	}
	maj, err := strconv.Atoi(strings.TrimSpace(majs))
	if err != nil {
		return Capability{}, fmt.Errorf("parse major: %w", err)
	}
	min, err := strconv.Atoi(strings.TrimSpace(mins))
	if err != nil {
		return Capability{}, fmt.Errorf("parse minor: %w", err)
	}
	if maj < 0 || min < 0 {
		return Capability{}, fmt.Errorf("negative compute_cap: %q", line)
	}
	return Capability{Major: maj, Minor: min}, nil
}
