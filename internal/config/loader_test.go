package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml",
		"addr: :9999\nengines_dir: /srv/engines\nexecutor_bin: /usr/bin/trt-executor\nexecutor_worker: /usr/bin/trt-worker\nmax_in_flight: 64\nlog_level: debug\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.EnginesDir != "/srv/engines" || cfg.ExecutorBin != "/usr/bin/trt-executor" ||
		cfg.ExecutorWorker != "/usr/bin/trt-worker" || cfg.MaxInFlight != 64 || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json",
		`{"addr":":7070","engines_dir":"/e","executor_bin":"/x","max_in_flight":8,"cors_enabled":true,"cors_origins":["https://a"]}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.EnginesDir != "/e" || cfg.ExecutorBin != "/x" || cfg.MaxInFlight != 8 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if !cfg.CORSEnabled || len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "https://a" {
		t.Fatalf("unexpected cors cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml",
		"addr = \":8081\"\nengines_dir = \"/data\"\nexecutor_bin = \"/bin/x\"\nmax_in_flight = 2\nlog_json = true\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.EnginesDir != "/data" || cfg.ExecutorBin != "/bin/x" || cfg.MaxInFlight != 2 || !cfg.LogJSON {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	if _, err := Load(filepath.Join(d, "absent.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}
