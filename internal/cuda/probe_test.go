package cuda

import "testing"

func TestParseComputeCap(t *testing.T) {
	cap, err := parseComputeCap("8.6\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cap.Major != 8 || cap.Minor != 6 {
		t.Fatalf("expected 8.6, got %+v", cap)
	}
	if cap.String() != "sm_86" {
		t.Fatalf("expected sm_86, got %s", cap.String())
	}
}

func TestParseComputeCapMultiGPUUsesFirstLine(t *testing.T) {
	cap, err := parseComputeCap("9.0\n8.6\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cap.Major != 9 || cap.Minor != 0 {
		t.Fatalf("expected 9.0, got %+v", cap)
	}
}

func TestParseComputeCapRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "86", "a.b", "8.", "-1.2"} {
		if _, err := parseComputeCap(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestSentinelString(t *testing.T) {
	var cap Capability
	if cap.Detected() {
		t.Fatalf("zero capability must not report detected")
	}
	if cap.String() != "unknown" {
		t.Fatalf("expected unknown, got %s", cap.String())
	}
}
