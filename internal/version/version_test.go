package version

import "testing"

func TestVersionDefaults(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}

	// Stays "unknown" unless ldflags set it
	if Version != "unknown" {
		t.Logf("Version is: %s (set via ldflags)", Version)
	}
}

func TestBuildInfoInitialized(t *testing.T) {
	if BuildTime == "" {
		t.Error("BuildTime should be initialized")
	}
	if GitCommit == "" {
		t.Error("GitCommit should be initialized")
	}
}
