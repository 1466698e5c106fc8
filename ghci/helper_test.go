package ghci

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

var (
	mockBuildOnce  sync.Once
	mockBinaryPath string
	errMockBuild   error
)

func buildMockBinary() {
	dir, err := os.MkdirTemp("", "mock-ghci-*")
	if err != nil {
		errMockBuild = fmt.Errorf("tmpdir: %w", err)
		return
	}
	mockBinaryPath = filepath.Join(dir, "mock-ghci")
	cmd := exec.Command("go", "build", "-o", mockBinaryPath, "./testdata/mock-ghci/main.go")
	if out, err := cmd.CombinedOutput(); err != nil {
		errMockBuild = fmt.Errorf("build mock: %w: %s", err, out)
		_ = os.RemoveAll(dir)
	}
}

func mustBuild(t *testing.T) string {
	t.Helper()
	mockBuildOnce.Do(buildMockBinary)
	if errMockBuild != nil {
		t.Fatalf("mock binary build failed: %v", errMockBuild)
	}
	return mockBinaryPath
}

// mockConfig returns a Config that runs the mock interpreter in the given
// startup mode ("" for normal behavior).
func mockConfig(t *testing.T, mode string) Config {
	t.Helper()
	return Config{
		Path: mustBuild(t),
		Env:  append(os.Environ(), "MOCK_GHCI_MODE="+mode),
	}
}

// newTestSession starts a session against the mock and closes it when the
// test ends unless the test already did.
func newTestSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() {
		if s.State() != StateClosed {
			_ = s.Close()
		}
	})
	return s
}

// waitExited polls until the child has exited without reaping it.
func waitExited(t *testing.T, s *Session) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !s.child.exited() {
		if time.Now().After(deadline) {
			t.Fatal("interpreter did not exit")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
