package config

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// TestExitfExitsWithCode1 runs Exitf in a subprocess because os.Exit cannot
// be intercepted in-process.
func TestExitfExitsWithCode1(t *testing.T) {
	if os.Getenv("SOULBOUND_TEST_EXITF_SUBPROCESS") == "1" {
		Exitf("fatal: %s", "store unavailable")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitfExitsWithCode1$")
	cmd.Env = append(os.Environ(), "SOULBOUND_TEST_EXITF_SUBPROCESS=1")

	out, err := cmd.CombinedOutput()

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected *exec.ExitError, got %T: %v", err, err)
	}
	if exitErr.ExitCode() != 1 {
		t.Fatalf("exit code = %d, want 1", exitErr.ExitCode())
	}
	if !strings.Contains(string(out), "fatal: store unavailable") {
		t.Fatalf("stderr = %q, want fatal message", string(out))
	}
}

func TestWriteExitMessageAppendsNewline(t *testing.T) {
	var buf bytes.Buffer
	writeExitMessage(&buf, "parse flags: %v", "bad port")
	if got := buf.String(); got != "parse flags: bad port\n" {
		t.Fatalf("message = %q", got)
	}
}
