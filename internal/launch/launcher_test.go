//go:build !windows

package launch

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestDetectHost(t *testing.T) {
	h := DetectHost()
	if h == HostUnknown {
		t.Skipf("unrecognized host OS")
	}
	if _, err := ForHost(h); err != nil {
		t.Fatalf("no launcher for detected host %s: %v", h, err)
	}
}

func TestForHostUnknown(t *testing.T) {
	if _, err := ForHost(HostUnknown); err == nil {
		t.Error("expected error for unknown host")
	}
}

func TestLaunchWritesLogAndReturnsImmediately(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "job.log")

	launcher, err := ForHost(DetectHost())
	if err != nil {
		t.Fatalf("ForHost failed: %v", err)
	}

	start := time.Now()
	session, err := launcher.Launch("/bin/sh", []string{"-c", "echo session-started"}, logPath)
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Launch blocked for %v; must return at session start", elapsed)
	}
	if session.Pid <= 0 {
		t.Fatalf("expected valid session pid, got %d", session.Pid)
	}

	// The detached child owns the log descriptor; give it a moment.
	deadline := time.Now().Add(5 * time.Second)
	for {
		data, _ := os.ReadFile(logPath)
		if strings.Contains(string(data), "session-started") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("detached session never wrote to the log")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestSessionKill(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "job.log")

	launcher, _ := ForHost(DetectHost())
	session, err := launcher.Launch("/bin/sh", []string{"-c", "sleep 60"}, logPath)
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}

	if err := session.Kill(); err != nil {
		t.Fatalf("Kill failed: %v", err)
	}

	// The session leader is still this process's child; reap it to
	// confirm it actually died instead of sleeping out the minute.
	var status syscall.WaitStatus
	deadline := time.Now().Add(5 * time.Second)
	for {
		pid, err := syscall.Wait4(session.Pid, &status, syscall.WNOHANG, nil)
		if pid == session.Pid || err == syscall.ECHILD {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session pid %d still alive after kill", session.Pid)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestKillMissingSessionIsNoError(t *testing.T) {
	s := &Session{Pid: 99999999}
	if err := s.Kill(); err != nil {
		t.Fatalf("killing a gone session should be a no-op: %v", err)
	}
}
