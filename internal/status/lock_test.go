package status

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if _, err := os.Stat(lock.Path); err != nil {
		t.Fatalf("lock file not created: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(lock.Path); !os.IsNotExist(err) {
		t.Error("lock file still present after release")
	}
}

func TestAcquireBusyWhenHolderAlive(t *testing.T) {
	dir := t.TempDir()

	// This test process itself plays the live holder.
	path := filepath.Join(dir, LockFileName)
	os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)

	_, err := AcquireLock(dir)
	var busy *BusyError
	if !errors.As(err, &busy) {
		t.Fatalf("expected BusyError, got %v", err)
	}
	if busy.Pid != os.Getpid() {
		t.Errorf("expected holder pid %d, got %d", os.Getpid(), busy.Pid)
	}
}

func TestAcquireStealsStaleLock(t *testing.T) {
	dir := t.TempDir()

	// Pid far beyond pid_max on any sane system.
	path := filepath.Join(dir, LockFileName)
	os.WriteFile(path, []byte("99999999\n"), 0o644)

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("expected stale lock to be stolen: %v", err)
	}
	lock.Release()
}

func TestAcquireStealsGarbageLock(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, LockFileName), []byte("not-a-pid\n"), 0o644)

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("expected garbage lock to be stolen: %v", err)
	}
	lock.Release()
}

func TestReleaseIdempotent(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("first Release failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("second Release failed: %v", err)
	}
}
