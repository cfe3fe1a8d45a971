package toolchain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ossidata/avrflash/internal/logx"
)

// fakeRunner scripts tool behavior per binary name and records calls.
type fakeRunner struct {
	results map[string]Result
	onRun   func(name string, args []string)
	calls   []string
}

func (f *fakeRunner) Run(name string, args ...string) Result {
	f.calls = append(f.calls, name)
	if f.onRun != nil {
		f.onRun(name, args)
	}
	if res, ok := f.results[name]; ok {
		return res
	}
	return Result{ExitCode: 0}
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	return "/usr/bin/" + name, nil
}

func newBuilder(t *testing.T, runner Runner) *Builder {
	t.Helper()
	dir := t.TempDir()
	return &Builder{
		Runner:    runner,
		Compiler:  "make",
		Converter: "avr-objcopy",
		BuildDir:  dir,
		Log:       logx.Nop(),
	}
}

func TestBuildSuccess(t *testing.T) {
	runner := &fakeRunner{results: map[string]Result{}}
	b := newBuilder(t, runner)

	// The converter writes the hex image as a side effect.
	runner.onRun = func(name string, args []string) {
		if name == "avr-objcopy" {
			hex := args[len(args)-1]
			os.WriteFile(hex, []byte(":00000001FF\n"), 0o644)
		}
	}

	if _, err := b.Compile("blink"); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	artifact, err := b.Convert("blink")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if artifact.Name != "blink" {
		t.Errorf("expected artifact name blink, got=%s", artifact.Name)
	}
	if artifact.SizeBytes == 0 {
		t.Error("expected non-zero artifact size")
	}
	if filepath.Base(artifact.HexPath) != "blink.hex" {
		t.Errorf("unexpected hex path: %s", artifact.HexPath)
	}
}

func TestCompileFailure(t *testing.T) {
	runner := &fakeRunner{results: map[string]Result{
		"make": {ExitCode: 2, Output: "undefined reference to `setup'"},
	}}
	b := newBuilder(t, runner)

	_, err := b.Compile("blink")
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected BuildError, got %v", err)
	}
	if buildErr.Stage != "compile" {
		t.Errorf("expected compile stage, got=%s", buildErr.Stage)
	}

	// The converter must never run as part of compilation.
	for _, call := range runner.calls {
		if call == "avr-objcopy" {
			t.Error("converter invoked during compile stage")
		}
	}
}

func TestConvertEmptyArtifact(t *testing.T) {
	runner := &fakeRunner{results: map[string]Result{}}
	b := newBuilder(t, runner)

	runner.onRun = func(name string, args []string) {
		if name == "avr-objcopy" {
			os.WriteFile(args[len(args)-1], nil, 0o644)
		}
	}

	_, err := b.Convert("blink")
	if !errors.Is(err, ErrEmptyArtifact) {
		t.Fatalf("expected ErrEmptyArtifact, got %v", err)
	}
}

func TestConvertFailure(t *testing.T) {
	runner := &fakeRunner{results: map[string]Result{
		"avr-objcopy": {ExitCode: 1, Output: "can't open file"},
	}}
	b := newBuilder(t, runner)

	_, err := b.Convert("blink")
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected BuildError, got %v", err)
	}
	if buildErr.Stage != "convert" {
		t.Errorf("expected convert stage, got=%s", buildErr.Stage)
	}
}
