package toolchain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ossidata/avrflash/internal/logx"
)

// ErrEmptyArtifact indicates the converter exited zero but produced a
// zero-length image. Some toolchains exit 0 on partial failure, so this
// is a distinct error rather than success.
var ErrEmptyArtifact = errors.New("converted artifact is empty")

// BuildError wraps a failed compile or convert step with the tool
// output for the job log.
type BuildError struct {
	Stage    string // "compile" or "convert"
	ExitCode int
	Output   string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s failed with exit code %d", e.Stage, e.ExitCode)
}

// Artifact is the product of a successful build: the linked binary and
// its converted flashable image. Discarded after flashing, never cached.
type Artifact struct {
	Name       string
	BinaryPath string
	HexPath    string
	SizeBytes  int64
}

// Builder invokes the external compiler/linker and image converter.
type Builder struct {
	Runner    Runner
	Compiler  string // compiler/linker binary, e.g. "make"
	Converter string // image converter binary, e.g. "avr-objcopy"
	BuildDir  string // absolute build-output directory
	Log       *logx.Logger
}

// Compile runs the compiler/linker for the named artifact and returns
// the linked binary path. Prior artifacts are overwritten in place.
func (b *Builder) Compile(name string) (string, error) {
	binPath := filepath.Join(b.BuildDir, name+".elf")

	res := b.Runner.Run(b.Compiler, name)
	b.Log.Info("compile finished", map[string]any{
		"command":   CommandLine(b.Compiler, name),
		"exit_code": res.ExitCode,
		"duration":  res.Duration.String(),
		"output":    res.Output,
	})
	if !res.Ok() {
		return "", &BuildError{Stage: "compile", ExitCode: res.ExitCode, Output: res.Output}
	}
	return binPath, nil
}

// Convert produces the flashable hex image from the linked binary. A
// zero-length output is ErrEmptyArtifact, not success.
func (b *Builder) Convert(name string) (*Artifact, error) {
	binPath := filepath.Join(b.BuildDir, name+".elf")
	hexPath := filepath.Join(b.BuildDir, name+".hex")

	res := b.Runner.Run(b.Converter, "-O", "ihex", "-R", ".eeprom", binPath, hexPath)
	b.Log.Info("convert finished", map[string]any{
		"command":   CommandLine(b.Converter, "-O", "ihex", binPath, hexPath),
		"exit_code": res.ExitCode,
		"duration":  res.Duration.String(),
		"output":    res.Output,
	})
	if !res.Ok() {
		return nil, &BuildError{Stage: "convert", ExitCode: res.ExitCode, Output: res.Output}
	}

	info, err := os.Stat(hexPath)
	if err != nil {
		return nil, fmt.Errorf("stat converted image: %w", err)
	}
	if info.Size() == 0 {
		return nil, ErrEmptyArtifact
	}

	return &Artifact{
		Name:       name,
		BinaryPath: binPath,
		HexPath:    hexPath,
		SizeBytes:  info.Size(),
	}, nil
}
