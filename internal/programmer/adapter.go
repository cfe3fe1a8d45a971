package programmer

import (
	"fmt"
	"strings"

	"github.com/ossidata/avrflash/internal/logx"
	"github.com/ossidata/avrflash/internal/toolchain"
)

// Adapter executes one programmer strategy at a time. It never retries
// internally; fallback across strategies belongs to the job runner.
type Adapter struct {
	Runner  toolchain.Runner
	Flasher string // programmer binary, e.g. "avrdude"
	Part    string // MCU part number, e.g. "atmega328p"
	Log     *logx.Logger
}

// Flash writes the hex image to the device using the given strategy.
// The invocation is fixed and non-interactive: quiet flags suppress
// progress bars, stdin is never connected, and stderr is captured in
// the combined output.
func (a *Adapter) Flash(s Strategy, hexPath, port string) Attempt {
	args := []string{
		"-p", a.Part,
		"-c", s.Protocol,
		"-P", port,
		"-b", fmt.Sprintf("%d", s.BaudRate),
		"-D",
		"-q", "-q",
		"-U", "flash:w:" + hexPath + ":i",
	}

	res := a.Runner.Run(a.Flasher, args...)

	// Exit 0 alone is not proof of a complete write.
	succeeded := res.Ok() && strings.Contains(res.Output, s.SuccessMarker)

	a.Log.Info("programmer attempt finished", map[string]any{
		"strategy":  s.Name,
		"command":   toolchain.CommandLine(a.Flasher, args...),
		"exit_code": res.ExitCode,
		"duration":  res.Duration.String(),
		"succeeded": succeeded,
		"output":    res.Output,
	})

	return Attempt{
		StrategyName: s.Name,
		ExitCode:     res.ExitCode,
		RawOutput:    res.Output,
		Duration:     res.Duration,
		Succeeded:    succeeded,
	}
}
