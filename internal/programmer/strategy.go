// Package programmer wraps the external device-programmer tool behind
// fixed, fully non-interactive invocation profiles.
package programmer

import (
	"fmt"
	"strings"
	"time"
)

// Strategy is one invocation profile for the programmer tool. Each
// strategy maps to a protocol/baud pairing the tool understands; the
// classic fallback pairs a modern bootloader with the older one shipped
// on earlier boards.
type Strategy struct {
	Name     string
	Protocol string
	BaudRate int
	// SuccessMarker must appear in the tool output for the attempt to
	// count as a success, since some programmer builds exit 0 despite
	// a partial write.
	SuccessMarker string
}

// Attempt records a single strategy execution, in order. The job runner
// owns the ordered sequence and stops at the first success.
type Attempt struct {
	StrategyName string
	ExitCode     int
	RawOutput    string
	Duration     time.Duration
	Succeeded    bool
}

// builtin is the registry of known strategies.
var builtin = map[string]Strategy{
	"arduino": {
		Name:          "arduino",
		Protocol:      "arduino",
		BaudRate:      115200,
		SuccessMarker: "avrdude done",
	},
	"stk500v1": {
		Name:          "stk500v1",
		Protocol:      "stk500v1",
		BaudRate:      57600,
		SuccessMarker: "avrdude done",
	},
}

// Resolve maps configured strategy names to their profiles, preserving
// order. The order is configuration, not guesswork: boards with the
// older bootloader put stk500v1 first.
func Resolve(order []string) ([]Strategy, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("no programmer strategies configured")
	}
	strategies := make([]Strategy, 0, len(order))
	for _, name := range order {
		s, ok := builtin[name]
		if !ok {
			return nil, fmt.Errorf("unknown programmer strategy %q (known: %s)",
				name, strings.Join(Names(), ", "))
		}
		strategies = append(strategies, s)
	}
	return strategies, nil
}

// Names lists the known strategy names.
func Names() []string {
	return []string{"arduino", "stk500v1"}
}
