package render

import (
	"strings"
	"testing"
	"time"

	"github.com/ossidata/avrflash/internal/serialport"
	"github.com/ossidata/avrflash/internal/store"
)

func TestFailureMentionsLog(t *testing.T) {
	out := Failure("blink", "/tmp/job-1.log")
	if !strings.Contains(out, "blink") {
		t.Error("expected artifact name in summary")
	}
	if !strings.Contains(out, "/tmp/job-1.log") {
		t.Error("expected log path in summary")
	}
	if !strings.Contains(out, "Likely causes") {
		t.Error("expected actionable remediation hint")
	}
}

func TestPortsEmpty(t *testing.T) {
	out := Ports(nil)
	if !strings.Contains(out, "no serial ports") {
		t.Errorf("unexpected empty-table output: %q", out)
	}
}

func TestPortsTable(t *testing.T) {
	out := Ports([]serialport.PortInfo{
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043"},
	})
	if !strings.Contains(out, "/dev/ttyACM0") || !strings.Contains(out, "2341") {
		t.Errorf("port row missing fields: %q", out)
	}
}

func TestBuildsTable(t *testing.T) {
	out := Builds([]store.BuildRecord{
		{Artifact: "blink", Success: true, SizeBytes: 1024, Duration: "1.2s", Timestamp: time.Now()},
	})
	if !strings.Contains(out, "blink") || !strings.Contains(out, "1024B") {
		t.Errorf("build row missing fields: %q", out)
	}
	if empty := Builds(nil); !strings.Contains(empty, "no build history") {
		t.Errorf("unexpected empty-table output: %q", empty)
	}
}

func TestFlashesTable(t *testing.T) {
	out := Flashes([]store.FlashRecord{
		{Artifact: "blink", Port: "/dev/ttyACM0", Success: true, Strategy: "arduino", Timestamp: time.Now()},
	})
	if !strings.Contains(out, "blink") || !strings.Contains(out, "arduino") {
		t.Errorf("history row missing fields: %q", out)
	}
}
