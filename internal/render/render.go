// Package render formats human-facing CLI output.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ossidata/avrflash/internal/serialport"
	"github.com/ossidata/avrflash/internal/store"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78")).Bold(true)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
)

// Success renders the success summary.
func Success(artifact, logPath string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s flashed\n", successStyle.Render("✓"), artifact)
	fmt.Fprintf(&b, "%s\n", dimStyle.Render("log: "+logPath))
	return b.String()
}

// Failure renders the failure summary with the likely cause and the
// log path for post-mortem reading.
func Failure(artifact, logPath string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s flashing %s failed\n", failureStyle.Render("✗"), artifact)
	b.WriteString("Likely causes: board not in bootloader mode, wrong port, or stale port holder.\n")
	b.WriteString("Re-running usually works; the port is reset between invocations.\n")
	fmt.Fprintf(&b, "%s\n", dimStyle.Render("log: "+logPath))
	return b.String()
}

// Timeout renders the timeout summary.
func Timeout(artifact string, logPath string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s flashing %s timed out; the session was killed\n", warnStyle.Render("⏱"), artifact)
	b.WriteString("The next invocation will reset the port before flashing.\n")
	if logPath != "" {
		fmt.Fprintf(&b, "%s\n", dimStyle.Render("log: "+logPath))
	}
	return b.String()
}

// Ports renders the serial port table.
func Ports(ports []serialport.PortInfo) string {
	if len(ports) == 0 {
		return dimStyle.Render("no serial ports found") + "\n"
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("PORT                     USB  VID   PID   SERIAL"))
	b.WriteString("\n")
	for _, p := range ports {
		usb := " "
		if p.IsUSB {
			usb = "*"
		}
		fmt.Fprintf(&b, "%-24s %-4s %-5s %-5s %s\n", p.Name, usb, p.VID, p.PID, p.SerialNumber)
	}
	return b.String()
}

// Builds renders the build history table, newest last.
func Builds(records []store.BuildRecord) string {
	if len(records) == 0 {
		return dimStyle.Render("no build history yet") + "\n"
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("WHEN                 ARTIFACT     RESULT    SIZE      DURATION"))
	b.WriteString("\n")
	for _, r := range records {
		result := failureStyle.Render("failed")
		if r.Success {
			result = successStyle.Render("ok    ")
		}
		fmt.Fprintf(&b, "%-20s %-12s %s    %-9s %s\n",
			r.Timestamp.Format("2006-01-02 15:04:05"), r.Artifact, result,
			fmt.Sprintf("%dB", r.SizeBytes), r.Duration)
	}
	return b.String()
}

// Flashes renders the flash history table, newest last.
func Flashes(records []store.FlashRecord) string {
	if len(records) == 0 {
		return dimStyle.Render("no flash history yet") + "\n"
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("WHEN                 ARTIFACT     PORT             RESULT    STRATEGY"))
	b.WriteString("\n")
	for _, r := range records {
		result := failureStyle.Render("failed")
		if r.Success {
			result = successStyle.Render("ok    ")
		}
		fmt.Fprintf(&b, "%-20s %-12s %-16s %s    %s\n",
			r.Timestamp.Format("2006-01-02 15:04:05"), r.Artifact, r.Port, result, r.Strategy)
	}
	return b.String()
}
