// Package status implements the file-based completion protocol between
// the detached job runner and the polling orchestrator.
//
// The two processes share no memory and no wait relationship; the only
// signal across the boundary is this append-only file. A record is
// terminal only once the DONE marker is present — an outcome line on
// its own means the job is still cleaning up (or crashed mid-cleanup),
// and pollers must keep treating it as "still running".
package status

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	lineSuccess = "SUCCESS"
	lineFailed  = "FAILED"
	markerDone  = "DONE"

	// FileName is the well-known status file name inside the state dir.
	FileName = "status"
)

// Record is a consumed terminal status.
type Record struct {
	Succeeded bool
	Artifact  string
	Timestamp time.Time
}

// Channel reads and writes the single-slot status file.
type Channel struct {
	Path string
}

// NewChannel returns a channel backed by the well-known file in stateDir.
func NewChannel(stateDir string) *Channel {
	return &Channel{Path: filepath.Join(stateDir, FileName)}
}

// Clear removes the backing file so a new job cannot observe a previous
// job's terminal marker.
func (c *Channel) Clear() error {
	err := os.Remove(c.Path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// WriteOutcome appends the outcome line. The job runner calls this
// first, before its cleanup, so a crash mid-cleanup still leaves a
// readable (if unterminated) outcome.
func (c *Channel) WriteOutcome(succeeded bool, artifact string) error {
	kind := lineFailed
	if succeeded {
		kind = lineSuccess
	}
	line := fmt.Sprintf("%s|%s|%s\n", kind, artifact, time.Now().UTC().Format(time.RFC3339))
	return c.append(line)
}

// WriteDone appends the terminal marker. Called only after all cleanup
// inside the detached job has finished, never before the outcome line.
func (c *Channel) WriteDone() error {
	return c.append(markerDone + "\n")
}

// Poll is non-blocking. It returns nil until both the outcome line and
// the terminal marker are present; unknown lines are ignored.
func (c *Channel) Poll() (*Record, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var record *Record
	var malformed error
	done := false
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == markerDone:
			done = true
		case strings.HasPrefix(line, lineSuccess+"|") || strings.HasPrefix(line, lineFailed+"|"):
			parsed, err := parseOutcome(line)
			if err != nil {
				// A torn outcome line is indistinguishable from a
				// write still in progress until the terminal marker
				// lands, so it cannot be surfaced yet.
				malformed = err
				continue
			}
			record = parsed
		}
	}

	if !done {
		return nil, nil
	}
	if record == nil {
		if malformed != nil {
			return nil, malformed
		}
		return nil, nil
	}
	return record, nil
}

func parseOutcome(line string) (*Record, error) {
	parts := strings.Split(line, "|")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed outcome line %q", line)
	}
	ts, err := time.Parse(time.RFC3339, parts[2])
	if err != nil {
		return nil, fmt.Errorf("malformed outcome timestamp %q: %w", parts[2], err)
	}
	return &Record{
		Succeeded: parts[0] == lineSuccess,
		Artifact:  parts[1],
		Timestamp: ts,
	}, nil
}

func (c *Channel) append(line string) error {
	f, err := os.OpenFile(c.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
