// Package store persists build/flash history and job log files under
// the state directory.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// latestPointer names the file holding the most recent job log path, so
// the newest log is found without scanning the logs directory.
const latestPointer = "latest"

// Store manages persistence of flash history records and job logs.
type Store struct {
	root string
	mu   sync.Mutex
}

// New creates a Store rooted at the given directory (the state dir).
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) historyDir() string {
	return filepath.Join(s.root, "history")
}

func (s *Store) logsDir() string {
	return filepath.Join(s.root, "logs")
}

// AddBuild appends a build record.
func (s *Store) AddBuild(r BuildRecord) error {
	return s.appendRecord("builds.json", r)
}

// AddFlash appends a flash record.
func (s *Store) AddFlash(r FlashRecord) error {
	return s.appendRecord("flashes.json", r)
}

// Builds returns all build records.
func (s *Store) Builds() ([]BuildRecord, error) {
	var records []BuildRecord
	err := s.loadRecords("builds.json", &records)
	return records, err
}

// Flashes returns all flash records.
func (s *Store) Flashes() ([]FlashRecord, error) {
	var records []FlashRecord
	err := s.loadRecords("flashes.json", &records)
	return records, err
}

// JobLogPath returns the log file path for a job, creating the logs
// directory and updating the latest-log pointer.
func (s *Store) JobLogPath(jobID string) (string, error) {
	dir := s.logsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "job-"+jobID+".log")
	if err := os.WriteFile(filepath.Join(dir, latestPointer), []byte(path+"\n"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// LatestLogPath returns the most recent job log path, or empty when no
// job has run yet.
func (s *Store) LatestLogPath() string {
	data, err := os.ReadFile(filepath.Join(s.logsDir(), latestPointer))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *Store) appendRecord(filename string, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.historyDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, filename)

	var records []json.RawMessage
	if data, err := os.ReadFile(path); err == nil {
		json.Unmarshal(data, &records)
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	records = append(records, raw)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) loadRecords(filename string, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.historyDir(), filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, dest)
}
