// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LynnColeArt/gudavol"
)

// DefaultLogDir is where sessions are written when no directory is given.
const DefaultLogDir = "benchmark_logs"

// DeviceInfo is the part of the device description kept with a session.
type DeviceInfo struct {
	Name     string   `json:"name"`
	NumCores int      `json:"num_cores"`
	Workers  int      `json:"workers"`
	TotalMem uint64   `json:"total_mem"`
	Features []string `json:"features,omitempty"`
	Strategy string   `json:"strategy"`
}

// Session is one complete run of the harness.
type Session struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Timestamp time.Time  `json:"timestamp"`
	Version   string     `json:"version,omitempty"`
	Seed      uint64     `json:"seed"`
	Device    DeviceInfo `json:"device"`
	Results   []Result   `json:"results"`
}

// NewSession starts a session describing dev.
func NewSession(name string, dev *gudavol.Context, seed uint64) *Session {
	d := dev.Device()
	version, _ := gudavol.Version()
	return &Session{
		ID:        uuid.NewString(),
		Name:      name,
		Timestamp: time.Now().UTC(),
		Version:   version,
		Seed:      seed,
		Device: DeviceInfo{
			Name:     d.Name,
			NumCores: d.NumCores,
			Workers:  dev.Workers(),
			TotalMem: d.TotalMem,
			Features: d.Features,
			Strategy: dev.ReduceStrategy().String(),
		},
	}
}

// Save writes the session as indented JSON into dir and returns the file
// path. The file name carries the session name, the start time and the
// leading block of the session ID.
func (s *Session) Save(dir string) (string, error) {
	if dir == "" {
		dir = DefaultLogDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	id, _, _ := strings.Cut(s.ID, "-")
	path := filepath.Join(dir, fmt.Sprintf("%s_%s_%s.json", s.Name, s.Timestamp.Format("20060102_150405"), id))

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}
	return path, os.WriteFile(path, data, 0644)
}

// LoadSession reads a session written by Save.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &s, nil
}

// LatestSession returns the path of the most recently modified session in
// dir.
func LatestSession(dir string) (string, error) {
	if dir == "" {
		dir = DefaultLogDir
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return "", err
	}

	var latest string
	var latestTime time.Time
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latest = file
			latestTime = info.ModTime()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no session files in %s", dir)
	}
	return latest, nil
}

// WriteSummary prints one line per result followed by the totals.
func (s *Session) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "\nSession %s (%s) on %s, %d workers:\n", s.Name, s.ID, s.Device.Name, s.Device.Workers)
	fmt.Fprintln(w, strings.Repeat("=", 78))

	passed, failed, skipped := 0, 0, 0
	for _, r := range s.Results {
		switch r.Status {
		case StatusPass:
			passed++
			fmt.Fprintf(w, "✓ %-40s %12.0f ns/op %10.2f Mvox/s\n",
				r.Key(), r.Stats.Mean, r.Stats.VoxelsPerSec/1e6)
		case StatusSkip:
			skipped++
			fmt.Fprintf(w, "- %-40s SKIPPED: %s\n", r.Key(), r.Error)
		default:
			failed++
			fmt.Fprintf(w, "✗ %-40s FAILED: %s\n", r.Key(), r.Error)
		}
	}

	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "Total: %d | Passed: %d | Failed: %d", len(s.Results), passed, failed)
	if skipped > 0 {
		fmt.Fprintf(w, " | Skipped: %d", skipped)
	}
	fmt.Fprintln(w)
}
