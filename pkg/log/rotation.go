// Size-based log file rotation
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	// Filename is the path to the active log file.
	Filename string

	// MaxSize is the size in megabytes that triggers a rotation. Default 10.
	MaxSize int

	// MaxBackups is the number of rotated files kept. Default 5.
	MaxBackups int
}

// RotatingWriter is an io.Writer that shifts galaxy.log to galaxy.log.1,
// galaxy.log.1 to galaxy.log.2 and so on once the active file is full.
type RotatingWriter struct {
	mu         sync.Mutex
	filename   string
	maxSize    int64
	maxBackups int
	size       int64
	file       *os.File
}

// NewRotatingWriter opens (or creates) the active log file.
func NewRotatingWriter(cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.Filename == "" {
		return nil, fmt.Errorf("log: filename is required")
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 5
	}
	w := &RotatingWriter{
		filename:   cfg.Filename,
		maxSize:    int64(cfg.MaxSize) * 1024 * 1024,
		maxBackups: cfg.MaxBackups,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) open() error {
	if err := os.MkdirAll(filepath.Dir(w.filename), 0755); err != nil {
		return fmt.Errorf("log: create directory: %w", err)
	}
	f, err := os.OpenFile(w.filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("log: open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("log: stat file: %w", err)
	}
	w.file = f
	w.size = info.Size()
	return nil
}

// Write implements io.Writer.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingWriter) backupName(i int) string {
	return fmt.Sprintf("%s.%d", w.filename, i)
}

func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("log: close for rotation: %w", err)
	}
	os.Remove(w.backupName(w.maxBackups))
	for i := w.maxBackups - 1; i >= 1; i-- {
		os.Rename(w.backupName(i), w.backupName(i+1))
	}
	if err := os.Rename(w.filename, w.backupName(1)); err != nil {
		w.open()
		return fmt.Errorf("log: rotate: %w", err)
	}
	return w.open()
}

// Backups lists existing rotated files, newest first.
func (w *RotatingWriter) Backups() []string {
	matches, _ := filepath.Glob(w.filename + ".*")
	var out []string
	for _, m := range matches {
		suffix := strings.TrimPrefix(m, w.filename+".")
		if suffix != "" && strings.Trim(suffix, "0123456789") == "" {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return len(out[i]) < len(out[j]) || (len(out[i]) == len(out[j]) && out[i] < out[j])
	})
	return out
}

// Size returns the active file's size in bytes.
func (w *RotatingWriter) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Close closes the active file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
