// Log rotation tests
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingWriterWrite(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "galaxy.log")

	w, err := NewRotatingWriter(RotationConfig{Filename: logFile, MaxSize: 1, MaxBackups: 3})
	if err != nil {
		t.Fatalf("failed to create rotating writer: %v", err)
	}
	defer w.Close()

	msg := "array configured\n"
	n, err := w.Write([]byte(msg))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if n != len(msg) {
		t.Errorf("expected %d bytes written, got %d", len(msg), n)
	}
	if w.Size() != int64(len(msg)) {
		t.Errorf("expected size %d, got %d", len(msg), w.Size())
	}
}

func TestRotatingWriterShiftsBackups(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "galaxy.log")

	w, err := NewRotatingWriter(RotationConfig{Filename: logFile, MaxSize: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("failed to create rotating writer: %v", err)
	}
	defer w.Close()

	for i := 0; i < 3; i++ {
		w.mu.Lock()
		w.size = w.maxSize
		w.mu.Unlock()
		if _, err := w.Write([]byte("line\n")); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	backups := w.Backups()
	if len(backups) != 2 {
		t.Fatalf("expected 2 backups, got %v", backups)
	}
	if !strings.HasSuffix(backups[0], ".1") || !strings.HasSuffix(backups[1], ".2") {
		t.Errorf("unexpected backup order: %v", backups)
	}
	if _, err := os.Stat(logFile + ".3"); !os.IsNotExist(err) {
		t.Errorf("expected third backup to be pruned, stat err = %v", err)
	}
}

func TestRotationConfigDefaults(t *testing.T) {
	w, err := NewRotatingWriter(RotationConfig{Filename: filepath.Join(t.TempDir(), "a.log")})
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()

	if w.maxSize != 10*1024*1024 {
		t.Errorf("expected maxSize 10MB, got %d", w.maxSize)
	}
	if w.maxBackups != 5 {
		t.Errorf("expected maxBackups 5, got %d", w.maxBackups)
	}
}

func TestRotationConfigEmptyFilename(t *testing.T) {
	if _, err := NewRotatingWriter(RotationConfig{}); err == nil {
		t.Error("expected error for empty filename")
	}
}

func TestSetupWritesToFile(t *testing.T) {
	prev := Default()
	defer SetDefaultLogger(prev)
	SetDefaultLogger(New("galaxy"))

	logFile := filepath.Join(t.TempDir(), "daemon.log")
	closer, err := Setup(Options{Level: DEBUG, Format: FormatText, File: logFile})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	GetLogger("array").Info("outputs=%d", 12)
	closer.Close()

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "array: outputs=12") {
		t.Errorf("log file missing expected content: %s", content)
	}
}
