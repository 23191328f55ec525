// Structured logging for the galaxy control host
//
// Levels, structured fields, text or JSON output and per-component
// prefixes. Components obtain their logger once with GetLogger and attach
// per-invocation fields through Entry values.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string into a LogLevel. Unknown input yields INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// OutputFormat specifies the output format for log messages
type OutputFormat int

const (
	FormatText OutputFormat = iota
	FormatJSON
)

// ParseFormat maps "json" to FormatJSON and anything else to FormatText.
func ParseFormat(s string) OutputFormat {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// Fields is a map of structured logging fields
type Fields map[string]interface{}

// sink is shared between a logger and every logger derived from it with
// WithPrefix, so reconfiguring the root reconfigures the whole tree.
type sink struct {
	mu         sync.Mutex
	writer     io.Writer
	level      LogLevel
	timeFormat string
	colorize   bool
	format     OutputFormat
	caller     bool
}

// Logger writes leveled messages under a component prefix.
type Logger struct {
	prefix string
	out    *sink
}

// Entry is a pending log record carrying structured fields.
type Entry struct {
	logger *Logger
	fields Fields
}

var (
	defaultMu     sync.Mutex
	defaultLogger *Logger

	ansiColors = map[LogLevel]string{
		DEBUG: "\x1b[36m",
		INFO:  "\x1b[32m",
		WARN:  "\x1b[33m",
		ERROR: "\x1b[31m",
	}
	ansiReset = "\x1b[0m"
)

// New creates a new logger with the given prefix writing to stderr.
func New(prefix string) *Logger {
	return &Logger{
		prefix: prefix,
		out: &sink{
			writer:     os.Stderr,
			level:      INFO,
			timeFormat: "2006-01-02 15:04:05.000",
			colorize:   os.Getenv("NO_COLOR") == "",
			format:     FormatText,
		},
	}
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level LogLevel) {
	l.out.mu.Lock()
	l.out.level = level
	l.out.mu.Unlock()
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	return l.out.level
}

// SetWriter sets the output writer
func (l *Logger) SetWriter(w io.Writer) {
	l.out.mu.Lock()
	l.out.writer = w
	l.out.mu.Unlock()
}

// SetTimeFormat sets the text-mode timestamp layout
func (l *Logger) SetTimeFormat(format string) {
	l.out.mu.Lock()
	l.out.timeFormat = format
	l.out.mu.Unlock()
}

// SetColorize enables or disables ANSI colored prefixes
func (l *Logger) SetColorize(enable bool) {
	l.out.mu.Lock()
	l.out.colorize = enable
	l.out.mu.Unlock()
}

// SetFormat sets the output format
func (l *Logger) SetFormat(format OutputFormat) {
	l.out.mu.Lock()
	l.out.format = format
	l.out.mu.Unlock()
}

// SetCaller enables file:line annotations
func (l *Logger) SetCaller(enable bool) {
	l.out.mu.Lock()
	l.out.caller = enable
	l.out.mu.Unlock()
}

// Prefix returns the component prefix.
func (l *Logger) Prefix() string {
	return l.prefix
}

// WithPrefix returns a logger for another component sharing this logger's
// output settings.
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{prefix: prefix, out: l.out}
}

// WithField returns an Entry with the given field
func (l *Logger) WithField(key string, value interface{}) *Entry {
	return &Entry{logger: l, fields: Fields{key: value}}
}

// WithFields returns an Entry with a copy of the given fields
func (l *Logger) WithFields(fields Fields) *Entry {
	return (&Entry{logger: l}).WithFields(fields)
}

// WithError returns an Entry with the error field set
func (l *Logger) WithError(err error) *Entry {
	return l.WithField("error", errString(err))
}

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}

// JSONLogEntry is the structure for JSON formatted log entries
type JSONLogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Logger    string                 `json:"logger"`
	Message   string                 `json:"message"`
	Caller    string                 `json:"caller,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func callerAt(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown:0"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

// emit is the single write path. skip counts frames above emit that belong
// to this package, so caller info points at the user's call site.
func (l *Logger) emit(level LogLevel, msg string, fields Fields, skip int) {
	s := l.out
	s.mu.Lock()
	defer s.mu.Unlock()

	if level < s.level {
		return
	}

	caller := ""
	if s.caller {
		caller = callerAt(skip + 2)
	}

	var line string
	if s.format == FormatJSON {
		line = encodeJSON(l.prefix, level, msg, caller, fields)
	} else {
		line = encodeText(s, l.prefix, level, msg, caller, fields)
	}
	fmt.Fprint(s.writer, line)
}

func encodeText(s *sink, prefix string, level LogLevel, msg, caller string, fields Fields) string {
	var sb strings.Builder
	sb.WriteString(time.Now().Format(s.timeFormat))
	sb.WriteString(" [")
	sb.WriteString(fmt.Sprintf("%-5s", level.String()))
	sb.WriteString("] ")
	if s.colorize {
		sb.WriteString(ansiColors[level])
	}
	sb.WriteString(prefix)
	if s.colorize {
		sb.WriteString(ansiReset)
	}
	sb.WriteString(": ")
	sb.WriteString(msg)
	if caller != "" {
		sb.WriteString(" (")
		sb.WriteString(caller)
		sb.WriteString(")")
	}
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%v", k, fields[k])
		}
		sb.WriteString("}")
	}
	sb.WriteString("\n")
	return sb.String()
}

func encodeJSON(prefix string, level LogLevel, msg, caller string, fields Fields) string {
	entry := JSONLogEntry{
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Level:     level.String(),
		Logger:    prefix,
		Message:   msg,
		Caller:    caller,
	}
	if len(fields) > 0 {
		entry.Fields = fields
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal log entry: %v"}`+"\n", err)
	}
	return string(data) + "\n"
}

func (l *Logger) logf(level LogLevel, msg string, args []interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.emit(level, msg, nil, 2)
}

// Debug logs a message at DEBUG level
func (l *Logger) Debug(msg string, args ...interface{}) { l.logf(DEBUG, msg, args) }

// Info logs a message at INFO level
func (l *Logger) Info(msg string, args ...interface{}) { l.logf(INFO, msg, args) }

// Warn logs a message at WARN level
func (l *Logger) Warn(msg string, args ...interface{}) { l.logf(WARN, msg, args) }

// Error logs a message at ERROR level
func (l *Logger) Error(msg string, args ...interface{}) { l.logf(ERROR, msg, args) }

// WithField adds a field to the entry
func (e *Entry) WithField(key string, value interface{}) *Entry {
	return e.WithFields(Fields{key: value})
}

// WithFields adds multiple fields to the entry
func (e *Entry) WithFields(fields Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(fields))
	for k, v := range e.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Entry{logger: e.logger, fields: merged}
}

// WithError adds an error field to the entry
func (e *Entry) WithError(err error) *Entry {
	return e.WithField("error", errString(err))
}

func (e *Entry) Debug(msg string) { e.logger.emit(DEBUG, msg, e.fields, 1) }
func (e *Entry) Info(msg string)  { e.logger.emit(INFO, msg, e.fields, 1) }
func (e *Entry) Warn(msg string)  { e.logger.emit(WARN, msg, e.fields, 1) }
func (e *Entry) Error(msg string) { e.logger.emit(ERROR, msg, e.fields, 1) }

func (e *Entry) Debugf(format string, args ...interface{}) {
	e.logger.emit(DEBUG, fmt.Sprintf(format, args...), e.fields, 1)
}

func (e *Entry) Infof(format string, args ...interface{}) {
	e.logger.emit(INFO, fmt.Sprintf(format, args...), e.fields, 1)
}

func (e *Entry) Warnf(format string, args ...interface{}) {
	e.logger.emit(WARN, fmt.Sprintf(format, args...), e.fields, 1)
}

func (e *Entry) Errorf(format string, args ...interface{}) {
	e.logger.emit(ERROR, fmt.Sprintf(format, args...), e.fields, 1)
}

// Package-level functions using the default logger

// SetDefaultLogger replaces the root logger used by GetLogger.
func SetDefaultLogger(logger *Logger) {
	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
}

// Default returns the root logger.
func Default() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New("galaxy")
		ConfigureFromEnv(defaultLogger)
	}
	return defaultLogger
}

// GetLogger returns a component logger sharing the root's output settings.
func GetLogger(prefix string) *Logger {
	return Default().WithPrefix(prefix)
}

func Debug(msg string, args ...interface{}) { Default().logf(DEBUG, msg, args) }
func Info(msg string, args ...interface{})  { Default().logf(INFO, msg, args) }
func Warn(msg string, args ...interface{})  { Default().logf(WARN, msg, args) }
func Error(msg string, args ...interface{}) { Default().logf(ERROR, msg, args) }

// ConfigureFromEnv applies environment-based configuration to the logger.
//   - GALAXY_LOG_LEVEL: DEBUG, INFO, WARN, ERROR
//   - GALAXY_LOG_FORMAT: text, json
//   - GALAXY_LOG_CALLER: any non-empty value enables caller info
//   - NO_COLOR: any non-empty value disables colors
func ConfigureFromEnv(l *Logger) {
	if v := os.Getenv("GALAXY_LOG_LEVEL"); v != "" {
		l.SetLevel(ParseLevel(v))
	}
	if v := os.Getenv("GALAXY_LOG_FORMAT"); v != "" {
		l.SetFormat(ParseFormat(v))
	}
	if os.Getenv("GALAXY_LOG_CALLER") != "" {
		l.SetCaller(true)
	}
	if os.Getenv("NO_COLOR") != "" {
		l.SetColorize(false)
	}
}

// Options configures the root logger from the daemon's [log] section.
type Options struct {
	Level      LogLevel
	Format     OutputFormat
	Caller     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Setup applies opts to the root logger. When opts.File is set output goes
// to both stderr and a rotating file; the returned closer releases it.
func Setup(opts Options) (io.Closer, error) {
	root := Default()
	root.SetLevel(opts.Level)
	root.SetFormat(opts.Format)
	root.SetCaller(opts.Caller)
	if opts.File == "" {
		return nopCloser{}, nil
	}
	w, err := NewRotatingWriter(RotationConfig{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	})
	if err != nil {
		return nil, err
	}
	root.SetColorize(false)
	root.SetWriter(io.MultiWriter(os.Stderr, w))
	return w, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
