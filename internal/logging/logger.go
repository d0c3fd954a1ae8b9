// Package logging provides categorized file-based debug logging for
// filesage. Logs land in .filesage/logs with one file per category and are
// written only when debug logging is enabled; in normal runs every call is
// a no-op. The user-facing zap logger in cmd is separate from this.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category names one logging subsystem.
type Category string

const (
	CategoryBoot         Category = "boot"         // startup, config resolution
	CategoryScan         Category = "scan"         // directory scanning, fs watching
	CategoryCache        Category = "cache"        // suggestion cache hits/misses
	CategoryConversation Category = "conversation" // turn lifecycle, pruning
	CategoryOrganizer    Category = "organizer"    // phase transitions, reconciliation
	CategoryAPI          Category = "api"          // model provider calls
	CategoryExecutor     Category = "executor"     // move/copy/backup execution
)

// Options controls whether and how debug logs are written.
type Options struct {
	Enabled    bool
	Level      string // debug, info, warn, error
	JSONFormat bool
}

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

var (
	mu       sync.RWMutex
	loggers  = make(map[Category]*Logger)
	logsDir  string
	opts     Options
	minLevel = levelInfo
)

// Logger writes to one category's log file. A zero-value logger is a no-op.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

// Initialize points the package at a state directory (typically
// <workspace>/.filesage) and applies the options. Safe to call again with
// different options; open files are kept.
func Initialize(stateDir string, o Options) error {
	mu.Lock()
	defer mu.Unlock()

	opts = o
	switch o.Level {
	case "debug":
		minLevel = levelDebug
	case "warn", "warning":
		minLevel = levelWarn
	case "error":
		minLevel = levelError
	default:
		minLevel = levelInfo
	}

	if !o.Enabled {
		return nil
	}
	if stateDir == "" {
		return fmt.Errorf("state directory required")
	}
	logsDir = filepath.Join(stateDir, "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("create logs directory: %w", err)
	}
	return nil
}

// Enabled reports whether debug logging is active.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return opts.Enabled
}

// Get returns (or creates) the logger for a category. Returns a no-op
// logger when logging is disabled or the file cannot be opened.
func Get(category Category) *Logger {
	mu.RLock()
	if !opts.Enabled || logsDir == "" {
		mu.RUnlock()
		return &Logger{category: category}
	}
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open %s: %v\n", path, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

type jsonEntry struct {
	Timestamp int64  `json:"ts"`
	Category  string `json:"cat"`
	Level     string `json:"lvl"`
	Message   string `json:"msg"`
}

func (l *Logger) write(level int, name, format string, args ...interface{}) {
	if l.logger == nil || level < minLevel {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if opts.JSONFormat {
		data, err := json.Marshal(jsonEntry{
			Timestamp: time.Now().UnixMilli(),
			Category:  string(l.category),
			Level:     name,
			Message:   msg,
		})
		if err == nil {
			l.logger.Printf("%s", data)
			return
		}
	}
	l.logger.Printf("[%s] %s", name, msg)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(levelDebug, "DEBUG", format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.write(levelInfo, "INFO", format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(levelWarn, "WARN", format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.write(levelError, "ERROR", format, args...)
}

// CloseAll closes all open log files. Call at shutdown.
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Convenience helpers, one set per category.

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }

func Scan(format string, args ...interface{})      { Get(CategoryScan).Info(format, args...) }
func ScanDebug(format string, args ...interface{}) { Get(CategoryScan).Debug(format, args...) }
func ScanWarn(format string, args ...interface{})  { Get(CategoryScan).Warn(format, args...) }

func Cache(format string, args ...interface{})      { Get(CategoryCache).Info(format, args...) }
func CacheDebug(format string, args ...interface{}) { Get(CategoryCache).Debug(format, args...) }
func CacheWarn(format string, args ...interface{})  { Get(CategoryCache).Warn(format, args...) }

func Conversation(format string, args ...interface{}) {
	Get(CategoryConversation).Info(format, args...)
}
func ConversationDebug(format string, args ...interface{}) {
	Get(CategoryConversation).Debug(format, args...)
}

func Organizer(format string, args ...interface{}) { Get(CategoryOrganizer).Info(format, args...) }
func OrganizerDebug(format string, args ...interface{}) {
	Get(CategoryOrganizer).Debug(format, args...)
}
func OrganizerWarn(format string, args ...interface{}) {
	Get(CategoryOrganizer).Warn(format, args...)
}

func API(format string, args ...interface{})      { Get(CategoryAPI).Info(format, args...) }
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debug(format, args...) }
func APIError(format string, args ...interface{}) { Get(CategoryAPI).Error(format, args...) }

func Executor(format string, args ...interface{})     { Get(CategoryExecutor).Info(format, args...) }
func ExecutorWarn(format string, args ...interface{}) { Get(CategoryExecutor).Warn(format, args...) }
