// Package executor applies an approved move plan. It owns every filesystem
// side effect the negotiation core deliberately avoids: creating
// destination directories, resolving collisions, backing files up, and
// the moves themselves.
package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filesage/internal/config"
	"filesage/internal/logging"
	"filesage/internal/organizer"
)

// Executor applies suggestions relative to a base directory.
type Executor struct {
	baseDir string

	// DryRun plans moves without touching the filesystem.
	DryRun bool

	// Backup copies each file into .filesage/backup/<timestamp>/ before
	// moving it.
	Backup bool

	backupDir string
	log       *logging.Logger
}

// Move records one applied (or planned) move.
type Move struct {
	Source      string
	Destination string
	BackedUp    bool
}

// Report summarizes an execution run.
type Report struct {
	Moves   []Move
	Skipped int
	Errors  []error
}

// New creates an executor rooted at baseDir.
func New(baseDir string) *Executor {
	return &Executor{
		baseDir: baseDir,
		log:     logging.Get(logging.CategoryExecutor),
	}
}

// Apply executes every suggestion. Individual failures are collected, not
// fatal; the report carries them. Cancelling ctx stops between files.
func (e *Executor) Apply(ctx context.Context, suggestions []organizer.Suggestion) (*Report, error) {
	report := &Report{}

	if e.Backup && !e.DryRun {
		e.backupDir = filepath.Join(e.baseDir, config.StateDirName, "backup",
			time.Now().Format("20060102-150405"))
		if err := os.MkdirAll(e.backupDir, 0755); err != nil {
			return nil, fmt.Errorf("create backup directory: %w", err)
		}
	}

	for _, s := range suggestions {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if s.File == nil || s.SuggestedPath == "" {
			report.Skipped++
			continue
		}

		dest, err := e.resolveDestination(s.SuggestedPath)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("%s: %w", s.File.Name, err))
			continue
		}
		if dest == s.File.Path {
			report.Skipped++
			continue
		}

		if e.DryRun {
			report.Moves = append(report.Moves, Move{Source: s.File.Path, Destination: dest})
			continue
		}

		backedUp := false
		if e.Backup {
			if err := e.backupFile(s.File.Path); err != nil {
				e.log.Warn("backup of %s failed: %v", s.File.Name, err)
			} else {
				backedUp = true
			}
		}

		if err := moveFile(s.File.Path, dest); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("move %s: %w", s.File.Name, err))
			continue
		}

		e.log.Info("moved %s -> %s", s.File.Path, dest)
		report.Moves = append(report.Moves, Move{Source: s.File.Path, Destination: dest, BackedUp: backedUp})
	}

	return report, nil
}

// resolveDestination anchors a suggested relative path under the base
// directory, rejects escapes, creates the parent, and resolves collisions
// with a numeric suffix.
func (e *Executor) resolveDestination(suggested string) (string, error) {
	cleaned := filepath.Clean(suggested)
	// Only a leading ".." path segment escapes; a name that merely starts
	// with dots (e.g. "..archive") is legitimate.
	if filepath.IsAbs(cleaned) || cleaned == ".." ||
		strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("destination %q escapes the base directory", suggested)
	}

	dest := filepath.Join(e.baseDir, cleaned)
	if !e.DryRun {
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return "", fmt.Errorf("create destination directory: %w", err)
		}
	}

	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest, nil
	}

	// Collision: file_1.ext, file_2.ext, ...
	ext := filepath.Ext(dest)
	stem := strings.TrimSuffix(dest, ext)
	for i := 1; i < 1000; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			e.log.Info("collision at %s, using %s", dest, candidate)
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not resolve collision for %q", dest)
}

func (e *Executor) backupFile(path string) error {
	dest := filepath.Join(e.backupDir, filepath.Base(path))
	return copyFile(path, dest)
}

// moveFile renames, falling back to copy+remove across devices.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyFile(src, dest); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
