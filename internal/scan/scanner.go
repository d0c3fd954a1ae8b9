// Package scan enumerates a directory into file descriptors that the
// organizer core consumes. The scan happens exactly once per negotiation;
// the core never re-reads the filesystem.
package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileDescriptor is an immutable snapshot of one directory entry.
// The organizer and cache layers only ever read it.
type FileDescriptor struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Extension string    `json:"extension"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"modTime"`
	IsDir     bool      `json:"isDir"`
}

// Kind buckets an extension into a coarse content type. These are hints
// for the model prompt, not a classification the core relies on.
func (f FileDescriptor) Kind() string {
	if f.IsDir {
		return "directory"
	}
	switch strings.ToLower(f.Extension) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".heic", ".bmp", ".tiff":
		return "image"
	case ".mp4", ".mov", ".avi", ".mkv", ".webm":
		return "video"
	case ".mp3", ".wav", ".flac", ".m4a", ".ogg":
		return "audio"
	case ".pdf", ".doc", ".docx", ".odt", ".txt", ".md", ".rtf", ".pages":
		return "document"
	case ".xls", ".xlsx", ".csv", ".ods", ".numbers":
		return "spreadsheet"
	case ".ppt", ".pptx", ".key":
		return "presentation"
	case ".zip", ".tar", ".gz", ".rar", ".7z", ".dmg", ".iso":
		return "archive"
	case ".go", ".py", ".js", ".ts", ".rs", ".c", ".cpp", ".java", ".rb", ".sh":
		return "code"
	case ".exe", ".app", ".deb", ".rpm", ".pkg", ".msi":
		return "installer"
	default:
		return "other"
	}
}

// Scanner walks a single directory level and produces descriptors.
type Scanner struct {
	// IncludeDirs controls whether sub-directories appear as descriptors.
	// Files inside them are never scanned; the organizer works one level
	// at a time.
	IncludeDirs bool

	// MaxFiles bounds the scan so a pathological directory cannot blow up
	// the prompt. Zero means no limit.
	MaxFiles int
}

// NewScanner returns a scanner with the defaults the organize command uses.
func NewScanner() *Scanner {
	return &Scanner{IncludeDirs: false, MaxFiles: 500}
}

// Scan enumerates the immediate entries of dir, skipping hidden entries and
// the .filesage state directory. Results are sorted by name so downstream
// fingerprinting sees a stable order.
func (s *Scanner) Scan(dir string) ([]FileDescriptor, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", abs, err)
	}

	var files []FileDescriptor
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() && !s.IncludeDirs {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Entry vanished between ReadDir and Stat; skip it.
			continue
		}

		files = append(files, FileDescriptor{
			Path:      filepath.Join(abs, name),
			Name:      name,
			Extension: filepath.Ext(name),
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			IsDir:     entry.IsDir(),
		})

		if s.MaxFiles > 0 && len(files) >= s.MaxFiles {
			break
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}
