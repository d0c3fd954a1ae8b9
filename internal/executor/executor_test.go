package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filesage/internal/organizer"
	"filesage/internal/scan"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func suggestion(base, name, dest string) organizer.Suggestion {
	return organizer.Suggestion{
		File: &scan.FileDescriptor{
			Path: filepath.Join(base, name),
			Name: name,
		},
		SuggestedPath: dest,
		Confidence:    0.9,
	}
}

func TestApply_MovesFiles(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "a.txt"), "alpha")
	writeFile(t, filepath.Join(base, "b.jpg"), "beta")

	exec := New(base)
	report, err := exec.Apply(context.Background(), []organizer.Suggestion{
		suggestion(base, "a.txt", "documents/a.txt"),
		suggestion(base, "b.jpg", "images/b.jpg"),
	})
	require.NoError(t, err)
	require.Len(t, report.Moves, 2)
	assert.Empty(t, report.Errors)

	moved, err := os.ReadFile(filepath.Join(base, "documents", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(moved))

	_, err = os.Stat(filepath.Join(base, "a.txt"))
	assert.True(t, os.IsNotExist(err), "source is gone after the move")
}

func TestApply_CollisionSuffix(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "report.pdf"), "new")
	writeFile(t, filepath.Join(base, "docs", "report.pdf"), "existing")
	writeFile(t, filepath.Join(base, "docs", "report_1.pdf"), "existing too")

	exec := New(base)
	report, err := exec.Apply(context.Background(), []organizer.Suggestion{
		suggestion(base, "report.pdf", "docs/report.pdf"),
	})
	require.NoError(t, err)
	require.Len(t, report.Moves, 1)
	assert.Equal(t, filepath.Join(base, "docs", "report_2.pdf"), report.Moves[0].Destination)

	existing, err := os.ReadFile(filepath.Join(base, "docs", "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "existing", string(existing), "existing file is never overwritten")
}

func TestApply_DryRun(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "a.txt"), "alpha")

	exec := New(base)
	exec.DryRun = true
	report, err := exec.Apply(context.Background(), []organizer.Suggestion{
		suggestion(base, "a.txt", "documents/a.txt"),
	})
	require.NoError(t, err)
	require.Len(t, report.Moves, 1)

	_, err = os.Stat(filepath.Join(base, "a.txt"))
	assert.NoError(t, err, "dry run leaves the source in place")
	_, err = os.Stat(filepath.Join(base, "documents"))
	assert.True(t, os.IsNotExist(err), "dry run creates no directories")
}

func TestApply_Backup(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "a.txt"), "alpha")

	exec := New(base)
	exec.Backup = true
	report, err := exec.Apply(context.Background(), []organizer.Suggestion{
		suggestion(base, "a.txt", "documents/a.txt"),
	})
	require.NoError(t, err)
	require.Len(t, report.Moves, 1)
	assert.True(t, report.Moves[0].BackedUp)

	backups, err := filepath.Glob(filepath.Join(base, ".filesage", "backup", "*", "a.txt"))
	require.NoError(t, err)
	require.Len(t, backups, 1)
	content, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(content))
}

func TestApply_RejectsEscapingDestinations(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "a.txt"), "alpha")

	exec := New(base)
	for _, dest := range []string{"../outside/a.txt", "/etc/a.txt", "docs/../../a.txt", ".."} {
		report, err := exec.Apply(context.Background(), []organizer.Suggestion{
			suggestion(base, "a.txt", dest),
		})
		require.NoError(t, err)
		assert.Empty(t, report.Moves, "destination %q must be rejected", dest)
		assert.Len(t, report.Errors, 1)
	}

	_, err := os.Stat(filepath.Join(base, "a.txt"))
	assert.NoError(t, err)
}

// A destination whose first segment merely starts with dots is inside the
// base directory and must not be mistaken for an escape.
func TestApply_DotPrefixedSegmentIsNotAnEscape(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "a.txt"), "alpha")

	exec := New(base)
	report, err := exec.Apply(context.Background(), []organizer.Suggestion{
		suggestion(base, "a.txt", "..hidden-archive/a.txt"),
	})
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	require.Len(t, report.Moves, 1)

	moved, err := os.ReadFile(filepath.Join(base, "..hidden-archive", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(moved))
}

func TestApply_SkipsUnboundAndNoop(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "a.txt"), "alpha")

	exec := New(base)
	report, err := exec.Apply(context.Background(), []organizer.Suggestion{
		{SuggestedPath: "x/y.txt", Confidence: 0.9}, // no bound file
		suggestion(base, "a.txt", "a.txt"),          // destination equals source
	})
	require.NoError(t, err)
	assert.Empty(t, report.Moves)
	assert.Equal(t, 2, report.Skipped)
}

func TestApply_CancelledContext(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "a.txt"), "alpha")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := New(base)
	_, err := exec.Apply(ctx, []organizer.Suggestion{
		suggestion(base, "a.txt", "documents/a.txt"),
	})
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(filepath.Join(base, "a.txt"))
	assert.NoError(t, statErr, "nothing moved after cancellation")
}
