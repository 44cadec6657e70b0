package fsops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsort/docsort/internal/service"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMoveRelocatesFile(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "inbox", "scan.pdf")
	destination := filepath.Join(root, "archive", "invoice", "scan.pdf")
	writeFile(t, source, "body")

	mover := NewLocalMover(Options{})
	result, err := mover.Move(context.Background(), service.MoveRequest{
		SourcePath:      source,
		DestinationPath: destination,
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, destination, result.ActualPath)
	assert.Empty(t, result.LinkErrors)

	content, err := os.ReadFile(destination)
	require.NoError(t, err)
	assert.Equal(t, "body", string(content))

	_, err = os.Lstat(source)
	assert.True(t, os.IsNotExist(err), "source is gone after the move")
}

func TestMoveMissingSourceReportsCause(t *testing.T) {
	root := t.TempDir()

	mover := NewLocalMover(Options{})
	result, err := mover.Move(context.Background(), service.MoveRequest{
		SourcePath:      filepath.Join(root, "ghost.pdf"),
		DestinationPath: filepath.Join(root, "archive", "ghost.pdf"),
	})
	require.NoError(t, err, "an unmovable file is a result, not an error")

	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorCause, "source not accessible")
}

func TestMoveCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mover := NewLocalMover(Options{})
	_, err := mover.Move(ctx, service.MoveRequest{SourcePath: "/a", DestinationPath: "/b"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMovePlacesRelativeLinks(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "inbox", "report.pdf")
	destination := filepath.Join(root, "archive", "report", "report.pdf")
	link := filepath.Join(root, "archive", "finance", "report.pdf")
	writeFile(t, source, "body")

	mover := NewLocalMover(Options{})
	result, err := mover.Move(context.Background(), service.MoveRequest{
		SourcePath:      source,
		DestinationPath: destination,
		LinkTargets:     []string{link},
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Empty(t, result.LinkErrors)

	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("..", "report", "report.pdf"), target)

	// The link resolves to the moved file.
	content, err := os.ReadFile(link)
	require.NoError(t, err)
	assert.Equal(t, "body", string(content))
}

func TestMoveLinkFailureDoesNotFailMove(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "inbox", "a.pdf")
	destination := filepath.Join(root, "archive", "a.pdf")
	link := filepath.Join(root, "links", "a.pdf")
	writeFile(t, source, "body")

	// Something already occupies the link path.
	writeFile(t, link, "squatter")

	mover := NewLocalMover(Options{})
	result, err := mover.Move(context.Background(), service.MoveRequest{
		SourcePath:      source,
		DestinationPath: destination,
		LinkTargets:     []string{link},
	})
	require.NoError(t, err)

	assert.True(t, result.Success, "the move itself still lands")
	require.Len(t, result.LinkErrors, 1)
	assert.Contains(t, result.LinkErrors[0], link)
}

func TestMoveCleansUpEmptySourceDirs(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "inbox", "2024", "03", "scan.pdf")
	destination := filepath.Join(root, "archive", "scan.pdf")
	writeFile(t, source, "body")

	mover := NewLocalMover(Options{
		CleanupEmptyDirs: true,
		CleanupRoot:      filepath.Join(root, "inbox"),
	})
	result, err := mover.Move(context.Background(), service.MoveRequest{
		SourcePath:      source,
		DestinationPath: destination,
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	_, err = os.Lstat(filepath.Join(root, "inbox", "2024", "03"))
	assert.True(t, os.IsNotExist(err), "emptied leaf directory is removed")
	_, err = os.Lstat(filepath.Join(root, "inbox", "2024"))
	assert.True(t, os.IsNotExist(err), "emptied parent inside the root is removed")

	_, err = os.Lstat(filepath.Join(root, "inbox"))
	assert.NoError(t, err, "cleanup never crosses the configured root")
}

func TestMoveCleanupStopsAtNonEmptyDir(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "inbox", "batch", "scan.pdf")
	sibling := filepath.Join(root, "inbox", "keep.txt")
	writeFile(t, source, "body")
	writeFile(t, sibling, "stays")

	mover := NewLocalMover(Options{
		CleanupEmptyDirs: true,
		CleanupRoot:      root,
	})
	result, err := mover.Move(context.Background(), service.MoveRequest{
		SourcePath:      source,
		DestinationPath: filepath.Join(root, "archive", "scan.pdf"),
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	_, err = os.Lstat(filepath.Join(root, "inbox", "batch"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Lstat(sibling)
	assert.NoError(t, err, "non-empty directories stop the walk")
}

func TestExistsSeesDanglingSymlinks(t *testing.T) {
	root := t.TempDir()
	link := filepath.Join(root, "dangling")
	require.NoError(t, os.Symlink(filepath.Join(root, "nowhere"), link))

	mover := NewLocalMover(Options{})
	assert.True(t, mover.Exists(link), "a dangling symlink still occupies its path")
	assert.False(t, mover.Exists(filepath.Join(root, "free")))
}

func TestMoveRefusesOccupiedDestination(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "inbox", "a.pdf")
	destination := filepath.Join(root, "archive", "a.pdf")
	writeFile(t, source, "body")
	writeFile(t, destination, "precious")

	mover := NewLocalMover(Options{})
	result, err := mover.Move(context.Background(), service.MoveRequest{
		SourcePath:      source,
		DestinationPath: destination,
	})
	require.NoError(t, err, "an occupied destination is a result, not an error")

	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorCause, "destination already occupied")

	// Neither file was touched.
	content, err := os.ReadFile(destination)
	require.NoError(t, err)
	assert.Equal(t, "precious", string(content))

	content, err = os.ReadFile(source)
	require.NoError(t, err)
	assert.Equal(t, "body", string(content))
}

func TestMoveRefusesDanglingSymlinkDestination(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "a.pdf")
	destination := filepath.Join(root, "taken")
	writeFile(t, source, "body")
	require.NoError(t, os.Symlink(filepath.Join(root, "nowhere"), destination))

	mover := NewLocalMover(Options{})
	result, err := mover.Move(context.Background(), service.MoveRequest{
		SourcePath:      source,
		DestinationPath: destination,
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorCause, "destination already occupied")

	_, err = os.Lstat(source)
	assert.NoError(t, err, "the source stays in place")
}
