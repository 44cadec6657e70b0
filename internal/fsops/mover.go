// Package fsops implements the local-filesystem file-operations
// collaborator: physical moves, reference links, and source-directory
// cleanup. The decision pipeline never touches the filesystem directly.
package fsops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/docsort/docsort/internal/service"
)

// Options configures the local mover.
type Options struct {
	// DirMode is the permission for created destination directories.
	DirMode os.FileMode
	// CleanupEmptyDirs removes source directories left empty by a move,
	// walking upward until a non-empty directory or CleanupRoot.
	CleanupEmptyDirs bool
	// CleanupRoot bounds upward cleanup. Empty disables the walk above the
	// immediate parent.
	CleanupRoot string
}

// LocalMover moves files on the local filesystem and places relative
// symlinks for non-primary labels.
type LocalMover struct {
	opts Options
}

// NewLocalMover creates a mover.
func NewLocalMover(opts Options) *LocalMover {
	if opts.DirMode == 0 {
		opts.DirMode = 0o755
	}
	return &LocalMover{opts: opts}
}

// Move relocates the source to the destination, creating directories as
// needed, then places one symlink per link target pointing at the new
// location. An occupied destination fails the move rather than being
// replaced. Link failures never fail the move; they are reported per link.
func (m *LocalMover) Move(ctx context.Context, req service.MoveRequest) (service.MoveResult, error) {
	if err := ctx.Err(); err != nil {
		return service.MoveResult{}, err
	}

	if _, err := os.Lstat(req.SourcePath); err != nil {
		return service.MoveResult{Success: false, ErrorCause: fmt.Sprintf("source not accessible: %v", err)}, nil
	}

	// os.Rename replaces an existing destination silently; refuse instead
	// so a stale plan can never destroy another document.
	if _, err := os.Lstat(req.DestinationPath); err == nil {
		return service.MoveResult{Success: false, ErrorCause: fmt.Sprintf("destination already occupied: %s", req.DestinationPath)}, nil
	}

	if err := os.MkdirAll(filepath.Dir(req.DestinationPath), m.opts.DirMode); err != nil {
		return service.MoveResult{Success: false, ErrorCause: fmt.Sprintf("failed to create destination directory: %v", err)}, nil
	}

	if err := m.rename(req.SourcePath, req.DestinationPath); err != nil {
		return service.MoveResult{Success: false, ErrorCause: err.Error()}, nil
	}

	result := service.MoveResult{Success: true, ActualPath: req.DestinationPath}
	for _, link := range req.LinkTargets {
		if err := m.placeLink(req.DestinationPath, link); err != nil {
			result.LinkErrors = append(result.LinkErrors, fmt.Sprintf("%s: %v", link, err))
		}
	}

	if m.opts.CleanupEmptyDirs {
		m.cleanup(filepath.Dir(req.SourcePath))
	}

	return result, nil
}

// Exists reports whether anything occupies the path, including dangling
// symlinks.
func (m *LocalMover) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// rename moves via os.Rename and falls back to copy-and-remove when the
// destination is on a different filesystem.
func (m *LocalMover) rename(source, destination string) error {
	err := os.Rename(source, destination)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return fmt.Errorf("failed to move file: %w", err)
	}

	if copyErr := copyFile(source, destination); copyErr != nil {
		return fmt.Errorf("cross-device copy failed: %w", copyErr)
	}
	if rmErr := os.Remove(source); rmErr != nil {
		// The copy landed; a stale source is recoverable, a lost file is not.
		slog.Warn("Moved file but could not remove source", "source", source, "error", rmErr)
	}
	return nil
}

// placeLink creates a relative symlink at linkPath pointing to target.
func (m *LocalMover) placeLink(target, linkPath string) error {
	if err := os.MkdirAll(filepath.Dir(linkPath), m.opts.DirMode); err != nil {
		return fmt.Errorf("failed to create link directory: %w", err)
	}

	rel, err := filepath.Rel(filepath.Dir(linkPath), target)
	if err != nil {
		rel = target
	}

	if err := os.Symlink(rel, linkPath); err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

// cleanup removes now-empty directories from dir upward, stopping at the
// first non-empty directory or at CleanupRoot.
func (m *LocalMover) cleanup(dir string) {
	root := filepath.Clean(m.opts.CleanupRoot)
	for {
		if dir == "" || dir == "/" || dir == "." {
			return
		}
		if m.opts.CleanupRoot != "" && filepath.Clean(dir) == root {
			return
		}

		if err := os.Remove(dir); err != nil {
			// Non-empty or in use. Either way the walk is over.
			return
		}

		if m.opts.CleanupRoot == "" {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

func copyFile(source, destination string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(destination)
		return err
	}
	return out.Close()
}
