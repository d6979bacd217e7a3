// Package integration handles external service interactions
package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Extensions of the files picked up from the inbox
var inboxExtensions = []string{".tsv", ".txt"}

// ImportFunc imports one export and returns the archive folder it belongs in
type ImportFunc func(ctx context.Context, name string, r io.Reader) string

// Inbox is a folder QReview exports are dropped into
type Inbox struct {
	dir        string
	archiveDir string
	logger     *slog.Logger
}

// NewInbox creates an inbox reading from dir and archiving into archiveDir
func NewInbox(dir, archiveDir string, logger *slog.Logger) *Inbox {
	return &Inbox{
		dir:        dir,
		archiveDir: archiveDir,
		logger:     logger,
	}
}

// Pending lists the exports waiting in the inbox, sorted by name
func (in *Inbox) Pending() ([]string, error) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox %s: %w", in.dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !hasInboxExtension(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func hasInboxExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range inboxExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Sweep imports every pending export and moves it into the archive folder
// returned by importFn. It returns the number of files per archive folder.
func (in *Inbox) Sweep(ctx context.Context, importFn ImportFunc) (map[string]int, error) {
	names, err := in.Pending()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return counts, err
		}

		folder, err := in.process(ctx, name, importFn)
		if err != nil {
			in.logger.Error("Failed to process inbox file", "file", name, "error", err)
			continue
		}
		counts[folder]++
	}
	return counts, nil
}

func (in *Inbox) process(ctx context.Context, name string, importFn ImportFunc) (string, error) {
	path := filepath.Join(in.dir, name)

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	folder := importFn(ctx, name, f)
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	target := filepath.Join(in.archiveDir, folder)
	if err := os.MkdirAll(target, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive folder: %w", err)
	}
	if err := os.Rename(path, filepath.Join(target, name)); err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", name, err)
	}

	in.logger.Debug("Archived inbox file", "file", name, "folder", folder)
	return folder, nil
}
