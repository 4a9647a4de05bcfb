// Package storage locates court extracts and archives run reports.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Extract is one CSV file available for import.
type Extract struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// Source lists extracts and makes them available as local files.
type Source interface {
	Discover(ctx context.Context) ([]Extract, error)
	// Fetch returns a local path for e.
	Fetch(ctx context.Context, e Extract) (string, error)
}

func isCSV(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".csv")
}

func sortExtracts(out []Extract) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastModified.Equal(out[j].LastModified) {
			return out[i].LastModified.Before(out[j].LastModified)
		}
		return out[i].Key < out[j].Key
	})
}

// LocalSource serves extracts already present in a directory.
type LocalSource struct {
	dir string
}

func NewLocalSource(dir string) *LocalSource { return &LocalSource{dir: dir} }

// Discover lists non-empty CSV files, oldest first.
func (s *LocalSource) Discover(ctx context.Context) ([]Extract, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read staging dir: %w", err)
	}
	var out []Extract
	for _, e := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if e.IsDir() || !isCSV(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		out = append(out, Extract{Key: e.Name(), Size: info.Size(), LastModified: info.ModTime()})
	}
	sortExtracts(out)
	return out, nil
}

func (s *LocalSource) Fetch(_ context.Context, e Extract) (string, error) {
	path := filepath.Join(s.dir, filepath.Base(e.Key))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("extract %s: %w", e.Key, err)
	}
	return path, nil
}
