package persistence

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

const transcriptSuffix = ".txt.gz"

// ErrTranscriptNotFound is returned for unknown archive names.
var ErrTranscriptNotFound = errors.New("transcript not found")

// TranscriptArchive keeps gzip-compressed copies of closed-ticket transcripts.
type TranscriptArchive struct {
	dir string
}

// NewTranscriptArchive creates dir if needed.
func NewTranscriptArchive(dir string) (*TranscriptArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	return &TranscriptArchive{dir: dir}, nil
}

// Write stores content and returns the archive name.
func (a *TranscriptArchive) Write(channelID string, closedAt time.Time, content string) (string, error) {
	name := fmt.Sprintf("%s_%s_%s%s", channelID, closedAt.UTC().Format("20060102_150405"),
		uuid.NewString()[:8], transcriptSuffix)

	f, err := os.Create(filepath.Join(a.dir, name))
	if err != nil {
		return "", fmt.Errorf("create transcript: %w", err)
	}
	defer f.Close()

	zw, err := gzip.NewWriterLevel(f, gzip.BestCompression)
	if err != nil {
		return "", err
	}
	zw.Name = strings.TrimSuffix(name, ".gz")
	zw.ModTime = closedAt
	if _, err := io.WriteString(zw, content); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("flush transcript: %w", err)
	}
	return name, nil
}

// Read returns the decompressed transcript stored under name.
func (a *TranscriptArchive) Read(name string) (string, error) {
	if name != filepath.Base(name) || !strings.HasSuffix(name, transcriptSuffix) {
		return "", ErrTranscriptNotFound
	}
	f, err := os.Open(filepath.Join(a.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrTranscriptNotFound
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("open transcript: %w", err)
	}
	defer zr.Close()

	content, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(content), nil
}

// List returns archive names, newest first.
func (a *TranscriptArchive) List() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, err
	}
	type item struct {
		name string
		mod  time.Time
	}
	items := make([]item, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), transcriptSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, item{name: e.Name(), mod: info.ModTime()})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].mod.After(items[j].mod) })

	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.name
	}
	return names, nil
}
