package snapshot

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store keeps gzip-compressed copies of rendered result pages so that
// extraction can be replayed offline against the exact markup
type Store struct {
	dir      string
	compress func(w io.Writer, markup string) error
}

// NewStore creates a snapshot store rooted at dir
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &Store{dir: dir, compress: gzipMarkup}, nil
}

// Save compresses markup to a new snapshot and returns its id. The snapshot
// only appears under its id once it is completely written.
func (s *Store) Save(markup string) (id string, err error) {
	file, err := os.CreateTemp(s.dir, ".snapshot-*")
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot: %w", err)
	}
	tmpPath := file.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if err := s.compress(file, markup); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to compress snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	id = uuid.New().String()
	if err := os.Rename(tmpPath, s.path(id)); err != nil {
		return "", fmt.Errorf("failed to store snapshot: %w", err)
	}
	return id, nil
}

func gzipMarkup(w io.Writer, markup string) error {
	gzWriter := gzip.NewWriter(w)
	if _, err := io.Copy(gzWriter, strings.NewReader(markup)); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}

// Load returns the markup stored under id
func (s *Store) Load(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("invalid snapshot id %q", id)
	}
	return ReadFile(s.path(id))
}

// ReadFile reads a snapshot file, or a plain .html file as-is
func ReadFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return "", fmt.Errorf("failed to open snapshot: %w", err)
		}
		defer gzReader.Close()
		r = gzReader
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".html.gz")
}
