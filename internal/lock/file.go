package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// FileMarker is a lock marker realised as a file whose existence means busy
type FileMarker struct {
	path string
}

// NewFileMarker creates a marker at path, creating its parent directory
func NewFileMarker(path string) (*FileMarker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &FileMarker{path: path}, nil
}

// Path returns the marker location
func (f *FileMarker) Path() string {
	return f.path
}

func (f *FileMarker) Acquire(ctx context.Context) error {
	// O_EXCL makes check-and-create a single step.
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrBusy
		}
		return err
	}
	defer file.Close()

	_, err = file.WriteString(strconv.Itoa(os.Getpid()) + " " + time.Now().Format(time.RFC3339) + "\n")
	return err
}

func (f *FileMarker) Release(ctx context.Context) error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *FileMarker) Held(ctx context.Context) (bool, error) {
	_, err := os.Stat(f.path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
