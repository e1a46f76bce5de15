package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// RotatingFile is an io.WriteCloser that rotates by size. Before a write that
// would take the file past its limit, path becomes path.1, path.1 becomes
// path.2, and so on; at most maxFiles backups are kept. A single write is
// never split across files. Safe for concurrent use.
type RotatingFile struct {
	mu       sync.Mutex
	path     string
	limit    int64
	maxFiles int
	size     int64
	file     *os.File
}

var _ io.WriteCloser = (*RotatingFile)(nil)

// OpenRotating opens path for appending, creating it and its directory as
// needed. maxSizeMB is at least 1; maxFiles is at least 0.
func OpenRotating(path string, maxSizeMB, maxFiles int) (*RotatingFile, error) {
	if maxSizeMB < 1 {
		maxSizeMB = 1
	}
	if maxFiles < 0 {
		maxFiles = 0
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	r := &RotatingFile{
		path:     path,
		limit:    int64(maxSizeMB) << 20,
		maxFiles: maxFiles,
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RotatingFile) open() error {
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat %s: %w", r.path, err)
	}
	r.file, r.size = f, info.Size()
	return nil
}

func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size > 0 && r.size+int64(len(p)) > r.limit {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotate %s: %w", r.path, err)
		}
	}
	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *RotatingFile) backup(n int) string {
	return r.path + "." + strconv.Itoa(n)
}

// rotate shifts backups up by one, dropping any past maxFiles. r.mu is held.
func (r *RotatingFile) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}
	_ = os.Remove(r.backup(r.maxFiles))
	for n := r.maxFiles - 1; n >= 1; n-- {
		_ = os.Rename(r.backup(n), r.backup(n+1))
	}
	if r.maxFiles > 0 {
		_ = os.Rename(r.path, r.backup(1))
	} else {
		_ = os.Remove(r.path)
	}
	return r.open()
}
