package blobstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"
)

// Store is an open, read-only handle on a blob store file.
// It is owned by the operation that opened it and must be closed by it.
// Nothing read from the file is cached between operations.
type Store struct {
	ID      string
	Label   string
	Path    string
	Size    int64
	ModTime time.Time

	f *os.File
}

// Open opens the store file at path. A missing or unreadable file yields an
// error wrapping ErrNotFound.
func Open(path, id, label string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("store %s: %w", id, ErrNotFound)
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("store %s unreadable: %w", id, ErrNotFound)
		}
		return nil, ioErr("open store", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ioErr("stat store", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("store %s is a directory: %w", id, ErrNotFound)
	}

	return &Store{
		ID:      id,
		Label:   label,
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		f:       f,
	}, nil
}

// Close releases the underlying file.
func (s *Store) Close() error {
	return s.f.Close()
}

// IndexOffset reads the header afresh and checks it points inside the file.
func (s *Store) IndexOffset() (int64, error) {
	offset, err := ReadIndexOffset(s.f)
	if err != nil {
		return 0, err
	}
	if offset < HeaderLength || offset > s.Size {
		return 0, formatErr("index offset out of range")
	}
	return offset, nil
}

// lineReader positions the file at pos and returns a reader for the lines from there.
func (s *Store) lineReader(pos int64) (*bufio.Reader, error) {
	if _, err := s.f.Seek(pos, io.SeekStart); err != nil {
		return nil, ioErr("seek index", err)
	}
	return bufio.NewReader(s.f), nil
}

// readLine returns the next line, or "" once the reader is exhausted.
// An unterminated last line is returned as-is.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", ioErr("read index", err)
	}
	return line, nil
}
