// Package storage is the file byte-source the router reads static content from.
package storage

import (
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"syscall"

	"github.com/nczempin/httpd-go-uring/errors"
)

// FileInfo describes a servable file
type FileInfo struct {
	Path string
	Size int64
}

// FileSource defines the interface for stat and read access keyed by absolute path
type FileSource interface {
	// Stat returns the size of the regular file at path.
	// Missing paths fail with StorageErrorNotFound, directories and devices
	// with StorageErrorNotRegular.
	Stat(path string) (FileInfo, error)

	// Open returns a reader positioned at the start of the regular file at path.
	Open(path string) (io.ReadCloser, FileInfo, error)

	// Close releases resources held by the source.
	Close() error
}

// OSStore implements FileSource with the os package
type OSStore struct{}

// NewOSStore creates a new os-backed file source
func NewOSStore() *OSStore {
	return &OSStore{}
}

// Stat implements FileSource
func (s *OSStore) Stat(path string) (FileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, classify(path, err)
	}
	if !fi.Mode().IsRegular() {
		return FileInfo{}, errors.NewStorageError(errors.StorageErrorNotRegular, path, nil)
	}
	return FileInfo{Path: path, Size: fi.Size()}, nil
}

// Open implements FileSource
func (s *OSStore) Open(path string) (io.ReadCloser, FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, FileInfo{}, classify(path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, FileInfo{}, errors.NewStorageError(errors.StorageErrorReadFailure, path, err)
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, FileInfo{}, errors.NewStorageError(errors.StorageErrorNotRegular, path, nil)
	}

	return f, FileInfo{Path: path, Size: fi.Size()}, nil
}

// Close implements FileSource
func (s *OSStore) Close() error {
	return nil
}

func classify(path string, err error) error {
	if stderrors.Is(err, fs.ErrNotExist) || stderrors.Is(err, syscall.ENOTDIR) {
		return errors.NewStorageError(errors.StorageErrorNotFound, path, err)
	}
	return errors.NewStorageError(errors.StorageErrorReadFailure, path, err)
}
