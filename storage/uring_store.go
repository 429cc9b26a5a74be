package storage

import (
	stderrors "errors"
	"io"
	"sync"

	"github.com/godzie44/go-uring/uring"
	"github.com/nczempin/httpd-go-uring/errors"
	"golang.org/x/sys/unix"
)

// UringStore implements FileSource with positional reads submitted through io_uring.
// One ring is shared by all sessions; submissions are serialized on it.
type UringStore struct {
	mu   sync.Mutex
	ring *uring.Ring
}

// NewUringStore creates a file source backed by an io_uring instance
func NewUringStore() (*UringStore, error) {
	// Create io_uring instance with queue depth of 32
	ring, err := uring.New(32)
	if err != nil {
		return nil, errors.NewTransportError(
			errors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}

	return &UringStore{ring: ring}, nil
}

// Stat implements FileSource
func (s *UringStore) Stat(path string) (FileInfo, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return FileInfo{}, classifyErrno(path, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFREG {
		return FileInfo{}, errors.NewStorageError(errors.StorageErrorNotRegular, path, nil)
	}
	return FileInfo{Path: path, Size: st.Size}, nil
}

// Open implements FileSource
func (s *UringStore) Open(path string) (io.ReadCloser, FileInfo, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, FileInfo{}, classifyErrno(path, err)
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, FileInfo{}, errors.NewStorageError(errors.StorageErrorReadFailure, path, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFREG {
		unix.Close(fd)
		return nil, FileInfo{}, errors.NewStorageError(errors.StorageErrorNotRegular, path, nil)
	}

	info := FileInfo{Path: path, Size: st.Size}
	return &uringFile{store: s, fd: fd, info: info}, info, nil
}

// readAt submits one read and waits for its completion
func (s *UringStore) readAt(fd int, buf []byte, offset int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ring == nil {
		return 0, errors.NewStorageError(errors.StorageErrorReadFailure, "store closed", nil)
	}

	// Queue read operation
	sqe := uring.Read(uintptr(fd), buf, uint64(offset))
	if err := s.ring.QueueSQE(sqe, 0, 0); err != nil {
		return 0, errors.NewStorageError(errors.StorageErrorReadFailure, "failed to queue read request", err)
	}

	// Submit and wait
	if _, err := s.ring.Submit(); err != nil {
		return 0, errors.NewStorageError(errors.StorageErrorReadFailure, "failed to submit read request", err)
	}

	cqe, err := s.ring.WaitCQEvents(1)
	if err != nil {
		return 0, errors.NewStorageError(errors.StorageErrorReadFailure, "failed to wait for read completion", err)
	}

	if err := cqe.Error(); err != nil {
		s.ring.SeenCQE(cqe)
		return 0, errors.NewStorageError(errors.StorageErrorReadFailure, "read operation failed", err)
	}

	n := int(cqe.Res)
	s.ring.SeenCQE(cqe)
	return n, nil
}

// Close implements FileSource
func (s *UringStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ring != nil {
		s.ring.Close()
		s.ring = nil
	}
	return nil
}

// uringFile is a sequential reader over an open descriptor
type uringFile struct {
	store  *UringStore
	fd     int
	offset int64
	info   FileInfo
}

func (f *uringFile) Read(p []byte) (int, error) {
	if f.fd < 0 {
		return 0, errors.NewStorageError(errors.StorageErrorReadFailure, "file closed", nil)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if f.offset >= f.info.Size {
		return 0, io.EOF
	}

	n, err := f.store.readAt(f.fd, p, f.offset)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	f.offset += int64(n)
	return n, nil
}

func (f *uringFile) Close() error {
	if f.fd < 0 {
		return nil
	}
	err := unix.Close(f.fd)
	f.fd = -1
	return err
}

func classifyErrno(path string, err error) error {
	if stderrors.Is(err, unix.ENOENT) || stderrors.Is(err, unix.ENOTDIR) {
		return errors.NewStorageError(errors.StorageErrorNotFound, path, err)
	}
	return errors.NewStorageError(errors.StorageErrorReadFailure, path, err)
}
