package shmem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sys/unix"
)

// DefaultDir is the tmpfs mount used when no directory is configured.
const DefaultDir = "/dev/shm"

// FilePrefix namespaces segment files inside the shm directory.
const FilePrefix = "shmflow."

const openAttempts = 8

var (
	ErrInvalidName  = errors.New("invalid segment name")
	ErrShortSegment = errors.New("segment smaller than requested region")
	ErrClosed       = errors.New("segment closed")
)

// Segment is one process's mapping of a named shared-memory file.
type Segment struct {
	name       string
	path       string
	file       *os.File
	headerSize int
	header     []byte
	data       []byte
}

// Info describes a segment file found on disk.
type Info struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Path returns the backing file path for a named segment.
func Path(dir, name string) string {
	return filepath.Join(dir, FilePrefix+name)
}

// HeaderSize rounds n up to a whole number of pages.
func HeaderSize(n int) int {
	page := unix.Getpagesize()
	if n <= 0 {
		return page
	}
	return (n + page - 1) / page * page
}

// ValidateName rejects names that cannot be used as a single path element.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Open creates or opens the named segment and maps a header of at least
// headerSize bytes. Existing files are never shrunk.
func Open(dir, name string, headerSize int) (*Segment, error) {
	return open(dir, name, headerSize, os.O_RDWR|os.O_CREATE)
}

// OpenExisting is Open without creating the file. A missing segment
// yields an error matching os.ErrNotExist.
func OpenExisting(dir, name string, headerSize int) (*Segment, error) {
	return open(dir, name, headerSize, os.O_RDWR)
}

func open(dir, name string, headerSize, flags int) (*Segment, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if dir == "" {
		dir = DefaultDir
	}
	headerSize = HeaderSize(headerSize)
	path := Path(dir, name)

	for attempt := 0; attempt < openAttempts; attempt++ {
		seg, retry, err := openOnce(path, name, headerSize, flags)
		if err != nil {
			return nil, err
		}
		if !retry {
			return seg, nil
		}
	}
	return nil, fmt.Errorf("open segment %s: file repeatedly unlinked during open", name)
}

func openOnce(path, name string, headerSize, flags int) (*Segment, bool, error) {
	f, err := os.OpenFile(path, flags, 0o660)
	if err != nil {
		return nil, false, fmt.Errorf("open segment %s: %w", name, err)
	}
	fd := int(f.Fd())

	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		f.Close()
		return nil, false, fmt.Errorf("lock segment %s: %w", name, err)
	}
	defer unix.Flock(fd, unix.LOCK_UN)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		f.Close()
		return nil, false, fmt.Errorf("stat segment %s: %w", name, err)
	}
	if st.Nlink == 0 {
		// Lost the race against the last party out; the name now
		// refers to a different (or no) file.
		f.Close()
		return nil, true, nil
	}
	if st.Size < int64(headerSize) {
		if err := unix.Ftruncate(fd, int64(headerSize)); err != nil {
			f.Close()
			return nil, false, fmt.Errorf("size segment %s: %w", name, err)
		}
	}

	header, err := unix.Mmap(fd, 0, headerSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, false, fmt.Errorf("map segment %s: %w", name, err)
	}

	return &Segment{
		name:       name,
		path:       path,
		file:       f,
		headerSize: headerSize,
		header:     header,
	}, false, nil
}

// Name returns the channel name of the segment.
func (s *Segment) Name() string { return s.name }

// Path returns the backing file path.
func (s *Segment) Path() string { return s.path }

// Header returns the fixed header mapping.
func (s *Segment) Header() []byte { return s.header }

// WithLock runs fn while holding an exclusive flock on the segment file.
func (s *Segment) WithLock(fn func() error) error {
	if s.file == nil {
		return ErrClosed
	}
	fd := int(s.file.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock segment %s: %w", s.name, err)
	}
	defer unix.Flock(fd, unix.LOCK_UN)
	return fn()
}

// Grow makes sure the data region holds at least n bytes, extending the
// file if needed. Callers hold the segment lock.
func (s *Segment) Grow(n int) error {
	if s.file == nil {
		return ErrClosed
	}
	var st unix.Stat_t
	fd := int(s.file.Fd())
	if err := unix.Fstat(fd, &st); err != nil {
		return fmt.Errorf("stat segment %s: %w", s.name, err)
	}
	want := int64(s.headerSize) + int64(n)
	if st.Size < want {
		if err := unix.Ftruncate(fd, want); err != nil {
			return fmt.Errorf("grow segment %s: %w", s.name, err)
		}
	}
	return nil
}

// Data returns the first n bytes of the data region, remapping when the
// current mapping is too small. It does not extend the file.
func (s *Segment) Data(n int) ([]byte, error) {
	if s.file == nil {
		return nil, ErrClosed
	}
	if n <= len(s.data) {
		return s.data[:n], nil
	}

	var st unix.Stat_t
	fd := int(s.file.Fd())
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("stat segment %s: %w", s.name, err)
	}
	avail := int(st.Size) - s.headerSize
	if avail < n {
		return nil, fmt.Errorf("%w: %s has %d bytes, need %d", ErrShortSegment, s.name, avail, n)
	}

	if s.data != nil {
		if err := unix.Munmap(s.data); err != nil {
			return nil, fmt.Errorf("unmap segment %s: %w", s.name, err)
		}
		s.data = nil
	}
	data, err := unix.Mmap(fd, int64(s.headerSize), avail, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("map segment %s data: %w", s.name, err)
	}
	s.data = data
	return s.data[:n], nil
}

// Unlinked reports whether the backing file was removed after this
// segment was opened.
func (s *Segment) Unlinked() (bool, error) {
	if s.file == nil {
		return false, ErrClosed
	}
	var st unix.Stat_t
	if err := unix.Fstat(int(s.file.Fd()), &st); err != nil {
		return false, fmt.Errorf("stat segment %s: %w", s.name, err)
	}
	return st.Nlink == 0, nil
}

// Size returns the current size of the backing file.
func (s *Segment) Size() (int64, error) {
	if s.file == nil {
		return 0, ErrClosed
	}
	var st unix.Stat_t
	if err := unix.Fstat(int(s.file.Fd()), &st); err != nil {
		return 0, fmt.Errorf("stat segment %s: %w", s.name, err)
	}
	return st.Size, nil
}

// Unlink removes the backing file. Existing mappings stay valid. Callers
// hold the segment lock.
func (s *Segment) Unlink() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("unlink segment %s: %w", s.name, err)
	}
	return nil
}

// Close unmaps both regions and closes the file. Safe to call twice.
func (s *Segment) Close() error {
	if s.file == nil {
		return nil
	}
	var errs []error
	if s.data != nil {
		errs = append(errs, unix.Munmap(s.data))
		s.data = nil
	}
	if s.header != nil {
		errs = append(errs, unix.Munmap(s.header))
		s.header = nil
	}
	errs = append(errs, s.file.Close())
	s.file = nil
	return errors.Join(errs...)
}

// List returns the segments in dir whose channel name matches a doublestar
// pattern. An empty pattern matches everything.
func List(dir, pattern string) ([]Info, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read shm dir %s: %w", dir, err)
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), FilePrefix) {
			continue
		}
		name := strings.TrimPrefix(e.Name(), FilePrefix)
		ok, err := doublestar.Match(pattern, name)
		if err != nil || !ok {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Name:    name,
			Path:    filepath.Join(dir, e.Name()),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}
	return infos, nil
}
