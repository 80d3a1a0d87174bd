package shmem

import (
	"os"
	"sync/atomic"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple", input: "raw", wantErr: false},
		{name: "dotted", input: "pos.filtered", wantErr: false},
		{name: "empty", input: "", wantErr: true},
		{name: "dot", input: ".", wantErr: true},
		{name: "dotdot", input: "..", wantErr: true},
		{name: "slash", input: "a/b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHeaderSizeRoundsToPages(t *testing.T) {
	page := os.Getpagesize()

	assert.Equal(t, page, HeaderSize(0))
	assert.Equal(t, page, HeaderSize(1))
	assert.Equal(t, page, HeaderSize(page))
	assert.Equal(t, 2*page, HeaderSize(page+1))
}

func TestOpenCreatesHeader(t *testing.T) {
	dir := t.TempDir()

	seg, err := Open(dir, "raw", 100)
	require.NoError(t, err)
	defer seg.Close()

	assert.Equal(t, "raw", seg.Name())
	assert.Equal(t, Path(dir, "raw"), seg.Path())
	assert.Len(t, seg.Header(), HeaderSize(100))

	fi, err := os.Stat(seg.Path())
	require.NoError(t, err)
	assert.Equal(t, int64(HeaderSize(100)), fi.Size())
}

func TestTwoMappingsShareMemory(t *testing.T) {
	dir := t.TempDir()

	a, err := Open(dir, "shared", 64)
	require.NoError(t, err)
	defer a.Close()

	b, err := Open(dir, "shared", 64)
	require.NoError(t, err)
	defer b.Close()

	a.Header()[10] = 0x5a
	assert.Equal(t, byte(0x5a), b.Header()[10])

	require.NoError(t, a.WithLock(func() error { return a.Grow(8192) }))
	da, err := a.Data(8192)
	require.NoError(t, err)
	da[8191] = 7

	db, err := b.Data(8192)
	require.NoError(t, err)
	assert.Equal(t, byte(7), db[8191])
}

func TestDataDoesNotGrowFile(t *testing.T) {
	seg, err := Open(t.TempDir(), "short", 64)
	require.NoError(t, err)
	defer seg.Close()

	_, err = seg.Data(16)
	assert.ErrorIs(t, err, ErrShortSegment)
}

func TestOpenNeverShrinks(t *testing.T) {
	dir := t.TempDir()

	a, err := Open(dir, "big", 64)
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.WithLock(func() error { return a.Grow(1 << 16) }))

	b, err := Open(dir, "big", 64)
	require.NoError(t, err)
	defer b.Close()

	fi, err := os.Stat(a.Path())
	require.NoError(t, err)
	assert.Equal(t, int64(HeaderSize(64)+1<<16), fi.Size())
}

func TestUnlinkThenReopenGetsFreshFile(t *testing.T) {
	dir := t.TempDir()

	a, err := Open(dir, "chan", 64)
	require.NoError(t, err)
	defer a.Close()
	a.Header()[0] = 1
	require.NoError(t, a.WithLock(a.Unlink))

	unlinked, err := a.Unlinked()
	require.NoError(t, err)
	assert.True(t, unlinked)

	b, err := Open(dir, "chan", 64)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, byte(0), b.Header()[0])

	unlinked, err = b.Unlinked()
	require.NoError(t, err)
	assert.False(t, unlinked)
}

func TestCloseIsIdempotent(t *testing.T) {
	seg, err := Open(t.TempDir(), "twice", 64)
	require.NoError(t, err)

	require.NoError(t, seg.Close())
	require.NoError(t, seg.Close())
	assert.ErrorIs(t, seg.WithLock(func() error { return nil }), ErrClosed)
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"raw", "pos", "pos.dec"} {
		seg, err := Open(dir, name, 64)
		require.NoError(t, err)
		require.NoError(t, seg.Close())
	}
	require.NoError(t, os.WriteFile(dir+"/unrelated", []byte("x"), 0o600))

	all, err := List(dir, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	pos, err := List(dir, "pos*")
	require.NoError(t, err)
	names := make([]string, 0, len(pos))
	for _, info := range pos {
		names = append(names, info.Name)
	}
	assert.ElementsMatch(t, []string{"pos", "pos.dec"}, names)

	_, err = List(dir, "[")
	assert.Error(t, err)
}

func TestWaitWakesOnChange(t *testing.T) {
	seg, err := Open(t.TempDir(), "futex", 64)
	require.NoError(t, err)
	defer seg.Close()

	word := (*atomic.Uint32)(unsafe.Pointer(&seg.Header()[0]))
	done := make(chan struct{})
	go func() {
		for word.Load() == 0 {
			Wait(word, 0)
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	word.Store(1)
	WakeAll(word)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken")
	}
}
