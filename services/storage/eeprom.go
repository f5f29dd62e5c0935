// services/storage/eeprom.go
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"hwmonitor-go/errcode"
)

// Backend is the physical non-volatile medium behind the EEPROM image.
// *os.File satisfies it.
type Backend interface {
	io.ReaderAt
	io.WriterAt
	Sync() error
}

// EEPROM emulates a byte-addressable EEPROM: the whole image lives in RAM,
// Put only touches RAM, and Commit writes the image back to the backend.
type EEPROM struct {
	mu    sync.Mutex
	b     Backend
	img   []byte
	dirty bool
}

// Open reads size bytes from b. Bytes the backend cannot supply read as 0xFF
// (erased flash).
func Open(b Backend, size int) (*EEPROM, error) {
	if size <= 0 {
		return nil, errcode.New(errcode.InvalidParams, "eeprom.open", "size must be positive")
	}
	img := make([]byte, size)
	n, err := b.ReadAt(img, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errcode.Wrap(errcode.Error, "eeprom.open", err)
	}
	for i := n; i < size; i++ {
		img[i] = 0xFF
	}
	return &EEPROM{b: b, img: img}, nil
}

func (e *EEPROM) Size() int { return len(e.img) }

func (e *EEPROM) bounds(op string, off, n int) error {
	if off < 0 || n < 0 || off+n > len(e.img) {
		return errcode.New(errcode.InvalidParams, op, fmt.Sprintf("range %d+%d outside %d-byte image", off, n, len(e.img)))
	}
	return nil
}

// Get copies len(p) bytes at off out of the RAM image.
func (e *EEPROM) Get(off int, p []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.bounds("eeprom.get", off, len(p)); err != nil {
		return err
	}
	copy(p, e.img[off:])
	return nil
}

// Put copies p into the RAM image at off.
func (e *EEPROM) Put(off int, p []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.bounds("eeprom.put", off, len(p)); err != nil {
		return err
	}
	copy(e.img[off:], p)
	e.dirty = true
	return nil
}

// Commit writes the image to the backend and syncs it. A clean image is not
// rewritten.
func (e *EEPROM) Commit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.dirty {
		return nil
	}
	if _, err := e.b.WriteAt(e.img, 0); err != nil {
		return errcode.Wrap(errcode.CommitFailed, "eeprom.commit", err)
	}
	if err := e.b.Sync(); err != nil {
		return errcode.Wrap(errcode.CommitFailed, "eeprom.commit", err)
	}
	e.dirty = false
	return nil
}

// ReadBack reads len(p) bytes at off from the backend, bypassing the image.
func (e *EEPROM) ReadBack(off int, p []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.bounds("eeprom.readback", off, len(p)); err != nil {
		return err
	}
	if _, err := e.b.ReadAt(p, int64(off)); err != nil && !errors.Is(err, io.EOF) {
		return errcode.Wrap(errcode.Error, "eeprom.readback", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Backends
// -----------------------------------------------------------------------------

// OpenFile opens (creating if needed) a host file acting as the EEPROM
// medium. A new or short file is extended to size bytes of 0xFF.
func OpenFile(path string, size int) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if have := st.Size(); have < int64(size) {
		pad := make([]byte, int64(size)-have)
		for i := range pad {
			pad[i] = 0xFF
		}
		if _, err := f.WriteAt(pad, have); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}

// Mem is an in-RAM backend for the simulator and tests.
type Mem struct {
	mu  sync.Mutex
	buf []byte

	// SyncErr, when set, is returned by Sync.
	SyncErr error
	// OnWrite may rewrite bytes as they reach the medium.
	OnWrite func(off int64, p []byte)
}

func NewMem(size int) *Mem {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0xFF
	}
	return &Mem{buf: buf}
}

func (m *Mem) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *Mem) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off+int64(len(p)) > int64(len(m.buf)) {
		return 0, io.ErrShortWrite
	}
	w := append([]byte(nil), p...)
	if m.OnWrite != nil {
		m.OnWrite(off, w)
	}
	return copy(m.buf[off:], w), nil
}

func (m *Mem) Sync() error { return m.SyncErr }

// Bytes returns a copy of the medium contents.
func (m *Mem) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.buf...)
}
