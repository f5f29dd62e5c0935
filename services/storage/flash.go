// services/storage/flash.go
package storage

import (
	"io"

	"hwmonitor-go/errcode"
)

// BlockDevice is erasable flash, as exposed by machine.Flash on TinyGo.
type BlockDevice interface {
	io.ReaderAt
	io.WriterAt
	EraseBlockSize() int64
	EraseBlocks(start, length int64) error
}

// Flash adapts a BlockDevice to Backend. Writes are read-modify-write over
// whole erase blocks so bytes outside the written range survive.
type Flash struct {
	dev BlockDevice
}

func NewFlash(dev BlockDevice) *Flash { return &Flash{dev: dev} }

func (f *Flash) ReadAt(p []byte, off int64) (int, error) { return f.dev.ReadAt(p, off) }

func (f *Flash) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errcode.New(errcode.InvalidParams, "flash.write", "negative offset")
	}
	if len(p) == 0 {
		return 0, nil
	}
	bs := f.dev.EraseBlockSize()
	if bs <= 0 {
		return 0, errcode.New(errcode.Unsupported, "flash.write", "no erase block size")
	}
	first := off / bs
	last := (off + int64(len(p)) - 1) / bs
	n := last - first + 1

	buf := make([]byte, n*bs)
	if _, err := f.dev.ReadAt(buf, first*bs); err != nil && err != io.EOF {
		return 0, errcode.Wrap(errcode.Error, "flash.write", err)
	}
	copy(buf[off-first*bs:], p)

	if err := f.dev.EraseBlocks(first, n); err != nil {
		return 0, errcode.Wrap(errcode.CommitFailed, "flash.erase", err)
	}
	if _, err := f.dev.WriteAt(buf, first*bs); err != nil {
		return 0, errcode.Wrap(errcode.CommitFailed, "flash.write", err)
	}
	return len(p), nil
}

// Sync is a no-op: WriteAt has reached the flash when it returns.
func (f *Flash) Sync() error { return nil }
