// services/ota/updater.go
package ota

import (
	"errors"
	"os"

	"hwmonitor-go/errcode"

	"go.uber.org/zap"
)

// Updater is the flash-update primitive: one image per Begin/End.
type Updater interface {
	Begin(size int64) error
	Write(p []byte) (int, error)
	End() error
	Abort() error
}

// FileUpdater stages the image next to Path and renames it into place on
// End, so a partial upload never replaces the current image.
type FileUpdater struct {
	Path    string
	MaxSize int64 // 0 = unlimited

	log *zap.Logger
	f   *os.File
	n   int64
}

func NewFileUpdater(path string, log *zap.Logger) *FileUpdater {
	return &FileUpdater{Path: path, log: log}
}

func (u *FileUpdater) staging() string { return u.Path + ".new" }

func (u *FileUpdater) Begin(size int64) error {
	if u.f != nil {
		return errcode.New(errcode.Busy, "ota.begin", "update in progress")
	}
	if u.MaxSize > 0 && size > u.MaxSize {
		return errcode.New(errcode.InvalidParams, "ota.begin", "image too large")
	}
	f, err := os.OpenFile(u.staging(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errcode.Wrap(errcode.Error, "ota.begin", err)
	}
	u.f, u.n = f, 0
	u.log.Info("update begin", zap.String("staging", u.staging()), zap.Int64("size", size))
	return nil
}

func (u *FileUpdater) Write(p []byte) (int, error) {
	if u.f == nil {
		return 0, errcode.New(errcode.InvalidParams, "ota.write", "not started")
	}
	if u.MaxSize > 0 && u.n+int64(len(p)) > u.MaxSize {
		return 0, errcode.New(errcode.InvalidParams, "ota.write", "image too large")
	}
	n, err := u.f.Write(p)
	u.n += int64(n)
	return n, err
}

func (u *FileUpdater) End() error {
	if u.f == nil {
		return errcode.New(errcode.InvalidParams, "ota.end", "not started")
	}
	f := u.f
	u.f = nil
	if u.n == 0 {
		f.Close()
		os.Remove(u.staging())
		return errcode.New(errcode.InvalidParams, "ota.end", "empty image")
	}
	if err := errors.Join(f.Sync(), f.Close()); err != nil {
		os.Remove(u.staging())
		return errcode.Wrap(errcode.CommitFailed, "ota.end", err)
	}
	if err := os.Rename(u.staging(), u.Path); err != nil {
		return errcode.Wrap(errcode.CommitFailed, "ota.end", err)
	}
	u.log.Info("update installed", zap.String("path", u.Path), zap.Int64("bytes", u.n))
	return nil
}

func (u *FileUpdater) Abort() error {
	if u.f == nil {
		return nil
	}
	u.f.Close()
	u.f = nil
	u.log.Warn("update aborted", zap.Int64("bytes", u.n))
	return os.Remove(u.staging())
}

// NoSlot rejects every image. Boards without a second firmware slot use it.
type NoSlot struct{}

var errNoSlot = errcode.New(errcode.Unsupported, "ota.begin", "no firmware slot on this board")

func (NoSlot) Begin(int64) error           { return errNoSlot }
func (NoSlot) Write(p []byte) (int, error) { return 0, errNoSlot }
func (NoSlot) End() error                  { return errNoSlot }
func (NoSlot) Abort() error                { return nil }
