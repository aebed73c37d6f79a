//go:build unix

package pulse

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/teranos/yanantin/errors"
)

// Lock is a held exclusive pulse lock.
type Lock struct {
	f *os.File
}

// TryLock takes an exclusive, non-blocking flock on path. It returns
// (nil, false, nil) when another process holds the lock.
func TryLock(path string) (*Lock, bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, false, errors.Wrapf(err, "create lock dir for %s", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, false, errors.Wrapf(err, "open lock %s", path)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "flock %s", path)
	}
	return &Lock{f: f}, true, nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	defer func() { l.f = nil }()
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return errors.Wrap(err, "unlock pulse")
	}
	return l.f.Close()
}
