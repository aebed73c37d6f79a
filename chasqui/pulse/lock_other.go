//go:build !unix

package pulse

import "github.com/teranos/yanantin/errors"

// Lock is a held exclusive pulse lock.
type Lock struct{}

// TryLock is unavailable without flock.
func TryLock(path string) (*Lock, bool, error) {
	return nil, false, errors.Newf("pulse lock %s: exclusive file locks need a unix platform", path)
}

// Release drops the lock.
func (l *Lock) Release() error { return nil }
