// Package storage defines the durable key-value medium behind the note store.
package storage

import (
	"fmt"
	"regexp"
)

// Provider is a key-value persistence medium addressable by a single string key.
type Provider interface {
	// Get returns the value stored under key. A missing key yields an error
	// matching os.ErrNotExist.
	Get(key string) ([]byte, error)
	// Set atomically replaces the value stored under key.
	Set(key string, value []byte) error
}

var keyRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// validKey rejects empty keys and anything that could escape a directory.
func validKey(key string) error {
	if !keyRe.MatchString(key) || key == "." || key == ".." {
		return fmt.Errorf("storage: invalid key %q", key)
	}
	return nil
}
