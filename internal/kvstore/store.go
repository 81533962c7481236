// Package kvstore provides durable string-keyed slots. Each slot holds one
// opaque value that is always written whole.
package kvstore

import (
	"context"
	"errors"
	"strings"
)

var ErrInvalidKey = errors.New("invalid key")

type Store interface {
	// Get returns the value stored under key; ok is false when the slot was
	// never written.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
}

func validKey(key string) bool {
	if key == "" || len(key) > 128 {
		return false
	}
	return !strings.ContainsAny(key, "/\\\x00") && key != "." && key != ".."
}
