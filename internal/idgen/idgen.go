// Package idgen hands out task identifiers. Callers should treat them as opaque strings.
package idgen

import "github.com/google/uuid"

// NewFunc is swapped out by tests that want predictable IDs.
var NewFunc = func() string { return uuid.New().String() }

func New() string { return NewFunc() }
