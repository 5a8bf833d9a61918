package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewID returns a random identifier, optionally prefixed ("init_ab12…").
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewSortableID returns an identifier whose lexical order follows creation
// time. Log and changelog records use it so same-timestamp records keep a
// stable order.
func NewSortableID(prefix string, at time.Time) string {
	bytes := make([]byte, 6)
	_, _ = rand.Read(bytes)
	stamp := fmt.Sprintf("%016x", at.UTC().UnixNano())
	if prefix == "" {
		return stamp + hex.EncodeToString(bytes)
	}
	return prefix + "_" + stamp + hex.EncodeToString(bytes)
}
