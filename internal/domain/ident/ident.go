// Package ident generates the human-readable record codes and tells them
// apart from native UUID identifiers.
package ident

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Code prefixes per entity.
const (
	PrefixConsultant   = "CON"
	PrefixAvailability = "AVL"
	PrefixAssignment   = "ASN"
)

// NewCode returns PREFIX-<base36 unix millis><6 hex random chars>, upper-cased.
func NewCode(prefix string) string {
	return newCodeAt(prefix, time.Now())
}

func newCodeAt(prefix string, now time.Time) string {
	b := make([]byte, 3)
	_, _ = rand.Read(b)
	ts := strconv.FormatInt(now.UnixMilli(), 36)
	return strings.ToUpper(prefix + "-" + ts + hex.EncodeToString(b))
}

// NewID returns a new native identifier.
func NewID() string {
	return uuid.NewString()
}

// IsUUID reports whether s is a native identifier rather than a code.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// HasPrefix reports whether s is a code with the given prefix.
func HasPrefix(s, prefix string) bool {
	return strings.HasPrefix(strings.ToUpper(s), prefix+"-")
}
