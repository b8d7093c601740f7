// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibliography

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	// ErrParse indicates a malformed bibliography. It is fatal for a run.
	ErrParse = errors.New("bibliography parse error")

	// ErrKeyNotFound indicates a requested citation key that has no entry.
	ErrKeyNotFound = errors.New("citation key not found")
)

// ParseError describes a malformed entry. Line is 1-based and zero when the
// position is unknown; Key is set when the entry key could be recovered.
type ParseError struct {
	Path string
	Line int
	Key  string
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	where := e.Path
	if where == "" {
		where = "<input>"
	}
	if e.Line > 0 {
		where = fmt.Sprintf("%s:%d", where, e.Line)
	}
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("%s: entry %q: %s", where, e.Key, msg)
	}
	return fmt.Sprintf("%s: %s", where, msg)
}

// Unwrap returns the underlying decoder error, if any.
func (e *ParseError) Unwrap() error { return e.Err }

// Is implements errors.Is support.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// KeyNotFoundError reports a requested key absent from the bibliography.
type KeyNotFoundError struct {
	Key string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrKeyNotFound, e.Key)
}

// Is implements errors.Is support.
func (e *KeyNotFoundError) Is(target error) bool { return target == ErrKeyNotFound }

// MissingKeys collects the keys of every KeyNotFoundError inside err,
// following both single and joined wrapping.
func MissingKeys(err error) []string {
	switch e := err.(type) {
	case nil:
		return nil
	case *KeyNotFoundError:
		return []string{e.Key}
	case interface{ Unwrap() []error }:
		var keys []string
		for _, inner := range e.Unwrap() {
			keys = append(keys, MissingKeys(inner)...)
		}
		return keys
	case interface{ Unwrap() error }:
		return MissingKeys(e.Unwrap())
	}
	return nil
}
