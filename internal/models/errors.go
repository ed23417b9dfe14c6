package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the cache and query layers. Wrap with fmt.Errorf("...: %w", ...)
// and test with errors.Is.
var (
	// ErrSourceNotFound means the source file does not exist.
	ErrSourceNotFound = errors.New("source file not found")
	// ErrSourceUnreadable means the source file exists but cannot be read
	// (permissions, truncation, corruption).
	ErrSourceUnreadable = errors.New("source file unreadable")
	// ErrCredentialsRequired means the source is encrypted and no password was supplied.
	ErrCredentialsRequired = errors.New("credentials required: re-run with --password")
	// ErrInvalidCredentials means the supplied password was rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCacheCorrupt means a cache directory is present but inconsistent
	// (e.g. the index references a missing chunk body).
	ErrCacheCorrupt = errors.New("cache corrupt: re-run extract with --force")
	// ErrNotFound is a normal negative query result (no such cache, heading, or unit).
	ErrNotFound = errors.New("not found")
)

// HeadingNotFoundError reports a heading lookup miss along with the headings
// that do exist, so the caller can retry with a real one.
type HeadingNotFoundError struct {
	Name      string
	Available []string
}

func (e *HeadingNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("heading %q not found (document has no headings)", e.Name)
	}
	return fmt.Sprintf("heading %q not found; available: %s", e.Name, strings.Join(e.Available, ", "))
}

// Is makes HeadingNotFoundError match ErrNotFound.
func (e *HeadingNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// UnitNotFoundError reports a unit lookup miss along with the sheets that do exist.
type UnitNotFoundError struct {
	UnitID    string
	Available []string
}

func (e *UnitNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unit %q not found (document has no sheets or tables)", e.UnitID)
	}
	return fmt.Sprintf("unit %q not found; available: %s", e.UnitID, strings.Join(e.Available, ", "))
}

// Is makes UnitNotFoundError match ErrNotFound.
func (e *UnitNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
