package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedIdentifier indicates a repository name that is not of the form "owner/name".
var ErrMalformedIdentifier = errors.New("malformed repository identifier")

// Repository represents a GitHub repository whose statistics are tracked.
type Repository struct {
	ID       int64
	FullName string // "owner/name", immutable after creation.
	// LastUpdateTimestamp is the Unix time in seconds of the last successful
	// statistics refresh. Zero means never refreshed.
	LastUpdateTimestamp int64
	AddedAt             time.Time
}

// Update marks the repository as refreshed at now. The timestamp never moves
// backwards and strictly increases on every call.
func (r *Repository) Update(now time.Time) {
	ts := now.Unix()
	if ts <= r.LastUpdateTimestamp {
		ts = r.LastUpdateTimestamp + 1
	}
	r.LastUpdateTimestamp = ts
}

// LastUpdatedAt returns LastUpdateTimestamp as a UTC time, or the zero time
// if the repository has never been refreshed.
func (r Repository) LastUpdatedAt() time.Time {
	if r.LastUpdateTimestamp == 0 {
		return time.Time{}
	}
	return time.Unix(r.LastUpdateTimestamp, 0).UTC()
}

// SplitFullName splits "owner/name" into its two components. The name must
// contain exactly one separator and both parts must be non-empty.
func SplitFullName(fullName string) (owner, name string, err error) {
	if strings.Count(fullName, "/") != 1 {
		return "", "", fmt.Errorf("%w %q: expected owner/name", ErrMalformedIdentifier, fullName)
	}
	owner, name, _ = strings.Cut(fullName, "/")
	if owner == "" || name == "" {
		return "", "", fmt.Errorf("%w %q: expected owner/name", ErrMalformedIdentifier, fullName)
	}
	return owner, name, nil
}
