// Package source provides the byte-addressed key/value abstraction the core is built
// against for all persisted bytes (metadata, chunk files) plus the point-file reader
// collaborator used to stream points out of input files during insert.
package source

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Driver.Get when key does not exist.
var ErrNotFound = errors.New("source: key not found")

// Driver is the byte-addressed KV interface the core is written against; local
// filesystem paths and remote object stores implement the same shape so the core is
// oblivious to which one backs a given build.
type Driver interface {
	// Get returns the bytes stored at key, or ErrNotFound if key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put writes data at key, creating or overwriting it.
	Put(ctx context.Context, key string, data []byte) error
	// Exists reports whether key is present without transferring its bytes.
	Exists(ctx context.Context, key string) (bool, error)
}

// Lister is an optional Driver extension for drivers that can enumerate their keys
// (local filesystem and every object store this package supports do). Finalize uses
// it to walk a completed build without the core needing to track every key it ever
// wrote.
type Lister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// Credentials is the decoded form of the CLI's optional credentials file: an access
// identifier plus a free-form provider-specific "hidden" blob (a service-account JSON
// document for GCS, a connection string for Azure).
type Credentials struct {
	Access string `json:"access"`
	Hidden string `json:"hidden"`
}
