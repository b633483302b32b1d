package embeddb

import "errors"

// Error kinds surfaced by the core engine. Every fallible public operation
// returns one of these (optionally wrapped with context via fmt.Errorf's
// %w) rather than relying on hidden control flow.
var (
	// ErrInit is returned by Init when a mandatory parameter is out of
	// range or a backing file failed to open.
	ErrInit = errors.New("embeddb: init error")

	// ErrIO is returned whenever the underlying PageFile reports a
	// sticky error after a read, write, seek or flush.
	ErrIO = errors.New("embeddb: io error")

	// ErrDuplicateKey is returned by Put/PutVar when the supplied key is
	// not strictly greater than the last inserted key.
	ErrDuplicateKey = errors.New("embeddb: duplicate key")

	// ErrNotFound is returned by Get/GetVar when the key does not exist
	// in any live page.
	ErrNotFound = errors.New("embeddb: not found")

	// ErrVarDeleted is returned by GetVar when the fixed record is found
	// but its variable payload has fallen below the live watermark.
	ErrVarDeleted = errors.New("embeddb: var data deleted")

	// ErrCapacityExceeded is returned by the sort engine when it cannot
	// allocate the working memory its chosen strategy requires.
	ErrCapacityExceeded = errors.New("embeddb: capacity exceeded")
)
