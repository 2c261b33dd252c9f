package store

import "fmt"

// StorageError reports a backend failure (unreachable database, corrupt
// record, failed write). It is surfaced to the caller as a non-fatal
// notice; the store never retries on its own, so the caller keeps its
// in-memory state and decides whether to retry or abort.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
