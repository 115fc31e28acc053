package ingest

import "fmt"

// Index operations reported by IndexUnavailableError.
const (
	OpOpen    = "open"
	OpLock    = "lock"
	OpNearest = "nearest"
	OpAdd     = "add"
)

// DocumentLoadError means the source document was missing or unreadable.
// No chunks were produced.
type DocumentLoadError struct {
	Ref string
	Err error
}

func (e *DocumentLoadError) Error() string {
	return fmt.Sprintf("load document %s: %v", e.Ref, e.Err)
}

func (e *DocumentLoadError) Unwrap() error { return e.Err }

// IndexUnavailableError means the index could not be opened, locked,
// queried or written.
type IndexUnavailableError struct {
	Op  string
	Err error
}

func (e *IndexUnavailableError) Error() string {
	return fmt.Sprintf("index %s: %v", e.Op, e.Err)
}

func (e *IndexUnavailableError) Unwrap() error { return e.Err }

// EmbeddingError means the model failed on a chunk. Chunk is 1-based.
// Records committed for earlier chunks remain in the index.
type EmbeddingError struct {
	Chunk int
	Total int
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed chunk %d of %d: %v", e.Chunk, e.Total, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// PersistError means every chunk was processed but the flush to durable
// storage failed. Retry with Service.Persist.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist index: %v", e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
