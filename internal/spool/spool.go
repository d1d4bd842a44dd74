package spool

import (
	"context"
	"errors"
	"io"
)

// ErrTooLarge reports an upload that exceeded the configured size cap.
var ErrTooLarge = errors.New("upload exceeds size limit")

// Spool stages uploaded payloads between intake and import. Keys are
// opaque. The distributed backend relies on the staged copy outliving the
// HTTP request that carried the upload, and imports may read the same key
// more than once (row pre-count, then chunking).
type Spool interface {
	// Put streams r into the spool under key, enforcing max bytes when
	// max > 0. Returns the number of bytes written.
	Put(ctx context.Context, key string, r io.Reader, max int64) (int64, error)
	// Open returns the staged payload for reading from the start.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Remove discards the staged payload. Removing an absent key is not
	// an error.
	Remove(ctx context.Context, key string) error
}

func copyCapped(w io.Writer, r io.Reader, max int64) (int64, error) {
	if max <= 0 {
		return io.Copy(w, r)
	}
	n, err := io.Copy(w, io.LimitReader(r, max+1))
	if err != nil {
		return n, err
	}
	if n > max {
		return n, ErrTooLarge
	}
	return n, nil
}
