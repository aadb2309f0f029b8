package engine

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
)

// ErrContentMismatch reports fetched bytes whose git blob id differs from the
// content id in the tree listing.
var ErrContentMismatch = errors.New("content id mismatch")

// blobVerifier hashes bytes as they are written and checks them against the
// expected blob id. Content ids that are not sha1 hex strings are opaque and
// skip verification; only the byte count is tracked.
type blobVerifier struct {
	hasher  plumbing.Hasher
	want    plumbing.Hash
	size    int64
	n       int64
	enabled bool
}

func newBlobVerifier(contentID string, size int64) *blobVerifier {
	if !plumbing.IsHash(contentID) {
		return &blobVerifier{}
	}
	return &blobVerifier{
		hasher:  plumbing.NewHasher(plumbing.BlobObject, size),
		want:    plumbing.NewHash(contentID),
		size:    size,
		enabled: true,
	}
}

func (v *blobVerifier) Write(p []byte) (int, error) {
	v.n += int64(len(p))
	if v.enabled {
		_, _ = v.hasher.Write(p)
	}
	return len(p), nil
}

func (v *blobVerifier) verify() error {
	if !v.enabled {
		return nil
	}
	if v.n != v.size {
		return fmt.Errorf("%w: got %d bytes, listing has %d", ErrContentMismatch, v.n, v.size)
	}
	if got := v.hasher.Sum(); got != v.want {
		return fmt.Errorf("%w: got %s, listing has %s", ErrContentMismatch, got, v.want)
	}
	return nil
}
