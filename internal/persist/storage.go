package persist

import (
	"context"
	"errors"
	"time"
)

// Keys of the per-session entries, matching the storefront's local-storage names.
const (
	KeyAuth      = "auth-storage"
	KeyCart      = "cart-storage"
	KeyWishlist  = "wishlist-storage"
	KeyCurrency  = "currency-storage"
	KeyAuthToken = "auth_token"
)

// ErrInvalidSession is returned for session ids that are not uuids.
var ErrInvalidSession = errors.New("invalid session id")

// Storage is a key/value store namespaced by client session.
type Storage interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, bool, error)
	Set(ctx context.Context, sessionID, key string, value []byte) error
	Remove(ctx context.Context, sessionID, key string) error
	RemoveAll(ctx context.Context, sessionID string) error
	// Touch records activity for the session.
	Touch(ctx context.Context, sessionID, userAgent string) error
	// Purge deletes sessions idle since before and returns how many were removed.
	Purge(ctx context.Context, before time.Time) (int64, error)
}
