// Package checkout starts checkouts and resolves the payment result page.
package checkout

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/example/storefront/internal/authflow"
	"github.com/example/storefront/internal/sdk"
)

var (
	// ErrReauthRequired means the customer token was rejected; the login modal has been
	// reopened and the local session cleared.
	ErrReauthRequired = errors.New("your session has expired, please sign in again")
	ErrMissingTxID    = errors.New("missing checkout id")
	ErrInvalidExpires = errors.New("invalid expires parameter")
	ErrNoResult       = errors.New("no checkout result has been loaded")
)

type Creator interface {
	Create(ctx context.Context) (*sdk.Checkout, error)
}

type StartDeps struct {
	SessionID string
	API       Creator
	Cart      interface{ SyncCartToken() }
	Auth      interface {
		Invalidate(ctx context.Context) error
	}
	Modal interface{ Open() authflow.State }
}

// Start creates a checkout for the current cart. A 401 clears the local auth session and
// reopens the login modal.
func Start(ctx context.Context, d StartDeps) (*sdk.Checkout, error) {
	d.Cart.SyncCartToken()

	co, err := d.API.Create(ctx)
	if err == nil {
		log.Printf("[Checkout] session=%s created checkout %s", d.SessionID, co.ID)
		return co, nil
	}
	if !sdk.IsUnauthorized(err) {
		return nil, err
	}

	log.Printf("[Checkout] session=%s token rejected, reopening login", d.SessionID)
	if ierr := d.Auth.Invalidate(ctx); ierr != nil {
		log.Printf("[Checkout] session=%s invalidate auth: %v", d.SessionID, ierr)
	}
	d.Modal.Open()
	return nil, ErrReauthRequired
}

// Params are the query parameters the payment provider redirects back with.
type Params struct {
	TxID      string    `json:"txid"`
	Expires   time.Time `json:"expires,omitempty"`
	Signature string    `json:"signature,omitempty"`
}

// ParseResultParams validates the result URL query. txid is required; expires, when
// present, is a unix timestamp in seconds.
func ParseResultParams(txid, expires, signature string) (Params, error) {
	p := Params{TxID: strings.TrimSpace(txid), Signature: strings.TrimSpace(signature)}
	if p.TxID == "" {
		return Params{}, ErrMissingTxID
	}
	if expires = strings.TrimSpace(expires); expires != "" {
		sec, err := strconv.ParseInt(expires, 10, 64)
		if err != nil || sec <= 0 {
			return Params{}, ErrInvalidExpires
		}
		p.Expires = time.Unix(sec, 0).UTC()
	}
	return p, nil
}

// Expired reports whether the result link has passed its expiry.
func (p Params) Expired(now time.Time) bool {
	return !p.Expires.IsZero() && now.After(p.Expires)
}
