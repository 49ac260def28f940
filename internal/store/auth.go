package store

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/example/storefront/internal/persist"
	"github.com/example/storefront/internal/sdk"
	"github.com/example/storefront/internal/utils"
)

// AuthSession is the customer login state of a client session.
type AuthSession struct {
	Token           string        `json:"token,omitempty"`
	Customer        *sdk.Customer `json:"customer,omitempty"`
	IsAuthenticated bool          `json:"isAuthenticated"`
}

// AuthStore holds the customer session. The token lives in two places, the auth-storage
// entry and the raw auth_token mirror, and the store is authenticated only when both agree.
type AuthStore struct {
	client *sdk.Client
	p      *persisted

	mu    sync.RWMutex
	state AuthSession
}

// NewAuthStore constructs AuthStore.
func NewAuthStore(client *sdk.Client, deps Deps) *AuthStore {
	return &AuthStore{
		client: client,
		p:      newPersisted(deps, persist.KeyAuth, "auth"),
	}
}

// Hydrate loads both token copies and reconciles them:
//   - both present and equal: authenticated
//   - only the mirror present, or both present but different: the mirror token wins and
//     the stale customer is dropped
//   - only the state token present: logged out
//
// Both copies are rewritten afterwards so they agree, and the SDK token is set.
func (s *AuthStore) Hydrate(ctx context.Context) error {
	var st AuthSession
	if _, err := s.p.load(ctx, &st); err != nil {
		return err
	}
	rawMirror, _, err := s.p.deps.Storage.Get(ctx, s.p.deps.SessionID, persist.KeyAuthToken)
	if err != nil {
		return err
	}
	mirror := strings.TrimSpace(string(rawMirror))

	next := Reconcile(st, mirror)

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	s.client.SetAuthToken(next.Token)

	if next.Token == st.Token && next.IsAuthenticated == st.IsAuthenticated && next.Token == mirror {
		return nil
	}
	log.Printf("[Auth] session=%s reconciled token state=%s mirror=%s authenticated=%t",
		s.p.deps.SessionID, utils.Fingerprint(st.Token), utils.Fingerprint(mirror), next.IsAuthenticated)
	return s.persist(ctx, next)
}

// Reconcile applies the hydrate rule to a persisted state and the mirror token.
func Reconcile(st AuthSession, mirror string) AuthSession {
	switch {
	case mirror == "":
		return AuthSession{}
	case st.Token == mirror:
		st.IsAuthenticated = true
		return st
	default:
		return AuthSession{Token: mirror, IsAuthenticated: true}
	}
}

// Snapshot returns a copy of the current session.
func (s *AuthStore) Snapshot() AuthSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st.Customer != nil {
		c := *st.Customer
		st.Customer = &c
	}
	return st
}

// IsAuthenticated reports whether a customer token is active.
func (s *AuthStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

// SetAuth stores a fresh customer session in both token copies and the SDK.
func (s *AuthStore) SetAuth(ctx context.Context, token string, customer *sdk.Customer) error {
	next := AuthSession{Token: token, Customer: customer, IsAuthenticated: token != ""}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	s.client.SetAuthToken(token)
	log.Printf("[Auth] session=%s authenticated token=%s", s.p.deps.SessionID, utils.Fingerprint(token))
	return s.persist(ctx, next)
}

// Logout ends the remote session (best effort) and clears local state.
func (s *AuthStore) Logout(ctx context.Context) error {
	if s.IsAuthenticated() {
		if err := s.client.Auth.Logout(ctx); err != nil {
			log.Printf("[Auth] session=%s remote logout failed: %v", s.p.deps.SessionID, err)
		}
	}
	return s.Invalidate(ctx)
}

// Invalidate clears the session without calling the API, e.g. after a 401.
func (s *AuthStore) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	s.state = AuthSession{}
	s.mu.Unlock()

	s.client.SetAuthToken("")
	return s.persist(ctx, AuthSession{})
}

// FetchProfile refreshes the customer. A 401 invalidates the local session.
func (s *AuthStore) FetchProfile(ctx context.Context) (*sdk.Customer, error) {
	customer, err := s.client.Auth.GetProfile(ctx)
	if err != nil {
		if sdk.IsUnauthorized(err) {
			_ = s.Invalidate(ctx)
		}
		return nil, err
	}
	return customer, s.setCustomer(ctx, customer)
}

// UpdateProfile saves the profile and replaces the cached customer.
func (s *AuthStore) UpdateProfile(ctx context.Context, in sdk.ProfileUpdate) (*sdk.Customer, error) {
	customer, err := s.client.Auth.UpdateProfile(ctx, in)
	if err != nil {
		return nil, err
	}
	return customer, s.setCustomer(ctx, customer)
}

func (s *AuthStore) setCustomer(ctx context.Context, customer *sdk.Customer) error {
	s.mu.Lock()
	s.state.Customer = customer
	next := s.state
	s.mu.Unlock()
	return s.p.save(ctx, next)
}

func (s *AuthStore) persist(ctx context.Context, st AuthSession) error {
	if err := s.p.save(ctx, st); err != nil {
		return err
	}
	if st.Token == "" {
		return s.p.deps.Storage.Remove(ctx, s.p.deps.SessionID, persist.KeyAuthToken)
	}
	return s.p.deps.Storage.Set(ctx, s.p.deps.SessionID, persist.KeyAuthToken, []byte(st.Token))
}
