package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/example/storefront/internal/persist"
	"github.com/example/storefront/internal/sdk"
)

// BaseCurrency is the store currency every price is quoted in.
const BaseCurrency = "SAR"

// ErrUnknownCurrency is returned when selecting a currency the store does not offer.
var ErrUnknownCurrency = errors.New("unknown currency")

type CurrencyState struct {
	SelectedCurrency    string         `json:"selectedCurrency"`
	AvailableCurrencies []sdk.Currency `json:"availableCurrencies"`
}

// CurrencyStore is a display concern: conversion is one hop from SAR by the selected rate.
type CurrencyStore struct {
	p *persisted

	mu    sync.RWMutex
	state CurrencyState
}

// NewCurrencyStore constructs CurrencyStore.
func NewCurrencyStore(deps Deps) *CurrencyStore {
	return &CurrencyStore{
		p:     newPersisted(deps, persist.KeyCurrency, "currency"),
		state: CurrencyState{SelectedCurrency: BaseCurrency},
	}
}

// Hydrate restores the selected currency, keeping the default when nothing was saved.
func (s *CurrencyStore) Hydrate(ctx context.Context) error {
	st := CurrencyState{SelectedCurrency: BaseCurrency}
	if _, err := s.p.load(ctx, &st); err != nil {
		return err
	}
	if st.SelectedCurrency == "" {
		st.SelectedCurrency = BaseCurrency
	}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current state.
func (s *CurrencyStore) Snapshot() CurrencyState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.AvailableCurrencies = append([]sdk.Currency(nil), s.state.AvailableCurrencies...)
	return st
}

// SetAvailable replaces the offered currencies. A selection that is no longer offered
// falls back to SAR.
func (s *CurrencyStore) SetAvailable(ctx context.Context, currencies []sdk.Currency) error {
	s.mu.Lock()
	s.state.AvailableCurrencies = append([]sdk.Currency(nil), currencies...)
	if _, ok := lookup(s.state.AvailableCurrencies, s.state.SelectedCurrency); !ok {
		s.state.SelectedCurrency = BaseCurrency
	}
	st := s.state
	s.mu.Unlock()
	return s.p.save(ctx, st)
}

// Select changes the display currency.
func (s *CurrencyStore) Select(ctx context.Context, code string) (CurrencyState, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	s.mu.Lock()
	if _, ok := lookup(s.state.AvailableCurrencies, code); !ok {
		s.mu.Unlock()
		return CurrencyState{}, fmt.Errorf("%w: %s", ErrUnknownCurrency, code)
	}
	s.state.SelectedCurrency = code
	st := s.state
	s.mu.Unlock()

	return st, s.p.save(ctx, st)
}

// Rate returns the SAR->code rate; SAR and unknown codes use 1.
func (s *CurrencyStore) Rate(code string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := lookup(s.state.AvailableCurrencies, code); ok && c.Rate > 0 {
		return c.Rate
	}
	return 1
}

// Convert turns a SAR amount into the selected currency.
func (s *CurrencyStore) Convert(amount float64) float64 {
	s.mu.RLock()
	code := s.state.SelectedCurrency
	s.mu.RUnlock()
	return amount * s.Rate(code)
}

// Format renders a SAR amount in the selected currency.
func (s *CurrencyStore) Format(amount float64) string {
	s.mu.RLock()
	code := s.state.SelectedCurrency
	c, ok := lookup(s.state.AvailableCurrencies, code)
	s.mu.RUnlock()

	label := code
	if ok && c.Symbol != "" {
		label = c.Symbol
	}
	return fmt.Sprintf("%.2f %s", s.Convert(amount), label)
}

func lookup(currencies []sdk.Currency, code string) (sdk.Currency, bool) {
	if strings.EqualFold(code, BaseCurrency) {
		for _, c := range currencies {
			if strings.EqualFold(c.Code, BaseCurrency) {
				return c, true
			}
		}
		return sdk.Currency{Code: BaseCurrency, Rate: 1}, true
	}
	for _, c := range currencies {
		if strings.EqualFold(c.Code, code) {
			return c, true
		}
	}
	return sdk.Currency{}, false
}
