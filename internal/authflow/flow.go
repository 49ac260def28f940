// Package authflow drives the phone/OTP login modal of a client session.
package authflow

import (
	"context"
	"fmt"
	"log"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nyaruka/phonenumbers"

	"github.com/example/storefront/internal/sdk"
	"github.com/example/storefront/internal/store"
	"github.com/example/storefront/internal/utils"
)

type Step string

const (
	StepPhone         Step = "phone"
	StepOTP           Step = "otp"
	StepRegistration  Step = "registration"
	StepAuthenticated Step = "authenticated"
)

const (
	CodeLength     = 4
	OTPExpiry      = 5 * time.Minute
	ResendCooldown = 30 * time.Second
)

// VerifyCooldown is the wait imposed after the given number of failed verifications.
func VerifyCooldown(failures int) time.Duration {
	switch {
	case failures <= 0:
		return 0
	case failures == 1:
		return 5 * time.Second
	case failures == 2:
		return 10 * time.Second
	default:
		return 30 * time.Second
	}
}

var (
	codeRegex  = regexp.MustCompile(`^[0-9]{4}$`)
	emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
)

// Authenticator is the part of the SDK the flow talks to. *sdk.AuthService implements it.
type Authenticator interface {
	StartPhoneAuth(ctx context.Context, phone string) (*sdk.PhoneAuthResponse, error)
	VerifyOTP(ctx context.Context, sessionToken, code string) (*sdk.AuthResponse, error)
	ResendOTP(ctx context.Context, sessionToken string) (*sdk.PhoneAuthResponse, error)
	CompleteRegistration(ctx context.Context, in sdk.RegistrationInput) (*sdk.AuthResponse, error)
}

// CartMerger is the cart behaviour needed on login.
type CartMerger interface {
	SyncCartToken()
	Token() string
	AdoptToken(ctx context.Context, token string) (bool, error)
	FetchCart(ctx context.Context) (store.CartState, error)
}

type SessionSetter interface {
	SetAuth(ctx context.Context, token string, customer *sdk.Customer) error
}

type WishlistFetcher interface {
	Fetch(ctx context.Context) (store.WishlistState, error)
}

type Deps struct {
	SessionID string
	API       Authenticator
	Auth      SessionSetter
	Cart      CartMerger
	Wishlist  WishlistFetcher // optional
	Now       func() time.Time
}

// State is the view model of the modal.
type State struct {
	Open           bool          `json:"open"`
	Step           Step          `json:"step"`
	Phone          string        `json:"phone,omitempty"`
	Attempts       int           `json:"attempts"`
	VerifyCooldown int           `json:"verify_cooldown"`
	VerifyDisabled bool          `json:"verify_disabled"`
	ResendCooldown int           `json:"resend_cooldown"`
	ExpiresIn      int           `json:"expires_in"`
	Expired        bool          `json:"expired"`
	Customer       *sdk.Customer `json:"customer,omitempty"`
}

// Flow is the modal state machine. The OTP session is transient and never persisted.
type Flow struct {
	deps Deps
	now  func() time.Time

	mu           sync.Mutex
	open         bool
	step         Step
	phone        string
	sessionToken string
	otpSentAt    time.Time
	resendUntil  time.Time
	verifyUntil  time.Time
	attempts     int
	customer     *sdk.Customer
}

func New(deps Deps) *Flow {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Flow{deps: deps, now: now, step: StepPhone}
}

// Open shows the modal at the phone step.
func (f *Flow) Open() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clear()
	f.open = true
	return f.stateLocked()
}

// Reset abandons the flow (modal closed) and returns to the phone step.
func (f *Flow) Reset() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clear()
	return f.stateLocked()
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

// SubmitPhone starts phone authentication. The number must be a valid international
// (E.164) number; nothing is sent otherwise.
func (f *Flow) SubmitPhone(ctx context.Context, raw string) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step != StepPhone && f.step != StepOTP {
		return f.stateLocked(), reject(ErrWrongStep)
	}
	phone, ok := NormalizePhone(raw)
	if !ok {
		return f.stateLocked(), reject(ErrInvalidPhone)
	}
	// Sending to the same number again counts as a resend: the resend cooldown applies and
	// failed attempts with their lockout carry over.
	samePhone := f.step == StepOTP && phone == f.phone
	if samePhone {
		if wait := f.resendUntil.Sub(f.now()); wait > 0 {
			return f.stateLocked(), cooldown(ErrResendCooldown, wait)
		}
	}

	resp, err := f.deps.API.StartPhoneAuth(ctx, phone)
	if err != nil {
		log.Printf("[AuthFlow] session=%s start phone auth failed: %v", f.deps.SessionID, err)
		return f.stateLocked(), err
	}

	now := f.now()
	f.open = true
	f.step = StepOTP
	f.phone = phone
	f.sessionToken = resp.SessionToken
	f.otpSentAt = now
	f.resendUntil = now.Add(ResendCooldown)
	if !samePhone {
		f.verifyUntil = time.Time{}
		f.attempts = 0
	}
	log.Printf("[AuthFlow] session=%s code sent phone=%s", f.deps.SessionID, utils.Fingerprint(phone))
	return f.stateLocked(), nil
}

// SubmitOTP verifies a code. Validation, expiry and cooldown are checked first, in that
// order, and reject without calling the API.
func (f *Flow) SubmitOTP(ctx context.Context, code string) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step != StepOTP {
		return f.stateLocked(), reject(ErrWrongStep)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return f.stateLocked(), reject(ErrEmptyOTP)
	}
	if !codeRegex.MatchString(code) {
		return f.stateLocked(), reject(ErrInvalidOTP)
	}
	now := f.now()
	if now.Sub(f.otpSentAt) > OTPExpiry {
		return f.stateLocked(), reject(ErrOTPExpired)
	}
	if wait := f.verifyUntil.Sub(now); wait > 0 {
		return f.stateLocked(), cooldown(ErrVerifyCooldown, wait)
	}

	f.deps.Cart.SyncCartToken()
	resp, err := f.deps.API.VerifyOTP(ctx, f.sessionToken, code)
	if err != nil {
		f.attempts++
		f.verifyUntil = f.now().Add(VerifyCooldown(f.attempts))
		log.Printf("[AuthFlow] session=%s verification failed attempts=%d: %v", f.deps.SessionID, f.attempts, err)
		return f.stateLocked(), err
	}

	if resp.NeedsRegistration() {
		if resp.SessionToken != "" {
			f.sessionToken = resp.SessionToken
		}
		f.step = StepRegistration
		return f.stateLocked(), nil
	}
	if err := f.authenticate(ctx, resp); err != nil {
		return f.stateLocked(), err
	}
	return f.stateLocked(), nil
}

// Resend requests a new code once the resend cooldown has elapsed.
func (f *Flow) Resend(ctx context.Context) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step != StepOTP {
		return f.stateLocked(), reject(ErrWrongStep)
	}
	if wait := f.resendUntil.Sub(f.now()); wait > 0 {
		return f.stateLocked(), cooldown(ErrResendCooldown, wait)
	}

	resp, err := f.deps.API.ResendOTP(ctx, f.sessionToken)
	if err != nil {
		return f.stateLocked(), err
	}
	if resp.SessionToken != "" {
		f.sessionToken = resp.SessionToken
	}

	now := f.now()
	f.attempts = 0
	f.verifyUntil = time.Time{}
	f.otpSentAt = now
	f.resendUntil = now.Add(ResendCooldown)
	return f.stateLocked(), nil
}

// Registration holds the fields of the registration step.
type Registration struct {
	Name     string `json:"name"`
	LastName string `json:"last_name"`
	Email    string `json:"email"`
}

func (f *Flow) CompleteRegistration(ctx context.Context, in Registration) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step != StepRegistration {
		return f.stateLocked(), reject(ErrWrongStep)
	}
	in.Name = strings.TrimSpace(in.Name)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" {
		return f.stateLocked(), reject(ErrMissingName)
	}
	if in.Email != "" && !emailRegex.MatchString(in.Email) {
		return f.stateLocked(), reject(ErrInvalidEmail)
	}

	f.deps.Cart.SyncCartToken()
	resp, err := f.deps.API.CompleteRegistration(ctx, sdk.RegistrationInput{
		SessionToken: f.sessionToken,
		Name:         in.Name,
		LastName:     in.LastName,
		Email:        in.Email,
	})
	if err != nil {
		return f.stateLocked(), err
	}
	if err := f.authenticate(ctx, resp); err != nil {
		return f.stateLocked(), err
	}
	return f.stateLocked(), nil
}

// authenticate stores the customer session and reconciles the cart. A guest cart token
// that existed before login is kept and the cart refetched so the backend merges it; the
// response token is adopted only when there was none.
func (f *Flow) authenticate(ctx context.Context, resp *sdk.AuthResponse) error {
	if resp.Token == "" {
		return reject(ErrMissingToken)
	}
	if err := f.deps.Auth.SetAuth(ctx, resp.Token, resp.Customer); err != nil {
		return fmt.Errorf("store auth session: %w", err)
	}

	if guest := f.deps.Cart.Token(); guest != "" {
		if resp.CartToken != "" && resp.CartToken != guest {
			log.Printf("[AuthFlow] session=%s keeping guest cart %s, ignoring %s",
				f.deps.SessionID, utils.Fingerprint(guest), utils.Fingerprint(resp.CartToken))
		}
		if _, err := f.deps.Cart.FetchCart(ctx); err != nil {
			log.Printf("[AuthFlow] session=%s cart refetch after login failed: %v", f.deps.SessionID, err)
		}
	} else if adopted, err := f.deps.Cart.AdoptToken(ctx, resp.CartToken); err != nil {
		log.Printf("[AuthFlow] session=%s adopt cart token failed: %v", f.deps.SessionID, err)
	} else if adopted {
		if _, err := f.deps.Cart.FetchCart(ctx); err != nil {
			log.Printf("[AuthFlow] session=%s cart fetch after login failed: %v", f.deps.SessionID, err)
		}
	}

	if f.deps.Wishlist != nil {
		if _, err := f.deps.Wishlist.Fetch(ctx); err != nil {
			log.Printf("[AuthFlow] session=%s wishlist refetch after login failed: %v", f.deps.SessionID, err)
		}
	}

	f.clear()
	f.step = StepAuthenticated
	f.customer = resp.Customer
	log.Printf("[AuthFlow] session=%s authenticated", f.deps.SessionID)
	return nil
}

func (f *Flow) clear() {
	f.open = false
	f.step = StepPhone
	f.phone = ""
	f.sessionToken = ""
	f.otpSentAt = time.Time{}
	f.resendUntil = time.Time{}
	f.verifyUntil = time.Time{}
	f.attempts = 0
	f.customer = nil
}

func (f *Flow) stateLocked() State {
	now := f.now()
	st := State{
		Open:     f.open,
		Step:     f.step,
		Phone:    f.phone,
		Attempts: f.attempts,
		Customer: f.customer,
	}
	if f.step != StepOTP {
		return st
	}
	st.VerifyCooldown = seconds(f.verifyUntil.Sub(now))
	st.ResendCooldown = seconds(f.resendUntil.Sub(now))
	left := f.otpSentAt.Add(OTPExpiry).Sub(now)
	st.ExpiresIn = seconds(left)
	st.Expired = left < 0
	st.VerifyDisabled = st.VerifyCooldown > 0 || st.Expired
	return st
}

func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// NormalizePhone validates an international number and returns it in E.164 form.
func NormalizePhone(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "+") {
		return "", false
	}
	num, err := phonenumbers.Parse(raw, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}
