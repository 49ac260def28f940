package analytics

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event names emitted by the storefront.
const (
	EventAddToCart = "add_to_cart"
	EventPurchase  = "purchase"
)

// Destinations mirrored from the browser integrations.
const (
	DestinationPixel = "facebook_pixel"
	DestinationGTM   = "gtm"
)

// Event is one analytics side effect.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Destination string    `json:"destination"`
	TrackingID  string    `json:"tracking_id,omitempty"`
	SessionID   string    `json:"session_id"`
	ProductID   string    `json:"product_id,omitempty"`
	ProductName string    `json:"product_name,omitempty"`
	Quantity    int       `json:"quantity,omitempty"`
	Value       float64   `json:"value"`
	Currency    string    `json:"currency,omitempty"`
	At          time.Time `json:"at"`
}

// Tracker receives analytics events. Implementations must not block the caller for long.
type Tracker interface {
	Track(ctx context.Context, event Event)
}

// IDs holds the tracking ids configured for the storefront.
type IDs struct {
	FacebookPixelID string
	GTMID           string
}

// Fanout builds one event per configured destination, as the browser fires both the
// pixel and the GTM data layer push.
func Fanout(ids IDs, base Event) []Event {
	if base.At.IsZero() {
		base.At = time.Now()
	}
	events := make([]Event, 0, 2)
	for _, dest := range []struct{ name, id string }{
		{DestinationPixel, ids.FacebookPixelID},
		{DestinationGTM, ids.GTMID},
	} {
		e := base
		e.ID = uuid.NewString()
		e.Destination = dest.name
		e.TrackingID = dest.id
		events = append(events, e)
	}
	return events
}

// LogTracker writes events to the standard logger.
type LogTracker struct{}

func (LogTracker) Track(_ context.Context, e Event) {
	log.Printf("[Analytics] %s -> %s session=%s product=%s qty=%d value=%.2f %s",
		e.Name, e.Destination, e.SessionID, e.ProductID, e.Quantity, e.Value, e.Currency)
}

// MemoryTracker records events; used by tests and local runs.
type MemoryTracker struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemoryTracker) Track(_ context.Context, e Event) {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (m *MemoryTracker) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
