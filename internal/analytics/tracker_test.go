package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanout_OneEventPerDestination(t *testing.T) {
	events := Fanout(IDs{FacebookPixelID: "px-1", GTMID: "GTM-1"}, Event{
		Name:      EventAddToCart,
		SessionID: "s1",
		ProductID: "p1",
		Quantity:  2,
		Value:     50,
		Currency:  "SAR",
	})

	require.Len(t, events, 2)
	assert.Equal(t, DestinationPixel, events[0].Destination)
	assert.Equal(t, "px-1", events[0].TrackingID)
	assert.Equal(t, DestinationGTM, events[1].Destination)
	assert.Equal(t, "GTM-1", events[1].TrackingID)
	assert.NotEqual(t, events[0].ID, events[1].ID)
	for _, e := range events {
		assert.Equal(t, EventAddToCart, e.Name)
		assert.Equal(t, 2, e.Quantity)
		assert.False(t, e.At.IsZero())
	}
}
