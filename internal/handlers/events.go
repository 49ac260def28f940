package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/notify"
)

// EventsHandler streams store changes of the session to open tabs as server-sent events.
type EventsHandler struct {
	hub       *notify.Hub
	heartbeat time.Duration
	done      <-chan struct{}
}

// NewEventsHandler constructs EventsHandler. Open streams end once ctx is done, after
// writing the changes already queued for them.
func NewEventsHandler(ctx context.Context, hub *notify.Hub) *EventsHandler {
	return &EventsHandler{hub: hub, heartbeat: 25 * time.Second, done: ctx.Done()}
}

func (h *EventsHandler) Stream(c *fiber.Ctx) error {
	sess, err := currentSession(c)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	changes, cancel := h.hub.Subscribe(sess.ID)
	sessionID := sess.ID
	heartbeat := h.heartbeat
	done := h.done

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		fmt.Fprintf(w, "event: ready\ndata: {\"session_id\":%q}\n\n", sessionID)
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case change, ok := <-changes:
				if !ok {
					return
				}
				writeChange(w, sessionID, change)
			case <-done:
				for {
					select {
					case change, ok := <-changes:
						if !ok {
							return
						}
						writeChange(w, sessionID, change)
					default:
						w.Flush()
						return
					}
				}
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}

func writeChange(w *bufio.Writer, sessionID string, change notify.Change) {
	payload, err := json.Marshal(change)
	if err != nil {
		log.Printf("[Events] session=%s encode change: %v", sessionID, err)
		return
	}
	fmt.Fprintf(w, "event: change\ndata: %s\n\n", payload)
}
