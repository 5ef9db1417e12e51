// Package notify posts lifecycle events to an external webhook.
//
// Delivery is fire-and-forget: each event is sent on its own goroutine
// with a bounded timeout, and failures are logged without ever reaching
// the lifecycle engine.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/emberfall/tickets/internal/model"
)

const postTimeout = 5 * time.Second

// Relay delivers lifecycle events to one webhook URL. A nil Relay or an
// empty URL drops events silently, so callers never have to branch on
// whether a sink is configured.
type Relay struct {
	url       string
	username  string
	channelID string
	client    *http.Client
	log       *slog.Logger
	wg        sync.WaitGroup
}

// New constructs a relay. username names the webhook poster; channelID
// is passed through in the payload for the receiving side to route on.
func New(url, username, channelID string, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		url:       url,
		username:  username,
		channelID: channelID,
		client:    &http.Client{Timeout: postTimeout},
		log:       logger,
	}
}

// Emit delivers one event asynchronously. It returns immediately; the
// triggering operation's latency is unaffected by the sink.
func (r *Relay) Emit(ev model.Event) {
	if r == nil || r.url == "" {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.post(ev); err != nil {
			r.log.Warn("webhook delivery failed", "event", string(ev.Kind), "ticket", ev.TicketID, "error", err)
		}
	}()
}

// Flush waits for in-flight deliveries. Called on shutdown and in tests.
func (r *Relay) Flush() {
	if r == nil {
		return
	}
	r.wg.Wait()
}

// payload is the inner event document. Field names match what the
// receiving side already consumes.
type payload struct {
	Event    string `json:"event"`
	ID       string `json:"id"`
	UserUUID string `json:"user-uuid"`
	Message  string `json:"message"`
	Channel  string `json:"discord-id"`
}

type webhookBody struct {
	Content  string `json:"content"`
	Username string `json:"username"`
}

func (r *Relay) post(ev model.Event) error {
	inner, err := json.Marshal(payload{
		Event:    string(ev.Kind),
		ID:       strconv.FormatInt(ev.TicketID, 10),
		UserUUID: ev.ActorID.String(),
		Message:  ev.Detail,
		Channel:  r.channelID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	body, err := json.Marshal(webhookBody{Content: string(inner), Username: r.username})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook body: %w", err)
	}

	resp, err := r.client.Post(r.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
