package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/emberfall/tickets/internal/model"
)

func testEvent() model.Event {
	return model.Event{
		Kind:      model.EventClaim,
		TicketID:  12,
		ActorID:   uuid.New(),
		ActorName: "Alex",
		Status:    model.StatusClaimed,
		Detail:    "Alex claimed a ticket",
	}
}

func TestEmit(t *testing.T) {
	var mu sync.Mutex
	var bodies [][]byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, b)
		mu.Unlock()
	}))
	defer srv.Close()

	relay := New(srv.URL, "tickets-bot", "chan-1", nil)
	ev := testEvent()
	relay.Emit(ev)
	relay.Flush()

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(bodies))
	}

	var outer struct {
		Content  string `json:"content"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(bodies[0], &outer); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if outer.Username != "tickets-bot" {
		t.Errorf("username = %q, want %q", outer.Username, "tickets-bot")
	}

	var inner struct {
		Event    string `json:"event"`
		ID       string `json:"id"`
		UserUUID string `json:"user-uuid"`
		Message  string `json:"message"`
		Channel  string `json:"discord-id"`
	}
	if err := json.Unmarshal([]byte(outer.Content), &inner); err != nil {
		t.Fatalf("failed to decode inner payload: %v", err)
	}
	if inner.Event != "Claim" {
		t.Errorf("event = %q, want %q", inner.Event, "Claim")
	}
	if inner.ID != "12" {
		t.Errorf("id = %q, want %q", inner.ID, "12")
	}
	if inner.UserUUID != ev.ActorID.String() {
		t.Errorf("user-uuid = %q, want %q", inner.UserUUID, ev.ActorID)
	}
	if inner.Channel != "chan-1" {
		t.Errorf("discord-id = %q, want %q", inner.Channel, "chan-1")
	}
}

func TestEmit_FailureDoesNotPropagate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	// Emit has no error return; a failing sink only logs.
	relay := New(srv.URL, "tickets-bot", "", nil)
	relay.Emit(testEvent())
	relay.Flush()
}

func TestEmit_NoURLConfigured(t *testing.T) {
	relay := New("", "tickets-bot", "", nil)
	relay.Emit(testEvent())
	relay.Flush()
}

func TestEmit_NilRelay(t *testing.T) {
	var relay *Relay
	relay.Emit(testEvent())
	relay.Flush()
}
