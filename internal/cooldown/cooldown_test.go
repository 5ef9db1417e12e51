package cooldown

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGate(t *testing.T) {
	now := time.Unix(1000, 0)
	gate := New(5*time.Second, func() time.Time { return now })
	actor := uuid.New()

	if !gate.Ready(actor) {
		t.Fatal("fresh actor should be ready")
	}

	gate.Arm(actor)
	if gate.Ready(actor) {
		t.Error("armed actor should not be ready")
	}
	if got := gate.Remaining(actor); got != 5*time.Second {
		t.Errorf("remaining = %v, want 5s", got)
	}

	now = now.Add(3 * time.Second)
	if gate.Ready(actor) {
		t.Error("actor should still be throttled")
	}

	now = now.Add(2 * time.Second)
	if !gate.Ready(actor) {
		t.Error("actor should be ready after the interval")
	}
	if got := gate.Remaining(actor); got != 0 {
		t.Errorf("remaining = %v, want 0", got)
	}
}

func TestGate_PerActor(t *testing.T) {
	now := time.Unix(1000, 0)
	gate := New(5*time.Second, func() time.Time { return now })
	a, b := uuid.New(), uuid.New()

	gate.Arm(a)
	if gate.Ready(a) {
		t.Error("armed actor should be throttled")
	}
	if !gate.Ready(b) {
		t.Error("other actors must be unaffected")
	}
}

func TestGate_DisabledInterval(t *testing.T) {
	gate := New(0, nil)
	actor := uuid.New()

	gate.Arm(actor)
	if !gate.Ready(actor) {
		t.Error("zero interval must never throttle")
	}
}
