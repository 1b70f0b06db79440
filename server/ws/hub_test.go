package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vibecorp/vibecorp/comms"
)

func TestHub_BroadcastReachesClient(t *testing.T) {
	hub := NewHub(nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/events", nil).WithContext(ctx)
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		hub.ServeSSE(rr, req)
		close(done)
	}()

	// Wait for the client to register before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Broadcast(Event{Type: "status_changed", Payload: map[string]string{"agent": "penny"}})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rr.Body.String()
	if !strings.Contains(body, `"type":"connected"`) {
		t.Errorf("missing connected event: %s", body)
	}
	if !strings.Contains(body, "status_changed") {
		t.Errorf("missing broadcast event: %s", body)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("client count = %d after disconnect, want 0", hub.ClientCount())
	}
}

func TestHub_PumpForwardsSignals(t *testing.T) {
	hub := NewHub(nil)
	signals := comms.NewSignalQueue(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest("GET", "/events", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		hub.ServeSSE(rr, req)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	pumpDone := make(chan struct{})
	go func() {
		hub.Pump(ctx, signals)
		close(pumpDone)
	}()

	signals.Publish(comms.Signal{Kind: comms.SignalTask, AgentID: "marty", Detail: "started task"})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done
	<-pumpDone

	body := rr.Body.String()
	if !strings.Contains(body, string(comms.SignalTask)) {
		t.Errorf("missing pumped signal: %s", body)
	}
	if !strings.Contains(body, "marty") {
		t.Errorf("missing signal payload: %s", body)
	}
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	// A client whose channel is full must not block Broadcast.
	c := &client{ch: make(chan []byte)}
	hub.mu.Lock()
	hub.clients[c] = struct{}{}
	hub.mu.Unlock()

	doneCh := make(chan struct{})
	go func() {
		hub.Broadcast(Event{Type: "new_message"})
		close(doneCh)
	}()
	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a slow client")
	}
}
