package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
)

func TestHubBroadcastReachesEveryReviewer(t *testing.T) {
	hub := NewHub()
	first := &Client{send: make(chan []byte, 1)}
	second := &Client{send: make(chan []byte, 1)}
	hub.Register("reviewer-1", first)
	hub.Register("reviewer-2", second)

	hub.Broadcast(ReviewEvent{Type: EventAmbiguousMatch, SourceEventID: 7, CandidateIDs: []int64{3, 4}})

	for _, client := range []*Client{first, second} {
		select {
		case payload := <-client.send:
			var event ReviewEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if event.Type != EventAmbiguousMatch || event.SourceEventID != 7 || len(event.CandidateIDs) != 2 {
				t.Fatalf("unexpected event: %#v", event)
			}
		default:
			t.Fatalf("expected payload")
		}
	}
}

func TestHubBroadcastDropsForFullClient(t *testing.T) {
	hub := NewHub()
	client := &Client{send: make(chan []byte)}
	hub.Register("reviewer-1", client)
	done := make(chan struct{})
	go func() {
		hub.Broadcast(ReviewEvent{Type: EventIngested})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("broadcast blocked on a full client")
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	client := &Client{send: make(chan []byte, 1)}
	hub.Register("reviewer-1", client)
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	hub.Unregister("reviewer-1", client)
	hub.Unregister("reviewer-1", client)
	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestServeWSDeliversEvents(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(w, r, hub, "reviewer-1")
	}))
	defer server.Close()

	conn, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Broadcast(ReviewEvent{Type: EventIngested, SourceEventID: 11, Outcome: "created"})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event ReviewEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.SourceEventID != 11 || event.Outcome != "created" {
		t.Fatalf("unexpected event: %#v", event)
	}
}
