package main

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func newTestHub() *Hub {
	return newHub(&Config{}, testSecret)
}

func newTestClient(socketID string) *wsClient {
	return &wsClient{
		send:     make(chan any, 8),
		socketID: socketID,
	}
}

func grantFor(t *testing.T, socketID, channel, playerID, name string, isHost bool) string {
	t.Helper()

	token, err := signGrant(testSecret, grantClaims{
		SocketID: socketID,
		Channel:  channel,
		PlayerID: playerID,
		Name:     name,
		IsHost:   isHost,
	})
	if err != nil {
		t.Fatalf("signGrant: %v", err)
	}
	return token
}

func nextMessage(t *testing.T, c *wsClient) any {
	t.Helper()

	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for a message")
		return nil
	}
}

func TestHubSubscribeRequiresValidGrant(t *testing.T) {
	hub := newTestHub()
	channel := roomChannel("ABC123")

	c := newTestClient("sock-1")

	if err := hub.Subscribe(c, channel, "not-a-grant"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("garbage grant: err = %v, want ErrUnauthorized", err)
	}

	// Grant bound to a different socket.
	token := grantFor(t, "sock-9", channel, "P1", "Ada", true)
	if err := hub.Subscribe(c, channel, token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("socket mismatch: err = %v, want ErrUnauthorized", err)
	}

	// Grant bound to a different channel.
	token = grantFor(t, "sock-1", roomChannel("OTHER1"), "P1", "Ada", true)
	if err := hub.Subscribe(c, channel, token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("channel mismatch: err = %v, want ErrUnauthorized", err)
	}

	if n := hub.SubscriberCount(channel); n != 0 {
		t.Fatalf("subscribers = %d, want 0 after rejected grants", n)
	}
}

func TestHubPresenceFlow(t *testing.T) {
	hub := newTestHub()
	channel := roomChannel("ABC123")

	host := newTestClient("sock-1")
	if err := hub.Subscribe(host, channel, grantFor(t, "sock-1", channel, "P1", "Ada", true)); err != nil {
		t.Fatalf("subscribe host: %v", err)
	}

	succeeded, ok := nextMessage(t, host).(subscriptionSucceeded)
	if !ok {
		t.Fatalf("expected subscription-succeeded first")
	}
	if len(succeeded.Members) != 1 || succeeded.Members[0].ID != "P1" {
		t.Fatalf("members = %v, want [P1]", succeeded.Members)
	}

	guest := newTestClient("sock-2")
	if err := hub.Subscribe(guest, channel, grantFor(t, "sock-2", channel, "P2", "Grace", false)); err != nil {
		t.Fatalf("subscribe guest: %v", err)
	}

	succeeded, ok = nextMessage(t, guest).(subscriptionSucceeded)
	if !ok {
		t.Fatalf("expected subscription-succeeded for guest")
	}
	if len(succeeded.Members) != 2 {
		t.Fatalf("guest member list = %v, want both players", succeeded.Members)
	}

	added, ok := nextMessage(t, host).(memberChange)
	if !ok || added.Type != "member-added" || added.Member.ID != "P2" {
		t.Fatalf("host got %+v, want member-added for P2", added)
	}

	// Relay fan-out reaches every subscriber.
	hub.Publish(channel, EventDotsTurnChange, json.RawMessage(`{"turn":"P2"}`))

	for _, c := range []*wsClient{host, guest} {
		event, ok := nextMessage(t, c).(channelEvent)
		if !ok || event.Event != EventDotsTurnChange {
			t.Fatalf("got %+v, want the published event", event)
		}
	}

	// Departure is announced to the remaining member.
	hub.Disconnect(guest)

	removed, ok := nextMessage(t, host).(memberChange)
	if !ok || removed.Type != "member-removed" || removed.Member.ID != "P2" {
		t.Fatalf("host got %+v, want member-removed for P2", removed)
	}

	if n := hub.SubscriberCount(channel); n != 1 {
		t.Fatalf("subscribers = %d, want 1 after disconnect", n)
	}
}

func TestHubPublishToUnknownChannel(t *testing.T) {
	hub := newTestHub()

	// Publishing before anyone subscribed is best effort, not an error.
	hub.Publish(roomChannel("NOSUCH"), EventPlayerJoined, json.RawMessage(`{"by":"P1"}`))
}

func TestHubUnsubscribe(t *testing.T) {
	hub := newTestHub()
	channel := roomChannel("ABC123")

	a := newTestClient("sock-1")
	b := newTestClient("sock-2")

	if err := hub.Subscribe(a, channel, grantFor(t, "sock-1", channel, "P1", "Ada", true)); err != nil {
		t.Fatalf("subscribe a: %v", err)
	}
	if err := hub.Subscribe(b, channel, grantFor(t, "sock-2", channel, "P2", "Grace", false)); err != nil {
		t.Fatalf("subscribe b: %v", err)
	}

	nextMessage(t, a) // subscription-succeeded
	nextMessage(t, a) // member-added
	nextMessage(t, b) // subscription-succeeded

	hub.Unsubscribe(b, channel)

	removed, ok := nextMessage(t, a).(memberChange)
	if !ok || removed.Type != "member-removed" || removed.Member.ID != "P2" {
		t.Fatalf("got %+v, want member-removed for P2", removed)
	}

	// Unsubscribing twice, or from a channel never joined, is harmless.
	hub.Unsubscribe(b, channel)
	hub.Unsubscribe(b, roomChannel("OTHER1"))
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := newTestHub()
	channel := roomChannel("ABC123")

	slow := &wsClient{
		send:     make(chan any), // unbuffered and never drained
		socketID: "sock-1",
	}
	if err := hub.Subscribe(slow, channel, grantFor(t, "sock-1", channel, "P1", "Ada", true)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// The subscription confirmation itself cannot be queued, so the client
	// is dropped rather than blocking the hub.
	if n := hub.SubscriberCount(channel); n != 0 {
		t.Fatalf("subscribers = %d, want slow client dropped", n)
	}
}
