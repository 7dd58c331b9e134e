// Classclash presence channel transport
//
// A self-hosted stand-in for a hosted pub/sub service, carrying the relay's
// fan-out and presence notifications over WebSockets.
//
// Protocol, from the client's side:
// - Connect to /ws and receive "connection-established" with a socket ID
// - POST the socket ID and channel name to /api/auth for a signed grant
// - Send "subscribe" with the channel name and grant
// - Receive "subscription-succeeded" with the current member list, then
//   "member-added"/"member-removed" as peers come and go, and "event"
//   frames for everything the relay republishes
//
// Delivery is at-least-once per subscriber and ordered per channel; slow
// consumers are dropped rather than buffered without bound, and a dropped
// client recovers by refetching the room snapshot.

package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Member is the presence metadata visible to all channel subscribers.
type Member struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

type wsClient struct {
	conn     *websocket.Conn
	send     chan any
	socketID string

	mu     sync.Mutex
	closed bool
}

func (c *wsClient) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// trySend queues a message without blocking. Reports false if the client has
// been dropped or its buffer is full, in which case the caller should drop
// the client.
func (c *wsClient) trySend(msg any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Messages from clients
type clientCommand struct {
	Type    string `json:"type"`              // "subscribe", "unsubscribe"
	Channel string `json:"channel,omitempty"` // channel name
	Auth    string `json:"auth,omitempty"`    // signed grant from /api/auth
}

// Messages sent to clients
type connectionEstablished struct {
	Type     string `json:"type"` // "connection-established"
	SocketID string `json:"socketId"`
}

type subscriptionSucceeded struct {
	Type    string   `json:"type"` // "subscription-succeeded"
	Channel string   `json:"channel"`
	Members []Member `json:"members"`
}

type memberChange struct {
	Type    string `json:"type"` // "member-added" or "member-removed"
	Channel string `json:"channel"`
	Member  Member `json:"member"`
}

type channelEvent struct {
	Type    string          `json:"type"` // "event"
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type channelError struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

type presenceChannel struct {
	name        string
	subscribers map[*wsClient]Member
	lastActive  time.Time
}

// Hub tracks presence channels and their subscribers. Channels are created
// on first subscription and reaped once empty and idle; the room store keeps
// its own copy of everything that matters past a channel's lifetime.
type Hub struct {
	cfg    *Config
	secret []byte

	mu       sync.Mutex
	channels map[string]*presenceChannel
}

func newHub(cfg *Config, secret []byte) *Hub {
	hub := &Hub{
		cfg:      cfg,
		secret:   secret,
		channels: make(map[string]*presenceChannel),
	}
	if cfg.sessionTimeout > 0 {
		go hub.reaperLoop(cfg.sessionTimeout)
	}
	return hub
}

// Subscribe admits a client to a channel after verifying its grant binds
// this socket to this channel, then announces the new member to everyone
// already subscribed.
func (hub *Hub) Subscribe(c *wsClient, channelName, auth string) error {
	claims, err := verifyGrant(hub.secret, auth)
	if err != nil {
		return ErrUnauthorized
	}
	if claims.SocketID != c.socketID || claims.Channel != channelName {
		return ErrUnauthorized
	}

	member := Member{
		ID:     claims.PlayerID,
		Name:   claims.Name,
		IsHost: claims.IsHost,
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()

	ch, ok := hub.channels[channelName]
	if !ok {
		ch = &presenceChannel{
			name:        channelName,
			subscribers: make(map[*wsClient]Member),
		}
		hub.channels[channelName] = ch
	}
	ch.lastActive = time.Now()

	members := make([]Member, 0, len(ch.subscribers)+1)
	for _, m := range ch.subscribers {
		members = append(members, m)
	}
	members = append(members, member)

	ch.subscribers[c] = member

	if !c.trySend(subscriptionSucceeded{
		Type:    "subscription-succeeded",
		Channel: channelName,
		Members: members,
	}) {
		hub.dropLocked(ch, c)
		return nil
	}

	hub.broadcastLocked(ch, memberChange{
		Type:    "member-added",
		Channel: channelName,
		Member:  member,
	}, c)

	logf(hub.cfg, "HUB: %s subscribed to %s", member.ID, channelName)

	return nil
}

// Unsubscribe removes a client from one channel and announces the departure.
func (hub *Hub) Unsubscribe(c *wsClient, channelName string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	ch, ok := hub.channels[channelName]
	if !ok {
		return
	}

	member, subscribed := ch.subscribers[c]
	if !subscribed {
		return
	}

	delete(ch.subscribers, c)
	ch.lastActive = time.Now()

	hub.broadcastLocked(ch, memberChange{
		Type:    "member-removed",
		Channel: channelName,
		Member:  member,
	}, nil)
}

// Disconnect removes a client from every channel it subscribed to. Called
// when the socket closes.
func (hub *Hub) Disconnect(c *wsClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	for _, ch := range hub.channels {
		member, subscribed := ch.subscribers[c]
		if !subscribed {
			continue
		}

		delete(ch.subscribers, c)
		ch.lastActive = time.Now()

		hub.broadcastLocked(ch, memberChange{
			Type:    "member-removed",
			Channel: ch.name,
			Member:  member,
		}, nil)
	}

	c.closeSend()
}

// Publish fans an event out to every current subscriber of the channel.
// A channel nobody subscribed to yet is not an error.
func (hub *Hub) Publish(channelName, event string, data json.RawMessage) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	ch, ok := hub.channels[channelName]
	if !ok {
		return
	}
	ch.lastActive = time.Now()

	hub.broadcastLocked(ch, channelEvent{
		Type:    "event",
		Channel: channelName,
		Event:   event,
		Data:    data,
	}, nil)
}

// SubscriberCount reports the number of clients currently on a channel.
func (hub *Hub) SubscriberCount(channelName string) int {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	ch, ok := hub.channels[channelName]
	if !ok {
		return 0
	}
	return len(ch.subscribers)
}

// broadcastLocked sends msg to every subscriber except skip, dropping any
// client whose buffer is full. Caller holds hub.mu.
func (hub *Hub) broadcastLocked(ch *presenceChannel, msg any, skip *wsClient) {
	var dead []*wsClient

	for client := range ch.subscribers {
		if client == skip {
			continue
		}
		if !client.trySend(msg) {
			dead = append(dead, client)
		}
	}

	for _, client := range dead {
		hub.dropLocked(ch, client)
	}
}

func (hub *Hub) dropLocked(ch *presenceChannel, c *wsClient) {
	member, subscribed := ch.subscribers[c]
	if !subscribed {
		return
	}

	delete(ch.subscribers, c)
	c.closeSend()

	hub.broadcastLocked(ch, memberChange{
		Type:    "member-removed",
		Channel: ch.name,
		Member:  member,
	}, nil)
}

// reaperLoop periodically removes channels that are empty and have been
// idle longer than idleTimeout. Room state is not touched; the registry
// itself lives for the whole process.
func (hub *Hub) reaperLoop(idleTimeout time.Duration) {
	ticker := time.NewTicker(idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-idleTimeout)

		hub.mu.Lock()
		for name, ch := range hub.channels {
			if len(ch.subscribers) == 0 && ch.lastActive.Before(cutoff) {
				delete(hub.channels, name)
			}
		}
		hub.mu.Unlock()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveWebsocket upgrades the connection, hands the client its socket ID,
// and pumps commands until the peer goes away.
func serveWebsocket(cfg *Config, hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "HUB: Upgrade error from %s: %v", realIP(r), err)
			return
		}

		client := &wsClient{
			conn:     conn,
			send:     make(chan any, 8),
			socketID: uuid.NewString(),
		}

		go client.writePump()

		client.send <- connectionEstablished{
			Type:     "connection-established",
			SocketID: client.socketID,
		}

		client.readPump(hub)
	}
}

func (c *wsClient) readPump(hub *Hub) {
	defer func() {
		hub.Disconnect(c)
		_ = c.conn.Close()
	}()

	for {
		var cmd clientCommand
		if err := c.conn.ReadJSON(&cmd); err != nil {
			return
		}

		switch cmd.Type {
		case "subscribe":
			if err := hub.Subscribe(c, cmd.Channel, cmd.Auth); err != nil {
				c.trySend(channelError{
					Type:    "error",
					Message: err.Error(),
				})
			}
		case "unsubscribe":
			hub.Unsubscribe(c, cmd.Channel)
		default:
			// ignore unknown types
		}
	}
}

func (c *wsClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
