package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

var testSecret = []byte("test-signing-key")

func newTestAuthorizer() (*Authorizer, *RoomStore) {
	store := NewRoomStore()
	return newAuthorizer(&Config{}, store, testSecret), store
}

func TestParseRoomChannel(t *testing.T) {
	roomID, ok := parseRoomChannel("presence-classclash-room-ABC123")
	if !ok || roomID != "ABC123" {
		t.Fatalf("parseRoomChannel = %q, %t; want ABC123, true", roomID, ok)
	}

	for _, channel := range []string{
		"private-classclash-room-ABC123",
		"presence-classclash-room-",
		"ABC123",
		"",
	} {
		if _, ok := parseRoomChannel(channel); ok {
			t.Fatalf("expected %q to be rejected", channel)
		}
	}
}

func TestAuthorizeValidation(t *testing.T) {
	authorizer, _ := newTestAuthorizer()

	if _, err := authorizer.Authorize("", roomChannel("ABC123"), "P1", "Ada"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("missing socket id: err = %v, want ErrInvalidRequest", err)
	}
	if _, err := authorizer.Authorize("sock-1", "private-other", "P1", "Ada"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("malformed channel: err = %v, want ErrInvalidRequest", err)
	}
	if _, err := authorizer.Authorize("sock-1", roomChannel("ABC123"), "", "Ada"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("missing id: err = %v, want ErrUnauthorized", err)
	}
	if _, err := authorizer.Authorize("sock-1", roomChannel("ABC123"), "P1", ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("missing name: err = %v, want ErrUnauthorized", err)
	}
}

func TestAuthorizeRoomLifecycle(t *testing.T) {
	authorizer, store := newTestAuthorizer()

	// Host joins an unseen room: this fixes the host durably.
	granted, err := authorizer.Authorize("sock-1", roomChannel("ABC123"), "P1", "Ada")
	if err != nil {
		t.Fatalf("authorize P1: %v", err)
	}
	if !granted.ChannelData.UserInfo.IsHost {
		t.Fatalf("expected the creating identity to be host")
	}

	room, _ := store.Get("ABC123")
	if room.HostID != "P1" || len(room.Players) != 1 {
		t.Fatalf("room = host %q players %v, want host P1 players [P1]", room.HostID, room.Players)
	}

	// Second player joins.
	granted, err = authorizer.Authorize("sock-2", roomChannel("ABC123"), "P2", "Grace")
	if err != nil {
		t.Fatalf("authorize P2: %v", err)
	}
	if granted.ChannelData.UserInfo.IsHost {
		t.Fatalf("second participant must not be host")
	}

	room, _ = store.Get("ABC123")
	if len(room.Players) != 2 || room.Players[0] != "P1" || room.Players[1] != "P2" {
		t.Fatalf("players = %v, want [P1 P2]", room.Players)
	}

	// Third identity is turned away.
	if _, err := authorizer.Authorize("sock-3", roomChannel("ABC123"), "P3", "Eve"); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("authorize P3: err = %v, want ErrRoomFull", err)
	}

	// Existing members reauthorize freely (refresh case).
	if _, err := authorizer.Authorize("sock-4", roomChannel("ABC123"), "P2", "Grace"); err != nil {
		t.Fatalf("reauthorize P2: %v", err)
	}
}

func TestGrantRoundTrip(t *testing.T) {
	token, err := signGrant(testSecret, grantClaims{
		SocketID: "sock-1",
		Channel:  roomChannel("ABC123"),
		PlayerID: "P1",
		Name:     "Ada",
		IsHost:   true,
	})
	if err != nil {
		t.Fatalf("signGrant: %v", err)
	}

	claims, err := verifyGrant(testSecret, token)
	if err != nil {
		t.Fatalf("verifyGrant: %v", err)
	}
	if claims.SocketID != "sock-1" || claims.Channel != roomChannel("ABC123") {
		t.Fatalf("claims = %+v, binding mismatch", claims)
	}
	if claims.PlayerID != "P1" || claims.Name != "Ada" || !claims.IsHost {
		t.Fatalf("claims = %+v, identity mismatch", claims)
	}

	if _, err := verifyGrant([]byte("other-key"), token); err == nil {
		t.Fatalf("expected verification with the wrong key to fail")
	}
	if _, err := verifyGrant(testSecret, token+"x"); err == nil {
		t.Fatalf("expected a tampered token to fail")
	}
}

func authRequest(socketID, channel string, cookies map[string]string) *http.Request {
	form := url.Values{}
	form.Set("socket_id", socketID)
	form.Set("channel_name", channel)

	r := httptest.NewRequest(http.MethodPost, "/api/auth", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for name, value := range cookies {
		r.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	return r
}

func TestServeChannelAuth(t *testing.T) {
	authorizer, _ := newTestAuthorizer()
	handler := serveChannelAuth(&Config{}, authorizer)

	cookies := map[string]string{
		playerIDCookie:   "P1",
		playerNameCookie: url.QueryEscape("Ada Lovelace"),
	}

	// Missing identity.
	w := httptest.NewRecorder()
	handler(w, authRequest("sock-1", roomChannel("ABC123"), nil), nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without identity cookies", w.Code)
	}

	// Malformed channel rejected before identity is considered.
	w = httptest.NewRecorder()
	handler(w, authRequest("sock-1", "not-a-room-channel", cookies), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for malformed channel", w.Code)
	}

	// Well-formed challenge with identity.
	w = httptest.NewRecorder()
	handler(w, authRequest("sock-1", roomChannel("ABC123"), cookies), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"Ada Lovelace"`) {
		t.Fatalf("expected unescaped display name in channel data, got %s", w.Body.String())
	}
}
