/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	channelPrefix = "presence-classclash-room-"

	playerIDCookie   = "classclash-player-id"
	playerNameCookie = "classclash-player-name"

	grantLifetime = 2 * time.Minute
)

func roomChannel(roomID string) string {
	return channelPrefix + roomID
}

func parseRoomChannel(channel string) (string, bool) {
	roomID, found := strings.CutPrefix(channel, channelPrefix)
	if !found || roomID == "" {
		return "", false
	}
	return roomID, true
}

// grantClaims binds a subscriber socket and channel to the actor's identity
// and host flag. The transport admits a subscription only when the grant's
// signature verifies and its socket/channel match the subscriber's.
type grantClaims struct {
	SocketID string `json:"socketId"`
	Channel  string `json:"channel"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	IsHost   bool   `json:"isHost"`
	jwt.RegisteredClaims
}

func signGrant(secret []byte, claims grantClaims) (string, error) {
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(grantLifetime))
	claims.IssuedAt = jwt.NewNumericDate(time.Now())

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func verifyGrant(secret []byte, token string) (*grantClaims, error) {
	claims := &grantClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid grant")
	}
	return claims, nil
}

// playerIdentity reads the actor's identity from request cookies. Identity
// is client-held and unverified; the design accepts this trust boundary in
// place of a server-side account system.
func playerIdentity(r *http.Request) (id, name string, err error) {
	idCookie, idErr := r.Cookie(playerIDCookie)
	nameCookie, nameErr := r.Cookie(playerNameCookie)
	if idErr != nil || nameErr != nil || idCookie.Value == "" || nameCookie.Value == "" {
		return "", "", ErrUnauthorized
	}

	name = nameCookie.Value
	if unescaped, err := url.QueryUnescape(name); err == nil {
		name = unescaped
	}

	return idCookie.Value, name, nil
}

// Authorizer grants channel subscriptions: it enforces the channel naming
// convention and the two-member cap, registers the actor as a participant,
// and issues a signed grant embedding identity and host flag. Successful
// authorization of a brand-new room is the point where its host is fixed.
type Authorizer struct {
	cfg    *Config
	store  *RoomStore
	secret []byte
}

func newAuthorizer(cfg *Config, store *RoomStore, secret []byte) *Authorizer {
	return &Authorizer{
		cfg:    cfg,
		store:  store,
		secret: secret,
	}
}

// grant is the response body for a successful authorization, shaped like a
// presence-channel auth response: the signed token plus the member metadata
// the transport shows to all room members.
type grant struct {
	Auth        string      `json:"auth"`
	ChannelData channelData `json:"channel_data"`
}

type channelData struct {
	UserID   string     `json:"user_id"`
	UserInfo memberInfo `json:"user_info"`
}

type memberInfo struct {
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

func (a *Authorizer) Authorize(socketID, channel, playerID, playerName string) (*grant, error) {
	roomID, ok := parseRoomChannel(channel)
	if socketID == "" || !ok {
		return nil, ErrInvalidRequest
	}
	if playerID == "" || playerName == "" {
		return nil, ErrUnauthorized
	}

	a.store.Ensure(roomID, playerID)

	if err := a.store.CheckAccess(roomID, playerID); err != nil {
		return nil, err
	}

	a.store.AddParticipant(roomID, playerID)

	isHost := false
	a.store.With(roomID, func(room *Room) {
		isHost = room.HostID == playerID
	})

	token, err := signGrant(a.secret, grantClaims{
		SocketID: socketID,
		Channel:  channel,
		PlayerID: playerID,
		Name:     playerName,
		IsHost:   isHost,
	})
	if err != nil {
		return nil, err
	}

	logf(a.cfg, "AUTH: Granted %s (host=%t) on %s", playerID, isHost, channel)

	return &grant{
		Auth: token,
		ChannelData: channelData{
			UserID: playerID,
			UserInfo: memberInfo{
				Name:   playerName,
				IsHost: isHost,
			},
		},
	}, nil
}
