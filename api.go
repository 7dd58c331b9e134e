/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
)

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) (int, error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')

	return w.Write(data)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrRoomFull):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrUnknownEvent):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeAPIError(cfg *Config, w http.ResponseWriter, err error) {
	_, _ = writeJSON(cfg, w, errorStatus(err), map[string]string{
		"error": err.Error(),
	})
}

// serveEvent accepts {roomId, event, data}, pushes it through the relay,
// and reports validation failures synchronously. Nothing is relayed on
// rejection.
func serveEvent(cfg *Config, rl *Relay) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			RoomID string          `json:"roomId"`
			Event  string          `json:"event"`
			Data   json.RawMessage `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeAPIError(cfg, w, ErrInvalidRequest)
			return
		}

		if err := rl.Submit(body.RoomID, body.Event, body.Data); err != nil {
			writeAPIError(cfg, w, err)
			return
		}

		_, _ = writeJSON(cfg, w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// serveRoomState returns the full authoritative room snapshot, or an
// explicit null for rooms no event has ever touched. Clients use this to
// resynchronize on load or refresh instead of replaying history.
func serveRoomState(cfg *Config, store *RoomStore, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		roomID := r.URL.Query().Get("roomId")
		if roomID == "" {
			writeAPIError(cfg, w, ErrInvalidRequest)
			return
		}

		snapshot, ok := store.Snapshot(roomID)

		var written int
		var err error
		if ok {
			written, err = writeJSON(cfg, w, http.StatusOK, map[string]*Room{"room": snapshot})
		} else {
			written, err = writeJSON(cfg, w, http.StatusOK, map[string]*Room{"room": nil})
		}
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Room state for %s (%s) to %s in %s",
			roomID,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// serveChannelAuth answers the transport's subscription challenge: form
// fields carry the socket and channel, cookies carry the actor's identity.
func serveChannelAuth(cfg *Config, authorizer *Authorizer) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if err := r.ParseForm(); err != nil {
			writeAPIError(cfg, w, ErrInvalidRequest)
			return
		}

		socketID := r.PostFormValue("socket_id")
		channel := r.PostFormValue("channel_name")
		if socketID == "" || !strings.HasPrefix(channel, channelPrefix) {
			writeAPIError(cfg, w, ErrInvalidRequest)
			return
		}

		playerID, playerName, err := playerIdentity(r)
		if err != nil {
			writeAPIError(cfg, w, err)
			return
		}

		granted, err := authorizer.Authorize(socketID, channel, playerID, playerName)
		if err != nil {
			writeAPIError(cfg, w, err)
			return
		}

		_, _ = writeJSON(cfg, w, http.StatusOK, granted)
	}
}

// serveLeaveRoom deregisters a participant. Idempotent: leaving a room you
// are not in, or one that does not exist, still succeeds.
func serveLeaveRoom(cfg *Config, store *RoomStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		roomID := r.URL.Query().Get("roomId")
		playerID := r.URL.Query().Get("playerId")

		if roomID != "" && playerID != "" {
			store.RemoveParticipant(roomID, playerID)
			logf(cfg, "ROOMS: %s left %s", playerID, roomID)
		}

		_, _ = writeJSON(cfg, w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// serveIdentity assigns the per-browser player ID cookie when absent and
// records the display name. Identity stays client-held and unverified.
func serveIdentity(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeAPIError(cfg, w, ErrInvalidRequest)
			return
		}

		name := strings.TrimSpace(body.Name)
		if name == "" {
			writeAPIError(cfg, w, ErrInvalidRequest)
			return
		}

		playerID := getOrSetPlayerID(w, r)

		http.SetCookie(w, &http.Cookie{
			Name:     playerNameCookie,
			Value:    url.QueryEscape(name),
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		})

		_, _ = writeJSON(cfg, w, http.StatusOK, map[string]string{
			"id":   playerID,
			"name": name,
		})
	}
}

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerIDCookie); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     playerIDCookie,
		Value:    id,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})

	return id
}
