/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"slices"
)

// The closed event vocabulary relayed between peers. Anything not listed
// here is rejected before any state mutation or fan-out; this is the sole
// gate against arbitrary channel spam.
const (
	EventPlayerJoined     = "player-joined"
	EventPlayerLeft       = "player-left"
	EventGameSelected     = "game-selected"
	EventGameStart        = "game-start"
	EventBingoReady       = "bingo-ready"
	EventBingoCallNumber  = "bingo-call-number"
	EventBingoScoreUpdate = "bingo-score-update"
	EventBingoWin         = "bingo-win"
	EventDotsConfig       = "dots-config"
	EventDotsDrawLine     = "dots-draw-line"
	EventDotsBoxCompleted = "dots-box-completed"
	EventDotsTurnChange   = "dots-turn-change"
	EventDotsGameEnd      = "dots-game-end"
)

var allowedEvents = map[string]bool{
	EventPlayerJoined:     true,
	EventPlayerLeft:       true,
	EventGameSelected:     true,
	EventGameStart:        true,
	EventBingoReady:       true,
	EventBingoCallNumber:  true,
	EventBingoScoreUpdate: true,
	EventBingoWin:         true,
	EventDotsConfig:       true,
	EventDotsDrawLine:     true,
	EventDotsBoxCompleted: true,
	EventDotsTurnChange:   true,
	EventDotsGameEnd:      true,
}

// Per-event payload shapes. Payloads decode leniently: unknown fields are
// ignored and missing fields zero-valued, so one client sending a partial
// payload cannot take the relay down. Fields that gate state transitions
// (board contents, grid dimensions) are still validated in the reducers.
type gameStartPayload struct {
	Game GameType `json:"game"`
	By   string   `json:"by"`
}

type bingoReadyPayload struct {
	PlayerID string  `json:"playerId"`
	Board    [][]int `json:"board"`
}

type bingoCallNumberPayload struct {
	N        int    `json:"n"`
	NextTurn string `json:"nextTurn"`
	By       string `json:"by"`
}

type bingoWinPayload struct {
	Winner string `json:"winner"`
}

type dotsConfigPayload struct {
	Rows int    `json:"rows"`
	Cols int    `json:"cols"`
	Turn string `json:"turn"`
	By   string `json:"by"`
}

type dotsDrawLinePayload struct {
	Key string `json:"key"`
	By  string `json:"by"`
}

type dotsBoxCompletedPayload struct {
	Boxes  map[string]string `json:"boxes"`
	Scores map[string]int    `json:"scores"`
}

type dotsTurnChangePayload struct {
	Turn string `json:"turn"`
}

type dotsGameEndPayload struct {
	WinnerText string `json:"winnerText"`
}

// actorID extracts the declared actor identity from an event payload,
// preferring "by" over "playerId" as the original clients populate one or
// the other depending on the event.
func actorID(data json.RawMessage) string {
	var ids struct {
		By       string `json:"by"`
		PlayerID string `json:"playerId"`
	}
	_ = json.Unmarshal(data, &ids)

	if ids.By != "" {
		return ids.By
	}
	return ids.PlayerID
}

// Relay is the validation gateway between client-submitted events and the
// room store plus the presence channel fan-out.
type Relay struct {
	cfg   *Config
	store *RoomStore
	hub   *Hub
}

func newRelay(cfg *Config, store *RoomStore, hub *Hub) *Relay {
	return &Relay{
		cfg:   cfg,
		store: store,
		hub:   hub,
	}
}

// Submit validates an event against the allow-list, applies it to the
// authoritative room snapshot, and republishes it unmodified to every
// current subscriber of the room's channel. Validation failures are
// terminal: nothing is mutated and nothing is relayed.
func (rl *Relay) Submit(roomID, event string, data json.RawMessage) error {
	if roomID == "" {
		return ErrInvalidRequest
	}
	if !allowedEvents[event] {
		return ErrUnknownEvent
	}

	actor := actorID(data)
	rl.store.Ensure(roomID, actor)

	// Several payloads (turn changes, score updates, results) declare no
	// actor at all; capacity is only enforceable against a declared third
	// identity, and a full room is the normal in-game state.
	if actor != "" {
		if err := rl.store.CheckAccess(roomID, actor); err != nil {
			return err
		}
	}

	rl.store.With(roomID, func(room *Room) {
		room.applyLocked(event, data)
	})

	// Fan-out is best effort: a dropped relay is recovered by the next
	// full-snapshot fetch, so failures are logged and never fatal.
	if rl.hub != nil {
		rl.hub.Publish(roomChannel(roomID), event, data)
	}

	logf(rl.cfg, "RELAY: %s in %s by %s", event, roomID, actor)

	return nil
}

// applyLocked is the reducer table. Reducers are idempotent against
// duplicate delivery of the same logical move and never fail loudly;
// malformed payloads leave authoritative state untouched while the event
// still relays to peers. Caller holds the room mutex.
func (room *Room) applyLocked(event string, data json.RawMessage) {
	switch event {
	case EventGameStart:
		var p gameStartPayload
		_ = json.Unmarshal(data, &p)
		room.CurrentGame = p.Game
		if p.Game == GameBingo || p.Game == GameDots {
			room.resetGameLocked(p.Game)
		}

	case EventBingoReady:
		var p bingoReadyPayload
		_ = json.Unmarshal(data, &p)
		if p.PlayerID == "" || room.Bingo.Ready[p.PlayerID] {
			return
		}
		if !validBingoBoard(flattenBoard(p.Board)) {
			return
		}
		room.Bingo.Ready[p.PlayerID] = true
		room.Bingo.Boards[p.PlayerID] = p.Board
		if room.Bingo.Turn == "" {
			room.Bingo.Turn = room.HostID
		}

	case EventBingoCallNumber:
		var p bingoCallNumberPayload
		_ = json.Unmarshal(data, &p)
		if !slices.Contains(room.Bingo.Called, p.N) {
			room.Bingo.Called = append(room.Bingo.Called, p.N)
		}
		room.Bingo.Turn = p.NextTurn

	case EventBingoWin:
		var p bingoWinPayload
		_ = json.Unmarshal(data, &p)
		if room.Bingo.Winner == "" {
			room.Bingo.Winner = p.Winner
		}

	case EventDotsConfig:
		var p dotsConfigPayload
		_ = json.Unmarshal(data, &p)
		if p.Rows < minGridSize || p.Rows > maxGridSize || p.Cols < minGridSize || p.Cols > maxGridSize {
			return
		}
		room.Dots = DotsState{
			Rows:       p.Rows,
			Cols:       p.Cols,
			Configured: true,
			Lines:      []Line{},
			Boxes:      make(map[string]string),
			Scores:     make(map[string]int),
			Turn:       p.Turn,
		}

	case EventDotsDrawLine:
		var p dotsDrawLinePayload
		_ = json.Unmarshal(data, &p)
		if p.Key == "" {
			return
		}
		exists := slices.ContainsFunc(room.Dots.Lines, func(line Line) bool {
			return line.Key == p.Key
		})
		if !exists {
			room.Dots.Lines = append(room.Dots.Lines, Line{Key: p.Key, By: p.By})
		}

	case EventDotsBoxCompleted:
		var p dotsBoxCompletedPayload
		_ = json.Unmarshal(data, &p)
		if p.Boxes == nil {
			p.Boxes = make(map[string]string)
		}
		if p.Scores == nil {
			p.Scores = make(map[string]int)
		}
		room.Dots.Boxes = p.Boxes
		room.Dots.Scores = p.Scores

	case EventDotsTurnChange:
		var p dotsTurnChangePayload
		_ = json.Unmarshal(data, &p)
		room.Dots.Turn = p.Turn

	case EventDotsGameEnd:
		var p dotsGameEndPayload
		_ = json.Unmarshal(data, &p)
		if room.Dots.WinnerText == "" {
			room.Dots.WinnerText = p.WinnerText
		}

	default:
		// player-joined, player-left, game-selected and bingo-score-update
		// relay to peers without touching authoritative state.
	}
}

func flattenBoard(board [][]int) []int {
	values := make([]int, 0, bingoSize*bingoSize)
	for _, row := range board {
		values = append(values, row...)
	}
	return values
}
