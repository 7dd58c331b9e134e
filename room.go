/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"maps"
	"slices"
	"sync"
)

type GameType string

const (
	GameBingo GameType = "bingo"
	GameDots  GameType = "dots"
)

const (
	maxPlayers  = 2
	minGridSize = 3
	maxGridSize = 10
)

// BingoState is the authoritative server copy of a bingo match. Boards are
// immutable once submitted via bingo-ready, called numbers are append-only
// and duplicate-free, and winner is write-once.
type BingoState struct {
	Ready  map[string]bool    `json:"ready"`
	Boards map[string][][]int `json:"boards"`
	Called []int              `json:"called"`
	Turn   string             `json:"turn"`
	Winner string             `json:"winner"`
}

// Line is a drawn dots-and-boxes edge, tagged with the player who drew it.
type Line struct {
	Key string `json:"key"`
	By  string `json:"by"`
}

// DotsState is the authoritative server copy of a dots-and-boxes match.
// Scores are denormalized box counts reported by clients, not recomputed
// server-side.
type DotsState struct {
	Rows       int               `json:"rows"`
	Cols       int               `json:"cols"`
	Configured bool              `json:"configured"`
	Lines      []Line            `json:"lines"`
	Boxes      map[string]string `json:"boxes"`
	Scores     map[string]int    `json:"scores"`
	Turn       string            `json:"turn"`
	WinnerText string            `json:"winnerText"`
}

// Room holds everything the server knows about a two-player session. The
// first entry in Players is the host; HostID additionally records the
// creating identity so the host survives join/leave churn.
type Room struct {
	HostID      string     `json:"hostId"`
	CurrentGame GameType   `json:"currentGame,omitempty"`
	Players     []string   `json:"players"`
	Bingo       BingoState `json:"bingo"`
	Dots        DotsState  `json:"dots"`

	mu sync.Mutex
}

func defaultBingoState() BingoState {
	return BingoState{
		Ready:  make(map[string]bool),
		Boards: make(map[string][][]int),
		Called: []int{},
	}
}

func defaultDotsState() DotsState {
	return DotsState{
		Rows:   5,
		Cols:   5,
		Lines:  []Line{},
		Boxes:  make(map[string]string),
		Scores: make(map[string]int),
	}
}

func newRoom(hostID string) *Room {
	room := &Room{
		HostID:  hostID,
		Players: []string{},
		Bingo:   defaultBingoState(),
		Dots:    defaultDotsState(),
	}
	if hostID != "" {
		room.Players = append(room.Players, hostID)
	}
	return room
}

// RoomStore is the process-wide authoritative registry of rooms. The store
// mutex guards the map itself; each room carries its own mutex so reducer
// application serializes per room without rooms blocking each other.
type RoomStore struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*Room),
	}
}

func (s *RoomStore) Get(roomID string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	return room, ok
}

// Ensure returns the room for roomID, creating it with hostID as creator and
// sole participant if no events have touched it yet. Concurrent calls for the
// same unseen roomID resolve to a single instance.
func (s *RoomStore) Ensure(roomID, hostID string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	if room, ok := s.rooms[roomID]; ok {
		return room
	}

	room := newRoom(hostID)
	s.rooms[roomID] = room
	return room
}

// With runs fn with the room's mutex held, so a read-reduce-write sequence
// cannot interleave with another player's submission for the same room.
// Returns false without calling fn if the room does not exist.
func (s *RoomStore) With(roomID string, fn func(*Room)) bool {
	room, ok := s.Get(roomID)
	if !ok {
		return false
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	fn(room)
	return true
}

// ResetGame replaces the named game's sub-state with its default value.
// No-op if the room is absent.
func (s *RoomStore) ResetGame(roomID string, game GameType) {
	s.With(roomID, func(room *Room) {
		room.resetGameLocked(game)
	})
}

func (room *Room) resetGameLocked(game GameType) {
	switch game {
	case GameBingo:
		room.Bingo = defaultBingoState()
	case GameDots:
		room.Dots = defaultDotsState()
	}
}

// AddParticipant appends playerID to the roster if not already present and
// the room holds fewer than two players. Full or absent rooms are silently
// ignored; callers validate capacity before relaying, this is the final cap
// against pre-validation races.
func (s *RoomStore) AddParticipant(roomID, playerID string) {
	s.With(roomID, func(room *Room) {
		room.addParticipantLocked(playerID)
	})
}

func (room *Room) addParticipantLocked(playerID string) {
	if playerID == "" || slices.Contains(room.Players, playerID) {
		return
	}
	if len(room.Players) >= maxPlayers {
		return
	}
	room.Players = append(room.Players, playerID)
}

// RemoveParticipant is an idempotent roster removal. The host flag is not
// reassigned; the creating identity stays host for the room's lifetime.
func (s *RoomStore) RemoveParticipant(roomID, playerID string) {
	s.With(roomID, func(room *Room) {
		room.Players = slices.DeleteFunc(room.Players, func(id string) bool {
			return id == playerID
		})
	})
}

// CheckAccess reports ErrRoomFull when the room already holds two distinct
// participants and playerID is not among them.
func (s *RoomStore) CheckAccess(roomID, playerID string) error {
	var err error
	s.With(roomID, func(room *Room) {
		if len(room.Players) >= maxPlayers && !slices.Contains(room.Players, playerID) {
			err = ErrRoomFull
		}
	})
	return err
}

// Snapshot returns a deep copy of the room, safe to marshal and hand to
// clients while reducers keep mutating the original.
func (s *RoomStore) Snapshot(roomID string) (*Room, bool) {
	room, ok := s.Get(roomID)
	if !ok {
		return nil, false
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	snapshot := &Room{
		HostID:      room.HostID,
		CurrentGame: room.CurrentGame,
		Players:     slices.Clone(room.Players),
		Bingo: BingoState{
			Ready:  maps.Clone(room.Bingo.Ready),
			Boards: make(map[string][][]int, len(room.Bingo.Boards)),
			Called: slices.Clone(room.Bingo.Called),
			Turn:   room.Bingo.Turn,
			Winner: room.Bingo.Winner,
		},
		Dots: DotsState{
			Rows:       room.Dots.Rows,
			Cols:       room.Dots.Cols,
			Configured: room.Dots.Configured,
			Lines:      slices.Clone(room.Dots.Lines),
			Boxes:      maps.Clone(room.Dots.Boxes),
			Scores:     maps.Clone(room.Dots.Scores),
			Turn:       room.Dots.Turn,
			WinnerText: room.Dots.WinnerText,
		},
	}
	for playerID, board := range room.Bingo.Boards {
		rows := make([][]int, len(board))
		for i, row := range board {
			rows[i] = slices.Clone(row)
		}
		snapshot.Bingo.Boards[playerID] = rows
	}

	return snapshot, true
}
