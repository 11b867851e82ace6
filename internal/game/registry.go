package game

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mafianight/internal/model"
)

// codeAlphabet leaves out characters that read ambiguously on a shared
// screen (0/O, 1/I).
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

// Reclaim thresholds, tiered by how abandoned a room looks.
const (
	staleGameOver     = 3 * time.Minute
	staleDisconnected = 2 * time.Minute
	staleLobby        = 15 * time.Minute
	maxRoomAge        = time.Hour
)

type roomEntry struct {
	room         *Room
	createdAt    time.Time
	lastActivity time.Time
}

// Registry owns every live room, keyed by code. Codes are unique only
// among live rooms and may be reused after deletion.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*roomEntry
	now   func() time.Time
	log   zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		rooms: make(map[string]*roomEntry),
		now:   time.Now,
		log:   log,
	}
}

// SetClock replaces the registry's time source; tests use this to
// advance a virtual clock.
func (g *Registry) SetClock(now func() time.Time) {
	g.mu.Lock()
	g.now = now
	g.mu.Unlock()
}

func (g *Registry) generateCode() string {
	for {
		b := make([]byte, codeLength)
		for i := range b {
			b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
		}
		code := string(b)
		if _, taken := g.rooms[code]; !taken {
			return code
		}
	}
}

// CreateRoom allocates a fresh code and a room holding only its host.
func (g *Registry) CreateRoom(hostConn *websocket.Conn, hostName string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	code := g.generateCode()
	room := NewRoom(code, hostConn, hostName)
	now := g.now()
	g.rooms[code] = &roomEntry{room: room, createdAt: now, lastActivity: now}

	g.log.Info().Str("room", code).Int("total", len(g.rooms)).Msg("room created")
	return room
}

// Room looks up a room by code, case-insensitively.
func (g *Registry) Room(code string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	if entry, ok := g.rooms[strings.ToUpper(code)]; ok {
		return entry.room
	}
	return nil
}

// FindByToken scans live rooms for the one holding a rejoin token.
func (g *Registry) FindByToken(token string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, entry := range g.rooms {
		entry.room.Mutex.Lock()
		ok := entry.room.HasToken(token)
		entry.room.Mutex.Unlock()
		if ok {
			return entry.room
		}
	}
	return nil
}

// Touch refreshes a room's last-activity time. The gateway calls this
// on every state-affecting event.
func (g *Registry) Touch(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if entry, ok := g.rooms[code]; ok {
		entry.lastActivity = g.now()
	}
}

func (g *Registry) Delete(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rooms[code]; !ok {
		return
	}
	delete(g.rooms, code)
	g.log.Info().Str("room", code).Int("remaining", len(g.rooms)).Msg("room deleted")
}

func (g *Registry) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// CleanupStale removes rooms under the tiered idle policy and returns
// them so the caller can notify any lingering connections. Finished
// rooms go quickly, fully disconnected rooms a bit later, idle lobbies
// later still; the absolute age cap applies regardless of activity.
func (g *Registry) CleanupStale() []*Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	var reclaimed []*Room
	for code, entry := range g.rooms {
		idle := now.Sub(entry.lastActivity)
		age := now.Sub(entry.createdAt)

		entry.room.Mutex.Lock()
		phase := entry.room.Phase
		abandoned := entry.room.AllDisconnected()
		entry.room.Mutex.Unlock()

		stale := (phase == model.PhaseGameOver && idle > staleGameOver) ||
			(phase == model.PhaseLobby && idle > staleLobby) ||
			(abandoned && idle > staleDisconnected) ||
			age > maxRoomAge

		if stale {
			g.log.Info().
				Str("room", code).
				Str("phase", string(phase)).
				Dur("idle", idle).
				Dur("age", age).
				Msg("reclaiming stale room")
			delete(g.rooms, code)
			reclaimed = append(reclaimed, entry.room)
		}
	}
	return reclaimed
}
