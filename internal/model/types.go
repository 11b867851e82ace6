package model

import (
	"sync"

	"github.com/gorilla/websocket"
)

type Role string

const (
	RoleCivilian  Role = "civilian"
	RoleMafia     Role = "mafia"
	RoleDoctor    Role = "doctor"
	RoleDetective Role = "detective"
)

// CovertRoles are the roles with a night action of their own.
var CovertRoles = []Role{RoleMafia, RoleDoctor, RoleDetective}

type Phase string

const (
	PhaseLobby          Phase = "lobby"
	PhaseRoleReveal     Phase = "role_reveal"
	PhaseNightMafia     Phase = "night_mafia"
	PhaseNightDoctor    Phase = "night_doctor"
	PhaseNightDetective Phase = "night_detective"
	PhaseDayDiscussion  Phase = "day_discussion"
	PhaseDayVoting      Phase = "day_voting"
	PhaseGameOver       Phase = "game_over"
)

// IsNight reports whether p is one of the covert-action phases.
func (p Phase) IsNight() bool {
	return p == PhaseNightMafia || p == PhaseNightDoctor || p == PhaseNightDetective
}

// ActiveRole returns the covert role that acts during phase p, or "" for
// day phases.
func (p Phase) ActiveRole() Role {
	switch p {
	case PhaseNightMafia:
		return RoleMafia
	case PhaseNightDoctor:
		return RoleDoctor
	case PhaseNightDetective:
		return RoleDetective
	}
	return ""
}

type Team string

const (
	TeamTown  Team = "town"
	TeamMafia Team = "mafia"
)

type Player struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Conn        *websocket.Conn `json:"-"`
	Role        Role            `json:"role,omitempty"`
	IsAlive     bool            `json:"isAlive"`
	IsConnected bool            `json:"isConnected"`
	IsHost      bool            `json:"isHost"`
	RejoinToken string          `json:"-"`

	sendMu sync.Mutex
}

// Send writes one message to the player's current connection. The write
// lock keeps the event loop and delayed narration timers from
// interleaving frames on the same socket.
func (p *Player) Send(msg Message) error {
	if p.Conn == nil {
		return nil
	}
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	return p.Conn.WriteJSON(msg)
}

// Distribution is a role-count breakdown for one game.
type Distribution struct {
	Mafia     int `json:"mafia"`
	Doctor    int `json:"doctor"`
	Detective int `json:"detective"`
	Civilian  int `json:"civilian"`
}

// RoleCounts is a host-supplied override for the covert role counts.
type RoleCounts struct {
	Mafia     int `json:"mafia"`
	Doctor    int `json:"doctor"`
	Detective int `json:"detective"`
}

type ChatMessage struct {
	PlayerName string `json:"playerName"`
	Text       string `json:"text"`
	SentAt     int64  `json:"ts"`
}

type KilledPlayer struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}

type NightResult struct {
	Killed        *KilledPlayer `json:"killedPlayer"`
	SavedByDoctor bool          `json:"savedByDoctor"`
}

type NarrationEvent struct {
	Text  string `json:"text"`
	Phase Phase  `json:"phase"`
	Delay int    `json:"delay,omitempty"` // ms of pacing before the next update
}

// Message is the outbound wire envelope.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Action is the inbound wire envelope; unused fields stay zero.
type Action struct {
	Type     string      `json:"type"`
	Name     string      `json:"name,omitempty"`
	RoomCode string      `json:"roomCode,omitempty"`
	Token    string      `json:"token,omitempty"`
	TargetID string      `json:"targetId,omitempty"`
	Text     string      `json:"text,omitempty"`
	Roles    *RoleCounts `json:"roles,omitempty"`
}

// ClientPlayer is a player as one particular viewer is allowed to see
// them. Role is empty unless the visibility rule reveals it.
type ClientPlayer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsAlive     bool   `json:"isAlive"`
	IsConnected bool   `json:"isConnected"`
	IsHost      bool   `json:"isHost"`
	Role        Role   `json:"role,omitempty"`
}

// ClientState is the per-viewer game snapshot.
type ClientState struct {
	RoomCode       string         `json:"roomCode"`
	Phase          Phase          `json:"phase"`
	Players        []ClientPlayer `json:"players"`
	HostID         string         `json:"hostId"`
	Round          int            `json:"round"`
	NightResult    *NightResult   `json:"nightResult"`
	LastEliminated *KilledPlayer  `json:"lastEliminatedPlayer"`
	Winners        Team           `json:"winners,omitempty"`
	PhaseStart     int64          `json:"phaseStartTime"`
	MyRole         Role           `json:"myRole,omitempty"`
	MyID           string         `json:"myId"`
}

// NightPhaseData is the covert-phase detail snapshot, sent only to
// alive holders of the phase's role.
type NightPhaseData struct {
	Phase           Phase             `json:"phase"`
	MyRole          Role              `json:"myRole"`
	AlivePlayers    []ClientPlayer    `json:"alivePlayers"`
	Selections      map[string]string `json:"selections"`
	Confirmed       []string          `json:"confirmed"`
	SameRoleCount   int               `json:"sameRoleCount"`
	ChatMessages    []ChatMessage     `json:"chatMessages,omitempty"`
	DetectiveResult *bool             `json:"detectiveResult,omitempty"`
}

// VotingData is shared with the whole room during day_voting.
type VotingData struct {
	Votes        map[string]string `json:"votes"`
	AlivePlayers []ClientPlayer    `json:"alivePlayers"`
}

// PlayerStat is one row of a room's historical leaderboard.
type PlayerStat struct {
	Name  string `json:"name"`
	Games int    `json:"games"`
	Wins  int    `json:"wins"`
}
