package game

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"mafianight/internal/model"
)

const maxPlayers = 30

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrGameStarted      = errors.New("game already started")
	ErrNameTaken        = errors.New("name is already taken")
	ErrNotEnoughPlayers = errors.New("need at least 5 players")
	ErrBadRoleCounts    = errors.New("invalid role counts")
	ErrTokenUnknown     = errors.New("could not find your session")
)

// nightActions holds one night's covert bookkeeping. A fresh value
// replaces the old one every night so no stale entries survive.
type nightActions struct {
	mafiaVotes         map[string]string
	mafiaConfirmed     map[string]bool
	doctorSaves        map[string]string
	doctorConfirmed    map[string]bool
	detectivePicks     map[string]string
	detectiveConfirmed map[string]bool
	detectiveResults   map[string]bool
}

func newNightActions() *nightActions {
	return &nightActions{
		mafiaVotes:         make(map[string]string),
		mafiaConfirmed:     make(map[string]bool),
		doctorSaves:        make(map[string]string),
		doctorConfirmed:    make(map[string]bool),
		detectivePicks:     make(map[string]string),
		detectiveConfirmed: make(map[string]bool),
		detectiveResults:   make(map[string]bool),
	}
}

func emptyNightChat() map[model.Role][]model.ChatMessage {
	return map[model.Role][]model.ChatMessage{
		model.RoleMafia:     {},
		model.RoleDoctor:    {},
		model.RoleDetective: {},
	}
}

// Room is one game session. All fields are guarded by Mutex, which the
// gateway holds for the duration of each event it processes.
type Room struct {
	Code           string
	Phase          model.Phase
	Round          int
	Players        map[string]*model.Player
	HostID         string
	DayVotes       map[string]string
	NightResult    *model.NightResult
	LastEliminated *model.KilledPlayer
	Winners        model.Team
	PhaseStart     time.Time
	Mutex          sync.Mutex

	night     *nightActions
	nightChat map[model.Role][]model.ChatMessage
	now       func() time.Time
}

// NewRoom creates a room containing only its host.
func NewRoom(code string, hostConn *websocket.Conn, hostName string) *Room {
	r := &Room{
		Code:      code,
		Phase:     model.PhaseLobby,
		Players:   make(map[string]*model.Player),
		DayVotes:  make(map[string]string),
		night:     newNightActions(),
		nightChat: emptyNightChat(),
		now:       time.Now,
	}
	host := &model.Player{
		ID:          uuid.New().String(),
		Name:        hostName,
		Conn:        hostConn,
		IsAlive:     true,
		IsConnected: true,
		IsHost:      true,
		RejoinToken: uuid.New().String(),
	}
	r.HostID = host.ID
	r.Players[host.ID] = host
	r.PhaseStart = r.now()
	return r
}

func (r *Room) setPhase(p model.Phase) {
	r.Phase = p
	r.PhaseStart = r.now()
}

// AddPlayer admits a new player during the lobby phase. Names are
// unique per room, case-insensitively.
func (r *Room) AddPlayer(conn *websocket.Conn, name string) (*model.Player, error) {
	if r.Phase != model.PhaseLobby {
		return nil, ErrGameStarted
	}
	if len(r.Players) >= maxPlayers {
		return nil, ErrRoomFull
	}
	for _, p := range r.Players {
		if strings.EqualFold(p.Name, name) {
			return nil, ErrNameTaken
		}
	}

	player := &model.Player{
		ID:          uuid.New().String(),
		Name:        name,
		Conn:        conn,
		IsAlive:     true,
		IsConnected: true,
		RejoinToken: uuid.New().String(),
	}
	r.Players[player.ID] = player
	return player, nil
}

// RejoinPlayer resumes the identity behind token on a new connection.
func (r *Room) RejoinPlayer(token string, conn *websocket.Conn) *model.Player {
	for _, p := range r.Players {
		if p.RejoinToken == token {
			p.Conn = conn
			p.IsConnected = true
			if r.HostID == "" {
				p.IsHost = true
				r.HostID = p.ID
			}
			return p
		}
	}
	return nil
}

// HasToken reports whether token belongs to any player in the room.
func (r *Room) HasToken(token string) bool {
	for _, p := range r.Players {
		if p.RejoinToken == token {
			return true
		}
	}
	return false
}

// RemovePlayer handles a departure. In the lobby the player is
// forgotten entirely; once the game has started they are only marked
// disconnected so the rejoin token keeps working. Either way the host
// slot is re-filled if it was theirs.
func (r *Room) RemovePlayer(playerID string) bool {
	player, ok := r.Players[playerID]
	if !ok {
		return false
	}

	if r.Phase == model.PhaseLobby {
		delete(r.Players, playerID)
		if player.IsHost {
			r.HostID = ""
			for _, next := range r.Players {
				next.IsHost = true
				r.HostID = next.ID
				break
			}
		}
		return true
	}

	player.IsConnected = false
	player.Conn = nil

	if player.IsHost {
		if next := r.pickHost(playerID); next != nil {
			player.IsHost = false
			next.IsHost = true
			r.HostID = next.ID
		} else {
			player.IsHost = false
			r.HostID = ""
		}
	}
	return true
}

// pickHost chooses a replacement host: any connected alive player
// first, then any connected player at all.
func (r *Room) pickHost(excludeID string) *model.Player {
	var fallback *model.Player
	for _, p := range r.Players {
		if p.ID == excludeID || !p.IsConnected {
			continue
		}
		if p.IsAlive {
			return p
		}
		if fallback == nil {
			fallback = p
		}
	}
	return fallback
}

func (r *Room) Player(id string) *model.Player {
	return r.Players[id]
}

func (r *Room) AlivePlayers() []*model.Player {
	alive := make([]*model.Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.IsAlive {
			alive = append(alive, p)
		}
	}
	return alive
}

func (r *Room) AliveByRole(role model.Role) []*model.Player {
	var out []*model.Player
	for _, p := range r.Players {
		if p.IsAlive && p.Role == role {
			out = append(out, p)
		}
	}
	return out
}

func (r *Room) connectedAliveByRole(role model.Role) []*model.Player {
	var out []*model.Player
	for _, p := range r.AliveByRole(role) {
		if p.IsConnected {
			out = append(out, p)
		}
	}
	return out
}

// AllDisconnected reports whether nobody in the room holds a live
// connection.
func (r *Room) AllDisconnected() bool {
	for _, p := range r.Players {
		if p.IsConnected {
			return false
		}
	}
	return true
}

func (r *Room) CanStart() bool {
	return r.Phase == model.PhaseLobby && len(r.Players) >= 5
}

// StartGame assigns roles exactly once and moves the room to
// role_reveal. A nil override uses the default distribution.
func (r *Room) StartGame(override *model.RoleCounts) ([]model.NarrationEvent, error) {
	if !r.CanStart() {
		return nil, ErrNotEnoughPlayers
	}

	n := len(r.Players)
	dist := DefaultDistribution(n)
	if override != nil {
		dist = model.Distribution{
			Mafia:     override.Mafia,
			Doctor:    override.Doctor,
			Detective: override.Detective,
		}
		dist.Civilian = n - dist.Mafia - dist.Doctor - dist.Detective
		if !ValidDistribution(dist, n) {
			return nil, ErrBadRoleCounts
		}
	}

	ids := make([]string, 0, n)
	for id := range r.Players {
		ids = append(ids, id)
	}
	for id, role := range AssignRoles(ids, dist) {
		r.Players[id].Role = role
	}

	r.Round = 0
	r.setPhase(model.PhaseRoleReveal)

	return []model.NarrationEvent{
		{Text: "Roles have been assigned. Check your role carefully...", Phase: model.PhaseRoleReveal},
	}, nil
}

// StartNight begins the next round: bookkeeping and chat reset by full
// replacement, then straight into the mafia phase.
func (r *Room) StartNight() []model.NarrationEvent {
	r.Round++
	r.night = newNightActions()
	r.NightResult = nil
	r.LastEliminated = nil
	r.nightChat = emptyNightChat()
	r.setPhase(model.PhaseNightMafia)

	return []model.NarrationEvent{
		{Text: fmt.Sprintf("Night %d falls over the city. Everyone, close your eyes.", r.Round), Phase: model.PhaseNightMafia, Delay: 3000},
		{Text: "Mafia, wake up. Choose your victim.", Phase: model.PhaseNightMafia, Delay: 1500},
	}
}

// NightSelect records the acting player's target for the current
// covert phase. Selecting clears any prior confirmation, so a changed
// mind always has to be re-confirmed.
func (r *Room) NightSelect(playerID, targetID string) bool {
	role := r.Phase.ActiveRole()
	if role == "" {
		return false
	}
	player := r.Players[playerID]
	if player == nil || player.Role != role || !player.IsAlive {
		return false
	}
	target := r.Players[targetID]
	if target == nil || !target.IsAlive {
		return false
	}

	switch role {
	case model.RoleMafia:
		if target.Role == model.RoleMafia {
			return false
		}
		r.night.mafiaVotes[playerID] = targetID
		delete(r.night.mafiaConfirmed, playerID)
	case model.RoleDoctor:
		r.night.doctorSaves[playerID] = targetID
		delete(r.night.doctorConfirmed, playerID)
	case model.RoleDetective:
		r.night.detectivePicks[playerID] = targetID
		delete(r.night.detectiveConfirmed, playerID)
		delete(r.night.detectiveResults, playerID)
	}
	return true
}

// NightConfirm locks in the acting player's selection. Detective
// results are computed here and only here, so nothing leaks before
// lock-in.
func (r *Room) NightConfirm(playerID string) bool {
	role := r.Phase.ActiveRole()
	if role == "" {
		return false
	}
	player := r.Players[playerID]
	if player == nil || player.Role != role || !player.IsAlive {
		return false
	}

	switch role {
	case model.RoleMafia:
		if _, ok := r.night.mafiaVotes[playerID]; !ok {
			return false
		}
		r.night.mafiaConfirmed[playerID] = true
	case model.RoleDoctor:
		if _, ok := r.night.doctorSaves[playerID]; !ok {
			return false
		}
		r.night.doctorConfirmed[playerID] = true
	case model.RoleDetective:
		targetID, ok := r.night.detectivePicks[playerID]
		if !ok {
			return false
		}
		r.night.detectiveConfirmed[playerID] = true
		r.night.detectiveResults[playerID] = r.Players[targetID].Role == model.RoleMafia
	}
	return true
}

// NightUnconfirm releases a lock-in; for a detective it also discards
// the cached investigation result.
func (r *Room) NightUnconfirm(playerID string) bool {
	switch r.Phase.ActiveRole() {
	case model.RoleMafia:
		delete(r.night.mafiaConfirmed, playerID)
	case model.RoleDoctor:
		delete(r.night.doctorConfirmed, playerID)
	case model.RoleDetective:
		delete(r.night.detectiveConfirmed, playerID)
		delete(r.night.detectiveResults, playerID)
	default:
		return false
	}
	return true
}

// NightPhaseComplete reports whether the current covert phase can
// advance. A phase with no alive or no connected holders of its role is
// vacuously complete; otherwise every connected alive holder must have
// confirmed, and the mafia must additionally agree on a single target.
func (r *Room) NightPhaseComplete() bool {
	role := r.Phase.ActiveRole()
	if role == "" {
		return false
	}
	if len(r.AliveByRole(role)) == 0 {
		return true
	}
	connected := r.connectedAliveByRole(role)
	if len(connected) == 0 {
		return true
	}

	switch role {
	case model.RoleMafia:
		first := ""
		for _, p := range connected {
			if !r.night.mafiaConfirmed[p.ID] {
				return false
			}
			target := r.night.mafiaVotes[p.ID]
			if first == "" {
				first = target
			} else if target != first {
				return false
			}
		}
		return first != ""
	case model.RoleDoctor:
		for _, p := range connected {
			if !r.night.doctorConfirmed[p.ID] {
				return false
			}
		}
		return true
	default:
		for _, p := range connected {
			if !r.night.detectiveConfirmed[p.ID] {
				return false
			}
		}
		return true
	}
}

// MafiaTarget returns the target the connected mafia settled on, or ""
// for a silent night (no connected mafia selected anyone).
func (r *Room) MafiaTarget() string {
	for _, p := range r.connectedAliveByRole(model.RoleMafia) {
		if target, ok := r.night.mafiaVotes[p.ID]; ok {
			return target
		}
	}
	return ""
}

// DetectiveResult returns the cached investigation outcome for one
// detective, if they have confirmed this night.
func (r *Room) DetectiveResult(playerID string) (bool, bool) {
	res, ok := r.night.detectiveResults[playerID]
	return res, ok
}

// AdvanceNight moves past the current covert phase. Phases whose role
// has no alive holders are skipped in a chain, so a game without
// doctors and detectives goes straight from the mafia phase to day.
func (r *Room) AdvanceNight() []model.NarrationEvent {
	switch r.Phase {
	case model.PhaseNightMafia:
		return r.advanceFromMafia()
	case model.PhaseNightDoctor:
		return r.advanceFromDoctor()
	case model.PhaseNightDetective:
		return r.advanceFromDetective()
	}
	return nil
}

func (r *Room) advanceFromMafia() []model.NarrationEvent {
	r.nightChat[model.RoleMafia] = nil
	r.setPhase(model.PhaseNightDoctor)

	if len(r.AliveByRole(model.RoleDoctor)) == 0 {
		return r.advanceFromDoctor()
	}
	return []model.NarrationEvent{
		{Text: "Mafia, close your eyes.", Phase: model.PhaseNightDoctor, Delay: 2000},
		{Text: "Doctor, wake up. Choose someone to save.", Phase: model.PhaseNightDoctor, Delay: 1500},
	}
}

func (r *Room) advanceFromDoctor() []model.NarrationEvent {
	r.nightChat[model.RoleDoctor] = nil
	r.setPhase(model.PhaseNightDetective)

	if len(r.AliveByRole(model.RoleDetective)) == 0 {
		return r.advanceFromDetective()
	}
	return []model.NarrationEvent{
		{Text: "Doctor, close your eyes.", Phase: model.PhaseNightDetective, Delay: 2000},
		{Text: "Detective, wake up. Point at someone to investigate.", Phase: model.PhaseNightDetective, Delay: 1500},
	}
}

func (r *Room) advanceFromDetective() []model.NarrationEvent {
	mafiaTarget := r.MafiaTarget()
	saved := false
	if mafiaTarget != "" {
		for _, targetID := range r.night.doctorSaves {
			if targetID == mafiaTarget {
				saved = true
				break
			}
		}
	}

	var killed *model.KilledPlayer
	if mafiaTarget != "" && !saved {
		if victim := r.Players[mafiaTarget]; victim != nil {
			victim.IsAlive = false
			killed = &model.KilledPlayer{Name: victim.Name, Role: victim.Role}
			r.transferHostIfDead()
		}
	}

	r.nightChat[model.RoleDetective] = nil
	r.NightResult = &model.NightResult{Killed: killed, SavedByDoctor: saved}
	r.setPhase(model.PhaseDayDiscussion)

	narrations := []model.NarrationEvent{
		{Text: "Detective, close your eyes.", Phase: model.PhaseDayDiscussion, Delay: 2000},
		{Text: "Dawn breaks. The city wakes up.", Phase: model.PhaseDayDiscussion, Delay: 2500},
	}
	switch {
	case killed != nil:
		narrations = append(narrations, model.NarrationEvent{
			Text:  fmt.Sprintf("Last night, %s was killed by the mafia. They were a %s.", killed.Name, killed.Role),
			Phase: model.PhaseDayDiscussion,
			Delay: 3000,
		})
	case saved:
		narrations = append(narrations, model.NarrationEvent{
			Text:  "The doctor saved someone last night! Nobody died.",
			Phase: model.PhaseDayDiscussion,
			Delay: 2500,
		})
	default:
		narrations = append(narrations, model.NarrationEvent{
			Text:  "It was a peaceful night. Nobody died.",
			Phase: model.PhaseDayDiscussion,
			Delay: 2500,
		})
	}

	return append(narrations, r.endGameIfWon()...)
}

// StartVoting opens the day vote with an empty ballot.
func (r *Room) StartVoting() []model.NarrationEvent {
	r.DayVotes = make(map[string]string)
	r.setPhase(model.PhaseDayVoting)

	return []model.NarrationEvent{
		{Text: "Time to vote. Who do you think is the Mafia?", Phase: model.PhaseDayVoting, Delay: 1500},
	}
}

// CastVote records or replaces a vote. Self-votes and votes involving
// dead players are rejected.
func (r *Room) CastVote(voterID, targetID string) bool {
	if r.Phase != model.PhaseDayVoting {
		return false
	}
	voter := r.Players[voterID]
	if voter == nil || !voter.IsAlive {
		return false
	}
	target := r.Players[targetID]
	if target == nil || !target.IsAlive || voterID == targetID {
		return false
	}
	r.DayVotes[voterID] = targetID
	return true
}

func (r *Room) RemoveVote(voterID string) bool {
	if r.Phase != model.PhaseDayVoting {
		return false
	}
	delete(r.DayVotes, voterID)
	return true
}

// VotingStatus reports whether every connected alive player has voted
// and, if the tally has a unique maximum, who it falls on. A top-count
// tie keeps the vote open.
func (r *Room) VotingStatus() (allVoted bool, eliminatedID string) {
	connectedAlive := 0
	for _, p := range r.AlivePlayers() {
		if p.IsConnected {
			connectedAlive++
		}
	}
	if len(r.DayVotes) < connectedAlive {
		return false, ""
	}

	counts := make(map[string]int)
	for _, targetID := range r.DayVotes {
		counts[targetID]++
	}
	max, top := 0, ""
	tied := false
	for targetID, n := range counts {
		switch {
		case n > max:
			max, top, tied = n, targetID, false
		case n == max:
			tied = true
		}
	}
	if top == "" || tied {
		return true, ""
	}
	return true, top
}

// ResolveVoting eliminates the plurality target if the vote is
// resolvable, returning nil when it is not.
func (r *Room) ResolveVoting() []model.NarrationEvent {
	allVoted, eliminatedID := r.VotingStatus()
	if !allVoted || eliminatedID == "" {
		return nil
	}
	eliminated := r.Players[eliminatedID]
	if eliminated == nil {
		return nil
	}

	eliminated.IsAlive = false
	r.LastEliminated = &model.KilledPlayer{Name: eliminated.Name, Role: eliminated.Role}
	r.transferHostIfDead()
	r.setPhase(model.PhaseDayDiscussion)

	narrations := []model.NarrationEvent{
		{
			Text:  fmt.Sprintf("The town has spoken. %s has been eliminated. They were a %s.", eliminated.Name, eliminated.Role),
			Phase: model.PhaseDayDiscussion,
			Delay: 3000,
		},
	}
	return append(narrations, r.endGameIfWon()...)
}

// AddChatMessage posts to the current phase's covert chat. Only alive
// holders of the active role may post.
func (r *Room) AddChatMessage(playerID, text string) bool {
	role := r.Phase.ActiveRole()
	if role == "" {
		return false
	}
	player := r.Players[playerID]
	if player == nil || !player.IsAlive || player.Role != role {
		return false
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if runes := []rune(trimmed); len(runes) > 200 {
		trimmed = string(runes[:200])
	}
	r.nightChat[role] = append(r.nightChat[role], model.ChatMessage{
		PlayerName: player.Name,
		Text:       trimmed,
		SentAt:     r.now().UnixMilli(),
	})
	return true
}

// ChatForRole returns a copy of one covert role's chat log.
func (r *Room) ChatForRole(role model.Role) []model.ChatMessage {
	log := r.nightChat[role]
	out := make([]model.ChatMessage, len(log))
	copy(out, log)
	return out
}

// winner returns the winning team, or "" while the game is still open.
func (r *Room) winner() model.Team {
	aliveMafia := len(r.AliveByRole(model.RoleMafia))
	aliveTown := len(r.AlivePlayers()) - aliveMafia

	if aliveMafia == 0 {
		return model.TeamTown
	}
	if aliveMafia >= aliveTown {
		return model.TeamMafia
	}
	return ""
}

// endGameIfWon checks the win condition and, if reached, moves to
// game_over and returns the closing narration.
func (r *Room) endGameIfWon() []model.NarrationEvent {
	team := r.winner()
	if team == "" {
		return nil
	}
	r.nightChat = emptyNightChat()
	r.Winners = team
	r.setPhase(model.PhaseGameOver)

	text := "The Mafia has taken over the city. Mafia wins!"
	if team == model.TeamTown {
		text = "The town has rid itself of all Mafia. Town wins!"
	}
	return []model.NarrationEvent{{Text: text, Phase: model.PhaseGameOver, Delay: 3000}}
}

// transferHostIfDead re-fills the host slot after an elimination.
func (r *Room) transferHostIfDead() {
	host := r.Players[r.HostID]
	if host == nil || host.IsAlive {
		return
	}
	host.IsHost = false
	if next := r.pickHost(r.HostID); next != nil {
		next.IsHost = true
		r.HostID = next.ID
	} else {
		r.HostID = ""
	}
}
