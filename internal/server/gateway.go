package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mafianight/internal/database"
	"mafianight/internal/game"
	"mafianight/internal/model"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// ack is the reply payload for the handshake-style events; everything
// after a successful join fails silently instead.
type ack struct {
	Success   bool               `json:"success"`
	Error     string             `json:"error,omitempty"`
	RoomCode  string             `json:"roomCode,omitempty"`
	PlayerID  string             `json:"playerId,omitempty"`
	Token     string             `json:"token,omitempty"`
	GameState *model.ClientState `json:"gameState,omitempty"`
}

// Gateway translates socket events into room calls and fans the
// resulting projections back out. Each room's mutex serializes all
// event handling for that room.
type Gateway struct {
	registry *game.Registry
	store    *database.Store
	sched    Scheduler
	log      zerolog.Logger
}

func NewGateway(registry *game.Registry, store *database.Store, sched Scheduler, log zerolog.Logger) *Gateway {
	return &Gateway{registry: registry, store: store, sched: sched, log: log}
}

// HandleWS runs one connection's event loop.
func (gw *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	var room *game.Room
	var playerID string

	defer func() {
		gw.handleDisconnect(room, playerID)
		ws.Close()
	}()

	for {
		var action model.Action
		if err := ws.ReadJSON(&action); err != nil {
			return
		}

		switch action.Type {
		case "create_room":
			room, playerID = gw.handleCreate(ws, action)
		case "join_room":
			room, playerID = gw.handleJoin(ws, action, room, playerID)
		case "rejoin_room":
			room, playerID = gw.handleRejoin(ws, action, room, playerID)
		case "start_game":
			gw.handleStartGame(ws, room, playerID, action.Roles)
		case "host_quit":
			if gw.handleHostQuit(room, playerID) {
				return
			}
		default:
			gw.dispatch(room, playerID, action)
		}
	}
}

func (gw *Gateway) handleCreate(ws *websocket.Conn, action model.Action) (*game.Room, string) {
	name := trimmedName(action.Name)
	if name == "" {
		sendAck(ws, "create_room_result", ack{Error: "Name is required"})
		return nil, ""
	}

	room := gw.registry.CreateRoom(ws, name)
	room.Mutex.Lock()
	host := room.Player(room.HostID)
	reply := ack{
		Success:  true,
		RoomCode: room.Code,
		PlayerID: host.ID,
		Token:    host.RejoinToken,
	}
	state := game.ClientState(room, host.ID)
	reply.GameState = &state
	host.Send(model.Message{Type: "create_room_result", Payload: reply})
	room.Mutex.Unlock()

	gw.log.Info().Str("room", room.Code).Str("name", name).Msg("room created")
	return room, reply.PlayerID
}

func (gw *Gateway) handleJoin(ws *websocket.Conn, action model.Action, room *game.Room, playerID string) (*game.Room, string) {
	name := trimmedName(action.Name)
	if action.RoomCode == "" || name == "" {
		sendAck(ws, "join_room_result", ack{Error: "Room code and name are required"})
		return room, playerID
	}

	target := gw.registry.Room(action.RoomCode)
	if target == nil {
		sendAck(ws, "join_room_result", ack{Error: "Room not found"})
		return room, playerID
	}

	target.Mutex.Lock()
	player, err := target.AddPlayer(ws, name)
	if err != nil {
		target.Mutex.Unlock()
		sendAck(ws, "join_room_result", ack{Error: err.Error()})
		return room, playerID
	}

	state := game.ClientState(target, player.ID)
	sendAck(ws, "join_room_result", ack{
		Success:   true,
		RoomCode:  target.Code,
		PlayerID:  player.ID,
		Token:     player.RejoinToken,
		GameState: &state,
	})
	gw.broadcastState(target)
	target.Mutex.Unlock()

	gw.registry.Touch(target.Code)
	gw.log.Info().Str("room", target.Code).Str("name", name).Msg("player joined")
	return target, player.ID
}

func (gw *Gateway) handleRejoin(ws *websocket.Conn, action model.Action, room *game.Room, playerID string) (*game.Room, string) {
	if action.Token == "" {
		sendAck(ws, "rejoin_room_result", ack{Error: "Token required"})
		return room, playerID
	}

	target := gw.registry.FindByToken(action.Token)
	if target == nil {
		sendAck(ws, "rejoin_room_result", ack{Error: game.ErrTokenUnknown.Error()})
		return room, playerID
	}

	target.Mutex.Lock()
	player := target.RejoinPlayer(action.Token, ws)
	if player == nil {
		target.Mutex.Unlock()
		sendAck(ws, "rejoin_room_result", ack{Error: game.ErrTokenUnknown.Error()})
		return room, playerID
	}

	state := game.ClientState(target, player.ID)
	sendAck(ws, "rejoin_room_result", ack{
		Success:   true,
		RoomCode:  target.Code,
		PlayerID:  player.ID,
		GameState: &state,
	})
	gw.broadcastState(target)
	gw.broadcastToRoom(target, "playerReconnected", map[string]string{"playerName": player.Name})

	// Catch the returning player up on the current phase's detail view.
	if target.Phase.IsNight() {
		if data := game.NightPhaseData(target, player.ID); data != nil {
			player.Send(model.Message{Type: "nightPhaseUpdate", Payload: data})
		}
	} else if target.Phase == model.PhaseDayVoting {
		player.Send(model.Message{Type: "votingUpdate", Payload: game.VotingData(target)})
	}
	target.Mutex.Unlock()

	gw.registry.Touch(target.Code)
	gw.log.Info().Str("room", target.Code).Str("name", player.Name).Msg("player rejoined")
	return target, player.ID
}

func (gw *Gateway) handleStartGame(ws *websocket.Conn, room *game.Room, playerID string, override *model.RoleCounts) {
	if room == nil || playerID == "" {
		sendAck(ws, "start_game_result", ack{Error: "Not in a room"})
		return
	}

	room.Mutex.Lock()
	player := room.Player(playerID)
	if player == nil || !player.IsHost {
		room.Mutex.Unlock()
		sendAck(ws, "start_game_result", ack{Error: "Only host can start"})
		return
	}

	narrations, err := room.StartGame(override)
	if err != nil {
		player.Send(model.Message{Type: "start_game_result", Payload: ack{Error: err.Error()}})
		room.Mutex.Unlock()
		return
	}

	player.Send(model.Message{Type: "start_game_result", Payload: ack{Success: true}})
	gw.narrateThenBroadcast(room, narrations)
	room.Mutex.Unlock()

	gw.registry.Touch(room.Code)
	gw.log.Info().Str("room", room.Code).Int("players", len(room.Players)).Msg("game started")
}

func (gw *Gateway) handleHostQuit(room *game.Room, playerID string) bool {
	if room == nil || playerID == "" {
		return false
	}

	room.Mutex.Lock()
	player := room.Player(playerID)
	if player == nil || !player.IsHost {
		room.Mutex.Unlock()
		return false
	}
	gw.closeRoom(room, "Host ended the game")
	room.Mutex.Unlock()

	gw.registry.Delete(room.Code)
	gw.log.Info().Str("room", room.Code).Msg("host quit")
	return true
}

// dispatch covers every established-room event. Failed preconditions
// are dropped without a reply.
func (gw *Gateway) dispatch(room *game.Room, playerID string, action model.Action) {
	if room == nil || playerID == "" {
		return
	}

	room.Mutex.Lock()
	gw.dispatchLocked(room, playerID, action)
	room.Mutex.Unlock()

	gw.registry.Touch(room.Code)
}

func (gw *Gateway) dispatchLocked(room *game.Room, playerID string, action model.Action) {
	player := room.Player(playerID)
	if player == nil {
		return
	}

	switch action.Type {
	case "ready_for_night":
		if player.IsHost && room.Phase == model.PhaseRoleReveal {
			gw.narrateThenBroadcast(room, room.StartNight())
		}
	case "start_next_night":
		if player.IsHost && room.Phase == model.PhaseDayDiscussion {
			gw.narrateThenBroadcast(room, room.StartNight())
		}
	case "start_voting":
		if player.IsHost && room.Phase == model.PhaseDayDiscussion {
			gw.narrateThenBroadcast(room, room.StartVoting())
		}
	case "night_select":
		if room.NightSelect(playerID, action.TargetID) {
			gw.broadcastNight(room)
		}
	case "night_confirm":
		if room.NightConfirm(playerID) {
			gw.broadcastNight(room)
			if room.NightPhaseComplete() {
				gw.narrateThenBroadcast(room, room.AdvanceNight())
				gw.finishIfOver(room)
			}
		}
	case "night_unconfirm":
		if room.NightUnconfirm(playerID) {
			gw.broadcastNight(room)
		}
	case "night_chat":
		role := room.Phase.ActiveRole()
		if room.AddChatMessage(playerID, action.Text) {
			gw.broadcastChat(room, role)
		}
	case "cast_vote":
		if room.CastVote(playerID, action.TargetID) {
			gw.broadcastVoting(room)
			if narrations := room.ResolveVoting(); narrations != nil {
				gw.narrateThenBroadcast(room, narrations)
				gw.finishIfOver(room)
			}
		}
	case "remove_vote":
		if room.RemoveVote(playerID) {
			gw.broadcastVoting(room)
		}
	}
}

// handleDisconnect marks the player gone and, since their departure may
// have been the last thing a phase was waiting on, re-checks phase
// completeness. The loop is bounded by the three covert phases.
func (gw *Gateway) handleDisconnect(room *game.Room, playerID string) {
	if room == nil || playerID == "" {
		return
	}

	room.Mutex.Lock()
	player := room.Player(playerID)
	if player == nil {
		room.Mutex.Unlock()
		return
	}
	name := player.Name
	room.RemovePlayer(playerID)
	gw.broadcastState(room)
	gw.broadcastToRoom(room, "playerDisconnected", map[string]string{"playerName": name})

	for i := 0; i < 3 && room.Phase.IsNight(); i++ {
		if !room.NightPhaseComplete() {
			break
		}
		gw.narrateThenBroadcast(room, room.AdvanceNight())
		gw.finishIfOver(room)
	}

	if room.Phase == model.PhaseDayVoting {
		if narrations := room.ResolveVoting(); narrations != nil {
			gw.narrateThenBroadcast(room, narrations)
			gw.finishIfOver(room)
		}
	}
	room.Mutex.Unlock()

	gw.registry.Touch(room.Code)
	gw.log.Info().Str("room", room.Code).Str("name", name).Msg("player disconnected")
}

// ReapStaleRooms reclaims idle rooms and tells any lingering
// connections why they were kicked. Main runs this on a ticker.
func (gw *Gateway) ReapStaleRooms() int {
	reclaimed := gw.registry.CleanupStale()
	for _, room := range reclaimed {
		room.Mutex.Lock()
		gw.closeRoom(room, "Room expired")
		room.Mutex.Unlock()
	}
	return len(reclaimed)
}

// closeRoom notifies and closes every live connection. Caller holds the
// room mutex.
func (gw *Gateway) closeRoom(room *game.Room, reason string) {
	gw.broadcastToRoom(room, "roomClosed", map[string]string{"reason": reason})
	for _, p := range room.Players {
		if p.Conn != nil {
			p.Conn.Close()
			p.Conn = nil
			p.IsConnected = false
		}
	}
}

// narrateThenBroadcast sends the narration immediately and schedules
// the authoritative state fan-out for after its total pacing delay.
// The scheduled task re-reads the room, so if another event lands in
// the meantime the broadcast reflects the state at fire time, not at
// schedule time. Caller holds the room mutex.
func (gw *Gateway) narrateThenBroadcast(room *game.Room, narrations []model.NarrationEvent) {
	gw.broadcastToRoom(room, "narration", narrations)

	total := 0
	for _, n := range narrations {
		total += n.Delay
	}
	gw.sched.After(time.Duration(total)*time.Millisecond, func() {
		room.Mutex.Lock()
		defer room.Mutex.Unlock()
		gw.broadcastState(room)
		if room.Phase.IsNight() {
			gw.broadcastNight(room)
		} else if room.Phase == model.PhaseDayVoting {
			gw.broadcastVoting(room)
		}
	})
}

// finishIfOver records the outcome and publishes the room's historical
// leaderboard once the game reaches its terminal phase.
func (gw *Gateway) finishIfOver(room *game.Room) {
	if room.Phase != model.PhaseGameOver || gw.store == nil {
		return
	}
	gw.store.RecordGame(room.Code, room.Winners, room.Round, room.Players)
	if stats := gw.store.RoomStats(room.Code); len(stats) > 0 {
		gw.broadcastToRoom(room, "stats", stats)
	}
	gw.log.Info().Str("room", room.Code).Str("winners", string(room.Winners)).Int("rounds", room.Round).Msg("game over")
}

// --- fan-out helpers; callers hold the room mutex ---

func (gw *Gateway) broadcastToRoom(room *game.Room, msgType string, payload interface{}) {
	for _, p := range room.Players {
		if p.IsConnected {
			p.Send(model.Message{Type: msgType, Payload: payload})
		}
	}
}

// broadcastState sends each connected player their own projection.
func (gw *Gateway) broadcastState(room *game.Room) {
	for _, p := range room.Players {
		if p.IsConnected {
			p.Send(model.Message{Type: "gameState", Payload: game.ClientState(room, p.ID)})
		}
	}
}

// broadcastNight sends the covert detail view to the players entitled
// to it; everyone else gets nothing.
func (gw *Gateway) broadcastNight(room *game.Room) {
	for _, p := range room.Players {
		if !p.IsConnected {
			continue
		}
		if data := game.NightPhaseData(room, p.ID); data != nil {
			p.Send(model.Message{Type: "nightPhaseUpdate", Payload: data})
		}
	}
}

func (gw *Gateway) broadcastVoting(room *game.Room) {
	gw.broadcastToRoom(room, "votingUpdate", game.VotingData(room))
}

func (gw *Gateway) broadcastChat(room *game.Room, role model.Role) {
	messages := room.ChatForRole(role)
	for _, p := range room.AliveByRole(role) {
		if p.IsConnected {
			p.Send(model.Message{Type: "nightChatUpdate", Payload: map[string]interface{}{"messages": messages}})
		}
	}
}

func sendAck(ws *websocket.Conn, msgType string, reply ack) {
	ws.WriteJSON(model.Message{Type: msgType, Payload: reply})
}

func trimmedName(name string) string {
	return strings.TrimSpace(name)
}
