package game

import (
	"mafianight/internal/model"
)

// RevealRole is the visibility rule every outward projection goes
// through: a role is visible once the game is over, when the target is
// dead, to the target themselves, and between alive mafia.
func RevealRole(r *Room, target *model.Player, viewerID string) bool {
	if r.Phase == model.PhaseGameOver {
		return true
	}
	if !target.IsAlive {
		return true
	}
	if target.ID == viewerID {
		return true
	}
	viewer := r.Players[viewerID]
	if viewer != nil && viewer.IsAlive && viewer.Role == model.RoleMafia && target.Role == model.RoleMafia {
		return true
	}
	return false
}

func clientPlayer(r *Room, p *model.Player, viewerID string) model.ClientPlayer {
	cp := model.ClientPlayer{
		ID:          p.ID,
		Name:        p.Name,
		IsAlive:     p.IsAlive,
		IsConnected: p.IsConnected,
		IsHost:      p.IsHost,
	}
	if RevealRole(r, p, viewerID) {
		cp.Role = p.Role
	}
	return cp
}

// ClientState builds the sanitized snapshot one viewer receives. There
// is no shared truth view; every player gets their own projection.
func ClientState(r *Room, viewerID string) model.ClientState {
	players := make([]model.ClientPlayer, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, clientPlayer(r, p, viewerID))
	}

	state := model.ClientState{
		RoomCode:       r.Code,
		Phase:          r.Phase,
		Players:        players,
		HostID:         r.HostID,
		Round:          r.Round,
		NightResult:    r.NightResult,
		LastEliminated: r.LastEliminated,
		Winners:        r.Winners,
		PhaseStart:     r.PhaseStart.UnixMilli(),
		MyID:           viewerID,
	}
	if viewer := r.Players[viewerID]; viewer != nil {
		state.MyRole = viewer.Role
	}
	return state
}

// NightPhaseData builds the covert-phase detail snapshot for one
// viewer, or nil if the viewer is not an alive holder of the phase's
// role. Peers' selections and confirmations are shared within the
// role; a detective additionally sees their own cached result.
func NightPhaseData(r *Room, viewerID string) *model.NightPhaseData {
	role := r.Phase.ActiveRole()
	viewer := r.Players[viewerID]
	if role == "" || viewer == nil || !viewer.IsAlive || viewer.Role != role {
		return nil
	}

	alive := make([]model.ClientPlayer, 0, len(r.Players))
	for _, p := range r.AlivePlayers() {
		alive = append(alive, clientPlayer(r, p, viewerID))
	}

	data := &model.NightPhaseData{
		Phase:         r.Phase,
		MyRole:        role,
		AlivePlayers:  alive,
		Selections:    make(map[string]string),
		Confirmed:     []string{},
		SameRoleCount: len(r.AliveByRole(role)),
		ChatMessages:  r.ChatForRole(role),
	}

	var picks map[string]string
	var confirmed map[string]bool
	switch role {
	case model.RoleMafia:
		picks, confirmed = r.night.mafiaVotes, r.night.mafiaConfirmed
	case model.RoleDoctor:
		picks, confirmed = r.night.doctorSaves, r.night.doctorConfirmed
	case model.RoleDetective:
		picks, confirmed = r.night.detectivePicks, r.night.detectiveConfirmed
		if res, ok := r.night.detectiveResults[viewerID]; ok {
			data.DetectiveResult = &res
		}
	}
	for id, targetID := range picks {
		data.Selections[id] = targetID
	}
	for id := range confirmed {
		data.Confirmed = append(data.Confirmed, id)
	}
	return data
}

// VotingData is the shared day-vote snapshot; roles are never included.
func VotingData(r *Room) model.VotingData {
	votes := make(map[string]string, len(r.DayVotes))
	for voterID, targetID := range r.DayVotes {
		votes[voterID] = targetID
	}

	alive := make([]model.ClientPlayer, 0, len(r.Players))
	for _, p := range r.AlivePlayers() {
		alive = append(alive, model.ClientPlayer{
			ID:          p.ID,
			Name:        p.Name,
			IsAlive:     p.IsAlive,
			IsConnected: p.IsConnected,
			IsHost:      p.IsHost,
		})
	}
	return model.VotingData{Votes: votes, AlivePlayers: alive}
}
