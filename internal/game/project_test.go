package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mafianight/internal/model"
)

func revealRoom(t *testing.T) *Room {
	t.Helper()
	r := testRoom(t, "alice", "bob", "carol", "dave", "erin", "frank")
	startWithRoles(t, r, map[string]model.Role{
		"alice": model.RoleMafia,
		"bob":   model.RoleMafia,
		"carol": model.RoleDoctor,
		"dave":  model.RoleDetective,
		"erin":  model.RoleCivilian,
		"frank": model.RoleCivilian,
	})
	r.StartNight()
	return r
}

func stateFor(r *Room, viewerID string) map[string]model.ClientPlayer {
	byID := map[string]model.ClientPlayer{}
	for _, cp := range ClientState(r, viewerID).Players {
		byID[cp.ID] = cp
	}
	return byID
}

func TestRolesHiddenFromOutsidersWhileGameRuns(t *testing.T) {
	r := revealRoom(t)
	erin := idByName(t, r, "erin")
	alice := idByName(t, r, "alice")
	carol := idByName(t, r, "carol")

	seen := stateFor(r, erin)
	assert.Empty(t, seen[alice].Role)
	assert.Empty(t, seen[carol].Role)
	assert.Equal(t, model.RoleCivilian, seen[erin].Role, "always see your own role")
}

func TestMafiaSeeEachOtherButNotOthers(t *testing.T) {
	r := revealRoom(t)
	alice := idByName(t, r, "alice")
	bob := idByName(t, r, "bob")
	carol := idByName(t, r, "carol")

	seen := stateFor(r, alice)
	assert.Equal(t, model.RoleMafia, seen[bob].Role)
	assert.Empty(t, seen[carol].Role, "doctor stays hidden even from mafia")
}

func TestDeadMafiaNoLongerSeesPartners(t *testing.T) {
	r := revealRoom(t)
	alice := idByName(t, r, "alice")
	bob := idByName(t, r, "bob")

	r.Players[alice].IsAlive = false
	seen := stateFor(r, alice)
	assert.Empty(t, seen[bob].Role, "dead viewers lose the mafia channel")
	assert.Equal(t, model.RoleMafia, seen[alice].Role)
}

func TestDeadPlayersRevealedToEveryone(t *testing.T) {
	r := revealRoom(t)
	carol := idByName(t, r, "carol")
	erin := idByName(t, r, "erin")

	r.Players[carol].IsAlive = false
	seen := stateFor(r, erin)
	assert.Equal(t, model.RoleDoctor, seen[carol].Role)
}

func TestGameOverRevealsAllRoles(t *testing.T) {
	r := revealRoom(t)
	r.Phase = model.PhaseGameOver
	erin := idByName(t, r, "erin")

	for _, cp := range stateFor(r, erin) {
		assert.NotEmpty(t, cp.Role)
	}
}

func TestClientStateCarriesViewerRole(t *testing.T) {
	r := revealRoom(t)
	dave := idByName(t, r, "dave")

	state := ClientState(r, dave)
	assert.Equal(t, model.RoleDetective, state.MyRole)
	assert.Equal(t, dave, state.MyID)
	assert.Equal(t, r.Code, state.RoomCode)
}

func TestNightPhaseDataOnlyForActiveRoleHolders(t *testing.T) {
	r := revealRoom(t)
	alice := idByName(t, r, "alice")
	carol := idByName(t, r, "carol")
	erin := idByName(t, r, "erin")

	assert.NotNil(t, NightPhaseData(r, alice))
	assert.Nil(t, NightPhaseData(r, carol), "doctor gets nothing during the mafia phase")
	assert.Nil(t, NightPhaseData(r, erin))

	r.Players[alice].IsAlive = false
	assert.Nil(t, NightPhaseData(r, alice), "dead holders get nothing")
}

func TestNightPhaseDataSharesPeerSelections(t *testing.T) {
	r := revealRoom(t)
	alice := idByName(t, r, "alice")
	bob := idByName(t, r, "bob")
	erin := idByName(t, r, "erin")

	require.True(t, r.NightSelect(alice, erin))
	require.True(t, r.NightConfirm(alice))

	data := NightPhaseData(r, bob)
	require.NotNil(t, data)
	assert.Equal(t, erin, data.Selections[alice])
	assert.Contains(t, data.Confirmed, alice)
	assert.Equal(t, 2, data.SameRoleCount)
	assert.Nil(t, data.DetectiveResult)
}

func TestNightPhaseDataCarriesDetectiveResult(t *testing.T) {
	r := revealRoom(t)
	r.Phase = model.PhaseNightDetective
	dave := idByName(t, r, "dave")
	alice := idByName(t, r, "alice")

	data := NightPhaseData(r, dave)
	require.NotNil(t, data)
	assert.Nil(t, data.DetectiveResult)

	require.True(t, r.NightSelect(dave, alice))
	require.True(t, r.NightConfirm(dave))

	data = NightPhaseData(r, dave)
	require.NotNil(t, data)
	require.NotNil(t, data.DetectiveResult)
	assert.True(t, *data.DetectiveResult)
}

func TestVotingDataNeverLeaksRoles(t *testing.T) {
	r := revealRoom(t)
	r.Phase = model.PhaseDayDiscussion
	r.StartVoting()

	alice := idByName(t, r, "alice")
	erin := idByName(t, r, "erin")
	require.True(t, r.CastVote(erin, alice))

	data := VotingData(r)
	assert.Equal(t, alice, data.Votes[erin])
	require.Len(t, data.AlivePlayers, 6)
	for _, cp := range data.AlivePlayers {
		assert.Empty(t, cp.Role)
	}
}
