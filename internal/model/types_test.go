package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseActiveRole(t *testing.T) {
	assert.Equal(t, RoleMafia, PhaseNightMafia.ActiveRole())
	assert.Equal(t, RoleDoctor, PhaseNightDoctor.ActiveRole())
	assert.Equal(t, RoleDetective, PhaseNightDetective.ActiveRole())
	assert.Empty(t, PhaseDayVoting.ActiveRole())
	assert.Empty(t, PhaseLobby.ActiveRole())
}

func TestPhaseIsNight(t *testing.T) {
	night := []Phase{PhaseNightMafia, PhaseNightDoctor, PhaseNightDetective}
	for _, p := range night {
		assert.True(t, p.IsNight(), string(p))
	}
	day := []Phase{PhaseLobby, PhaseRoleReveal, PhaseDayDiscussion, PhaseDayVoting, PhaseGameOver}
	for _, p := range day {
		assert.False(t, p.IsNight(), string(p))
	}
}

func TestSendWithoutConnectionIsANoop(t *testing.T) {
	p := &Player{Name: "ghost"}
	assert.NoError(t, p.Send(Message{Type: "gameState"}))
}
