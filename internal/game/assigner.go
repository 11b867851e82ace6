package game

import (
	"math/rand"

	"mafianight/internal/model"
)

// DefaultDistribution returns the standard role counts for a player
// count. The steps are tuned so mafia stays just under a third of the
// table; civilian absorbs the remainder.
func DefaultDistribution(playerCount int) model.Distribution {
	var mafia, doctor, detective int

	switch {
	case playerCount <= 6:
		mafia, doctor, detective = 1, 1, 1
	case playerCount <= 12:
		mafia, doctor, detective = 2, 1, 1
	case playerCount <= 16:
		mafia, doctor, detective = 3, 1, 2
	case playerCount <= 20:
		mafia, doctor, detective = 4, 2, 2
	case playerCount <= 25:
		mafia, doctor, detective = 5, 2, 2
	default:
		mafia, doctor, detective = 6, 2, 3
	}

	return model.Distribution{
		Mafia:     mafia,
		Doctor:    doctor,
		Detective: detective,
		Civilian:  playerCount - mafia - doctor - detective,
	}
}

// ValidDistribution reports whether dist can be dealt to n players.
func ValidDistribution(dist model.Distribution, n int) bool {
	if dist.Mafia < 1 || dist.Doctor < 0 || dist.Detective < 0 {
		return false
	}
	return dist.Mafia+dist.Doctor+dist.Detective <= n
}

// AssignRoles deals dist out to the given player ids with a uniform
// Fisher-Yates shuffle. The distribution must already be validated and
// sized to len(ids).
func AssignRoles(ids []string, dist model.Distribution) map[string]model.Role {
	roles := make([]model.Role, 0, len(ids))
	for i := 0; i < dist.Mafia; i++ {
		roles = append(roles, model.RoleMafia)
	}
	for i := 0; i < dist.Doctor; i++ {
		roles = append(roles, model.RoleDoctor)
	}
	for i := 0; i < dist.Detective; i++ {
		roles = append(roles, model.RoleDetective)
	}
	for i := 0; i < dist.Civilian; i++ {
		roles = append(roles, model.RoleCivilian)
	}

	for i := len(roles) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		roles[i], roles[j] = roles[j], roles[i]
	}

	assignments := make(map[string]model.Role, len(ids))
	for i, id := range ids {
		assignments[id] = roles[i]
	}
	return assignments
}
