package game

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mafianight/internal/model"
)

func TestDefaultDistributionCoversEveryPlayerCount(t *testing.T) {
	for n := 5; n <= 30; n++ {
		t.Run(fmt.Sprintf("players_%d", n), func(t *testing.T) {
			dist := DefaultDistribution(n)

			assert.GreaterOrEqual(t, dist.Mafia, 1)
			assert.GreaterOrEqual(t, dist.Doctor, 0)
			assert.GreaterOrEqual(t, dist.Detective, 0)
			assert.GreaterOrEqual(t, dist.Civilian, 0)
			assert.Equal(t, n, dist.Mafia+dist.Doctor+dist.Detective+dist.Civilian)
		})
	}
}

func TestDefaultDistributionIsNonDecreasing(t *testing.T) {
	prev := DefaultDistribution(5)
	for n := 6; n <= 30; n++ {
		dist := DefaultDistribution(n)
		assert.GreaterOrEqual(t, dist.Mafia, prev.Mafia, "mafia count shrank at n=%d", n)
		assert.GreaterOrEqual(t, dist.Doctor, prev.Doctor, "doctor count shrank at n=%d", n)
		assert.GreaterOrEqual(t, dist.Detective, prev.Detective, "detective count shrank at n=%d", n)
		prev = dist
	}
}

func TestValidDistribution(t *testing.T) {
	tests := []struct {
		name string
		dist model.Distribution
		n    int
		want bool
	}{
		{"default for 8", model.Distribution{Mafia: 2, Doctor: 1, Detective: 1, Civilian: 4}, 8, true},
		{"no mafia", model.Distribution{Mafia: 0, Doctor: 1, Detective: 1}, 8, false},
		{"negative doctor", model.Distribution{Mafia: 1, Doctor: -1, Detective: 1}, 8, false},
		{"more roles than players", model.Distribution{Mafia: 4, Doctor: 3, Detective: 3}, 8, false},
		{"exactly full", model.Distribution{Mafia: 3, Doctor: 3, Detective: 2}, 8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidDistribution(tt.dist, tt.n))
		})
	}
}

func TestAssignRolesIsABijection(t *testing.T) {
	ids := make([]string, 10)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%d", i)
	}
	dist := DefaultDistribution(len(ids))

	assignments := AssignRoles(ids, dist)
	require.Len(t, assignments, len(ids))

	counts := map[model.Role]int{}
	for _, id := range ids {
		role, ok := assignments[id]
		require.True(t, ok, "player %s got no role", id)
		counts[role]++
	}
	assert.Equal(t, dist.Mafia, counts[model.RoleMafia])
	assert.Equal(t, dist.Doctor, counts[model.RoleDoctor])
	assert.Equal(t, dist.Detective, counts[model.RoleDetective])
	assert.Equal(t, dist.Civilian, counts[model.RoleCivilian])
}

func TestAssignRolesVariesBetweenCalls(t *testing.T) {
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%d", i)
	}
	dist := DefaultDistribution(len(ids))

	// With 2 mafia among 12 players, 50 identical shuffles in a row is
	// effectively impossible.
	first := AssignRoles(ids, dist)
	for i := 0; i < 50; i++ {
		next := AssignRoles(ids, dist)
		for id := range first {
			if next[id] != first[id] {
				return
			}
		}
	}
	t.Fatal("50 consecutive assignments were identical")
}
