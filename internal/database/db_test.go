package database

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mafianight/internal/model"
)

func memoryStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func finishedGame() map[string]*model.Player {
	return map[string]*model.Player{
		"a": {Name: "alice", Role: model.RoleMafia},
		"b": {Name: "bob", Role: model.RoleDoctor},
		"c": {Name: "carol", Role: model.RoleCivilian},
	}
}

func TestRecordGameMarksWinnersByTeam(t *testing.T) {
	store := memoryStore(t)
	store.RecordGame("ROOM01", model.TeamMafia, 3, finishedGame())

	stats := store.RoomStats("ROOM01")
	require.Len(t, stats, 3)

	byName := map[string]model.PlayerStat{}
	for _, st := range stats {
		byName[st.Name] = st
	}
	assert.Equal(t, 1, byName["alice"].Wins, "mafia won")
	assert.Equal(t, 0, byName["bob"].Wins)
	assert.Equal(t, 0, byName["carol"].Wins)
}

func TestRoomStatsAggregateAcrossGames(t *testing.T) {
	store := memoryStore(t)
	store.RecordGame("ROOM01", model.TeamTown, 2, finishedGame())
	store.RecordGame("ROOM01", model.TeamMafia, 4, finishedGame())
	store.RecordGame("OTHER1", model.TeamTown, 1, finishedGame())

	stats := store.RoomStats("ROOM01")
	require.Len(t, stats, 3, "stats stay scoped to the room code")
	for _, st := range stats {
		assert.Equal(t, 2, st.Games)
		assert.Equal(t, 1, st.Wins, "everyone won exactly one of the two games")
	}
}

func TestRoomStatsEmptyForUnknownRoom(t *testing.T) {
	store := memoryStore(t)
	assert.Empty(t, store.RoomStats("NOSUCH"))
}

func TestRecordGameLogsFailedInserts(t *testing.T) {
	var buf bytes.Buffer
	store, err := NewStore(":memory:", zerolog.New(&buf))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	// Only one row per room code fits; the other two inserts fail.
	_, err = store.db.Exec("CREATE UNIQUE INDEX one_per_room ON game_history(room_code)")
	require.NoError(t, err)

	store.RecordGame("ROOM01", model.TeamTown, 1, finishedGame())
	assert.Contains(t, buf.String(), "insert failed")
	assert.Len(t, store.RoomStats("ROOM01"), 1)
}
