package database

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"mafianight/internal/model"
)

// Store keeps a record of finished games for per-room leaderboards.
// Live room state never touches the database; losing the file loses
// only history.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewStore(dbPath string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	schema := `CREATE TABLE IF NOT EXISTS game_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_code TEXT,
		player_name TEXT,
		role TEXT,
		won INTEGER,
		rounds INTEGER,
		finished_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// RecordGame writes one row per player for a finished game. Failures
// are logged and swallowed; history never blocks game flow.
func (s *Store) RecordGame(roomCode string, winners model.Team, rounds int, players map[string]*model.Player) {
	tx, err := s.db.Begin()
	if err != nil {
		s.log.Warn().Err(err).Str("room", roomCode).Msg("record game: begin failed")
		return
	}
	stmt, err := tx.Prepare("INSERT INTO game_history(room_code, player_name, role, won, rounds) VALUES(?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		s.log.Warn().Err(err).Str("room", roomCode).Msg("record game: prepare failed")
		return
	}
	defer stmt.Close()

	for _, p := range players {
		won := 0
		if playerTeam(p.Role) == winners {
			won = 1
		}
		if _, err := stmt.Exec(roomCode, p.Name, string(p.Role), won, rounds); err != nil {
			s.log.Warn().Err(err).Str("room", roomCode).Str("player", p.Name).Msg("record game: insert failed")
		}
	}
	if err := tx.Commit(); err != nil {
		s.log.Warn().Err(err).Str("room", roomCode).Msg("record game: commit failed")
	}
}

// RoomStats returns the historical leaderboard for a room code, best
// win ratio first.
func (s *Store) RoomStats(roomCode string) []model.PlayerStat {
	stats := make([]model.PlayerStat, 0)

	rows, err := s.db.Query(`SELECT player_name, COUNT(*) AS games, SUM(won) AS wins
		FROM game_history WHERE room_code = ?
		GROUP BY player_name ORDER BY wins DESC, games ASC`, roomCode)
	if err != nil {
		s.log.Warn().Err(err).Str("room", roomCode).Msg("room stats query failed")
		return stats
	}
	defer rows.Close()

	for rows.Next() {
		var st model.PlayerStat
		if err := rows.Scan(&st.Name, &st.Games, &st.Wins); err != nil {
			s.log.Warn().Err(err).Str("room", roomCode).Msg("room stats scan failed")
			continue
		}
		stats = append(stats, st)
	}
	return stats
}

func playerTeam(role model.Role) model.Team {
	if role == model.RoleMafia {
		return model.TeamMafia
	}
	return model.TeamTown
}
