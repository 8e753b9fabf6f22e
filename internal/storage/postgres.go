package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/chess-arena/internal/coordinator"
)

// ResultRepository archives terminal games to Postgres, one row per session,
// with the move log and a rendered PGN.
type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(databaseURL string) (*ResultRepository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &ResultRepository{db: db}, nil
}

func (r *ResultRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a terminal game. Safe to call more than once per session.
func (r *ResultRepository) SaveResult(ctx context.Context, snap *coordinator.Snapshot) error {
	if r == nil || r.db == nil || snap == nil {
		return nil
	}

	pgnResult := mapResultToPGN(snap.Result)
	pgn := buildPGN(snap, pgnResult)
	movesRaw, _ := json.Marshal(snap.Moves)

	whiteID, whiteName := slotFields(snap.White)
	blackID, blackName := slotFields(snap.Black)

	duration := snap.UpdatedAt.Sub(snap.CreatedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO games (
	    session_id, white_id, white_name, black_id, black_name,
	    result, result_method, moves, pgn,
	    started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8::jsonb,$9,$10,$11,$12
	  ) ON CONFLICT (session_id) DO UPDATE SET
	    white_id=EXCLUDED.white_id,
	    white_name=EXCLUDED.white_name,
	    black_id=EXCLUDED.black_id,
	    black_name=EXCLUDED.black_name,
	    result=EXCLUDED.result,
	    result_method=EXCLUDED.result_method,
	    moves=EXCLUDED.moves,
	    pgn=EXCLUDED.pgn,
	    started_at=EXCLUDED.started_at,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		snap.SessionID,
		whiteID, whiteName,
		blackID, blackName,
		string(snap.Result), snap.EndMethod, string(movesRaw), pgn,
		snap.CreatedAt, snap.UpdatedAt, duration,
	)
	return err
}

func slotFields(s *coordinator.SlotSnapshot) (id, name string) {
	if s == nil {
		return "", ""
	}
	return s.Identity, s.DisplayName
}

func mapResultToPGN(result coordinator.Result) string {
	switch result {
	case coordinator.ResultWhiteWins:
		return "1-0"
	case coordinator.ResultBlackWins:
		return "0-1"
	case coordinator.ResultDraw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

func buildPGN(snap *coordinator.Snapshot, pgnResult string) string {
	if snap == nil {
		return ""
	}
	var b strings.Builder
	date := snap.UpdatedAt
	if date.IsZero() {
		date = time.Now()
	}
	_, whiteName := slotFields(snap.White)
	_, blackName := slotFields(snap.Black)

	b.WriteString("[Event \"Arena\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(whiteName)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(blackName)))
	if strings.TrimSpace(snap.EndMethod) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(snap.EndMethod)))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	for i := 0; i < len(snap.Moves); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(snap.Moves[i].SAN)))
		if i+1 < len(snap.Moves) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(snap.Moves[i+1].SAN))
		}
		b.WriteString(" ")
	}
	if pgnResult != "" {
		b.WriteString(pgnResult)
	}
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
