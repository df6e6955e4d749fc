package match

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
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
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a finished session into the archive table.
func (r *Repository) SaveResult(ctx context.Context, sess *Session) error {
	if r == nil || r.db == nil || sess == nil {
		return nil
	}

	pgnResult := mapResultToPGN(sess.Outcome)
	pgn := buildPGN(sess, pgnResult)

	movesUCIRaw, _ := json.Marshal(sess.MovesUCI)
	movesSANRaw, _ := json.Marshal(sess.MovesSAN)
	duration := sess.UpdatedAt.Sub(sess.CreatedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO cc_games (
        session_id, white_id, white_name, black_id, black_name,
        result, result_method, moves_uci, moves_san, pgn, final_fen,
        started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
      ) ON CONFLICT (session_id) DO UPDATE SET
        white_id=EXCLUDED.white_id,
        white_name=EXCLUDED.white_name,
        black_id=EXCLUDED.black_id,
        black_name=EXCLUDED.black_name,
        result=EXCLUDED.result,
        result_method=EXCLUDED.result_method,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        final_fen=EXCLUDED.final_fen,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		sess.ID,
		sess.WhiteID, sess.WhiteName,
		sess.BlackID, sess.BlackName,
		strings.TrimSpace(sess.Outcome), strings.TrimSpace(sess.Method),
		string(movesUCIRaw), string(movesSANRaw), pgn, sess.FEN,
		sess.CreatedAt, sess.UpdatedAt, duration,
	)
	return err
}

// AppendMove writes one row of the durable move log.
func (r *Repository) AppendMove(ctx context.Context, sessionID string, ply int, userID, uci, san, fen string) error {
	if r == nil || r.db == nil {
		return nil
	}
	q := `INSERT INTO cc_moves (session_id, ply, user_id, move_uci, move_san, fen_after, played_at)
          VALUES ($1,$2,$3,$4,$5,$6,$7)
          ON CONFLICT (session_id, ply) DO NOTHING`
	_, err := r.db.ExecContext(ctx, q, sessionID, ply, userID, uci, san, fen, time.Now())
	return err
}

// MoveRecord is one archived half-move.
type MoveRecord struct {
	Ply      int
	UserID   string
	UCI      string
	SAN      string
	FENAfter string
	PlayedAt time.Time
}

// MoveLog returns a session's archived moves in ply order.
func (r *Repository) MoveLog(ctx context.Context, sessionID string) ([]MoveRecord, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	q := `SELECT ply, user_id, move_uci, move_san, fen_after, played_at
          FROM cc_moves WHERE session_id = $1 ORDER BY ply`
	rows, err := r.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var log []MoveRecord
	for rows.Next() {
		var rec MoveRecord
		if err := rows.Scan(&rec.Ply, &rec.UserID, &rec.UCI, &rec.SAN, &rec.FENAfter, &rec.PlayedAt); err != nil {
			return nil, err
		}
		log = append(log, rec)
	}
	return log, rows.Err()
}

func mapResultToPGN(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

func buildPGN(sess *Session, pgnResult string) string {
	if sess == nil {
		return ""
	}
	var b strings.Builder
	date := sess.UpdatedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"Correspondence\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(sess.WhiteName)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(sess.BlackName)))
	if strings.TrimSpace(sess.Method) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(sess.Method))))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	for i := 0; i < len(sess.MovesSAN); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(sess.MovesSAN[i])))
		if i+1 < len(sess.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(sess.MovesSAN[i+1]))
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
