package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kapu/corrchess-bot/internal/engine"
	"github.com/kapu/corrchess-bot/internal/obslog"
	"github.com/kapu/corrchess-bot/internal/pinggate"
)

// Manager runs session lifecycle and move submission over Redis. Per-session
// writes go through WATCH transactions on the session key, so two commands
// racing on the same session resolve to exactly one winner.
type Manager struct {
	rdb   *redis.Client
	store *Store
	repo  *Repository
	gate  *pinggate.Gate
	ttl   time.Duration
}

func NewManager(redisURL string, sessionTTL time.Duration) (*Manager, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for session manager")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if sessionTTL <= 0 {
		sessionTTL = 30 * 24 * time.Hour
	}
	return &Manager{rdb: rdb, store: NewStore(rdb, sessionTTL), ttl: sessionTTL}, nil
}

func (m *Manager) Close() error {
	if m == nil || m.rdb == nil {
		return nil
	}
	return m.rdb.Close()
}

// AttachRepository wires a database repository for archiving finished games.
func (m *Manager) AttachRepository(r *Repository) {
	if m != nil {
		m.repo = r
	}
}

// Redis returns the underlying client for components sharing the connection.
func (m *Manager) Redis() *redis.Client { return m.rdb }

// CreateSession opens a WAITING session with the creator seated as white and
// a fresh invite token. Repeated calls while a previous invite is still open
// return the existing session instead of minting another token.
func (m *Manager) CreateSession(ctx context.Context, creatorID, creatorName string) (*Session, bool, error) {
	if m == nil || m.rdb == nil {
		return nil, false, fmt.Errorf("session manager not initialized")
	}
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return nil, false, fmt.Errorf("invalid creator")
	}

	if existing, err := m.openInviteByCreator(ctx, creatorID); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	sess := &Session{
		ID:        uuid.NewString(),
		FEN:       engine.StartingFEN,
		MovesUCI:  []string{},
		MovesSAN:  []string{},
		Turn:      White,
		Status:    StatusWaiting,
		WhiteID:   creatorID,
		WhiteName: strings.TrimSpace(creatorName),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	token, err := m.store.AllocateInvite(ctx, sess.ID)
	if err != nil {
		return nil, false, err
	}
	sess.InviteToken = token

	if err := m.store.Save(ctx, sess); err != nil {
		return nil, false, err
	}
	if err := m.store.IndexParticipant(ctx, sess.ID, creatorID); err != nil {
		return nil, false, err
	}
	obslog.L().Info("session_create",
		zap.String("session_id", sess.ID),
		zap.String("creator_id", creatorID),
		zap.String("invite_token", token),
	)
	return sess, true, nil
}

// openInviteByCreator finds the creator's existing WAITING session, if any.
func (m *Manager) openInviteByCreator(ctx context.Context, creatorID string) (*Session, error) {
	ids, err := m.store.SessionIDsByUser(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		sess, err := m.store.Load(ctx, id)
		if err != nil || sess == nil {
			continue
		}
		if sess.Status == StatusWaiting && sess.WhiteID == creatorID {
			return sess, nil
		}
	}
	return nil, nil
}

// JoinSession consumes an invite token, seating the joiner as black and
// activating the session. The token is single use: of two concurrent joins,
// exactly one succeeds.
func (m *Manager) JoinSession(ctx context.Context, token, userID, userName string) (*Session, error) {
	if m == nil || m.rdb == nil {
		return nil, fmt.Errorf("session manager not initialized")
	}
	token = strings.ToUpper(strings.TrimSpace(token))
	userID = strings.TrimSpace(userID)
	if token == "" || userID == "" {
		return nil, ErrInviteInvalid
	}

	sessionID, err := m.store.ResolveInvite(ctx, token)
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, ErrInviteInvalid
	}

	sessionK := sessionKey(sessionID)
	var joined *Session
	err = m.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := loadTx(ctx, tx, sessionK)
		if err != nil {
			return err
		}
		if cur == nil || cur.Status != StatusWaiting {
			return ErrInviteInvalid
		}
		if cur.WhiteID == userID {
			return fmt.Errorf("%w: cannot join own invite", ErrDuplicatePairing)
		}
		if dup, err := m.activePairExists(ctx, cur.WhiteID, userID); err != nil {
			return err
		} else if dup {
			return fmt.Errorf("%w: game with this opponent already running", ErrDuplicatePairing)
		}

		cur.BlackID = userID
		cur.BlackName = strings.TrimSpace(userName)
		cur.Status = StatusActive
		cur.UpdatedAt = time.Now()

		pipe := tx.TxPipeline()
		raw, _ := json.Marshal(cur)
		pipe.Set(ctx, sessionK, raw, m.ttl)
		pipe.Del(ctx, inviteKey(token))
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		joined = cur
		return nil
	}, sessionK)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			// someone else consumed the token first
			return nil, ErrInviteInvalid
		}
		return nil, err
	}

	if err := m.store.IndexParticipant(ctx, joined.ID, userID); err != nil {
		return nil, err
	}
	// both players point at the freshly started game
	_ = m.store.SetActive(ctx, joined.WhiteID, joined.ID)
	_ = m.store.SetActive(ctx, joined.BlackID, joined.ID)

	obslog.L().Info("session_join",
		zap.String("session_id", joined.ID),
		zap.String("white_id", joined.WhiteID),
		zap.String("black_id", joined.BlackID),
	)
	return joined, nil
}

// activePairExists reports whether white and joiner already share a running
// session.
func (m *Manager) activePairExists(ctx context.Context, whiteID, joinerID string) (bool, error) {
	ids, err := m.store.SessionIDsByUser(ctx, joinerID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		sess, err := m.store.Load(ctx, id)
		if err != nil || sess == nil {
			continue
		}
		if sess.Status == StatusActive && sess.isParticipant(whiteID) {
			return true, nil
		}
	}
	return false, nil
}

// SubmitMove applies a move to the user's active session. The returned string
// is the move rendered in algebraic notation.
func (m *Manager) SubmitMove(ctx context.Context, userID, moveText string) (*Session, string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, "", fmt.Errorf("invalid user")
	}
	sess, err := m.ActiveSession(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if sess == nil {
		return nil, "", ErrSessionNotFound
	}

	sessionK := sessionKey(sess.ID)
	oldLen := len(sess.MovesUCI)
	var san string

	err = m.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := loadTx(ctx, tx, sessionK)
		if err != nil {
			return err
		}
		if cur == nil {
			return ErrSessionNotFound
		}
		switch cur.Status {
		case StatusFinished:
			return ErrSessionFinished
		case StatusWaiting:
			return ErrAwaitingOpponent
		}
		if len(cur.MovesUCI) != oldLen {
			return ErrStalePosition
		}
		if !cur.isParticipant(userID) {
			return ErrNotParticipant
		}
		if cur.colorOf(userID) != cur.Turn {
			return ErrNotYourTurn
		}

		pos, _, err := engine.Replay(cur.MovesUCI)
		if err != nil {
			return fmt.Errorf("session %s: corrupt move log: %w", cur.ID, err)
		}
		mv, err := engine.ParseMove(&pos, moveText)
		if err != nil {
			return err
		}
		san = engine.EncodeSAN(pos, mv)
		next, err := pos.Apply(mv)
		if err != nil {
			return err
		}

		cur.MovesUCI = append(cur.MovesUCI, mv.UCI())
		cur.MovesSAN = append(cur.MovesSAN, san)
		cur.FEN = engine.Encode(next)
		cur.Turn = colorFrom(next.Turn)
		cur.UpdatedAt = time.Now()

		switch next.Status() {
		case engine.StatusCheckmate:
			cur.Status = StatusFinished
			cur.Winner = userID
			cur.Outcome = string(cur.colorOf(userID))
			cur.Method = "checkmate"
		case engine.StatusStalemate:
			cur.Status = StatusFinished
			cur.Outcome = "draw"
			cur.Method = "stalemate"
		case engine.StatusInsufficientMaterial:
			cur.Status = StatusFinished
			cur.Outcome = "draw"
			cur.Method = "insufficient material"
		}
		if cur.Status == StatusActive {
			_, repeated, rerr := engine.Replay(cur.MovesUCI)
			cur.DrawClaimable = (rerr == nil && repeated) || next.FiftyMoveClaimable()
		}

		pipe := tx.TxPipeline()
		raw, _ := json.Marshal(cur)
		pipe.Set(ctx, sessionK, raw, m.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		sess = cur
		return nil
	}, sessionK)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return sess, "", ErrStalePosition
		}
		return sess, "", err
	}

	obslog.L().Info("session_move",
		zap.String("session_id", sess.ID),
		zap.String("user_id", userID),
		zap.String("san", san),
		zap.String("turn", string(sess.Turn)),
		zap.String("status", string(sess.Status)),
		zap.Bool("draw_claimable", sess.DrawClaimable),
	)
	m.recordMove(ctx, sess, userID, san)
	if sess.Status == StatusFinished {
		m.finalize(ctx, sess)
	}
	return sess, san, nil
}

// Resign finishes the user's active session in favor of the opponent.
func (m *Manager) Resign(ctx context.Context, userID string) (*Session, error) {
	return m.finishByUser(ctx, userID, func(cur *Session) error {
		cur.Winner = cur.opponentOf(userID)
		cur.Outcome = string(cur.colorOf(cur.Winner))
		cur.Method = "resignation"
		return nil
	})
}

// ClaimDraw finishes the user's active session as a draw, allowed only once
// threefold repetition or the 50-move rule has flagged the position.
func (m *Manager) ClaimDraw(ctx context.Context, userID string) (*Session, error) {
	return m.finishByUser(ctx, userID, func(cur *Session) error {
		if !cur.DrawClaimable {
			return ErrDrawNotClaimable
		}
		cur.Outcome = "draw"
		cur.Method = "claimed draw"
		return nil
	})
}

// finishByUser runs a terminal transition on the user's active session inside
// a WATCH transaction. mutate fills Winner/Outcome/Method.
func (m *Manager) finishByUser(ctx context.Context, userID string, mutate func(*Session) error) (*Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("invalid user")
	}
	sess, err := m.ActiveSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	sessionK := sessionKey(sess.ID)
	err = m.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := loadTx(ctx, tx, sessionK)
		if err != nil {
			return err
		}
		if cur == nil {
			return ErrSessionNotFound
		}
		if cur.Status != StatusActive {
			return ErrSessionFinished
		}
		if !cur.isParticipant(userID) {
			return ErrNotParticipant
		}
		if err := mutate(cur); err != nil {
			return err
		}
		cur.Status = StatusFinished
		cur.UpdatedAt = time.Now()

		pipe := tx.TxPipeline()
		raw, _ := json.Marshal(cur)
		pipe.Set(ctx, sessionK, raw, m.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		sess = cur
		return nil
	}, sessionK)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return nil, ErrStalePosition
		}
		return nil, err
	}

	obslog.L().Info("session_finish",
		zap.String("session_id", sess.ID),
		zap.String("user_id", userID),
		zap.String("outcome", sess.Outcome),
		zap.String("method", sess.Method),
	)
	m.finalize(ctx, sess)
	return sess, nil
}

// SetActive points the user at one of their unfinished sessions.
func (m *Manager) SetActive(ctx context.Context, userID, sessionID string) (*Session, error) {
	sess, err := m.store.Load(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if !sess.isParticipant(strings.TrimSpace(userID)) {
		return nil, ErrNotParticipant
	}
	if sess.Status == StatusFinished {
		return nil, ErrSessionFinished
	}
	if err := m.store.SetActive(ctx, userID, sess.ID); err != nil {
		return nil, err
	}
	return sess, nil
}

// ActiveSession resolves the user's active session: the explicit pointer when
// it still refers to a running game, otherwise the most recently updated
// ACTIVE session (repairing the pointer as a side effect).
func (m *Manager) ActiveSession(ctx context.Context, userID string) (*Session, error) {
	if id, err := m.store.ActivePointer(ctx, userID); err != nil {
		return nil, err
	} else if id != "" {
		sess, err := m.store.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if sess != nil && sess.Status == StatusActive {
			return sess, nil
		}
	}

	sessions, err := m.ListSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		if sess.Status == StatusActive {
			_ = m.store.SetActive(ctx, userID, sess.ID)
			return sess, nil
		}
	}
	return nil, nil
}

// ListSessions returns the user's sessions, most recently updated first.
func (m *Manager) ListSessions(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := m.store.SessionIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var list []*Session
	for _, id := range ids {
		sess, err := m.store.Load(ctx, id)
		if err != nil || sess == nil {
			continue
		}
		list = append(list, sess)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list, nil
}

// LoadSession returns a session by id, nil when absent.
func (m *Manager) LoadSession(ctx context.Context, id string) (*Session, error) {
	return m.store.Load(ctx, id)
}

// AttachPingGate wires the cooldown gate used by TryPing.
func (m *Manager) AttachPingGate(g *pinggate.Gate) {
	if m != nil {
		m.gate = g
	}
}

// TryPing opens a ping window against the user's active session. Only the
// player waiting on the opponent may ping; inside the cooldown the remaining
// wait is returned with pinggate.ErrCooldown. The receipt must be rolled back
// if delivery to the opponent fails.
func (m *Manager) TryPing(ctx context.Context, userID string) (*Session, *pinggate.Receipt, time.Duration, error) {
	if m == nil || m.gate == nil {
		return nil, nil, 0, fmt.Errorf("ping gate not attached")
	}
	sess, err := m.ActiveSession(ctx, userID)
	if err != nil {
		return nil, nil, 0, err
	}
	if sess == nil {
		return nil, nil, 0, ErrSessionNotFound
	}
	if sess.colorOf(userID) == sess.Turn {
		return sess, nil, 0, ErrPingOwnTurn
	}
	receipt, remaining, err := m.gate.Allow(ctx, sess.ID, userID)
	if err != nil {
		return sess, nil, remaining, err
	}
	return sess, receipt, 0, nil
}

// RollbackPing returns an unconsumed ping window after a failed delivery.
func (m *Manager) RollbackPing(ctx context.Context, r *pinggate.Receipt) error {
	if m == nil || m.gate == nil {
		return nil
	}
	return m.gate.Rollback(ctx, r)
}

// finalize archives a finished session and drops stale active pointers. Both
// are best effort: the Redis record is already terminal.
func (m *Manager) finalize(ctx context.Context, sess *Session) {
	for _, uid := range []string{sess.WhiteID, sess.BlackID} {
		if uid == "" {
			continue
		}
		if id, err := m.store.ActivePointer(ctx, uid); err == nil && id == sess.ID {
			_ = m.store.ClearActive(ctx, uid)
		}
	}
	if m.repo == nil {
		return
	}
	if err := m.repo.SaveResult(ctx, sess); err != nil {
		obslog.L().Error("session_archive_error",
			zap.String("session_id", sess.ID),
			zap.String("outcome", sess.Outcome),
			zap.Error(err),
		)
		return
	}
	obslog.L().Info("session_archive",
		zap.String("session_id", sess.ID),
		zap.String("outcome", sess.Outcome),
		zap.String("method", sess.Method),
	)
}

// recordMove appends to the durable move log when a repository is attached.
func (m *Manager) recordMove(ctx context.Context, sess *Session, userID, san string) {
	if m.repo == nil {
		return
	}
	ply := len(sess.MovesUCI)
	uci := ""
	if ply > 0 {
		uci = sess.MovesUCI[ply-1]
	}
	if err := m.repo.AppendMove(ctx, sess.ID, ply, userID, uci, san, sess.FEN); err != nil {
		obslog.L().Error("move_log_error",
			zap.String("session_id", sess.ID),
			zap.Int("ply", ply),
			zap.Error(err),
		)
	}
}

func loadTx(ctx context.Context, tx *redis.Tx, key string) (*Session, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func colorFrom(c engine.Color) Color {
	if c == engine.White {
		return White
	}
	return Black
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
