package match

import (
	"errors"
	"time"
)

// Color identifies a side in a session.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusActive   Status = "ACTIVE"
	StatusFinished Status = "FINISHED"
)

// Session is the persisted state of a correspondence game. The creator
// always takes white; the invited player takes black on join.
type Session struct {
	ID          string    `json:"id"`
	InviteToken string    `json:"invite_token"`
	FEN         string    `json:"fen"`
	MovesUCI    []string  `json:"moves_uci"`
	MovesSAN    []string  `json:"moves_san"`
	Turn        Color     `json:"turn"`
	Status      Status    `json:"status"`
	WhiteID     string    `json:"white_id"`
	WhiteName   string    `json:"white_name"`
	BlackID     string    `json:"black_id"`
	BlackName   string    `json:"black_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Winner      string    `json:"winner,omitempty"`
	Outcome     string    `json:"outcome,omitempty"`
	Method      string    `json:"method,omitempty"`

	// DrawClaimable is set when threefold repetition or the 50-move rule
	// is reached; either player may then finish the game as a draw.
	DrawClaimable bool `json:"draw_claimable,omitempty"`
}

// Sentinel errors for session flow control. Move legality errors
// (engine.ErrIllegalMove, engine.ErrInvalidNotation) pass through from the
// engine package.
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrInviteInvalid      = errors.New("invite token invalid")
	ErrDuplicatePairing   = errors.New("duplicate pairing")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrNotParticipant     = errors.New("not a participant")
	ErrSessionFinished    = errors.New("session already finished")
	ErrStalePosition      = errors.New("session changed concurrently")
	ErrDrawNotClaimable   = errors.New("draw not claimable")
	ErrAwaitingOpponent   = errors.New("awaiting opponent")
	ErrPingOwnTurn        = errors.New("cannot ping on own turn")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

func (s *Session) isParticipant(userID string) bool {
	return userID != "" && (s.WhiteID == userID || s.BlackID == userID)
}

func (s *Session) colorOf(userID string) Color {
	if s.WhiteID == userID {
		return White
	}
	return Black
}

func (s *Session) opponentOf(userID string) string {
	if s.WhiteID == userID {
		return s.BlackID
	}
	if s.BlackID == userID {
		return s.WhiteID
	}
	return ""
}

func (s *Session) nameOf(userID string) string {
	switch userID {
	case s.WhiteID:
		return s.WhiteName
	case s.BlackID:
		return s.BlackName
	}
	return userID
}
