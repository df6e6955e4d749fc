package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIllegalMove is returned when a well-formed move violates chess rules
	// in the current position.
	ErrIllegalMove = errors.New("illegal move")
	// ErrInvalidNotation is returned for move text that cannot be parsed at all.
	ErrInvalidNotation = errors.New("invalid move notation")
)

// Color identifies a side.
type Color int8

const (
	White Color = iota
	Black
)

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// PieceType enumerates the six piece kinds. The zero value means an empty square.
type PieceType int8

const (
	NoPiece PieceType = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var pieceLetters = map[PieceType]byte{
	Pawn:   'p',
	Knight: 'n',
	Bishop: 'b',
	Rook:   'r',
	Queen:  'q',
	King:   'k',
}

func pieceTypeFromLetter(b byte) (PieceType, bool) {
	switch b {
	case 'p':
		return Pawn, true
	case 'n':
		return Knight, true
	case 'b':
		return Bishop, true
	case 'r':
		return Rook, true
	case 'q':
		return Queen, true
	case 'k':
		return King, true
	}
	return NoPiece, false
}

// Piece is an occupied square's contents. The zero Piece is an empty square.
type Piece struct {
	Type  PieceType
	Color Color
}

func (p Piece) IsEmpty() bool { return p.Type == NoPiece }

func (p Piece) fenByte() byte {
	b := pieceLetters[p.Type]
	if p.Color == White {
		return b - 'a' + 'A'
	}
	return b
}

// Square indexes the board 0..63, a1=0, b1=1, ..., h8=63.
type Square int8

// NoSquare marks "no square" (e.g. an absent en-passant target).
const NoSquare Square = -1

func SquareOf(file, rank int) Square { return Square(rank*8 + file) }

func (s Square) File() int { return int(s) % 8 }
func (s Square) Rank() int { return int(s) / 8 }

func (s Square) valid() bool { return s >= 0 && s < 64 }

func (s Square) String() string {
	if !s.valid() {
		return "-"
	}
	return fmt.Sprintf("%c%d", 'a'+s.File(), s.Rank()+1)
}

// ParseSquare parses algebraic coordinates like "e4".
func ParseSquare(text string) (Square, error) {
	text = strings.TrimSpace(strings.ToLower(text))
	if len(text) != 2 || text[0] < 'a' || text[0] > 'h' || text[1] < '1' || text[1] > '8' {
		return NoSquare, fmt.Errorf("%w: bad square %q", ErrInvalidNotation, text)
	}
	return SquareOf(int(text[0]-'a'), int(text[1]-'1')), nil
}

// Move is a pure description: origin, destination and optional promotion.
// Legality is a predicate of a Position, not a property of the Move.
type Move struct {
	From      Square
	To        Square
	Promotion PieceType
}

// UCI renders the move in coordinate notation, e.g. "e2e4" or "e7e8q".
func (m Move) UCI() string {
	s := m.From.String() + m.To.String()
	if m.Promotion != NoPiece {
		s += string(pieceLetters[m.Promotion])
	}
	return s
}

// CastleRights is a bitmask of the four castling permissions.
type CastleRights uint8

const (
	CastleWhiteKingside CastleRights = 1 << iota
	CastleWhiteQueenside
	CastleBlackKingside
	CastleBlackQueenside
	castleAll = CastleWhiteKingside | CastleWhiteQueenside | CastleBlackKingside | CastleBlackQueenside
)

func (r CastleRights) Has(b CastleRights) bool { return r&b != 0 }

// Status is the terminal evaluation of a position for the side to move.
type Status int8

const (
	StatusNone Status = iota
	StatusCheck
	StatusCheckmate
	StatusStalemate
	StatusInsufficientMaterial
)

func (s Status) String() string {
	switch s {
	case StatusCheck:
		return "check"
	case StatusCheckmate:
		return "checkmate"
	case StatusStalemate:
		return "stalemate"
	case StatusInsufficientMaterial:
		return "insufficient material"
	default:
		return "none"
	}
}

// Terminal reports whether the status ends the game on its own.
func (s Status) Terminal() bool {
	return s == StatusCheckmate || s == StatusStalemate || s == StatusInsufficientMaterial
}
