package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// StartingFEN is the interchange form of the initial position.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Encode serializes a position to the standard six-field
// board/turn/castling/en-passant/halfmove/fullmove string.
func Encode(p Position) string {
	var b strings.Builder
	for r := 7; r >= 0; r-- {
		empty := 0
		for f := 0; f < 8; f++ {
			pc := p.PieceAt(SquareOf(f, r))
			if pc.IsEmpty() {
				empty++
				continue
			}
			if empty > 0 {
				b.WriteByte(byte('0' + empty))
				empty = 0
			}
			b.WriteByte(pc.fenByte())
		}
		if empty > 0 {
			b.WriteByte(byte('0' + empty))
		}
		if r > 0 {
			b.WriteByte('/')
		}
	}

	b.WriteByte(' ')
	if p.Turn == White {
		b.WriteByte('w')
	} else {
		b.WriteByte('b')
	}

	b.WriteByte(' ')
	if p.Castling == 0 {
		b.WriteByte('-')
	} else {
		if p.Castling.Has(CastleWhiteKingside) {
			b.WriteByte('K')
		}
		if p.Castling.Has(CastleWhiteQueenside) {
			b.WriteByte('Q')
		}
		if p.Castling.Has(CastleBlackKingside) {
			b.WriteByte('k')
		}
		if p.Castling.Has(CastleBlackQueenside) {
			b.WriteByte('q')
		}
	}

	b.WriteByte(' ')
	b.WriteString(p.EnPassant.String())

	fmt.Fprintf(&b, " %d %d", p.HalfMoves, p.FullMoves)
	return b.String()
}

// Decode parses the six-field position string produced by Encode.
func Decode(fen string) (Position, error) {
	fields := strings.Fields(strings.TrimSpace(fen))
	if len(fields) != 6 {
		return Position{}, fmt.Errorf("fen: expected 6 fields, got %d", len(fields))
	}

	p := Position{EnPassant: NoSquare}

	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return Position{}, fmt.Errorf("fen: expected 8 ranks, got %d", len(ranks))
	}
	for i, row := range ranks {
		r := 7 - i
		f := 0
		for j := 0; j < len(row); j++ {
			c := row[j]
			if c >= '1' && c <= '8' {
				f += int(c - '0')
				continue
			}
			if f > 7 {
				return Position{}, fmt.Errorf("fen: rank %d overflows", r+1)
			}
			lower := c | 0x20
			pt, ok := pieceTypeFromLetter(lower)
			if !ok {
				return Position{}, fmt.Errorf("fen: bad piece %q", c)
			}
			color := Black
			if c >= 'A' && c <= 'Z' {
				color = White
			}
			p.board[SquareOf(f, r)] = Piece{Type: pt, Color: color}
			f++
		}
		if f != 8 {
			return Position{}, fmt.Errorf("fen: rank %d has %d files", r+1, f)
		}
	}

	switch fields[1] {
	case "w":
		p.Turn = White
	case "b":
		p.Turn = Black
	default:
		return Position{}, fmt.Errorf("fen: bad side to move %q", fields[1])
	}

	if fields[2] != "-" {
		for i := 0; i < len(fields[2]); i++ {
			switch fields[2][i] {
			case 'K':
				p.Castling |= CastleWhiteKingside
			case 'Q':
				p.Castling |= CastleWhiteQueenside
			case 'k':
				p.Castling |= CastleBlackKingside
			case 'q':
				p.Castling |= CastleBlackQueenside
			default:
				return Position{}, fmt.Errorf("fen: bad castling %q", fields[2])
			}
		}
	}

	if fields[3] != "-" {
		sq, err := ParseSquare(fields[3])
		if err != nil {
			return Position{}, fmt.Errorf("fen: bad en-passant square %q", fields[3])
		}
		p.EnPassant = sq
	}

	half, err := strconv.Atoi(fields[4])
	if err != nil || half < 0 {
		return Position{}, fmt.Errorf("fen: bad half-move clock %q", fields[4])
	}
	p.HalfMoves = half

	full, err := strconv.Atoi(fields[5])
	if err != nil || full < 1 {
		return Position{}, fmt.Errorf("fen: bad full-move number %q", fields[5])
	}
	p.FullMoves = full

	return p, nil
}

// Key identifies a position for repetition detection: placement, turn,
// castling rights and en-passant target (counters excluded).
func Key(p Position) string {
	fen := Encode(p)
	fields := strings.Fields(fen)
	return strings.Join(fields[:4], " ")
}

// Replay reconstructs a position by applying UCI moves from the start
// position and reports whether the final position is claimable as a draw by
// threefold repetition.
func Replay(movesUCI []string) (Position, bool, error) {
	p := StartingPosition()
	seen := map[string]int{Key(p): 1}
	for i, raw := range movesUCI {
		m, err := parseCoordinate(raw)
		if err != nil {
			return Position{}, false, fmt.Errorf("replay move %d %q: %w", i+1, raw, err)
		}
		p, err = p.Apply(m)
		if err != nil {
			return Position{}, false, fmt.Errorf("replay move %d %q: %w", i+1, raw, err)
		}
		seen[Key(p)]++
	}
	return p, seen[Key(p)] >= 3, nil
}
