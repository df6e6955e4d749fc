package engine

import "fmt"

// Position is a full game state: placement, side to move, castling rights,
// en-passant target, half-move clock and full-move number. It is a value
// type; Apply returns a new Position and never mutates the receiver.
type Position struct {
	board     [64]Piece
	Turn      Color
	Castling  CastleRights
	EnPassant Square
	HalfMoves int
	FullMoves int
}

var backRank = [8]PieceType{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// StartingPosition returns the standard initial position.
func StartingPosition() Position {
	p := Position{Turn: White, Castling: castleAll, EnPassant: NoSquare, FullMoves: 1}
	for f := 0; f < 8; f++ {
		p.board[SquareOf(f, 0)] = Piece{Type: backRank[f], Color: White}
		p.board[SquareOf(f, 1)] = Piece{Type: Pawn, Color: White}
		p.board[SquareOf(f, 6)] = Piece{Type: Pawn, Color: Black}
		p.board[SquareOf(f, 7)] = Piece{Type: backRank[f], Color: Black}
	}
	return p
}

// PieceAt returns the piece on sq, or the empty Piece.
func (p *Position) PieceAt(sq Square) Piece {
	if !sq.valid() {
		return Piece{}
	}
	return p.board[sq]
}

func (p *Position) kingSquare(c Color) Square {
	for sq := Square(0); sq < 64; sq++ {
		pc := p.board[sq]
		if pc.Type == King && pc.Color == c {
			return sq
		}
	}
	return NoSquare
}

// InCheck reports whether c's king is attacked by the opponent.
func (p *Position) InCheck(c Color) bool {
	ksq := p.kingSquare(c)
	if ksq == NoSquare {
		return false
	}
	return p.attacked(ksq, c.Other())
}

// attacked reports whether any piece of color by attacks target.
func (p *Position) attacked(target Square, by Color) bool {
	for sq := Square(0); sq < 64; sq++ {
		pc := p.board[sq]
		if pc.IsEmpty() || pc.Color != by {
			continue
		}
		if p.pieceAttacks(sq, target, pc) {
			return true
		}
	}
	return false
}

// pieceAttacks is pure geometry plus occupancy: whether pc on from attacks to.
// Pawn forward pushes are not attacks.
func (p *Position) pieceAttacks(from, to Square, pc Piece) bool {
	df := to.File() - from.File()
	dr := to.Rank() - from.Rank()
	switch pc.Type {
	case Pawn:
		dir := 1
		if pc.Color == Black {
			dir = -1
		}
		return dr == dir && (df == 1 || df == -1)
	case Knight:
		return (abs(df) == 2 && abs(dr) == 1) || (abs(df) == 1 && abs(dr) == 2)
	case Bishop:
		return abs(df) == abs(dr) && df != 0 && p.pathClear(from, to)
	case Rook:
		return (df == 0) != (dr == 0) && p.pathClear(from, to)
	case Queen:
		if df == 0 && dr == 0 {
			return false
		}
		if abs(df) == abs(dr) || df == 0 || dr == 0 {
			return p.pathClear(from, to)
		}
		return false
	case King:
		return abs(df) <= 1 && abs(dr) <= 1 && (df != 0 || dr != 0)
	}
	return false
}

// pathClear walks the straight ray between from and to exclusive and reports
// whether every intervening square is empty.
func (p *Position) pathClear(from, to Square) bool {
	fs, rs := sign(to.File()-from.File()), sign(to.Rank()-from.Rank())
	f, r := from.File()+fs, from.Rank()+rs
	for f != to.File() || r != to.Rank() {
		if !p.board[SquareOf(f, r)].IsEmpty() {
			return false
		}
		f += fs
		r += rs
	}
	return true
}

// pseudoLegal validates piece movement rules without king-safety.
func (p *Position) pseudoLegal(m Move) bool {
	if !m.From.valid() || !m.To.valid() || m.From == m.To {
		return false
	}
	pc := p.board[m.From]
	if pc.IsEmpty() || pc.Color != p.Turn {
		return false
	}
	dst := p.board[m.To]
	if !dst.IsEmpty() && dst.Color == pc.Color {
		return false
	}
	if pc.Type != Pawn && m.Promotion != NoPiece {
		return false
	}

	df := m.To.File() - m.From.File()
	dr := m.To.Rank() - m.From.Rank()

	switch pc.Type {
	case Pawn:
		return p.pawnPseudoLegal(m, pc, df, dr)
	case Knight:
		return (abs(df) == 2 && abs(dr) == 1) || (abs(df) == 1 && abs(dr) == 2)
	case Bishop:
		return abs(df) == abs(dr) && p.pathClear(m.From, m.To)
	case Rook:
		return (df == 0) != (dr == 0) && p.pathClear(m.From, m.To)
	case Queen:
		return (abs(df) == abs(dr) || df == 0 || dr == 0) && p.pathClear(m.From, m.To)
	case King:
		if abs(df) <= 1 && abs(dr) <= 1 {
			return true
		}
		return p.castlePseudoLegal(m, df, dr)
	}
	return false
}

func (p *Position) pawnPseudoLegal(m Move, pc Piece, df, dr int) bool {
	dir, startRank, lastRank := 1, 1, 7
	if pc.Color == Black {
		dir, startRank, lastRank = -1, 6, 0
	}
	// Promotion piece is mandatory on the last rank and forbidden elsewhere.
	if m.To.Rank() == lastRank {
		switch m.Promotion {
		case Knight, Bishop, Rook, Queen:
		default:
			return false
		}
	} else if m.Promotion != NoPiece {
		return false
	}

	if df == 0 {
		if !p.board[m.To].IsEmpty() {
			return false
		}
		if dr == dir {
			return true
		}
		if dr == 2*dir && m.From.Rank() == startRank {
			return p.board[SquareOf(m.From.File(), m.From.Rank()+dir)].IsEmpty()
		}
		return false
	}
	if abs(df) == 1 && dr == dir {
		if m.To == p.EnPassant {
			return true
		}
		dst := p.board[m.To]
		return !dst.IsEmpty() && dst.Color != pc.Color
	}
	return false
}

// castlePseudoLegal validates a two-square king move as castling: rights
// intact, path empty, king not in check and not crossing an attacked square.
func (p *Position) castlePseudoLegal(m Move, df, dr int) bool {
	if dr != 0 || abs(df) != 2 {
		return false
	}
	rank := 0
	kingside := CastleWhiteKingside
	queenside := CastleWhiteQueenside
	if p.Turn == Black {
		rank = 7
		kingside = CastleBlackKingside
		queenside = CastleBlackQueenside
	}
	if m.From != SquareOf(4, rank) {
		return false
	}
	if p.InCheck(p.Turn) {
		return false
	}
	opp := p.Turn.Other()
	if df == 2 { // kingside
		if !p.Castling.Has(kingside) {
			return false
		}
		rook := p.board[SquareOf(7, rank)]
		if rook.Type != Rook || rook.Color != p.Turn {
			return false
		}
		for f := 5; f <= 6; f++ {
			if !p.board[SquareOf(f, rank)].IsEmpty() {
				return false
			}
		}
		return !p.attacked(SquareOf(5, rank), opp) && !p.attacked(SquareOf(6, rank), opp)
	}
	// queenside
	if !p.Castling.Has(queenside) {
		return false
	}
	rook := p.board[SquareOf(0, rank)]
	if rook.Type != Rook || rook.Color != p.Turn {
		return false
	}
	for f := 1; f <= 3; f++ {
		if !p.board[SquareOf(f, rank)].IsEmpty() {
			return false
		}
	}
	return !p.attacked(SquareOf(3, rank), opp) && !p.attacked(SquareOf(2, rank), opp)
}

// IsLegal reports whether m is fully legal: movement rules hold and the
// moving side's own king is not left in check afterwards.
func (p *Position) IsLegal(m Move) bool {
	if !p.pseudoLegal(m) {
		return false
	}
	next := p.applyUnchecked(m)
	return !next.InCheck(p.Turn)
}

// Apply validates m and returns the resulting position. Callers that did not
// pre-check legality must treat the error as the rejection.
func (p Position) Apply(m Move) (Position, error) {
	if !p.IsLegal(m) {
		return Position{}, fmt.Errorf("%w: %s", ErrIllegalMove, m.UCI())
	}
	next := p.applyUnchecked(m)

	pc := p.board[m.From]
	isCapture := !p.board[m.To].IsEmpty() || (pc.Type == Pawn && m.To == p.EnPassant)
	if pc.Type == Pawn || isCapture {
		next.HalfMoves = 0
	} else {
		next.HalfMoves = p.HalfMoves + 1
	}
	next.FullMoves = p.FullMoves
	if p.Turn == Black {
		next.FullMoves++
	}
	return next, nil
}

// applyUnchecked performs placement/rights/en-passant updates assuming m is
// at least pseudo-legal. Counters are handled by Apply.
func (p Position) applyUnchecked(m Move) Position {
	next := p
	pc := next.board[m.From]

	// en-passant capture removes the pawn behind the target square
	if pc.Type == Pawn && m.To == p.EnPassant {
		next.board[SquareOf(m.To.File(), m.From.Rank())] = Piece{}
	}

	next.board[m.To] = pc
	next.board[m.From] = Piece{}

	// castling relocates the rook
	if pc.Type == King && abs(m.To.File()-m.From.File()) == 2 {
		rank := m.From.Rank()
		if m.To.File() == 6 {
			next.board[SquareOf(5, rank)] = next.board[SquareOf(7, rank)]
			next.board[SquareOf(7, rank)] = Piece{}
		} else {
			next.board[SquareOf(3, rank)] = next.board[SquareOf(0, rank)]
			next.board[SquareOf(0, rank)] = Piece{}
		}
	}

	if m.Promotion != NoPiece {
		next.board[m.To] = Piece{Type: m.Promotion, Color: pc.Color}
	}

	// rights revocation: king or rook moved, or a rook was captured on its corner
	switch {
	case pc.Type == King && pc.Color == White:
		next.Castling &^= CastleWhiteKingside | CastleWhiteQueenside
	case pc.Type == King && pc.Color == Black:
		next.Castling &^= CastleBlackKingside | CastleBlackQueenside
	}
	for _, sq := range [2]Square{m.From, m.To} {
		switch sq {
		case SquareOf(0, 0):
			next.Castling &^= CastleWhiteQueenside
		case SquareOf(7, 0):
			next.Castling &^= CastleWhiteKingside
		case SquareOf(0, 7):
			next.Castling &^= CastleBlackQueenside
		case SquareOf(7, 7):
			next.Castling &^= CastleBlackKingside
		}
	}

	next.EnPassant = NoSquare
	if pc.Type == Pawn && abs(m.To.Rank()-m.From.Rank()) == 2 {
		next.EnPassant = SquareOf(m.From.File(), (m.From.Rank()+m.To.Rank())/2)
	}

	next.Turn = p.Turn.Other()
	return next
}

// LegalMoves enumerates every legal move for the side to move.
func (p *Position) LegalMoves() []Move {
	var moves []Move
	for from := Square(0); from < 64; from++ {
		pc := p.board[from]
		if pc.IsEmpty() || pc.Color != p.Turn {
			continue
		}
		lastRank := 7
		if p.Turn == Black {
			lastRank = 0
		}
		for to := Square(0); to < 64; to++ {
			if pc.Type == Pawn && to.Rank() == lastRank {
				for _, promo := range [4]PieceType{Queen, Rook, Bishop, Knight} {
					m := Move{From: from, To: to, Promotion: promo}
					if p.IsLegal(m) {
						moves = append(moves, m)
					}
				}
				continue
			}
			m := Move{From: from, To: to}
			if p.IsLegal(m) {
				moves = append(moves, m)
			}
		}
	}
	return moves
}

// Status evaluates the position for the side to move: checkmate and
// stalemate when no legal move exists, otherwise insufficient-material draw
// or plain check.
func (p *Position) Status() Status {
	if len(p.LegalMoves()) == 0 {
		if p.InCheck(p.Turn) {
			return StatusCheckmate
		}
		return StatusStalemate
	}
	if p.insufficientMaterial() {
		return StatusInsufficientMaterial
	}
	if p.InCheck(p.Turn) {
		return StatusCheck
	}
	return StatusNone
}

// insufficientMaterial: bare kings, or king + a single minor piece vs king.
func (p *Position) insufficientMaterial() bool {
	minors := 0
	for sq := Square(0); sq < 64; sq++ {
		switch p.board[sq].Type {
		case NoPiece, King:
		case Knight, Bishop:
			minors++
			if minors > 1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// FiftyMoveClaimable reports whether the 50-move draw threshold is reached.
func (p *Position) FiftyMoveClaimable() bool { return p.HalfMoves >= 100 }

// Diagram renders the board as a text grid, white at the bottom.
func (p *Position) Diagram() string {
	var b []byte
	b = append(b, "  a b c d e f g h\n"...)
	for r := 7; r >= 0; r-- {
		b = append(b, byte('1'+r), ' ')
		for f := 0; f < 8; f++ {
			pc := p.board[SquareOf(f, r)]
			if pc.IsEmpty() {
				b = append(b, '.', ' ')
			} else {
				b = append(b, pc.fenByte(), ' ')
			}
		}
		b = append(b, byte('1'+r), '\n')
	}
	b = append(b, "  a b c d e f g h"...)
	return string(b)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}
