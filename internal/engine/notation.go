package engine

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	coordRe = regexp.MustCompile(`^([a-h][1-8])([a-h][1-8])([qrbn])?$`)
	sanRe   = regexp.MustCompile(`^([KQRBN])?([a-h])?([1-8])?(x)?([a-h][1-8])(?:=?([QRBN]))?[+#]?$`)
)

var sanPieceTypes = map[string]PieceType{
	"":  Pawn,
	"K": King,
	"Q": Queen,
	"R": Rook,
	"B": Bishop,
	"N": Knight,
}

// parseCoordinate parses strict coordinate form ("e2e4", "e7e8q") without
// consulting a position.
func parseCoordinate(text string) (Move, error) {
	parts := coordRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(text)))
	if parts == nil {
		return Move{}, fmt.Errorf("%w: %q", ErrInvalidNotation, text)
	}
	from, _ := ParseSquare(parts[1])
	to, _ := ParseSquare(parts[2])
	m := Move{From: from, To: to}
	if parts[3] != "" {
		m.Promotion, _ = pieceTypeFromLetter(parts[3][0])
	}
	return m, nil
}

// ParseMove accepts permissive move text: four-character coordinate form or
// short algebraic notation (including castling and promotion suffixes).
// Malformed text yields ErrInvalidNotation; well-formed SAN that matches no
// legal move yields ErrIllegalMove.
func ParseMove(p *Position, text string) (Move, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Move{}, fmt.Errorf("%w: empty", ErrInvalidNotation)
	}

	if m, err := parseCoordinate(text); err == nil {
		return m, nil
	}

	castle := strings.TrimRight(strings.ToUpper(strings.ReplaceAll(text, "0", "O")), "+#")
	switch castle {
	case "O-O":
		return castleMove(p, 6), nil
	case "O-O-O":
		return castleMove(p, 2), nil
	}

	parts := sanRe.FindStringSubmatch(text)
	if parts == nil {
		return Move{}, fmt.Errorf("%w: %q", ErrInvalidNotation, text)
	}
	pt := sanPieceTypes[parts[1]]
	wantCapture := parts[4] == "x"
	dest, _ := ParseSquare(parts[5])
	var promo PieceType
	if parts[6] != "" {
		promo, _ = pieceTypeFromLetter(parts[6][0] | 0x20)
	}

	var matches []Move
	for _, m := range p.LegalMoves() {
		pc := p.PieceAt(m.From)
		if pc.Type != pt || m.To != dest {
			continue
		}
		if parts[2] != "" && m.From.File() != int(parts[2][0]-'a') {
			continue
		}
		if parts[3] != "" && m.From.Rank() != int(parts[3][0]-'1') {
			continue
		}
		if wantCapture && !p.isCapture(m) {
			continue
		}
		if promo != NoPiece && m.Promotion != promo {
			continue
		}
		if promo == NoPiece && m.Promotion != NoPiece && m.Promotion != Queen {
			// bare "e8" promotes to queen; other promotions need a suffix
			continue
		}
		matches = append(matches, m)
	}

	switch len(matches) {
	case 0:
		return Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, text)
	case 1:
		return matches[0], nil
	default:
		return Move{}, fmt.Errorf("%w: ambiguous %q", ErrInvalidNotation, text)
	}
}

func castleMove(p *Position, toFile int) Move {
	rank := 0
	if p.Turn == Black {
		rank = 7
	}
	return Move{From: SquareOf(4, rank), To: SquareOf(toFile, rank)}
}

func (p *Position) isCapture(m Move) bool {
	if !p.PieceAt(m.To).IsEmpty() {
		return true
	}
	return p.PieceAt(m.From).Type == Pawn && m.To == p.EnPassant
}

// EncodeSAN renders a legal move in short algebraic notation against the
// position it is played from, including disambiguation and check suffixes.
func EncodeSAN(p Position, m Move) string {
	pc := p.PieceAt(m.From)
	if pc.IsEmpty() {
		return m.UCI()
	}

	var san string
	switch {
	case pc.Type == King && m.To.File()-m.From.File() == 2:
		san = "O-O"
	case pc.Type == King && m.From.File()-m.To.File() == 2:
		san = "O-O-O"
	case pc.Type == Pawn:
		if p.isCapture(m) {
			san = fmt.Sprintf("%cx", 'a'+m.From.File())
		}
		san += m.To.String()
		if m.Promotion != NoPiece {
			san += "=" + strings.ToUpper(string(pieceLetters[m.Promotion]))
		}
	default:
		san = strings.ToUpper(string(pieceLetters[pc.Type]))
		san += disambiguation(p, m, pc)
		if p.isCapture(m) {
			san += "x"
		}
		san += m.To.String()
	}

	if next, err := p.Apply(m); err == nil {
		switch next.Status() {
		case StatusCheckmate:
			san += "#"
		case StatusCheck:
			san += "+"
		}
	}
	return san
}

// disambiguation picks the minimal origin hint when another piece of the
// same kind can also reach the destination.
func disambiguation(p Position, m Move, pc Piece) string {
	sameFile, sameRank, others := false, false, false
	for _, alt := range p.LegalMoves() {
		if alt.From == m.From || alt.To != m.To {
			continue
		}
		if p.PieceAt(alt.From).Type != pc.Type {
			continue
		}
		others = true
		if alt.From.File() == m.From.File() {
			sameFile = true
		}
		if alt.From.Rank() == m.From.Rank() {
			sameRank = true
		}
	}
	switch {
	case !others:
		return ""
	case !sameFile:
		return fmt.Sprintf("%c", 'a'+m.From.File())
	case !sameRank:
		return fmt.Sprintf("%d", m.From.Rank()+1)
	default:
		return m.From.String()
	}
}
