package engine

import (
	"errors"
	"testing"
)

func mustMove(t *testing.T, uci string) Move {
	t.Helper()
	m, err := parseCoordinate(uci)
	if err != nil {
		t.Fatalf("parseCoordinate(%q): %v", uci, err)
	}
	return m
}

func mustApply(t *testing.T, p Position, uci string) Position {
	t.Helper()
	next, err := p.Apply(mustMove(t, uci))
	if err != nil {
		t.Fatalf("Apply(%q): %v", uci, err)
	}
	return next
}

func mustDecode(t *testing.T, fen string) Position {
	t.Helper()
	p, err := Decode(fen)
	if err != nil {
		t.Fatalf("Decode(%q): %v", fen, err)
	}
	return p
}

func TestPawnMoves(t *testing.T) {
	p := StartingPosition()

	for _, uci := range []string{"e2e3", "e2e4"} {
		if !p.IsLegal(mustMove(t, uci)) {
			t.Errorf("%s should be legal from the start", uci)
		}
	}
	for _, uci := range []string{"e2e5", "e2d3", "e2e1", "e7e5"} {
		if p.IsLegal(mustMove(t, uci)) {
			t.Errorf("%s should be illegal from the start", uci)
		}
	}

	// Double push is blocked by a piece on the intermediate square.
	blocked := mustDecode(t, "rnbqkbnr/pppppppp/8/8/8/4n3/PPPPPPPP/RNBQKBNR w KQkq - 0 1")
	if blocked.IsLegal(mustMove(t, "e2e4")) {
		t.Error("e2e4 should be blocked by the knight on e3")
	}
	if blocked.IsLegal(mustMove(t, "e2e3")) {
		t.Error("e2e3 should be blocked, pawns do not capture forward")
	}
	if !blocked.IsLegal(mustMove(t, "d2e3")) {
		t.Error("d2e3 should capture the knight diagonally")
	}
}

func TestEnPassant(t *testing.T) {
	p := StartingPosition()
	p = mustApply(t, p, "e2e4")
	if p.EnPassant != SquareOf(4, 2) {
		t.Fatalf("en-passant target after e2e4 = %s, want e3", p.EnPassant)
	}
	p = mustApply(t, p, "a7a6")
	p = mustApply(t, p, "e4e5")
	p = mustApply(t, p, "d7d5")
	if p.EnPassant != SquareOf(3, 5) {
		t.Fatalf("en-passant target after d7d5 = %s, want d6", p.EnPassant)
	}

	p = mustApply(t, p, "e5d6")
	if !p.PieceAt(SquareOf(3, 4)).IsEmpty() {
		t.Error("captured pawn should be removed from d5")
	}
	if got := p.PieceAt(SquareOf(3, 5)); got.Type != Pawn || got.Color != White {
		t.Errorf("d6 = %+v, want white pawn", got)
	}
	if p.EnPassant != NoSquare {
		t.Errorf("en-passant target should clear after the capture, got %s", p.EnPassant)
	}
}

func TestSlidingPieceBlocked(t *testing.T) {
	p := StartingPosition()
	if p.IsLegal(mustMove(t, "a1a5")) {
		t.Error("a1a5 should be blocked by the a2 pawn")
	}
	if p.IsLegal(mustMove(t, "c1g5")) {
		t.Error("c1g5 should be blocked by the d2 pawn")
	}
	if p.IsLegal(mustMove(t, "d1h5")) {
		t.Error("d1h5 should be blocked by the e2 pawn")
	}
	if !p.IsLegal(mustMove(t, "b1c3")) {
		t.Error("knights jump over pieces, b1c3 should be legal")
	}
}

func TestCastling(t *testing.T) {
	base := "r3k2r/pppppppp/8/8/8/8/PPPPPPPP/R3K2R w KQkq - 0 1"

	p := mustDecode(t, base)
	for _, uci := range []string{"e1g1", "e1c1"} {
		if !p.IsLegal(mustMove(t, uci)) {
			t.Errorf("%s should be legal with clear back rank and full rights", uci)
		}
	}

	after := mustApply(t, p, "e1g1")
	if got := after.PieceAt(SquareOf(5, 0)); got.Type != Rook || got.Color != White {
		t.Errorf("f1 after O-O = %+v, want white rook", got)
	}
	if after.Castling.Has(CastleWhiteKingside) || after.Castling.Has(CastleWhiteQueenside) {
		t.Error("white rights should be gone after castling")
	}
	if !after.Castling.Has(CastleBlackKingside) {
		t.Error("black rights must survive white castling")
	}

	// No rights, no castling.
	noRights := mustDecode(t, "r3k2r/pppppppp/8/8/8/8/PPPPPPPP/R3K2R w - - 0 1")
	if noRights.IsLegal(mustMove(t, "e1g1")) {
		t.Error("e1g1 should be illegal without the K right")
	}

	// King may not castle through an attacked square (f1 hit by the rook).
	through := mustDecode(t, "4kr2/8/8/8/8/8/8/R3K2R w KQ - 0 1")
	if through.IsLegal(mustMove(t, "e1g1")) {
		t.Error("castling through an attacked f1 should be illegal")
	}
	if !through.IsLegal(mustMove(t, "e1c1")) {
		t.Error("queenside is unaffected by the f-file rook")
	}

	// Moving a rook drops only its own right.
	p2 := mustApply(t, mustDecode(t, base), "h1g1")
	if p2.Castling.Has(CastleWhiteKingside) {
		t.Error("h1 rook move should revoke the kingside right")
	}
	if !p2.Castling.Has(CastleWhiteQueenside) {
		t.Error("queenside right should survive the h1 rook move")
	}
}

func TestPinnedPieceCannotMove(t *testing.T) {
	// The e-file knight is pinned against the king by the black rook.
	p := mustDecode(t, "4r2k/8/8/8/8/4N3/8/4K3 w - - 0 1")
	if p.IsLegal(mustMove(t, "e3c4")) {
		t.Error("moving the pinned knight should be illegal")
	}
	if !p.IsLegal(mustMove(t, "e1d1")) {
		t.Error("the king may step off the pin file")
	}
}

func TestPromotion(t *testing.T) {
	p := mustDecode(t, "8/4P3/8/8/8/8/8/4K2k w - - 0 1")

	if p.IsLegal(mustMove(t, "e7e8")) {
		t.Error("reaching the last rank without a promotion piece should be illegal")
	}
	for _, uci := range []string{"e7e8q", "e7e8r", "e7e8b", "e7e8n"} {
		if !p.IsLegal(mustMove(t, uci)) {
			t.Errorf("%s should be legal", uci)
		}
	}

	next := mustApply(t, p, "e7e8q")
	if got := next.PieceAt(SquareOf(4, 7)); got.Type != Queen || got.Color != White {
		t.Errorf("e8 after promotion = %+v, want white queen", got)
	}

	// Promotion piece on a non-final destination is malformed movement.
	mid := mustDecode(t, "8/8/8/8/8/4P3/8/4K2k w - - 0 1")
	if mid.IsLegal(Move{From: SquareOf(4, 2), To: SquareOf(4, 3), Promotion: Queen}) {
		t.Error("promotion off the last rank should be illegal")
	}
}

func TestMoveCounters(t *testing.T) {
	p := StartingPosition()
	p = mustApply(t, p, "g1f3")
	if p.HalfMoves != 1 || p.FullMoves != 1 {
		t.Fatalf("after Nf3: half=%d full=%d, want 1 1", p.HalfMoves, p.FullMoves)
	}
	p = mustApply(t, p, "b8c6")
	if p.HalfMoves != 2 || p.FullMoves != 2 {
		t.Fatalf("after Nc6: half=%d full=%d, want 2 2", p.HalfMoves, p.FullMoves)
	}
	p = mustApply(t, p, "e2e4")
	if p.HalfMoves != 0 {
		t.Fatalf("pawn move should reset the half-move clock, got %d", p.HalfMoves)
	}
}

func TestFoolsMate(t *testing.T) {
	p := StartingPosition()
	for _, uci := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		p = mustApply(t, p, uci)
	}
	if got := p.Status(); got != StatusCheckmate {
		t.Fatalf("Status after fool's mate = %v, want checkmate", got)
	}
	if len(p.LegalMoves()) != 0 {
		t.Fatal("checkmated side must have no legal moves")
	}
}

func TestStalemate(t *testing.T) {
	p := mustDecode(t, "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	if got := p.Status(); got != StatusStalemate {
		t.Fatalf("Status = %v, want stalemate", got)
	}
}

func TestInsufficientMaterial(t *testing.T) {
	cases := []struct {
		fen  string
		want bool
	}{
		{"8/8/4k3/8/8/3K4/8/8 w - - 0 1", true},
		{"8/8/4k3/8/8/3KB3/8/8 w - - 0 1", true},
		{"8/8/4kn2/8/8/3K4/8/8 w - - 0 1", true},
		{"8/8/4kn2/8/8/3KB3/8/8 w - - 0 1", false},
		{"8/8/4k3/8/8/3KR3/8/8 w - - 0 1", false},
		{"8/8/4k3/8/8/3KP3/8/8 w - - 0 1", false},
	}
	for _, tc := range cases {
		p := mustDecode(t, tc.fen)
		got := p.Status() == StatusInsufficientMaterial
		if got != tc.want {
			t.Errorf("%s: insufficient=%v, want %v", tc.fen, got, tc.want)
		}
	}
}

func TestApplyRejectsIllegal(t *testing.T) {
	p := StartingPosition()
	_, err := p.Apply(mustMove(t, "e2e5"))
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("err = %v, want ErrIllegalMove", err)
	}
	_, err = p.Apply(mustMove(t, "e7e5"))
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("moving the opponent's pawn: err = %v, want ErrIllegalMove", err)
	}
}

func TestApplyDoesNotMutateReceiver(t *testing.T) {
	p := StartingPosition()
	before := Encode(p)
	if _, err := p.Apply(mustMove(t, "e2e4")); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if Encode(p) != before {
		t.Fatal("Apply mutated the original position")
	}
}

func TestReplayThreefold(t *testing.T) {
	shuffle := []string{"g1f3", "g8f6", "f3g1", "f6g8"}
	var moves []string
	moves = append(moves, shuffle...)
	moves = append(moves, shuffle...)

	p, claimable, err := Replay(moves)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if !claimable {
		t.Fatal("start position occurred three times, draw should be claimable")
	}
	if Key(p) != Key(StartingPosition()) {
		t.Fatalf("Key = %q, want the start key", Key(p))
	}

	_, claimable, err = Replay(moves[:6])
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if claimable {
		t.Fatal("two occurrences must not be claimable")
	}
}
