package engine

import "testing"

func TestStartingFEN(t *testing.T) {
	if got := Encode(StartingPosition()); got != StartingFEN {
		t.Fatalf("Encode(start) = %q, want %q", got, StartingFEN)
	}
}

func TestFENRoundTrip(t *testing.T) {
	fens := []string{
		StartingFEN,
		"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1",
		"r3k2r/pppppppp/8/8/8/8/PPPPPPPP/R3K2R w KQkq - 4 9",
		"8/4P3/8/8/8/8/8/4K2k w - - 12 40",
		"7k/5Q2/6K1/8/8/8/8/8 b - - 0 1",
	}
	for _, fen := range fens {
		p, err := Decode(fen)
		if err != nil {
			t.Errorf("Decode(%q): %v", fen, err)
			continue
		}
		if got := Encode(p); got != fen {
			t.Errorf("round trip %q -> %q", fen, got)
		}
	}
}

func TestFENDecodeErrors(t *testing.T) {
	bad := []string{
		"",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -",       // 5 fields
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP w KQkq - 0 1",            // 7 ranks
		"rnbqkbnr/pppppppp/9/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",   // rank overflow
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNX w KQkq - 0 1",   // bad piece
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq - 0 1",   // bad side
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KXkq - 0 1",   // bad castling
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq z9 0 1",  // bad square
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - -1 1",  // bad clock
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 0",   // bad move number
		"rnbqkbnr/ppppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",  // 9 files
	}
	for _, fen := range bad {
		if _, err := Decode(fen); err == nil {
			t.Errorf("Decode(%q) should fail", fen)
		}
	}
}

func TestKeyExcludesCounters(t *testing.T) {
	a, _ := Decode("r3k2r/pppppppp/8/8/8/8/PPPPPPPP/R3K2R w KQkq - 4 9")
	b, _ := Decode("r3k2r/pppppppp/8/8/8/8/PPPPPPPP/R3K2R w KQkq - 0 1")
	if Key(a) != Key(b) {
		t.Fatal("Key must ignore half/full-move counters")
	}
	c, _ := Decode("r3k2r/pppppppp/8/8/8/8/PPPPPPPP/R3K2R b KQkq - 4 9")
	if Key(a) == Key(c) {
		t.Fatal("Key must distinguish the side to move")
	}
}

func TestReplayRejectsBadHistory(t *testing.T) {
	if _, _, err := Replay([]string{"e2e4", "hello"}); err == nil {
		t.Fatal("garbage in the move log must fail")
	}
	if _, _, err := Replay([]string{"e2e4", "e2e4"}); err == nil {
		t.Fatal("an illegal recorded move must fail")
	}
}
