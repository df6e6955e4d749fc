package engine

import (
	"strings"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

// Cross-checks against corentings/chess over full game scripts. Only the
// placement and side-to-move fields are compared; libraries disagree on when
// to print an en-passant target.

var oracleGames = [][]string{
	// Scholar's mate
	{"e2e4", "e7e5", "f1c4", "b8c6", "d1h5", "g8f6", "h5f7"},
	// Fool's mate
	{"f2f3", "e7e5", "g2g4", "d8h4"},
	// Castling both ways plus en passant
	{
		"e2e4", "e7e5", "g1f3", "b8c6", "f1c4", "g8f6", "e1g1", "f8c5",
		"d2d3", "e8g8", "c2c3", "d7d6", "b2b4", "c5b6", "a2a4", "a7a5",
		"b4b5", "c6e7", "c1e3", "b6e3", "f2e3",
	},
	// Promotion
	{
		"e2e4", "d7d5", "e4d5", "c7c6", "d5c6", "d8d7", "c6b7", "d7c7",
		"b7a8q", "c7c2",
	},
}

func fenHead(fen string) string {
	fields := strings.Fields(fen)
	return fields[0] + " " + fields[1]
}

func TestOracleGameScripts(t *testing.T) {
	for gi, moves := range oracleGames {
		p := StartingPosition()
		ref := nchess.NewGame()
		for mi, uci := range moves {
			var err error
			p, err = p.Apply(mustMove(t, uci))
			if err != nil {
				t.Fatalf("game %d move %d %s: %v", gi, mi+1, uci, err)
			}
			if err := ref.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
				t.Fatalf("game %d move %d %s: oracle rejected: %v", gi, mi+1, uci, err)
			}
			if got, want := fenHead(Encode(p)), fenHead(ref.FEN()); got != want {
				t.Fatalf("game %d after %s:\n got %s\nwant %s", gi, uci, got, want)
			}
		}
	}
}

func TestOracleLegalMoveAgreement(t *testing.T) {
	scripts := [][]string{
		nil,
		{"e2e4", "e7e5", "g1f3"},
		{"d2d4", "d7d5", "c2c4", "e7e6", "b1c3", "g8f6", "c1g5"},
	}
	// oracleAccepts replays the script on a fresh game and then tries one
	// more move. PushNotationMove errors on anything illegal.
	oracleAccepts := func(script []string, uci string) bool {
		g := nchess.NewGame()
		for _, mv := range script {
			if err := g.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
				return false
			}
		}
		return g.PushNotationMove(uci, nchess.UCINotation{}, nil) == nil
	}

	for si, moves := range scripts {
		p := StartingPosition()
		for _, uci := range moves {
			p = mustApply(t, p, uci)
		}
		for from := Square(0); from < 64; from++ {
			for to := Square(0); to < 64; to++ {
				m := Move{From: from, To: to}
				if from == to {
					continue
				}
				if got, want := p.IsLegal(m), oracleAccepts(moves, m.UCI()); got != want {
					t.Errorf("script %d: IsLegal(%s)=%v, oracle says %v", si, m.UCI(), got, want)
				}
			}
		}
	}
}

func TestOracleCheckmateAgreement(t *testing.T) {
	p := StartingPosition()
	ref := nchess.NewGame()
	for _, uci := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		p = mustApply(t, p, uci)
		if err := ref.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
			t.Fatalf("oracle rejected %s: %v", uci, err)
		}
	}
	if p.Status() != StatusCheckmate {
		t.Fatalf("Status = %v, want checkmate", p.Status())
	}
	if ref.Outcome() != nchess.BlackWon {
		t.Fatalf("oracle outcome = %v, want black win", ref.Outcome())
	}
}
