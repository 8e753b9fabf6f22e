// Package engine adapts the chess rules library behind a narrow interface:
// validate one from→to move against a position and return the resulting
// position. The coordinator treats positions as opaque FEN strings.
package engine

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// InitialFEN is the standard starting position.
const InitialFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var ErrIllegalMove = errf("illegal move")

// Outcome is the engine's verdict on the position after a move.
type Outcome string

const (
	OutcomeNone     Outcome = ""
	OutcomeWhiteWon Outcome = "white_won"
	OutcomeBlackWon Outcome = "black_won"
	OutcomeDraw     Outcome = "draw"
)

// MoveResult carries the position produced by an accepted move.
type MoveResult struct {
	FEN     string
	UCI     string
	SAN     string
	Outcome Outcome
}

// Engine validates moves. Pure and deterministic; no shared state.
type Engine interface {
	Apply(movesUCI []string, from, to string) (*MoveResult, error)
	Replay(movesUCI []string) (fen string, err error)
}

type rulesEngine struct{}

func New() Engine { return rulesEngine{} }

// Apply replays the accepted move history from the start position, then
// attempts from→to as a UCI move. Pawn promotion defaults to queen.
func (rulesEngine) Apply(movesUCI []string, from, to string) (*MoveResult, error) {
	game := reconstruct(movesUCI)
	if game == nil {
		return nil, fmt.Errorf("failed to reconstruct game from %d moves", len(movesUCI))
	}
	pos := game.Position()

	uci := strings.ToLower(strings.TrimSpace(from) + strings.TrimSpace(to))
	if len(uci) != 4 {
		return nil, ErrIllegalMove
	}

	notation := nchess.UCINotation{}
	mv, err := notation.Decode(pos, uci)
	if err != nil {
		// retry as queen promotion
		mv, err = notation.Decode(pos, uci+"q")
		if err != nil {
			return nil, ErrIllegalMove
		}
		uci += "q"
	}
	if err := game.Move(mv, nil); err != nil {
		return nil, ErrIllegalMove
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)

	res := &MoveResult{
		FEN: game.FEN(),
		UCI: uci,
		SAN: san,
	}
	switch game.Outcome() {
	case nchess.WhiteWon:
		res.Outcome = OutcomeWhiteWon
	case nchess.BlackWon:
		res.Outcome = OutcomeBlackWon
	case nchess.Draw:
		res.Outcome = OutcomeDraw
	}
	return res, nil
}

// Replay reproduces the position reached by the given move history.
func (rulesEngine) Replay(movesUCI []string) (string, error) {
	game := reconstruct(movesUCI)
	if game == nil {
		return "", fmt.Errorf("failed to reconstruct game from %d moves", len(movesUCI))
	}
	return game.FEN(), nil
}

// reconstruct always replays from the start position. Seeding from a stored
// FEN can double-apply moves; the move list is the source of truth.
func reconstruct(moves []string) *nchess.Game {
	game := nchess.NewGame()
	for _, mv := range moves {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil
		}
	}
	return game
}

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
