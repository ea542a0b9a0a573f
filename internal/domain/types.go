package domain

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

const (
	TokenDraw = "draw"
	TokenLoss = "loss"
)

const (
	PieceTypes   = 13
	BoardSquares = 64
	VectorSize   = PieceTypes * BoardSquares
)

// IsTerminal reports whether an engine response ends the game.
// Surrounding whitespace is ignored, so "draw " and "draw" are the same token.
func IsTerminal(token string) bool {
	var t = strings.TrimSpace(token)
	return t == TokenDraw || t == TokenLoss
}

type Side int

const (
	White Side = iota
	Black
)

func (s Side) Opposite() Side {
	return s ^ 1
}

func (s Side) String() string {
	if s == White {
		return "white"
	}
	return "black"
}

type GameOutcome int

const (
	Draw GameOutcome = iota
	WhiteWin
	BlackWin
)

func WinFor(side Side) GameOutcome {
	if side == White {
		return WhiteWin
	}
	return BlackWin
}

func (o GameOutcome) String() string {
	switch o {
	case WhiteWin:
		return "1-0"
	case BlackWin:
		return "0-1"
	case Draw:
		return "1/2-1/2"
	}
	return "*"
}

type Role int

const (
	Candidate Role = iota
	Baseline
)

func (r Role) String() string {
	if r == Candidate {
		return "candidate"
	}
	return "baseline"
}

type Opening struct {
	Moves string
	Name  string
}

type Ply struct {
	Number int
	Token  string
}

type MatchTally struct {
	CandidateWins int
	BaselineWins  int
	Draws         int
}

func (t MatchTally) Games() int {
	return t.CandidateWins + t.BaselineWins + t.Draws
}

// Add credits a decisive game to whichever role held the winning colour.
func (t *MatchTally) Add(outcome GameOutcome, candidateIsWhite bool) {
	switch {
	case outcome == Draw:
		t.Draws++
	case (outcome == WhiteWin) == candidateIsWhite:
		t.CandidateWins++
	default:
		t.BaselineWins++
	}
}

// Swap returns the tally as seen with candidate and baseline roles exchanged.
func (t MatchTally) Swap() MatchTally {
	return MatchTally{
		CandidateWins: t.BaselineWins,
		BaselineWins:  t.CandidateWins,
		Draws:         t.Draws,
	}
}

type SkillDelta int

var errNoGames = errors.New("skill delta of an empty tally")

// SkillDeltaOf is round(400 * (baselineWins - candidateWins) / games).
// Both sides start at the same nominal rating.
func SkillDeltaOf(t MatchTally) (SkillDelta, error) {
	var games = t.Games()
	if games == 0 {
		return 0, errNoGames
	}
	var d = 400 * float64(t.BaselineWins-t.CandidateWins) / float64(games)
	return SkillDelta(math.Round(d)), nil
}

type WeightVector []int

func NewWeightVector(size int) WeightVector {
	return make(WeightVector, size)
}

func (v WeightVector) Clone() WeightVector {
	var result = make(WeightVector, len(v))
	copy(result, v)
	return result
}

func (v WeightVector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

type WeightVersion int
