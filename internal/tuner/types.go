package tuner

import (
	"context"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
	"github.com/ChizhovVadim/CounterCoach/internal/history"
	"github.com/ChizhovVadim/CounterCoach/internal/suite"
)

type IWeightStore interface {
	Init(baselinePath string) error
	Committed() (domain.WeightVersion, error)
	Commit(v domain.WeightVersion) error
	Read(v domain.WeightVersion) (string, error)
	Write(content string) (domain.WeightVersion, error)
	Materialize(v domain.WeightVersion, activePath string) error
}

type IBuilder interface {
	Build(ctx context.Context, output string) error
}

type ILedger interface {
	Record(ctx context.Context, e history.Entry) error
}

// LauncherFactory returns the engine launcher for a built binary.
type LauncherFactory func(binary string) suite.ILauncher
