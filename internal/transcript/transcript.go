package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
	"github.com/ChizhovVadim/CounterCoach/internal/suite"
)

const (
	textExt       = ".txt"
	compressedExt = ".txt.zst"
	pgnExt        = ".pgn"
)

// Writer stores one file per played game.
type Writer struct {
	Dir      string
	Compress bool
	PGN      bool
}

func (w *Writer) Save(game suite.Game) error {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return &domain.PersistenceError{Path: w.Dir, Err: err}
	}
	var base = filepath.Join(w.Dir, fmt.Sprintf("%v-%03d", game.SuiteID, game.Number))

	var content = []byte(Format(game))
	var path = base + textExt
	if w.Compress {
		var err error
		content, err = compress(content)
		if err != nil {
			return &domain.PersistenceError{Path: path, Err: err}
		}
		path = base + compressedExt
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return &domain.PersistenceError{Path: path, Err: err}
	}

	if w.PGN {
		var pgn, err = toPGN(game)
		if err != nil {
			log.Debug().Err(err).Int("game", game.Number).Msg("pgn skipped")
			return nil
		}
		if err := os.WriteFile(base+pgnExt, []byte(pgn), 0644); err != nil {
			return &domain.PersistenceError{Path: base + pgnExt, Err: err}
		}
	}
	return nil
}

// Format renders the header and the numbered move log of a game.
func Format(game suite.Game) string {
	var white, black = domain.Baseline, domain.Candidate
	if game.CandidateIsWhite {
		white, black = domain.Candidate, domain.Baseline
	}
	var sb = &strings.Builder{}
	fmt.Fprintf(sb, "Suite: %v\n", game.SuiteID)
	fmt.Fprintf(sb, "Game: %v\n", game.Number)
	fmt.Fprintf(sb, "Opening: %v [%v]\n", game.Opening.Name, game.Opening.Moves)
	fmt.Fprintf(sb, "White: %v\n", white)
	fmt.Fprintf(sb, "Black: %v\n", black)
	fmt.Fprintf(sb, "Result: %v (%v by %v)\n", game.Outcome, game.Terminal, game.TerminatedBy)
	sb.WriteString("\n")
	for _, ply := range game.Plies {
		fmt.Fprintf(sb, "%v. %v\n", ply.Number, ply.Token)
	}
	return sb.String()
}

// Read returns a stored transcript, decompressing it when needed.
func Read(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(path, compressedExt) {
		var decoder, err = zstd.NewReader(nil)
		if err != nil {
			return "", err
		}
		defer decoder.Close()
		content, err = decoder.DecodeAll(content, nil)
		if err != nil {
			return "", errors.Wrapf(err, "decompress %v", path)
		}
	}
	return string(content), nil
}

func compress(content []byte) ([]byte, error) {
	var encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, err
	}
	defer encoder.Close()
	return encoder.EncodeAll(content, nil), nil
}

// Clear removes every stored transcript from dir and returns how many files were deleted.
func Clear(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	var removed = 0
	for _, de := range entries {
		var name = de.Name()
		if de.IsDir() ||
			!(strings.HasSuffix(name, textExt) || strings.HasSuffix(name, compressedExt) || strings.HasSuffix(name, pgnExt)) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return removed, &domain.PersistenceError{Path: name, Err: err}
		}
		removed++
	}
	return removed, nil
}
