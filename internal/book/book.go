package book

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
)

// N. [<moves>] <name>
var entryRe = regexp.MustCompile(`^(?:\d+\.\s*)?\[([^\[\]]*)\]\s*(.*)$`)

// Parse reads an opening book. Malformed lines are returned as BookParseErrors and skipped.
// A sequence listed more than once keeps its first position and its longest name.
func Parse(r io.Reader) ([]domain.Opening, []*domain.BookParseError, error) {
	var openings []domain.Opening
	var index = make(map[string]int)
	var skipped []*domain.BookParseError

	var scanner = bufio.NewScanner(r)
	var lineNumber = 0
	for scanner.Scan() {
		lineNumber++
		var line = strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		var m = entryRe.FindStringSubmatch(line)
		if m == nil {
			skipped = append(skipped, &domain.BookParseError{Line: lineNumber, Text: line})
			continue
		}
		var opening = domain.Opening{Moves: m[1], Name: strings.TrimSpace(m[2])}
		if i, found := index[opening.Moves]; found {
			if len(opening.Name) > len(openings[i].Name) {
				openings[i].Name = opening.Name
			}
			continue
		}
		index[opening.Moves] = len(openings)
		openings = append(openings, opening)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return openings, skipped, nil
}

func Load(path string) ([]domain.Opening, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open book")
	}
	defer file.Close()

	openings, skipped, err := Parse(file)
	if err != nil {
		return nil, errors.Wrapf(err, "read book %v", path)
	}
	for _, e := range skipped {
		log.Warn().Err(e).Str("book", path).Msg("opening skipped")
	}
	log.Info().Str("book", path).Int("openings", len(openings)).Int("skipped", len(skipped)).Msg("book loaded")
	return openings, nil
}

// Format writes openings back in numbered book form.
func Format(w io.Writer, openings []domain.Opening) error {
	var bw = bufio.NewWriter(w)
	for i, opening := range openings {
		if _, err := fmt.Fprintf(bw, "%v. [%v] %v\n", i+1, opening.Moves, opening.Name); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Rewrite deduplicates and renumbers a book file in place.
func Rewrite(path string) (int, error) {
	openings, err := Load(path)
	if err != nil {
		return 0, err
	}
	var sb = &strings.Builder{}
	if err := Format(sb, openings); err != nil {
		return 0, err
	}
	var tmp = path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), 0644); err != nil {
		return 0, &domain.PersistenceError{Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, &domain.PersistenceError{Path: path, Err: err}
	}
	return len(openings), nil
}
