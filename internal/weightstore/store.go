package weightstore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/slices"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
)

var ErrEmpty = errors.New("weight store is empty")

const committedFile = "committed"

// Store keeps numbered weight files weights<N>.<ext> in one directory.
// Version 0 is the untouched baseline; versions are never rewritten.
// Candidates are written before they are scored, so the newest version is not necessarily
// a good one: the "committed" file names the version tuning resumes from.
// There is a single writer, so no locking is done.
type Store struct {
	dir    string
	prefix string
	ext    string
	nameRe *regexp.Regexp
}

func New(dir, ext string) *Store {
	const prefix = "weights"
	return &Store{
		dir:    dir,
		prefix: prefix,
		ext:    ext,
		nameRe: regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + `(\d+)\.` + regexp.QuoteMeta(ext) + "$"),
	}
}

func (s *Store) Path(v domain.WeightVersion) string {
	return filepath.Join(s.dir, fmt.Sprintf("%v%d.%v", s.prefix, v, s.ext))
}

func (s *Store) Versions() ([]domain.WeightVersion, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "list weight store")
	}
	var result []domain.WeightVersion
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		var m = s.nameRe.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}
		var n, err = strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		result = append(result, domain.WeightVersion(n))
	}
	slices.Sort(result)
	return result, nil
}

func (s *Store) Max() (domain.WeightVersion, error) {
	versions, err := s.Versions()
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, ErrEmpty
	}
	return versions[len(versions)-1], nil
}

// Init copies the engine's weight source in as version 0 unless the store already has versions.
func (s *Store) Init(baselinePath string) error {
	versions, err := s.Versions()
	if err != nil {
		return err
	}
	if len(versions) != 0 {
		return nil
	}
	content, err := os.ReadFile(baselinePath)
	if err != nil {
		return errors.Wrap(err, "read baseline weights")
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return &domain.PersistenceError{Path: s.dir, Err: err}
	}
	if err := writeFileAtomic(s.Path(0), content); err != nil {
		return err
	}
	if err := s.Commit(0); err != nil {
		return err
	}
	log.Info().Str("source", baselinePath).Str("path", s.Path(0)).Msg("weight store initialized")
	return nil
}

func (s *Store) Read(v domain.WeightVersion) (string, error) {
	content, err := os.ReadFile(s.Path(v))
	if err != nil {
		return "", errors.Wrapf(err, "read weights version %v", v)
	}
	return string(content), nil
}

// Write stores content as the next version. The version exists only once fully written.
func (s *Store) Write(content string) (domain.WeightVersion, error) {
	var next domain.WeightVersion
	last, err := s.Max()
	switch {
	case err == nil:
		next = last + 1
	case errors.Is(err, ErrEmpty):
		next = 0
	default:
		return 0, err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return 0, &domain.PersistenceError{Path: s.dir, Err: err}
	}
	if err := writeFileAtomic(s.Path(next), []byte(content)); err != nil {
		return 0, err
	}
	log.Debug().Int("version", int(next)).Msg("weights written")
	return next, nil
}

// Commit marks v as the accepted state.
func (s *Store) Commit(v domain.WeightVersion) error {
	if _, err := os.Stat(s.Path(v)); err != nil {
		return errors.Wrapf(err, "commit weights version %v", v)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, committedFile), []byte(strconv.Itoa(int(v))+"\n")); err != nil {
		return err
	}
	log.Debug().Int("version", int(v)).Msg("weights committed")
	return nil
}

// Committed returns the last committed version. A store without a marker falls back to
// version 0, the untouched baseline.
func (s *Store) Committed() (domain.WeightVersion, error) {
	content, err := os.ReadFile(filepath.Join(s.dir, committedFile))
	if err != nil {
		if !os.IsNotExist(err) {
			return 0, errors.Wrap(err, "read committed version")
		}
		versions, err := s.Versions()
		if err != nil {
			return 0, err
		}
		if len(versions) == 0 {
			return 0, ErrEmpty
		}
		return versions[0], nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return 0, &domain.PersistenceError{Path: filepath.Join(s.dir, committedFile), Err: err}
	}
	return domain.WeightVersion(n), nil
}

// Materialize copies version v over the engine's active weight file.
func (s *Store) Materialize(v domain.WeightVersion, activePath string) error {
	content, err := os.ReadFile(s.Path(v))
	if err != nil {
		return errors.Wrapf(err, "read weights version %v", v)
	}
	return writeFileAtomic(activePath, content)
}

func writeFileAtomic(path string, content []byte) error {
	var tmp, err = os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return &domain.PersistenceError{Path: path, Err: err}
	}
	var tmpName = tmp.Name()
	_, err = tmp.Write(content)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		os.Remove(tmpName)
		return &domain.PersistenceError{Path: path, Err: err}
	}
	return nil
}
