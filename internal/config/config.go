package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
	"github.com/ChizhovVadim/CounterCoach/internal/opponent"
)

// Config mirrors the coach info file. Keys are matched exactly; unknown keys are kept
// and written back untouched.
type Config struct {
	WeightsDir   string        // WEIGHTS_DIR: the weight store
	WeightsSrc   string        // WEIGHTS_SRC: active weight file compiled into the engine
	EngineDir    string        // ENGINE_DIR
	BuildCommand []string      // BUILD
	BuildTimeout time.Duration // BUILD_TIMEOUT
	WorkDir      string        // WORK_DIR: built binaries
	Book         string        // BOOK
	GamesDir     string        // GAMES_DIR
	History      string        // HISTORY
	Mode         opponent.Mode // MODE
	EngineArgs   []string      // ARGS
	MoveTimeout  time.Duration // MOVE_TIMEOUT
	MaxPlies     int           // MAX_PLIES
	Compress     bool          // COMPRESS
	PGN          bool          // PGN
	Epoch        int           // epoch: next epoch to run
	Epochs       int           // epochs
	Dx           int           // dx
	Limit        int           // limit
	LogLevel     string        // loglevel

	extra []keyValue
}

type keyValue struct {
	key, value string
}

func Default() Config {
	return Config{
		WeightsDir:   "weights",
		WeightsSrc:   "weights.h",
		EngineDir:    ".",
		BuildCommand: []string{"g++", "-O2", "-o", "{out}", "*.cpp"},
		BuildTimeout: 5 * time.Minute,
		WorkDir:      "build",
		Book:         "book.txt",
		GamesDir:     "games",
		History:      "history.sqlite3",
		Mode:         opponent.ModeOneShot,
		EngineArgs:   []string{"tune", opponent.MovesPlaceholder},
		MoveTimeout:  30 * time.Second,
		MaxPlies:     600,
		Epoch:        0,
		Epochs:       1,
		Dx:           10,
		Limit:        60,
		LogLevel:     "info",
	}
}

// Load reads path over the defaults. Relative paths in the file are resolved against
// the file's directory.
func Load(path string) (Config, error) {
	var cfg = Default()
	file, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer file.Close()

	var scanner = bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var lineNumber = 0
	for scanner.Scan() {
		lineNumber++
		var line = strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var key, value, found = strings.Cut(line, "=")
		if !found {
			return cfg, errors.Errorf("%v:%v: expected KEY = value", path, lineNumber)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if err := cfg.Set(key, value); err != nil {
			return cfg, errors.Wrapf(err, "%v:%v", path, lineNumber)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, err
	}
	cfg.resolve(filepath.Dir(path))
	return cfg, nil
}

func (c *Config) paths() []*string {
	return []*string{&c.WeightsDir, &c.WeightsSrc, &c.EngineDir, &c.WorkDir,
		&c.Book, &c.GamesDir, &c.History}
}

func (c *Config) resolve(base string) {
	for _, p := range c.paths() {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// relativize undoes resolve for a file saved in base. Paths outside base are kept as they are.
func (c *Config) relativize(base string) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return
	}
	for _, p := range c.paths() {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absBase, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		*p = rel
	}
}

var knownKeys = []string{
	"WEIGHTS_DIR", "WEIGHTS_SRC", "ENGINE_DIR", "BUILD", "BUILD_TIMEOUT", "WORK_DIR",
	"BOOK", "GAMES_DIR", "HISTORY", "MODE", "ARGS", "MOVE_TIMEOUT", "MAX_PLIES",
	"COMPRESS", "PGN", "epoch", "epochs", "dx", "limit", "loglevel",
}

// Known reports whether key is a coach setting rather than a free-form entry.
func Known(key string) bool {
	for _, k := range knownKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Set assigns one key. It is used both by Load and by command line overrides.
func (c *Config) Set(key, value string) error {
	var err error
	switch key {
	case "WEIGHTS_DIR":
		c.WeightsDir = value
	case "WEIGHTS_SRC":
		c.WeightsSrc = value
	case "ENGINE_DIR":
		c.EngineDir = value
	case "BUILD":
		c.BuildCommand = strings.Fields(value)
	case "BUILD_TIMEOUT":
		c.BuildTimeout, err = time.ParseDuration(value)
	case "WORK_DIR":
		c.WorkDir = value
	case "BOOK":
		c.Book = value
	case "GAMES_DIR":
		c.GamesDir = value
	case "HISTORY":
		c.History = value
	case "MODE":
		c.Mode = opponent.Mode(value)
		if c.Mode != opponent.ModeProcess && c.Mode != opponent.ModeOneShot {
			err = errors.Errorf("unknown mode %q", value)
		}
	case "ARGS":
		c.EngineArgs = strings.Fields(value)
	case "MOVE_TIMEOUT":
		c.MoveTimeout, err = time.ParseDuration(value)
	case "MAX_PLIES":
		c.MaxPlies, err = strconv.Atoi(value)
	case "COMPRESS":
		c.Compress, err = strconv.ParseBool(value)
	case "PGN":
		c.PGN, err = strconv.ParseBool(value)
	case "epoch":
		c.Epoch, err = strconv.Atoi(value)
	case "epochs":
		c.Epochs, err = strconv.Atoi(value)
	case "dx":
		c.Dx, err = strconv.Atoi(value)
	case "limit":
		c.Limit, err = strconv.Atoi(value)
	case "loglevel":
		c.LogLevel = value
	default:
		for i := range c.extra {
			if c.extra[i].key == key {
				c.extra[i].value = value
				return nil
			}
		}
		c.extra = append(c.extra, keyValue{key, value})
	}
	if err != nil {
		return errors.Wrapf(err, "bad value for %v", key)
	}
	return nil
}

// Save writes the configuration in the coach info format. Paths under the file's
// directory are written relative to it, so Load of the saved file gives back c.
func (c *Config) Save(path string) error {
	var saved = *c
	saved.relativize(filepath.Dir(path))
	if err := os.WriteFile(path, []byte(saved.String()), 0644); err != nil {
		return &domain.PersistenceError{Path: path, Err: err}
	}
	return nil
}

// String renders the configuration in the coach info format.
func (c *Config) String() string {
	var sb = &strings.Builder{}
	var kv = func(k string, v interface{}) {
		fmt.Fprintf(sb, "%v = %v\n", k, v)
	}
	kv("WEIGHTS_DIR", c.WeightsDir)
	kv("WEIGHTS_SRC", c.WeightsSrc)
	sb.WriteString("\n")
	kv("epoch", c.Epoch)
	kv("dx", c.Dx)
	kv("limit", c.Limit)
	kv("epochs", c.Epochs)
	sb.WriteString("\n")
	kv("ENGINE_DIR", c.EngineDir)
	kv("BUILD", strings.Join(c.BuildCommand, " "))
	kv("BUILD_TIMEOUT", c.BuildTimeout)
	kv("WORK_DIR", c.WorkDir)
	kv("BOOK", c.Book)
	kv("GAMES_DIR", c.GamesDir)
	kv("HISTORY", c.History)
	kv("MODE", c.Mode)
	kv("ARGS", strings.Join(c.EngineArgs, " "))
	kv("MOVE_TIMEOUT", c.MoveTimeout)
	kv("MAX_PLIES", c.MaxPlies)
	kv("COMPRESS", c.Compress)
	kv("PGN", c.PGN)
	kv("loglevel", c.LogLevel)
	if len(c.extra) != 0 {
		sb.WriteString("\n")
		for _, e := range c.extra {
			kv(e.key, e.value)
		}
	}
	return sb.String()
}

// SetEpoch records the next epoch in the file at path and leaves every other line as written.
// Command line overrides live only in memory, so they never reach the file.
func SetEpoch(path string, epoch int) error {
	var line = fmt.Sprintf("epoch = %v", epoch)
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return &domain.PersistenceError{Path: path, Err: err}
	}
	var lines []string
	if len(content) != 0 {
		lines = strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	}
	var found = false
	for i, l := range lines {
		var key, _, ok = strings.Cut(l, "=")
		if ok && strings.TrimSpace(key) == "epoch" {
			lines[i] = line
			found = true
		}
	}
	if !found {
		lines = append(lines, line)
	}
	var tmp = path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		return &domain.PersistenceError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &domain.PersistenceError{Path: path, Err: err}
	}
	return nil
}
