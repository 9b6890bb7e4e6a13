// Package config resolves the settings of a run from CLI flags, an optional
// YAML file and built-in defaults, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// ErrCodeNotFound means an explicitly named config file does not exist.
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid means the config file could not be read, parsed or
	// validated, or a resolved value is out of range.
	ErrCodeInvalid = "config_invalid"
	// ErrCodeDirectory means an input or output directory is unusable.
	ErrCodeDirectory = "config_directory"
)

const (
	DefaultThreads       = 4
	DefaultQueueCapacity = 50
	DefaultFileMode      = fs.FileMode(0o644)
	DefaultLogFormat     = "text"

	// DefaultFileName is looked up in the working directory when no
	// config file is named explicitly.
	DefaultFileName = "threadcalc.yaml"
)

// FileConfig mirrors threadcalc.yaml. Pointer fields distinguish "absent"
// from a zero value.
type FileConfig struct {
	Threads       *int      `yaml:"threads"`
	QueueCapacity int       `yaml:"queue_capacity"`
	FileMode      string    `yaml:"file_mode"`
	Watch         *bool     `yaml:"watch"`
	Database      string    `yaml:"database"`
	MetricsFile   string    `yaml:"metrics_file"`
	Log           LogConfig `yaml:"log"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CLIArgs carries the run command's flags. The *Set fields record whether
// a flag was given explicitly so that an explicit zero value still wins.
type CLIArgs struct {
	InputDir  string
	OutputDir string

	// Threads is the raw -n value; it is parsed leniently.
	Threads    string
	ThreadsSet bool

	QueueCapacity    int
	QueueCapacitySet bool

	Watch    bool
	WatchSet bool

	Database    string
	MetricsFile string

	// ConfigPath names the config file. When empty, DefaultFileName in Cwd
	// is used if it exists.
	ConfigPath string
	Cwd        string
}

// Effective is the merged configuration consumed by the pipeline.
type Effective struct {
	InputDir      string
	OutputDir     string
	Threads       int
	QueueCapacity int
	FileMode      fs.FileMode
	Watch         bool
	Database      string
	MetricsFile   string
	LogLevel      slog.Level
	LogFormat     string

	// ConfigPath is the file that was loaded, or "" if none.
	ConfigPath string

	// Warnings lists values that were ignored in favour of defaults.
	Warnings []string
}

// Error is a structured configuration error.
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Path, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Path)
	default:
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code extracts the error code from err, or "" if err is not an *Error.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Load reads, validates and decodes the config file at path.
func Load(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FileConfig{}, &Error{Code: ErrCodeNotFound, Path: path, Err: err}
		}
		return FileConfig{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	fc, err := Parse(data)
	if err != nil {
		return FileConfig{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	return fc, nil
}

// Parse validates data against the embedded schema and decodes it.
// An empty document is a valid, empty config.
func Parse(data []byte) (FileConfig, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return FileConfig{}, fmt.Errorf("parse yaml: %w", err)
	}
	if err := validateSchema(doc); err != nil {
		return FileConfig{}, fmt.Errorf("schema: %w", err)
	}

	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return FileConfig{}, fmt.Errorf("decode yaml: %w", err)
	}
	return fc, nil
}

// Resolve locates and loads the config file, then merges it with cli.
//
// Precedence for each setting: explicit CLI flag > config file > default.
// An invalid -n value is not an error: the default is used and a warning
// is recorded.
func Resolve(cli CLIArgs) (Effective, error) {
	eff := Effective{
		InputDir:      cli.InputDir,
		OutputDir:     cli.OutputDir,
		Threads:       DefaultThreads,
		QueueCapacity: DefaultQueueCapacity,
		FileMode:      DefaultFileMode,
		LogLevel:      slog.LevelInfo,
		LogFormat:     DefaultLogFormat,
	}

	fc, cfgPath, err := discover(cli)
	if err != nil {
		return Effective{}, err
	}
	eff.ConfigPath = cfgPath

	if fc.Threads != nil {
		eff.Threads = *fc.Threads
	}
	if cli.ThreadsSet {
		n, ok := ParseThreads(cli.Threads)
		if ok {
			eff.Threads = n
		} else {
			eff.Threads = DefaultThreads
			eff.Warnings = append(eff.Warnings,
				fmt.Sprintf("invalid thread count %q, using %d", cli.Threads, DefaultThreads))
		}
	}

	if fc.QueueCapacity != 0 {
		eff.QueueCapacity = fc.QueueCapacity
	}
	if cli.QueueCapacitySet {
		if cli.QueueCapacity < 1 {
			return Effective{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("queue capacity must be at least 1, got %d", cli.QueueCapacity)}
		}
		eff.QueueCapacity = cli.QueueCapacity
	}

	if fc.FileMode != "" {
		mode, err := ParseFileMode(fc.FileMode)
		if err != nil {
			return Effective{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		eff.FileMode = mode
	}

	if fc.Watch != nil {
		eff.Watch = *fc.Watch
	}
	if cli.WatchSet {
		eff.Watch = cli.Watch
	}

	eff.Database = firstNonEmpty(cli.Database, fc.Database)
	eff.MetricsFile = firstNonEmpty(cli.MetricsFile, fc.MetricsFile)

	if fc.Log.Level != "" {
		if err := eff.LogLevel.UnmarshalText([]byte(fc.Log.Level)); err != nil {
			return Effective{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}
	if fc.Log.Format != "" {
		eff.LogFormat = fc.Log.Format
	}

	return eff, nil
}

// CheckDirs verifies that InputDir is a readable directory and that
// OutputDir is distinct from it. OutputDir may not exist yet.
func (e Effective) CheckDirs() error {
	if strings.TrimSpace(e.InputDir) == "" || strings.TrimSpace(e.OutputDir) == "" {
		return &Error{Code: ErrCodeDirectory, Err: errors.New("input and output directories are required")}
	}
	info, err := os.Stat(e.InputDir)
	if err != nil {
		return &Error{Code: ErrCodeDirectory, Path: e.InputDir, Err: err}
	}
	if !info.IsDir() {
		return &Error{Code: ErrCodeDirectory, Path: e.InputDir, Err: errors.New("not a directory")}
	}

	in, err := filepath.Abs(e.InputDir)
	if err != nil {
		return &Error{Code: ErrCodeDirectory, Path: e.InputDir, Err: err}
	}
	out, err := filepath.Abs(e.OutputDir)
	if err != nil {
		return &Error{Code: ErrCodeDirectory, Path: e.OutputDir, Err: err}
	}
	errSame := &Error{Code: ErrCodeDirectory, Path: e.OutputDir, Err: errors.New("output directory must differ from input directory")}
	if in == out {
		return errSame
	}
	// Symlinks and bind mounts can alias the input under another path.
	outInfo, err := os.Stat(e.OutputDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return &Error{Code: ErrCodeDirectory, Path: e.OutputDir, Err: err}
	case !outInfo.IsDir():
		return &Error{Code: ErrCodeDirectory, Path: e.OutputDir, Err: errors.New("not a directory")}
	case os.SameFile(info, outInfo):
		return errSame
	}
	return nil
}

// ParseThreads parses a -n value. It reports false for anything that is
// not a decimal integer of at least 1.
func ParseThreads(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// ParseFileMode parses an octal permission string such as "0644".
func ParseFileMode(s string) (fs.FileMode, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("file_mode %q: %w", s, err)
	}
	if v > 0o777 {
		return 0, fmt.Errorf("file_mode %q: only permission bits are allowed", s)
	}
	return fs.FileMode(v), nil
}

func discover(cli CLIArgs) (FileConfig, string, error) {
	if cli.ConfigPath != "" {
		fc, err := Load(cli.ConfigPath)
		return fc, cli.ConfigPath, err
	}
	if cli.Cwd == "" {
		return FileConfig{}, "", nil
	}
	path := filepath.Join(cli.Cwd, DefaultFileName)
	fc, err := Load(path)
	if Code(err) == ErrCodeNotFound {
		return FileConfig{}, "", nil
	}
	return fc, path, err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
