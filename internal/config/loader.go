package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed gateway.yaml
var defaultConfig []byte

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// escapedDollar stands in for "$$" while substitution runs.
const escapedDollar = "\x00DOLLAR\x00"

// LookupFunc resolves an environment variable.
type LookupFunc func(name string) (string, bool)

// Loader reads gateway configuration.
type Loader struct {
	lookup LookupFunc
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLookup replaces os.LookupEnv, mainly for tests.
func WithLookup(fn LookupFunc) LoaderOption {
	return func(l *Loader) {
		l.lookup = fn
	}
}

// NewLoader creates a Loader that resolves variables from the process
// environment unless told otherwise.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads path, or the embedded defaults when path is empty, and
// applies defaults. It does not validate.
func Load(path string) (*GatewayConfig, error) {
	return NewLoader().Load(path)
}

// Load reads path, or the embedded defaults when path is empty.
func (l *Loader) Load(path string) (*GatewayConfig, error) {
	if path == "" {
		return l.Parse(defaultConfig)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	data, err := os.ReadFile(abs) //nolint:gosec // operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return l.Parse(data)
}

// LoadFromReader parses configuration from r.
func (l *Loader) LoadFromReader(r io.Reader) (*GatewayConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return l.Parse(data)
}

// Parse substitutes environment references in data and decodes it.
// Unknown keys are rejected so typos surface at startup.
func (l *Loader) Parse(data []byte) (*GatewayConfig, error) {
	expanded := l.substitute(string(data))

	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)

	var cfg GatewayConfig
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

func (l *Loader) substitute(content string) string {
	content = strings.ReplaceAll(content, "$$", escapedDollar)

	out := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		if v, ok := l.lookup(sub[1]); ok {
			return v
		}
		return sub[2]
	})

	return strings.ReplaceAll(out, escapedDollar, "$")
}
