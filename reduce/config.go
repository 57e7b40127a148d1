package reduce

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	tt "github.com/gnolang/irreduce/internal/types"
)

const DefaultConfigPath = ".irreduce.yaml"

// Config is the content of the configuration file. Command line flags
// override individual fields.
type Config struct {
	Name     string                     `yaml:"name"`
	Finders  map[string]tt.ConfigFinder `yaml:"finders"`
	Oracle   OracleConfig               `yaml:"oracle"`
	Limits   LimitsConfig               `yaml:"limits"`
	CacheDir string                     `yaml:"cache_dir,omitempty"`
	Parallel bool                       `yaml:"parallel"`

	// CacheMaxAge expires persisted verdicts older than this; zero keeps
	// them until the cache is cleared.
	CacheMaxAge time.Duration `yaml:"cache_max_age,omitempty"`
}

type OracleConfig struct {
	// Command is the interestingness test. The trial file path is
	// appended as the last argument.
	Command []string `yaml:"command"`

	// Validator is "builtin" or an external command line such as
	// "spirv-val --target-env vulkan1.1".
	Validator string `yaml:"validator"`

	// Timeout bounds a single oracle invocation.
	Timeout time.Duration `yaml:"timeout"`
}

type LimitsConfig struct {
	MaxPasses                    int           `yaml:"max_passes"`
	MaxTrials                    int           `yaml:"max_trials"`
	MaxConsecutiveOracleFailures int           `yaml:"max_consecutive_oracle_failures"`
	Timeout                      time.Duration `yaml:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		Name:    "irreduce",
		Finders: map[string]tt.ConfigFinder{},
		Oracle: OracleConfig{
			Validator: "builtin",
			Timeout:   30 * time.Second,
		},
		Limits: LimitsConfig{
			MaxConsecutiveOracleFailures: 10,
			Timeout:                      time.Hour,
		},
	}
}

// LoadConfig reads path over the defaults. A missing file at the default
// location is not an error; a missing file named explicitly is.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return config, nil
	}
	if err != nil {
		return config, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return config, fmt.Errorf("error parsing %s: %w", path, err)
	}
	return config, nil
}

// WriteConfig stores config at path, replacing any existing file.
func WriteConfig(path string, config Config) error {
	if path == "" {
		path = DefaultConfigPath
	}
	d, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, d, 0o644)
}

// ValidatorArgv splits the validator setting into a command line; nil
// means the builtin validator.
func (c OracleConfig) ValidatorArgv() []string {
	v := strings.TrimSpace(c.Validator)
	if v == "" || v == "builtin" {
		return nil
	}
	return strings.Fields(v)
}
