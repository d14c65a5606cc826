package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultDatafile is read by local commands when neither --datafile nor
	// the config file names one.
	DefaultDatafile = "datafile.json"
	// DefaultBaseURL is where `flagship config init` points the dev
	// environment: a decision server started with its defaults.
	DefaultBaseURL  = "http://localhost:8080"

	// EnvBaseURL and EnvAPIKey override the stored server target.
	EnvBaseURL = "FLAGSHIP_BASE_URL"
	EnvAPIKey  = "FLAGSHIP_API_KEY"

	defaultEnvName = "dev"
	configDirName  = ".flagship"
	configFileName = "config.yaml"
)

// Config is the on-disk CLI configuration.
type Config struct {
	DefaultEnv   string               `yaml:"default_env"`
	Datafile     string               `yaml:"datafile,omitempty"`
	Environments map[string]EnvConfig `yaml:"environments"`
}

// EnvConfig is one remote decision server the CLI can talk to.
type EnvConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

func (e EnvConfig) complete() bool {
	return e.BaseURL != "" && e.APIKey != ""
}

// overlay returns e with every non-empty field of o applied on top.
func (e EnvConfig) overlay(o EnvConfig) EnvConfig {
	if o.BaseURL != "" {
		e.BaseURL = o.BaseURL
	}
	if o.APIKey != "" {
		e.APIKey = o.APIKey
	}
	return e
}

func emptyConfig() *Config {
	return &Config{DefaultEnv: defaultEnvName, Environments: map[string]EnvConfig{}}
}

// GetConfigPath returns ~/.flagship/config.yaml.
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// LoadConfig reads the config file. A missing file yields an empty config
// whose default environment is "dev".
func LoadConfig() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return emptyConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg := emptyConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Environments == nil {
		cfg.Environments = map[string]EnvConfig{}
	}
	return cfg, nil
}

// SaveConfig writes cfg with owner-only permissions, creating the directory
// when needed.
func SaveConfig(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// GetEnvConfig resolves the server target for remote commands and returns it
// with the effective environment name.
//
// Flags take precedence over FLAGSHIP_BASE_URL / FLAGSHIP_API_KEY, which take
// precedence over the config file. When flags and variables together supply
// both values the file is not read, but envName must then be given.
func GetEnvConfig(envName, baseURLFlag, apiKeyFlag string) (*EnvConfig, string, error) {
	override := EnvConfig{BaseURL: os.Getenv(EnvBaseURL), APIKey: os.Getenv(EnvAPIKey)}.
		overlay(EnvConfig{BaseURL: baseURLFlag, APIKey: apiKeyFlag})

	if override.complete() {
		if envName == "" {
			return nil, "", errors.New("--env is required when the base URL and API key are given directly")
		}
		return &override, envName, nil
	}

	cfg, err := LoadConfig()
	if err != nil {
		return nil, "", err
	}
	if envName == "" {
		envName = cfg.DefaultEnv
	}
	stored, ok := cfg.Environments[envName]
	if !ok {
		return nil, "", fmt.Errorf("environment %q is not configured", envName)
	}

	resolved := stored.overlay(override)
	if !resolved.complete() {
		return nil, "", fmt.Errorf("environment %q needs both base_url and api_key", envName)
	}
	return &resolved, envName, nil
}

// ResolveDatafile picks the datafile for local commands: the flag, then the
// config file, then DefaultDatafile.
func ResolveDatafile(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	cfg, err := LoadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Datafile == "" {
		return DefaultDatafile, nil
	}
	return cfg.Datafile, nil
}

// InitConfig writes a starter config with a single dev environment at
// DefaultBaseURL. Its API key is taken from FLAGSHIP_API_KEY and left empty
// when that is unset.
func InitConfig() error {
	cfg := emptyConfig()
	cfg.Datafile = DefaultDatafile
	cfg.Environments[defaultEnvName] = EnvConfig{
		BaseURL: DefaultBaseURL,
		APIKey:  os.Getenv(EnvAPIKey),
	}
	return SaveConfig(cfg)
}
