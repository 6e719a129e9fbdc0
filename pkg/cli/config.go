package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// UserConfig represents ~/.sonai/config.yaml.
type UserConfig struct {
	CurrentProfile string             `yaml:"current-profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile is a named set of defaults. Environment variables and flags
// override every field.
type Profile struct {
	RawDir       string `yaml:"raw-dir,omitempty"`
	ProcessedDir string `yaml:"processed-dir,omitempty"`
	DatamartDir  string `yaml:"datamart-dir,omitempty"`
	LedgerPath   string `yaml:"ledger,omitempty"`
	Workers      int    `yaml:"workers,omitempty"`
	LogLevel     string `yaml:"log-level,omitempty"`
	Schedule     string `yaml:"schedule,omitempty"`
	PublishURL   string `yaml:"publish-url,omitempty"`
	ListenAddr   string `yaml:"listen-addr,omitempty"`
	Output       string `yaml:"output,omitempty"`
}

// ActiveProfile returns the named profile, or the current one when name is
// empty. Naming a profile that does not exist is an error; a missing current
// profile yields an empty one.
func (c *UserConfig) ActiveProfile(name string) (Profile, error) {
	if name == "" {
		return c.Profiles[c.CurrentProfile], nil
	}
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q not found", name)
	}
	return p, nil
}

// Env maps the profile to the environment variables config.LoadFromEnv reads.
func (p Profile) Env() map[string]string {
	env := map[string]string{
		"SONAI_RAW_DIR":       p.RawDir,
		"SONAI_PROCESSED_DIR": p.ProcessedDir,
		"SONAI_DATAMART_DIR":  p.DatamartDir,
		"SONAI_LEDGER_PATH":   p.LedgerPath,
		"LOG_LEVEL":           p.LogLevel,
		"SONAI_SCHEDULE":      p.Schedule,
		"SONAI_PUBLISH_URL":   p.PublishURL,
		"LISTEN_ADDR":         p.ListenAddr,
	}
	if p.Workers > 0 {
		env["SONAI_WORKERS"] = strconv.Itoa(p.Workers)
	}
	return env
}

// applyProfileEnv sets each non-empty profile value that the environment
// does not already define.
func applyProfileEnv(p Profile) error {
	for k, v := range p.Env() {
		if v == "" || os.Getenv(k) != "" {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("setenv %s: %w", k, err)
		}
	}
	return nil
}

// ConfigDir returns the path to ~/.sonai/.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sonai")
}

// ConfigPath returns the path to ~/.sonai/config.yaml.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LoadUserConfig reads ~/.sonai/config.yaml. A missing file is an empty config.
func LoadUserConfig() (*UserConfig, error) {
	cfg := &UserConfig{CurrentProfile: "default", Profiles: map[string]Profile{}}
	data, err := os.ReadFile(ConfigPath())
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	return cfg, nil
}

// SaveUserConfig writes ~/.sonai/config.yaml.
func SaveUserConfig(cfg *UserConfig) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(ConfigPath(), data, 0o600)
}
