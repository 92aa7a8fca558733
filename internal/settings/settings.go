package settings

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	DirName         = ".maticvigil"
	SettingsFile    = "settings.json"
	AccountInfoFile = "account_info.json"

	// CachedTimeLayout renders dd/mm/YYYY HH:MM:SS.
	CachedTimeLayout = "02/01/2006 15:04:05"
)

// Environment overrides applied on top of the settings file.
const (
	EnvPrivateKey          = "MATICVIGIL_PRIVATEKEY"
	EnvInternalAPIEndpoint = "MATICVIGIL_INTERNAL_API_ENDPOINT"
	EnvWSEndpoint          = "MATICVIGIL_WS_ENDPOINT"
)

//go:embed defaults.yaml
var defaultsFile []byte

// Settings is the content of settings.json.
type Settings struct {
	PrivateKey          string `json:"PRIVATEKEY" yaml:"privatekey" validate:"omitempty,hexadecimal"`
	InternalAPIEndpoint string `json:"INTERNAL_API_ENDPOINT" yaml:"internal_api_endpoint" validate:"required,url"`
	RESTAPIEndpoint     string `json:"REST_API_ENDPOINT" yaml:"rest_api_endpoint" validate:"omitempty,url"`
	UserAddress         string `json:"MATICVIGIL_USER_ADDRESS" yaml:"user_address"`
	APIKey              string `json:"MATICVIGIL_API_KEY" yaml:"api_key"`
	WSEndpoint          string `json:"WS_ENDPOINT,omitempty" yaml:"ws_endpoint" validate:"omitempty,url"`
}

// Contract is a contract deployed or verified from the account.
type Contract struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	AppID   any    `json:"appId,omitempty"`
}

// Account is the login response, cached between runs.
type Account struct {
	Key        string          `json:"key"`
	ReadKey    string          `json:"readKey"`
	APIPrefix  string          `json:"api_prefix"`
	Contracts  []Contract      `json:"contracts"`
	Hooks      json.RawMessage `json:"hooks,omitempty"`
	HookEvents json.RawMessage `json:"hook_events,omitempty"`
	CachedTime string          `json:"cached_time,omitempty"`
}

// Defaults returns the clean slate settings.
func Defaults() (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(defaultsFile, &s); err != nil {
		return nil, fmt.Errorf("error parsing embedded defaults: %w", err)
	}
	return &s, nil
}

// DefaultDir is ~/.maticvigil.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error resolving home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Store reads and writes the files of one settings directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string {
	return s.dir
}

// Load reads settings.json. When it does not exist the directory is created
// and populated with the defaults, and created is true. A .env file in the
// working directory and the MATICVIGIL_* variables override file values.
func (s *Store) Load() (cfg *Settings, created bool, err error) {
	path := filepath.Join(s.dir, SettingsFile)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg, err = Defaults()
		if err != nil {
			return nil, false, err
		}
		if err := s.Save(cfg); err != nil {
			return nil, false, err
		}
		created = true
	case err != nil:
		return nil, false, fmt.Errorf("error reading settings: %w", err)
	default:
		cfg = &Settings{}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, false, fmt.Errorf("error parsing %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return cfg, created, nil
}

func (s *Store) Save(cfg *Settings) error {
	return s.writeJSON(SettingsFile, cfg)
}

// SaveAccount caches a login response, stamping it with the current time.
func (s *Store) SaveAccount(acct *Account, now time.Time) error {
	cached := *acct
	cached.CachedTime = now.Format(CachedTimeLayout)
	return s.writeJSON(AccountInfoFile, &cached)
}

func (s *Store) LoadAccount() (*Account, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, AccountInfoFile))
	if err != nil {
		return nil, fmt.Errorf("error reading cached account: %w", err)
	}
	var acct Account
	if err := json.Unmarshal(data, &acct); err != nil {
		return nil, fmt.Errorf("error parsing cached account: %w", err)
	}
	return &acct, nil
}

func (s *Store) writeJSON(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("error creating %s: %w", s.dir, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o600); err != nil {
		return fmt.Errorf("error writing %s: %w", name, err)
	}
	return nil
}

// Validate checks the endpoints and key format.
func (c *Settings) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// loadDotenv reads the given env files, .env by default. Missing files are
// skipped.
func loadDotenv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading env file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Settings) error {
	if err := loadDotenv(); err != nil {
		return err
	}

	if v := os.Getenv(EnvPrivateKey); v != "" {
		cfg.PrivateKey = v
	}
	if v := os.Getenv(EnvInternalAPIEndpoint); v != "" {
		cfg.InternalAPIEndpoint = v
	}
	if v := os.Getenv(EnvWSEndpoint); v != "" {
		cfg.WSEndpoint = v
	}
	return nil
}
