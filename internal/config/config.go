package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nzaccagnino/notesync/internal/channel"
	"github.com/nzaccagnino/notesync/internal/model"
)

const (
	DefaultCollectionTitle = "Default Collection"
	DefaultServer          = "http://localhost:5689"
)

var (
	ErrDuplicateCollection = errors.New("collection already exists")
	ErrUnknownCollection   = errors.New("unknown collection")
)

type ReconnectConfig struct {
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	MaxRetries     int           `yaml:"max_retries"`
}

type Config struct {
	Language           string             `yaml:"language"`
	LogFile            string             `yaml:"log_file"`
	LogLevel           string             `yaml:"log_level"`
	PollInterval       time.Duration      `yaml:"poll_interval"`
	ContentSearch      bool               `yaml:"content_search"`
	SelectedCollection string             `yaml:"selected_collection"`
	Collections        []model.Collection `yaml:"collections"`
	Reconnect          ReconnectConfig    `yaml:"reconnect"`
}

func Default() *Config {
	s := channel.DefaultSettings()
	return &Config{
		Language:           "en",
		LogFile:            filepath.Join(configDir(), "notesync.log"),
		LogLevel:           "info",
		PollInterval:       5 * time.Second,
		SelectedCollection: DefaultCollectionTitle,
		Collections: []model.Collection{{
			Title:  DefaultCollectionTitle,
			Name:   DefaultCollectionTitle,
			Server: DefaultServer,
		}},
		Reconnect: ReconnectConfig{
			InitialBackoff: s.InitialBackoff,
			MaxBackoff:     s.MaxBackoff,
			MaxRetries:     s.MaxRetries,
		},
	}
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "notesync")
}

func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yml")
}

func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if len(cfg.Collections) == 0 {
		cfg.Collections = Default().Collections
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.LogFile != "" && cfg.LogFile[0] == '~' {
		home, _ := os.UserHomeDir()
		cfg.LogFile = filepath.Join(home, cfg.LogFile[1:])
	}

	return cfg, nil
}

func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Selected returns the active collection, falling back to the first one
// when SelectedCollection names nothing known.
func (c *Config) Selected() model.Collection {
	if col, ok := c.CollectionByTitle(c.SelectedCollection); ok {
		return col
	}
	if len(c.Collections) > 0 {
		return c.Collections[0]
	}
	return Default().Collections[0]
}

func (c *Config) CollectionByTitle(title string) (model.Collection, bool) {
	for _, col := range c.Collections {
		if model.SameTitle(col.Title, title) {
			return col, true
		}
	}
	return model.Collection{}, false
}

func (c *Config) AddCollection(col model.Collection) error {
	col.Title = strings.TrimSpace(col.Title)
	if col.Title == "" {
		return fmt.Errorf("collection title required")
	}
	if _, ok := c.CollectionByTitle(col.Title); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCollection, col.Title)
	}
	if col.Name == "" {
		col.Name = col.Title
	}
	if col.Server == "" {
		col.Server = DefaultServer
	}
	c.Collections = append(c.Collections, col)
	return nil
}

func (c *Config) RemoveCollection(title string) error {
	for i, col := range c.Collections {
		if model.SameTitle(col.Title, title) {
			c.Collections = append(c.Collections[:i], c.Collections[i+1:]...)
			if model.SameTitle(c.SelectedCollection, title) {
				c.SelectedCollection = ""
				if len(c.Collections) > 0 {
					c.SelectedCollection = c.Collections[0].Title
				}
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownCollection, title)
}

func (c *Config) Select(title string) error {
	col, ok := c.CollectionByTitle(title)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, title)
	}
	c.SelectedCollection = col.Title
	return nil
}

// ChannelSettings applies the reconnect overrides to the channel defaults.
func (c *Config) ChannelSettings() channel.Settings {
	s := channel.DefaultSettings()
	if c.Reconnect.InitialBackoff > 0 {
		s.InitialBackoff = c.Reconnect.InitialBackoff
	}
	if c.Reconnect.MaxBackoff > 0 {
		s.MaxBackoff = c.Reconnect.MaxBackoff
	}
	if c.Reconnect.MaxRetries != 0 {
		s.MaxRetries = c.Reconnect.MaxRetries
	}
	return s
}
