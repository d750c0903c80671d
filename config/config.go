package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// MaxFileSize is the upload payload ceiling. Payloads above this are
// rejected before any remote call is made.
const MaxFileSize = 5 * 1024 * 1024 // 5MB

// Config holds the immutable process configuration
type Config struct {
	Server struct {
		Port int
	}
	GitHub struct {
		Owner  string
		Repo   string
		Branch string
		Token  string
	}
	Auth struct {
		URL      string
		CacheTTL time.Duration
	}
	Cleanup struct {
		Secret        string
		RetentionDays int
	}
}

var (
	v        *viper.Viper
	instance *Config
	once     sync.Once
)

func init() {
	v = viper.New()

	// Set default values
	v.SetDefault("server.port", 28080)
	v.SetDefault("github.branch", "main")
	v.SetDefault("auth.cache-ttl", "300s")
	v.SetDefault("cleanup.retention-days", 1)

	// Environment variables
	v.AutomaticEnv()
	v.BindEnv("server.port", "PORT")
	v.BindEnv("github.owner", "GITHUB_USERNAME")
	v.BindEnv("github.repo", "GITHUB_REPO")
	v.BindEnv("github.branch", "GITHUB_BRANCH")
	v.BindEnv("github.token", "GITHUB_TOKEN")
	v.BindEnv("auth.url", "RELAY_URL")
	v.BindEnv("cleanup.secret", "SECRET_TOKEN")
	v.BindEnv("cleanup.retention-days", "FILE_RETENTION_DAYS")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Look for config in the following paths
	configPaths := []string{
		".",
		"$HOME/.gitstash",
		"/etc/gitstash",
	}

	for _, path := range configPaths {
		v.AddConfigPath(os.ExpandEnv(path))
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			panic(fmt.Sprintf("Fatal error reading config file: %s", err))
		}
		// Config file not found; ignore error and use defaults
	}
}

// GetInstance returns the singleton configuration
func GetInstance() *Config {
	once.Do(func() {
		instance = &Config{}
		instance.Server.Port = v.GetInt("server.port")
		instance.GitHub.Owner = v.GetString("github.owner")
		instance.GitHub.Repo = v.GetString("github.repo")
		instance.GitHub.Branch = v.GetString("github.branch")
		instance.GitHub.Token = v.GetString("github.token")
		instance.Auth.URL = v.GetString("auth.url")
		instance.Auth.CacheTTL = v.GetDuration("auth.cache-ttl")
		instance.Cleanup.Secret = v.GetString("cleanup.secret")
		instance.Cleanup.RetentionDays = v.GetInt("cleanup.retention-days")
	})
	return instance
}

// Validate checks that required settings are present
func (c *Config) Validate() error {
	if c.GitHub.Owner == "" || c.GitHub.Repo == "" || c.GitHub.Token == "" {
		return fmt.Errorf("github.owner, github.repo and github.token are required")
	}
	if c.Auth.URL == "" {
		return fmt.Errorf("auth.url is required")
	}
	if c.Cleanup.Secret == "" {
		return fmt.Errorf("cleanup.secret is required")
	}
	if c.Cleanup.RetentionDays < 0 {
		return fmt.Errorf("cleanup.retention-days must be non-negative")
	}
	return nil
}
