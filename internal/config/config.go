// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads and persists Riskledger configuration. Viper handles
// file, environment and flag sources; go-yaml writes the default file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Database DatabaseConfig      `mapstructure:"database" yaml:"database"`
	Backup   BackupConfig        `mapstructure:"backup" yaml:"backup"`
	Restore  RestoreConfig       `mapstructure:"restore" yaml:"restore"`
	Modules  map[string][]string `mapstructure:"modules" yaml:"modules,omitempty"`
	LogLevel string              `mapstructure:"log_level" yaml:"log_level"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Type string `mapstructure:"type" yaml:"type"`
	Dsn  string `mapstructure:"dsn" yaml:"dsn"`
}

// BackupConfig controls where and how artifacts are written.
type BackupConfig struct {
	Dir             string `mapstructure:"dir" yaml:"dir"`
	Compression     string `mapstructure:"compression" yaml:"compression"`
	IncludeAuditLog bool   `mapstructure:"include_audit_log" yaml:"include_audit_log"`
	Keep            int    `mapstructure:"keep" yaml:"keep"`
	Schedule        string `mapstructure:"schedule" yaml:"schedule,omitempty"`
}

// RestoreConfig holds restore-time settings.
type RestoreConfig struct {
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`
}

// AdminConfig designates the administrative account whose credential may be
// reset by a restore.
type AdminConfig struct {
	Type          string `mapstructure:"type" yaml:"type"`
	MatchField    string `mapstructure:"match_field" yaml:"match_field"`
	MatchValue    string `mapstructure:"match_value" yaml:"match_value"`
	PasswordField string `mapstructure:"password_field" yaml:"password_field"`
}

// Defaults returns the baseline key/value defaults handed to LoadConfig.
func Defaults() map[string]any {
	return map[string]any{
		"database.type":                "sqlite",
		"database.dsn":                 "./riskledger.db",
		"backup.dir":                   "./backups",
		"backup.compression":           "gzip",
		"backup.include_audit_log":     true,
		"backup.keep":                  0,
		"restore.admin.type":           "User",
		"restore.admin.match_field":    "role",
		"restore.admin.match_value":    "admin",
		"restore.admin.password_field": "password_hash",
		"log_level":                    "info",
	}
}

// getConfigPath returns the full path for the configuration file.
func getConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "Riskledger")
		default:
			configDir = "/etc/riskledger"
		}
	} else {
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "riskledger")
	}

	return filepath.Join(configDir, "riskledger.yaml"), nil
}

// LoadConfig reads configuration into T. Precedence, highest first: changed
// flags in bindings, environment (RISKLEDGER_*), the explicit config file or
// the first riskledger.yaml found, defaults.
//
// bindings maps config keys (e.g. "database.dsn") to flag names on cmd.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, configFile *string, bindings map[string]string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("riskledger")
	v.SetConfigType("yaml")

	if configFile != nil && *configFile != "" {
		v.SetConfigFile(*configFile)
	}

	if userConfigPath, err := getConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := getConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; a malformed one is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return c, err
			}
		}
	}

	v.SetEnvPrefix("riskledger")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for key, flagName := range bindings {
			flag := cmd.Flags().Lookup(flagName)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return c, fmt.Errorf("bind flag %s: %w", flagName, err)
			}
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}

// WriteConfigFile writes c as YAML to path, creating parent directories.
// An empty path selects the user (or system) default location.
func WriteConfigFile[T any](c *T, path string, system bool) (string, error) {
	if path == "" {
		p, err := getConfigPath(system)
		if err != nil {
			return "", err
		}
		path = p
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	// 0600: the DSN may carry credentials.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
