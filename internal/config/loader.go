package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".bannerscan"

// xdgConfigFile is the file name inside the XDG config directory.
const xdgConfigFile = "config.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the parsed .bannerscan file.
//
// Example:
//
//	defaults:
//	  concurrency: 128
//	  rate: 200
//	  overall_timeout: 6s
//	  mode: active
//	ports:
//	  2222: ssh
//	  8025: smtp
type File struct {
	// Defaults uses the same keys as the scan flags.
	Defaults FileDefaults `yaml:"defaults"`

	// Ports maps extra ports to protocol names.
	Ports map[uint16]string `yaml:"ports"`
}

// FileDefaults holds the overridable scan settings. Zero values are treated
// as "not set" and leave the built-in default in place.
type FileDefaults struct {
	Concurrency       int           `yaml:"concurrency"`
	Rate              int           `yaml:"rate"`
	Burst             int           `yaml:"burst"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	OverallTimeout    time.Duration `yaml:"overall_timeout"`
	MaxBytes          int           `yaml:"max_bytes"`
	Mode              string        `yaml:"mode"`
	Protocol          string        `yaml:"protocol"`
	EHLOName          string        `yaml:"ehlo_name"`
	Format            string        `yaml:"format"`
	OutputFile        string        `yaml:"output_file"`
	DB                string        `yaml:"db"`
	Proxy             string        `yaml:"proxy"`
	Tor               *bool         `yaml:"tor"`
	TorStartupTimeout time.Duration `yaml:"tor_timeout"`
	PortFilter        int           `yaml:"port_filter"`
	Verbose           *bool         `yaml:"verbose"`
}

// LoadConfigFile loads a .bannerscan file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if cf.Ports == nil {
		cf.Ports = make(map[uint16]string)
	}

	return &cf, nil
}

// Apply copies every value set in the file onto cfg.
// Port mappings are merged; file entries replace existing ones.
func (f *File) Apply(cfg *Config) {
	d := f.Defaults

	setInt(&cfg.Concurrency, d.Concurrency)
	setInt(&cfg.Rate, d.Rate)
	setInt(&cfg.Burst, d.Burst)
	setInt(&cfg.MaxBytes, d.MaxBytes)
	setInt(&cfg.PortFilter, d.PortFilter)

	setDuration(&cfg.ConnectTimeout, d.ConnectTimeout)
	setDuration(&cfg.ReadTimeout, d.ReadTimeout)
	setDuration(&cfg.OverallTimeout, d.OverallTimeout)
	setDuration(&cfg.TorStartupTimeout, d.TorStartupTimeout)

	setString(&cfg.Mode, d.Mode)
	setString(&cfg.Protocol, d.Protocol)
	setString(&cfg.EHLOName, d.EHLOName)
	setString(&cfg.Format, d.Format)
	setString(&cfg.OutputFile, d.OutputFile)
	setString(&cfg.DBPath, d.DB)
	setString(&cfg.Proxy, d.Proxy)

	if d.Tor != nil {
		cfg.Tor = *d.Tor
	}
	if d.Verbose != nil {
		cfg.Verbose = *d.Verbose
	}

	if len(f.Ports) > 0 && cfg.Ports == nil {
		cfg.Ports = make(map[uint16]string, len(f.Ports))
	}
	for port, name := range f.Ports {
		cfg.Ports[port] = name
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// FindConfigFile searches for the configuration file in the following order:
//  1. If configPath is specified, use it directly
//  2. Look for .bannerscan in the current directory
//  3. Look for config.yaml in the XDG config directory (~/.config/bannerscan)
//  4. Look for .bannerscan in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return findConfigFile(configPath, cwd, filepath.Join(xdg.ConfigHome, AppName), home)
}

// findConfigFile implements FindConfigFile over explicit directories.
// Empty directories are skipped.
func findConfigFile(configPath, cwd, configDir, home string) string {
	if configPath != "" {
		if fileExists(configPath) {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd != "" {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if configDir != "" {
		candidates = append(candidates, filepath.Join(configDir, xdgConfigFile))
	}
	if home != "" {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, c := range candidates {
		if fileExists(c) {
			return c
		}
	}
	return ""
}

// fileExists reports whether path names a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
