package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "easywifi"
	configFile = "config.yaml"

	// CredentialsFile is the default record name inside the config directory.
	CredentialsFile = "WifiCredentials"

	maxAccessPointName = 31
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

var (
	validIndicators = []string{"log", "terminal", "sysfs"}
	validRadios     = []string{"nmcli", "simulator"}
	validLogLevels  = []string{"", "debug", "info", "warn", "error"}
)

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/easywifi or $HOME/.config/easywifi
//   - macOS: $HOME/.config/easywifi (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\easywifi
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", appName)

	default:
		// Linux and other Unix-like systems: Use XDG_CONFIG_HOME or $HOME/.config
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetConfigPath returns the full path to the configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load reads the configuration at path, or at GetConfigPath when path is
// empty. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		cfg.applyPathDefaults(filepath.Dir(path))
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data, filepath.Dir(path))
}

// Parse decodes YAML over the defaults. dir anchors relative paths.
func Parse(data []byte, dir string) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported config version: %d (expected 1)", cfg.Version)
	}

	if cfg.Devices == nil {
		cfg.Devices = make(map[string]*Device)
	}
	cfg.applyPathDefaults(dir)

	return cfg, nil
}

func (c *Config) applyPathDefaults(dir string) {
	if c.Credentials.Path == "" {
		c.Credentials.Path = filepath.Join(dir, CredentialsFile)
	} else if !filepath.IsAbs(c.Credentials.Path) {
		c.Credentials.Path = filepath.Join(dir, c.Credentials.Path)
	}
}

// Validate checks the configuration for values the provisioner cannot use.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.AccessPoint.Name == "" {
		add("access_point.name must not be empty")
	}
	if len(c.AccessPoint.Name) > maxAccessPointName {
		add("access_point.name is %d bytes (max %d)", len(c.AccessPoint.Name), maxAccessPointName)
	}
	if c.AccessPoint.Channel < 1 || c.AccessPoint.Channel > 14 {
		add("access_point.channel %d out of range 1-14", c.AccessPoint.Channel)
	}
	if c.Credentials.Seed < 0 {
		add("credentials.seed must be non-negative, got %d", c.Credentials.Seed)
	}
	if !oneOf(c.Indicator.Backend, validIndicators) {
		add("indicator.backend %q must be one of %s", c.Indicator.Backend, strings.Join(validIndicators, ", "))
	}
	if c.Indicator.Backend == "sysfs" && c.Indicator.Red == "" && c.Indicator.Green == "" && c.Indicator.Blue == "" {
		add("indicator.backend sysfs needs at least one of red, green, blue")
	}
	if !oneOf(c.Radio.Backend, validRadios) {
		add("radio.backend %q must be one of %s", c.Radio.Backend, strings.Join(validRadios, ", "))
	}
	if c.Radio.Backend == "nmcli" && c.Radio.Interface == "" {
		add("radio.interface is required for the nmcli backend")
	}
	for name, port := range map[string]int{
		"portal.http_port": c.Portal.HTTPPort,
		"portal.dns_port":  c.Portal.DNSPort,
		"announce.port":    c.Announce.Port,
	} {
		if port < 1 || port > 65535 {
			add("%s %d out of range", name, port)
		}
	}
	if c.Portal.Tick < 0 || c.Portal.ClientTimeout < 0 {
		add("portal durations must not be negative")
	}
	if !oneOf(c.LogLevel, validLogLevels) {
		add("log_level %q must be one of debug, info, warn, error", c.LogLevel)
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Marshal encodes the configuration with the file header.
func (c *Config) Marshal(location string) ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# EasyWiFi Configuration File
#
# Security Note: the Wi-Fi password is never stored here. It lives in the
# credentials record, see credentials.path.
#
# Location: ` + location + `

`)
	return append(header, data...), nil
}

// Save writes the configuration to GetConfigPath.
func (c *Config) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return c.SaveTo(configPath)
}

// SaveTo writes the configuration to path.
// Performs an atomic write to prevent corruption on crash.
func (c *Config) SaveTo(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := c.Marshal(path)
	if err != nil {
		return err
	}

	// Write to temporary file first (atomic write)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}
