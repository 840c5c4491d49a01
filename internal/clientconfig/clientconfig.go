// Package clientconfig reads and writes the client's human-editable
// configuration file (spec §6): `key = value` lines under the
// platform config directory for application "kanban". There is no
// library in the example corpus for this particular tiny format (it
// is deliberately hand-editable, not YAML/TOML/env), so the parser
// here is a justified standard-library leaf — see DESIGN.md.
package clientconfig

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lukechampine.com/blake3"
)

const appName = "kanban"

// Config is the client's local connection profile.
type Config struct {
	Endpoint string
	Username string
	Password string
}

// Path returns the config file's location under the platform config
// directory.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("clientconfig: locate config dir: %w", err)
	}
	return filepath.Join(dir, appName, "config.toml"), nil
}

// Load reads the config file at Path. A missing file is not an error:
// Load synthesizes and returns defaults per spec §6, leaving the
// caller to Save them on clean exit.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return Config{}, err
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return defaults()
	}
	if err != nil {
		return Config{}, fmt.Errorf("clientconfig: open %s: %w", path, err)
	}
	defer f.Close()

	cfg := Config{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "endpoint":
			cfg.Endpoint = value
		case "username":
			cfg.Username = value
		case "password":
			cfg.Password = value
		}
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("clientconfig: read %s: %w", path, err)
	}

	if cfg.Endpoint == "" || cfg.Username == "" || cfg.Password == "" {
		d, err := defaults()
		if err != nil {
			return Config{}, err
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = d.Endpoint
		}
		if cfg.Username == "" {
			cfg.Username = d.Username
		}
		if cfg.Password == "" {
			cfg.Password = d.Password
		}
	}
	return cfg, nil
}

// Save writes cfg atomically: to a temp file in the same directory,
// then renamed into place, so a crash mid-write never corrupts the
// previous config.
func (c Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("clientconfig: create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "config-*.tmp")
	if err != nil {
		return fmt.Errorf("clientconfig: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	fmt.Fprintf(tmp, "endpoint = %s\n", c.Endpoint)
	fmt.Fprintf(tmp, "username = %s\n", c.Username)
	fmt.Fprintf(tmp, "password = %s\n", c.Password)
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("clientconfig: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("clientconfig: rename into place: %w", err)
	}
	return nil
}

// defaults synthesizes the spec's default profile: endpoint [::1]:1120,
// username 名無し, password = lowercased hex of blake3 over 16 random
// bytes.
func defaults() (Config, error) {
	tail := make([]byte, 16)
	if _, err := rand.Read(tail); err != nil {
		return Config{}, fmt.Errorf("clientconfig: generate default password: %w", err)
	}
	sum := blake3.Sum256(tail)
	return Config{
		Endpoint: "[::1]:1120",
		Username: "名無し",
		Password: hex.EncodeToString(sum[:]),
	}, nil
}
