package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	defaultEndpoint = "http://localhost:8480"
	endpointEnv     = "VAULTCTL_ENDPOINT"
	tokenEnv        = "VAULTCTL_TOKEN"
)

// profile is the persisted CLI connection settings.
type profile struct {
	Endpoint string `toml:"Endpoint"`
	Token    string `toml:"Token"`
}

func defaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vaultctl.toml"
	}
	return filepath.Join(home, ".vaultctl.toml")
}

// loadProfile reads path, tolerating a missing file, and applies environment
// overrides.
func loadProfile(path string) (profile, error) {
	var p profile
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &p); err != nil {
				return p, err
			}
		} else if !os.IsNotExist(err) {
			return p, err
		}
	}
	if value := strings.TrimSpace(os.Getenv(endpointEnv)); value != "" {
		p.Endpoint = value
	}
	if value := strings.TrimSpace(os.Getenv(tokenEnv)); value != "" {
		p.Token = value
	}
	p.Endpoint = strings.TrimRight(strings.TrimSpace(p.Endpoint), "/")
	if p.Endpoint == "" {
		p.Endpoint = defaultEndpoint
	}
	return p, nil
}

func saveProfile(path string, p profile) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(p)
}
