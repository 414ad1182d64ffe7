package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed bootstraps a fresh database with one organization and one admin
// account so the portal is reachable on first boot.
type Seed struct {
	Organization SeedOrganization `yaml:"organization"`
	Admin        SeedAdmin        `yaml:"admin"`
	Flags        []SeedFlag       `yaml:"flags,omitempty"`
}

type SeedOrganization struct {
	Name string `yaml:"name"`
	Slug string `yaml:"slug"`
}

type SeedAdmin struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
}

type SeedFlag struct {
	Name       string   `yaml:"name"`
	Enabled    bool     `yaml:"enabled"`
	EnabledFor []string `yaml:"enabled_for,omitempty"`
}

func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	if seed.Admin.Email == "" || seed.Admin.Password == "" {
		return nil, fmt.Errorf("seed file %s: admin email and password are required", path)
	}
	if seed.Organization.Slug == "" {
		return nil, fmt.Errorf("seed file %s: organization slug is required", path)
	}
	return &seed, nil
}
