package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/afr-project/afr/pkg/transparency"
)

// RegistryProfile tunes jurisdiction-specific policy: which compliance
// templates gate a deployment and how aggressively registration is
// rate limited.
type RegistryProfile struct {
	Name              string                      `yaml:"name" json:"name"`
	RequiredTemplates []transparency.TemplateType `yaml:"required_templates" json:"required_templates"`
	Registration      RegistrationConfig          `yaml:"registration" json:"registration"`
	RateLimit         RateLimitConfig             `yaml:"rate_limit" json:"rate_limit"`
}

// RegistrationConfig caps party registrations per source IP.
type RegistrationConfig struct {
	MaxPerWindow  int    `yaml:"max_per_window" json:"max_per_window"`
	WindowSeconds int    `yaml:"window_seconds" json:"window_seconds"`
	CORSOrigins   string `yaml:"cors_origins,omitempty" json:"cors_origins,omitempty"`
}

// RateLimitConfig throttles overall API traffic per source IP.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" json:"rps"`
	Burst int     `yaml:"burst" json:"burst"`
}

// Window returns the registration window as a duration.
func (r RegistrationConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// DefaultProfile matches the behavior with no profile file present.
func DefaultProfile() *RegistryProfile {
	return &RegistryProfile{
		Name:              "default",
		RequiredTemplates: transparency.DefaultRequiredTemplates,
		Registration: RegistrationConfig{
			MaxPerWindow:  5,
			WindowSeconds: 60,
		},
		RateLimit: RateLimitConfig{
			RPS:   50,
			Burst: 100,
		},
	}
}

// LoadProfile reads a profile YAML. An empty path yields the defaults;
// missing or invalid fields fall back to them too.
func LoadProfile(path string) (*RegistryProfile, error) {
	profile := DefaultProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}

	if len(profile.RequiredTemplates) == 0 {
		profile.RequiredTemplates = transparency.DefaultRequiredTemplates
	}
	for _, tmpl := range profile.RequiredTemplates {
		if !tmpl.Valid() {
			return nil, fmt.Errorf("profile %q: unknown template %q", path, tmpl)
		}
	}
	if profile.Registration.MaxPerWindow <= 0 {
		profile.Registration.MaxPerWindow = 5
	}
	if profile.Registration.WindowSeconds <= 0 {
		profile.Registration.WindowSeconds = 60
	}
	if profile.RateLimit.RPS <= 0 {
		profile.RateLimit.RPS = 50
	}
	if profile.RateLimit.Burst <= 0 {
		profile.RateLimit.Burst = 100
	}
	return profile, nil
}
