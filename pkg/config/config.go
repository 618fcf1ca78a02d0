package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Profile selects a deployment target for the backend API.
type Profile string

const (
	ProfileDev   Profile = "dev"
	ProfileStage Profile = "stage"
	ProfileProd  Profile = "prod"
)

// APIPrefix is appended to every backend call.
const APIPrefix = "/api/v1"

var profileAPIFallback = map[Profile]string{
	ProfileDev:   "http://localhost:8000",
	ProfileStage: "http://localhost:18000",
	ProfileProd:  "/",
}

// NormalizeProfile maps free-form profile strings onto the closed profile set.
// Anything unrecognized falls back to dev.
func NormalizeProfile(raw string) Profile {
	switch strings.TrimSpace(raw) {
	case "stage":
		return ProfileStage
	case "prod", "production":
		return ProfileProd
	default:
		return ProfileDev
	}
}

// sanitizeAPIBase validates a base URL candidate. Absolute paths pass through
// unchanged; full URLs are reduced to origin+path with the trailing slash
// removed. Anything unparseable is rejected.
func sanitizeAPIBase(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "/") {
		return trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + strings.TrimRight(u.Path, "/")
}

// ResolveAPIBase picks the backend base URL: explicit runtime override first,
// then the configured base, then the profile default, then the origin fallback.
func ResolveAPIBase(runtimeBase, configuredBase string, profile Profile, originFallback string) string {
	if base := sanitizeAPIBase(runtimeBase); base != "" {
		return base
	}
	if base := sanitizeAPIBase(configuredBase); base != "" {
		return base
	}
	if base := sanitizeAPIBase(profileAPIFallback[profile]); base != "" {
		return base
	}
	if originFallback != "" {
		return originFallback
	}
	return "/"
}

// Config is the effective client configuration assembled by the CLI.
type Config struct {
	Profile Profile `json:"profile" yaml:"profile"`
	APIBase string  `json:"api_base" yaml:"api_base"`
	UseMock bool    `json:"use_mock" yaml:"use_mock"`
	LogLevel string `json:"log_level" yaml:"log_level"`
	LogJSON  bool   `json:"log_json" yaml:"log_json"`
}

// MockActive reports whether the offline mock branch should be taken.
// Mocks are dev-only and require the explicit opt-in on top of that.
func (c Config) MockActive() bool {
	return c.Profile == ProfileDev && c.UseMock
}

// BaseInfo renders the resolved target for display, e.g. "dev · http://localhost:8000/api/v1".
func (c Config) BaseInfo() string {
	return fmt.Sprintf("%s · %s%s", c.Profile, c.APIBase, APIPrefix)
}
