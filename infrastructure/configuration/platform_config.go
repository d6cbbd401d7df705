package configuration

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Platform struct {
	GraphVersion           string           `json:"graphVersion"`
	MetadataTimeoutSeconds int              `json:"metadataTimeoutSeconds"`
	UploadTimeoutSeconds   int              `json:"uploadTimeoutSeconds"`
	LinkedIn               PlatformEndpoint `json:"linkedin"`
	Facebook               PlatformEndpoint `json:"facebook"`
	Instagram              PlatformEndpoint `json:"instagram"`
}

type PlatformEndpoint struct {
	BaseURL string `json:"baseURL"`
	// MaxMedia caps carousel size; zero means the platform default.
	MaxMedia int `json:"maxMedia"`
	// RatePerSecond and Burst feed the outbound limiter.
	RatePerSecond float64 `json:"ratePerSecond"`
	Burst         int     `json:"burst"`
}

func (p Platform) MetadataTimeout() time.Duration {
	return time.Duration(p.MetadataTimeoutSeconds) * time.Second
}

func (p Platform) UploadTimeout() time.Duration {
	return time.Duration(p.UploadTimeoutSeconds) * time.Second
}

func (s Scheduler) MissedGrace() time.Duration {
	return time.Duration(s.MissedGraceSeconds) * time.Second
}

func (s Scheduler) ExecutionTimeout() time.Duration {
	return time.Duration(s.ExecutionTimeoutSeconds) * time.Second
}

func (s Scheduler) LockTTL() time.Duration {
	return time.Duration(s.LockTTLSeconds) * time.Second
}

// Location falls back to UTC for an unknown zone name.
func (s Scheduler) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}

func initPlatform(C *Config) {
	p := &C.Platform
	if p.GraphVersion == "" {
		p.GraphVersion = getEnv("GRAPH_API_VERSION", "v19.0")
	}
	if p.MetadataTimeoutSeconds == 0 {
		p.MetadataTimeoutSeconds = 30
	}
	if p.UploadTimeoutSeconds == 0 {
		p.UploadTimeoutSeconds = 5 * 60
	}
	fillEndpoint(&p.LinkedIn, "https://api.linkedin.com", 9)
	fillEndpoint(&p.Facebook, "https://graph.facebook.com", 10)
	fillEndpoint(&p.Instagram, "https://graph.facebook.com", 10)

	scheme := "http"
	if C.App.TLSEnabled {
		scheme = "https"
	}
	fillOAuthClient(&C.OAuth.LinkedIn, "LINKEDIN", fmt.Sprintf("%s://localhost:%d/auth/linkedin/callback", scheme, C.App.Port))
	fillOAuthClient(&C.OAuth.Facebook, "FACEBOOK", fmt.Sprintf("%s://localhost:%d/auth/facebook/callback", scheme, C.App.Port))
	fillOAuthClient(&C.OAuth.Instagram, "INSTAGRAM", fmt.Sprintf("%s://localhost:%d/auth/instagram/callback", scheme, C.App.Port))
	// Instagram Business publishing rides on the Facebook app.
	if C.OAuth.Instagram.ClientID == "" {
		C.OAuth.Instagram.ClientID = C.OAuth.Facebook.ClientID
		C.OAuth.Instagram.ClientSecret = C.OAuth.Facebook.ClientSecret
	}
	if len(C.OAuth.LinkedIn.Scopes) == 0 {
		C.OAuth.LinkedIn.Scopes = []string{"openid", "profile", "w_member_social", "w_organization_social", "r_organization_social"}
	}
	if len(C.OAuth.Facebook.Scopes) == 0 {
		C.OAuth.Facebook.Scopes = []string{"pages_show_list", "pages_manage_posts", "pages_read_engagement"}
	}
	if len(C.OAuth.Instagram.Scopes) == 0 {
		C.OAuth.Instagram.Scopes = []string{"instagram_basic", "instagram_content_publish", "pages_show_list", "pages_read_engagement"}
	}
}

func fillEndpoint(e *PlatformEndpoint, baseURL string, maxMedia int) {
	if e.BaseURL == "" {
		e.BaseURL = baseURL
	}
	if e.MaxMedia == 0 {
		e.MaxMedia = maxMedia
	}
	if e.RatePerSecond == 0 {
		e.RatePerSecond = 5
	}
	if e.Burst == 0 {
		e.Burst = 5
	}
}

func fillOAuthClient(c *OAuthClient, prefix, defaultRedirect string) {
	c.ClientID = getConfigValue(c.ClientID, prefix+"_CLIENT_ID", "")
	c.ClientSecret = getConfigValue(c.ClientSecret, prefix+"_CLIENT_SECRET", "")
	c.RedirectURI = getConfigValue(c.RedirectURI, prefix+"_REDIRECT_URL", defaultRedirect)
}

// getConfigValue prefers the environment, then a non-placeholder config value, then the default.
func getConfigValue(configValue, envKey, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if configValue != "" && !strings.HasPrefix(configValue, "YOUR_") {
		return configValue
	}
	return defaultValue
}
