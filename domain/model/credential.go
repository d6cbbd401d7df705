package model

import (
	"strings"
	"time"
)

type Platform string

const (
	PlatformLinkedIn  Platform = "linkedin"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
)

var Platforms = []Platform{PlatformLinkedIn, PlatformFacebook, PlatformInstagram}

// ParsePlatform lower-cases p and reports whether it is supported.
func ParsePlatform(p string) (Platform, bool) {
	v := Platform(strings.ToLower(strings.TrimSpace(p)))
	for _, known := range Platforms {
		if v == known {
			return v, true
		}
	}
	return "", false
}

// CredentialRecord is the persisted form of a per-(user, platform) OAuth
// grant. Every token field holds ciphertext.
type CredentialRecord struct {
	ID                 int64      `json:"id"`
	UserID             string     `json:"user_id"`
	Platform           Platform   `json:"platform"`
	AccessTokenCipher  string     `json:"-"`
	RefreshTokenCipher *string    `json:"-"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	Scopes             string     `json:"scopes"`
	Identity           Identity   `json:"identity"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Identity describes who the grant belongs to and what it may post as.
type Identity struct {
	ProfileID   string          `json:"profile_id"`
	ProfileName string          `json:"profile_name,omitempty"`
	Targets     []ManagedTarget `json:"targets,omitempty"`
}

// ManagedTarget is an organization, page or business account reachable
// through the grant. Token is ciphertext inside a CredentialRecord and
// plaintext inside a Credential.
type ManagedTarget struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Kind     string `json:"kind"` // organization | page | instagram_business
	ParentID string `json:"parent_id,omitempty"`
	Token    string `json:"token,omitempty"`
}

// TokenGrant is what an OAuth exchange hands to the vault.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	Scopes       string
}

// Credential is the decrypted, short-lived view of a CredentialRecord.
// It is built right before an adapter call and must not be stored.
type Credential struct {
	UserID       string
	Platform     Platform
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	Identity     Identity
}

func (c *Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// Target returns the managed target with the given id. An empty id selects
// the first target.
func (c *Credential) Target(id string) (ManagedTarget, bool) {
	if len(c.Identity.Targets) == 0 {
		return ManagedTarget{}, false
	}
	if id == "" {
		return c.Identity.Targets[0], true
	}
	for _, t := range c.Identity.Targets {
		if t.ID == id {
			return t, true
		}
	}
	return ManagedTarget{}, false
}

// CredentialStatus is the token-free view returned to callers.
type CredentialStatus struct {
	Platform  Platform        `json:"platform"`
	Connected bool            `json:"connected"`
	Expired   bool            `json:"expired"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	ProfileID string          `json:"profile_id,omitempty"`
	Targets   []ManagedTarget `json:"targets,omitempty"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}
