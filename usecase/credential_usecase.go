package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/crypto"
	"social-publisher/infrastructure/logger"

	"golang.org/x/oauth2"
)

// ICredentialVault keeps per-(user, platform) grants encrypted at rest.
type ICredentialVault interface {
	Store(ctx context.Context, userID string, platform model.Platform, grant model.TokenGrant, identity *model.Identity) error
	Load(ctx context.Context, userID string, platform model.Platform) (*model.Credential, error)
	Refresh(ctx context.Context, cred *model.Credential) (*model.Credential, error)
	Status(ctx context.Context, userID string, platform model.Platform) (*model.CredentialStatus, error)
}

type credentialVault struct {
	repo   repository.ICredential
	cipher *crypto.Cipher
	oauth  map[model.Platform]*oauth2.Config
	now    func() time.Time
}

// NewCredentialVault wires the vault. oauthConfigs is only used by Refresh and may be nil.
func NewCredentialVault(repo repository.ICredential, cipher *crypto.Cipher, oauthConfigs map[model.Platform]*oauth2.Config) ICredentialVault {
	if oauthConfigs == nil {
		oauthConfigs = map[model.Platform]*oauth2.Config{}
	}
	return &credentialVault{repo: repo, cipher: cipher, oauth: oauthConfigs, now: time.Now}
}

func (v *credentialVault) Store(ctx context.Context, userID string, platform model.Platform, grant model.TokenGrant, identity *model.Identity) error {
	if v.cipher == nil {
		return crypto.ErrNoKey
	}
	if userID == "" {
		return apperror.Validation("user id is required")
	}
	if grant.AccessToken == "" {
		return apperror.Validation("access token is required")
	}
	access, err := v.cipher.Encrypt(grant.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	rec := &model.CredentialRecord{
		UserID:            userID,
		Platform:          platform,
		AccessTokenCipher: access,
		ExpiresAt:         grant.ExpiresAt,
		Scopes:            grant.Scopes,
	}
	if grant.RefreshToken != "" {
		refresh, err := v.cipher.Encrypt(grant.RefreshToken)
		if err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
		rec.RefreshTokenCipher = &refresh
	}
	if identity != nil {
		rec.Identity = model.Identity{ProfileID: identity.ProfileID, ProfileName: identity.ProfileName}
		for _, t := range identity.Targets {
			if t.Token != "" {
				sealed, err := v.cipher.Encrypt(t.Token)
				if err != nil {
					return fmt.Errorf("encrypt target token: %w", err)
				}
				t.Token = sealed
			}
			rec.Identity.Targets = append(rec.Identity.Targets, t)
		}
	}
	if err := v.repo.Upsert(ctx, rec); err != nil {
		return err
	}
	logger.GetLogger().
		WithField("user_id", userID).
		WithField("platform", platform).
		WithField("targets", len(rec.Identity.Targets)).
		Info("credential stored")
	return nil
}

func (v *credentialVault) Load(ctx context.Context, userID string, platform model.Platform) (*model.Credential, error) {
	rec, err := v.repo.Get(ctx, userID, platform)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotAuthenticated(string(platform))
		}
		return nil, err
	}
	if v.cipher == nil {
		return nil, crypto.ErrNoKey
	}
	cred := &model.Credential{
		UserID:    rec.UserID,
		Platform:  rec.Platform,
		ExpiresAt: rec.ExpiresAt,
		Identity:  model.Identity{ProfileID: rec.Identity.ProfileID, ProfileName: rec.Identity.ProfileName},
	}
	if cred.AccessToken, err = v.cipher.Decrypt(rec.AccessTokenCipher); err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	if rec.RefreshTokenCipher != nil && *rec.RefreshTokenCipher != "" {
		if cred.RefreshToken, err = v.cipher.Decrypt(*rec.RefreshTokenCipher); err != nil {
			return nil, fmt.Errorf("decrypt refresh token: %w", err)
		}
	}
	for _, t := range rec.Identity.Targets {
		if t.Token != "" {
			if t.Token, err = v.cipher.Decrypt(t.Token); err != nil {
				return nil, fmt.Errorf("decrypt target token: %w", err)
			}
		}
		cred.Identity.Targets = append(cred.Identity.Targets, t)
	}
	return cred, nil
}

// Refresh exchanges the refresh token for a new access token and stores the
// result. Without a refresh token or OAuth client it reports TokenExpired.
func (v *credentialVault) Refresh(ctx context.Context, cred *model.Credential) (*model.Credential, error) {
	conf, ok := v.oauth[cred.Platform]
	if cred.RefreshToken == "" || !ok || conf == nil || conf.ClientID == "" {
		return nil, apperror.TokenExpired(string(cred.Platform))
	}
	src := conf.TokenSource(ctx, &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       v.now().Add(-time.Minute),
	})
	tok, err := src.Token()
	if err != nil {
		logger.GetLogger().
			WithField("platform", cred.Platform).
			WithField("user_id", cred.UserID).
			WithField("error", err).
			Warn("token refresh failed")
		return nil, apperror.TokenExpired(string(cred.Platform))
	}
	grant := model.TokenGrant{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if grant.RefreshToken == "" {
		grant.RefreshToken = cred.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		grant.ExpiresAt = &exp
	}
	identity := cred.Identity
	if err := v.Store(ctx, cred.UserID, cred.Platform, grant, &identity); err != nil {
		return nil, err
	}
	refreshed := *cred
	refreshed.AccessToken = grant.AccessToken
	refreshed.RefreshToken = grant.RefreshToken
	refreshed.ExpiresAt = grant.ExpiresAt
	return &refreshed, nil
}

func (v *credentialVault) Status(ctx context.Context, userID string, platform model.Platform) (*model.CredentialStatus, error) {
	rec, err := v.repo.Get(ctx, userID, platform)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return &model.CredentialStatus{Platform: platform}, nil
		}
		return nil, err
	}
	status := &model.CredentialStatus{
		Platform:  platform,
		Connected: true,
		ExpiresAt: rec.ExpiresAt,
		ProfileID: rec.Identity.ProfileID,
		UpdatedAt: &rec.UpdatedAt,
	}
	status.Expired = rec.ExpiresAt != nil && !rec.ExpiresAt.After(v.now())
	for _, t := range rec.Identity.Targets {
		t.Token = ""
		status.Targets = append(status.Targets, t)
	}
	return status, nil
}
