package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/configuration"
	"social-publisher/infrastructure/logger"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/linkedin"
)

const oauthStateTTL = 10 * time.Minute

// IOAuthUsecase runs the authorization-code flow that fills the vault.
type IOAuthUsecase interface {
	AuthURL(userID string, platform model.Platform) (authURL string, state string, err error)
	Complete(ctx context.Context, platform model.Platform, code, state string) (*model.CredentialStatus, error)
}

type longLivedExchanger interface {
	ExchangeLongLived(ctx context.Context, clientID, clientSecret, shortLived string) (*model.TokenGrant, error)
}

type oauthState struct {
	userID   string
	platform model.Platform
	expires  time.Time
}

type oauthUsecase struct {
	configs  map[model.Platform]*oauth2.Config
	adapters map[model.Platform]repository.IPlatformAdapter
	vault    ICredentialVault
	now      func() time.Time

	mu     sync.Mutex
	states map[string]oauthState
}

func NewOAuthUsecase(configs map[model.Platform]*oauth2.Config, adapters map[model.Platform]repository.IPlatformAdapter, vault ICredentialVault) IOAuthUsecase {
	return &oauthUsecase{
		configs:  configs,
		adapters: adapters,
		vault:    vault,
		now:      time.Now,
		states:   map[string]oauthState{},
	}
}

// OAuthConfigs builds the oauth2 clients for every configured platform.
// Instagram logins go through the Facebook dialog.
func OAuthConfigs(c configuration.OAuth) map[model.Platform]*oauth2.Config {
	out := map[model.Platform]*oauth2.Config{}
	add := func(p model.Platform, client configuration.OAuthClient, endpoint oauth2.Endpoint) {
		if client.ClientID == "" {
			return
		}
		out[p] = &oauth2.Config{
			ClientID:     client.ClientID,
			ClientSecret: client.ClientSecret,
			RedirectURL:  client.RedirectURI,
			Scopes:       client.Scopes,
			Endpoint:     endpoint,
		}
	}
	add(model.PlatformLinkedIn, c.LinkedIn, linkedin.Endpoint)
	add(model.PlatformFacebook, c.Facebook, facebook.Endpoint)
	add(model.PlatformInstagram, c.Instagram, facebook.Endpoint)
	return out
}

func (u *oauthUsecase) AuthURL(userID string, platform model.Platform) (string, string, error) {
	conf, ok := u.configs[platform]
	if !ok {
		return "", "", apperror.Validation(string(platform) + " oauth is not configured")
	}
	if userID == "" {
		return "", "", apperror.NotAuthenticated(string(platform))
	}
	state := uuid.NewString()
	now := u.now()
	u.mu.Lock()
	for k, s := range u.states {
		if now.After(s.expires) {
			delete(u.states, k)
		}
	}
	u.states[state] = oauthState{userID: userID, platform: platform, expires: now.Add(oauthStateTTL)}
	u.mu.Unlock()
	return conf.AuthCodeURL(state), state, nil
}

func (u *oauthUsecase) consumeState(state string, platform model.Platform) (string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	s, ok := u.states[state]
	if !ok {
		return "", false
	}
	delete(u.states, state)
	if u.now().After(s.expires) || s.platform != platform {
		return "", false
	}
	return s.userID, true
}

func (u *oauthUsecase) Complete(ctx context.Context, platform model.Platform, code, state string) (*model.CredentialStatus, error) {
	lg := logger.GetLogger().WithField("platform", platform)
	conf, ok := u.configs[platform]
	if !ok {
		return nil, apperror.Validation(string(platform) + " oauth is not configured")
	}
	adapter, ok := u.adapters[platform]
	if !ok {
		return nil, apperror.Validation("unsupported platform " + string(platform))
	}
	if code == "" {
		return nil, apperror.Validation("missing code")
	}
	userID, ok := u.consumeState(state, platform)
	if !ok {
		return nil, apperror.Validation("invalid or expired state")
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		lg.WithField("error", err).Error("oauth code exchange failed")
		return nil, apperror.PlatformAPI(string(platform), apperror.StageIdentity, 0, "code exchange failed")
	}
	grant := model.TokenGrant{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken, Scopes: strings.Join(conf.Scopes, ",")}
	if scope, _ := tok.Extra("scope").(string); scope != "" {
		grant.Scopes = scope
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		grant.ExpiresAt = &exp
	}
	if ll, ok := adapter.(longLivedExchanger); ok {
		long, err := ll.ExchangeLongLived(ctx, conf.ClientID, conf.ClientSecret, grant.AccessToken)
		if err != nil {
			return nil, err
		}
		grant.AccessToken = long.AccessToken
		grant.ExpiresAt = long.ExpiresAt
	}

	identity, err := adapter.ResolveIdentity(ctx, grant.AccessToken)
	if err != nil {
		return nil, err
	}
	if err := u.vault.Store(ctx, userID, platform, grant, identity); err != nil {
		return nil, err
	}
	lg.WithField("user_id", userID).WithField("targets", len(identity.Targets)).Info("platform connected")
	return u.vault.Status(ctx, userID, platform)
}
