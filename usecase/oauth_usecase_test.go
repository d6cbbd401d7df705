package usecase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/configuration"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTokenServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"li-access","refresh_token":"li-refresh","expires_in":5184000,"scope":"openid,w_member_social"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOAuthConfigs_SkipsUnconfigured(t *testing.T) {
	configs := OAuthConfigs(configuration.OAuth{
		LinkedIn: configuration.OAuthClient{ClientID: "li", RedirectURI: "http://localhost/auth/linkedin/callback", Scopes: []string{"openid"}},
	})

	require.Contains(t, configs, model.PlatformLinkedIn)
	assert.NotContains(t, configs, model.PlatformFacebook)
	assert.Equal(t, "http://localhost/auth/linkedin/callback", configs[model.PlatformLinkedIn].RedirectURL)
}

func TestOAuth_CompleteStoresCredential(t *testing.T) {
	srv := newTokenServer(t)
	vault, _ := newTestVault(t)
	adapter := newMockAdapter(model.PlatformLinkedIn, 9)
	adapter.On("ResolveIdentity", mock.Anything, "li-access").Return(&model.Identity{
		ProfileID: "abc",
		Targets:   []model.ManagedTarget{{ID: "123", Kind: "organization"}},
	}, nil).Once()

	uc := NewOAuthUsecase(map[model.Platform]*oauth2.Config{
		model.PlatformLinkedIn: {ClientID: "id", ClientSecret: "s", RedirectURL: "http://localhost/cb", Endpoint: oauth2.Endpoint{AuthURL: srv.URL + "/authorize", TokenURL: srv.URL + "/token"}},
	}, map[model.Platform]repository.IPlatformAdapter{model.PlatformLinkedIn: adapter}, vault)

	authURL, state, err := uc.AuthURL("user-1", model.PlatformLinkedIn)
	require.NoError(t, err)
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, state, u.Query().Get("state"))

	status, err := uc.Complete(context.Background(), model.PlatformLinkedIn, "good-code", state)
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, "abc", status.ProfileID)

	cred, err := vault.Load(context.Background(), "user-1", model.PlatformLinkedIn)
	require.NoError(t, err)
	assert.Equal(t, "li-access", cred.AccessToken)
	assert.Equal(t, "li-refresh", cred.RefreshToken)

	_, err = uc.Complete(context.Background(), model.PlatformLinkedIn, "good-code", state)
	require.ErrorIs(t, err, apperror.ErrValidation, "state is single use")
	adapter.AssertExpectations(t)
}

func TestOAuth_CompleteRejectsForeignState(t *testing.T) {
	srv := newTokenServer(t)
	vault, _ := newTestVault(t)
	conf := &oauth2.Config{ClientID: "id", Endpoint: oauth2.Endpoint{AuthURL: srv.URL, TokenURL: srv.URL}}
	uc := NewOAuthUsecase(map[model.Platform]*oauth2.Config{
		model.PlatformLinkedIn: conf,
		model.PlatformFacebook: conf,
	}, map[model.Platform]repository.IPlatformAdapter{
		model.PlatformLinkedIn: newMockAdapter(model.PlatformLinkedIn, 9),
		model.PlatformFacebook: newMockAdapter(model.PlatformFacebook, 10),
	}, vault)

	_, state, err := uc.AuthURL("user-1", model.PlatformLinkedIn)
	require.NoError(t, err)

	_, err = uc.Complete(context.Background(), model.PlatformFacebook, "good-code", state)
	require.ErrorIs(t, err, apperror.ErrValidation)
	_, err = uc.Complete(context.Background(), model.PlatformLinkedIn, "good-code", "made-up")
	require.ErrorIs(t, err, apperror.ErrValidation)
}

func TestOAuth_AuthURLRequiresConfiguredPlatform(t *testing.T) {
	vault, _ := newTestVault(t)
	uc := NewOAuthUsecase(map[model.Platform]*oauth2.Config{}, nil, vault)

	_, _, err := uc.AuthURL("user-1", model.PlatformInstagram)
	require.ErrorIs(t, err, apperror.ErrValidation)
}
