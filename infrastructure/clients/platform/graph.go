package platform

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
)

// GraphURL joins base, version and escaped path segments.
func GraphURL(base, version string, segments ...string) string {
	parts := []string{strings.TrimRight(base, "/")}
	if version != "" {
		parts = append(parts, version)
	}
	for _, s := range segments {
		parts = append(parts, url.PathEscape(s))
	}
	return strings.Join(parts, "/")
}

type GraphID struct {
	ID     string `json:"id"`
	PostID string `json:"post_id,omitempty"`
}

type tokenQuery struct {
	Fields      string `url:"fields,omitempty"`
	Limit       int    `url:"limit,omitempty"`
	AccessToken string `url:"access_token"`
}

type graphMe struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type GraphIGAccount struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// GraphPage is one entry of /me/accounts.
type GraphPage struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	AccessToken string          `json:"access_token"`
	Instagram   *GraphIGAccount `json:"instagram_business_account,omitempty"`
}

// GraphProfile fetches /me.
func (c *Client) GraphProfile(ctx context.Context, base, version, token string) (*model.Identity, error) {
	var me graphMe
	if err := c.GetJSON(ctx, apperror.StageIdentity, GraphURL(base, version, "me"), tokenQuery{Fields: "id,name", AccessToken: token}, nil, &me); err != nil {
		return nil, err
	}
	return &model.Identity{ProfileID: me.ID, ProfileName: me.Name}, nil
}

// GraphPages fetches the pages the user manages with their page-scoped tokens.
func (c *Client) GraphPages(ctx context.Context, base, version, token string) ([]GraphPage, error) {
	var out struct {
		Data []GraphPage `json:"data"`
	}
	q := tokenQuery{
		Fields:      "id,name,access_token,instagram_business_account{id,username}",
		Limit:       100,
		AccessToken: token,
	}
	if err := c.GetJSON(ctx, apperror.StageIdentity, GraphURL(base, version, "me", "accounts"), q, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

type exchangeQuery struct {
	GrantType       string `url:"grant_type"`
	ClientID        string `url:"client_id"`
	ClientSecret    string `url:"client_secret"`
	FbExchangeToken string `url:"fb_exchange_token"`
}

// GraphExchangeLongLived swaps a short-lived user token for a long-lived one.
// Page tokens fetched with a long-lived user token do not expire.
func (c *Client) GraphExchangeLongLived(ctx context.Context, base, version, clientID, clientSecret, shortLived string) (*model.TokenGrant, error) {
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	q := exchangeQuery{GrantType: "fb_exchange_token", ClientID: clientID, ClientSecret: clientSecret, FbExchangeToken: shortLived}
	if err := c.GetJSON(ctx, apperror.StageIdentity, GraphURL(base, version, "oauth", "access_token"), q, nil, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, apperror.PlatformAPI(string(c.platform), apperror.StageIdentity, http.StatusOK, "long-lived exchange returned no token")
	}
	grant := &model.TokenGrant{AccessToken: out.AccessToken}
	if out.ExpiresIn > 0 {
		exp := time.Now().Add(time.Duration(out.ExpiresIn) * time.Second).UTC()
		grant.ExpiresAt = &exp
	}
	return grant, nil
}
