package facebook

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/infrastructure/clients/platform"
)

type Config struct {
	BaseURL      string
	GraphVersion string
	MaxMedia     int
}

// Client publishes to Facebook Pages. Text, single photo and multi-photo
// posts each take a different Graph API path.
type Client struct {
	cfg       Config
	transport *platform.Client
}

func NewFacebookClient(cfg Config, transport *platform.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com"
	}
	if cfg.GraphVersion == "" {
		cfg.GraphVersion = "v19.0"
	}
	if cfg.MaxMedia <= 0 {
		cfg.MaxMedia = 10
	}
	return &Client{cfg: cfg, transport: transport}
}

func (c *Client) Platform() model.Platform { return model.PlatformFacebook }

func (c *Client) MaxMedia() int { return c.cfg.MaxMedia }

func (c *Client) Validate(req *model.PublishRequest) error {
	if len(req.Media) > c.cfg.MaxMedia {
		return apperror.TooManyMediaItems(string(model.PlatformFacebook), len(req.Media), c.cfg.MaxMedia)
	}
	if len(req.Media) == 0 && req.Caption() == "" {
		return apperror.EmptyPost(string(model.PlatformFacebook), "nothing to post")
	}
	return nil
}

type feedParams struct {
	Message       string        `url:"message,omitempty"`
	AttachedMedia attachedMedia `url:"attached_media,omitempty"`
	AccessToken   string        `url:"access_token"`
}

type photoParams struct {
	URL         string `url:"url"`
	Caption     string `url:"caption,omitempty"`
	Published   *bool  `url:"published,omitempty"`
	AccessToken string `url:"access_token"`
}

// attachedMedia encodes as attached_media[i]={"media_fbid":"<id>"}.
type attachedMedia []string

func (a attachedMedia) EncodeValues(key string, v *url.Values) error {
	for i, id := range a {
		v.Set(fmt.Sprintf("%s[%d]", key, i), fmt.Sprintf(`{"media_fbid":%q}`, id))
	}
	return nil
}

func (c *Client) Publish(ctx context.Context, req *model.PublishRequest, cred *model.Credential) (string, error) {
	if err := c.Validate(req); err != nil {
		return "", err
	}
	pageID, token, err := c.page(req, cred)
	if err != nil {
		return "", err
	}
	caption := req.Caption()

	switch len(req.Media) {
	case 0:
		var out platform.GraphID
		err := c.transport.PostForm(ctx, apperror.StagePublish, c.url(pageID, "feed"), feedParams{Message: caption, AccessToken: token}, &out)
		return out.ID, c.requireID(err, out.ID, apperror.StagePublish)
	case 1:
		var out platform.GraphID
		err := c.transport.PostForm(ctx, apperror.StagePublish, c.url(pageID, "photos"), photoParams{URL: req.Media[0], Caption: caption, AccessToken: token}, &out)
		if out.PostID != "" {
			return out.PostID, err
		}
		return out.ID, c.requireID(err, out.ID, apperror.StagePublish)
	default:
		unpublished := false
		photoIDs := make([]string, 0, len(req.Media))
		for _, src := range req.Media {
			var out platform.GraphID
			err := c.transport.PostForm(ctx, apperror.StageUpload, c.url(pageID, "photos"), photoParams{URL: src, Published: &unpublished, AccessToken: token}, &out)
			if err = c.requireID(err, out.ID, apperror.StageUpload); err != nil {
				return "", err
			}
			photoIDs = append(photoIDs, out.ID)
		}
		var out platform.GraphID
		err := c.transport.PostForm(ctx, apperror.StagePublish, c.url(pageID, "feed"), feedParams{Message: caption, AttachedMedia: photoIDs, AccessToken: token}, &out)
		return out.ID, c.requireID(err, out.ID, apperror.StagePublish)
	}
}

// page picks the page and its page-scoped token. A target id that is not in
// the stored identity is used with the user token.
func (c *Client) page(req *model.PublishRequest, cred *model.Credential) (string, string, error) {
	if target, ok := cred.Target(strings.TrimSpace(req.TargetID)); ok {
		token := target.Token
		if token == "" {
			token = cred.AccessToken
		}
		return target.ID, token, nil
	}
	if id := strings.TrimSpace(req.TargetID); id != "" {
		return id, cred.AccessToken, nil
	}
	return "", "", apperror.Validation("no facebook page linked; reconnect facebook or pass targetId")
}

func (c *Client) url(segments ...string) string {
	return platform.GraphURL(c.cfg.BaseURL, c.cfg.GraphVersion, segments...)
}

func (c *Client) requireID(err error, id string, stage apperror.Stage) error {
	if err != nil {
		return err
	}
	if id == "" {
		return apperror.PlatformAPI(string(model.PlatformFacebook), stage, 200, "graph response missing id")
	}
	return nil
}

// ResolveIdentity returns the user and every page they manage with its token.
func (c *Client) ResolveIdentity(ctx context.Context, accessToken string) (*model.Identity, error) {
	identity, err := c.transport.GraphProfile(ctx, c.cfg.BaseURL, c.cfg.GraphVersion, accessToken)
	if err != nil {
		return nil, err
	}
	pages, err := c.transport.GraphPages(ctx, c.cfg.BaseURL, c.cfg.GraphVersion, accessToken)
	if err != nil {
		return nil, err
	}
	for _, p := range pages {
		identity.Targets = append(identity.Targets, model.ManagedTarget{
			ID:    p.ID,
			Name:  p.Name,
			Kind:  "page",
			Token: p.AccessToken,
		})
	}
	return identity, nil
}

// ExchangeLongLived swaps a short-lived user token for a long-lived one.
func (c *Client) ExchangeLongLived(ctx context.Context, clientID, clientSecret, shortLived string) (*model.TokenGrant, error) {
	return c.transport.GraphExchangeLongLived(ctx, c.cfg.BaseURL, c.cfg.GraphVersion, clientID, clientSecret, shortLived)
}
