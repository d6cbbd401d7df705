package instagram

import (
	"context"
	"net/http"
	"strings"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/infrastructure/clients/platform"
	"social-publisher/infrastructure/logger"
)

const targetKind = "instagram_business"

type Config struct {
	BaseURL      string
	GraphVersion string
	MaxMedia     int
}

// Client publishes to Instagram Business accounts through the container
// flow: create media containers, then publish the top-level container.
type Client struct {
	cfg       Config
	transport *platform.Client
}

func NewInstagramClient(cfg Config, transport *platform.Client) *Client {
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

func (c *Client) Platform() model.Platform { return model.PlatformInstagram }

func (c *Client) MaxMedia() int { return c.cfg.MaxMedia }

// Validate rejects text-only posts; Instagram needs at least one image.
func (c *Client) Validate(req *model.PublishRequest) error {
	if len(req.Media) == 0 {
		return apperror.EmptyPost(string(model.PlatformInstagram), "instagram posts need at least one image")
	}
	if len(req.Media) > c.cfg.MaxMedia {
		return apperror.TooManyMediaItems(string(model.PlatformInstagram), len(req.Media), c.cfg.MaxMedia)
	}
	return nil
}

type imageContainer struct {
	ImageURL       string `url:"image_url"`
	Caption        string `url:"caption,omitempty"`
	IsCarouselItem bool   `url:"is_carousel_item,omitempty"`
	AccessToken    string `url:"access_token"`
}

type carouselContainer struct {
	MediaType   string `url:"media_type"`
	Children    string `url:"children"`
	Caption     string `url:"caption,omitempty"`
	AccessToken string `url:"access_token"`
}

type publishParams struct {
	CreationID  string `url:"creation_id"`
	AccessToken string `url:"access_token"`
}

func (c *Client) Publish(ctx context.Context, req *model.PublishRequest, cred *model.Credential) (string, error) {
	if err := c.Validate(req); err != nil {
		return "", err
	}
	accountID, token, err := c.account(req, cred)
	if err != nil {
		return "", err
	}
	caption := req.Caption()
	mediaURL := c.url(accountID, "media")

	var containerID string
	if len(req.Media) == 1 {
		var out platform.GraphID
		err := c.transport.PostForm(ctx, apperror.StageCompose, mediaURL, imageContainer{ImageURL: req.Media[0], Caption: caption, AccessToken: token}, &out)
		if err = requireID(err, out.ID, apperror.StageCompose); err != nil {
			return "", err
		}
		containerID = out.ID
	} else {
		children := make([]string, 0, len(req.Media))
		for _, src := range req.Media {
			var out platform.GraphID
			err := c.transport.PostForm(ctx, apperror.StageUpload, mediaURL, imageContainer{ImageURL: src, IsCarouselItem: true, AccessToken: token}, &out)
			if err = requireID(err, out.ID, apperror.StageUpload); err != nil {
				return "", err
			}
			children = append(children, out.ID)
		}
		var out platform.GraphID
		params := carouselContainer{MediaType: "CAROUSEL", Children: strings.Join(children, ","), Caption: caption, AccessToken: token}
		err := c.transport.PostForm(ctx, apperror.StageCompose, mediaURL, params, &out)
		if err = requireID(err, out.ID, apperror.StageCompose); err != nil {
			return "", err
		}
		containerID = out.ID
	}

	var out platform.GraphID
	err = c.transport.PostForm(ctx, apperror.StagePublish, c.url(accountID, "media_publish"), publishParams{CreationID: containerID, AccessToken: token}, &out)
	if err = requireID(err, out.ID, apperror.StagePublish); err != nil {
		return "", err
	}
	return out.ID, nil
}

// account resolves the business account and the page token that reaches it.
func (c *Client) account(req *model.PublishRequest, cred *model.Credential) (string, string, error) {
	target, ok := cred.Target(strings.TrimSpace(req.TargetID))
	if !ok {
		return "", "", apperror.Validation("no instagram business account linked to a facebook page; reconnect instagram")
	}
	token := target.Token
	if token == "" {
		token = cred.AccessToken
	}
	return target.ID, token, nil
}

func (c *Client) url(segments ...string) string {
	return platform.GraphURL(c.cfg.BaseURL, c.cfg.GraphVersion, segments...)
}

func requireID(err error, id string, stage apperror.Stage) error {
	if err != nil {
		return err
	}
	if id == "" {
		return apperror.PlatformAPI(string(model.PlatformInstagram), stage, http.StatusOK, "graph response missing id")
	}
	return nil
}

// ResolveIdentity lists the Instagram Business accounts attached to the
// user's pages. Pages without one are skipped.
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
		if p.Instagram == nil || p.Instagram.ID == "" {
			continue
		}
		identity.Targets = append(identity.Targets, model.ManagedTarget{
			ID:       p.Instagram.ID,
			Name:     p.Instagram.Username,
			Kind:     targetKind,
			ParentID: p.ID,
			Token:    p.AccessToken,
		})
	}
	if len(identity.Targets) == 0 {
		logger.GetLogger().WithField("profile", identity.ProfileID).Warn("no instagram business account found on any managed page")
	}
	return identity, nil
}

// ExchangeLongLived upgrades the Facebook login token so the page tokens
// resolved from it do not expire.
func (c *Client) ExchangeLongLived(ctx context.Context, clientID, clientSecret, shortLived string) (*model.TokenGrant, error) {
	return c.transport.GraphExchangeLongLived(ctx, c.cfg.BaseURL, c.cfg.GraphVersion, clientID, clientSecret, shortLived)
}
