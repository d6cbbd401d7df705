package linkedin

import (
	"context"
	"net/http"
	"strings"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/infrastructure/clients/platform"
	"social-publisher/infrastructure/logger"
)

const (
	imageRecipe      = "urn:li:digitalmediaRecipe:feedshare-image"
	uploadMechanism  = "com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"
	shareContentKey  = "com.linkedin.ugc.ShareContent"
	memberVisibility = "com.linkedin.ugc.MemberNetworkVisibility"
	defaultMaxImages = 9
	restliHeader     = "X-Restli-Protocol-Version"
	restliVersion    = "2.0.0"
	restliIDHeader   = "X-RestLi-Id"
	organizationURN  = "urn:li:organization:"
	personURN        = "urn:li:person:"
)

type Config struct {
	BaseURL  string
	MaxMedia int
	// TempDir stages downloaded media; empty means os.TempDir().
	TempDir string
}

// Client publishes to LinkedIn through register, upload and compose steps.
type Client struct {
	cfg       Config
	transport *platform.Client
}

func NewLinkedInClient(cfg Config, transport *platform.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.linkedin.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxMedia <= 0 {
		cfg.MaxMedia = defaultMaxImages
	}
	return &Client{cfg: cfg, transport: transport}
}

func (c *Client) Platform() model.Platform { return model.PlatformLinkedIn }

func (c *Client) MaxMedia() int { return c.cfg.MaxMedia }

func (c *Client) Validate(req *model.PublishRequest) error {
	if len(req.Media) > c.cfg.MaxMedia {
		return apperror.TooManyMediaItems(string(model.PlatformLinkedIn), len(req.Media), c.cfg.MaxMedia)
	}
	if len(req.Media) == 0 && req.Caption() == "" {
		return apperror.EmptyPost(string(model.PlatformLinkedIn), "post needs an image or caption text")
	}
	return nil
}

type registeredAsset struct {
	Asset     string
	UploadURL string
}

func (c *Client) Publish(ctx context.Context, req *model.PublishRequest, cred *model.Credential) (string, error) {
	if err := c.Validate(req); err != nil {
		return "", err
	}
	author, err := c.author(req, cred)
	if err != nil {
		return "", err
	}
	header := c.header(cred.AccessToken)

	assets := make([]registeredAsset, 0, len(req.Media))
	for range req.Media {
		asset, err := c.register(ctx, header, author)
		if err != nil {
			return "", err
		}
		assets = append(assets, asset)
	}
	for i, asset := range assets {
		if err := c.upload(ctx, header, req.Media[i], asset); err != nil {
			return "", err
		}
	}
	return c.compose(ctx, header, author, req, assets)
}

func (c *Client) author(req *model.PublishRequest, cred *model.Credential) (string, error) {
	if id := strings.TrimSpace(req.TargetID); id != "" {
		if strings.HasPrefix(id, "urn:li:") {
			return id, nil
		}
		return organizationURN + id, nil
	}
	if cred.Identity.ProfileID == "" {
		return "", apperror.NotAuthenticated(string(model.PlatformLinkedIn))
	}
	return personURN + cred.Identity.ProfileID, nil
}

func (c *Client) header(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	h.Set(restliHeader, restliVersion)
	return h
}

type registerUploadRequest struct {
	RegisterUploadRequest registerBody `json:"registerUploadRequest"`
}

type registerBody struct {
	Recipes              []string              `json:"recipes"`
	Owner                string                `json:"owner"`
	ServiceRelationships []serviceRelationship `json:"serviceRelationships"`
}

type serviceRelationship struct {
	RelationshipType string `json:"relationshipType"`
	Identifier       string `json:"identifier"`
}

type registerUploadResponse struct {
	Value struct {
		Asset           string `json:"asset"`
		UploadMechanism map[string]struct {
			UploadURL string `json:"uploadUrl"`
		} `json:"uploadMechanism"`
	} `json:"value"`
}

func (c *Client) register(ctx context.Context, header http.Header, owner string) (registeredAsset, error) {
	body := registerUploadRequest{RegisterUploadRequest: registerBody{
		Recipes: []string{imageRecipe},
		Owner:   owner,
		ServiceRelationships: []serviceRelationship{{
			RelationshipType: "OWNER",
			Identifier:       "urn:li:userGeneratedContent",
		}},
	}}
	var out registerUploadResponse
	if _, err := c.transport.PostJSON(ctx, apperror.StageRegister, c.cfg.BaseURL+"/v2/assets?action=registerUpload", header, body, &out); err != nil {
		return registeredAsset{}, err
	}
	mech := out.Value.UploadMechanism[uploadMechanism]
	if out.Value.Asset == "" || mech.UploadURL == "" {
		return registeredAsset{}, apperror.PlatformAPI(string(model.PlatformLinkedIn), apperror.StageRegister, http.StatusOK, "registerUpload response missing asset or uploadUrl")
	}
	return registeredAsset{Asset: out.Value.Asset, UploadURL: mech.UploadURL}, nil
}

// upload stages src in a temp file and PUTs it; the file is removed on every path.
func (c *Client) upload(ctx context.Context, header http.Header, src string, asset registeredAsset) error {
	staged, err := c.transport.Download(ctx, apperror.StageUpload, src, c.cfg.TempDir)
	if err != nil {
		return err
	}
	defer staged.Remove()

	uploadHeader := http.Header{}
	uploadHeader.Set("Authorization", header.Get("Authorization"))
	if err := c.transport.UploadFile(ctx, apperror.StageUpload, http.MethodPut, asset.UploadURL, uploadHeader, staged); err != nil {
		return err
	}
	logger.GetLogger().WithField("asset", asset.Asset).WithField("bytes", staged.Size).Debug("linkedin media uploaded")
	return nil
}

type ugcPost struct {
	Author          string                  `json:"author"`
	LifecycleState  string                  `json:"lifecycleState"`
	SpecificContent map[string]shareContent `json:"specificContent"`
	Visibility      map[string]string       `json:"visibility"`
}

type shareContent struct {
	ShareCommentary    textValue    `json:"shareCommentary"`
	ShareMediaCategory string       `json:"shareMediaCategory"`
	Media              []shareMedia `json:"media,omitempty"`
}

type shareMedia struct {
	Status string     `json:"status"`
	Media  string     `json:"media"`
	Title  *textValue `json:"title,omitempty"`
}

type textValue struct {
	Text string `json:"text"`
}

func (c *Client) compose(ctx context.Context, header http.Header, author string, req *model.PublishRequest, assets []registeredAsset) (string, error) {
	content := shareContent{
		ShareCommentary:    textValue{Text: req.Caption()},
		ShareMediaCategory: "NONE",
	}
	if len(assets) > 0 {
		content.ShareMediaCategory = "IMAGE"
		for _, a := range assets {
			m := shareMedia{Status: "READY", Media: a.Asset}
			if t := strings.TrimSpace(req.Title); t != "" {
				m.Title = &textValue{Text: t}
			}
			content.Media = append(content.Media, m)
		}
	}
	post := ugcPost{
		Author:          author,
		LifecycleState:  "PUBLISHED",
		SpecificContent: map[string]shareContent{shareContentKey: content},
		Visibility:      map[string]string{memberVisibility: "PUBLIC"},
	}
	var out struct {
		ID string `json:"id"`
	}
	respHeader, err := c.transport.PostJSON(ctx, apperror.StageCompose, c.cfg.BaseURL+"/v2/ugcPosts", header, post, &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" && respHeader != nil {
		out.ID = respHeader.Get(restliIDHeader)
	}
	if out.ID == "" {
		return "", apperror.PlatformAPI(string(model.PlatformLinkedIn), apperror.StageCompose, http.StatusCreated, "ugcPosts response missing id")
	}
	return out.ID, nil
}

type userInfo struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
}

type organizationACLs struct {
	Elements []struct {
		Organization string `json:"organization"`
	} `json:"elements"`
}

type aclQuery struct {
	Q     string `url:"q"`
	Role  string `url:"role"`
	State string `url:"state"`
}

// ResolveIdentity reads the member id and the organizations it administers.
// Organization lookup failures are logged and leave the target list empty.
func (c *Client) ResolveIdentity(ctx context.Context, accessToken string) (*model.Identity, error) {
	header := c.header(accessToken)
	var me userInfo
	if err := c.transport.GetJSON(ctx, apperror.StageIdentity, c.cfg.BaseURL+"/v2/userinfo", nil, header, &me); err != nil {
		return nil, err
	}
	identity := &model.Identity{ProfileID: me.Sub, ProfileName: me.Name}

	var acls organizationACLs
	q := aclQuery{Q: "roleAssignee", Role: "ADMINISTRATOR", State: "APPROVED"}
	if err := c.transport.GetJSON(ctx, apperror.StageIdentity, c.cfg.BaseURL+"/v2/organizationAcls", q, header, &acls); err != nil {
		logger.GetLogger().WithField("error", err).Warn("linkedin organization lookup failed")
		return identity, nil
	}
	for _, el := range acls.Elements {
		id := strings.TrimPrefix(el.Organization, organizationURN)
		if id == "" {
			continue
		}
		identity.Targets = append(identity.Targets, model.ManagedTarget{ID: id, Kind: "organization"})
	}
	return identity, nil
}
