package repository

import (
	"context"

	"social-publisher/domain/model"
)

// IPlatformAdapter runs one platform's publish protocol.
type IPlatformAdapter interface {
	Platform() model.Platform
	MaxMedia() int
	// Validate checks the request without touching the network.
	Validate(req *model.PublishRequest) error
	// Publish returns the platform's id for the created post.
	Publish(ctx context.Context, req *model.PublishRequest, cred *model.Credential) (string, error)
	// ResolveIdentity looks up the profile and managed targets reachable with accessToken.
	ResolveIdentity(ctx context.Context, accessToken string) (*model.Identity, error)
}
