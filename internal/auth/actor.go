package auth

import (
	"context"

	"github.com/wardenhq/warden/internal"
	"github.com/wardenhq/warden/internal/authz"
)

// Profile is the identity slice attached to authenticated requests.
type Profile struct {
	ID    int64
	Name  string
	Email string
}

type ProfileRepositoryAPI interface {
	GetProfile(ctx context.Context, userID int64) (*Profile, error)
}

// ActorProvider combines a profile lookup with the grant evaluator so
// the middleware can hang a fully populated actor on the context.
type ActorProvider struct {
	profiles  ProfileRepositoryAPI
	evaluator *authz.Evaluator
}

func NewActorProvider(profiles ProfileRepositoryAPI, evaluator *authz.Evaluator) *ActorProvider {
	return &ActorProvider{
		profiles:  profiles,
		evaluator: evaluator,
	}
}

func (p *ActorProvider) ActorFor(ctx context.Context, userID int64) (*authz.Actor, error) {
	profile, err := p.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, internal.ErrUserNotFound
	}

	grants, err := p.evaluator.GrantsFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &authz.Actor{
		ID:     profile.ID,
		Name:   profile.Name,
		Email:  profile.Email,
		Roles:  grants.Roles,
		Grants: grants.Privileges,
	}, nil
}
