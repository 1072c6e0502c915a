package authz

import (
	"context"
)

// RoleAware is implemented by principal types that can report their role
// membership. Principals lacking the capability simply have no roles.
type RoleAware interface {
	RoleSlugs() []string
}

// PrivilegeAware is implemented by principal types that can report their
// effective privilege set.
type PrivilegeAware interface {
	PrivilegeSlugs() []string
}

// Grants is the cached authorization snapshot for one user: the roles
// they hold and the union of privileges reachable through those roles.
type Grants struct {
	RoleIDs    []int64
	Roles      []string
	Privileges []string
}

func (g *Grants) HasRoleSlug(slug string) bool {
	for _, s := range g.Roles {
		if s == slug {
			return true
		}
	}
	return false
}

func (g *Grants) HasRoleID(id int64) bool {
	for _, rid := range g.RoleIDs {
		if rid == id {
			return true
		}
	}
	return false
}

func (g *Grants) HasPrivilege(slug string) bool {
	for _, s := range g.Privileges {
		if s == slug {
			return true
		}
	}
	return false
}

// RepositoryAPI loads a user's grants from the persistent store.
type RepositoryAPI interface {
	GrantsForUser(ctx context.Context, userID int64) (*Grants, error)
}

// Actor is the authenticated caller attached to a request context.
type Actor struct {
	ID     int64
	Name   string
	Email  string
	Roles  []string
	Grants []string
}

func (a *Actor) RoleSlugs() []string {
	if a == nil {
		return nil
	}
	return a.Roles
}

func (a *Actor) PrivilegeSlugs() []string {
	if a == nil {
		return nil
	}
	return a.Grants
}

type ctxKey string

const actorKey ctxKey = "actor"

func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFromContext(ctx context.Context) (*Actor, bool) {
	if ctx == nil {
		return nil, false
	}
	actor, ok := ctx.Value(actorKey).(*Actor)
	return actor, ok && actor != nil
}
