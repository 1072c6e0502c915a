package authz

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/wardenhq/warden/internal/core/events"
)

// Evaluator answers role and privilege checks for users, consulting the
// cache before the repository. A zero or negative user ID means the
// caller is unauthenticated and every check evaluates to false.
type Evaluator struct {
	repo   RepositoryAPI
	cache  *Cache
	logger *slog.Logger
}

func NewEvaluator(repo RepositoryAPI, cache *Cache, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

func (e *Evaluator) grants(ctx context.Context, userID int64) (*Grants, error) {
	if g, ok := e.cache.Get(userID); ok {
		return g, nil
	}

	g, err := e.repo.GrantsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	e.cache.Put(userID, g)
	return g, nil
}

// UserHasRole reports whether a membership row links the user to the
// role. The role may be given as a slug or a numeric ID.
func (e *Evaluator) UserHasRole(ctx context.Context, userID int64, role string) (bool, error) {
	if userID <= 0 {
		return false, nil
	}

	g, err := e.grants(ctx, userID)
	if err != nil {
		return false, err
	}

	if id, convErr := strconv.ParseInt(role, 10, 64); convErr == nil {
		return g.HasRoleID(id), nil
	}
	return g.HasRoleSlug(role), nil
}

func (e *Evaluator) UserHasAnyRole(ctx context.Context, userID int64, roles []string) (bool, error) {
	for _, role := range roles {
		ok, err := e.UserHasRole(ctx, userID, role)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// UserHasPrivilege reports whether the privilege is reachable through
// any role the user holds.
func (e *Evaluator) UserHasPrivilege(ctx context.Context, userID int64, privilege string) (bool, error) {
	if userID <= 0 {
		return false, nil
	}

	g, err := e.grants(ctx, userID)
	if err != nil {
		return false, err
	}
	return g.HasPrivilege(privilege), nil
}

func (e *Evaluator) UserHasAnyPrivilege(ctx context.Context, userID int64, privileges []string) (bool, error) {
	for _, p := range privileges {
		ok, err := e.UserHasPrivilege(ctx, userID, p)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (e *Evaluator) UserHasAllPrivileges(ctx context.Context, userID int64, privileges []string) (bool, error) {
	for _, p := range privileges {
		ok, err := e.UserHasPrivilege(ctx, userID, p)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// GrantsFor returns the user's full snapshot, used when building the
// request actor after authentication.
func (e *Evaluator) GrantsFor(ctx context.Context, userID int64) (*Grants, error) {
	if userID <= 0 {
		return &Grants{}, nil
	}
	return e.grants(ctx, userID)
}

func (e *Evaluator) InvalidateUser(userID int64) {
	e.cache.Invalidate(userID)
}

func (e *Evaluator) InvalidateAll() {
	e.cache.InvalidateAll()
}

// SubscribeInvalidation wires the cache to the membership events the
// role, privilege, and user services publish.
func (e *Evaluator) SubscribeInvalidation(bus *events.EventBus) {
	perUser := func(_ context.Context, ev events.Event) error {
		for _, id := range events.UserIDsFromEvent(ev) {
			e.cache.Invalidate(id)
		}
		return nil
	}

	bus.Subscribe(events.EventUserRolesSynced, perUser)
	bus.Subscribe(events.EventUserSuspended, perUser)
	bus.Subscribe(events.EventUserDeleted, perUser)
	bus.Subscribe(events.EventRolePrivilegesSynced, perUser)
	bus.Subscribe(events.EventRoleDeleted, perUser)

	bus.Subscribe(events.EventPrivilegesPurged, func(context.Context, events.Event) error {
		e.cache.InvalidateAll()
		return nil
	})
}
