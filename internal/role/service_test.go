package role

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/wardenhq/warden/internal"
	roleDatamodel "github.com/wardenhq/warden/internal/core/datamodel/role"
	"github.com/wardenhq/warden/internal/core/events"
)

func TestRole(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Role Module Suite")
}

type mockRoleRepository struct {
	roles      map[int64]*Role
	privileges map[int64][]int64 // role id -> privilege ids
	members    map[int64][]int64 // role id -> user ids
	nextID     int64
}

func newMockRoleRepository() *mockRoleRepository {
	return &mockRoleRepository{
		roles:      map[int64]*Role{},
		privileges: map[int64][]int64{},
		members:    map[int64][]int64{},
		nextID:     1,
	}
}

func (m *mockRoleRepository) addRole(name, slug string, userIDs ...int64) *Role {
	id := m.nextID
	m.nextID++
	r := &Role{ID: id, Name: name, Slug: slug, CreatedAt: time.Now()}
	m.roles[id] = r
	m.members[id] = userIDs
	return r
}

func (m *mockRoleRepository) projection(r *Role) *Role {
	copied := *r
	copied.Privileges = nil
	for _, pid := range m.privileges[r.ID] {
		copied.Privileges = append(copied.Privileges, PrivilegeRef{ID: pid})
	}
	copied.UserCount = int64(len(m.members[r.ID]))
	return &copied
}

func (m *mockRoleRepository) List(ctx context.Context, filter ListFilter) ([]Role, int64, error) {
	var out []Role
	for _, r := range m.roles {
		out = append(out, *m.projection(r))
	}
	return out, int64(len(out)), nil
}

func (m *mockRoleRepository) GetByID(ctx context.Context, id int64) (*Role, error) {
	r, exists := m.roles[id]
	if !exists {
		return nil, nil
	}
	return m.projection(r), nil
}

func (m *mockRoleRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	for _, r := range m.roles {
		if r.Slug == slug && r.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRoleRepository) Create(ctx context.Context, dm *roleDatamodel.Role, privilegeIDs []int64) error {
	dm.ID = m.nextID
	m.nextID++
	m.roles[dm.ID] = &Role{ID: dm.ID, Name: dm.Name, Slug: dm.Slug, CreatedAt: dm.CreatedAt}
	m.privileges[dm.ID] = privilegeIDs
	return nil
}

func (m *mockRoleRepository) Update(ctx context.Context, dm *roleDatamodel.Role) error {
	m.roles[dm.ID].Name = dm.Name
	return nil
}

func (m *mockRoleRepository) SyncPrivileges(ctx context.Context, roleID int64, privilegeIDs []int64) error {
	m.privileges[roleID] = privilegeIDs
	return nil
}

func (m *mockRoleRepository) AttachPrivilege(ctx context.Context, roleID, privilegeID int64) error {
	m.privileges[roleID] = append(m.privileges[roleID], privilegeID)
	return nil
}

func (m *mockRoleRepository) DetachPrivilege(ctx context.Context, roleID, privilegeID int64) error {
	var kept []int64
	for _, id := range m.privileges[roleID] {
		if id != privilegeID {
			kept = append(kept, id)
		}
	}
	m.privileges[roleID] = kept
	return nil
}

func (m *mockRoleRepository) Delete(ctx context.Context, roleID int64) error {
	delete(m.roles, roleID)
	delete(m.privileges, roleID)
	delete(m.members, roleID)
	return nil
}

func (m *mockRoleRepository) UserIDsWithRole(ctx context.Context, roleID int64) ([]int64, error) {
	return m.members[roleID], nil
}

var _ = ginkgo.Describe("Slugify", func() {
	ginkgo.It("should lowercase and hyphenate", func() {
		gomega.Expect(Slugify("Content Editor")).To(gomega.Equal("content-editor"))
	})

	ginkgo.It("should collapse runs of separators", func() {
		gomega.Expect(Slugify("  Site -- Admin!  ")).To(gomega.Equal("site-admin"))
	})

	ginkgo.It("should keep digits", func() {
		gomega.Expect(Slugify("Level 2 Support")).To(gomega.Equal("level-2-support"))
	})

	ginkgo.It("should return empty for all-symbol input", func() {
		gomega.Expect(Slugify("!!!")).To(gomega.BeEmpty())
	})
})

var _ = ginkgo.Describe("RoleService", func() {
	var (
		service  *Service
		mockRepo *mockRoleRepository
		bus      *events.EventBus
		ctx      context.Context
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		mockRepo = newMockRoleRepository()
		bus = events.NewEventBus(slog.Default())
		service = NewService(mockRepo, bus, []string{"admin"}, slog.Default())
	})

	ginkgo.Describe("Create", func() {
		ginkgo.It("should derive the slug from the name", func() {
			created, err := service.Create(ctx, CreateRoleDTO{Name: "Content Editor"})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(created.Slug).To(gomega.Equal("content-editor"))
		})

		ginkgo.It("should reject a duplicate slug", func() {
			mockRepo.addRole("Editor", "editor")

			created, err := service.Create(ctx, CreateRoleDTO{Name: "Editor"})

			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(created).To(gomega.BeNil())
			gomega.Expect(err.Error()).To(gomega.ContainSubstring("already been taken"))
		})

		ginkgo.It("should attach the requested privileges", func() {
			created, err := service.Create(ctx, CreateRoleDTO{
				Name:         "Moderator",
				PrivilegeIDs: []int64{10, 11},
			})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(created.Privileges).To(gomega.HaveLen(2))
		})
	})

	ginkgo.Describe("Update", func() {
		ginkgo.It("should rename without touching the slug", func() {
			existing := mockRepo.addRole("Editor", "editor")
			newName := "Senior Editor"

			updated, err := service.Update(ctx, existing.ID, UpdateRoleDTO{Name: &newName})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(updated.Name).To(gomega.Equal("Senior Editor"))
			gomega.Expect(updated.Slug).To(gomega.Equal("editor"))
		})

		ginkgo.It("should replace the privilege set and notify members", func() {
			existing := mockRepo.addRole("Editor", "editor", 7, 8)
			mockRepo.privileges[existing.ID] = []int64{1}

			var affected []int64
			bus.Subscribe(events.EventRolePrivilegesSynced, func(ctx context.Context, e events.Event) error {
				affected = events.UserIDsFromEvent(e)
				return nil
			})

			newSet := []int64{2, 3}
			updated, err := service.Update(ctx, existing.ID, UpdateRoleDTO{PrivilegeIDs: &newSet})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(updated.Privileges).To(gomega.HaveLen(2))
			gomega.Expect(affected).To(gomega.ConsistOf(int64(7), int64(8)))
		})
	})

	ginkgo.Describe("Delete", func() {
		ginkgo.It("should reject deleting a protected slug", func() {
			protected := mockRepo.addRole("Administrator", "admin")

			err := service.Delete(ctx, protected.ID)

			gomega.Expect(err).To(gomega.MatchError(internal.ErrProtectedRole))
			gomega.Expect(mockRepo.roles).To(gomega.HaveKey(protected.ID))
		})

		ginkgo.It("should delete an unprotected role and publish the member list", func() {
			doomed := mockRepo.addRole("Temp", "temp", 4, 5)

			var affected []int64
			bus.Subscribe(events.EventRoleDeleted, func(ctx context.Context, e events.Event) error {
				affected = events.UserIDsFromEvent(e)
				return nil
			})

			err := service.Delete(ctx, doomed.ID)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(mockRepo.roles).ToNot(gomega.HaveKey(doomed.ID))
			gomega.Expect(affected).To(gomega.ConsistOf(int64(4), int64(5)))
		})

		ginkgo.It("should return not found for an unknown role", func() {
			err := service.Delete(ctx, 999)

			gomega.Expect(err).To(gomega.MatchError(internal.ErrRoleNotFound))
		})
	})

	ginkgo.Describe("AttachPrivilege", func() {
		ginkgo.It("should be idempotent for an already attached privilege", func() {
			existing := mockRepo.addRole("Editor", "editor")
			mockRepo.privileges[existing.ID] = []int64{9}

			gomega.Expect(service.AttachPrivilege(ctx, existing.ID, 9)).To(gomega.Succeed())
			gomega.Expect(mockRepo.privileges[existing.ID]).To(gomega.ConsistOf(int64(9)))
		})

		ginkgo.It("should attach a new privilege", func() {
			existing := mockRepo.addRole("Editor", "editor")

			gomega.Expect(service.AttachPrivilege(ctx, existing.ID, 9)).To(gomega.Succeed())
			gomega.Expect(mockRepo.privileges[existing.ID]).To(gomega.ConsistOf(int64(9)))
		})
	})

	ginkgo.Describe("DetachPrivilege", func() {
		ginkgo.It("should remove the attachment", func() {
			existing := mockRepo.addRole("Editor", "editor")
			mockRepo.privileges[existing.ID] = []int64{9, 10}

			gomega.Expect(service.DetachPrivilege(ctx, existing.ID, 9)).To(gomega.Succeed())
			gomega.Expect(mockRepo.privileges[existing.ID]).To(gomega.ConsistOf(int64(10)))
		})
	})
})
