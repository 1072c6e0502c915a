package privilege

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

func TestPrivilege(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Privilege Module Suite")
}

type mockPrivilegeRepository struct {
	privileges map[int64]*Privilege
	roles      map[int64][]int64 // privilege id -> role ids
	nextID     int64
}

func newMockPrivilegeRepository() *mockPrivilegeRepository {
	return &mockPrivilegeRepository{
		privileges: map[int64]*Privilege{},
		roles:      map[int64][]int64{},
		nextID:     1,
	}
}

func (m *mockPrivilegeRepository) addPrivilege(name, slug string, roleIDs ...int64) *Privilege {
	id := m.nextID
	m.nextID++
	p := &Privilege{ID: id, Name: name, Slug: slug, CreatedAt: time.Now()}
	m.privileges[id] = p
	m.roles[id] = roleIDs
	return p
}

func (m *mockPrivilegeRepository) projection(p *Privilege) *Privilege {
	copied := *p
	copied.Roles = nil
	for _, rid := range m.roles[p.ID] {
		copied.Roles = append(copied.Roles, RoleRef{ID: rid})
	}
	return &copied
}

func (m *mockPrivilegeRepository) List(ctx context.Context, filter ListFilter) ([]Privilege, int64, error) {
	var out []Privilege
	for _, p := range m.privileges {
		out = append(out, *m.projection(p))
	}
	return out, int64(len(out)), nil
}

func (m *mockPrivilegeRepository) GetByID(ctx context.Context, id int64) (*Privilege, error) {
	p, exists := m.privileges[id]
	if !exists {
		return nil, nil
	}
	return m.projection(p), nil
}

func (m *mockPrivilegeRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	for _, p := range m.privileges {
		if p.Slug == slug && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPrivilegeRepository) Create(ctx context.Context, dm *roleDatamodel.Privilege, roleIDs []int64) error {
	dm.ID = m.nextID
	m.nextID++
	m.privileges[dm.ID] = &Privilege{
		ID:          dm.ID,
		Name:        dm.Name,
		Slug:        dm.Slug,
		Description: dm.Description,
		CreatedAt:   dm.CreatedAt,
	}
	m.roles[dm.ID] = roleIDs
	return nil
}

func (m *mockPrivilegeRepository) Update(ctx context.Context, dm *roleDatamodel.Privilege) error {
	p := m.privileges[dm.ID]
	p.Name = dm.Name
	p.Description = dm.Description
	return nil
}

func (m *mockPrivilegeRepository) SyncRoles(ctx context.Context, privilegeID int64, roleIDs []int64) error {
	m.roles[privilegeID] = roleIDs
	return nil
}

func (m *mockPrivilegeRepository) Delete(ctx context.Context, privilegeID int64) error {
	delete(m.privileges, privilegeID)
	delete(m.roles, privilegeID)
	return nil
}

func (m *mockPrivilegeRepository) Purge(ctx context.Context) (int64, int64, error) {
	var detached int64
	for _, roleIDs := range m.roles {
		detached += int64(len(roleIDs))
	}
	deleted := int64(len(m.privileges))
	m.privileges = map[int64]*Privilege{}
	m.roles = map[int64][]int64{}
	return deleted, detached, nil
}

type mockMembersLookup struct {
	membersByRole map[int64][]int64
}

func (m *mockMembersLookup) UserIDsWithRole(ctx context.Context, roleID int64) ([]int64, error) {
	return m.membersByRole[roleID], nil
}

var _ = ginkgo.Describe("PrivilegeService", func() {
	var (
		service     *Service
		mockRepo    *mockPrivilegeRepository
		mockMembers *mockMembersLookup
		bus         *events.EventBus
		ctx         context.Context
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		mockRepo = newMockPrivilegeRepository()
		mockMembers = &mockMembersLookup{membersByRole: map[int64][]int64{}}
		bus = events.NewEventBus(slog.Default())
		service = NewService(mockRepo, mockMembers, bus, slog.Default())
	})

	ginkgo.Describe("Create", func() {
		ginkgo.It("should derive the slug from the name", func() {
			created, err := service.Create(ctx, CreatePrivilegeDTO{Name: "Manage Articles"})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(created.Slug).To(gomega.Equal("manage-articles"))
		})

		ginkgo.It("should reject a duplicate slug", func() {
			mockRepo.addPrivilege("Manage Articles", "manage-articles")

			created, err := service.Create(ctx, CreatePrivilegeDTO{Name: "Manage Articles"})

			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(created).To(gomega.BeNil())
		})

		ginkgo.It("should attach the requested roles", func() {
			created, err := service.Create(ctx, CreatePrivilegeDTO{
				Name:    "Manage Articles",
				RoleIDs: []int64{1, 2},
			})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(created.Roles).To(gomega.HaveLen(2))
		})
	})

	ginkgo.Describe("Update", func() {
		ginkgo.It("should invalidate members of both old and new holder roles", func() {
			existing := mockRepo.addPrivilege("Manage Articles", "manage-articles", 1)
			mockMembers.membersByRole[1] = []int64{100}
			mockMembers.membersByRole[2] = []int64{200}

			invalidated := map[int64]bool{}
			bus.Subscribe(events.EventRolePrivilegesSynced, func(ctx context.Context, e events.Event) error {
				for _, id := range events.UserIDsFromEvent(e) {
					invalidated[id] = true
				}
				return nil
			})

			newRoles := []int64{2}
			_, err := service.Update(ctx, existing.ID, UpdatePrivilegeDTO{RoleIDs: &newRoles})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(invalidated).To(gomega.HaveKey(int64(100)))
			gomega.Expect(invalidated).To(gomega.HaveKey(int64(200)))
		})

		ginkgo.It("should update name and description", func() {
			existing := mockRepo.addPrivilege("Manage Articles", "manage-articles")
			newName := "Manage All Articles"
			desc := "Full write access to articles"

			updated, err := service.Update(ctx, existing.ID, UpdatePrivilegeDTO{
				Name:        &newName,
				Description: &desc,
			})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(updated.Name).To(gomega.Equal(newName))
			gomega.Expect(*updated.Description).To(gomega.Equal(desc))
			gomega.Expect(updated.Slug).To(gomega.Equal("manage-articles"))
		})
	})

	ginkgo.Describe("Delete", func() {
		ginkgo.It("should remove the privilege and notify holder roles", func() {
			doomed := mockRepo.addPrivilege("Manage Articles", "manage-articles", 3)
			mockMembers.membersByRole[3] = []int64{300}

			var affected []int64
			bus.Subscribe(events.EventRolePrivilegesSynced, func(ctx context.Context, e events.Event) error {
				affected = append(affected, events.UserIDsFromEvent(e)...)
				return nil
			})

			err := service.Delete(ctx, doomed.ID)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(mockRepo.privileges).ToNot(gomega.HaveKey(doomed.ID))
			gomega.Expect(affected).To(gomega.ContainElement(int64(300)))
		})

		ginkgo.It("should return not found for an unknown privilege", func() {
			err := service.Delete(ctx, 999)

			gomega.Expect(err).To(gomega.MatchError(internal.ErrPrivilegeNotFound))
		})
	})

	ginkgo.Describe("Purge", func() {
		ginkgo.It("should delete everything and publish a purge event", func() {
			mockRepo.addPrivilege("One", "one", 1)
			mockRepo.addPrivilege("Two", "two", 1, 2)

			var purged bool
			bus.Subscribe(events.EventPrivilegesPurged, func(ctx context.Context, e events.Event) error {
				purged = true
				return nil
			})

			result, err := service.Purge(ctx)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(result.DeletedPrivileges).To(gomega.Equal(int64(2)))
			gomega.Expect(result.DetachedRoles).To(gomega.Equal(int64(3)))
			gomega.Expect(mockRepo.privileges).To(gomega.BeEmpty())
			gomega.Expect(purged).To(gomega.BeTrue())
		})
	})
})
