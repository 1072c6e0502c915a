package resource_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/wardenhq/warden/internal"
	"github.com/wardenhq/warden/internal/resource"
)

var _ = Describe("Schema", func() {
	Describe("CanView", func() {
		It("should open a resource with no access roles to everyone", func() {
			schema := &resource.Schema{}

			Expect(schema.CanView(nil)).To(BeTrue())
			Expect(schema.CanView([]string{"anything"})).To(BeTrue())
		})

		It("should admit access and readonly roles only", func() {
			schema := &resource.Schema{
				Roles:    []string{"editor"},
				Readonly: []string{"viewer"},
			}

			Expect(schema.CanView([]string{"editor"})).To(BeTrue())
			Expect(schema.CanView([]string{"viewer"})).To(BeTrue())
			Expect(schema.CanView([]string{"stranger"})).To(BeFalse())
			Expect(schema.CanView(nil)).To(BeFalse())
		})
	})

	Describe("CanMutate", func() {
		It("should grant mutation through the access list", func() {
			schema := &resource.Schema{Roles: []string{"editor"}}

			Expect(schema.CanMutate([]string{"editor"})).To(BeTrue())
			Expect(schema.CanMutate([]string{"viewer"})).To(BeFalse())
		})

		It("should never grant mutation to a readonly role, even when it is also in the access list", func() {
			schema := &resource.Schema{
				Roles:    []string{"editor", "viewer"},
				Readonly: []string{"viewer"},
			}

			Expect(schema.CanMutate([]string{"viewer"})).To(BeFalse())
		})

		It("should grant mutation when any held role qualifies", func() {
			schema := &resource.Schema{
				Roles:    []string{"editor", "viewer"},
				Readonly: []string{"viewer"},
			}

			Expect(schema.CanMutate([]string{"viewer", "editor"})).To(BeTrue())
		})

		It("should grant mutation on an open resource to any non-readonly role", func() {
			schema := &resource.Schema{Readonly: []string{"viewer"}}

			Expect(schema.CanMutate([]string{"member"})).To(BeTrue())
			Expect(schema.CanMutate([]string{"viewer"})).To(BeFalse())
			Expect(schema.CanMutate(nil)).To(BeFalse())
		})
	})

	Describe("SearchColumns", func() {
		It("should merge the search list with searchable fields, deduplicated", func() {
			schema := &resource.Schema{
				Search: []string{"title", "summary"},
				Fields: []resource.Field{
					{Key: "title", Kind: resource.KindText, Searchable: true},
					{Key: "body", Kind: resource.KindTextarea, Searchable: true},
					{Key: "slug", Kind: resource.KindText},
				},
			}

			Expect(schema.SearchColumns()).To(Equal([]string{"title", "summary", "body"}))
		})

		It("should skip searchable relationship fields", func() {
			schema := &resource.Schema{
				Fields: []resource.Field{
					{Key: "tags", Kind: resource.KindMultiselect, Searchable: true,
						Relationship: &internal.RelationshipConfig{JoinTable: "article_tag"}},
				},
			}

			Expect(schema.SearchColumns()).To(BeEmpty())
		})
	})

	Describe("Sortable", func() {
		schema := &resource.Schema{
			Fields: []resource.Field{
				{Key: "title", Kind: resource.KindText, Sortable: true},
				{Key: "body", Kind: resource.KindTextarea},
			},
		}

		It("should accept only fields flagged sortable", func() {
			Expect(schema.Sortable("title")).To(BeTrue())
			Expect(schema.Sortable("body")).To(BeFalse())
			Expect(schema.Sortable("nope")).To(BeFalse())
		})
	})
})

var _ = Describe("Registry", func() {
	It("should compile defaults for title, label, and field type", func() {
		registry, err := resource.NewRegistry(map[string]internal.ResourceConfig{
			"blog_posts": {
				Table: "blog_posts",
				Fields: []internal.FieldConfig{
					{Key: "published_at"},
				},
			},
		})
		Expect(err).NotTo(HaveOccurred())

		schema, err := registry.Lookup("blog_posts")
		Expect(err).NotTo(HaveOccurred())
		Expect(schema.Title).To(Equal("Blog Posts"))
		Expect(schema.Fields[0].Kind).To(Equal(resource.KindText))
		Expect(schema.Fields[0].Label).To(Equal("Published At"))
	})

	It("should reject an unknown field type at compile time", func() {
		_, err := resource.NewRegistry(map[string]internal.ResourceConfig{
			"posts": {
				Table: "posts",
				Fields: []internal.FieldConfig{
					{Key: "title", Type: "hologram"},
				},
			},
		})

		Expect(err).To(MatchError(ContainSubstring("unknown type")))
	})

	It("should reject a relationship missing join metadata", func() {
		_, err := resource.NewRegistry(map[string]internal.ResourceConfig{
			"posts": {
				Table: "posts",
				Fields: []internal.FieldConfig{
					{Key: "tags", Type: "multiselect", Relationship: &internal.RelationshipConfig{
						JoinTable: "post_tag",
					}},
				},
			},
		})

		Expect(err).To(MatchError(ContainSubstring("incomplete relationship")))
	})

	It("should default the relationship label column to name", func() {
		registry, err := resource.NewRegistry(map[string]internal.ResourceConfig{
			"posts": {
				Table: "posts",
				Fields: []internal.FieldConfig{
					{Key: "tags", Type: "multiselect", Relationship: &internal.RelationshipConfig{
						JoinTable:    "post_tag",
						ForeignKey:   "post_id",
						RelatedKey:   "tag_id",
						RelatedTable: "tags",
					}},
				},
			},
		})
		Expect(err).NotTo(HaveOccurred())

		schema, err := registry.Lookup("posts")
		Expect(err).NotTo(HaveOccurred())
		Expect(schema.Fields[0].Relationship.LabelColumn).To(Equal("name"))
	})

	It("should return a not found error for an unknown key", func() {
		registry, err := resource.NewRegistry(nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = registry.Lookup("ghosts")

		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeResourceNotFound))
	})
})

var _ = Describe("Labelize", func() {
	It("should title-case snake_case keys", func() {
		Expect(resource.Labelize("published_at")).To(Equal("Published At"))
		Expect(resource.Labelize("title")).To(Equal("Title"))
		Expect(resource.Labelize("two-factor-secret")).To(Equal("Two Factor Secret"))
	})
})
