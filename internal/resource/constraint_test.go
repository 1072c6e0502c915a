package resource_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/wardenhq/warden/internal"
	"github.com/wardenhq/warden/internal/resource"
)

var _ = Describe("TranslateConstraintError", func() {
	fieldOf := func(appErr *internal.AppError) string {
		details, ok := appErr.Details.(internal.ValidationErrors)
		Expect(ok).To(BeTrue())
		Expect(details.Errors).To(HaveLen(1))
		return details.Errors[0].Field
	}

	It("should recover the column from a MySQL cannot-be-null violation", func() {
		err := errors.New(`Error 1048 (23000): Column 'title' cannot be null`)

		appErr := resource.TranslateConstraintError(err)

		Expect(appErr).NotTo(BeNil())
		Expect(fieldOf(appErr)).To(Equal("title"))
		Expect(appErr.GetDetailedMessage()).To(Equal("The title field is required."))
	})

	It("should recover the column from a MySQL missing-default violation", func() {
		err := errors.New(`Error 1364 (HY000): Field 'author_id' doesn't have a default value`)

		appErr := resource.TranslateConstraintError(err)

		Expect(appErr).NotTo(BeNil())
		Expect(fieldOf(appErr)).To(Equal("author_id"))
	})

	It("should recover the column from a SQLite not-null violation", func() {
		err := errors.New(`NOT NULL constraint failed: articles.title`)

		appErr := resource.TranslateConstraintError(err)

		Expect(appErr).NotTo(BeNil())
		Expect(fieldOf(appErr)).To(Equal("title"))
	})

	It("should recover the column from a Postgres not-null violation", func() {
		err := errors.New(`ERROR: null value in column "title" of relation "articles" violates not-null constraint (SQLSTATE 23502)`)

		appErr := resource.TranslateConstraintError(err)

		Expect(appErr).NotTo(BeNil())
		Expect(fieldOf(appErr)).To(Equal("title"))
	})

	It("should fall back to a generic message for an unmatched constraint failure", func() {
		err := errors.New(`CHECK constraint failed: price_positive`)

		appErr := resource.TranslateConstraintError(err)

		Expect(appErr).NotTo(BeNil())
		Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		Expect(appErr.Message).To(Equal("Database error: Missing required fields."))
	})

	It("should leave unrecognized store failures untranslated", func() {
		appErr := resource.TranslateConstraintError(errors.New("connection reset by peer"))

		Expect(appErr).To(BeNil())
	})

	It("should ignore nil", func() {
		Expect(resource.TranslateConstraintError(nil)).To(BeNil())
	})
})
