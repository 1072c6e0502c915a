package role

import (
	"strings"

	"github.com/wardenhq/warden/internal"
)

type CreateRoleDTO struct {
	Name         string  `json:"name"`
	Slug         string  `json:"slug"`
	PrivilegeIDs []int64 `json:"privilege_ids"`
}

func (dto *CreateRoleDTO) Validate() error {
	dto.Name = strings.TrimSpace(dto.Name)
	if dto.Name == "" {
		return internal.NewValidationFieldError("name", "The name field is required.", internal.ErrCodeValidationFailed)
	}

	// Slug is derived from the name unless supplied explicitly.
	if dto.Slug == "" {
		dto.Slug = Slugify(dto.Name)
	} else {
		dto.Slug = Slugify(dto.Slug)
	}
	if dto.Slug == "" {
		return internal.NewValidationFieldError("slug", "The slug field is required.", internal.ErrCodeValidationFailed)
	}
	return nil
}

type UpdateRoleDTO struct {
	Name         *string  `json:"name"`
	PrivilegeIDs *[]int64 `json:"privilege_ids"`
}

func (dto *UpdateRoleDTO) Validate() error {
	if dto.Name != nil {
		trimmed := strings.TrimSpace(*dto.Name)
		if trimmed == "" {
			return internal.NewValidationFieldError("name", "The name field is required.", internal.ErrCodeValidationFailed)
		}
		dto.Name = &trimmed
	}
	return nil
}
