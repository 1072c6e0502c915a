package privilege

import (
	"strings"

	"github.com/wardenhq/warden/internal"
	"github.com/wardenhq/warden/internal/role"
)

type CreatePrivilegeDTO struct {
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description *string `json:"description"`
	RoleIDs     []int64 `json:"role_ids"`
}

func (dto *CreatePrivilegeDTO) Validate() error {
	dto.Name = strings.TrimSpace(dto.Name)
	if dto.Name == "" {
		return internal.NewValidationFieldError("name", "The name field is required.", internal.ErrCodeValidationFailed)
	}

	if dto.Slug == "" {
		dto.Slug = role.Slugify(dto.Name)
	} else {
		dto.Slug = role.Slugify(dto.Slug)
	}
	if dto.Slug == "" {
		return internal.NewValidationFieldError("slug", "The slug field is required.", internal.ErrCodeValidationFailed)
	}
	return nil
}

type UpdatePrivilegeDTO struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	RoleIDs     *[]int64 `json:"role_ids"`
}

func (dto *UpdatePrivilegeDTO) Validate() error {
	if dto.Name != nil {
		trimmed := strings.TrimSpace(*dto.Name)
		if trimmed == "" {
			return internal.NewValidationFieldError("name", "The name field is required.", internal.ErrCodeValidationFailed)
		}
		dto.Name = &trimmed
	}
	return nil
}
