package user

import (
	"strings"

	"github.com/wardenhq/warden/internal"
)

type CreateUserDTO struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	RoleIDs  []int64 `json:"role_ids"`
}

func (dto *CreateUserDTO) Validate() error {
	dto.Name = strings.TrimSpace(dto.Name)
	dto.Email = strings.TrimSpace(strings.ToLower(dto.Email))

	if dto.Name == "" {
		return internal.NewValidationFieldError("name", "The name field is required.", internal.ErrCodeValidationFailed)
	}
	if dto.Email == "" {
		return internal.NewValidationFieldError("email", "The email field is required.", internal.ErrCodeValidationFailed)
	}
	if !strings.Contains(dto.Email, "@") {
		return internal.NewValidationFieldError("email", "The email field must be a valid email address.", internal.ErrCodeValidationFailed)
	}
	if len(dto.Password) < 8 {
		return internal.NewValidationFieldError("password", "The password field must be at least 8 characters.", internal.ErrCodeValidationFailed)
	}
	return nil
}

// UpdateUserDTO carries a partial update. A nil RoleIDs leaves membership
// untouched; an empty Password keeps the current credential.
type UpdateUserDTO struct {
	Name     *string  `json:"name"`
	Email    *string  `json:"email"`
	Password string   `json:"password"`
	RoleIDs  *[]int64 `json:"role_ids"`
}

func (dto *UpdateUserDTO) Validate() error {
	if dto.Name != nil {
		trimmed := strings.TrimSpace(*dto.Name)
		if trimmed == "" {
			return internal.NewValidationFieldError("name", "The name field is required.", internal.ErrCodeValidationFailed)
		}
		dto.Name = &trimmed
	}
	if dto.Email != nil {
		trimmed := strings.TrimSpace(strings.ToLower(*dto.Email))
		if trimmed == "" || !strings.Contains(trimmed, "@") {
			return internal.NewValidationFieldError("email", "The email field must be a valid email address.", internal.ErrCodeValidationFailed)
		}
		dto.Email = &trimmed
	}
	if dto.Password != "" && len(dto.Password) < 8 {
		return internal.NewValidationFieldError("password", "The password field must be at least 8 characters.", internal.ErrCodeValidationFailed)
	}
	return nil
}

type SuspendUserDTO struct {
	Reason string `json:"reason"`
}
