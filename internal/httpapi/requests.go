package httpapi

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
)

var alphanumeric = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

type loginRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID,
			validation.Required.Error("id is required"),
			validation.Match(alphanumeric).Error("id must contain only letters and digits"),
		),
		validation.Field(&r.Password, validation.Required.Error("password is required")),
	)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r refreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required.Error("refreshToken is required")),
	)
}

type signUpRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type duplicateCheckRequest struct {
	Username string `json:"username"`
}

func (r duplicateCheckRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username,
			validation.Required.Error("username is required"),
			validation.Match(alphanumeric).Error("username must contain only letters and digits"),
		),
	)
}
