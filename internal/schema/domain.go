package schema

import (
	"strings"

	"github.com/hitoshi/scalaya/internal/model"
)

type loginInput struct {
	Email    string `json:"email" validate:"email"`
	Password string `json:"password" validate:"required"`
}

var loginMessages = map[string]string{
	"email.email":       "Invalid email address",
	"password.required": "Password is required",
}

// ParseLoginCredentials はログイン入力を検証し、正規化済みの値を返す。
func ParseLoginCredentials(c model.LoginCredentials) (model.LoginCredentials, error) {
	in := loginInput{
		Email:    strings.TrimSpace(c.Email),
		Password: c.Password,
	}
	if err := check(in, loginMessages); err != nil {
		return model.LoginCredentials{}, err
	}
	return model.LoginCredentials{Email: in.Email, Password: in.Password}, nil
}

type registerInput struct {
	Name            string `json:"name" validate:"min=2,max=100"`
	Email           string `json:"email" validate:"email"`
	Password        string `json:"password" validate:"min=8,password_bytes,password_complex"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
	AcceptTerms     bool   `json:"acceptTerms" validate:"accepted"`
}

var registerMessages = map[string]string{
	"name.min":                  "Name must be at least 2 characters",
	"name.max":                  "Name must be at most 100 characters",
	"email.email":               "Invalid email address",
	"password.min":              "Password must be at least 8 characters",
	"password.password_bytes":   "Password must be at most 72 bytes",
	"password.password_complex": "Password must contain uppercase, lowercase, and number",
	"confirmPassword.eqfield":   "Passwords don't match",
	"acceptTerms.accepted":      "You must accept the terms and conditions",
}

// ParseRegisterCredentials はサインアップ入力を検証し、正規化済みの値を返す。
// パスワード不一致は confirmPassword のパスで報告される。
func ParseRegisterCredentials(c model.RegisterCredentials) (model.RegisterCredentials, error) {
	in := registerInput{
		Name:            strings.TrimSpace(c.Name),
		Email:           strings.TrimSpace(c.Email),
		Password:        c.Password,
		ConfirmPassword: c.ConfirmPassword,
		AcceptTerms:     c.AcceptTerms,
	}
	if err := check(in, registerMessages); err != nil {
		return model.RegisterCredentials{}, err
	}
	return model.RegisterCredentials(in), nil
}

type userInput struct {
	ID    string  `json:"id" validate:"required"`
	Name  string  `json:"name" validate:"min=2"`
	Email string  `json:"email" validate:"email"`
	Image *string `json:"image" validate:"omitnil,url"`
}

var userMessages = map[string]string{
	"id.required": "User id is required",
	"name.min":    "Name must be at least 2 characters",
	"email.email": "Invalid email address",
	"image.url":   "Invalid image URL",
}

// ParseUser はユーザーを検証する。
func ParseUser(u model.User) (model.User, error) {
	in := userInput{
		ID:    u.ID,
		Name:  strings.TrimSpace(u.Name),
		Email: strings.TrimSpace(u.Email),
		Image: u.Image,
	}
	if err := check(in, userMessages); err != nil {
		return model.User{}, err
	}
	return model.User{
		ID:        in.ID,
		Name:      in.Name,
		Email:     in.Email,
		Image:     in.Image,
		CreatedAt: u.CreatedAt,
	}, nil
}

type sessionInput struct {
	Expires string `json:"expires" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

var sessionMessages = map[string]string{
	"expires.required": "Session expiry is required",
	"expires.datetime": "Session expiry must be an RFC3339 timestamp",
}

// ParseSession はセッションを検証する。含まれるユーザーも ParseUser で検証する。
func ParseSession(s model.Session) (model.Session, error) {
	if err := check(sessionInput{Expires: s.Expires}, sessionMessages); err != nil {
		return model.Session{}, err
	}
	u, err := ParseUser(s.User)
	if err != nil {
		if se, ok := err.(*Error); ok {
			for i := range se.Issues {
				se.Issues[i].Path = "user." + se.Issues[i].Path
			}
		}
		return model.Session{}, err
	}
	s.User = u
	return s, nil
}
