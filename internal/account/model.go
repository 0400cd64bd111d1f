package account

import "errors"

var (
	// ErrInvalidCredentials covers both an unknown user and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotImplemented     = errors.New("registration is not implemented")
)

// Role is captured for every user but not enforced anywhere.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleExpert    Role = "expert"
	RoleAnnotator Role = "annotator"
)

// User is a demo account. Password is stored in plaintext.
type User struct {
	Username     string `json:"username" yaml:"username"`
	Password     string `json:"-" yaml:"-"`
	Role         Role   `json:"role" yaml:"role"`
	HospitalName string `json:"hospital_name" yaml:"hospital_name"`
}

// RegisterForm is the buffered registration form.
type RegisterForm struct {
	Username         string `json:"username"`
	Password         string `json:"-"`
	Role             Role   `json:"role"`
	VerificationCode string `json:"verification_code"`
	HospitalName     string `json:"hospital_name"`
}

// NewRegisterForm returns an empty form with the default role.
func NewRegisterForm() RegisterForm {
	return RegisterForm{Role: RoleAnnotator}
}

// SeedUsers are the accounts available at start-up.
func SeedUsers() []User {
	return []User{
		{Username: "admin", Password: "admin123", Role: RoleAdmin, HospitalName: "System Administrator"},
		{Username: "doctor1", Password: "doc123", Role: RoleExpert, HospitalName: "Beijing Tsinghua Hospital"},
	}
}
