// internal/membership/domain.go
package membership

import (
	"regexp"
	"sort"
	"strings"
)

// User is a marketplace account as seen by the client.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	UserType    string `json:"userType,omitempty"`
	Address     string `json:"address,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// Credentials is the input of the login operation.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the input of the register operation. ConfirmPassword never leaves the client.
type Registration struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"-"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Address         string `json:"address"`
	PhoneNumber     string `json:"phoneNumber"`
	UserType        string `json:"userType"`
}

// DefaultUserType is assigned to every self-registered account.
const DefaultUserType = "USER"

const (
	minLoginPasswordLength    = 3
	minRegisterPasswordLength = 6
)

var (
	emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	phonePattern = regexp.MustCompile(`^[0-9]{11}$`)
)

// ValidationError maps field names to messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Validate applies the login form rules.
func (c Credentials) Validate() error {
	fields := make(map[string]string)
	if !emailPattern.MatchString(c.Email) {
		fields["email"] = "Invalid email"
	}
	if len(c.Password) < minLoginPasswordLength {
		fields["password"] = "Password must be at least 3 characters"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Validate applies the registration form rules.
func (r Registration) Validate() error {
	fields := make(map[string]string)
	if !emailPattern.MatchString(r.Email) {
		fields["email"] = "Invalid email format"
	}
	if !phonePattern.MatchString(r.PhoneNumber) {
		fields["phoneNumber"] = "Phone number must be 11 digits"
	}
	if len(r.Password) < minRegisterPasswordLength {
		fields["password"] = "Password must be at least 6 characters"
	}
	if r.ConfirmPassword != r.Password {
		fields["confirmPassword"] = "Passwords must match"
	}
	if strings.TrimSpace(r.FirstName) == "" {
		fields["firstName"] = "First name is required"
	}
	if strings.TrimSpace(r.LastName) == "" {
		fields["lastName"] = "Last name is required"
	}
	if strings.TrimSpace(r.Address) == "" {
		fields["address"] = "Address is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
