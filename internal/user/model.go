package user

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailRegex    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// User is the account entity. PasswordHash never leaves the package through
// the public projection.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Avatar       string    `json:"avatar,omitempty"`
	IsOnline     bool      `json:"isOnline"`
	LastSeen     time.Time `json:"lastSeen"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Public is the projection of a user safe to return to any caller.
type Public struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	IsOnline  bool      `json:"isOnline"`
	LastSeen  time.Time `json:"lastSeen"`
	CreatedAt time.Time `json:"createdAt"`
}

// Registration carries the fields needed to create an account. Presence and
// shape are validated by the registration workflow before this reaches the
// entity.
type Registration struct {
	Username string `json:"username" validate:"required,min=3,max=20"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
	Avatar   string `json:"avatar,omitempty"`
}

// Update carries a partial account update; nil fields are left untouched.
type Update struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
	Password *string `json:"password,omitempty"`
}

// NewFromRegistration builds a user with a fresh id and a bcrypt hash of the
// supplied password. New accounts start offline.
func NewFromRegistration(reg Registration, bcryptCost int) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcryptCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &User{
		ID:           uuid.NewString(),
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: string(hash),
		Avatar:       reg.Avatar,
		IsOnline:     false,
		LastSeen:     now,
		CreatedAt:    now,
	}, nil
}

// ValidatePassword compares a plaintext password against the stored hash.
// A mismatch is an ordinary false, never an error.
func (u *User) ValidatePassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

// UpdatePassword replaces the stored hash with one derived from newPlain.
func (u *User) UpdatePassword(newPlain string, bcryptCost int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPlain), bcryptCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// SetOnline marks the user online and refreshes LastSeen.
func (u *User) SetOnline() {
	u.IsOnline = true
	u.LastSeen = time.Now().UTC()
}

// SetOffline marks the user offline and refreshes LastSeen.
func (u *User) SetOffline() {
	u.IsOnline = false
	u.LastSeen = time.Now().UTC()
}

// IsValidUsername reports whether the username is 3-20 characters of
// letters, digits and underscores.
func (u *User) IsValidUsername() bool {
	return len(u.Username) >= 3 && len(u.Username) <= 20 && usernameRegex.MatchString(u.Username)
}

// IsValidEmail reports whether the email matches a basic local@domain.tld
// shape.
func (u *User) IsValidEmail() bool {
	return emailRegex.MatchString(u.Email)
}

// DisplayName returns the username, falling back to the local part of the
// email address.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return strings.SplitN(u.Email, "@", 2)[0]
}

// IsRecentlyActive reports whether the user was seen within the threshold.
func (u *User) IsRecentlyActive(threshold time.Duration) bool {
	return u.LastSeen.After(time.Now().Add(-threshold))
}

// ToPublic returns the user without the password hash.
func (u *User) ToPublic() Public {
	return Public{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Avatar:    u.Avatar,
		IsOnline:  u.IsOnline,
		LastSeen:  u.LastSeen,
		CreatedAt: u.CreatedAt,
	}
}
