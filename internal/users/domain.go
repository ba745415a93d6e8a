package users

import (
	"errors"
	"time"

	"github.com/meridian-ip/meridian/internal/authz/catalog"
)

// User represents a platform account.
type User struct {
	ID        int64
	Email     string
	Name      string
	Role      catalog.Role
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ErrNotFound indicates the user does not exist.
var ErrNotFound = errors.New("users: not found")
