// internal/member/domain.go
package member

import (
	"time"

	"github.com/google/uuid"
)

// Roles recognized by the authorization layer.
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// User represents a library account with its denormalized counters.
// TotalBorrowed, TotalReturned and ActivityScore are maintained by the
// lending coordinator inside its transactions, never by this package.
type User struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	DisplayName   string    `json:"display_name"`
	Avatar        string    `json:"avatar,omitempty"`
	ClassMajor    string    `json:"class_major,omitempty"`
	StudentID     string    `json:"student_id,omitempty"`
	Role          string    `json:"role"`
	TotalBorrowed int       `json:"total_borrowed"`
	TotalReturned int       `json:"total_returned"`
	ActivityScore int       `json:"activity_score"`
	FCMToken      string    `json:"fcm_token,omitempty"`
	IsPushEnabled bool      `json:"is_push_enabled"`
	CreatedAt     time.Time `json:"created_at"`
}

// Summary is the denormalized view attached to lending and booking
// responses.
type Summary struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
}

// CreateParams carries the fields accepted at registration.
type CreateParams struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
	ClassMajor  string `json:"class_major"`
	StudentID   string `json:"student_id"`
	Role        string `json:"role"`
}

// UpdateParams carries the mutable profile fields. Nil means unchanged.
type UpdateParams struct {
	DisplayName *string `json:"display_name"`
	Avatar      *string `json:"avatar"`
	ClassMajor  *string `json:"class_major"`
	Role        *string `json:"role"`
}

// ListQuery filters the paginated user listing.
type ListQuery struct {
	Role   string
	Search string
	Page   int
	Limit  int
}
