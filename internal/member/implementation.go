// internal/member/implementation.go
package member

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"bookhive/internal/apperr"
	"bookhive/internal/store"
)

const userColumns = `
	id, username, COALESCE(email, ''), COALESCE(phone, ''), display_name,
	COALESCE(avatar, ''), COALESCE(class_major, ''), COALESCE(student_id, ''),
	role, total_borrowed, total_returned, activity_score,
	COALESCE(fcm_token, ''), is_push_enabled, created_at
`

// service implements the Service interface.
type service struct {
	db          *sql.DB
	rateLimiter *rate.Limiter
}

// NewService creates a new member service instance.
func NewService(db *sql.DB) Service {
	return &service{
		db:          db,
		rateLimiter: rate.NewLimiter(rate.Every(1*time.Minute), 5), // 5 credential operations per minute
	}
}

// Register creates a new user account.
func (s *service) Register(ctx context.Context, params CreateParams) (*User, error) {
	if !s.rateLimiter.Allow() {
		return nil, apperr.Conflict("rate limit exceeded")
	}

	if params.Username == "" || params.Password == "" || params.DisplayName == "" {
		return nil, apperr.Invalid("username, password and display_name are required")
	}
	if params.Role == "" {
		params.Role = RoleStudent
	}
	if params.Role != RoleStudent && params.Role != RoleAdmin {
		return nil, apperr.Invalid("unknown role %q", params.Role)
	}
	if params.Role == RoleStudent && params.StudentID == "" {
		return nil, apperr.Invalid("student_id is required for student accounts")
	}

	passwordHash, salt, err := hashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:            uuid.New(),
		Username:      params.Username,
		Email:         params.Email,
		Phone:         params.Phone,
		DisplayName:   params.DisplayName,
		Avatar:        params.Avatar,
		ClassMajor:    params.ClassMajor,
		StudentID:     params.StudentID,
		Role:          params.Role,
		IsPushEnabled: true,
		CreatedAt:     time.Now().UTC(),
	}

	query := `
		INSERT INTO users (id, username, email, phone, password_hash, salt, display_name, avatar, class_major, student_id, role, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), $11, $12)
	`
	_, err = s.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.Phone, passwordHash, salt,
		user.DisplayName, user.Avatar, user.ClassMajor, user.StudentID, user.Role, user.CreatedAt,
	)
	if err != nil {
		// Unique violations on username/email/phone surface as conflicts.
		if mapped := store.MapConstraint(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

// Authenticate verifies a user's credentials and returns the user if successful.
func (s *service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	if !s.rateLimiter.Allow() {
		return nil, apperr.Conflict("rate limit exceeded")
	}

	var (
		id           uuid.UUID
		passwordHash string
		salt         string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, password_hash, salt FROM users WHERE username = $1`, username).
		Scan(&id, &passwordHash, &salt)
	if store.IsNoRows(err) {
		return nil, apperr.Forbidden("invalid credentials")
	}
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	ok, err := verifyPassword(password, salt, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if !ok {
		return nil, apperr.Forbidden("invalid credentials")
	}

	return s.GetUser(ctx, id)
}

// GetUser retrieves a user by their ID.
func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if store.IsNoRows(err) {
		return nil, apperr.NotFound("user %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers returns a page of users plus the total row count.
func (s *service) ListUsers(ctx context.Context, query ListQuery) ([]*User, int, error) {
	page, limit := normalizePage(query.Page, query.Limit)

	ds := goqu.Dialect("postgres").
		From("users").
		Select(goqu.L(userColumns)).
		Order(goqu.I("created_at").Desc()).
		Limit(uint(limit)).
		Offset(uint((page - 1) * limit))
	countDS := goqu.Dialect("postgres").From("users").Select(goqu.COUNT("*"))

	if query.Role != "" {
		ds = ds.Where(goqu.Ex{"role": query.Role})
		countDS = countDS.Where(goqu.Ex{"role": query.Role})
	}
	if query.Search != "" {
		pattern := "%" + query.Search + "%"
		ds = ds.Where(goqu.I("username").ILike(pattern))
		countDS = countDS.Where(goqu.I("username").ILike(pattern))
	}

	sqlQuery, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build user query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}

	countQuery, countArgs, err := countDS.Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build user count query: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

// UpdateUser updates a user's mutable profile fields.
func (s *service) UpdateUser(ctx context.Context, id uuid.UUID, params UpdateParams) (*User, error) {
	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}

	updates := goqu.Record{"updated_at": goqu.L("NOW()")}
	if params.DisplayName != nil {
		updates["display_name"] = *params.DisplayName
	}
	if params.Avatar != nil {
		updates["avatar"] = goqu.L("NULLIF(?, '')", *params.Avatar)
	}
	if params.ClassMajor != nil {
		updates["class_major"] = goqu.L("NULLIF(?, '')", *params.ClassMajor)
	}
	if params.Role != nil {
		if *params.Role != RoleStudent && *params.Role != RoleAdmin {
			return nil, apperr.Invalid("unknown role %q", *params.Role)
		}
		updates["role"] = *params.Role
	}

	sqlQuery, args, err := goqu.Dialect("postgres").
		Update("users").
		Set(updates).
		Where(goqu.Ex{"id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build user update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	return s.GetUser(ctx, id)
}

// DeleteUser removes a user account. Accounts with active borrows cannot
// be deleted.
func (s *service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}

	var activeBorrows int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM borrows WHERE user_id = $1 AND status = 'active'`, id).
		Scan(&activeBorrows)
	if err != nil {
		return fmt.Errorf("count active borrows: %w", err)
	}
	if activeBorrows > 0 {
		return apperr.Conflict("user has %d active borrows", activeBorrows)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// UpdateFCMToken stores the push token used by the reminder scanner.
func (s *service) UpdateFCMToken(ctx context.Context, id uuid.UUID, token string, pushEnabled *bool) (*User, error) {
	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}

	if pushEnabled != nil {
		_, err := s.db.ExecContext(ctx,
			`UPDATE users SET fcm_token = NULLIF($1, ''), is_push_enabled = $2, updated_at = NOW() WHERE id = $3`,
			token, *pushEnabled, id)
		if err != nil {
			return nil, fmt.Errorf("update fcm token: %w", err)
		}
	} else {
		_, err := s.db.ExecContext(ctx,
			`UPDATE users SET fcm_token = NULLIF($1, ''), updated_at = NOW() WHERE id = $2`,
			token, id)
		if err != nil {
			return nil, fmt.Errorf("update fcm token: %w", err)
		}
	}

	return s.GetUser(ctx, id)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Phone,
		&user.DisplayName,
		&user.Avatar,
		&user.ClassMajor,
		&user.StudentID,
		&user.Role,
		&user.TotalBorrowed,
		&user.TotalReturned,
		&user.ActivityScore,
		&user.FCMToken,
		&user.IsPushEnabled,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}
