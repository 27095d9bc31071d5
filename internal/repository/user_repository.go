package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/experience-booking/internal/model"
	"github.com/iliyamo/experience-booking/internal/utils"
)

// UserRepo persists application users.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

const userColumns = `id, email, full_name, password_hash, role, calendar_email, is_active, created_at, updated_at`

func scanUser(row rowScanner) (model.User, error) {
	var (
		u        model.User
		id, role string
		calendar sql.NullString
	)
	err := row.Scan(&id, &u.Email, &u.FullName, &u.PasswordHash, &role,
		&calendar, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if u.ID, err = uuid.Parse(id); err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	if calendar.Valid {
		ce := calendar.String
		u.CalendarEmail = &ce
	}
	return u, nil
}

// Create inserts a user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, email, fullName, password string, role model.Role, cost int) (uuid.UUID, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, full_name, password_hash, role) VALUES (?,?,?,?,?)",
		id.String(), email, fullName, hash, string(role))
	if err != nil {
		if errors.Is(translateDBError(err), ErrConflict) {
			return uuid.Nil, ErrEmailExists
		}
		return uuid.Nil, err
	}
	return id, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// LinkCalendar stores the external calendar account for a user, or
// clears it when email is empty.
func (r *UserRepo) LinkCalendar(ctx context.Context, id uuid.UUID, email string) error {
	var value interface{}
	if email = strings.TrimSpace(email); email != "" {
		value = strings.ToLower(email)
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET calendar_email=? WHERE id=?", value, id.String())
	if err != nil {
		return translateDBError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}
