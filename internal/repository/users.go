package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gitlab.com/dirk.krummacker/address-book/internal/model"
)

// ErrDuplicateEmail is returned by CreateUser when the email address is already registered.
var ErrDuplicateEmail = errors.New("email address already registered")

// mysqlDuplicateEntry is the MySQL error number for a unique key violation.
const mysqlDuplicateEntry = 1062

const userColumns = "id, username, email, password, refresh_token, confirmed, created_at"

// GetUserByEmail returns the user registered with the given email address, nil if there is none.
func GetUserByEmail(ctx context.Context, db Session, email string) (*model.User, error) {
	var user model.User
	query := fmt.Sprintf("SELECT %s FROM users WHERE email = ?", userColumns)
	err := db.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not select user: %w", err)
	}
	return &user, nil
}

// CreateUser stores a new, unconfirmed user. The password must already be hashed.
func CreateUser(ctx context.Context, db Session, user model.User) (*model.User, error) {
	user.Id = 0
	user.Confirmed = false
	user.RefreshToken = sql.NullString{}
	user.CreatedAt = time.Now().UTC().Truncate(time.Second)
	result, err := db.ExecContext(ctx, `
		INSERT INTO users (username, email, password, confirmed, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		user.Username, user.Email, user.Password, user.Confirmed, user.CreatedAt)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("could not insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("could not read id of new user: %w", err)
	}
	user.Id = id
	return &user, nil
}

// UpdateToken stores the user's current refresh token. An empty token clears it.
func UpdateToken(ctx context.Context, db Session, userID int64, token string) error {
	value := sql.NullString{String: token, Valid: token != ""}
	if _, err := db.ExecContext(ctx, "UPDATE users SET refresh_token = ? WHERE id = ?", value, userID); err != nil {
		return fmt.Errorf("could not update refresh token of user %d: %w", userID, err)
	}
	return nil
}

// ConfirmEmail marks the user with the given email address as confirmed.
func ConfirmEmail(ctx context.Context, db Session, email string) error {
	if _, err := db.ExecContext(ctx, "UPDATE users SET confirmed = TRUE WHERE email = ?", email); err != nil {
		return fmt.Errorf("could not confirm email: %w", err)
	}
	return nil
}
