package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	GoogleID string `json:"-"`
}

// UpsertUserByGoogleID creates the user on first sign-in and refreshes the
// profile fields on every subsequent one. The stable id survives re-auth.
func (s *Store) UpsertUserByGoogleID(ctx context.Context, googleID, email, name string) (User, error) {
	user, err := s.lookupUserBy(ctx, "google_id", googleID)
	if err == nil {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE users SET email = ?, name = ? WHERE id = ?`,
			email, name, user.ID,
		); err != nil {
			return User{}, fmt.Errorf("update user: %w", err)
		}
		user.Email = email
		user.Name = name
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return User{}, err
	}

	user = User{ID: uuid.NewString(), Email: email, Name: name, GoogleID: googleID}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, google_id) VALUES (?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.GoogleID,
	); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *Store) LookupUser(ctx context.Context, id string) (User, error) {
	return s.lookupUserBy(ctx, "id", id)
}

func (s *Store) lookupUserBy(ctx context.Context, column, value string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, google_id FROM users WHERE `+column+` = ?`, value,
	).Scan(&user.ID, &user.Email, &user.Name, &user.GoogleID)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}
