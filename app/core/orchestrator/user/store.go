package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskmaster/app/core/orchestrator/db"
)

// User is a directory entry. Assignment matching scans these in listing
// order.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name,omitempty"`
	Email     string `json:"email,omitempty"`
	IsActive  bool   `json:"is_active"`
	CreatedAt int64  `json:"created_at"`
}

type Store struct {
	db *db.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

func (s *Store) Create(ctx context.Context, username string, fullName string, email string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, fmt.Errorf("username is required")
	}
	now := time.Now().Unix()
	res, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO users (username, full_name, email, is_active, created_at) VALUES (?, ?, ?, 1, ?)`,
		username, strings.TrimSpace(fullName), strings.TrimSpace(email), now,
	)
	if err != nil {
		return User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, err
	}
	return User{ID: id, Username: username, FullName: strings.TrimSpace(fullName), Email: strings.TrimSpace(email), IsActive: true, CreatedAt: now}, nil
}

func (s *Store) Get(ctx context.Context, userID int64) (User, error) {
	var u User
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT id, username, full_name, email, is_active, created_at FROM users WHERE id = ?`, userID,
	).Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// List returns the whole directory in insertion order. The assignee matcher
// depends on this ordering staying stable.
func (s *Store) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT id, username, full_name, email, is_active, created_at FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}
