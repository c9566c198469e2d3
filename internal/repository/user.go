package repository

import (
	"context"
	"errors"
	"fmt"

	"saldo/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct {
	db *pgxpool.Pool
}

func NewUserRepo(db *pgxpool.Pool) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, email, firstname, lastname string) (*model.User, error) {
	var u model.User
	query := `
		INSERT INTO users (user_id, email, firstname, lastname, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING user_id, email, firstname, lastname, created_at`
	err := r.db.QueryRow(ctx, query, uuid.NewString(), email, firstname, lastname).Scan(
		&u.UserID, &u.Email, &u.Firstname, &u.Lastname, &u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("email %s already registered", email)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	query := `SELECT user_id, email, firstname, lastname, created_at FROM users WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&u.UserID, &u.Email, &u.Firstname, &u.Lastname, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}
