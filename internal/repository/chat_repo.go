package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lumos-backend/internal/models"
)

// ErrNotFound is returned whenever no row matches an id+owner filter.
// Missing and not-owned are deliberately indistinguishable so that
// existence never leaks to non-owners.
var ErrNotFound = errors.New("not found")

type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

func (r *ChatRepo) Create(ctx context.Context, chat *models.Chat) error {
	chat.ID = uuid.New()
	if chat.Messages == nil {
		chat.Messages = []models.Message{}
	}

	query := `INSERT INTO chats (id, user_id, name, messages)
		VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		chat.ID, chat.UserID, chat.Name, chat.Messages,
	).Scan(&chat.CreatedAt, &chat.UpdatedAt)
}

func (r *ChatRepo) ListByOwner(ctx context.Context, ownerID string) ([]*models.Chat, error) {
	query := `SELECT id, user_id, name, messages, created_at, updated_at
		FROM chats WHERE user_id = $1`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []*models.Chat
	for rows.Next() {
		c := &models.Chat{}
		err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Messages, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func (r *ChatRepo) GetByIDAndOwner(ctx context.Context, id uuid.UUID, ownerID string) (*models.Chat, error) {
	c := &models.Chat{}
	query := `SELECT id, user_id, name, messages, created_at, updated_at
		FROM chats WHERE id = $1 AND user_id = $2`

	err := r.pool.QueryRow(ctx, query, id, ownerID).Scan(
		&c.ID, &c.UserID, &c.Name, &c.Messages, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ReplaceMessages rewrites the chat's whole message array in one durable
// write. No version check: concurrent writers race with last-write-wins.
func (r *ChatRepo) ReplaceMessages(ctx context.Context, id uuid.UUID, ownerID string, messages []models.Message) error {
	query := `UPDATE chats SET messages = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2`

	tag, err := r.pool.Exec(ctx, query, id, ownerID, messages)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ChatRepo) Rename(ctx context.Context, id uuid.UUID, ownerID, name string) (*models.Chat, error) {
	c := &models.Chat{}
	query := `UPDATE chats SET name = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, name, messages, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, id, ownerID, name).Scan(
		&c.ID, &c.UserID, &c.Name, &c.Messages, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ChatRepo) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM chats WHERE id = $1 AND user_id = $2", id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
