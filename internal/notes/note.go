package notes

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("note not found")
	ErrInvalidNote = errors.New("title and content are required")
)

// Note is serialized with the field names the web frontend expects.
type Note struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists notes. Get, Update and Delete return ErrNotFound for
// unknown ids; Update never creates.
type Store interface {
	List(ctx context.Context) ([]Note, error) // newest CreatedAt first
	Get(ctx context.Context, id string) (Note, error)
	Create(ctx context.Context, n Note) error
	Update(ctx context.Context, n Note) error
	Delete(ctx context.Context, id string) error
}
