package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

import (
	"github.com/google/uuid"
)

type Service struct {
	store  Store
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDFunc(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	if store == nil {
		panic("notes: nil store")
	}
	s := &Service{
		store:  store,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) List(ctx context.Context) ([]Note, error) {
	out, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	if out == nil {
		out = []Note{}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (Note, error) {
	if strings.TrimSpace(id) == "" {
		return Note{}, ErrNotFound
	}
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return Note{}, wrap("get note", id, err)
	}
	return n, nil
}

func (s *Service) Create(ctx context.Context, title, content string) (Note, error) {
	title, content, err := normalize(title, content)
	if err != nil {
		return Note{}, err
	}
	now := s.now().UTC()
	n := Note{
		ID:        s.newID(),
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, n); err != nil {
		return Note{}, fmt.Errorf("create note: %w", err)
	}
	s.logger.Debug("note created", "id", n.ID)
	return n, nil
}

func (s *Service) Update(ctx context.Context, id, title, content string) (Note, error) {
	title, content, err := normalize(title, content)
	if err != nil {
		return Note{}, err
	}
	n, err := s.Get(ctx, id)
	if err != nil {
		return Note{}, err
	}
	n.Title = title
	n.Content = content
	n.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, n); err != nil {
		return Note{}, wrap("update note", id, err)
	}
	return n, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrNotFound
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return wrap("delete note", id, err)
	}
	s.logger.Debug("note deleted", "id", id)
	return nil
}

func normalize(title, content string) (string, string, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return "", "", ErrInvalidNote
	}
	return title, content, nil
}

// wrap keeps ErrNotFound unwrapped-comparable while adding context to
// everything else.
func wrap(op, id string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s %s: %w", op, id, err)
}
