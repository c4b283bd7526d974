package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

import (
	"github.com/redis/go-redis/v9"
)

import (
	"github.com/nanjiek/pixiu-notes/internal/notes"
)

var _ notes.Store = (*NoteStore)(nil)

// NoteStore keeps each note as JSON under its own key and orders them with a
// sorted set scored by creation time.
type NoteStore struct {
	r *RedisRepo
}

func (r *RedisRepo) Notes() *NoteStore {
	return &NoteStore{r: r}
}

func (s *NoteStore) List(parentCtx context.Context) ([]notes.Note, error) {
	ctx, cancel := s.r.withTimeout(parentCtx, 0)
	defer cancel()

	ids, err := s.r.Cli.ZRevRange(ctx, s.r.KeyNoteIndex(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []notes.Note{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.r.KeyNote(id)
	}
	vals, err := s.r.Cli.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]notes.Note, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// index entry without a body, left behind by an interrupted delete
			s.r.logger.Warn("note missing from index", "id", ids[i])
			continue
		}
		var n notes.Note
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			s.r.logger.Warn("failed to unmarshal note", "id", ids[i], "err", err)
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *NoteStore) Get(parentCtx context.Context, id string) (notes.Note, error) {
	ctx, cancel := s.r.withTimeout(parentCtx, 0)
	defer cancel()

	raw, err := s.r.Cli.Get(ctx, s.r.KeyNote(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return notes.Note{}, notes.ErrNotFound
	}
	if err != nil {
		return notes.Note{}, err
	}
	var n notes.Note
	if err := json.Unmarshal(raw, &n); err != nil {
		return notes.Note{}, fmt.Errorf("decode note %s: %w", id, err)
	}
	return n, nil
}

func (s *NoteStore) Create(parentCtx context.Context, n notes.Note) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	ctx, cancel := s.r.withTimeout(parentCtx, 0)
	defer cancel()

	_, err = s.r.Cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.r.KeyNote(n.ID), b, 0)
		pipe.ZAdd(ctx, s.r.KeyNoteIndex(), redis.Z{
			Score:  float64(n.CreatedAt.UnixMilli()),
			Member: n.ID,
		})
		return nil
	})
	return err
}

// Update overwrites an existing note only; the index score stays at the
// original creation time.
func (s *NoteStore) Update(parentCtx context.Context, n notes.Note) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	ctx, cancel := s.r.withTimeout(parentCtx, 0)
	defer cancel()

	ok, err := s.r.Cli.SetXX(ctx, s.r.KeyNote(n.ID), b, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return notes.ErrNotFound
	}
	return nil
}

func (s *NoteStore) Delete(parentCtx context.Context, id string) error {
	ctx, cancel := s.r.withTimeout(parentCtx, 0)
	defer cancel()

	var del *redis.IntCmd
	_, err := s.r.Cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.r.KeyNote(id))
		pipe.ZRem(ctx, s.r.KeyNoteIndex(), id)
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return notes.ErrNotFound
	}
	return nil
}
