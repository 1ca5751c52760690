package lessons

import (
	"context"
	"errors"
	"fmt"

	"github.com/koscakluka/ema-tutor/core/store"
)

// Record kinds in the store.
const (
	KindCourse    = "course"
	KindSession   = "session"
	KindUser      = "user"
	KindCharacter = "character"
	KindGame      = "game"
	KindSummary   = "summary"
)

// Records is typed access to the lesson records of a store.
type Records struct {
	Store store.Store
}

func NewRecords(s store.Store) *Records {
	return &Records{Store: s}
}

func get[T any](ctx context.Context, r *Records, kind, id string) (*T, error) {
	v, err := store.GetJSON[T](ctx, r.Store, kind, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%s with id %q: %w", kind, id, err)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *Records) Session(ctx context.Context, id string) (*Session, error) {
	return get[Session](ctx, r, KindSession, id)
}

func (r *Records) PutSession(ctx context.Context, s *Session) error {
	return store.PutJSON(ctx, r.Store, KindSession, s.ID, s)
}

func (r *Records) Course(ctx context.Context, id string) (*Course, error) {
	return get[Course](ctx, r, KindCourse, id)
}

func (r *Records) PutCourse(ctx context.Context, c *Course) error {
	return store.PutJSON(ctx, r.Store, KindCourse, c.ID, c)
}

func (r *Records) User(ctx context.Context, id string) (*User, error) {
	return get[User](ctx, r, KindUser, id)
}

func (r *Records) PutUser(ctx context.Context, u *User) error {
	return store.PutJSON(ctx, r.Store, KindUser, u.ID, u)
}

// Character looks a character up by name.
func (r *Records) Character(ctx context.Context, name string) (*Character, error) {
	return get[Character](ctx, r, KindCharacter, name)
}

func (r *Records) PutCharacter(ctx context.Context, c *Character) error {
	return store.PutJSON(ctx, r.Store, KindCharacter, c.Name, c)
}

func (r *Records) Game(ctx context.Context, id string) (*Game, error) {
	return get[Game](ctx, r, KindGame, id)
}

func (r *Records) PutGame(ctx context.Context, g *Game) error {
	return store.PutJSON(ctx, r.Store, KindGame, g.ID, g)
}

func (r *Records) Summary(ctx context.Context, sessionID string) (*Summary, error) {
	return get[Summary](ctx, r, KindSummary, sessionID)
}

func (r *Records) PutSummary(ctx context.Context, s *Summary) error {
	return store.PutJSON(ctx, r.Store, KindSummary, s.SessionID, s)
}
