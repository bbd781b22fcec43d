package state

import (
	"context"
	"errors"

	"github.com/rustyeddy/breakout/engine"
)

// Store is a snapshot store that can also forget its snapshot.
type Store interface {
	engine.StateStore
	Delete(ctx context.Context) error
}

// ClearHalt unlatches an emergency stop in the saved snapshot. It returns
// false when there was nothing to clear.
func ClearHalt(ctx context.Context, s engine.StateStore) (bool, error) {
	snap, err := s.Load(ctx)
	if errors.Is(err, engine.ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !snap.Halted {
		return false, nil
	}
	snap.ClearHalt()
	return true, s.Save(ctx, snap)
}
