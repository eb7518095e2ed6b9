package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/calvinalkan/tasktree/internal/config"
	"github.com/calvinalkan/tasktree/internal/engine"
	"github.com/calvinalkan/tasktree/internal/store"

	"github.com/google/uuid"
)

var errNotShown = errors.New("task is not in the tree")

// session is one engine over the configured store.
type session struct {
	cfg    *config.Config
	store  store.Store
	engine *engine.Engine
	closer io.Closer
}

// openSession builds the store selected by cfg.Backend and an engine over
// it. Errors raised by tree notifications are reported through o.
func openSession(ctx context.Context, o *IO, cfg *config.Config) (*session, error) {
	var (
		s      store.Store
		closer io.Closer
	)

	switch cfg.Backend {
	case config.BackendSQLite:
		db, err := store.OpenSQLite(ctx, cfg.DBPathAbs, store.SQLiteOptions{})
		if err != nil {
			return nil, err
		}

		s, closer = db, db
	default:
		s = store.NewTaskwarrior(store.TaskwarriorOptions{
			Bin:    cfg.TaskBin,
			RC:     cfg.TaskRC,
			Runner: store.ExecRunner{},
		})
	}

	e, err := engine.New(ctx, s, engine.Options{Report: o.Error})
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}

		return nil, err
	}

	return &session{cfg: cfg, store: s, engine: e, closer: closer}, nil
}

// Close releases the store.
func (s *session) Close() error {
	if s.closer == nil {
		return nil
	}

	return s.closer.Close()
}

// load rebuilds the tree with the configured default filter.
func (s *session) load(ctx context.Context) error {
	return s.engine.OnFilterSubmitted(ctx, s.cfg.Filter)
}

// reveal resolves an id argument and makes sure its node is in the tree.
func (s *session) reveal(ctx context.Context, arg string) (uuid.UUID, error) {
	id, err := s.engine.Resolve(arg)
	if err != nil {
		return uuid.Nil, err
	}

	if _, ok := s.engine.Handle(id); ok {
		return id, nil
	}

	_, err = s.engine.Reveal(ctx, id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s: %w", errNotShown, arg, err)
	}

	return id, nil
}

// withSession loads cfg's store, runs fn, and closes the store.
func withSession(ctx context.Context, o *IO, cfg *config.Config, fn func(s *session) error) error {
	s, err := openSession(ctx, o, cfg)
	if err != nil {
		return err
	}

	defer func() { _ = s.Close() }()

	err = s.load(ctx)
	if err != nil {
		return err
	}

	return fn(s)
}
