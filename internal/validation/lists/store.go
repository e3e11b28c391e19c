package lists

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"
)

// Store serves the current Lists and swaps in a fresh copy on Reload.
// Readers never block; a failed reload keeps the previous snapshot.
type Store struct {
	path    string
	current atomic.Pointer[Lists]
	logger  *slog.Logger
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore loads path, or the embedded defaults when path is empty. An
// unreadable file at startup is an error; later reload failures are not.
func NewStore(path string, opts ...Option) (*Store, error) {
	s := &Store{path: path}
	for _, opt := range opts {
		opt(s)
	}
	l, err := s.load()
	if err != nil {
		return nil, err
	}
	s.current.Store(l)
	return s, nil
}

// NewStaticStore serves l forever. Used by tests and by callers that manage
// the lists themselves.
func NewStaticStore(l *Lists) *Store {
	s := &Store{}
	s.current.Store(l)
	return s
}

// Current returns the active snapshot.
func (s *Store) Current() *Lists {
	return s.current.Load()
}

// IsDisposable implements DisposableSet on the in-process snapshot.
func (s *Store) IsDisposable(_ context.Context, domain string) (bool, error) {
	return s.Current().IsDisposable(domain), nil
}

// Reload re-reads the source and swaps it in.
func (s *Store) Reload() error {
	l, err := s.load()
	if err != nil {
		return err
	}
	s.current.Store(l)
	return nil
}

// Run reloads every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if s.path == "" || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reload(); err != nil && s.logger != nil {
				s.logger.WarnContext(ctx, "reference list reload failed, keeping previous",
					"path", s.path,
					"error", err,
				)
			}
		}
	}
}

func (s *Store) load() (*Lists, error) {
	if s.path == "" {
		return Defaults(), nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read lists %s: %w", s.path, err)
	}
	return Parse(data)
}
