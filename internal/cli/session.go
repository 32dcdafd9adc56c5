package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/arictl/internal/config"
	"github.com/roach88/arictl/internal/engine"
	"github.com/roach88/arictl/internal/store"
	"github.com/roach88/arictl/internal/transport"
)

// session is one engine talking to the server through the HTTP transport,
// optionally journaling to the configured database. Its delivery loop runs
// on its own goroutine until Close.
type session struct {
	engine  *engine.Engine
	http    *transport.HTTP
	journal *store.Store

	cancel context.CancelFunc
	done   chan error
}

// openSession wires transport, journal and engine from cfg and starts the
// delivery loop.
func openSession(ctx context.Context, cfg *config.Config) (*session, error) {
	opts := []engine.EngineOption{engine.WithCommandTimeout(cfg.CommandTimeout)}

	var st *store.Store
	if cfg.Journal != "" {
		var err error
		st, err = store.Open(cfg.Journal)
		if err != nil {
			return nil, &journalError{err: err}
		}
		last, err := st.MaxSeq(ctx)
		if err != nil {
			_ = st.Close()
			return nil, &journalError{err: err}
		}
		slog.Debug("journal opened", "path", cfg.Journal, "last_seq", last)
		opts = append(opts,
			engine.WithJournal(st),
			engine.WithClock(engine.NewClockAt(last)),
		)
	}

	tr, err := transport.NewHTTP(cfg.HTTP())
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, &connectionError{err: err}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &session{
		engine:  engine.New(tr, opts...),
		http:    tr,
		journal: st,
		cancel:  cancel,
		done:    make(chan error, 1),
	}
	go func() {
		s.done <- s.engine.Run(runCtx)
	}()
	return s, nil
}

// Close stops the engine and waits for its loop to drain, then releases
// the transport and the journal. Commands still pending are rejected.
func (s *session) Close() error {
	s.engine.Stop()
	runErr := <-s.done
	s.cancel()
	s.http.Close()

	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			return &journalError{err: fmt.Errorf("close: %w", err)}
		}
	}
	if runErr != nil && runErr != context.Canceled {
		return runErr
	}
	return nil
}
