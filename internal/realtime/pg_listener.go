package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	models "tenderplan/internal/domain/models/outline"
	"tenderplan/internal/repository/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	listenRetryMin = time.Second
	listenRetryMax = 30 * time.Second
)

// ChangeDispatcher receives decoded change notifications.
type ChangeDispatcher interface {
	DispatchChange(evt models.ChangeEvent)
}

// Listener holds a dedicated connection on LISTEN and forwards row change
// notifications published by the outline triggers.
type Listener struct {
	pool     *pgxpool.Pool
	tables   *postgres.TableNames
	dispatch ChangeDispatcher
	logger   *slog.Logger
}

// NewListener creates a change listener.
func NewListener(pool *pgxpool.Pool, tables *postgres.TableNames, dispatch ChangeDispatcher, logger *slog.Logger) *Listener {
	return &Listener{
		pool:     pool,
		tables:   tables,
		dispatch: dispatch,
		logger:   logger.With("component", "pg_listener", "channel", tables.NotifyChannel),
	}
}

// Run listens until ctx is cancelled, reconnecting with backoff. Events
// emitted while disconnected are lost; sessions catch up on their next reload.
func (l *Listener) Run(ctx context.Context) {
	backoff := listenRetryMin
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		l.logger.Warn("change listener disconnected", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > listenRetryMax {
			backoff = listenRetryMax
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.tables.NotifyChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.logger.Info("listening for outline changes")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		evt, err := l.decode(n.Payload)
		if err != nil {
			l.logger.Warn("bad change payload", "error", err, "payload", n.Payload)
			continue
		}
		l.dispatch.DispatchChange(evt)
	}
}

func (l *Listener) decode(payload string) (models.ChangeEvent, error) {
	var evt models.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		return evt, err
	}
	evt.Table = l.tables.Unprefixed(evt.Table)
	if evt.ProjectID == "" && evt.Table != models.TableSources {
		return evt, errors.New("missing project_id")
	}
	return evt, nil
}
