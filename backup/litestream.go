// Package backup runs continuous replication of the registrar's sqlite
// store to a local replica directory, the way the teacher's backup
// package guards its own database file, so an operator never loses the
// judgement-state event log to a crashed disk.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/benbjohnson/litestream"
	litestreamfile "github.com/benbjohnson/litestream/file"
	"github.com/dotsama/identity-registrar/config"
)

// Litestream is a server.Daemon that keeps one sqlite database
// continuously replicated to a local file replica.
type Litestream struct {
	dbPath  string
	logger  *slog.Logger
	db      *litestream.DB
	replica *litestream.Replica

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownDone chan struct{}
}

// NewLitestream builds a Litestream daemon backing up dbPath into
// cfg.ReplicaPath. cfg.ReplicaName defaults to "registrar" when empty.
func NewLitestream(dbPath string, cfg config.Backup, logger *slog.Logger) (*Litestream, error) {
	ctx, cancel := context.WithCancel(context.Background())

	if err := os.MkdirAll(cfg.ReplicaPath, 0750); err != nil && !os.IsExist(err) {
		cancel()
		return nil, fmt.Errorf("backup: create replica directory %q: %w", cfg.ReplicaPath, err)
	}
	absReplicaPath, err := filepath.Abs(cfg.ReplicaPath)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("backup: resolve replica path %q: %w", cfg.ReplicaPath, err)
	}

	replicaName := cfg.ReplicaName
	if replicaName == "" {
		replicaName = "registrar"
	}

	db := litestream.NewDB(dbPath)
	db.Logger = logger.With("db", dbPath)

	replica := litestream.NewReplica(db, replicaName)
	replica.Client = litestreamfile.NewReplicaClient(absReplicaPath)
	db.Replicas = append(db.Replicas, replica)

	return &Litestream{
		dbPath:       dbPath,
		logger:       logger,
		db:           db,
		replica:      replica,
		ctx:          ctx,
		cancel:       cancel,
		shutdownDone: make(chan struct{}),
	}, nil
}

func (l *Litestream) Name() string { return "backup.litestream" }

// Start opens the database, starts replication, and blocks in a
// background goroutine until Stop cancels the context.
func (l *Litestream) Start() error {
	startupErr := make(chan error, 1)

	go func() {
		if err := l.db.Open(); err != nil {
			l.logger.Error("litestream: failed to open database", "err", err)
			close(l.shutdownDone)
			startupErr <- err
			return
		}

		if err := l.replica.Start(l.ctx); err != nil {
			l.logger.Error("litestream: failed to start replica", "err", err)
			close(l.shutdownDone)
			startupErr <- err
			return
		}

		l.logger.Info("litestream: replication started", "db", l.dbPath)
		startupErr <- nil

		<-l.ctx.Done()

		if err := l.replica.Stop(false); err != nil {
			l.logger.Error("litestream: error stopping replica", "err", err)
		}
		if err := l.db.Close(); err != nil {
			l.logger.Error("litestream: error closing database", "err", err)
		}
		close(l.shutdownDone)
	}()

	return <-startupErr
}

// Stop signals the replication goroutine to wind down and waits for it,
// or for ctx to expire first.
func (l *Litestream) Stop(ctx context.Context) error {
	l.cancel()
	select {
	case <-l.shutdownDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
