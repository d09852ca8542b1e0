// Package sqlite implements store.Store on top of zombiezen.com/go/sqlite,
// a pooled, CGo-free sqlite driver. Every state mutation and its event-log
// append happen inside one savepoint, so invariant 5 (exactly one event
// per mutation) holds even under concurrent writers.
package sqlite

import (
	"context"
	"fmt"
	"io/fs"
	"runtime"
	"sort"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/dotsama/identity-registrar/migrations"
	"github.com/dotsama/identity-registrar/store"
)

// Store is a sqlite-backed store.Store.
type Store struct {
	pool *sqlitex.Pool
}

var _ store.Store = (*Store)(nil)

// New opens (creating if necessary) the sqlite database at path and applies
// the embedded schema.
func New(path string) (*Store, error) {
	poolSize := runtime.NumCPU()
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := sqlitex.NewPool(fmt.Sprintf("file:%s", path), sqlitex.PoolOptions{
		PoolSize: poolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: open %s: %w", path, err)
	}

	s := &Store{pool: pool}
	if err := s.applySchema(); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) applySchema() error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("store/sqlite: take connection for migration: %w", err)
	}
	defer s.pool.Put(conn)

	schemaFS := migrations.Schema()
	entries, err := schemaFiles(schemaFS)
	if err != nil {
		return err
	}
	for _, path := range entries {
		sqlBytes, err := readFile(schemaFS, path)
		if err != nil {
			return fmt.Errorf("store/sqlite: read schema %s: %w", path, err)
		}
		if err := sqlitex.ExecuteScript(conn, string(sqlBytes), nil); err != nil {
			return fmt.Errorf("store/sqlite: apply schema %s: %w", path, err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// withTx runs fn inside a savepoint: committed if fn returns nil, rolled
// back otherwise. This is how AddJudgementRequest et al. keep their state
// write and event append atomic.
func (s *Store) withTx(conn *sqlite.Conn, fn func() error) (err error) {
	release, err := sqlite.Savepoint(conn)
	if err != nil {
		return store.Transient(err)
	}
	defer release(&err)
	return fn()
}

func (s *Store) take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, store.Transient(err)
	}
	return conn, nil
}

func schemaFiles(schemaFS fs.FS) ([]string, error) {
	var paths []string
	err := fs.WalkDir(schemaFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: walk schema: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

func readFile(schemaFS fs.FS, path string) ([]byte, error) {
	return fs.ReadFile(schemaFS, path)
}
