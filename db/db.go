package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/charmbracelet/log"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// DB is the database struct.
type DB struct {
	db *sql.DB
}

// Open opens (and if necessary creates) the sqlite database at path and runs
// the schema migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Configure connection pool for concurrent access
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	var journalMode string
	if err := sqlDB.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		log.Warn("Failed to enable WAL mode", "err", err)
	} else {
		log.Debug("Database journal mode", "mode", journalMode)
	}

	// Concurrent inbox traffic relies on the unique constraints below plus
	// a busy timeout; the engine itself takes no locks.
	sqlDB.Exec("PRAGMA synchronous = NORMAL")
	sqlDB.Exec("PRAGMA temp_store = MEMORY")
	sqlDB.Exec("PRAGMA busy_timeout = 5000")
	sqlDB.Exec("PRAGMA foreign_keys = ON")

	database := &DB{db: sqlDB}
	if err := database.RunMigrations(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return database, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// wrapTransaction runs the given function within a transaction. A SQLITE_BUSY
// failure rolls back and retries on a fresh transaction until the context
// deadline cuts it off.
func (db *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	for {
		tx, err := db.db.BeginTx(ctx, nil)
		if err != nil {
			log.Error("error starting transaction", "err", err)
			return err
		}
		if err = f(tx); err == nil {
			if err = tx.Commit(); err == nil {
				return nil
			}
			log.Error("error committing transaction", "err", err)
		}
		tx.Rollback()
		serr, ok := err.(*sqlite.Error)
		if ok && serr.Code() == sqlitelib.SQLITE_BUSY && ctx.Err() == nil {
			continue
		}
		return err
	}
}
