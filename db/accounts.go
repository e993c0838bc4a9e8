package db

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/notabene-social/notabene/domain"
)

const (
	sqlInsertAccount = `INSERT INTO accounts(id, username, display_name, summary, public_key_pem, private_key_pem, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlSelectAccountByUsername = `SELECT id, username, display_name, summary, public_key_pem, private_key_pem, created_at
		FROM accounts WHERE username = ?`
	sqlSelectAccountById = `SELECT id, username, display_name, summary, public_key_pem, private_key_pem, created_at
		FROM accounts WHERE id = ?`
)

// CreateAccount inserts a local actor. The caller generates the key pair;
// it is written here once and never touched again.
func (db *DB) CreateAccount(acc *domain.Account) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertAccount,
			acc.Id.String(),
			acc.Username,
			acc.DisplayName,
			acc.Summary,
			acc.PublicKeyPem,
			acc.PrivateKeyPem,
			acc.CreatedAt,
		)
		return err
	})
}

// ReadAccountByUsername returns the local actor with the given username, or
// nil if none exists.
func (db *DB) ReadAccountByUsername(username string) (*domain.Account, error) {
	row := db.db.QueryRow(sqlSelectAccountByUsername, username)
	var acc domain.Account
	err := row.Scan(&acc.Id, &acc.Username, &acc.DisplayName, &acc.Summary,
		&acc.PublicKeyPem, &acc.PrivateKeyPem, &acc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (db *DB) ReadAccountById(id uuid.UUID) (*domain.Account, error) {
	row := db.db.QueryRow(sqlSelectAccountById, id.String())
	var acc domain.Account
	err := row.Scan(&acc.Id, &acc.Username, &acc.DisplayName, &acc.Summary,
		&acc.PublicKeyPem, &acc.PrivateKeyPem, &acc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}
