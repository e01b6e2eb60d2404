package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"coldcall-platform/internal/contact"
	"coldcall-platform/pkg/utils"
)

// PostgresLedger stores contacts in a `contacts` table. Unlike the CSV
// backend, status updates touch a single row inside a transaction, so
// concurrent updates to different contacts cannot clobber each other.
//
// Expected schema:
//
//	CREATE TABLE contacts (
//	    phone_number     TEXT PRIMARY KEY,
//	    name             TEXT NOT NULL,
//	    email            TEXT NOT NULL DEFAULT '',
//	    company          TEXT NOT NULL DEFAULT '',
//	    status           TEXT NOT NULL DEFAULT 'pending',
//	    call_attempts    INT  NOT NULL DEFAULT 0,
//	    consent_obtained BOOL NOT NULL DEFAULT FALSE,
//	    opt_out_date     TEXT NOT NULL DEFAULT '',
//	    prompt_name      TEXT NOT NULL DEFAULT 'default'
//	);
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Load(ctx context.Context) ([]contact.Contact, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT phone_number, name, email, company, status,
		       call_attempts, consent_obtained, opt_out_date, prompt_name
		FROM contacts
		ORDER BY phone_number`)
	if err != nil {
		return nil, fmt.Errorf("ledger: query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []contact.Contact
	for rows.Next() {
		var c contact.Contact
		var status string
		if err := rows.Scan(&c.PhoneNumber, &c.Name, &c.Email, &c.Company, &status,
			&c.CallAttempts, &c.ConsentObtained, &c.OptOutDate, &c.PromptName); err != nil {
			return nil, err
		}
		parsed, err := contact.ParseCallStatus(status)
		if err != nil {
			return nil, err
		}
		c.Status = parsed
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (l *PostgresLedger) Save(ctx context.Context, contacts []contact.Contact) error {
	return utils.WithTx(ctx, l.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM contacts`); err != nil {
			return err
		}
		for _, c := range contacts {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO contacts (phone_number, name, email, company, status,
				                      call_attempts, consent_obtained, opt_out_date, prompt_name)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				c.PhoneNumber, c.Name, c.Email, c.Company, c.Status.String(),
				c.CallAttempts, c.ConsentObtained, c.OptOutDate, c.PromptName)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *PostgresLedger) UpdateStatus(ctx context.Context, phoneNumber string, status contact.CallStatus, incrementAttempts bool) error {
	return utils.WithTx(ctx, l.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		inc := 0
		if incrementAttempts {
			inc = 1
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE contacts
			SET status = $2, call_attempts = call_attempts + $3
			WHERE phone_number = $1`,
			phoneNumber, status.String(), inc)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, phoneNumber)
		}
		return nil
	})
}
