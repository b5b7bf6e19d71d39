package utils

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// RefreshSessionBalances re-reads the token balance of every live session
// from the record store and overwrites the cached value. It runs on an
// unconditional timer from main; the HTTP refresh route is the same
// operation triggered manually, so overlapping runs are harmless.
func RefreshSessionBalances(ctx context.Context, db *sql.DB, sessions *SessionStore) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ids, err := sessions.ScanIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		session, err := sessions.Get(ctx, id)
		if err != nil {
			if err != ErrSessionNotFound {
				log.Printf("Failed to load session %s during refresh: %v", id, err)
			}
			continue
		}

		var tokens int
		err = db.QueryRowContext(ctx, `SELECT tokens FROM users WHERE gmail = $1`, session.Email).Scan(&tokens)
		if err != nil {
			if err != sql.ErrNoRows {
				log.Printf("Failed to read tokens for %s: %v", session.Email, err)
			}
			continue
		}

		if err := sessions.SetTokenBalance(ctx, id, tokens); err != nil {
			log.Printf("Failed to cache tokens for %s: %v", session.Email, err)
		}
	}

	return nil
}
