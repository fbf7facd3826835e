package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/sethvargo/go-retry"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tweets (
	id TEXT PRIMARY KEY,
	sentiment SMALLINT NOT NULL,
	message TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS tweets_sentiment ON tweets (sentiment);

CREATE TABLE IF NOT EXISTS predictions (
	id TEXT PRIMARY KEY,
	model TEXT NOT NULL,
	text TEXT NOT NULL,
	label SMALLINT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	source TEXT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS predictions_created_at ON predictions (created_at);
`

// NewPostgres connects to PostgreSQL, retrying the first ping with
// Fibonacci backoff while the server comes up.
func NewPostgres(ctx context.Context, dsn string) (*SQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open postgres: %w", err)
	}

	b := retry.WithMaxRetries(5, retry.NewFibonacci(time.Second))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping postgres: %w", err)
	}

	return newSQL(ctx, db, "postgres", postgresSchema, rebindDollar)
}

// rebindDollar rewrites ? placeholders as $1, $2, ...
func rebindDollar(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
