package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tweetclassifier/internal/domain"
)

// SQL implements Repository on any database/sql driver that accepts the
// shared schema. Queries are written with ? placeholders and rebound per
// dialect.
type SQL struct {
	db     *sql.DB
	driver string
	rebind func(string) string
}

// Open connects to the configured driver: "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (*SQL, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(ctx, dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", driver)
	}
}

func newSQL(ctx context.Context, db *sql.DB, driver, schema string, rebind func(string) string) (*SQL, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create %s schema: %w", driver, err)
	}
	return &SQL{db: db, driver: driver, rebind: rebind}, nil
}

func rebindNone(query string) string { return query }

func (s *SQL) Driver() string { return s.driver }

func (s *SQL) Close() error {
	return s.db.Close()
}

// SaveTweets inserts dataset rows in one transaction. Rows whose ID already
// exists are left untouched.
func (s *SQL) SaveTweets(ctx context.Context, tweets []domain.Tweet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO tweets (id, sentiment, message)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`))
	if err != nil {
		return fmt.Errorf("storage: prepare tweet insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tweets {
		if _, err := stmt.ExecContext(ctx, t.ID, int(t.Sentiment), t.Content); err != nil {
			return fmt.Errorf("storage: save tweet %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit tweets: %w", err)
	}
	return nil
}

func (s *SQL) FindTweets(ctx context.Context, f TweetFilter) ([]domain.Tweet, error) {
	where, args := tweetWhere(f)
	query := `SELECT id, sentiment, message FROM tweets` + where + ` ORDER BY id LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("storage: find tweets: %w", err)
	}
	defer rows.Close()

	var tweets []domain.Tweet
	for rows.Next() {
		var (
			t         domain.Tweet
			sentiment int
		)
		if err := rows.Scan(&t.ID, &sentiment, &t.Content); err != nil {
			return nil, fmt.Errorf("storage: scan tweet: %w", err)
		}
		t.Sentiment = domain.Sentiment(sentiment)
		t.Source = domain.SourceDataset
		tweets = append(tweets, t)
	}

	return tweets, rows.Err()
}

func (s *SQL) CountTweets(ctx context.Context, f TweetFilter) (int, error) {
	where, args := tweetWhere(f)

	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM tweets`+where), args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: count tweets: %w", err)
	}
	return n, nil
}

func (s *SQL) CountBySentiment(ctx context.Context) (map[domain.Sentiment]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT sentiment, COUNT(*) FROM tweets GROUP BY sentiment`)
	if err != nil {
		return nil, fmt.Errorf("storage: count by sentiment: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Sentiment]int)
	for rows.Next() {
		var sentiment, n int
		if err := rows.Scan(&sentiment, &n); err != nil {
			return nil, fmt.Errorf("storage: scan count: %w", err)
		}
		counts[domain.Sentiment(sentiment)] = n
	}

	return counts, rows.Err()
}

func tweetWhere(f TweetFilter) (string, []any) {
	if f.Sentiment == nil {
		return "", nil
	}
	return ` WHERE sentiment = ?`, []any{int(*f.Sentiment)}
}

func (s *SQL) SavePrediction(ctx context.Context, p domain.Prediction) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO predictions (id, model, text, label, confidence, source, author, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`),
		p.ID,
		p.Model,
		p.Text,
		int(p.Label),
		p.Confidence,
		string(p.Source),
		p.Author,
		p.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("storage: save prediction %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQL) FindPrediction(ctx context.Context, id string) (*domain.Prediction, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, model, text, label, confidence, source, author, created_at
		FROM predictions WHERE id = ?
	`), id)

	p, err := scanPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: find prediction %s: %w", id, err)
	}
	return p, nil
}

func (s *SQL) RecentPredictions(ctx context.Context, limit int) ([]domain.Prediction, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, model, text, label, confidence, source, author, created_at
		FROM predictions ORDER BY created_at DESC, id LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("storage: recent predictions: %w", err)
	}
	defer rows.Close()

	var out []domain.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan prediction: %w", err)
		}
		out = append(out, *p)
	}

	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrediction(sc scanner) (*domain.Prediction, error) {
	var (
		p       domain.Prediction
		label   int
		source  string
		created int64
	)
	if err := sc.Scan(&p.ID, &p.Model, &p.Text, &label, &p.Confidence, &source, &p.Author, &created); err != nil {
		return nil, err
	}
	p.Label = domain.Sentiment(label)
	p.Source = domain.Source(source)
	p.CreatedAt = time.UnixMilli(created).UTC()
	return &p, nil
}
