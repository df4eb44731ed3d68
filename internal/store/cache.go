package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dongsuo/ask-rss/internal/dataset"
)

// Cache is the local mirror of remote datasets. The Store is its only
// client; nothing else reads or writes cache entries.
type Cache interface {
	// Get returns the cached dataset and whether it exists.
	Get(name string) (*dataset.Dataset, bool, error)
	// Put replaces the cached copy of a dataset.
	Put(ds *dataset.Dataset) error
	// Invalidate removes a dataset from the cache.
	Invalidate(name string) error
	// List returns every cached dataset in name order.
	List() ([]*dataset.Dataset, error)
	Close() error
}

// SQLiteCache stores datasets in a local sqlite file. Writes go through a
// single connection; sqlite serializes them.
type SQLiteCache struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

// OpenCache opens (and if needed creates) the cache database at dbPath.
func OpenCache(dbPath string) (*SQLiteCache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	c := &SQLiteCache{readDB: readDB, writeDB: writeDB}
	if err := c.init(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLiteCache) init() error {
	_, err := c.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS datasets (
			name           TEXT PRIMARY KEY,
			source_url     TEXT NOT NULL DEFAULT '',
			last_processed DATETIME
		);

		CREATE TABLE IF NOT EXISTS articles (
			dataset   TEXT NOT NULL,
			position  INTEGER NOT NULL,
			link      TEXT NOT NULL,
			title     TEXT NOT NULL,
			published TEXT NOT NULL DEFAULT '',
			summary   TEXT NOT NULL DEFAULT '',
			embedding BLOB,
			PRIMARY KEY (dataset, link)
		);
		CREATE INDEX IF NOT EXISTS idx_articles_position ON articles(dataset, position);
	`)
	if err != nil {
		return fmt.Errorf("initializing cache schema: %w", err)
	}
	return nil
}

func (c *SQLiteCache) Close() error {
	var errs []error
	if c.readDB != nil {
		errs = append(errs, c.readDB.Close())
	}
	if c.writeDB != nil {
		errs = append(errs, c.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func (c *SQLiteCache) Get(name string) (*dataset.Dataset, bool, error) {
	ds := &dataset.Dataset{Name: name}
	var lastProcessed sql.NullTime
	err := c.readDB.QueryRow(
		"SELECT source_url, last_processed FROM datasets WHERE name = ?", name,
	).Scan(&ds.SourceURL, &lastProcessed)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading dataset %s: %w", name, err)
	}
	if lastProcessed.Valid {
		ds.LastProcessed = lastProcessed.Time
	}

	rows, err := c.readDB.Query(`
		SELECT link, title, published, summary, embedding
		FROM articles WHERE dataset = ? ORDER BY position`, name)
	if err != nil {
		return nil, false, fmt.Errorf("reading articles for %s: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a    dataset.Article
			pub  string
			blob []byte
		)
		if err := rows.Scan(&a.Link, &a.Title, &pub, &a.Summary, &blob); err != nil {
			return nil, false, fmt.Errorf("scanning article: %w", err)
		}
		if pub != "" {
			if t, perr := parseISO(pub); perr == nil {
				a.Published = t
			}
		}
		a.Embedding, err = decodeVector(blob)
		if err != nil {
			return nil, false, fmt.Errorf("decoding embedding for %s: %w", a.Link, err)
		}
		a.SourceURL = ds.SourceURL
		ds.Articles = append(ds.Articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return ds, true, nil
}

func (c *SQLiteCache) Put(ds *dataset.Dataset) error {
	tx, err := c.writeDB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO datasets (name, source_url, last_processed) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			source_url = excluded.source_url,
			last_processed = excluded.last_processed
	`, ds.Name, ds.SourceURL, ds.LastProcessed)
	if err != nil {
		return fmt.Errorf("upserting dataset %s: %w", ds.Name, err)
	}

	if _, err := tx.Exec("DELETE FROM articles WHERE dataset = ?", ds.Name); err != nil {
		return fmt.Errorf("clearing articles for %s: %w", ds.Name, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO articles (dataset, position, link, title, published, summary, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, a := range ds.Articles {
		_, err := stmt.Exec(ds.Name, i, a.Link, a.Title, a.PublishedISO(), a.Summary, encodeVector(a.Embedding))
		if err != nil {
			return fmt.Errorf("inserting article %s: %w", a.Link, err)
		}
	}
	return tx.Commit()
}

func (c *SQLiteCache) Invalidate(name string) error {
	tx, err := c.writeDB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM articles WHERE dataset = ?", name); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM datasets WHERE name = ?", name); err != nil {
		return err
	}
	return tx.Commit()
}

func parseISO(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func (c *SQLiteCache) List() ([]*dataset.Dataset, error) {
	rows, err := c.readDB.Query("SELECT name FROM datasets ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*dataset.Dataset, 0, len(names))
	for _, name := range names {
		ds, ok, err := c.Get(name)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, ds)
		}
	}
	return out, nil
}
