/*
Copyright The Helm Authors.
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package index caches repository indexes in a single on-disk SQLite
// database with an FTS5 full-text index over name, description, and
// keywords, so "search" can answer from disk without a network round
// trip to every configured repository.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/alegeay/Sherpack-sub001/pkg/repo"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	repo        TEXT NOT NULL,
	name        TEXT NOT NULL,
	version     TEXT NOT NULL,
	app_version TEXT,
	description TEXT,
	keywords    TEXT,
	digest      TEXT,
	entry_json  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	UNIQUE(repo, name, version)
);
CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
	name, description, keywords, content='entries', content_rowid='id'
);
CREATE TRIGGER IF NOT EXISTS entries_ai AFTER INSERT ON entries BEGIN
	INSERT INTO entries_fts(rowid, name, description, keywords)
	VALUES (new.id, new.name, new.description, new.keywords);
END;
CREATE TRIGGER IF NOT EXISTS entries_ad AFTER DELETE ON entries BEGIN
	INSERT INTO entries_fts(entries_fts, rowid, name, description, keywords)
	VALUES ('delete', old.id, old.name, old.description, old.keywords);
END;
`

// CachedPack is a single pack version as stored in the cache, tagged with
// which repository it came from.
type CachedPack struct {
	Repo  string
	Entry *repo.PackEntry
}

// CacheStats summarizes the cache's current contents.
type CacheStats struct {
	TotalEntries int
	Repositories int
	UpdatedAt    time.Time
}

// Cache is a SQLite-backed, FTS5-indexed store of repository index
// entries. A Cache supports one writer and many concurrent readers;
// writes are always wrapped in a transaction.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures its schema exists. path may be ":memory:" for an ephemeral
// cache, matching database/sql convention.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "index: opening cache database")
	}
	// A single writer is enforced at the application level (Put takes the
	// one allowed write transaction); SQLite itself still serializes
	// concurrent writers, but capping pool size avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "index: initializing cache schema")
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Put replaces every cached entry for repoName with idx's current
// contents, inside a single transaction.
func (c *Cache) Put(ctx context.Context, repoName string, idx *repo.Index) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "index: beginning cache write")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE repo = ?`, repoName); err != nil {
		return errors.Wrap(err, "index: clearing stale cache entries")
	}

	now := time.Now().UTC().Format(time.RFC3339)
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (repo, name, version, app_version, description, keywords, digest, entry_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "index: preparing cache insert")
	}
	defer stmt.Close()

	for name, versions := range idx.Entries {
		for _, e := range versions {
			raw, err := json.Marshal(e)
			if err != nil {
				return errors.Wrapf(err, "index: encoding entry %s@%s", name, e.Version)
			}
			if _, err := stmt.ExecContext(ctx, repoName, e.Name, e.Version, e.AppVersion,
				e.Description, strings.Join(e.Keywords, " "), e.Digest, string(raw), now); err != nil {
				return errors.Wrapf(err, "index: caching entry %s@%s", name, e.Version)
			}
		}
	}

	return errors.Wrap(tx.Commit(), "index: committing cache write")
}

// Search runs an FTS5 MATCH query across name, description, and keywords
// and returns matching cached entries, newest-repository-write first.
func (c *Cache) Search(ctx context.Context, query string) ([]*CachedPack, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT e.repo, e.entry_json
		FROM entries_fts f
		JOIN entries e ON e.id = f.rowid
		WHERE entries_fts MATCH ?
		ORDER BY e.updated_at DESC, e.name ASC`, ftsQuery(query))
	if err != nil {
		return nil, errors.Wrap(err, "index: searching cache")
	}
	defer rows.Close()
	return scanCachedPacks(rows)
}

// Get returns every cached version of name across all repositories, or
// just repoName's if repoName is non-empty.
func (c *Cache) Get(ctx context.Context, repoName, name string) ([]*CachedPack, error) {
	var rows *sql.Rows
	var err error
	if repoName != "" {
		rows, err = c.db.QueryContext(ctx,
			`SELECT repo, entry_json FROM entries WHERE repo = ? AND name = ? ORDER BY version`,
			repoName, name)
	} else {
		rows, err = c.db.QueryContext(ctx,
			`SELECT repo, entry_json FROM entries WHERE name = ? ORDER BY repo, version`, name)
	}
	if err != nil {
		return nil, errors.Wrap(err, "index: reading cache")
	}
	defer rows.Close()
	return scanCachedPacks(rows)
}

// Stats reports the cache's current size.
func (c *Cache) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{}
	row := c.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT repo) FROM entries`)
	if err := row.Scan(&stats.TotalEntries, &stats.Repositories); err != nil {
		return nil, errors.Wrap(err, "index: reading cache stats")
	}

	var updated sql.NullString
	row = c.db.QueryRowContext(ctx, `SELECT MAX(updated_at) FROM entries`)
	if err := row.Scan(&updated); err != nil {
		return nil, errors.Wrap(err, "index: reading cache update time")
	}
	if updated.Valid {
		if t, err := time.Parse(time.RFC3339, updated.String); err == nil {
			stats.UpdatedAt = t
		}
	}
	return stats, nil
}

func scanCachedPacks(rows *sql.Rows) ([]*CachedPack, error) {
	var out []*CachedPack
	for rows.Next() {
		var repoName, raw string
		if err := rows.Scan(&repoName, &raw); err != nil {
			return nil, errors.Wrap(err, "index: scanning cache row")
		}
		entry := &repo.PackEntry{}
		if err := json.Unmarshal([]byte(raw), entry); err != nil {
			return nil, errors.Wrap(err, "index: decoding cached entry")
		}
		out = append(out, &CachedPack{Repo: repoName, Entry: entry})
	}
	return out, errors.Wrap(rows.Err(), "index: iterating cache rows")
}

// ftsQuery quotes query as a single FTS5 phrase so punctuation and SQL
// keywords in a search term can't alter the query's meaning.
func ftsQuery(query string) string {
	return `"` + strings.ReplaceAll(query, `"`, `""`) + `"*`
}
