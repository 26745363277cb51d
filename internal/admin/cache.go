// Package admin is the operator-only surface: world discovery, launch and
// shutdown relays, and a small on-disk cache of scraped world records.
package admin

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"sheetbridge.dev/internal/scraper"
)

// Cache persists scraped world records in sqlite. Writes flow through a
// single writer goroutine; reads hit the db directly. Record payloads are
// zstd-compressed JSON blobs.
type Cache struct {
	db *sql.DB

	ch   chan cacheReq
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	enc *zstd.Encoder
	dec *zstd.Decoder
}

type cacheReq struct {
	rec *scraper.WorldRecord
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS worlds (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	system     TEXT NOT NULL,
	scraped_at INTEGER NOT NULL,
	record     BLOB NOT NULL
);`

func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache schema: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	c := &Cache{
		db:  db,
		ch:  make(chan cacheReq, 64),
		enc: enc,
		dec: dec,
	}
	c.wg.Add(1)
	go c.writer()
	return c, nil
}

func (c *Cache) Close() error {
	var err error
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.ch)
		c.wg.Wait()
		err = c.db.Close()
	})
	return err
}

func (c *Cache) writer() {
	defer c.wg.Done()
	for req := range c.ch {
		b, err := json.Marshal(req.rec)
		if err != nil {
			continue
		}
		blob := c.enc.EncodeAll(b, nil)
		_, _ = c.db.Exec(
			`INSERT INTO worlds (id, title, system, scraped_at, record)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   title=excluded.title, system=excluded.system,
			   scraped_at=excluded.scraped_at, record=excluded.record`,
			req.rec.ID, req.rec.Title, req.rec.System, time.Now().Unix(), blob,
		)
	}
}

// Put enqueues a record; drops it when the cache is closing.
func (c *Cache) Put(rec *scraper.WorldRecord) {
	if c.closed.Load() || rec == nil {
		return
	}
	select {
	case c.ch <- cacheReq{rec: rec}:
	default:
	}
}

type CachedWorld struct {
	ScrapedAt time.Time            `json:"scrapedAt"`
	Record    *scraper.WorldRecord `json:"record"`
}

func (c *Cache) List() ([]CachedWorld, error) {
	rows, err := c.db.Query(`SELECT scraped_at, record FROM worlds ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CachedWorld
	for rows.Next() {
		var at int64
		var blob []byte
		if err := rows.Scan(&at, &blob); err != nil {
			return nil, err
		}
		raw, err := c.dec.DecodeAll(blob, nil)
		if err != nil {
			continue // corrupt blob; skip it rather than failing the listing
		}
		var rec scraper.WorldRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		out = append(out, CachedWorld{ScrapedAt: time.Unix(at, 0).UTC(), Record: &rec})
	}
	return out, rows.Err()
}

func (c *Cache) Purge() error {
	_, err := c.db.Exec(`DELETE FROM worlds`)
	return err
}
