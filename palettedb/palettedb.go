/*
Package palettedb caches sampled block texture colours and texture aliases in
an SQLite database, so a texture pack only needs to be re-sampled for the
files that changed.
*/
package palettedb

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"fmt"
	"image"
	"io"
	"log"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tmpim/blockart"
)

// DB is a palette cache.
type DB struct {
	db     *sql.DB
	logger *log.Logger
}

// Open opens (creating if necessary) the cache at file.
func Open(file string, logger *log.Logger) (*DB, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	db, err := sql.Open("sqlite3", file)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS texture (name TEXT PRIMARY KEY NOT NULL, sha1 TEXT NOT NULL, r INTEGER, g INTEGER, b INTEGER, position INTEGER NOT NULL)"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS alias (raw TEXT PRIMARY KEY NOT NULL, canonical TEXT NOT NULL)"); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// ScanResult summarises a Scan.
type ScanResult struct {
	Sampled   int
	Unchanged int
	Invisible int
	Removed   int
}

// Scan samples every PNG texture in dir whose contents changed since the
// last scan. Textures with no visible pixels are stored without a colour.
// Scanned textures no longer in dir are removed; entries stored with Put
// are kept.
func (d *DB) Scan(ctx context.Context, dir string, method blockart.SampleMethod) (ScanResult, error) {
	var result ScanResult

	files, err := blockart.ListTextures(dir)
	if err != nil {
		return result, err
	}

	var next int
	if err := d.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(position) + 1, 0) FROM texture").Scan(&next); err != nil {
		return result, err
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		name := blockart.TextureID(file)

		img, sum, err := decodeWithSum(file)
		if err != nil {
			return result, err
		}

		var known string
		switch err := d.db.QueryRowContext(ctx, "SELECT sha1 FROM texture WHERE name = ?", name).Scan(&known); err {
		case sql.ErrNoRows:
		case nil:
			if known == sum {
				result.Unchanged++
				continue
			}
		default:
			return result, err
		}

		var r, g, b sql.NullInt64
		if c, ok := blockart.SampleTexture(img, method); ok {
			r = sql.NullInt64{Int64: int64(c.R), Valid: true}
			g = sql.NullInt64{Int64: int64(c.G), Valid: true}
			b = sql.NullInt64{Int64: int64(c.B), Valid: true}
			d.logger.Printf("Processed %s: %v", name, c)
		} else {
			result.Invisible++
			d.logger.Printf("Warning: %s has no visible pixels", name)
		}

		if _, err := d.db.ExecContext(ctx, "INSERT INTO texture (name, sha1, r, g, b, position) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(name) DO UPDATE SET sha1 = excluded.sha1, r = excluded.r, g = excluded.g, b = excluded.b", name, sum, r, g, b, next); err != nil {
			return result, err
		}
		next++
		result.Sampled++
	}

	removed, err := d.prune(ctx, files)
	if err != nil {
		return result, err
	}
	result.Removed = removed

	return result, nil
}

// prune deletes scanned textures that are not among files.
func (d *DB) prune(ctx context.Context, files []string) (int, error) {
	present := make(map[string]bool, len(files))
	for _, file := range files {
		present[blockart.TextureID(file)] = true
	}

	rows, err := d.db.QueryContext(ctx, "SELECT name FROM texture WHERE sha1 != ''")
	if err != nil {
		return 0, err
	}

	var stale []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return 0, err
		}
		if !present[name] {
			stale = append(stale, name)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, name := range stale {
		if _, err := d.db.ExecContext(ctx, "DELETE FROM texture WHERE name = ?", name); err != nil {
			return 0, err
		}
		d.logger.Printf("Removed %s: texture no longer present", name)
	}

	return len(stale), nil
}

func decodeWithSum(file string) (image.Image, string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	h := sha1.New()
	m, _, err := image.Decode(io.TeeReader(f, h))
	if err != nil {
		return nil, "", fmt.Errorf("palettedb: failed to decode %s: %w", file, err)
	}
	// Drain anything the decoder didn't read so the sum covers the file.
	if _, err := io.Copy(h, f); err != nil {
		return nil, "", err
	}

	return m, fmt.Sprintf("%X", h.Sum(nil)), nil
}

// Put stores a texture colour directly, keeping its position if it exists.
func (d *DB) Put(rec blockart.Record) error {
	var r, g, b sql.NullInt64
	if rec.Valid {
		r = sql.NullInt64{Int64: int64(rec.Color.R), Valid: true}
		g = sql.NullInt64{Int64: int64(rec.Color.G), Valid: true}
		b = sql.NullInt64{Int64: int64(rec.Color.B), Valid: true}
	}

	_, err := d.db.Exec("INSERT INTO texture (name, sha1, r, g, b, position) VALUES (?, '', ?, ?, ?, (SELECT COALESCE(MAX(position) + 1, 0) FROM texture)) ON CONFLICT(name) DO UPDATE SET r = excluded.r, g = excluded.g, b = excluded.b", rec.ID, r, g, b)
	return err
}

// Records returns every texture in the order it was first stored.
// Textures without a colour are returned as invalid records.
func (d *DB) Records() ([]blockart.Record, error) {
	rows, err := d.db.Query("SELECT name, r, g, b FROM texture ORDER BY position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []blockart.Record
	for rows.Next() {
		var name string
		var r, g, b sql.NullInt64
		if err := rows.Scan(&name, &r, &g, &b); err != nil {
			return nil, err
		}

		rec := blockart.Record{ID: name}
		if r.Valid && g.Valid && b.Valid {
			rec.Color = blockart.RGB{R: uint8(r.Int64), G: uint8(g.Int64), B: uint8(b.Int64)}
			rec.Valid = true
		} else {
			rec.Reason = "no visible pixels"
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// SetAliases replaces the stored aliases with mapping.
func (d *DB) SetAliases(mapping map[string]string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM alias"); err != nil {
		tx.Rollback()
		return err
	}

	for raw, canonical := range mapping {
		if _, err := tx.Exec("INSERT INTO alias (raw, canonical) VALUES (?, ?)", raw, canonical); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// Aliases returns the stored aliases as a table using the default suffixes.
// It returns a nil (identity) table when no aliases are stored.
func (d *DB) Aliases() (*blockart.AliasTable, error) {
	rows, err := d.db.Query("SELECT raw, canonical FROM alias")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mapping := make(map[string]string)
	for rows.Next() {
		var raw, canonical string
		if err := rows.Scan(&raw, &canonical); err != nil {
			return nil, err
		}
		mapping[raw] = canonical
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(mapping) == 0 {
		return nil, nil
	}
	return blockart.NewAliasTable(mapping, nil), nil
}

// TextureNames returns every stored texture name in position order.
func (d *DB) TextureNames() ([]string, error) {
	records, err := d.Records()
	if err != nil {
		return nil, err
	}

	names := make([]string, len(records))
	for i, rec := range records {
		names[i] = rec.ID
	}
	return names, nil
}
