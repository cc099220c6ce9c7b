package db

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"github.com/denisschmidt/localstore/internal/store"
	"github.com/denisschmidt/localstore/internal/store/db/file"
	"github.com/denisschmidt/localstore/internal/store/db/wrapper"
	"github.com/denisschmidt/localstore/internal/types"
	"github.com/google/uuid"
	"io"
	"path"
	"sort"
	"strconv"
	"time"
)

const (
	timeFormat = time.RFC3339Nano

	DriverCGO    = "sqlite3"
	DriverPureGo = "sqlite"

	DefaultChunkSize = 327680
)

// Options tune how a DB is opened. The zero value opens a cgo sqlite database
// with DefaultChunkSize chunks and no quota.
type Options struct {
	Driver                string
	ChunkSize             int
	MaxStoreBytes         int64
	OptimizeForLitestream bool
}

type DB struct {
	ctx       *sql.DB
	chunkSize int
	maxBytes  int64
}

var _ store.Store = (*DB)(nil)

type dbMigration struct {
	version int
	query   string
}

//go:embed migrations/*.sql
var migrationsFs embed.FS

// Open opens or creates the database at path and brings its schema up to date.
// Opening the same path again gives access to the same records.
func Open(path string, opts Options) (*DB, error) {
	if opts.Driver == "" {
		opts.Driver = DriverCGO
	}
	if opts.Driver != DriverCGO && opts.Driver != DriverPureGo {
		return nil, types.ErrStorageUnavailable{Path: path, Err: fmt.Errorf("unsupported driver %q", opts.Driver)}
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	ctx, err := sql.Open(opts.Driver, path)
	if err != nil {
		return nil, types.ErrStorageUnavailable{Path: path, Err: err}
	}

	// a single connection keeps a shared-cache memory database alive and
	// serializes writers, so a reader never sees a half-written record
	ctx.SetMaxOpenConns(1)

	if err := setup(ctx, opts.OptimizeForLitestream); err != nil {
		ctx.Close()
		return nil, types.ErrStorageUnavailable{Path: path, Err: err}
	}

	return &DB{
		ctx:       ctx,
		chunkSize: opts.ChunkSize,
		maxBytes:  opts.MaxStoreBytes,
	}, nil
}

func setup(ctx *sql.DB, optimizeForLitestream bool) error {
	if err := ctx.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	if _, err := ctx.Exec(`
		PRAGMA temp_store = FILE;
		PRAGMA journal_mode = WAL;
	`); err != nil {
		return fmt.Errorf("set up pragmas: %w", err)
	}

	if optimizeForLitestream {
		if _, err := ctx.Exec(`
			PRAGMA busy_timeout = 5000;
			PRAGMA synchronous = NORMAL;
			PRAGMA wal_autocheckpoint = 0;
		`); err != nil {
			return fmt.Errorf("set up Litestream pragmas: %w", err)
		}
	}

	return migrate(ctx)
}

func (d *DB) Put(ctx context.Context, in types.FileRecordInput) (types.ID, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}

	id := in.ID
	if id == "" {
		id = types.ID(uuid.New().String())
	}

	tx, err := d.ctx.BeginTx(ctx, nil)
	if err != nil {
		return "", d.writeError(err, in.Size)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM records WHERE id=?`, id).Scan(&exists)
	if err != nil {
		return "", err
	}
	if exists > 0 {
		return "", types.ErrValidation{Field: "id", Reason: fmt.Sprintf("%s already exists", id)}
	}

	if d.maxBytes > 0 {
		var used int64
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM records`).Scan(&used); err != nil {
			return "", err
		}
		if used+in.Size > d.maxBytes {
			return "", types.ErrStorageFull{Requested: in.Size, Available: d.maxBytes - used}
		}
	}

	w := file.NewWriter(tx, id, d.chunkSize)
	if _, err := io.Copy(w, bytes.NewReader(in.Data)); err != nil {
		return "", d.writeError(err, in.Size)
	}
	if err := w.Close(); err != nil {
		return "", d.writeError(err, in.Size)
	}

	summary := in.Summary(id, time.Now())
	_, err = tx.ExecContext(ctx, `
	INSERT INTO
		records
	(
		id,
		filename,
		content_type,
		size,
		chunk_size,
		create_at
	)
	VALUES(?,?,?,?,?,?)`,
		summary.ID,
		summary.Filename,
		summary.ContentType,
		summary.Size,
		d.chunkSize,
		summary.CreateAt.Format(timeFormat),
	)
	if err != nil {
		return "", d.writeError(err, in.Size)
	}

	if err := tx.Commit(); err != nil {
		return "", d.writeError(err, in.Size)
	}

	return id, nil
}

func (d *DB) Get(ctx context.Context, id types.ID) (types.FileRecord, error) {
	tx, err := d.ctx.BeginTx(ctx, nil)
	if err != nil {
		return types.FileRecord{}, err
	}
	defer tx.Rollback()

	summary, chunkSize, err := getSummary(ctx, tx, id)
	if err != nil {
		return types.FileRecord{}, err
	}

	r, err := file.NewReader(ctx, tx, id, summary.Size, chunkSize)
	if err != nil {
		return types.FileRecord{}, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return types.FileRecord{}, err
	}
	if int64(len(data)) != summary.Size {
		return types.FileRecord{}, fmt.Errorf("record %s: read %d bytes, expected %d", id, len(data), summary.Size)
	}

	if err := tx.Commit(); err != nil {
		return types.FileRecord{}, err
	}

	return types.FileRecord{
		Summary: summary,
		Data:    data,
	}, nil
}

// Open returns the record metadata with a lazy reader over its chunks.
// Chunks are fetched under ctx as the reader advances, so a record deleted
// mid-read or a cancelled ctx surfaces as a read error.
func (d *DB) Open(ctx context.Context, id types.ID) (types.UploadRecord, error) {
	summary, chunkSize, err := getSummary(ctx, d.ctx, id)
	if err != nil {
		return types.UploadRecord{}, err
	}

	r, err := file.NewReader(ctx, d.ctx, id, summary.Size, chunkSize)
	if err != nil {
		return types.UploadRecord{}, err
	}

	return types.UploadRecord{
		Summary: summary,
		Reader:  r,
	}, nil
}

func (d *DB) List(ctx context.Context) ([]types.Summary, error) {
	rows, err := d.ctx.QueryContext(ctx, `
		SELECT
			id,
			filename,
			content_type,
			size,
			create_at
		FROM
			records
		ORDER BY
			seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []types.Summary{}
	for rows.Next() {
		var (
			s            types.Summary
			createAtTime string
		)
		if err := rows.Scan(&s.ID, &s.Filename, &s.ContentType, &s.Size, &createAtTime); err != nil {
			return nil, err
		}
		s.CreateAt, err = time.Parse(timeFormat, createAtTime)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

// Delete removes the record and its chunks. Unknown ids are not an error.
func (d *DB) Delete(ctx context.Context, id types.ID) error {
	tx, err := d.ctx.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	DELETE FROM
		records_data
	WHERE
		id=?`, id)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
	DELETE FROM
		records
	WHERE
		id=?`, id)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (d *DB) Close() error {
	return d.ctx.Close()
}

func (d *DB) writeError(err error, requested int64) error {
	if isFull(err) {
		return types.ErrStorageFull{Requested: requested, Available: -1, Err: err}
	}
	return fmt.Errorf("write record: %w", err)
}

func getSummary(ctx context.Context, q wrapper.Querier, id types.ID) (types.Summary, int64, error) {
	var (
		filename     string
		contentType  string
		size         int64
		chunkSize    int64
		createAtTime string
	)

	err := q.QueryRowContext(ctx, `
		SELECT
			filename,
			content_type,
			size,
			chunk_size,
			create_at
		FROM
			records
		WHERE
			id=?`, id).Scan(&filename, &contentType, &size, &chunkSize, &createAtTime)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Summary{}, 0, types.ErrFileNotExists{
			ID: id,
		}
	}
	if err != nil {
		return types.Summary{}, 0, err
	}

	createAt, err := time.Parse(timeFormat, createAtTime)
	if err != nil {
		return types.Summary{}, 0, err
	}

	return types.Summary{
		ID:          id,
		Filename:    types.Filename(filename),
		ContentType: types.ContentType(contentType),
		Size:        size,
		CreateAt:    createAt,
	}, chunkSize, nil
}

func migrate(ctx *sql.DB) error {
	var currentVersion int
	if err := ctx.QueryRow(`PRAGMA user_version`).Scan(&currentVersion); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	migrations, err := getMigrationsQuery()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	for _, migration := range migrations {
		if migration.version <= currentVersion {
			continue
		}
		// a failed statement rolls the whole migration back
		tx, err := ctx.BeginTx(context.Background(), nil)
		if err != nil {
			return fmt.Errorf("create transaction %d: %w", migration.version, err)
		}

		if _, err = tx.Exec(migration.query); err != nil {
			tx.Rollback()
			return fmt.Errorf("perform migration %d: %w", migration.version, err)
		}

		if _, err = tx.Exec(fmt.Sprintf(`PRAGMA user_version=%d`, migration.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("update version to %d: %w", migration.version, err)
		}

		if err = tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", migration.version, err)
		}
	}

	return nil
}

func getMigrationsQuery() ([]dbMigration, error) {
	migrations := []dbMigration{}
	dirname := "migrations"

	entries, err := migrationsFs.ReadDir(dirname)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		version, err := getMigrationVersion(entry.Name())
		if err != nil {
			return nil, err
		}

		query, err := migrationsFs.ReadFile(path.Join(dirname, entry.Name()))
		if err != nil {
			return nil, err
		}

		migrations = append(migrations, dbMigration{version: version, query: string(query)})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})

	return migrations, nil
}

func getMigrationVersion(filename string) (int, error) {
	if len(filename) < 3 {
		return 0, fmt.Errorf("migration version is wrong: %v", filename)
	}
	version, err := strconv.ParseInt(filename[:3], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("migration version is wrong: %v", filename)
	}
	return int(version), nil
}
