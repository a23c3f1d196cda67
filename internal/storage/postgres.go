package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/facefind/internal/config"
	"github.com/your-org/facefind/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// storeErr classifies a storage-layer failure: foreign-key violations mean
// the write referenced an event that was never created, everything else is
// a transient store failure the caller may retry.
func storeErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("%s: %w", op, ErrUnknownEvent)
	}
	return fmt.Errorf("%s: %w: %s", op, ErrStoreUnavailable, err)
}

// --- Events ---

func (s *PostgresStore) CreateEvent(ctx context.Context, name string) (*models.Event, error) {
	ev := &models.Event{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO events (id, name, created_at) VALUES ($1, $2, $3)`,
		ev.ID, ev.Name, ev.CreatedAt)
	if err != nil {
		return nil, storeErr("create event", err)
	}
	return ev, nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	ev := &models.Event{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM events WHERE id = $1`, id,
	).Scan(&ev.ID, &ev.Name, &ev.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, storeErr("get event", err)
	}
	return ev, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, created_at FROM events ORDER BY created_at DESC`)
	if err != nil {
		return nil, storeErr("list events", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.Name, &ev.CreatedAt); err != nil {
			return nil, storeErr("scan event", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// DeleteEvent removes the event, its photos and their embeddings in one
// transaction. The deleted photos come back so the caller can release the
// stored bytes.
func (s *PostgresStore) DeleteEvent(ctx context.Context, id uuid.UUID) ([]models.Photo, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeErr("delete event", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT id, event_id, url, private, created_at FROM photos WHERE event_id = $1`, id)
	if err != nil {
		return nil, storeErr("delete event: list photos", err)
	}
	var photos []models.Photo
	for rows.Next() {
		var p models.Photo
		if err := rows.Scan(&p.ID, &p.EventID, &p.URL, &p.Private, &p.CreatedAt); err != nil {
			rows.Close()
			return nil, storeErr("delete event: scan photo", err)
		}
		photos = append(photos, p)
	}
	rows.Close()

	if _, err := tx.Exec(ctx, `DELETE FROM face_embeddings WHERE event_id = $1`, id); err != nil {
		return nil, storeErr("delete event: embeddings", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM photos WHERE event_id = $1`, id); err != nil {
		return nil, storeErr("delete event: photos", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return nil, storeErr("delete event", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("delete event: %w", ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("delete event: commit", err)
	}
	return photos, nil
}

// --- Photos & Embeddings ---

// PutPhotoWithEmbeddings creates one photo row plus its embedding rows in a
// single transaction, so concurrent matching reads never observe a photo
// with a half-written embedding set.
func (s *PostgresStore) PutPhotoWithEmbeddings(ctx context.Context, draft models.PhotoDraft, embeddings []models.NewEmbedding) (*models.Photo, error) {
	p := &models.Photo{
		ID:        uuid.New(),
		EventID:   draft.EventID,
		URL:       draft.URL,
		Private:   draft.Private,
		CreatedAt: time.Now(),
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeErr("put photo", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO photos (id, event_id, url, private, created_at) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.EventID, p.URL, p.Private, p.CreatedAt)
	if err != nil {
		return nil, storeErr("put photo", err)
	}

	if err := insertEmbeddings(ctx, tx, p.ID, p.EventID, embeddings); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("put photo: commit", err)
	}
	return p, nil
}

// ReplaceEmbeddings swaps the photo's entire embedding set inside one
// transaction. Readers see the old set until commit and the new set after,
// never the empty window of a bare delete-then-insert.
func (s *PostgresStore) ReplaceEmbeddings(ctx context.Context, photoID uuid.UUID, embeddings []models.NewEmbedding) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeErr("replace embeddings", err)
	}
	defer tx.Rollback(ctx)

	var eventID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT event_id FROM photos WHERE id = $1`, photoID).Scan(&eventID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("replace embeddings: %w", ErrNotFound)
		}
		return storeErr("replace embeddings", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM face_embeddings WHERE photo_id = $1`, photoID); err != nil {
		return storeErr("replace embeddings: delete", err)
	}
	if err := insertEmbeddings(ctx, tx, photoID, eventID, embeddings); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("replace embeddings: commit", err)
	}
	return nil
}

func insertEmbeddings(ctx context.Context, tx pgx.Tx, photoID, eventID uuid.UUID, embeddings []models.NewEmbedding) error {
	for _, e := range embeddings {
		_, err := tx.Exec(ctx,
			`INSERT INTO face_embeddings (id, photo_id, event_id, vector, quality_hash, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), photoID, eventID, pgvector.NewVector(e.Vector), e.QualityHash, time.Now())
		if err != nil {
			return storeErr("insert embedding", err)
		}
	}
	return nil
}

func (s *PostgresStore) DeletePhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeErr("delete photo", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM face_embeddings WHERE photo_id = $1`, id); err != nil {
		return nil, storeErr("delete photo: embeddings", err)
	}

	p := &models.Photo{}
	err = tx.QueryRow(ctx,
		`DELETE FROM photos WHERE id = $1 RETURNING id, event_id, url, private, created_at`, id,
	).Scan(&p.ID, &p.EventID, &p.URL, &p.Private, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("delete photo: %w", ErrNotFound)
		}
		return nil, storeErr("delete photo", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("delete photo: commit", err)
	}
	return p, nil
}

func (s *PostgresStore) GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	p := &models.Photo{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, event_id, url, private, created_at FROM photos WHERE id = $1`, id,
	).Scan(&p.ID, &p.EventID, &p.URL, &p.Private, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, storeErr("get photo", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPhotos(ctx context.Context, eventID uuid.UUID, includePrivate bool) ([]models.Photo, error) {
	query := `SELECT id, event_id, url, private, created_at FROM photos WHERE event_id = $1`
	if !includePrivate {
		query += ` AND private = FALSE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, storeErr("list photos", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		var p models.Photo
		if err := rows.Scan(&p.ID, &p.EventID, &p.URL, &p.Private, &p.CreatedAt); err != nil {
			return nil, storeErr("scan photo", err)
		}
		photos = append(photos, p)
	}
	return photos, nil
}

// CandidateEmbeddings returns every embedding for the event. Single
// statement, so the snapshot is consistent with respect to the
// transactional writes above.
func (s *PostgresStore) CandidateEmbeddings(ctx context.Context, eventID uuid.UUID) ([]models.FaceEmbedding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, photo_id, event_id, vector, quality_hash, created_at
		 FROM face_embeddings WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, storeErr("candidate embeddings", err)
	}
	defer rows.Close()

	var embeddings []models.FaceEmbedding
	for rows.Next() {
		var fe models.FaceEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&fe.ID, &fe.PhotoID, &fe.EventID, &vec, &fe.QualityHash, &fe.CreatedAt); err != nil {
			return nil, storeErr("scan embedding", err)
		}
		fe.Vector = vec.Slice()
		embeddings = append(embeddings, fe)
	}
	return embeddings, nil
}
