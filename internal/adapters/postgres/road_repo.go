package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/samirrijal/kilopost/internal/core/domain"
)

// RoadRepo implements ports.RoadRepository with pgx. Centerlines are
// stored as PostGIS geometry in SRID 4326; lengths are kept denormalized
// in kilometres because chainage math happens in the application, not
// the database.
type RoadRepo struct {
	db *DB
}

// NewRoadRepo creates a new RoadRepo.
func NewRoadRepo(db *DB) *RoadRepo {
	return &RoadRepo{db: db}
}

const upsertRoadSQL = `
	INSERT INTO roads (ref, name, length_km, centerline)
	VALUES ($1, $2, $3, ST_GeomFromText($4, 4326))
	ON CONFLICT (ref) DO UPDATE
	SET name = EXCLUDED.name,
	    length_km = EXCLUDED.length_km,
	    centerline = EXCLUDED.centerline
`

// Upsert inserts or updates a single road.
func (r *RoadRepo) Upsert(ctx context.Context, road *domain.Road) error {
	_, err := r.db.Pool.Exec(ctx, upsertRoadSQL,
		road.Ref, road.Name, road.LengthKm, road.WKT)
	return err
}

// UpsertBatch inserts many roads using pgx.Batch.
func (r *RoadRepo) UpsertBatch(ctx context.Context, roads []domain.Road) error {
	batch := &pgx.Batch{}
	for _, road := range roads {
		batch.Queue(upsertRoadSQL, road.Ref, road.Name, road.LengthKm, road.WKT)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range roads {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByRef returns a road by reference code, or nil if absent.
func (r *RoadRepo) GetByRef(ctx context.Context, ref string) (*domain.Road, error) {
	var road domain.Road
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, ref, COALESCE(name, ''), length_km,
		       ST_AsText(centerline), created_at
		FROM roads WHERE ref = $1
	`, ref).Scan(
		&road.ID, &road.Ref, &road.Name, &road.LengthKm,
		&road.WKT, &road.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &road, nil
}

// List returns a page of roads ordered by reference. Centerline WKT is
// omitted; use GetByRef for the full geometry.
func (r *RoadRepo) List(ctx context.Context, limit, offset int) ([]domain.Road, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, ref, COALESCE(name, ''), length_km, created_at
		FROM roads
		ORDER BY ref
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roads []domain.Road
	for rows.Next() {
		var road domain.Road
		if err := rows.Scan(
			&road.ID, &road.Ref, &road.Name, &road.LengthKm, &road.CreatedAt,
		); err != nil {
			return nil, err
		}
		roads = append(roads, road)
	}
	return roads, rows.Err()
}

// Count returns the number of stored roads.
func (r *RoadRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM roads`).Scan(&n)
	return n, err
}

// Stats summarizes the stored network.
func (r *RoadRepo) Stats(ctx context.Context) (*domain.RoadStats, error) {
	var stats domain.RoadStats
	err := r.db.Pool.QueryRow(ctx, `
		SELECT count(*), COALESCE(sum(length_km), 0)
		FROM roads
	`).Scan(&stats.RoadCount, &stats.TotalLengthKm)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
