package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/0x-mperego/unimec-display/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation = "23505"

	// createLockID serialises creates so the capacity check and the
	// max+1 default see a stable table. Value: "create" in ASCII hex.
	createLockID = 0x637265617465
)

const itemColumns = `id, kind, payload, duration_seconds, order_index, created_at, updated_at`

type ItemRepo struct {
	pool *pgxpool.Pool
}

var _ domain.PlaylistRepository = (*ItemRepo)(nil)

func NewItemRepo(pool *pgxpool.Pool) *ItemRepo {
	return &ItemRepo{pool: pool}
}

func (r *ItemRepo) ListOrdered(ctx context.Context) ([]domain.PlaylistItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM playlist_items ORDER BY order_index ASC`)
	if err != nil {
		return nil, mapError("list playlist items", err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.PlaylistItem, error) {
		item, err := scanItem(row)
		if err != nil {
			return domain.PlaylistItem{}, err
		}
		return *item, nil
	})
	if err != nil {
		return nil, mapError("scan playlist items", err)
	}
	return items, nil
}

func (r *ItemRepo) Get(ctx context.Context, id uuid.UUID) (*domain.PlaylistItem, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM playlist_items WHERE id = $1`, id))
	if err != nil {
		return nil, mapError("get playlist item", err)
	}
	return item, nil
}

func (r *ItemRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM playlist_items`).Scan(&n); err != nil {
		return 0, mapError("count playlist items", err)
	}
	return n, nil
}

func (r *ItemRepo) Create(ctx context.Context, item domain.NewItem) (*domain.PlaylistItem, error) {
	var created *domain.PlaylistItem
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, createLockID); err != nil {
			return err
		}

		var count, next int
		err := tx.QueryRow(ctx, `SELECT count(*), COALESCE(MAX(order_index) + 1, 0) FROM playlist_items`).Scan(&count, &next)
		if err != nil {
			return err
		}
		if count >= domain.MaxItems {
			return fmt.Errorf("%w: %d items maximum", domain.ErrCapacityReached, domain.MaxItems)
		}
		if item.OrderIndex != nil {
			next = *item.OrderIndex
		}

		created, err = scanItem(tx.QueryRow(ctx,
			`INSERT INTO playlist_items (kind, payload, duration_seconds, order_index)
			 VALUES ($1, $2, $3, $4)
			 RETURNING `+itemColumns,
			string(item.Kind), string(item.Payload), item.DurationSeconds, next))
		return err
	})
	if err != nil {
		return nil, mapError("create playlist item", err)
	}
	return created, nil
}

func (r *ItemRepo) Update(ctx context.Context, id uuid.UUID, patch domain.ItemPatch) (*domain.PlaylistItem, error) {
	var payload *string
	if len(patch.Payload) > 0 {
		p := string(patch.Payload)
		payload = &p
	}

	item, err := scanItem(r.pool.QueryRow(ctx,
		`UPDATE playlist_items
		 SET duration_seconds = COALESCE($2::int, duration_seconds),
		     payload = COALESCE($3::jsonb, payload),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+itemColumns,
		id, patch.DurationSeconds, payload))
	if err != nil {
		return nil, mapError("update playlist item", err)
	}
	return item, nil
}

func (r *ItemRepo) Delete(ctx context.Context, id uuid.UUID) (*domain.PlaylistItem, error) {
	item, err := scanItem(r.pool.QueryRow(ctx,
		`DELETE FROM playlist_items WHERE id = $1 RETURNING `+itemColumns, id))
	if err != nil {
		return nil, mapError("delete playlist item", err)
	}
	return item, nil
}

func (r *ItemRepo) StoragePathInUse(ctx context.Context, storagePath string) (bool, error) {
	var inUse bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM playlist_items
		   WHERE kind = $1 AND payload->>'storagePath' = $2
		 )`, string(domain.KindImage), storagePath).Scan(&inUse)
	if err != nil {
		return false, mapError("check storage path", err)
	}
	return inUse, nil
}

// SwapOrder exchanges the order indexes of a and b in one statement. The
// unique constraint is checked at statement end, so the intermediate
// duplicate is never observed. Both rows must still hold the indexes they
// were read with, otherwise nothing is written.
func (r *ItemRepo) SwapOrder(ctx context.Context, a, b domain.OrderSlot) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE playlist_items
			 SET order_index = CASE WHEN id = $1 THEN $4::int ELSE $2::int END,
			     updated_at = now()
			 WHERE (id = $1 AND order_index = $2) OR (id = $3 AND order_index = $4)`,
			a.ID, a.OrderIndex, b.ID, b.OrderIndex)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 2 {
			return fmt.Errorf("%w: %d of 2 rows matched", domain.ErrReorderConflict, tag.RowsAffected())
		}
		return nil
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", domain.ErrReorderConflict, err)
	}
	if err != nil {
		return mapError("swap order", err)
	}
	return nil
}

func scanItem(row pgx.Row) (*domain.PlaylistItem, error) {
	var (
		item domain.PlaylistItem
		kind string
	)
	if err := row.Scan(&item.ID, &kind, &item.Payload, &item.DurationSeconds, &item.OrderIndex, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.Kind = domain.ItemKind(kind)
	return &item, nil
}

// mapError translates driver errors into domain errors. Errors that already
// carry a domain meaning pass through unchanged.
func mapError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrItemNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %w", domain.ErrOrderIndexTaken, err)
	case errors.Is(err, domain.ErrCapacityReached),
		errors.Is(err, domain.ErrReorderConflict):
		return err
	default:
		return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
