package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mlukyanov/packtrack-system/internal/model"
)

const containerColumns = `container_id, container_name, container_status, created_by_id, packed_date, created_at`

func scanContainer(row pgx.Row) (*model.Container, error) {
	var c model.Container
	var status string
	if err := row.Scan(&c.ID, &c.Name, &status, &c.OwnerID, &c.PackedAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Status = model.ContainerStatus(status)
	return &c, nil
}

// CreateContainer создаёт контейнер в статусе new и возвращает его идентификатор.
// Уникальность имени обеспечивается ограничением в БД, а не проверкой перед вставкой.
func (r *PostgresRepository) CreateContainer(ctx context.Context, name string, ownerID int64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO containers (container_name, container_status, created_by_id) VALUES ($1, $2, $3) RETURNING container_id`,
		name, string(model.StatusNew), ownerID,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrContainerExists, name)
		}
		return 0, fmt.Errorf("create container: %w", err)
	}
	return id, nil
}

// GetContainer возвращает контейнер по идентификатору.
func (r *PostgresRepository) GetContainer(ctx context.Context, id int64) (*model.Container, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+containerColumns+` FROM containers WHERE container_id = $1`,
		id,
	)

	c, err := scanContainer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContainerNotFound
		}
		return nil, fmt.Errorf("get container: %w", err)
	}
	return c, nil
}

// ListContainers возвращает контейнеры, отфильтрованные по статусам и,
// если ownerID задан, по создателю. Пустой список статусов означает все статусы.
func (r *PostgresRepository) ListContainers(ctx context.Context, statuses []model.ContainerStatus, ownerID *int64) ([]model.Container, error) {
	query := `SELECT ` + containerColumns + ` FROM containers`
	args := []any{}

	switch {
	case len(statuses) > 0 && ownerID != nil:
		query += ` WHERE container_status = ANY($1) AND created_by_id = $2`
		args = append(args, statusStrings(statuses), *ownerID)
	case len(statuses) > 0:
		query += ` WHERE container_status = ANY($1)`
		args = append(args, statusStrings(statuses))
	case ownerID != nil:
		query += ` WHERE created_by_id = $1`
		args = append(args, *ownerID)
	}
	query += ` ORDER BY container_id`

	var containers []model.Container
	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("select containers: %w", err)
		}
		defer rows.Close()

		containers = containers[:0]
		for rows.Next() {
			c, err := scanContainer(rows)
			if err != nil {
				return fmt.Errorf("scan container: %w", err)
			}
			containers = append(containers, *c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return containers, nil
}

func statusStrings(statuses []model.ContainerStatus) []string {
	res := make([]string, 0, len(statuses))
	for _, s := range statuses {
		res = append(res, string(s))
	}
	return res
}

// RenameContainer меняет имя контейнера. Переименование в то же самое имя допустимо.
func (r *PostgresRepository) RenameContainer(ctx context.Context, id int64, newName string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE containers SET container_name = $2 WHERE container_id = $1`,
		id, newName,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrContainerExists, newName)
		}
		return fmt.Errorf("rename container: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrContainerNotFound
	}
	return nil
}

// MarkPacked переводит контейнер в статус packed и фиксирует время упаковки.
// Повторный вызов для уже упакованного контейнера ничего не меняет:
// packed_date проставляется ровно один раз.
func (r *PostgresRepository) MarkPacked(ctx context.Context, id int64, packedAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE containers SET container_status = $2, packed_date = $3
		 WHERE container_id = $1 AND container_status <> $2`,
		id, string(model.StatusPacked), packedAt,
	)
	if err != nil {
		return fmt.Errorf("mark packed: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Либо контейнера нет, либо он уже упакован.
	var exists bool
	err = r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM containers WHERE container_id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check container: %w", err)
	}
	if !exists {
		return ErrContainerNotFound
	}
	return nil
}

// DeleteContainer безвозвратно удаляет контейнер. Удаление разрешено только
// для контейнера в статусе new без привязанных кодов; проверки и удаление
// выполняются в одной транзакции.
func (r *PostgresRepository) DeleteContainer(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT container_status FROM containers WHERE container_id = $1 FOR UPDATE`,
		id,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrContainerNotFound
		}
		return fmt.Errorf("select container for delete: %w", err)
	}

	if model.ContainerStatus(status) != model.StatusNew {
		return ErrContainerNotNew
	}

	var bound int64
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM dm_in_containers WHERE container_id = $1`,
		id,
	).Scan(&bound)
	if err != nil {
		return fmt.Errorf("count bindings: %w", err)
	}
	if bound > 0 {
		return ErrContainerNotEmpty
	}

	if _, err := tx.Exec(ctx, `DELETE FROM containers WHERE container_id = $1`, id); err != nil {
		return fmt.Errorf("delete container: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
