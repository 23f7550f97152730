package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mlukyanov/packtrack-system/internal/model"
)

// BindCode привязывает код к контейнеру. Вставка привязки и перевод
// контейнера new → packing выполняются в одной транзакции: два
// одновременных вызова для одного кода дают ровно один успех.
func (r *PostgresRepository) BindCode(ctx context.Context, code string, containerID, actorID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT container_status FROM containers WHERE container_id = $1 FOR UPDATE`,
		containerID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrContainerNotFound
		}
		return fmt.Errorf("select container for bind: %w", err)
	}

	if model.ContainerStatus(status) == model.StatusPacked {
		return ErrContainerPacked
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO dm_in_containers (dm_code, container_id, packed_by_id) VALUES ($1, $2, $3)`,
		code, containerID, actorID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return r.codeBoundError(ctx, code)
		}
		return fmt.Errorf("insert binding: %w", err)
	}

	if model.ContainerStatus(status) == model.StatusNew {
		_, err = tx.Exec(ctx,
			`UPDATE containers SET container_status = $2 WHERE container_id = $1`,
			containerID, string(model.StatusPacking),
		)
		if err != nil {
			return fmt.Errorf("update container status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *PostgresRepository) codeBoundError(ctx context.Context, code string) error {
	var holder string
	err := r.pool.QueryRow(ctx,
		`SELECT c.container_name
		 FROM dm_in_containers dic
		 JOIN containers c ON dic.container_id = c.container_id
		 WHERE dic.dm_code = $1`,
		code,
	).Scan(&holder)
	if err != nil {
		// Привязка могла исчезнуть между вставкой и чтением; сообщаем без имени держателя.
		return &CodeBoundError{Code: code}
	}
	return &CodeBoundError{Code: code, Holder: holder}
}

// UnbindCode удаляет привязку кода к контейнеру. Если это был последний
// привязанный код, контейнер возвращается в статус new той же транзакцией.
func (r *PostgresRepository) UnbindCode(ctx context.Context, code string, containerID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT container_status FROM containers WHERE container_id = $1 FOR UPDATE`,
		containerID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrContainerNotFound
		}
		return fmt.Errorf("select container for unbind: %w", err)
	}

	if model.ContainerStatus(status) == model.StatusPacked {
		return ErrContainerPacked
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM dm_in_containers WHERE dm_code = $1 AND container_id = $2`,
		code, containerID,
	)
	if err != nil {
		return fmt.Errorf("delete binding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBindingNotFound
	}

	var remaining int64
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM dm_in_containers WHERE container_id = $1`,
		containerID,
	).Scan(&remaining)
	if err != nil {
		return fmt.Errorf("count remaining bindings: %w", err)
	}

	if remaining == 0 {
		_, err = tx.Exec(ctx,
			`UPDATE containers SET container_status = $2 WHERE container_id = $1`,
			containerID, string(model.StatusNew),
		)
		if err != nil {
			return fmt.Errorf("update container status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListCodes возвращает привязки всех кодов контейнера в порядке добавления.
func (r *PostgresRepository) ListCodes(ctx context.Context, containerID int64) ([]model.CodeBinding, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT dm_code, container_id, packed_by_id, packed_at
		 FROM dm_in_containers
		 WHERE container_id = $1
		 ORDER BY packed_at`,
		containerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select bindings: %w", err)
	}
	defer rows.Close()

	var bindings []model.CodeBinding
	for rows.Next() {
		var b model.CodeBinding
		if err := rows.Scan(&b.Code, &b.ContainerID, &b.BoundBy, &b.BoundAt); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		bindings = append(bindings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return bindings, nil
}

// GetCodeHolder возвращает контейнер, в котором сейчас находится код.
// Если код не привязан, возвращается ErrBindingNotFound.
func (r *PostgresRepository) GetCodeHolder(ctx context.Context, code string) (*model.Container, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT c.container_id, c.container_name, c.container_status, c.created_by_id, c.packed_date, c.created_at
		 FROM dm_in_containers dic
		 JOIN containers c ON dic.container_id = c.container_id
		 WHERE dic.dm_code = $1`,
		code,
	)

	c, err := scanContainer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBindingNotFound
		}
		return nil, fmt.Errorf("get code holder: %w", err)
	}
	return c, nil
}
