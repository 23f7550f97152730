package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mlukyanov/packtrack-system/internal/model"
)

// OrderColumn задаёт колонку сортировки выборки контейнеров.
// Набор закрыт: в ORDER BY попадают только значения из allow-списка.
type OrderColumn string

const (
	OrderByID     OrderColumn = "container_id"
	OrderByPacked OrderColumn = "packed_date"
	OrderByName   OrderColumn = "container_name"
)

var orderColumns = map[OrderColumn]string{
	OrderByID:     "container_id",
	OrderByPacked: "packed_date",
	OrderByName:   "container_name",
}

// ContainerSelection описывает выборку контейнеров для массовой выгрузки.
// Заполняется ровно один из способов отбора: явный список идентификаторов,
// диапазон идентификаторов или диапазон дат упаковки.
type ContainerSelection struct {
	IDs        []int64
	IDFrom     *int64
	IDTo       *int64
	PackedFrom *time.Time
	PackedTo   *time.Time
	OrderBy    OrderColumn
	Desc       bool
}

// SelectContainers возвращает контейнеры по заданной выборке в требуемом порядке.
func (r *PostgresRepository) SelectContainers(ctx context.Context, sel ContainerSelection) ([]model.Container, error) {
	query := `SELECT ` + containerColumns + ` FROM containers`
	var args []any

	switch {
	case len(sel.IDs) > 0:
		query += ` WHERE container_id = ANY($1)`
		args = append(args, sel.IDs)
	case sel.IDFrom != nil && sel.IDTo != nil:
		query += ` WHERE container_id BETWEEN $1 AND $2`
		args = append(args, *sel.IDFrom, *sel.IDTo)
	case sel.PackedFrom != nil && sel.PackedTo != nil:
		query += ` WHERE packed_date IS NOT NULL AND packed_date BETWEEN $1 AND $2`
		args = append(args, *sel.PackedFrom, *sel.PackedTo)
	default:
		return nil, fmt.Errorf("empty container selection")
	}

	column, ok := orderColumns[sel.OrderBy]
	if !ok {
		column = orderColumns[OrderByID]
	}
	direction := "ASC"
	if sel.Desc {
		direction = "DESC"
	}
	// Вторичная сортировка по идентификатору делает порядок устойчивым
	// при совпадающих значениях основной колонки.
	query += fmt.Sprintf(" ORDER BY %s %s, container_id ASC", column, direction)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select containers: %w", err)
	}
	defer rows.Close()

	var containers []model.Container
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan container: %w", err)
		}
		containers = append(containers, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return containers, nil
}
