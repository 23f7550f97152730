// Package registry предоставляет доступ на чтение к справочнику DM-кодов.
// Справочник заполняется внешним конвейером приёмки; сервис упаковки
// никогда его не изменяет.
package registry

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mlukyanov/packtrack-system/internal/model"
)

// Reader читает записи справочника DM-кодов.
type Reader struct {
	pool *pgxpool.Pool
}

// New создаёт читатель справочника поверх существующего пула соединений.
func New(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

// Exists сообщает, есть ли код в справочнике.
func (r *Reader) Exists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM dm_codes WHERE dm_code = $1)`,
		code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check code: %w", err)
	}
	return exists, nil
}

// DescribeMany возвращает записи справочника для указанных кодов.
// Коды, отсутствующие в справочнике, просто опускаются: вызывающая
// сторона при необходимости сверяет количество.
func (r *Reader) DescribeMany(ctx context.Context, codes []string) ([]model.CodeRecord, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT dm_code, article, invoice_date, page_number
		 FROM dm_codes
		 WHERE dm_code = ANY($1)`,
		codes,
	)
	if err != nil {
		return nil, fmt.Errorf("select code records: %w", err)
	}
	defer rows.Close()

	var records []model.CodeRecord
	for rows.Next() {
		var rec model.CodeRecord
		if err := rows.Scan(&rec.Code, &rec.Article, &rec.InvoiceDate, &rec.PageNumber); err != nil {
			return nil, fmt.Errorf("scan code record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return records, nil
}
