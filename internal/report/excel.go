// Package report формирует файлы упаковочных листов из манифестов.
package report

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/mlukyanov/packtrack-system/internal/model"
)

const defaultSheet = "Sheet1"

// Workbook строит книгу с одним листом на контейнер. Артикулы раскладываются
// по колонкам в порядке следования групп манифеста, коды группы — по строкам
// под заголовком. Контейнер без кодов получает строку-заглушку с нулевым
// количеством, чтобы ни одна позиция выгрузки не терялась молча.
func Workbook(manifests []model.Manifest) (*excelize.File, error) {
	f := excelize.NewFile()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return nil, fmt.Errorf("new style: %w", err)
	}

	for i, m := range manifests {
		sheet := sheetName(m, i)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, fmt.Errorf("new sheet: %w", err)
			}
		}

		if err := writeManifest(f, sheet, m, bold); err != nil {
			return nil, err
		}
	}

	return f, nil
}

func writeManifest(f *excelize.File, sheet string, m model.Manifest, bold int) error {
	if err := f.SetColWidth(sheet, "A", "T", 40); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := f.SetCellValue(sheet, "A1", "Container"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellValue(sheet, "B1", m.ContainerName); err != nil {
		return fmt.Errorf("write container name: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "B1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	if len(m.Groups) == 0 {
		if err := f.SetCellValue(sheet, "A3", "- ( 0 pcs )"); err != nil {
			return fmt.Errorf("write placeholder: %w", err)
		}
		return f.SetCellStyle(sheet, "A3", "A3", bold)
	}

	const headerRow = 3
	for col, group := range m.Groups {
		cell, err := excelize.CoordinatesToCellName(col+1, headerRow)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		header := fmt.Sprintf("%s ( %d pcs )", group.Article, group.Count)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("write group header: %w", err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, bold); err != nil {
			return fmt.Errorf("style group header: %w", err)
		}

		for row, rec := range group.Codes {
			cell, err := excelize.CoordinatesToCellName(col+1, headerRow+1+row)
			if err != nil {
				return fmt.Errorf("code cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, rec.Code); err != nil {
				return fmt.Errorf("write code: %w", err)
			}
		}
	}

	return nil
}

// sheetName приводит имя контейнера к допустимому имени листа: Excel
// ограничивает длину 31 символом и запрещает ряд знаков. Лимит считается
// в символах, а не в байтах, поэтому усечение идёт по рунам.
func sheetName(m model.Manifest, index int) string {
	name := m.ContainerName
	if name == "" {
		name = fmt.Sprintf("container_%d", m.ContainerID)
	}

	replacer := strings.NewReplacer(
		"[", "_", "]", "_", ":", "_", "*", "_", "?", "_", "/", "_", "\\", "_",
	)
	name = replacer.Replace(name)

	if utf8.RuneCountInString(name) > 31 {
		suffix := fmt.Sprintf("~%d", index+1)
		runes := []rune(name)
		name = string(runes[:31-len(suffix)]) + suffix
	}

	return name
}
