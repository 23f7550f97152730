package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mlukyanov/packtrack-system/internal/model"
	"github.com/mlukyanov/packtrack-system/internal/repository"
)

// ExportFilter описывает запрос массовой выгрузки манифестов. Заполняется
// ровно один из трёх способов отбора: явный список идентификаторов, диапазон
// идентификаторов или диапазон дат упаковки. Запрос с несколькими способами
// одновременно отклоняется как неоднозначный.
type ExportFilter struct {
	ContainerIDs []int64 `json:"container_ids,omitempty"`
	IDFrom       *int64  `json:"container_id_from,omitempty"`
	IDTo         *int64  `json:"container_id_to,omitempty"`
	PackedFrom   string  `json:"packed_date_from,omitempty"`
	PackedTo     string  `json:"packed_date_to,omitempty"`
	OrderBy      string  `json:"order_by,omitempty"`
	OrderDir     string  `json:"order_dir,omitempty"`
	SortArticles string  `json:"sort_articles,omitempty"`
	SortCodes    string  `json:"sort_dms,omitempty"`
}

// ForbiddenContainersError возвращается, когда выборка массовой выгрузки
// содержит чужие контейнеры. Выгрузка отклоняется целиком: частичный
// результат маскировал бы пропавшие контейнеры.
type ForbiddenContainersError struct {
	IDs []int64
}

func (e *ForbiddenContainersError) Error() string {
	return fmt.Sprintf("access denied to containers %v", e.IDs)
}

// Is позволяет распознавать ошибку через errors.Is(err, ErrForbidden).
func (e *ForbiddenContainersError) Is(target error) bool {
	return target == ErrForbidden
}

var stampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseStamp разбирает границу диапазона дат. Дата без времени означает полночь.
func parseStamp(s string) (time.Time, error) {
	for _, layout := range stampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse timestamp %q", ErrBadFilter, s)
}

func (f ExportFilter) selection() (repository.ContainerSelection, error) {
	var sel repository.ContainerSelection

	modes := 0
	if len(f.ContainerIDs) > 0 {
		modes++
	}
	if f.IDFrom != nil || f.IDTo != nil {
		modes++
	}
	if f.PackedFrom != "" || f.PackedTo != "" {
		modes++
	}
	switch {
	case modes == 0:
		return sel, fmt.Errorf("%w: no filter mode specified", ErrBadFilter)
	case modes > 1:
		return sel, fmt.Errorf("%w: more than one filter mode specified", ErrBadFilter)
	}

	switch {
	case len(f.ContainerIDs) > 0:
		sel.IDs = f.ContainerIDs

	case f.IDFrom != nil || f.IDTo != nil:
		if f.IDFrom == nil || f.IDTo == nil {
			return sel, fmt.Errorf("%w: id range requires both bounds", ErrBadFilter)
		}
		from, to := *f.IDFrom, *f.IDTo
		if from > to {
			from, to = to, from
		}
		sel.IDFrom, sel.IDTo = &from, &to

	default:
		if f.PackedFrom == "" || f.PackedTo == "" {
			return sel, fmt.Errorf("%w: packed date range requires both bounds", ErrBadFilter)
		}
		from, err := parseStamp(f.PackedFrom)
		if err != nil {
			return sel, err
		}
		to, err := parseStamp(f.PackedTo)
		if err != nil {
			return sel, err
		}
		if from.After(to) {
			from, to = to, from
		}
		sel.PackedFrom, sel.PackedTo = &from, &to
	}

	// Недопустимые значения сортировки откатываются к container_id/asc.
	switch f.OrderBy {
	case "packed_date":
		sel.OrderBy = repository.OrderByPacked
	case "container_name":
		sel.OrderBy = repository.OrderByName
	default:
		sel.OrderBy = repository.OrderByID
	}
	sel.Desc = strings.EqualFold(f.OrderDir, "desc")

	return sel, nil
}

// ExportBulk разворачивает спецификацию фильтра в упорядоченный список
// контейнеров и строит манифест для каждого. Для не-администратора выборка
// проверяется на владение целиком: один чужой контейнер отклоняет весь запрос.
// Контейнер без кодов даёт манифест с пустым набором групп, строки не теряются.
func (s *Service) ExportBulk(ctx context.Context, actor model.Actor, f ExportFilter) ([]model.Manifest, error) {
	sel, err := f.selection()
	if err != nil {
		return nil, err
	}

	containers, err := s.repo.SelectContainers(ctx, sel)
	if err != nil {
		return nil, err
	}

	if actor.Role != model.RoleAdmin {
		if actor.ID == 0 {
			return nil, ErrMissingOwner
		}
		var denied []int64
		for _, c := range containers {
			if c.OwnerID != actor.ID {
				denied = append(denied, c.ID)
			}
		}
		if len(denied) > 0 {
			return nil, &ForbiddenContainersError{IDs: denied}
		}
	}

	articlesDesc := strings.EqualFold(f.SortArticles, "desc")
	codesDesc := strings.EqualFold(f.SortCodes, "desc")

	manifests := make([]model.Manifest, 0, len(containers))
	for i := range containers {
		m, err := s.buildManifest(ctx, &containers[i])
		if err != nil {
			return nil, err
		}
		sortManifest(m, articlesDesc, codesDesc)
		manifests = append(manifests, *m)
	}

	return manifests, nil
}

// sortManifest применяет направления сортировки групп и кодов внутри групп.
// Consolidate уже возвращает группы по возрастанию артикула.
func sortManifest(m *model.Manifest, articlesDesc, codesDesc bool) {
	if articlesDesc {
		for i, j := 0, len(m.Groups)-1; i < j; i, j = i+1, j-1 {
			m.Groups[i], m.Groups[j] = m.Groups[j], m.Groups[i]
		}
	}

	for gi := range m.Groups {
		codes := m.Groups[gi].Codes
		sort.Slice(codes, func(i, j int) bool {
			if codesDesc {
				return codes[i].Code > codes[j].Code
			}
			return codes[i].Code < codes[j].Code
		})
	}
}
