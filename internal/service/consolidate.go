package service

import (
	"sort"

	"github.com/mlukyanov/packtrack-system/internal/model"
)

// Consolidate группирует записи кодов по артикулу и возвращает группы
// в порядке возрастания артикула. Внутри группы коды сохраняют входной
// порядок. Функция чистая и детерминированная; пустой вход даёт пустой
// результат.
func Consolidate(records []model.CodeRecord) []model.ManifestGroup {
	byArticle := make(map[string][]model.CodeRecord)
	for _, rec := range records {
		byArticle[rec.Article] = append(byArticle[rec.Article], rec)
	}

	articles := make([]string, 0, len(byArticle))
	for article := range byArticle {
		articles = append(articles, article)
	}
	sort.Strings(articles)

	groups := make([]model.ManifestGroup, 0, len(articles))
	for _, article := range articles {
		codes := byArticle[article]
		groups = append(groups, model.ManifestGroup{
			Article: article,
			Codes:   codes,
			Count:   len(codes),
		})
	}

	return groups
}
