package service

import "github.com/mlukyanov/packtrack-system/internal/model"

// canViewOrMutate определяет, может ли инициатор видеть и изменять контейнер.
// Администратору доступны все контейнеры, остальным — только созданные ими.
// Единственное правило закрывает и фильтрацию списков, и авторизацию мутаций.
func canViewOrMutate(actor model.Actor, c *model.Container) bool {
	if actor.Role == model.RoleAdmin {
		return true
	}
	return actor.ID != 0 && actor.ID == c.OwnerID
}

// authorize проверяет доступ инициатора к контейнеру. Вызывается до любой
// мутации: проверка после изменения состояния была бы ошибкой авторизации.
func (s *Service) authorize(actor model.Actor, c *model.Container) error {
	if !canViewOrMutate(actor, c) {
		return ErrForbidden
	}
	return nil
}
