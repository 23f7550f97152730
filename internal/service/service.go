// Package service реализует бизнес-логику сервиса учёта упаковки:
// жизненный цикл контейнера, привязку DM-кодов и сборку манифестов.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mlukyanov/packtrack-system/internal/model"
	"github.com/mlukyanov/packtrack-system/internal/repository"
)

// ErrForbidden возвращается, когда у инициатора нет прав на контейнер.
var (
	ErrForbidden = errors.New("access to container is forbidden")
	// ErrMissingOwner возвращается, когда для не-администратора не удалось определить владельца.
	ErrMissingOwner = errors.New("owner identity required")
	// ErrBadFilter возвращается при некорректной или неоднозначной спецификации фильтра.
	ErrBadFilter = errors.New("bad filter")
	// ErrCodeUnknown возвращается, когда код отсутствует в справочнике.
	ErrCodeUnknown = errors.New("code not found in registry")
	// ErrInvalidCredentials возвращается при неверной паре логин-пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte, role model.Role) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	CreateContainer(ctx context.Context, name string, ownerID int64) (int64, error)
	GetContainer(ctx context.Context, id int64) (*model.Container, error)
	ListContainers(ctx context.Context, statuses []model.ContainerStatus, ownerID *int64) ([]model.Container, error)
	RenameContainer(ctx context.Context, id int64, newName string) error
	MarkPacked(ctx context.Context, id int64, packedAt time.Time) error
	DeleteContainer(ctx context.Context, id int64) error
	BindCode(ctx context.Context, code string, containerID, actorID int64) error
	UnbindCode(ctx context.Context, code string, containerID int64) error
	ListCodes(ctx context.Context, containerID int64) ([]model.CodeBinding, error)
	GetCodeHolder(ctx context.Context, code string) (*model.Container, error)
	SelectContainers(ctx context.Context, sel repository.ContainerSelection) ([]model.Container, error)
}

// Registry описывает контракт справочника DM-кодов (только чтение).
type Registry interface {
	Exists(ctx context.Context, code string) (bool, error)
	DescribeMany(ctx context.Context, codes []string) ([]model.CodeRecord, error)
}

// Service содержит бизнес-логику сервиса учёта упаковки.
type Service struct {
	repo     Repository
	registry Registry
}

// NewService создаёт новый сервис с указанными репозиторием и справочником кодов.
func NewService(repo Repository, registry Registry) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового кладовщика.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	return s.repo.CreateUser(ctx, login, hashed, model.RoleWarehouseman)
}

// AuthenticateUser проверяет логин и пароль и возвращает пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (*model.User, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// CreateContainer создаёт контейнер в статусе new от имени инициатора.
func (s *Service) CreateContainer(ctx context.Context, actor model.Actor, name string) (int64, error) {
	return s.repo.CreateContainer(ctx, name, actor.ID)
}

// ListContainers возвращает контейнеры, видимые инициатору. Администратор
// видит все контейнеры, кладовщик — только свои. Пустой фильтр статусов
// означает все статусы.
func (s *Service) ListContainers(ctx context.Context, actor model.Actor, statuses []model.ContainerStatus) ([]model.Container, error) {
	for _, st := range statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrBadFilter, st)
		}
	}

	if actor.Role == model.RoleAdmin {
		return s.repo.ListContainers(ctx, statuses, nil)
	}

	if actor.ID == 0 {
		return nil, ErrMissingOwner
	}
	return s.repo.ListContainers(ctx, statuses, &actor.ID)
}

// RenameContainer меняет имя контейнера.
func (s *Service) RenameContainer(ctx context.Context, actor model.Actor, id int64, newName string) error {
	c, err := s.repo.GetContainer(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(actor, c); err != nil {
		return err
	}
	return s.repo.RenameContainer(ctx, id, newName)
}

// ConfirmPacked переводит контейнер в статус packed. Повторное подтверждение
// уже упакованного контейнера допустимо и ничего не меняет.
func (s *Service) ConfirmPacked(ctx context.Context, actor model.Actor, id int64) error {
	c, err := s.repo.GetContainer(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(actor, c); err != nil {
		return err
	}
	return s.repo.MarkPacked(ctx, id, time.Now())
}

// DeleteContainer безвозвратно удаляет контейнер. Разрешено только для
// контейнера в статусе new без привязанных кодов.
func (s *Service) DeleteContainer(ctx context.Context, actor model.Actor, id int64) error {
	c, err := s.repo.GetContainer(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(actor, c); err != nil {
		return err
	}
	return s.repo.DeleteContainer(ctx, id)
}

// BindCode привязывает DM-код к контейнеру. Код должен существовать в
// справочнике и не быть привязанным ни к одному контейнеру. Первый код
// переводит контейнер из new в packing.
func (s *Service) BindCode(ctx context.Context, actor model.Actor, code string, containerID int64) error {
	c, err := s.repo.GetContainer(ctx, containerID)
	if err != nil {
		return err
	}
	if err := s.authorize(actor, c); err != nil {
		return err
	}
	if c.Status == model.StatusPacked {
		return repository.ErrContainerPacked
	}

	exists, err := s.registry.Exists(ctx, code)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrCodeUnknown, code)
	}

	return s.repo.BindCode(ctx, code, containerID, actor.ID)
}

// UnbindCode удаляет привязку DM-кода к контейнеру. Удаление последнего
// кода возвращает контейнер в статус new.
func (s *Service) UnbindCode(ctx context.Context, actor model.Actor, code string, containerID int64) error {
	c, err := s.repo.GetContainer(ctx, containerID)
	if err != nil {
		return err
	}
	if err := s.authorize(actor, c); err != nil {
		return err
	}
	return s.repo.UnbindCode(ctx, code, containerID)
}

// ListCodes возвращает привязки кодов контейнера.
func (s *Service) ListCodes(ctx context.Context, actor model.Actor, containerID int64) ([]model.CodeBinding, error) {
	c, err := s.repo.GetContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, c); err != nil {
		return nil, err
	}
	return s.repo.ListCodes(ctx, containerID)
}

// GetManifest собирает манифест комплектации контейнера.
func (s *Service) GetManifest(ctx context.Context, actor model.Actor, containerID int64) (*model.Manifest, error) {
	c, err := s.repo.GetContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, c); err != nil {
		return nil, err
	}
	return s.buildManifest(ctx, c)
}

// buildManifest строит манифест по текущему набору привязанных кодов.
// Для контейнера в статусе new справочник не опрашивается: кодов в нём
// быть не может.
func (s *Service) buildManifest(ctx context.Context, c *model.Container) (*model.Manifest, error) {
	m := &model.Manifest{
		ContainerID:   c.ID,
		ContainerName: c.Name,
		Status:        c.Status,
		PackedAt:      c.PackedAt,
		Groups:        []model.ManifestGroup{},
	}

	if c.Status == model.StatusNew {
		return m, nil
	}

	bindings, err := s.repo.ListCodes(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if len(bindings) == 0 {
		return m, nil
	}

	codes := make([]string, 0, len(bindings))
	for _, b := range bindings {
		codes = append(codes, b.Code)
	}

	records, err := s.registry.DescribeMany(ctx, codes)
	if err != nil {
		return nil, err
	}

	m.Groups = Consolidate(records)
	return m, nil
}

// CodeStatus описывает положение DM-кода: запись справочника и контейнер,
// в котором код находится, если он привязан.
type CodeStatus struct {
	Record    model.CodeRecord
	Packed    bool
	Container *model.Container
}

// GetCodeStatus возвращает сведения о DM-коде и его текущем держателе.
func (s *Service) GetCodeStatus(ctx context.Context, code string) (*CodeStatus, error) {
	records, err := s.registry.DescribeMany(ctx, []string{code})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCodeUnknown, code)
	}

	status := &CodeStatus{Record: records[0]}

	holder, err := s.repo.GetCodeHolder(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrBindingNotFound) {
			return status, nil
		}
		return nil, err
	}

	status.Packed = true
	status.Container = holder
	return status, nil
}
