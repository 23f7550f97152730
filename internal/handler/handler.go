// Package handler содержит HTTP-обработчики API сервиса учёта упаковки.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mlukyanov/packtrack-system/internal/middleware"
	"github.com/mlukyanov/packtrack-system/internal/model"
	"github.com/mlukyanov/packtrack-system/internal/repository"
	"github.com/mlukyanov/packtrack-system/internal/service"
	"github.com/mlukyanov/packtrack-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (*model.User, error)
	CreateContainer(ctx context.Context, actor model.Actor, name string) (int64, error)
	ListContainers(ctx context.Context, actor model.Actor, statuses []model.ContainerStatus) ([]model.Container, error)
	RenameContainer(ctx context.Context, actor model.Actor, id int64, newName string) error
	ConfirmPacked(ctx context.Context, actor model.Actor, id int64) error
	DeleteContainer(ctx context.Context, actor model.Actor, id int64) error
	BindCode(ctx context.Context, actor model.Actor, code string, containerID int64) error
	UnbindCode(ctx context.Context, actor model.Actor, code string, containerID int64) error
	GetManifest(ctx context.Context, actor model.Actor, containerID int64) (*model.Manifest, error)
	GetCodeStatus(ctx context.Context, code string) (*service.CodeStatus, error)
	ExportBulk(ctx context.Context, actor model.Actor, f service.ExportFilter) ([]model.Manifest, error)
}

// Handler реализует HTTP-обработчики API сервиса учёта упаковки.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return actor, ok
}

// writeError переводит доменную ошибку в HTTP-статус. Неизвестные ошибки
// логируются и возвращаются как 500 без деталей.
func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	var bound *repository.CodeBoundError
	switch {
	case errors.Is(err, repository.ErrContainerNotFound),
		errors.Is(err, service.ErrCodeUnknown):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &bound),
		errors.Is(err, repository.ErrContainerExists),
		errors.Is(err, repository.ErrContainerNotNew),
		errors.Is(err, repository.ErrContainerNotEmpty),
		errors.Is(err, repository.ErrContainerPacked):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, repository.ErrBindingNotFound),
		errors.Is(err, service.ErrBadFilter):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrMissingOwner):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		h.logger.Error(op, zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type createContainerRequest struct {
	ContainerName string `json:"container_name"`
}

type createContainerResponse struct {
	ContainerID   int64  `json:"container_id"`
	ContainerName string `json:"container_name"`
}

// CreateContainer создаёт новый контейнер от имени текущего пользователя.
func (h *Handler) CreateContainer(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req createContainerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ContainerName == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.CreateContainer(r.Context(), actor, req.ContainerName)
	if err != nil {
		h.writeError(w, err, "create container error")
		return
	}

	h.writeJSON(w, createContainerResponse{
		ContainerID:   id,
		ContainerName: req.ContainerName,
	})
}

type listContainersRequest struct {
	ContainerStatuses []string `json:"container_statuses"`
}

type containerResponse struct {
	ContainerID     int64  `json:"container_id"`
	ContainerName   string `json:"container_name"`
	ContainerStatus string `json:"container_status"`
	CreatedByID     int64  `json:"created_by_id"`
	PackedDate      string `json:"packed_date,omitempty"`
}

func toContainerResponse(c model.Container) containerResponse {
	resp := containerResponse{
		ContainerID:     c.ID,
		ContainerName:   c.Name,
		ContainerStatus: string(c.Status),
		CreatedByID:     c.OwnerID,
	}
	if c.PackedAt != nil {
		resp.PackedDate = c.PackedAt.Format("2006-01-02 15:04:05")
	}
	return resp
}

// ListContainers возвращает контейнеры, видимые текущему пользователю,
// с необязательным фильтром по статусам.
func (h *Handler) ListContainers(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req listContainersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	statuses := make([]model.ContainerStatus, 0, len(req.ContainerStatuses))
	for _, s := range req.ContainerStatuses {
		statuses = append(statuses, model.ContainerStatus(s))
	}

	containers, err := h.service.ListContainers(r.Context(), actor, statuses)
	if err != nil {
		h.writeError(w, err, "list containers error")
		return
	}

	resp := make([]containerResponse, 0, len(containers))
	for _, c := range containers {
		resp = append(resp, toContainerResponse(c))
	}

	h.writeJSON(w, map[string]any{"containers": resp})
}

type renameContainerRequest struct {
	ContainerID      int64  `json:"container_id"`
	NewContainerName string `json:"new_container_name"`
}

// RenameContainer меняет имя контейнера.
func (h *Handler) RenameContainer(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req renameContainerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewContainerName == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.RenameContainer(r.Context(), actor, req.ContainerID, req.NewContainerName); err != nil {
		h.writeError(w, err, "rename container error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

type containerIDRequest struct {
	ContainerID int64 `json:"container_id"`
}

// ConfirmPacked переводит контейнер в статус packed.
func (h *Handler) ConfirmPacked(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req containerIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.ConfirmPacked(r.Context(), actor, req.ContainerID); err != nil {
		h.writeError(w, err, "confirm packed error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteContainer безвозвратно удаляет контейнер.
func (h *Handler) DeleteContainer(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req containerIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteContainer(r.Context(), actor, req.ContainerID); err != nil {
		h.writeError(w, err, "delete container error")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetManifest возвращает манифест комплектации контейнера.
func (h *Handler) GetManifest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req containerIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	m, err := h.service.GetManifest(r.Context(), actor, req.ContainerID)
	if err != nil {
		h.writeError(w, err, "get manifest error")
		return
	}

	h.writeJSON(w, m)
}

type codeRequest struct {
	Code        string `json:"dm_code"`
	ContainerID int64  `json:"container_id"`
}

// BindCode привязывает DM-код к контейнеру и возвращает обновлённый манифест.
func (h *Handler) BindCode(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidCode(req.Code) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	if err := h.service.BindCode(r.Context(), actor, req.Code, req.ContainerID); err != nil {
		h.writeError(w, err, "bind code error")
		return
	}

	m, err := h.service.GetManifest(r.Context(), actor, req.ContainerID)
	if err != nil {
		h.writeError(w, err, "get manifest error")
		return
	}

	h.writeJSON(w, m)
}

// UnbindCode удаляет привязку DM-кода и возвращает обновлённый манифест.
func (h *Handler) UnbindCode(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.UnbindCode(r.Context(), actor, req.Code, req.ContainerID); err != nil {
		h.writeError(w, err, "unbind code error")
		return
	}

	m, err := h.service.GetManifest(r.Context(), actor, req.ContainerID)
	if err != nil {
		h.writeError(w, err, "get manifest error")
		return
	}

	h.writeJSON(w, m)
}

type codeInfoRequest struct {
	Code string `json:"dm_code"`
}

// CodeInfo возвращает сведения о DM-коде и контейнере, в котором он находится.
func (h *Handler) CodeInfo(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}

	var req codeInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	status, err := h.service.GetCodeStatus(r.Context(), req.Code)
	if err != nil {
		h.writeError(w, err, "code info error")
		return
	}

	resp := map[string]any{
		"record": status.Record,
		"packed": status.Packed,
	}
	if status.Container != nil {
		resp["container"] = toContainerResponse(*status.Container)
	}

	h.writeJSON(w, resp)
}
