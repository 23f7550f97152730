package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mlukyanov/packtrack-system/internal/middleware"
	"github.com/mlukyanov/packtrack-system/internal/model"
	"github.com/mlukyanov/packtrack-system/internal/repository"
	"github.com/mlukyanov/packtrack-system/internal/service"
)

type stubService struct {
	registerUserID int64
	registerErr    error

	authUser *model.User
	authErr  error

	createContainerID  int64
	createContainerErr error

	containersResp []model.Container
	containersErr  error

	renameErr error

	confirmErr error

	deleteErr error

	bindErr error

	unbindErr error

	manifestResp *model.Manifest
	manifestErr  error

	codeStatusResp *service.CodeStatus
	codeStatusErr  error

	exportResp []model.Manifest
	exportErr  error
}

func (s *stubService) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	return s.registerUserID, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, login, password string) (*model.User, error) {
	return s.authUser, s.authErr
}

func (s *stubService) CreateContainer(ctx context.Context, actor model.Actor, name string) (int64, error) {
	return s.createContainerID, s.createContainerErr
}

func (s *stubService) ListContainers(ctx context.Context, actor model.Actor, statuses []model.ContainerStatus) ([]model.Container, error) {
	return s.containersResp, s.containersErr
}

func (s *stubService) RenameContainer(ctx context.Context, actor model.Actor, id int64, newName string) error {
	return s.renameErr
}

func (s *stubService) ConfirmPacked(ctx context.Context, actor model.Actor, id int64) error {
	return s.confirmErr
}

func (s *stubService) DeleteContainer(ctx context.Context, actor model.Actor, id int64) error {
	return s.deleteErr
}

func (s *stubService) BindCode(ctx context.Context, actor model.Actor, code string, containerID int64) error {
	return s.bindErr
}

func (s *stubService) UnbindCode(ctx context.Context, actor model.Actor, code string, containerID int64) error {
	return s.unbindErr
}

func (s *stubService) GetManifest(ctx context.Context, actor model.Actor, containerID int64) (*model.Manifest, error) {
	return s.manifestResp, s.manifestErr
}

func (s *stubService) GetCodeStatus(ctx context.Context, code string) (*service.CodeStatus, error) {
	return s.codeStatusResp, s.codeStatusErr
}

func (s *stubService) ExportBulk(ctx context.Context, actor model.Actor, f service.ExportFilter) ([]model.Manifest, error) {
	return s.exportResp, s.exportErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

// authedRequest прогоняет запрос через auth middleware с валидным токеном кладовщика.
func authedRequest(t *testing.T, h *Handler, handlerFunc http.HandlerFunc, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	access, _, err := h.authMiddleware.IssueTokens(&model.User{
		ID:    1,
		Login: "user",
		Role:  model.RoleWarehouseman,
	})
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+access)

	rec := httptest.NewRecorder()
	h.authMiddleware.Middleware(handlerFunc).ServeHTTP(rec, req)
	return rec
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{registerUserID: 42}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Login: "user", Password: "pass"})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusOK)
	}
}

func TestRegister_DuplicateLogin(t *testing.T) {
	svc := &stubService{registerErr: repository.ErrUserExists}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Login: "user", Password: "pass"})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestLogin_ReturnsTokenPair(t *testing.T) {
	svc := &stubService{
		authUser: &model.User{ID: 1, Login: "user", Role: model.RoleWarehouseman},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Login: "user", Password: "pass"})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" || resp.TokenType != "bearer" {
		t.Fatalf("incomplete token pair: %+v", resp)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := &stubService{authErr: service.ErrInvalidCredentials}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Login: "user", Password: "wrong"})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestCreateContainer_Success(t *testing.T) {
	svc := &stubService{createContainerID: 10}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(createContainerRequest{ContainerName: "PALLET-1"})

	rec := authedRequest(t, h, h.CreateContainer, "/api/container/create", body)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp createContainerResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ContainerID != 10 || resp.ContainerName != "PALLET-1" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestCreateContainer_Unauthorized(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(createContainerRequest{ContainerName: "PALLET-1"})

	req := httptest.NewRequest(http.MethodPost, "/api/container/create", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.authMiddleware.Middleware(http.HandlerFunc(h.CreateContainer)).ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestCreateContainer_DuplicateName(t *testing.T) {
	svc := &stubService{createContainerErr: repository.ErrContainerExists}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(createContainerRequest{ContainerName: "PALLET-1"})

	rec := authedRequest(t, h, h.CreateContainer, "/api/container/create", body)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestListContainers_FormatsPackedDate(t *testing.T) {
	packedAt := mustParseTime(t, "2026-02-10 15:30:00")
	svc := &stubService{
		containersResp: []model.Container{
			{ID: 1, Name: "A", Status: model.StatusPacked, OwnerID: 1, PackedAt: &packedAt},
			{ID: 2, Name: "B", Status: model.StatusNew, OwnerID: 1},
		},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(listContainersRequest{})

	rec := authedRequest(t, h, h.ListContainers, "/api/container/get", body)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp struct {
		Containers []containerResponse `json:"containers"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Containers) != 2 {
		t.Fatalf("containers = %d, want 2", len(resp.Containers))
	}
	if resp.Containers[0].PackedDate != "2026-02-10 15:30:00" {
		t.Fatalf("packed_date = %q", resp.Containers[0].PackedDate)
	}
	if resp.Containers[1].PackedDate != "" {
		t.Fatalf("unpacked container must have empty packed_date, got %q", resp.Containers[1].PackedDate)
	}
}

func TestBindCode_RejectsMalformedCode(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(codeRequest{Code: "garbage", ContainerID: 1})

	rec := authedRequest(t, h, h.BindCode, "/api/dm/add", body)

	if rec.Result().StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestBindCode_ConflictWhenAlreadyBound(t *testing.T) {
	svc := &stubService{
		bindErr: &repository.CodeBoundError{Code: "c", Holder: "OTHER"},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(codeRequest{Code: "010460000000001521ABC123", ContainerID: 1})

	rec := authedRequest(t, h, h.BindCode, "/api/dm/add", body)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestBindCode_ReturnsManifest(t *testing.T) {
	svc := &stubService{
		manifestResp: &model.Manifest{
			ContainerID:   1,
			ContainerName: "PALLET-1",
			Status:        model.StatusPacking,
			Groups: []model.ManifestGroup{
				{Article: "ART-1", Codes: []model.CodeRecord{{Code: "c1", Article: "ART-1"}}, Count: 1},
			},
		},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(codeRequest{Code: "010460000000001521ABC123", ContainerID: 1})

	rec := authedRequest(t, h, h.BindCode, "/api/dm/add", body)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var m model.Manifest
	if err := json.NewDecoder(res.Body).Decode(&m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if len(m.Groups) != 1 || m.Groups[0].Count != 1 {
		t.Fatalf("manifest = %+v", m)
	}
}

func TestUnbindCode_NotBound(t *testing.T) {
	svc := &stubService{unbindErr: repository.ErrBindingNotFound}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(codeRequest{Code: "010460000000001521ABC123", ContainerID: 1})

	rec := authedRequest(t, h, h.UnbindCode, "/api/dm/delete", body)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestDeleteContainer_StateConflicts(t *testing.T) {
	tests := []struct {
		name    string
		svcErr  error
		wantRes int
	}{
		{name: "not found", svcErr: repository.ErrContainerNotFound, wantRes: http.StatusNotFound},
		{name: "not new", svcErr: repository.ErrContainerNotNew, wantRes: http.StatusConflict},
		{name: "not empty", svcErr: repository.ErrContainerNotEmpty, wantRes: http.StatusConflict},
		{name: "forbidden", svcErr: service.ErrForbidden, wantRes: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{deleteErr: tt.svcErr})

			body, _ := json.Marshal(containerIDRequest{ContainerID: 1})

			rec := authedRequest(t, h, h.DeleteContainer, "/api/container/delete", body)

			if rec.Result().StatusCode != tt.wantRes {
				t.Fatalf("status = %d, want %d", rec.Result().StatusCode, tt.wantRes)
			}
		})
	}
}

func TestExportBulk_BadFilter(t *testing.T) {
	svc := &stubService{exportErr: service.ErrBadFilter}
	h := newTestHandler(t, svc)

	rec := authedRequest(t, h, h.ExportBulk, "/api/container/export", []byte(`{}`))

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestExportBulk_ForbiddenContainers(t *testing.T) {
	svc := &stubService{
		exportErr: &service.ForbiddenContainersError{IDs: []int64{5}},
	}
	h := newTestHandler(t, svc)

	rec := authedRequest(t, h, h.ExportBulk, "/api/container/export", []byte(`{"container_ids":[5]}`))

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}
}

func TestDownloadManifest_SetsAttachmentHeaders(t *testing.T) {
	svc := &stubService{
		manifestResp: &model.Manifest{
			ContainerID:   1,
			ContainerName: "PALLET-1",
			Status:        model.StatusPacking,
			Groups:        []model.ManifestGroup{},
		},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(containerIDRequest{ContainerID: 1})

	rec := authedRequest(t, h, h.DownloadManifest, "/api/container/download", body)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("content-type = %q", ct)
	}
	if cd := res.Header.Get("Content-Disposition"); cd != `attachment; filename="PALLET-1_kit.xlsx"` {
		t.Fatalf("content-disposition = %q", cd)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("workbook body is empty")
	}
}

func TestCodeInfo_NotFound(t *testing.T) {
	svc := &stubService{codeStatusErr: service.ErrCodeUnknown}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(codeInfoRequest{Code: "010460000000001521ABC123"})

	rec := authedRequest(t, h, h.CodeInfo, "/api/dm/info", body)

	if rec.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNotFound)
	}
}

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()

	ts, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return ts
}
