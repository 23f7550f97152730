package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/mlukyanov/packtrack-system/internal/model"
	"github.com/mlukyanov/packtrack-system/internal/report"
	"github.com/mlukyanov/packtrack-system/internal/service"
)

// ExportBulk возвращает манифесты по спецификации фильтра в формате JSON.
func (h *Handler) ExportBulk(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var filter service.ExportFilter
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	manifests, err := h.service.ExportBulk(r.Context(), actor, filter)
	if err != nil {
		h.writeError(w, err, "export bulk error")
		return
	}

	h.writeJSON(w, map[string]any{"manifests": manifests})
}

// ExportBulkDownload формирует книгу упаковочных листов по спецификации
// фильтра и отдаёт её файлом.
func (h *Handler) ExportBulkDownload(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var filter service.ExportFilter
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	manifests, err := h.service.ExportBulk(r.Context(), actor, filter)
	if err != nil {
		h.writeError(w, err, "export bulk error")
		return
	}

	h.writeWorkbook(w, manifests, "containers_export.xlsx")
}

// DownloadManifest отдаёт упаковочный лист одного контейнера файлом.
func (h *Handler) DownloadManifest(w http.ResponseWriter, r *http.Request) {
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

	h.writeWorkbook(w, []model.Manifest{*m}, fmt.Sprintf("%s_kit.xlsx", m.ContainerName))
}

func (h *Handler) writeWorkbook(w http.ResponseWriter, manifests []model.Manifest, filename string) {
	wb, err := report.Workbook(manifests)
	if err != nil {
		h.logger.Error("build workbook error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer wb.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if _, err := wb.WriteTo(w); err != nil {
		h.logger.Error("write workbook error", zap.Error(err))
	}
}
