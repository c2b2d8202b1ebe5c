package httpapi

import (
	"bytes"
	"encoding/csv"
	"errors"
	"net/http"
	"strings"

	"wisefido-heartbeat/internal/users"
	"wisefido-heartbeat/internal/viewer"

	"go.uber.org/zap"
)

const maxUploadBytes = 32 << 20

// UsersHandler 用户表上传、查询、统计、地图与导出
type UsersHandler struct {
	table  *viewer.UserTable
	logger *zap.Logger
}

func NewUsersHandler(table *viewer.UserTable, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{table: table, logger: logger}
}

// Upload 上传用户表（multipart 字段 file，支持 csv/json/xlsx）
func (h *UsersHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid upload: "+err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("file is required"))
		return
	}
	defer file.Close()

	t, err := users.LoadReader(header.Filename, file)
	if err != nil {
		h.logger.Warn("Rejected user table upload",
			zap.String("filename", header.Filename),
			zap.Error(err),
		)
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	h.table.Replace(t)
	h.logger.Info("User table uploaded",
		zap.String("filename", header.Filename),
		zap.Int("users", t.Len()),
	)
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"filename":      header.Filename,
		"users":         t.Len(),
		"elderly_users": t.ElderlyCount(),
		"columns":       t.Columns,
	}))
}

// List 过滤/排序/搜索后的用户
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.table.Query(parseQuery(r))
	if err != nil {
		h.writeTableError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(rows))
}

// Options 性别/地区/年龄范围选项
func (h *UsersHandler) Options(w http.ResponseWriter, r *http.Request) {
	opts, err := h.table.Options(viewer.ParseLang(r.URL.Query().Get("lang")))
	if err != nil {
		h.writeTableError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(opts))
}

// Stats 统计与图表数据
func (h *UsersHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.table.Stats(parseQuery(r))
	if err != nil {
		h.writeTableError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(st))
}

// Locations 地图标记
func (h *UsersHandler) Locations(w http.ResponseWriter, r *http.Request) {
	loc, err := h.table.Locations(parseQuery(r))
	if err != nil {
		h.writeTableError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(loc))
}

// Export 过滤结果导出为 xlsx
func (h *UsersHandler) Export(w http.ResponseWriter, r *http.Request) {
	rows, err := h.table.Query(parseQuery(r))
	if err != nil {
		h.writeTableError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := users.WriteGridXLSX(&buf, "Users", rows.Columns, rows.Grid()); err != nil {
		h.logger.Error("Failed to export users", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("export failed"))
		return
	}

	attachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "users.xlsx")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Sample 示例用户表
func (h *UsersHandler) Sample(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(viewer.SampleTable()))
}

// SampleCSV 下载示例用户表
func (h *UsersHandler) SampleCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	_ = cw.Write(viewer.SampleColumns)
	_ = cw.WriteAll(viewer.SampleRows())
	if err := cw.Error(); err != nil {
		writeJSON(w, http.StatusInternalServerError, Fail("csv encode failed"))
		return
	}

	attachment(w, "text/csv; charset=utf-8", "sample_user_data.csv")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *UsersHandler) writeTableError(w http.ResponseWriter, err error) {
	if errors.Is(err, viewer.ErrNoTable) {
		writeJSON(w, http.StatusNotFound, Fail("upload a user table first"))
		return
	}
	h.logger.Error("User table query failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
}

// parseQuery ?sort=&order=desc&gender=&region=&min_age=&max_age=&q=&lang=
func parseQuery(r *http.Request) viewer.Query {
	v := r.URL.Query()
	return viewer.Query{
		SortBy:     v.Get("sort"),
		Descending: strings.EqualFold(v.Get("order"), "desc"),
		Gender:     v.Get("gender"),
		Region:     v.Get("region"),
		MinAge:     parseInt(v.Get("min_age"), 0),
		MaxAge:     parseInt(v.Get("max_age"), 0),
		Search:     v.Get("q"),
		Lang:       viewer.ParseLang(v.Get("lang")),
	}
}
