package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/launchboard/internal/launch"
	"github.com/hitoshi/launchboard/internal/model"
)

// maxRequestBodySize はリクエストボディの上限（4KiB）。
const maxRequestBodySize = 4 << 10

// LaunchStore は打ち上げハンドラーが必要とする表示状態のインターフェース。
type LaunchStore interface {
	Snapshot() launch.View
	SetSearchTerm(term string)
	SetStatusFilter(status model.StatusFilter)
	AdvanceVisibleWindow(step int)
	PageSize() int
	Load(ctx context.Context) error
}

// LaunchHandler は打ち上げ一覧のHTTPハンドラー。
type LaunchHandler struct {
	store  LaunchStore
	logger *slog.Logger
}

// NewLaunchHandler はLaunchHandlerを生成する。
func NewLaunchHandler(store LaunchStore, logger *slog.Logger) *LaunchHandler {
	return &LaunchHandler{store: store, logger: logger}
}

// --- リクエスト/レスポンス型 ---

type launchResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Details     string  `json:"details,omitempty"`
	Outcome     string  `json:"outcome"`
	Status      string  `json:"status"`
	DateLocal   string  `json:"date_local,omitempty"`
	RocketID    string  `json:"rocket"`
	PatchURL    string  `json:"patch_url,omitempty"`
	Description *string `json:"description"`
}

type loadErrorResponse struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

type launchListResponse struct {
	Items         []launchResponse   `json:"items"`
	Loading       bool               `json:"loading"`
	Error         *loadErrorResponse `json:"error"`
	HasMore       bool               `json:"has_more"`
	VisibleCount  int                `json:"visible_count"`
	FilteredTotal int                `json:"filtered_total"`
	Total         int                `json:"total"`
	Unresolved    int                `json:"unresolved"`
	SearchTerm    string             `json:"search_term"`
	StatusFilter  string             `json:"status_filter"`
}

type criteriaRequest struct {
	SearchTerm   *string `json:"search_term"`
	StatusFilter *string `json:"status_filter"`
}

type moreRequest struct {
	Step *int `json:"step"`
}

// List は現在の表示状態を返す。
// GET /api/launches
func (h *LaunchHandler) List(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, http.StatusOK)
}

// UpdateCriteria は検索語とステータスフィルタを更新する。
// 指定されたフィールドのみ更新し、表示ウィンドウは初期化される。
// PUT /api/launches/criteria
func (h *LaunchHandler) UpdateCriteria(w http.ResponseWriter, r *http.Request) {
	var req criteriaRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	if req.SearchTerm == nil && req.StatusFilter == nil {
		handleServiceError(w, h.logger, model.NewInvalidRequestError("search_termまたはstatus_filterのいずれかを指定してください。"))
		return
	}

	// 両方を検証してから反映する
	var status model.StatusFilter
	if req.StatusFilter != nil {
		parsed, err := model.ParseStatusFilter(*req.StatusFilter)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		status = parsed
	}

	if req.SearchTerm != nil {
		h.store.SetSearchTerm(*req.SearchTerm)
	}
	if req.StatusFilter != nil {
		h.store.SetStatusFilter(status)
	}

	h.writeView(w, http.StatusOK)
}

// More は表示件数を増やす。stepを省略した場合はページサイズ分増やす。
// POST /api/launches/more
func (h *LaunchHandler) More(w http.ResponseWriter, r *http.Request) {
	var req moreRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	step := h.store.PageSize()
	if req.Step != nil {
		if *req.Step <= 0 {
			handleServiceError(w, h.logger, model.NewInvalidRequestError("stepには1以上の整数を指定してください。"))
			return
		}
		step = *req.Step
	}

	h.store.AdvanceVisibleWindow(step)
	h.writeView(w, http.StatusOK)
}

// Reload は打ち上げ一覧を再読み込みする。読み込み中の場合は409を返す。
// クライアントの切断で読み込みが中断されないよう、リクエストのキャンセルは伝播しない。
// POST /api/launches/reload
func (h *LaunchHandler) Reload(w http.ResponseWriter, r *http.Request) {
	err := h.store.Load(context.WithoutCancel(r.Context()))
	if errors.Is(err, launch.ErrLoadInProgress) {
		handleServiceError(w, h.logger, err)
		return
	}
	if err != nil {
		// 失敗は表示状態のerrorとして返す
		h.writeView(w, http.StatusBadGateway)
		return
	}
	h.writeView(w, http.StatusOK)
}

// writeView はレスポンスを組み立ててからステータスを書き込む。
func (h *LaunchHandler) writeView(w http.ResponseWriter, status int) {
	resp := toListResponse(h.store.Snapshot())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Warn("レスポンスの書き込みに失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// EncodeView は表示状態をAPIと同じJSON形式でwに書き込む。
func EncodeView(w io.Writer, v launch.View) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toListResponse(v))
}

func toListResponse(v launch.View) launchListResponse {
	resp := launchListResponse{
		Items:         make([]launchResponse, len(v.Items)),
		Loading:       v.Loading,
		HasMore:       v.HasMore,
		VisibleCount:  v.VisibleCount,
		FilteredTotal: v.FilteredTotal,
		Total:         v.Total,
		Unresolved:    v.Unresolved,
		SearchTerm:    v.SearchTerm,
		StatusFilter:  string(v.StatusFilter),
	}
	for i, l := range v.Items {
		resp.Items[i] = toLaunchResponse(l)
	}
	if v.Err != nil {
		resp.Error = &loadErrorResponse{
			Kind:    string(model.KindOf(v.Err)),
			Message: v.Err.Error(),
		}
	}
	return resp
}

func toLaunchResponse(l model.AggregatedLaunch) launchResponse {
	resp := launchResponse{
		ID:          l.ID,
		Name:        l.Name,
		Details:     l.Details,
		Outcome:     l.Outcome.String(),
		Status:      l.Outcome.Label(),
		RocketID:    l.RocketID,
		PatchURL:    l.PatchURL,
		Description: l.Description,
	}
	if !l.DateLocal.IsZero() {
		resp.DateLocal = l.DateLocal.Format(time.RFC3339)
	}
	return resp
}

// decodeBody はJSONリクエストボディをデコードする。
// allowEmptyがtrueの場合、空ボディはゼロ値として扱う。
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return model.NewInvalidRequestError("リクエストボディの解析に失敗しました。")
	}
	return nil
}
