package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/launchboard/internal/middleware"
	"github.com/hitoshi/launchboard/internal/model"
)

// handleServiceError はエラーを統一フォーマットのHTTPレスポンスに変換する。
// 上流APIのFetchErrorは分類に応じたAPIErrorに変換する。
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, statusForAPIError(apiErr), apiErr)
		return
	}

	switch model.KindOf(err) {
	case model.ErrorKindParse:
		apiErr = model.NewParseFailedError(err.Error())
		middleware.WriteErrorResponse(w, statusForAPIError(apiErr), apiErr)
		return
	case model.ErrorKindNetwork, model.ErrorKindReference:
		apiErr = model.NewFetchFailedError(err.Error())
		middleware.WriteErrorResponse(w, statusForAPIError(apiErr), apiErr)
		return
	}

	logger.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// statusForAPIError はAPIErrorコードからHTTPステータスコードにマッピングする。
func statusForAPIError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidFilter, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeLoadInProgress:
		return http.StatusConflict
	case model.ErrCodeFetchFailed, model.ErrCodeParseFailed:
		return http.StatusBadGateway
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
