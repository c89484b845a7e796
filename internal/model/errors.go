package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, launch, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidFilter  = "INVALID_FILTER"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeLoadInProgress = "LOAD_IN_PROGRESS"
	ErrCodeFetchFailed    = "FETCH_FAILED"
	ErrCodeParseFailed    = "PARSE_FAILED"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// NewInvalidFilterError は無効なフィルタエラーを生成する。
func NewInvalidFilterError(filter string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("無効なフィルタです: %s", filter),
		Category: "validation",
		Action:   "フィルタには all、successful、future のいずれかを指定してください。",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewLoadInProgressError は読み込み処理の多重実行エラーを生成する。
func NewLoadInProgressError() *APIError {
	return &APIError{
		Code:     ErrCodeLoadInProgress,
		Message:  "打ち上げ一覧を読み込み中です。",
		Category: "launch",
		Action:   "読み込みが完了してから再度お試しください。",
	}
}

// NewFetchFailedError は上流APIの取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("打ち上げ情報の取得に失敗しました: %s", reason),
		Category: "launch",
		Action:   "しばらく待ってから再読み込みしてください。",
	}
}

// NewParseFailedError は上流APIのレスポンス解析失敗エラーを生成する。
func NewParseFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  fmt.Sprintf("打ち上げ情報の解析に失敗しました: %s", reason),
		Category: "launch",
		Action:   "しばらく待ってから再読み込みしてください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数が経過してから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// ErrorKind は上流APIアクセス時のエラー分類。
type ErrorKind string

const (
	// ErrorKindNetwork は通信失敗・タイムアウト・異常ステータス。
	ErrorKindNetwork ErrorKind = "network"
	// ErrorKindParse はレスポンスボディの解析失敗。
	ErrorKindParse ErrorKind = "parse"
	// ErrorKindReference はロケットIDに対応するレコードが存在しない。
	ErrorKindReference ErrorKind = "reference"
)

// 分類ごとのセンチネルエラー。errors.Isで判定する。
var (
	ErrNetwork   = errors.New("network error")
	ErrParse     = errors.New("parse error")
	ErrReference = errors.New("reference error")
)

// FetchError は上流APIアクセスの失敗を表す。
// errors.Isで分類センチネルと原因エラーの両方に一致する。
type FetchError struct {
	Kind ErrorKind
	Op   string // 例: "fetch launches", "fetch rocket 5e9d0d95eda69955f709d1eb"
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap は分類センチネルと原因エラーを返す。
func (e *FetchError) Unwrap() []error {
	errs := []error{e.kindSentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *FetchError) kindSentinel() error {
	switch e.Kind {
	case ErrorKindParse:
		return ErrParse
	case ErrorKindReference:
		return ErrReference
	default:
		return ErrNetwork
	}
}

// NewNetworkError は通信系のFetchErrorを生成する。
func NewNetworkError(op string, err error) *FetchError {
	return &FetchError{Kind: ErrorKindNetwork, Op: op, Err: err}
}

// NewParseError は解析系のFetchErrorを生成する。
func NewParseError(op string, err error) *FetchError {
	return &FetchError{Kind: ErrorKindParse, Op: op, Err: err}
}

// NewReferenceError は参照解決失敗のFetchErrorを生成する。
func NewReferenceError(op string, err error) *FetchError {
	return &FetchError{Kind: ErrorKindReference, Op: op, Err: err}
}

// KindOf はエラーの分類を返す。FetchErrorでない場合は空文字を返す。
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
