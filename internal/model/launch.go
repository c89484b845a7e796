// Package model はドメインモデルを定義する。
package model

import "time"

// Outcome は打ち上げ結果の三値状態を表す。
// 結果が未確定（APIのsuccessがnullまたは欠落）の場合はOutcomeUnknownとし、
// 失敗として扱ってはならない。
type Outcome int

const (
	// OutcomeUnknown は結果不明（未実施の打ち上げなど）。
	OutcomeUnknown Outcome = iota
	// OutcomeSuccess は打ち上げ成功。
	OutcomeSuccess
	// OutcomeFailure は打ち上げ失敗。
	OutcomeFailure
)

// OutcomeFromPointer はAPIレスポンスのsuccessフィールドをOutcomeに変換する。
func OutcomeFromPointer(success *bool) Outcome {
	if success == nil {
		return OutcomeUnknown
	}
	if *success {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// String はOutcomeのAPI表現を返す。
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Label は画面表示用のステータス文言を返す。
func (o Outcome) Label() string {
	switch o {
	case OutcomeSuccess:
		return "Successful"
	case OutcomeFailure:
		return "Failed"
	default:
		return "Unknown"
	}
}

// LaunchRecord は打ち上げ一覧APIから取得した1件の打ち上げを表す。
type LaunchRecord struct {
	ID        string
	Name      string
	Details   string // 未設定の場合は空文字
	Outcome   Outcome
	DateLocal time.Time // 打ち上げ地点のUTCオフセットを保持する
	RocketID  string
	PatchURL  string // ミッションパッチ画像（小）のURL。未設定の場合は空文字
}

// RocketRecord はロケット詳細APIから取得したロケット情報を表す。
type RocketRecord struct {
	ID          string
	Description string
}

// AggregatedLaunch は打ち上げとロケット説明を結合したビューモデル。
// Descriptionはロケット情報を解決できなかった場合にnilとなる。
// 生成後は変更しない。
type AggregatedLaunch struct {
	LaunchRecord
	Description *string
}

// HasDescription はロケット説明が解決済みかどうかを返す。
func (a AggregatedLaunch) HasDescription() bool {
	return a.Description != nil
}

// StatusFilter は打ち上げ一覧のステータスフィルタ種別を表す。
type StatusFilter string

const (
	// StatusFilterAll は全件を表示するフィルタ。
	StatusFilterAll StatusFilter = "all"
	// StatusFilterSuccessful は成功した打ち上げのみを表示するフィルタ。
	StatusFilterSuccessful StatusFilter = "successful"
	// StatusFilterFuture は基準日より後の打ち上げのみを表示するフィルタ。
	StatusFilterFuture StatusFilter = "future"
)

// ParseStatusFilter は文字列をStatusFilterに変換する。
// 空文字はStatusFilterAllとして扱い、未知の値はINVALID_FILTERエラーを返す。
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch StatusFilter(s) {
	case "", StatusFilterAll:
		return StatusFilterAll, nil
	case StatusFilterSuccessful:
		return StatusFilterSuccessful, nil
	case StatusFilterFuture:
		return StatusFilterFuture, nil
	default:
		return "", NewInvalidFilterError(s)
	}
}
