package launch

import (
	"strings"
	"time"

	"github.com/hitoshi/launchboard/internal/model"
)

// Filter は検索語とステータスフィルタを適用した新しいスライスを返す。
// 条件はAND結合で、元の順序を保持し、collectionは変更しない。
//
// 検索語は名前に対する大文字小文字を区別しない部分一致。
// StatusFilterFutureは打ち上げ地点の現地日付がreferenceDateの日付より
// 厳密に後のものだけを残す（時刻は比較しない）。
func Filter(collection []model.AggregatedLaunch, term string, status model.StatusFilter, referenceDate time.Time) []model.AggregatedLaunch {
	needle := strings.ToLower(term)
	refDay := dayOf(referenceDate)

	filtered := make([]model.AggregatedLaunch, 0, len(collection))
	for _, l := range collection {
		if needle != "" && !strings.Contains(strings.ToLower(l.Name), needle) {
			continue
		}
		if !matchesStatus(l, status, refDay) {
			continue
		}
		filtered = append(filtered, l)
	}
	return filtered
}

func matchesStatus(l model.AggregatedLaunch, status model.StatusFilter, refDay int) bool {
	switch status {
	case model.StatusFilterSuccessful:
		return l.Outcome == model.OutcomeSuccess
	case model.StatusFilterFuture:
		if l.DateLocal.IsZero() {
			return false
		}
		return dayOf(l.DateLocal) > refDay
	default:
		return true
	}
}

// dayOf は時刻自身のオフセットにおける日付を比較可能な整数に変換する。
func dayOf(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}
