package launch

// DefaultPageSize は表示ウィンドウの初期件数と増分。
const DefaultPageSize = 20

// Window は表示中の件数を管理する。
// Visibleは表示の目標件数で、フィルタ後の件数を超えて増えることはない。
// 初期値とReset後の値はページサイズのままで、件数が少ない場合の切り詰めは
// CountとHasMoreで読み出し時に行う。
type Window struct {
	PageSize int
	Visible  int
}

// NewWindow はページサイズ分を表示する初期状態のWindowを返す。
// pageSizeが0以下の場合はDefaultPageSizeを使用する。
func NewWindow(pageSize int) Window {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Window{PageSize: pageSize, Visible: pageSize}
}

// Advance は表示件数をstep増やし、total件で打ち止めにする。
// 既にtotal件以上を表示している場合、またはstepが0以下の場合は何もしない。
func (w *Window) Advance(step, total int) {
	if step <= 0 || w.Visible >= total {
		return
	}
	// 加算でのオーバーフローを避けるため残り件数と比較する
	if step >= total-w.Visible {
		w.Visible = total
		return
	}
	w.Visible += step
}

// HasMore はtotal件のうち未表示のものが残っているかを返す。
func (w Window) HasMore(total int) bool {
	return w.Visible < total
}

// Count はtotal件のうち実際に表示される件数を返す。
func (w Window) Count(total int) int {
	return max(0, min(w.Visible, total))
}

// Reset は表示件数をページサイズに戻す。
func (w *Window) Reset() {
	w.Visible = w.PageSize
}
