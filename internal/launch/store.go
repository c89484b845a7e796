// Package launch は打ち上げ一覧の表示状態（集約済みコレクション、読み込み状態、
// 検索条件、表示ウィンドウ）を保持し、フィルタ済み・ページング済みのビューを提供する。
package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/launchboard/internal/aggregate"
	"github.com/hitoshi/launchboard/internal/model"
)

// ErrLoadInProgress は読み込み中に再度Loadが呼ばれた場合に返される。
var ErrLoadInProgress = model.NewLoadInProgressError()

// LaunchFetcher は打ち上げ一覧の取得を抽象化するインターフェース。
type LaunchFetcher interface {
	FetchLaunches(ctx context.Context) ([]model.LaunchRecord, error)
}

// LaunchAggregator は打ち上げとロケット説明の結合を抽象化するインターフェース。
type LaunchAggregator interface {
	Aggregate(ctx context.Context, launches []model.LaunchRecord) (*aggregate.Result, error)
}

// View は表示状態の一貫したスナップショット。
// Loadingがtrueの場合、Errは常にnil。
type View struct {
	Items         []model.AggregatedLaunch
	Loading       bool
	Err           error
	HasMore       bool
	VisibleCount  int
	FilteredTotal int
	Total         int
	Unresolved    int
	SearchTerm    string
	StatusFilter  model.StatusFilter
}

// Option はStoreの生成オプション。
type Option func(*Store)

// WithClock はフィルタの基準日に使用する時刻関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store は表示状態を保持する。全ての操作はゴルーチンセーフ。
// 集約済みコレクションは読み込みサイクルごとに丸ごと置き換え、要素は変更しない。
type Store struct {
	fetcher    LaunchFetcher
	aggregator LaunchAggregator
	logger     *slog.Logger
	now        func() time.Time

	mu         sync.RWMutex
	collection []model.AggregatedLaunch
	unresolved int
	loading    bool
	err        error
	window     Window
	term       string
	status     model.StatusFilter
}

// NewStore は空の表示状態を持つStoreを生成する。
func NewStore(fetcher LaunchFetcher, aggregator LaunchAggregator, logger *slog.Logger, pageSize int, opts ...Option) *Store {
	s := &Store{
		fetcher:    fetcher,
		aggregator: aggregator,
		logger:     logger,
		now:        time.Now,
		collection: []model.AggregatedLaunch{},
		window:     NewWindow(pageSize),
		status:     model.StatusFilterAll,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PageSize は表示ウィンドウのページサイズを返す。
func (s *Store) PageSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window.PageSize
}

// Load は打ち上げ一覧の取得と集約を1サイクル実行する。
// 成功時はコレクションを置き換えて表示ウィンドウを初期化し、
// 失敗時はエラーを保持してコレクションを空にする。
// 結果に関わらず完了時に読み込み中状態を解除する。
// 読み込み中に呼ばれた場合は状態を変更せずErrLoadInProgressを返す。
func (s *Store) Load(ctx context.Context) (err error) {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return ErrLoadInProgress
	}
	s.loading = true
	s.err = nil
	s.mu.Unlock()

	start := time.Now()
	var result *aggregate.Result

	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.loading = false
		s.window.Reset()
		if err != nil || result == nil {
			if err == nil {
				err = errors.New("load aborted")
			}
			s.err = err
			s.collection = []model.AggregatedLaunch{}
			s.unresolved = 0
			return
		}
		s.collection = result.Launches
		s.unresolved = result.Unresolved
	}()

	launches, err := s.fetcher.FetchLaunches(ctx)
	if err != nil {
		s.logger.Error("打ち上げ一覧の読み込みに失敗しました",
			slog.String("error_kind", string(model.KindOf(err))),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("load launches: %w", err)
	}

	result, err = s.aggregator.Aggregate(ctx, launches)
	if err != nil {
		s.logger.Error("打ち上げ一覧の集約に失敗しました",
			slog.String("error_kind", string(model.KindOf(err))),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("load launches: %w", err)
	}

	s.logger.Info("打ち上げ一覧を読み込みました",
		slog.String("cycle_id", result.CycleID),
		slog.Int("launch_count", len(result.Launches)),
		slog.Int("unresolved", result.Unresolved),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// SetSearchTerm は検索語を設定し、表示ウィンドウを初期化する。再取得は行わない。
func (s *Store) SetSearchTerm(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.term = term
	s.window.Reset()
}

// SetStatusFilter はステータスフィルタを設定し、表示ウィンドウを初期化する。再取得は行わない。
func (s *Store) SetStatusFilter(status model.StatusFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.window.Reset()
}

// AdvanceVisibleWindow は表示件数をstep増やす。フィルタ後の件数を超えることはない。
func (s *Store) AdvanceVisibleWindow(step int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window.Advance(step, len(s.filteredLocked()))
}

// VisibleSlice はフィルタ後のコレクションの先頭から表示件数分を返す。
func (s *Store) VisibleSlice() []model.AggregatedLaunch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	filtered := s.filteredLocked()
	return filtered[:s.window.Count(len(filtered))]
}

// HasMore はフィルタ後のコレクションに未表示の要素が残っているかを返す。
func (s *Store) HasMore() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window.HasMore(len(s.filteredLocked()))
}

// Loading は読み込み中かどうかを返す。
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err は直近の読み込みのエラーを返す。
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Snapshot は1回のロックで取得した表示状態を返す。
func (s *Store) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := s.filteredLocked()
	count := s.window.Count(len(filtered))
	return View{
		Items:         filtered[:count],
		Loading:       s.loading,
		Err:           s.err,
		HasMore:       s.window.HasMore(len(filtered)),
		VisibleCount:  count,
		FilteredTotal: len(filtered),
		Total:         len(s.collection),
		Unresolved:    s.unresolved,
		SearchTerm:    s.term,
		StatusFilter:  s.status,
	}
}

// filteredLocked は現在の条件でフィルタしたコレクションを返す。呼び出し元がロックを保持すること。
func (s *Store) filteredLocked() []model.AggregatedLaunch {
	return Filter(s.collection, s.term, s.status, s.now())
}
