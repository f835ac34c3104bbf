package ticker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"btcfee/internal/application/port"
	"btcfee/internal/domain"
	"btcfee/internal/infrastructure/metrics"

	"github.com/rs/zerolog/log"
)

const (
	DefaultReconnectDelay = 5 * time.Second
	DefaultPollInterval   = 30 * time.Second

	defaultPollTimeout = 10 * time.Second
	repoWriteTimeout   = 2 * time.Second

	parseErrorText = "failed to parse ticker message"
)

var (
	ErrFeedStarted = errors.New("price feed already started")
	ErrFeedClosed  = errors.New("price feed closed")
	ErrNoPrice     = errors.New("no price received yet")
	errBadPollLTP  = errors.New("poll returned non-positive ltp")
)

// FeedDeps PriceFeed 的依赖与参数
type FeedDeps struct {
	Dialer  port.StreamDialer
	Fetcher port.TickerFetcher // nil disables polling
	Decode  port.TickerDecoder
	Channel string

	Exchange string
	Product  string

	ReconnectDelay time.Duration
	PollInterval   time.Duration
	PollTimeout    time.Duration

	Repo     port.Repository
	OnUpdate func(Snapshot) // called from the owner goroutine only
}

type eventKind int

const (
	evOpened eventKind = iota
	evMessage
	evClosed
	evPolled
)

type event struct {
	kind eventKind
	conn port.StreamConn
	data []byte
	ltp  float64
	err  error
	at   time.Time
}

// Feed 维护一个尽力而为的实时价格：主路径是推送订阅，断线后固定延迟重连；
// 另有固定间隔的 REST 轮询作为冗余来源。
//
// 状态机只在 run goroutine 中推进，推送读取和轮询都在辅助 goroutine 中执行，
// 只通过 events 通道投递事件。Close 返回后不会再有任何回调或状态写入。
type Feed struct {
	deps   FeedDeps
	st     *State
	events chan event

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	closed  bool
	wg      sync.WaitGroup
}

func NewFeed(deps FeedDeps) *Feed {
	if deps.ReconnectDelay <= 0 {
		deps.ReconnectDelay = DefaultReconnectDelay
	}
	if deps.PollInterval < 0 {
		deps.PollInterval = 0
	}
	if deps.PollTimeout <= 0 {
		deps.PollTimeout = defaultPollTimeout
	}
	if deps.Exchange == "" {
		deps.Exchange = domain.ExchangeBitflyer
	}
	if deps.Product == "" {
		deps.Product = domain.ProductBTCJPY
	}
	if deps.Repo == nil {
		deps.Repo = NewNoopRepo()
	}
	return &Feed{
		deps: deps,
		st:   NewState(),
		// unbuffered: an event is either handled by run or dropped on teardown
		events: make(chan event),
	}
}

func (f *Feed) Name() string { return f.deps.Exchange }

// Snapshot 当前价格与连接状态的副本
func (f *Feed) Snapshot() Snapshot { return f.st.Snapshot() }

// FetchLTP 返回缓存中的最新成交价，使 Feed 可以作为 port.TickerFetcher 使用
func (f *Feed) FetchLTP(context.Context) (float64, error) {
	snap := f.st.Snapshot()
	if !snap.HasPrice {
		return 0, ErrNoPrice
	}
	return snap.Sample.LTP, nil
}

// Start 打开推送连接并启动轮询。每个 Feed 只能启动一次。
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrFeedClosed
	}
	if f.started {
		return ErrFeedStarted
	}
	if f.deps.Dialer == nil || f.deps.Decode == nil {
		return errors.New("price feed: dialer and decoder are required")
	}

	ctx, f.cancel = context.WithCancel(ctx)
	f.started = true

	f.wg.Add(1)
	go f.run(ctx)

	log.Info().
		Str("feed", f.Name()).
		Str("channel", f.deps.Channel).
		Dur("reconnect_delay", f.deps.ReconnectDelay).
		Dur("poll_interval", f.deps.PollInterval).
		Msg("price feed started")
	return nil
}

// Close 停止两个定时器、关闭推送连接，并等待所有 goroutine 退出
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	cancel := f.cancel
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	f.wg.Wait()
	log.Info().Str("feed", f.Name()).Msg("price feed stopped")
	return nil
}

// Run 启动并阻塞直到 ctx 结束
func (f *Feed) Run(ctx context.Context) error {
	if err := f.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	_ = f.Close()
	return ctx.Err()
}

func (f *Feed) run(ctx context.Context) {
	defer f.wg.Done()

	var (
		conn      port.StreamConn
		reconnect *time.Timer
		polling   bool
		pollC     <-chan time.Time
	)
	defer func() {
		if reconnect != nil {
			reconnect.Stop()
		}
		if conn != nil {
			_ = conn.Close()
		}
	}()

	if f.deps.Fetcher != nil && f.deps.PollInterval > 0 {
		pollTicker := time.NewTicker(f.deps.PollInterval)
		defer pollTicker.Stop()
		pollC = pollTicker.C

		polling = true
		f.poll(ctx)
	}

	f.notify()
	f.connect(ctx)

	for {
		var reconnectC <-chan time.Time
		if reconnect != nil {
			reconnectC = reconnect.C
		}

		select {
		case <-ctx.Done():
			return

		case <-reconnectC:
			reconnect = nil
			metrics.FeedReconnectsTotal.Inc()
			f.setConn(domain.StateConnecting)
			f.connect(ctx)

		case <-pollC:
			// 上一次轮询尚未返回时跳过
			if !polling {
				polling = true
				f.poll(ctx)
			}

		case ev := <-f.events:
			if ev.kind == evPolled {
				polling = false
				f.handlePoll(ctx, ev)
				continue
			}
			// 同一时刻只有一条推送连接：重连定时器只在当前连接的 evClosed 之后启动

			switch ev.kind {
			case evOpened:
				conn = ev.conn
				log.Info().Str("feed", f.Name()).Msg("ws connected")
				f.st.ClearError()
				if !f.setConn(domain.StateLive) {
					f.notify()
				}

			case evMessage:
				f.handleMessage(ctx, ev)

			case evClosed:
				if conn != nil {
					_ = conn.Close()
					conn = nil
				}
				log.Warn().Str("feed", f.Name()).Err(ev.err).
					Dur("retry_in", f.deps.ReconnectDelay).
					Msg("ws disconnected, reconnecting")
				f.setConn(domain.StateDisconnected)
				if reconnect == nil {
					reconnect = time.NewTimer(f.deps.ReconnectDelay)
				}
			}
		}
	}
}

// connect 在独立 goroutine 中拨号、订阅并读取消息
func (f *Feed) connect(ctx context.Context) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.stream(ctx)
	}()
}

func (f *Feed) stream(ctx context.Context) {
	log.Warn().Str("feed", f.Name()).Msg("ws connecting")

	conn, err := f.deps.Dialer.Dial(ctx)
	if err != nil {
		f.send(ctx, event{kind: evClosed, err: fmt.Errorf("dial: %w", err)})
		return
	}
	if err := conn.Subscribe(f.deps.Channel); err != nil {
		_ = conn.Close()
		f.send(ctx, event{kind: evClosed, err: fmt.Errorf("subscribe %s: %w", f.deps.Channel, err)})
		return
	}
	if !f.send(ctx, event{kind: evOpened, conn: conn}) {
		_ = conn.Close()
		return
	}

	for {
		b, err := conn.ReadMessage()
		if err != nil {
			f.send(ctx, event{kind: evClosed, err: err})
			return
		}
		if !f.send(ctx, event{kind: evMessage, data: b, at: time.Now()}) {
			return
		}
	}
}

func (f *Feed) poll(ctx context.Context) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		pctx, cancel := context.WithTimeout(ctx, f.deps.PollTimeout)
		ltp, err := f.deps.Fetcher.FetchLTP(pctx)
		cancel()
		if err == nil && !(ltp > 0) {
			err = errBadPollLTP
		}
		f.send(ctx, event{kind: evPolled, ltp: ltp, err: err, at: time.Now()})
	}()
}

func (f *Feed) send(ctx context.Context, ev event) bool {
	select {
	case f.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (f *Feed) handleMessage(ctx context.Context, ev event) {
	ltp, ok, err := f.deps.Decode(ev.data)
	if err != nil {
		metrics.FeedParseErrorsTotal.Inc()
		log.Error().Str("feed", f.Name()).Err(err).Msg("json unmarshal failed")
		f.st.Fail(parseErrorText)
		metrics.FeedState.Set(float64(domain.StateError))
		f.notify()
		return
	}
	if !ok || !(ltp > 0) {
		return
	}
	if f.st.Conn() == domain.StateError {
		f.setConn(domain.StateLive)
	}
	f.apply(ctx, domain.PriceSample{LTP: ltp, ObservedAt: ev.at, Source: domain.SourceStream})
}

// 轮询失败静默吞掉，不影响连接状态
func (f *Feed) handlePoll(ctx context.Context, ev event) {
	if ev.err != nil {
		metrics.FeedPollErrorsTotal.Inc()
		log.Debug().Str("feed", f.Name()).Err(ev.err).Msg("ticker poll failed")
		return
	}
	f.apply(ctx, domain.PriceSample{LTP: ev.ltp, ObservedAt: ev.at, Source: domain.SourcePoll})
}

func (f *Feed) apply(ctx context.Context, sample domain.PriceSample) {
	changed := f.st.Apply(sample)

	metrics.FeedUpdatesTotal.WithLabelValues(sample.Source.String()).Inc()
	metrics.LastTradePrice.Set(sample.LTP)

	rctx, cancel := context.WithTimeout(ctx, repoWriteTimeout)
	err := f.deps.Repo.UpsertLatestPrice(rctx, f.deps.Exchange, f.deps.Product, sample.LTP, sample.Source.String(), sample.ObservedAt.UnixMilli())
	cancel()
	if err != nil {
		log.Warn().Str("feed", f.Name()).Err(err).Msg("mirror latest price failed")
	}

	if changed {
		f.notify()
	}
}

func (f *Feed) setConn(st domain.ConnectionState) bool {
	if !f.st.SetConn(st) {
		return false
	}
	metrics.FeedState.Set(float64(st))
	f.notify()
	return true
}

var _ port.TickerFetcher = (*Feed)(nil)

func (f *Feed) notify() {
	if f.deps.OnUpdate != nil {
		f.deps.OnUpdate(f.st.Snapshot())
	}
}
