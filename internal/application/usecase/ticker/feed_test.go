package ticker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"btcfee/internal/application/port"
	"btcfee/internal/domain"
)

const testChannel = "lightning_ticker_BTC_JPY"

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

type fakeConn struct {
	msgs      chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	subscribed []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{msgs: make(chan []byte), closed: make(chan struct{})}
}

func (c *fakeConn) Subscribe(channel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = append(c.subscribed, channel)
	return nil
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case b := <-c.msgs:
		return b, nil
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// push 模拟服务端推送；连接已关闭时返回 false
func (c *fakeConn) push(msg string) bool {
	select {
	case c.msgs <- []byte(msg):
		return true
	case <-c.closed:
		return false
	case <-time.After(time.Second):
		return false
	}
}

func (c *fakeConn) subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subscribed...)
}

type fakeDialer struct {
	mu        sync.Mutex
	fail      int
	conns     []*fakeConn
	dialTimes []time.Time
}

func (d *fakeDialer) Dial(ctx context.Context) (port.StreamConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialTimes = append(d.dialTimes, time.Now())
	if d.fail > 0 {
		d.fail--
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dialTimes)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func (d *fakeDialer) dialAt(i int) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dialTimes[i]
}

type fakeFetcher struct {
	calls atomic.Int64
	price atomic.Value // float64
	fail  atomic.Bool
}

func newFakeFetcher(price float64) *fakeFetcher {
	f := &fakeFetcher{}
	f.price.Store(price)
	return f
}

func (f *fakeFetcher) FetchLTP(ctx context.Context) (float64, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return 0, errors.New("http 503")
	}
	return f.price.Load().(float64), nil
}

func testDecode(b []byte) (float64, bool, error) {
	var env struct {
		Params *struct {
			Message *struct {
				LTP *float64 `json:"ltp"`
			} `json:"message"`
		} `json:"params"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return 0, false, err
	}
	if env.Params == nil || env.Params.Message == nil || env.Params.Message.LTP == nil {
		return 0, false, nil
	}
	return *env.Params.Message.LTP, true, nil
}

func tickerMsg(ltp string) string {
	return `{"jsonrpc":"2.0","method":"channelMessage","params":{"channel":"lightning_ticker_BTC_JPY","message":{"product_code":"BTC_JPY","ltp":` + ltp + `}}}`
}

func newTestFeed(d port.StreamDialer, f port.TickerFetcher, delay, poll time.Duration, updates *atomic.Int64) *Feed {
	deps := FeedDeps{
		Dialer:         d,
		Decode:         testDecode,
		Channel:        testChannel,
		ReconnectDelay: delay,
		PollInterval:   poll,
	}
	if f != nil {
		deps.Fetcher = f
	}
	if updates != nil {
		deps.OnUpdate = func(Snapshot) { updates.Add(1) }
	}
	return NewFeed(deps)
}

func TestFeedStreamUpdatesPrice(t *testing.T) {
	d := &fakeDialer{}
	feed := newTestFeed(d, nil, time.Second, 0, nil)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer feed.Close()

	eventually(t, func() bool { return feed.Snapshot().State == domain.StateLive })

	conn := d.conn(0)
	if subs := conn.subscriptions(); len(subs) != 1 || subs[0] != testChannel {
		t.Fatalf("expected one subscription to %s, got %v", testChannel, subs)
	}

	if !conn.push(tickerMsg("10000000")) {
		t.Fatal("push failed")
	}
	eventually(t, func() bool { return feed.Snapshot().Sample.LTP == 10000000 })

	snap := feed.Snapshot()
	if snap.Sample.Source != domain.SourceStream {
		t.Errorf("expected stream source, got %s", snap.Sample.Source)
	}
	if snap.Sample.ObservedAt.IsZero() {
		t.Errorf("expected receipt timestamp")
	}

	conn.push(tickerMsg("10000500"))
	eventually(t, func() bool { return feed.Snapshot().Sample.LTP == 10000500 })
	if feed.Snapshot().Direction != domain.DirectionUp {
		t.Errorf("expected direction up")
	}
}

func TestFeedMalformedMessage(t *testing.T) {
	d := &fakeDialer{}
	feed := newTestFeed(d, nil, time.Second, 0, nil)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer feed.Close()

	eventually(t, func() bool { return d.conn(0) != nil && feed.Snapshot().State == domain.StateLive })
	conn := d.conn(0)
	conn.push(tickerMsg("9000000"))
	eventually(t, func() bool { return feed.Snapshot().HasPrice })

	// unrelated message: ignored, no error
	conn.push(`{"jsonrpc":"2.0","id":1,"result":true}`)
	conn.push(`{"jsonrpc":"2.0","method":"channelMessage","params":{"channel":"x"}}`)

	conn.push(`{"params": {"message": `)
	eventually(t, func() bool { return feed.Snapshot().State == domain.StateError })

	snap := feed.Snapshot()
	if snap.Sample.LTP != 9000000 {
		t.Errorf("malformed message changed price to %v", snap.Sample.LTP)
	}
	if snap.LastError == "" {
		t.Errorf("expected error text")
	}

	// feed keeps working
	conn.push(tickerMsg("9100000"))
	eventually(t, func() bool { return feed.Snapshot().Sample.LTP == 9100000 })
	snap = feed.Snapshot()
	if snap.State != domain.StateLive {
		t.Errorf("expected live after valid message, got %s", snap.State)
	}
	if snap.LastError == "" {
		t.Errorf("expected error text to stay until next open")
	}
	if d.dials() != 1 {
		t.Errorf("parse failure must not reconnect, dials=%d", d.dials())
	}
}

func TestFeedReconnectsOnceAfterDelay(t *testing.T) {
	const delay = 80 * time.Millisecond

	d := &fakeDialer{}
	feed := newTestFeed(d, nil, delay, 0, nil)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer feed.Close()

	eventually(t, func() bool { return feed.Snapshot().State == domain.StateLive })

	closedAt := time.Now()
	_ = d.conn(0).Close()

	eventually(t, func() bool { return feed.Snapshot().State == domain.StateDisconnected || d.dials() == 2 })
	eventually(t, func() bool { return d.dials() == 2 })

	if gap := d.dialAt(1).Sub(closedAt); gap < delay {
		t.Errorf("reconnected after %v, expected at least %v", gap, delay)
	}

	eventually(t, func() bool { return feed.Snapshot().State == domain.StateLive })
	time.Sleep(3 * delay)
	if n := d.dials(); n != 2 {
		t.Errorf("expected exactly one reconnect, got %d dials", n)
	}
}

func TestFeedRetriesFailedDials(t *testing.T) {
	d := &fakeDialer{fail: 2}
	feed := newTestFeed(d, nil, 20*time.Millisecond, 0, nil)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer feed.Close()

	eventually(t, func() bool { return feed.Snapshot().State == domain.StateLive })
	if n := d.dials(); n != 3 {
		t.Errorf("expected 3 dials, got %d", n)
	}
}

func TestFeedPollFallback(t *testing.T) {
	d := &fakeDialer{fail: 1 << 20}
	f := newFakeFetcher(8800000)
	feed := newTestFeed(d, f, 50*time.Millisecond, 30*time.Millisecond, nil)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer feed.Close()

	eventually(t, func() bool { return feed.Snapshot().HasPrice })
	snap := feed.Snapshot()
	if snap.Sample.LTP != 8800000 || snap.Sample.Source != domain.SourcePoll {
		t.Errorf("unexpected sample %+v", snap.Sample)
	}

	// poll failures are swallowed and never flip the state to error
	f.fail.Store(true)
	calls := f.calls.Load()
	eventually(t, func() bool { return f.calls.Load() > calls+2 })
	snap = feed.Snapshot()
	if snap.State == domain.StateError || snap.LastError != "" {
		t.Errorf("poll failure changed state: %+v", snap)
	}
	if snap.Sample.LTP != 8800000 {
		t.Errorf("poll failure changed price: %v", snap.Sample.LTP)
	}
}

func TestFeedPollAndStreamLastWriteWins(t *testing.T) {
	d := &fakeDialer{}
	f := newFakeFetcher(7000000)
	feed := newTestFeed(d, f, time.Second, 20*time.Millisecond, nil)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer feed.Close()

	eventually(t, func() bool { return feed.Snapshot().Sample.Source == domain.SourcePoll })
	eventually(t, func() bool { return d.conn(0) != nil && feed.Snapshot().State == domain.StateLive })

	// 等待失败前已发出的轮询结果被处理
	f.fail.Store(true)
	calls := f.calls.Load()
	eventually(t, func() bool { return f.calls.Load() > calls })

	d.conn(0).push(tickerMsg("7100000"))
	eventually(t, func() bool {
		s := feed.Snapshot().Sample
		return s.LTP == 7100000 && s.Source == domain.SourceStream
	})

	f.price.Store(7200000.0)
	f.fail.Store(false)
	eventually(t, func() bool {
		s := feed.Snapshot().Sample
		return s.LTP == 7200000 && s.Source == domain.SourcePoll
	})
}

func TestFeedCloseStopsUpdates(t *testing.T) {
	var updates atomic.Int64
	d := &fakeDialer{}
	f := newFakeFetcher(6100000)
	feed := newTestFeed(d, f, 20*time.Millisecond, 20*time.Millisecond, &updates)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	eventually(t, func() bool { return d.conn(0) != nil && feed.Snapshot().State == domain.StateLive })
	conn := d.conn(0)
	conn.push(tickerMsg("6100000"))
	eventually(t, func() bool { return feed.Snapshot().Sample.LTP == 6100000 })

	if err := feed.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	before := feed.Snapshot()
	beforeUpdates := updates.Load()
	beforeCalls := f.calls.Load()
	beforeDials := d.dials()

	if conn.push(tickerMsg("1")) {
		t.Errorf("connection still readable after Close")
	}
	f.price.Store(1.0)
	time.Sleep(100 * time.Millisecond)

	after := feed.Snapshot()
	if after != before {
		t.Errorf("snapshot changed after Close: %+v -> %+v", before, after)
	}
	if updates.Load() != beforeUpdates {
		t.Errorf("OnUpdate fired after Close")
	}
	if f.calls.Load() != beforeCalls {
		t.Errorf("poll fired after Close")
	}
	if d.dials() != beforeDials {
		t.Errorf("reconnect fired after Close")
	}

	// Close is idempotent
	if err := feed.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestFeedStartLifecycle(t *testing.T) {
	feed := newTestFeed(&fakeDialer{}, nil, time.Second, 0, nil)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := feed.Start(context.Background()); !errors.Is(err, ErrFeedStarted) {
		t.Errorf("expected ErrFeedStarted, got %v", err)
	}
	_ = feed.Close()
	if err := feed.Start(context.Background()); !errors.Is(err, ErrFeedClosed) {
		t.Errorf("expected ErrFeedClosed, got %v", err)
	}

	if err := NewFeed(FeedDeps{}).Start(context.Background()); err == nil {
		t.Errorf("expected error without dialer")
	}
}

func TestFeedFetchLTP(t *testing.T) {
	d := &fakeDialer{}
	feed := newTestFeed(d, nil, time.Second, 0, nil)

	if _, err := feed.FetchLTP(context.Background()); !errors.Is(err, ErrNoPrice) {
		t.Fatalf("expected ErrNoPrice before any update, got %v", err)
	}

	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer feed.Close()

	eventually(t, func() bool { return d.conn(0) != nil && feed.Snapshot().State == domain.StateLive })
	d.conn(0).push(tickerMsg("7000000"))
	eventually(t, func() bool { return feed.Snapshot().HasPrice })

	ltp, err := feed.FetchLTP(context.Background())
	if err != nil || ltp != 7000000 {
		t.Errorf("FetchLTP = %v, %v", ltp, err)
	}
}
