package ticker

import (
	"sync"

	"btcfee/internal/domain"
)

// Snapshot 对外暴露的只读视图
type Snapshot struct {
	Sample    domain.PriceSample
	HasPrice  bool
	Direction domain.Direction
	State     domain.ConnectionState
	LastError string
}

// State 单一当前价格单元 + 连接状态。
// 只有 Feed 的 owner goroutine 写入，读方通过 Snapshot 取副本。
type State struct {
	mu sync.RWMutex

	sample  domain.PriceSample
	has     bool
	dir     domain.Direction
	conn    domain.ConnectionState
	lastErr string
}

func NewState() *State {
	return &State{conn: domain.StateConnecting}
}

// Apply 整体替换当前价格，返回是否需要重绘（价格或来源发生变化）
func (s *State) Apply(sample domain.PriceSample) bool {
	if !sample.Valid() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := !s.has || s.sample.LTP != sample.LTP || s.sample.Source != sample.Source
	if s.has {
		s.dir = sample.DirectionFrom(s.sample)
	} else {
		s.dir = domain.DirectionSame
	}
	s.sample = sample
	s.has = true
	return changed
}

// SetConn 更新连接状态，返回是否发生变化
func (s *State) SetConn(st domain.ConnectionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == st {
		return false
	}
	s.conn = st
	return true
}

// Fail 进入 Error 状态并记录错误文本（粘滞，直到下一次成功连接）
func (s *State) Fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = domain.StateError
	s.lastErr = msg
}

// ClearError 成功建立连接时清除错误文本
func (s *State) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = ""
}

func (s *State) Conn() domain.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Sample:    s.sample,
		HasPrice:  s.has,
		Direction: s.dir,
		State:     s.conn,
		LastError: s.lastErr,
	}
}
