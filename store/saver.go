package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"hangout/room"
)

// Saver 写回式持久化：布局编辑只更新内存中的待写快照，
// 由独立协程按固定节拍合并写盘，慢磁盘不会阻塞任何房间。
// 进程在写盘前崩溃会丢失最近一次编辑（可接受）。
type Saver struct {
	path     string
	interval time.Duration
	log      *zap.SugaredLogger
	write    func(path string, defs []room.Definition) error

	flushMu sync.Mutex // 串行化写盘，保证旧快照不会覆盖新快照

	mu    sync.Mutex
	order []string
	defs  map[string]room.Definition
	dirty bool

	saves    atomic.Int64
	failures atomic.Int64
}

// NewSaver 创建写盘器；initial 决定写盘时的房间顺序
func NewSaver(path string, interval time.Duration, initial []room.Definition, log *zap.SugaredLogger) *Saver {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Saver{
		path:     path,
		interval: interval,
		log:      log,
		write:    WriteRooms,
		defs:     make(map[string]room.Definition, len(initial)),
	}
	for _, d := range initial {
		s.order = append(s.order, d.ID)
		s.defs[d.ID] = d
	}
	return s
}

// Update 记录某个房间的最新定义（非阻塞，可在房间锁内调用）
func (s *Saver) Update(def room.Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.defs[def.ID]; !ok {
		s.order = append(s.order, def.ID)
	}
	s.defs[def.ID] = def
	s.dirty = true
}

// Publish 实现 room.EventSink：布局变化时记录新定义
func (s *Saver) Publish(ev room.Event) {
	if e, ok := ev.(room.ItemsChanged); ok {
		s.Update(e.Definition)
	}
}

// Dirty 是否有尚未落盘的编辑
func (s *Saver) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Run 写盘循环：每个节拍合并写出一次；ctx 结束时做最后一次写盘
func (s *Saver) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return nil
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Flush 立即写出当前快照；失败只记录日志，不回滚内存状态
func (s *Saver) Flush() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	defs := make([]room.Definition, 0, len(s.order))
	for _, id := range s.order {
		defs = append(defs, s.defs[id])
	}
	s.dirty = false
	s.mu.Unlock()

	start := time.Now()
	if err := s.write(s.path, defs); err != nil {
		s.failures.Add(1)
		s.markDirty()
		s.log.Errorw("saving rooms failed", "path", s.path, "error", err)
		return
	}
	s.saves.Add(1)
	s.log.Debugw("rooms saved", "path", s.path, "rooms", len(defs), "elapsed", time.Since(start))
}

// markDirty 写盘失败后保留脏标记，下个节拍重试
func (s *Saver) markDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// Saves 成功写盘次数
func (s *Saver) Saves() int64 { return s.saves.Load() }

// Failures 写盘失败次数
func (s *Saver) Failures() int64 { return s.failures.Load() }
