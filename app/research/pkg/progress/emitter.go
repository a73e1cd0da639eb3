package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iWorld-y/research_radar/app/research/pkg/logger"
	"github.com/iWorld-y/research_radar/app/research/pkg/model"
)

// ErrTransportClosed 调用方已断开，后续事件无法送达
var ErrTransportClosed = errors.New("progress transport closed")

// Transport 事件的底层传输，Send 返回即视为已确认
type Transport interface {
	Send(ctx context.Context, frame Frame) error
	Close() error
}

// Emitter 单写者、有序、至多一个终止事件的进度通道
type Emitter struct {
	ctx       context.Context
	transport Transport

	mu         sync.Mutex
	seq        uint64
	terminated bool
	broken     bool

	closeOnce sync.Once
	closeErr  error
}

// NewEmitter 创建进度通道
func NewEmitter(ctx context.Context, t Transport) *Emitter {
	return &Emitter{ctx: ctx, transport: t}
}

// Progress 写入一个阶段事件
func (e *Emitter) Progress(p Progress) error {
	return e.write(p)
}

// Complete 写入成功终止事件并关闭通道
func (e *Emitter) Complete(report *model.StructuredReport) error {
	err := e.write(Complete{Report: report})
	e.Close()
	return err
}

// Fail 写入失败终止事件并关闭通道
func (e *Emitter) Fail(f Failure) error {
	err := e.write(f)
	e.Close()
	return err
}

// Terminated 是否已写出终止事件或已失去连接
func (e *Emitter) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminated || e.broken
}

// Broken 传输是否已失败
func (e *Emitter) Broken() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.broken
}

// Seq 已成功写出的事件数
func (e *Emitter) Seq() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}

// Close 关闭底层传输，可重复调用
func (e *Emitter) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.terminated = true
		e.mu.Unlock()
		e.closeErr = e.transport.Close()
	})
	return e.closeErr
}

func (e *Emitter) write(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.terminated || e.broken {
		logger.Log.Debugf("丢弃已关闭通道上的事件: %s", Type(ev))
		return nil
	}

	data, err := Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", Type(ev), err)
	}

	frame := Frame{Seq: e.seq + 1, Type: Type(ev), Data: data}
	if err := e.transport.Send(e.ctx, frame); err != nil {
		e.broken = true
		logger.Log.Debugf("进度传输失败，停止写入: %v", err)
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	e.seq = frame.Seq

	if IsTerminal(ev) {
		e.terminated = true
	}
	return nil
}
