package progress

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// WriterTransport 以 JSON Lines 写出事件，用于命令行模式
type WriterTransport struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
}

// NewWriterTransport 包装一个 io.Writer
func NewWriterTransport(w io.Writer) *WriterTransport {
	return &WriterTransport{w: w}
}

// Send 写出一行事件
func (t *WriterTransport) Send(ctx context.Context, frame Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return io.ErrClosedPipe
	}
	_, err := t.w.Write(append(append([]byte{}, frame.Data...), '\n'))
	return err
}

// Close 标记关闭
func (t *WriterTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

// Recorder 在内存中记录帧，供测试与调试使用
type Recorder struct {
	mu     sync.Mutex
	frames []Frame
	closes int
	// FailAfter 大于 0 时，第 FailAfter 次之后的 Send 返回错误，模拟调用方断开
	FailAfter int
}

// Send 记录帧
func (r *Recorder) Send(_ context.Context, frame Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAfter > 0 && len(r.frames) >= r.FailAfter {
		return io.ErrClosedPipe
	}
	r.frames = append(r.frames, frame)
	return nil
}

// Close 记录关闭次数
func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closes++
	r.mu.Unlock()
	return nil
}

// Frames 返回已记录帧的副本
func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

// Types 按顺序返回事件类型
func (r *Recorder) Types() []string {
	frames := r.Frames()
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Type
	}
	return out
}

// Closes 返回 Close 被调用的次数
func (r *Recorder) Closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

// Decoded 将每帧解码为通用 map，便于断言
func (r *Recorder) Decoded() ([]map[string]any, error) {
	frames := r.Frames()
	out := make([]map[string]any, 0, len(frames))
	for _, f := range frames {
		var m map[string]any
		if err := json.Unmarshal(f.Data, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Statuses 返回所有 progress 事件的 status
func (r *Recorder) Statuses() []Phase {
	decoded, err := r.Decoded()
	if err != nil {
		return nil
	}
	var out []Phase
	for _, m := range decoded {
		if m["type"] == "progress" {
			s, _ := m["status"].(string)
			out = append(out, Phase(s))
		}
	}
	return out
}
