package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/iWorld-y/research_radar/app/research/pkg/progress"
)

// sseTransport 把进度帧写成 text/event-stream，事件与心跳共用同一把锁
type sseTransport struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	rc     *http.ResponseController
	closed bool
}

func newSSETransport(w http.ResponseWriter) *sseTransport {
	return &sseTransport{w: w, rc: http.NewResponseController(w)}
}

// start 写出响应头
func (t *sseTransport) start() error {
	h := t.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	t.w.WriteHeader(http.StatusOK)
	return t.rc.Flush()
}

func (t *sseTransport) Send(ctx context.Context, frame progress.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return io.ErrClosedPipe
	}
	if _, err := fmt.Fprintf(t.w, "id: %d\nevent: %s\ndata: %s\n\n", frame.Seq, frame.Type, frame.Data); err != nil {
		return err
	}
	return t.rc.Flush()
}

// ping 写出心跳注释，关闭后忽略
func (t *sseTransport) ping() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	if _, err := io.WriteString(t.w, ": ping\n\n"); err != nil {
		return err
	}
	return t.rc.Flush()
}

func (t *sseTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}
