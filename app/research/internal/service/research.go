package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"

	"github.com/iWorld-y/research_radar/app/research/internal/data"
	"github.com/iWorld-y/research_radar/app/research/pkg/metrics"
	dm "github.com/iWorld-y/research_radar/app/research/pkg/model"
	"github.com/iWorld-y/research_radar/app/research/pkg/progress"
)

const (
	maxBodyBytes = 64 << 10
	saveTimeout  = 10 * time.Second
)

// Runner 执行一次调研，*engine.Engine 即可满足
type Runner interface {
	Run(ctx context.Context, req dm.ResearchRequest, em *progress.Emitter) (*dm.StructuredReport, error)
}

// ReportStore 报告持久化，为 nil 时不保存
type ReportStore interface {
	SaveReport(ctx context.Context, rep *dm.StructuredReport) (int64, error)
	GetReport(ctx context.Context, id int64) (*dm.StructuredReport, error)
}

// ResearchService 调研接口
type ResearchService struct {
	runner    Runner
	store     ReportStore
	heartbeat time.Duration
	log       *log.Helper
}

// NewResearchService 创建服务；store 可为 nil
func NewResearchService(runner Runner, store ReportStore, heartbeat time.Duration, logger log.Logger) *ResearchService {
	return &ResearchService{
		runner:    runner,
		store:     store,
		heartbeat: heartbeat,
		log:       log.NewHelper(logger),
	}
}

// Stream POST /api/research/stream，以 SSE 推送进度直到终止事件
func (s *ResearchService) Stream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		khttp.DefaultErrorEncoder(w, r, errors.New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use POST"))
		return
	}

	var req dm.ResearchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		khttp.DefaultErrorEncoder(w, r, errors.BadRequest("INVALID_BODY", "malformed request body: "+err.Error()))
		return
	}
	req = req.Trimmed()
	if err := req.Validate(); err != nil {
		khttp.DefaultErrorEncoder(w, r, errors.BadRequest("COMPANY_REQUIRED", err.Error()))
		return
	}

	reqID := uuid.NewString()
	t := newSSETransport(w)
	if err := t.start(); err != nil {
		s.log.Errorf("[%s] streaming unsupported: %v", reqID, err)
		return
	}
	metrics.StreamsActive.Inc()
	defer metrics.StreamsActive.Dec()

	ctx := r.Context()
	stop := s.startHeartbeat(ctx, t)
	em := progress.NewEmitter(ctx, t)
	rep, err := s.runner.Run(ctx, req, em)
	stop()

	if err != nil {
		s.log.Warnf("[%s] research for %q ended without report: %v", reqID, req.Company, err)
		return
	}
	s.save(reqID, rep)
}

// startHeartbeat 定时写心跳，返回的 stop 等待心跳协程退出
func (s *ResearchService) startHeartbeat(ctx context.Context, t *sseTransport) func() {
	if s.heartbeat <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := t.ping(); err != nil {
					return
				}
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}

// save 调用方可能已断开，使用独立的 ctx
func (s *ResearchService) save(reqID string, rep *dm.StructuredReport) {
	if s.store == nil || rep == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	id, err := s.store.SaveReport(ctx, rep)
	if err != nil {
		s.log.Errorf("[%s] save report failed: %v", reqID, err)
		return
	}
	s.log.Infof("[%s] report saved, id=%d", reqID, id)
}

// GetReport GET /api/reports/{id}
func (s *ResearchService) GetReport(ctx khttp.Context) error {
	if s.store == nil {
		return errors.NotFound("STORE_DISABLED", "report storage is not enabled")
	}
	id, err := strconv.ParseInt(ctx.Vars().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		return errors.BadRequest("INVALID_ID", "report id must be a positive integer")
	}

	rep, err := s.store.GetReport(ctx, id)
	if errors.Is(err, data.ErrReportNotFound) {
		return errors.NotFound("REPORT_NOT_FOUND", "report not found")
	}
	if err != nil {
		s.log.Errorf("get report %d failed: %v", id, err)
		return errors.InternalServer("STORE_ERROR", "failed to load report")
	}
	return ctx.JSON(http.StatusOK, rep)
}
