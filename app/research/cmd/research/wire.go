package main

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/research_radar/app/research/internal/data"
	"github.com/iWorld-y/research_radar/app/research/internal/server"
	"github.com/iWorld-y/research_radar/app/research/internal/service"
	"github.com/iWorld-y/research_radar/app/research/pkg/config"
	"github.com/iWorld-y/research_radar/app/research/pkg/engine"
	"github.com/iWorld-y/research_radar/app/research/pkg/llm"
	"github.com/iWorld-y/research_radar/app/research/pkg/orchestrator"
	"github.com/iWorld-y/research_radar/app/research/pkg/prompt"
	"github.com/iWorld-y/research_radar/app/research/pkg/search/factory"
	"github.com/iWorld-y/research_radar/app/research/pkg/tools"
)

// initApp 手工装配 kratos 应用
func initApp(cfg *config.Config, logger log.Logger) (*kratos.App, func(), error) {
	eng, err := newEngine(context.Background(), cfg)
	if err != nil {
		return nil, nil, err
	}

	store, cleanup, err := newReportStore(cfg.DB, logger)
	if err != nil {
		return nil, nil, err
	}

	svc := service.NewResearchService(eng, store, cfg.Server.Heartbeat, logger)
	hs := server.NewHTTPServer(cfg.Server, svc, logger)
	return newApp(logger, hs), cleanup, nil
}

// newEngine 初始化模型、工具、编排器与引擎，进程内只构造一次
func newEngine(ctx context.Context, cfg *config.Config) (*engine.Engine, error) {
	searcher, err := factory.NewSearcher(cfg.Search)
	if err != nil {
		return nil, fmt.Errorf("搜索客户端初始化失败: %w", err)
	}

	primaryCM, err := llm.NewOpenAIChatModel(ctx, cfg.LLM.Primary)
	if err != nil {
		return nil, err
	}
	fallbackCM, err := llm.NewOpenAIChatModel(ctx, cfg.LLM.Fallback)
	if err != nil {
		return nil, err
	}

	researchTools := []tools.Tool{
		tools.NewWebSearch(searcher, cfg.Search.MaxResults),
		tools.NewReadPage(cfg.Research.MaxPageChars, nil),
	}
	primary := llm.NewToolAgent(cfg.LLM.Primary.Model, primaryCM, prompt.SystemMessage(), researchTools, cfg.Research.MaxToolSteps)
	fallback := llm.NewStreamCompletion(cfg.LLM.Fallback.Model, fallbackCM)

	// 初始化限流器
	limit := rate.Limit(float64(cfg.Concurrency.RPM) / 60.0)
	limiter := rate.NewLimiter(limit, cfg.Concurrency.QPS)

	orch := orchestrator.New(primary, fallback, orchestrator.ConfigFrom(cfg.Research), orchestrator.WithLimiter(limiter))
	return engine.New(orch), nil
}

// newReportStore db.host 为空时不持久化
func newReportStore(c config.DBConfig, logger log.Logger) (service.ReportStore, func(), error) {
	if c.Host == "" {
		log.NewHelper(logger).Info("db.host not set, reports will not be persisted")
		return nil, func() {}, nil
	}
	d, cleanup, err := data.NewData(c, logger)
	if err != nil {
		return nil, nil, err
	}
	return data.NewReportRepo(d), cleanup, nil
}

func newApp(logger log.Logger, hs *http.Server) *kratos.App {
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(hs),
	)
}
