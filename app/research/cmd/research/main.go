package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/research_radar/app/research/pkg/config"
	"github.com/iWorld-y/research_radar/app/research/pkg/logger"
	dm "github.com/iWorld-y/research_radar/app/research/pkg/model"
	"github.com/iWorld-y/research_radar/app/research/pkg/progress"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name 是服务的名称
	Name string = "research"
	// Version 是服务的版本号
	Version string
	// flagconf 是配置文件的路径命令行参数
	flagconf string

	// 命令行单次调研模式，company 非空时生效
	flagCompany      string
	flagIndustry     string
	flagUseCase      string
	flagRequirements string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "app/research/configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.StringVar(&flagCompany, "company", "", "run a single research job for this company and print events to stdout")
	flag.StringVar(&flagIndustry, "industry", "", "industry of the company (single run)")
	flag.StringVar(&flagUseCase, "use-case", "", "our use case or offering (single run)")
	flag.StringVar(&flagRequirements, "requirements", "", "specific requirements (single run)")
}

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		panic(err)
	}
	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		panic(err)
	}

	// 初始化日志记录器，包含时间戳、调用者信息、服务ID等上下文
	klog := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)

	if flagCompany != "" {
		if err := runOnce(cfg); err != nil {
			logger.Log.Errorf("调研失败: %v", err)
			os.Exit(1)
		}
		return
	}

	app, cleanup, err := initApp(cfg, klog)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	if err := app.Run(); err != nil {
		panic(err)
	}
}

// runOnce 执行一次调研，事件以 JSON Lines 写到标准输出
func runOnce(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}

	req := dm.ResearchRequest{
		Company:      flagCompany,
		Industry:     flagIndustry,
		UseCase:      flagUseCase,
		Requirements: flagRequirements,
	}
	em := progress.NewEmitter(ctx, progress.NewWriterTransport(os.Stdout))
	_, err = eng.Run(ctx, req, em)
	return err
}
