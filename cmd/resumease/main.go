package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resumease-go/internal/analyzer"
	"resumease-go/internal/api/handler"
	"resumease-go/internal/api/router"
	"resumease-go/internal/config"
	appLogger "resumease-go/internal/logger"
	"resumease-go/internal/parser"
	"resumease-go/internal/processor"
	"resumease-go/internal/scorer"
	"resumease-go/internal/storage"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}

	initLogger(cfg)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	pipeline, err := parser.NewParsingPipeline(ctx, parser.DefaultVocabulary())
	if err != nil {
		glog.Fatalf("初始化解析流水线失败: %v", err)
	}
	glog.Info("简历解析流水线初始化成功")

	githubScorer := analyzer.NewGitHubProfileScorer(&cfg.GitHub)

	// 未配置模型凭证时评分引擎退化为规则打分
	var engine *scorer.RelevanceScoringEngine
	if cfg.Cerebras.APIKey != "" {
		chatModel, err := scorer.NewCerebrasChatModel(&cfg.Cerebras)
		if err != nil {
			glog.Fatalf("初始化Cerebras模型失败: %v", err)
		}
		engine = scorer.NewRelevanceScoringEngine(chatModel)
		glog.Info("LLM评分引擎初始化成功")
	} else {
		engine = scorer.NewRelevanceScoringEngine(nil)
		glog.Warn("未配置cerebras.api_key，评分将使用规则回退路径")
	}

	intakeService, err := processor.NewIntakeService(storageManager, pipeline, &appLogger.Logger)
	if err != nil {
		glog.Fatalf("初始化简历入库服务失败: %v", err)
	}
	atsService, err := processor.NewATSService(storageManager, githubScorer, engine, &appLogger.Logger)
	if err != nil {
		glog.Fatalf("初始化ATS评分服务失败: %v", err)
	}
	glog.Info("处理服务初始化成功")

	// 事件审计消费者，把领域事件落成审计日志
	if storageManager.RabbitMQ != nil {
		auditor, err := storage.NewEventAuditor(storageManager.RabbitMQ, &cfg.RabbitMQ)
		if err != nil {
			glog.Fatalf("初始化事件审计失败: %v", err)
		}
		if err := auditor.Start(); err != nil {
			glog.Fatalf("启动事件审计失败: %v", err)
		}
		defer auditor.Stop()
		glog.Info("事件审计消费者已启动")
	}

	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		glog.CtxInfof(c, "Request: %s %s", string(ctx.Method()), string(ctx.Path()))
		ctx.Next(c)
		glog.CtxInfof(c, "Response: status %d", ctx.Response.StatusCode())
	})

	router.RegisterRoutes(h, &cfg.Server, handler.NewResumeHandler(intakeService), handler.NewATSHandler(atsService))
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// initLogger 初始化zerolog并把Hertz的日志桥接到同一实例
func initLogger(cfg *config.Config) {
	appLogger.Init(appLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})

	glog.SetLogger(hertzadapter.From(appLogger.Logger))
}
