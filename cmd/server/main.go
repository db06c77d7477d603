// Package main 是应用程序的入口点。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paydash-go/internal/composer"
	"paydash-go/internal/config"
	"paydash-go/internal/handler"
	"paydash-go/internal/middleware"
	"paydash-go/internal/pipeline"
	"paydash-go/internal/repository"
	"paydash-go/internal/service"
	"paydash-go/pkg/database"
	"paydash-go/pkg/es"
	"paydash-go/pkg/kafka"
	"paydash-go/pkg/llm"
	"paydash-go/pkg/log"
	"paydash-go/pkg/storage"
	"paydash-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化存储。除 Redis 外的外部依赖都是可选的，未配置时对应功能降级。
	var sessionRepo repository.SessionRepository
	if cfg.Database.Redis.Addr != "" {
		database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
		sessionRepo = repository.NewSessionRepository(database.RDB, cfg.Assistant.StorageTTL)
	} else {
		log.Warnf("未配置 Redis，会话只保存在进程内存中")
		sessionRepo = repository.NewMemorySessionRepository()
	}

	var interactionRepo repository.InteractionRepository
	if cfg.Database.MySQL.DSN != "" {
		database.InitMySQL(cfg.Database.MySQL.DSN)
		interactionRepo = repository.NewInteractionRepository(database.DB)
	}

	var indexer pipeline.Indexer
	if cfg.Elasticsearch.Addresses != "" {
		if err := es.InitES(cfg.Elasticsearch); err != nil {
			log.Errorf("es 初始化失败，搜索功能不可用: %v", err)
			es.ESClient = nil
		} else {
			indexer = es.Indexer{Client: es.ESClient, IndexName: cfg.Elasticsearch.IndexName}
		}
	}

	var (
		images        composer.ImageSource
		imageResolver service.ImageResolver
	)
	if cfg.MinIO.Endpoint != "" {
		storage.InitMinIO(cfg.MinIO)
		src := storage.NewImageSource(storage.MinioClient, cfg.MinIO)
		images, imageResolver = src, src
	}

	// 4. 初始化回复生成
	llmClient := llm.NewClient(cfg.LLM, nil)
	assistant, err := composer.New(cfg.Assistant, cfg.LLM.Prompt.System, llmClient, images)
	if err != nil {
		log.Fatal("助手模式配置错误", err)
	}
	welcome := cfg.Assistant.WelcomeMessage
	if welcome == "" {
		welcome = assistant.Welcome()
	}
	log.Infof("助手模式: %s", assistant.Mode())

	// 5. 初始化交互归档：配置了 Kafka 时异步处理，否则同步处理
	processor := pipeline.NewProcessor(interactionRepo, indexer)
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	consumerDone := make(chan struct{})
	var publisher service.InteractionPublisher
	switch {
	case !cfg.Assistant.Archive:
		close(consumerDone)
	case cfg.Kafka.Brokers != "":
		kafka.InitProducer(cfg.Kafka)
		publisher = kafka.Publisher{}
		go func() {
			defer close(consumerDone)
			kafka.StartConsumer(consumerCtx, cfg.Kafka, processor, database.RDB)
		}()
	default:
		publisher = processor
		close(consumerDone)
	}

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.ClientExpireDays)
	stores := service.NewClientStores(sessionRepo, welcome, imageResolver)
	services := handler.Services{
		Client:      service.NewClientService(jwtManager),
		Session:     service.NewSessionService(stores),
		Chat:        service.NewChatService(stores, assistant, publisher),
		Search:      service.NewSearchService(es.ESClient, cfg.Elasticsearch.IndexName),
		Interaction: service.NewInteractionService(interactionRepo),
	}

	// 7. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	handler.RegisterRoutes(r, services, jwtManager)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	// 先关闭生产者刷新剩余事件，再停止消费者
	if err := kafka.CloseProducer(); err != nil {
		log.Errorf("关闭 Kafka 生产者失败: %v", err)
	}
	stopConsumer()
	select {
	case <-consumerDone:
	case <-ctx.Done():
		log.Warnf("等待 Kafka 消费者退出超时")
	}
	log.Info("服务已优雅关闭")
}
