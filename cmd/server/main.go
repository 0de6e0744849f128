// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cora-trainer-go/internal/config"
	"cora-trainer-go/internal/handler"
	"cora-trainer-go/internal/middleware"
	"cora-trainer-go/internal/pipeline"
	"cora-trainer-go/internal/repository"
	"cora-trainer-go/internal/service"
	"cora-trainer-go/pkg/database"
	"cora-trainer-go/pkg/es"
	"cora-trainer-go/pkg/kafka"
	"cora-trainer-go/pkg/llm"
	"cora-trainer-go/pkg/log"
	"cora-trainer-go/pkg/storage"
	"cora-trainer-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. 初始化 Redis（可选：token 黑名单、redis 评分存储）
	var rdb *redis.Client
	if cfg.Database.Redis.Addr != "" {
		client, err := database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
		if err != nil {
			log.Warnf("[Main] Redis 不可用，相关功能降级: %v", err)
		} else {
			rdb = client
			defer rdb.Close()
		}
	}

	// 4. 初始化评分存储，失败时进入降级模式
	scoreTable, closeStore := openScoreTable(ctx, cfg, rdb)
	defer closeStore()

	// 5. 可选的外部依赖：对话归档、评分事件、分析索引
	var (
		archiver  service.TranscriptArchiver
		linker    handler.TranscriptLinker
		publisher service.ScoreEventPublisher
		searcher  service.ScoreSearcher
	)
	if cfg.MinIO.Endpoint != "" {
		archive, err := storage.NewTranscriptArchive(cfg.MinIO)
		if err != nil {
			log.Warnf("[Main] MinIO 初始化失败，对话归档已禁用: %v", err)
		} else {
			archiver, linker = archive, archive
		}
	}
	var producer *kafka.Producer
	if cfg.Kafka.Brokers != "" {
		producer = kafka.NewProducer(cfg.Kafka)
		publisher = producer
		defer producer.Close()
	}
	if cfg.Elasticsearch.Addresses != "" {
		index, err := es.NewScoreIndex(cfg.Elasticsearch)
		if err != nil {
			log.Warnf("[Main] Elasticsearch 初始化失败，评分分析已禁用: %v", err)
		} else {
			searcher = index
			if producer != nil {
				// 后台消费评分事件并写入分析索引
				go kafka.StartConsumer(ctx, cfg.Kafka, pipeline.NewProcessor(index))
			}
		}
	}

	// 6. 初始化 Repository 和 Service (依赖注入)
	userRepository, err := repository.NewUserRepository(cfg.Auth.LocalUsers)
	if err != nil {
		log.Fatalf("[Main] 本地账户配置无效: %v", err)
	}
	conversationRepo := repository.NewConversationRepository()
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	llmClient := llm.NewClient(cfg.LLM)

	userService := service.NewUserService(userRepository, jwtManager, rdb)
	personaService := service.NewPersonaService(llmClient, cfg.Agent, cfg.LLM)
	scoringService := service.NewScoringService(llmClient, cfg.LLM.StructuredOutput)
	scoreService := service.NewScoreService(scoreTable, cfg.ScoreStore)
	chatService := service.NewChatService(personaService, conversationRepo)
	conversationService := service.NewConversationService(conversationRepo, scoringService, scoreService, archiver, publisher)
	adminService := service.NewAdminService(scoreService, searcher, publisher)

	log.Infof("[Main] 服务组件就绪: model=%s, local_users=%d, score_store=%t, archive=%t, events=%t, analytics=%t",
		llmClient.Model(), userRepository.Count(), scoreService.Available(), archiver != nil, publisher != nil, searcher != nil)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())
	r.Use(middleware.IdentityMiddleware(userService, cfg.Auth.FederatedHeader))

	authHandler := handler.NewAuthHandler(userService)
	conversationHandler := handler.NewConversationHandler(conversationService, personaService)
	userHandler := handler.NewUserHandler(scoreService, linker)
	adminHandler := handler.NewAdminHandler(adminService)

	// 8. 注册路由
	r.GET("/health", handler.Health(scoreService))
	r.GET("/ws/chat", handler.NewChatHandler(chatService).Handle)

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.GET("/status", authHandler.Status)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
		}

		// 匿名用户也可以分析对话和查看自己的评分
		apiV1.POST("/conversations/:id/analyze", conversationHandler.Analyze)
		user := apiV1.Group("/user")
		{
			user.GET("/identity", authHandler.Status)
			user.GET("/scores", userHandler.Scores)
			user.GET("/scores/:conversationId", userHandler.Score)
			user.GET("/scores/:conversationId/transcript", userHandler.Transcript)
		}

		// 需要认证的路由
		authed := apiV1.Group("")
		authed.Use(middleware.RequireAuth())
		{
			authed.GET("/agent/info", conversationHandler.AgentInfo)
			authed.POST("/conversations", conversationHandler.Start)
			authed.GET("/conversations/:id/messages", conversationHandler.Messages)
		}

		// 管理员路由组
		admin := apiV1.Group("/admin")
		admin.Use(middleware.AdminAuthMiddleware())
		{
			admin.POST("/seed-demo-data", adminHandler.SeedDemoData)
			admin.GET("/scores/search", adminHandler.SearchScores)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 停止 Kafka 消费者
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}

// openScoreTable 按 score_store.driver 打开评分表。
// 未配置或初始化失败时返回 nil（未类型化），评分服务随之进入降级模式。
func openScoreTable(ctx context.Context, cfg config.Config, rdb *redis.Client) (repository.ScoreTable, func()) {
	noop := func() {}
	table := cfg.ScoreStore.TableName

	switch cfg.ScoreStore.Driver {
	case "":
		log.Warnf("[Main] 未配置评分存储，评分记录不会被保存")
		return nil, noop
	case "memory":
		log.Info("[Main] 使用内存评分存储")
		return repository.NewMemoryScoreTable(), noop
	case "mysql":
		db, err := database.InitMySQL(cfg.Database.MySQL.DSN)
		if err != nil {
			log.Errorf("[Main] MySQL 评分存储不可用，进入降级模式: %v", err)
			return nil, noop
		}
		if err := repository.MigrateGormScoreTable(db, table); err != nil {
			log.Errorf("[Main] 评分表迁移失败，进入降级模式: %v", err)
			return nil, noop
		}
		closeFn := noop
		if sqlDB, err := db.DB(); err == nil {
			closeFn = func() { _ = sqlDB.Close() }
		}
		return repository.NewGormScoreTable(db, table), closeFn
	case "redis":
		if rdb == nil {
			log.Errorf("[Main] Redis 评分存储需要 database.redis.addr，进入降级模式")
			return nil, noop
		}
		return repository.NewRedisScoreTable(rdb, table), noop
	case "mongo":
		client, db, err := database.InitMongo(cfg.Database.Mongo.URI, cfg.Database.Mongo.Database)
		if err != nil {
			log.Errorf("[Main] MongoDB 评分存储不可用，进入降级模式: %v", err)
			return nil, noop
		}
		closeFn := func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(dctx)
		}
		if err := repository.EnsureMongoScoreIndexes(ctx, db, table); err != nil {
			log.Errorf("[Main] 创建评分索引失败，进入降级模式: %v", err)
			closeFn()
			return nil, noop
		}
		return repository.NewMongoScoreTable(db, table), closeFn
	}
	log.Errorf("[Main] 未知的评分存储驱动 %q，进入降级模式", cfg.ScoreStore.Driver)
	return nil, noop
}
