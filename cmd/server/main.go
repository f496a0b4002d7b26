package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"customerportal/api"
	docs "customerportal/api/docs"
	"customerportal/internal/audit"
	"customerportal/internal/config"
	"customerportal/internal/infra"
	"customerportal/internal/infra/queue"
	"customerportal/internal/logger"
	"customerportal/internal/report"
	"customerportal/internal/seed"
	"customerportal/internal/shop"
	"customerportal/internal/tenant"
	"customerportal/internal/user"
	"customerportal/internal/worker"
	"customerportal/internal/workspace"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// @title Customer Portal API
// @version 1.0
// @description 多租户客户门户 API：工作区、门店、报表与 BI 嵌入
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// 0. 统一加载 .env，便于集中管理 APP_* 环境变量
	loadEnvFile()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 1. 加载配置（含校验）
	cfg, err := config.Load(env, "")
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", cfg.Server.Port)

	// 2. 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.String("env", env),
		zap.String("environment", cfg.App.Environment),
		zap.String("mode", cfg.Server.Mode),
	)

	// 3. 初始化数据库
	db, err := infra.InitDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}

	// 4. 迁移与种子数据
	if cfg.Database.AutoMigrate {
		if err := runMigrations(db); err != nil {
			logger.Fatal("数据库迁移失败", zap.Error(err))
		}
	} else {
		logger.Info("跳过自动迁移（配置已禁用）")
	}
	if err := user.EnsureSystemPermissions(context.Background(), db); err != nil {
		logger.Fatal("初始化系统权限失败", zap.Error(err))
	}
	if cfg.Database.SeedFile != "" && !cfg.IsProduction() {
		if err := seed.ApplyFile(context.Background(), db, cfg.Database.SeedFile); err != nil {
			logger.Fatal("写入种子数据失败", zap.Error(err), zap.String("file", cfg.Database.SeedFile))
		}
		logger.Info("种子数据已写入", zap.String("file", cfg.Database.SeedFile))
	}

	// 5. 可选依赖：Redis 缓存 + 审计队列，BI 嵌入
	rdb, err := infra.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Fatal("初始化 Redis 失败", zap.Error(err))
	}

	opts := api.Options{}
	var (
		queueClient  *queue.Client
		workerServer *worker.Server
	)
	if rdb != nil {
		opts.Redis = rdb
		queueClient = queue.NewClient(cfg.Redis)
		opts.AuditQueue = queueClient
	}
	if cfg.PowerBI.Enabled {
		client, err := report.NewPowerBIClient(cfg.PowerBI)
		if err != nil {
			logger.Fatal("初始化 Power BI 客户端失败", zap.Error(err))
		}
		opts.Embedder = client
	} else {
		logger.Warn("Power BI 未启用，报表嵌入接口将返回 501")
	}

	// 6. 组装容器与路由
	gin.SetMode(cfg.Server.Mode)

	container, err := api.NewAppContainer(db, cfg, opts)
	if err != nil {
		logger.Fatal("初始化应用容器失败", zap.Error(err))
	}
	router := api.SetupRouter(container)

	// 审计任务由 worker 消费后写库
	if queueClient != nil {
		workerServer = worker.NewServer(cfg.Redis, container.DBRecorder, logger.Get())
		if err := workerServer.Start(); err != nil {
			logger.Fatal("Worker 服务器启动失败", zap.Error(err))
		}
	}

	// 7. 创建 HTTP 服务器
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器启动失败", zap.Error(err))
		}
	}()

	// 8. 优雅关闭
	gracefulShutdown(server, shutdownDeps{
		container: container,
		worker:    workerServer,
		queue:     queueClient,
		redis:     rdb,
	})
}

// loadEnvFile 从工作目录向上查找 .env；找不到时只使用系统环境变量
func loadEnvFile() {
	path := findEnvFile()
	if path == "" {
		fmt.Println("未找到 .env 文件，将仅使用系统环境变量和 config/* 配置")
		return
	}
	if err := godotenv.Load(path); err != nil {
		fmt.Printf("加载环境变量文件 %s 失败: %v\n", path, err)
		return
	}
	fmt.Printf("已加载环境变量文件: %s\n", path)
}

func findEnvFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, ".env")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// runMigrations 执行数据库迁移
func runMigrations(db *gorm.DB) error {
	var models []any
	models = append(models, tenant.Models()...)
	models = append(models, user.Models()...)
	models = append(models, workspace.Models()...)
	models = append(models, report.Models()...)
	models = append(models, shop.Models()...)
	models = append(models, audit.Models()...)
	return infra.AutoMigrate(db, models...)
}

// shutdownDeps 关闭时需要释放的资源，可选项可以为 nil
type shutdownDeps struct {
	container *api.AppContainer
	worker    *worker.Server
	queue     *queue.Client
	redis     redis.UniversalClient
}

// gracefulShutdown 优雅关闭
func gracefulShutdown(server *http.Server, deps shutdownDeps) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 先停止接收请求，再排空审计队列
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}
	deps.container.Close()

	if deps.queue != nil {
		if err := deps.queue.Close(); err != nil {
			logger.Error("任务队列关闭异常", zap.Error(err))
		}
	}
	if deps.worker != nil {
		deps.worker.Shutdown()
	}
	if deps.redis != nil {
		if err := infra.CloseRedis(); err != nil {
			logger.Error("Redis 关闭异常", zap.Error(err))
		}
	}

	if err := infra.CloseDatabase(); err != nil {
		logger.Error("数据库关闭异常", zap.Error(err))
	}

	logger.Info("服务器已安全关闭")
}
