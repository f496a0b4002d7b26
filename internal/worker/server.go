package worker

import (
	"context"

	"customerportal/internal/audit"
	"customerportal/internal/config"
	"customerportal/internal/infra/queue"
	"customerportal/internal/worker/handlers"
	"customerportal/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Server 后台任务服务器
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// NewServer 创建任务服务器，审计任务交给 recorder 落库
func NewServer(cfg config.RedisConfig, recorder audit.Recorder, logger *zap.Logger) *Server {
	srv := asynq.NewServer(
		queue.RedisOpt(cfg),
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				tasks.QueueAudit: 5,
				"default":        1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("任务执行失败",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()
	auditHandler := handlers.NewAuditHandler(recorder, logger)
	mux.HandleFunc(tasks.TypeAuditRecord, auditHandler.HandleAuditRecord)

	return &Server{
		server: srv,
		mux:    mux,
		logger: logger,
	}
}

// Start 非阻塞启动
func (s *Server) Start() error {
	s.logger.Info("Worker 服务器启动中 (后台)...")
	return s.server.Start(s.mux)
}

// Shutdown 停止 Worker 服务器
func (s *Server) Shutdown() {
	s.logger.Info("Worker 服务器停止中...")
	s.server.Shutdown()
}
