package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// APIResponseSize API 响应体大小（字节）
	APIResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_api_response_size_bytes",
			Help:    "API 响应体大小分布",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000},
		},
		[]string{"method", "path"},
	)
)

// 租户解析与授权指标
var (
	// TenantResolutionsTotal 租户解析结果
	// outcome: skipped, token, admin_portal, subdomain, dev_fallback, not_found, error
	TenantResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_tenant_resolutions_total",
			Help: "租户解析结果计数",
		},
		[]string{"outcome"},
	)

	// SubdomainCacheTotal 子域名缓存命中情况
	SubdomainCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_subdomain_cache_total",
			Help: "子域名缓存命中/未命中计数",
		},
		[]string{"result"}, // hit, miss
	)

	// AuthorizationDecisionsTotal 授权判定结果
	// reason: unauthenticated, operator, token_tenant, membership, denied, error
	AuthorizationDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_authorization_decisions_total",
			Help: "授权判定计数",
		},
		[]string{"policy", "reason"},
	)

	// LoginAttemptsTotal 登录尝试
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_login_attempts_total",
			Help: "登录尝试计数",
		},
		[]string{"result"},
	)
)

// 报表嵌入指标
var (
	// EmbedRequestsTotal 嵌入配置请求
	EmbedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_embed_requests_total",
			Help: "报表嵌入配置请求计数",
		},
		[]string{"status"},
	)

	// EmbedRequestDuration 调用 BI 服务耗时（秒）
	EmbedRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "portal_embed_request_duration_seconds",
			Help:    "BI 服务调用耗时分布",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)
)

// 审计指标
var (
	// AuditRecordsTotal 审计记录写入结果
	AuditRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_audit_records_total",
			Help: "审计记录写入计数",
		},
		[]string{"sink", "status"}, // sink: queue, db
	)
)

// RecordTenantResolution 记录租户解析结果
func RecordTenantResolution(outcome string) {
	TenantResolutionsTotal.WithLabelValues(outcome).Inc()
}

// RecordAuthorization 记录授权判定
func RecordAuthorization(policy, reason string) {
	AuthorizationDecisionsTotal.WithLabelValues(policy, reason).Inc()
}

// 数据库指标
var (
	// DBQueriesTotal SQL 执行结果
	// result: ok, error, slow
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_db_queries_total",
			Help: "SQL 执行计数",
		},
		[]string{"result"},
	)
)
