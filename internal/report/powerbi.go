package report

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"customerportal/internal/auth"
	"customerportal/internal/config"
	"customerportal/internal/metrics"
	"customerportal/pkg/httputil"

	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultPowerBIAPIBase = "https://api.powerbi.com/v1.0/myorg"
	defaultEmbedMinutes   = 60
)

// PowerBIClient 以服务主体身份调用 Power BI REST API
type PowerBIClient struct {
	cfg     config.PowerBIConfig
	client  *httputil.Client
	apiBase string
	minutes int
}

// NewPowerBIClient 创建 Power BI 客户端，配置非法时返回错误
// 访问令牌通过 OAuth2 客户端凭据流获取并自动缓存刷新
func NewPowerBIClient(cfg config.PowerBIConfig) (*PowerBIClient, error) {
	if !cfg.Enabled {
		return nil, errors.New("Power BI 集成未启用")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     TokenURL(cfg),
		Scopes:       []string{strings.TrimRight(cfg.ResourceURI, "/") + "/.default"},
	}
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	client := httputil.NewClient(
		httputil.WithTimeout(timeout),
		httputil.WithHTTPClient(cc.Client(context.Background())),
		httputil.WithRetries(1),
	)
	return newPowerBIClient(cfg, client), nil
}

func newPowerBIClient(cfg config.PowerBIConfig, client *httputil.Client) *PowerBIClient {
	apiBase := strings.TrimRight(cfg.APIBaseURL, "/")
	if apiBase == "" {
		apiBase = defaultPowerBIAPIBase
	}
	minutes := cfg.TokenExpiryMinutes
	if minutes <= 0 {
		minutes = defaultEmbedMinutes
	}
	return &PowerBIClient{cfg: cfg, client: client, apiBase: apiBase, minutes: minutes}
}

// TokenURL Azure AD 令牌端点
func TokenURL(cfg config.PowerBIConfig) string {
	return strings.TrimRight(cfg.AuthorityURI, "/") + "/" + cfg.TenantID + "/oauth2/v2.0/token"
}

// EffectiveIdentity 行级安全身份名
func EffectiveIdentity(customerID int64) string {
	return fmt.Sprintf("Customer_%d", customerID)
}

// FilteredEmbedURL 在嵌入地址上追加租户过滤条件
func FilteredEmbedURL(embedURL string, customerID int64) string {
	sep := "&"
	if !strings.Contains(embedURL, "?") {
		sep = "?"
	}
	return fmt.Sprintf("%s%sfilter=Customer/Id eq %d", embedURL, sep, customerID)
}

type powerBIReport struct {
	ID        string `json:"id"`
	EmbedURL  string `json:"embedUrl"`
	DatasetID string `json:"datasetId"`
}

type generateTokenIdentity struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	Datasets []string `json:"datasets"`
}

type generateTokenRequest struct {
	AccessLevel    string                  `json:"accessLevel"`
	AllowSaveAs    bool                    `json:"allowSaveAs"`
	LifetimeInMins int                     `json:"lifetimeInMinutes,omitempty"`
	Identities     []generateTokenIdentity `json:"identities"`
}

type generateTokenResponse struct {
	Token      string    `json:"token"`
	TokenID    string    `json:"tokenId"`
	Expiration time.Time `json:"expiration"`
}

// Embed 获取报表嵌入地址并生成仅可查看的嵌入令牌
func (p *PowerBIClient) Embed(ctx context.Context, biReportID string, customerID int64) (*EmbedConfig, error) {
	start := time.Now()
	defer func() {
		metrics.EmbedRequestDuration.Observe(time.Since(start).Seconds())
	}()

	reportURL := fmt.Sprintf("%s/groups/%s/reports/%s", p.apiBase, url.PathEscape(p.cfg.WorkspaceID), url.PathEscape(biReportID))

	var rep powerBIReport
	if err := p.client.GetJSON(ctx, reportURL, &rep); err != nil {
		return nil, fmt.Errorf("获取报表信息失败: %w", err)
	}
	if rep.EmbedURL == "" {
		return nil, fmt.Errorf("报表 %s 未返回嵌入地址", biReportID)
	}

	dataset := rep.DatasetID
	if dataset == "" {
		dataset = biReportID
	}
	req := generateTokenRequest{
		AccessLevel:    "View",
		AllowSaveAs:    false,
		LifetimeInMins: p.minutes,
		Identities: []generateTokenIdentity{{
			Username: EffectiveIdentity(customerID),
			Roles:    []string{auth.RoleCustomerViewer},
			Datasets: []string{dataset},
		}},
	}
	var tok generateTokenResponse
	if err := p.client.PostJSON(ctx, reportURL+"/GenerateToken", req, &tok); err != nil {
		return nil, fmt.Errorf("生成嵌入令牌失败: %w", err)
	}
	if tok.Token == "" {
		return nil, fmt.Errorf("报表 %s 未返回嵌入令牌", biReportID)
	}

	return &EmbedConfig{
		ReportID:         biReportID,
		EmbedToken:       tok.Token,
		EmbedURL:         FilteredEmbedURL(rep.EmbedURL, customerID),
		ExpiresInMinutes: p.minutes,
		Expiration:       tok.Expiration,
	}, nil
}
