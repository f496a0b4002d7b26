package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"customerportal/internal/auth"
	"customerportal/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWorkspaceGUID = "0b6c4a55-9a1b-4c3d-8e2f-aaaaaaaaaaaa"
	testTenantGUID    = "1c7d5b66-0a2c-4d4e-9f30-bbbbbbbbbbbb"
	testClientGUID    = "2d8e6c77-1b3d-4e5f-a041-cccccccccccc"
	testDatasetGUID   = "3e9f7d88-2c4e-4f60-b152-dddddddddddd"
)

// fakePowerBI 模拟 Azure AD 令牌端点与 Power BI REST API
func fakePowerBI(t *testing.T) (*httptest.Server, *atomic.Int32, *generateTokenRequest) {
	t.Helper()
	var tokenCalls atomic.Int32
	captured := &generateTokenRequest{}

	mux := http.NewServeMux()
	mux.HandleFunc("/"+testTenantGUID+"/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "https://analysis.windows.net/powerbi/api/.default", r.Form.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"aad-token","token_type":"Bearer","expires_in":3600}`))
	})
	reportPath := "/v1.0/myorg/groups/" + testWorkspaceGUID + "/reports/" + biReportID
	mux.HandleFunc(reportPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer aad-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(powerBIReport{
			ID:        biReportID,
			EmbedURL:  "https://app.powerbi.com/reportEmbed?reportId=" + biReportID,
			DatasetID: testDatasetGUID,
		})
	})
	mux.HandleFunc(reportPath+"/GenerateToken", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer aad-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		_, _ = w.Write([]byte(`{"token":"embed-token","tokenId":"t1","expiration":"2030-01-01T00:00:00Z"}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &tokenCalls, captured
}

func testPowerBIConfig(serverURL string) config.PowerBIConfig {
	return config.PowerBIConfig{
		Enabled:            true,
		WorkspaceID:        testWorkspaceGUID,
		TenantID:           testTenantGUID,
		ClientID:           testClientGUID,
		ClientSecret:       "secret",
		AuthorityURI:       serverURL,
		ResourceURI:        "https://analysis.windows.net/powerbi/api",
		EmbedURLBase:       "https://app.powerbi.com",
		APIBaseURL:         serverURL + "/v1.0/myorg",
		TokenExpiryMinutes: 30,
	}
}

func TestPowerBIEmbedFlow(t *testing.T) {
	server, tokenCalls, captured := fakePowerBI(t)
	client, err := NewPowerBIClient(testPowerBIConfig(server.URL))
	require.NoError(t, err)

	cfg, err := client.Embed(context.Background(), biReportID, 7)
	require.NoError(t, err)
	assert.Equal(t, "embed-token", cfg.EmbedToken)
	assert.Equal(t, 30, cfg.ExpiresInMinutes)
	assert.Equal(t, "https://app.powerbi.com/reportEmbed?reportId="+biReportID+"&filter=Customer/Id eq 7", cfg.EmbedURL)

	assert.Equal(t, "View", captured.AccessLevel)
	assert.False(t, captured.AllowSaveAs)
	require.Len(t, captured.Identities, 1)
	assert.Equal(t, "Customer_7", captured.Identities[0].Username)
	assert.Equal(t, []string{auth.RoleCustomerViewer}, captured.Identities[0].Roles)
	assert.Equal(t, []string{testDatasetGUID}, captured.Identities[0].Datasets)

	_, err = client.Embed(context.Background(), biReportID, 9)
	require.NoError(t, err)
	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestPowerBIEmbedUpstreamError(t *testing.T) {
	server, _, _ := fakePowerBI(t)
	client, err := NewPowerBIClient(testPowerBIConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "9a9a9a9a-0000-4000-8000-000000000000", 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestNewPowerBIClientRejectsInvalidConfig(t *testing.T) {
	_, err := NewPowerBIClient(config.PowerBIConfig{})
	require.Error(t, err)

	cfg := testPowerBIConfig("https://login.example.com")
	cfg.WorkspaceID = "not-a-guid"
	_, err = NewPowerBIClient(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workspaceid")
}

func TestEmbedURLHelpers(t *testing.T) {
	assert.Equal(t, "Customer_12", EffectiveIdentity(12))
	assert.Equal(t, "https://x/embed?filter=Customer/Id eq 3", FilteredEmbedURL("https://x/embed", 3))
	assert.True(t, strings.HasSuffix(FilteredEmbedURL("https://x/embed?a=1", 3), "?a=1&filter=Customer/Id eq 3"))
	assert.Equal(t, "https://login.example.com/t/oauth2/v2.0/token",
		TokenURL(config.PowerBIConfig{AuthorityURI: "https://login.example.com/", TenantID: "t"}))
}
