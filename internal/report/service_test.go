package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"customerportal/internal/common"
	"customerportal/internal/infra"
	"customerportal/internal/tenant"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const biReportID = "6f1c2a7e-1b2c-4d3e-8f90-123456789abc"

type testWorkspace struct {
	ID         int64
	Name       string
	CustomerID int64
}

func (testWorkspace) TableName() string { return "workspaces" }

type scopeFromDB struct{ db *gorm.DB }

func (s scopeFromDB) ExistsInScope(ctx context.Context, id int64) (bool, error) {
	q, err := tenant.Scoped(ctx, s.db.Model(&testWorkspace{}), "workspaces.customer_id")
	if err != nil {
		return false, err
	}
	var count int64
	err = q.Where("workspaces.id = ?", id).Count(&count).Error
	return count > 0, err
}

type fakeEmbedder struct {
	calls    int
	customer int64
	err      error
}

func (f *fakeEmbedder) Embed(_ context.Context, biReportID string, customerID int64) (*EmbedConfig, error) {
	f.calls++
	f.customer = customerID
	if f.err != nil {
		return nil, f.err
	}
	return &EmbedConfig{
		ReportID:         biReportID,
		EmbedToken:       "embed-token",
		EmbedURL:         FilteredEmbedURL("https://app.powerbi.com/reportEmbed?reportId="+biReportID, customerID),
		ExpiresInMinutes: 60,
	}, nil
}

type reportFixture struct {
	db       *gorm.DB
	svc      *Service
	embedder *fakeEmbedder
}

func setupReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), infra.GormConfig(gormLogger.Discard))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(tenant.Models()...))
	require.NoError(t, db.AutoMigrate(&testWorkspace{}))
	require.NoError(t, db.AutoMigrate(Models()...))

	require.NoError(t, db.Create(&tenant.Customer{ID: 7, Name: "Acme", Subdomain: "acme", IsActive: true}).Error)
	require.NoError(t, db.Create(&tenant.Customer{ID: 9, Name: "Globex", Subdomain: "globex", IsActive: true}).Error)
	require.NoError(t, db.Create(&testWorkspace{ID: 1, Name: "Acme Ops", CustomerID: 7}).Error)
	require.NoError(t, db.Create(&testWorkspace{ID: 42, Name: "Globex Ops", CustomerID: 9}).Error)
	require.NoError(t, db.Create(&Category{ID: 1, Name: "Operations", CustomerID: 7, DisplayOrder: 2}).Error)
	require.NoError(t, db.Create(&Category{ID: 2, Name: "Operations", CustomerID: 9, DisplayOrder: 1}).Error)

	embedder := &fakeEmbedder{}
	return &reportFixture{
		db:       db,
		svc:      NewService(db, scopeFromDB{db: db}, embedder),
		embedder: embedder,
	}
}

func tenantCtx(id int64) context.Context {
	return tenant.WithContext(context.Background(), tenant.RequestTenantContext{TenantID: id, Source: tenant.SourceToken})
}

func validInput() Input {
	return Input{
		Name:             "Monthly KPIs",
		Description:      "Shop KPIs by month",
		PowerBIReportID:  strings.ToUpper(biReportID),
		WorkspaceID:      1,
		ReportCategoryID: 1,
	}
}

func TestCreateAndGetReport(t *testing.T) {
	f := setupReportFixture(t)
	ctx := tenantCtx(7)

	v, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)
	assert.Equal(t, biReportID, v.PowerBIReportID)
	assert.Equal(t, "Operations", v.CategoryName)

	got, err := f.svc.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Monthly KPIs", got.Name)

	_, err = f.svc.Get(tenantCtx(9), v.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestReportValidation(t *testing.T) {
	f := setupReportFixture(t)
	ctx := tenantCtx(7)

	cases := map[string]func(in *Input){
		"empty name":        func(in *Input) { in.Name = " " },
		"long name":         func(in *Input) { in.Name = strings.Repeat("n", 101) },
		"long description":  func(in *Input) { in.Description = strings.Repeat("d", 501) },
		"bad guid":          func(in *Input) { in.PowerBIReportID = "not-a-guid" },
		"zero workspace":    func(in *Input) { in.WorkspaceID = 0 },
		"zero category":     func(in *Input) { in.ReportCategoryID = 0 },
		"foreign workspace": func(in *Input) { in.WorkspaceID = 42 },
		"foreign category":  func(in *Input) { in.ReportCategoryID = 2 },
		"missing category":  func(in *Input) { in.ReportCategoryID = 99 },
		"missing workspace": func(in *Input) { in.WorkspaceID = 99 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := f.svc.Create(ctx, in)
			assert.Equal(t, http.StatusBadRequest, common.HTTPStatusFor(err))
		})
	}
}

func TestListFiltersByCategoryAndTenant(t *testing.T) {
	f := setupReportFixture(t)
	_, err := f.svc.Create(tenantCtx(7), validInput())
	require.NoError(t, err)
	other := validInput()
	other.WorkspaceID, other.ReportCategoryID = 42, 2
	_, err = f.svc.Create(tenantCtx(9), other)
	require.NoError(t, err)

	all, err := f.svc.List(tenantCtx(7), "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	byCategory, err := f.svc.List(tenantCtx(7), "opera")
	require.NoError(t, err)
	assert.Len(t, byCategory, 1)

	none, err := f.svc.List(tenantCtx(7), "finance")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.svc.List(context.Background(), "")
	assert.ErrorIs(t, err, common.ErrTenantRequired)
}

func TestUpdateAndDeleteStayInTenant(t *testing.T) {
	f := setupReportFixture(t)
	v, err := f.svc.Create(tenantCtx(7), validInput())
	require.NoError(t, err)

	in := validInput()
	in.Name = "Renamed"
	_, err = f.svc.Update(tenantCtx(9), v.ID, in)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(tenantCtx(9), v.ID), common.ErrNotFound)

	updated, err := f.svc.Update(tenantCtx(7), v.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	require.NoError(t, f.svc.Delete(tenantCtx(7), v.ID))
	assert.ErrorIs(t, f.svc.Delete(tenantCtx(7), v.ID), common.ErrNotFound)
}

func TestEmbedConfigUsesCurrentTenant(t *testing.T) {
	f := setupReportFixture(t)
	v, err := f.svc.Create(tenantCtx(7), validInput())
	require.NoError(t, err)

	cfg, err := f.svc.EmbedConfig(tenantCtx(7), v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), f.embedder.customer)
	assert.True(t, strings.HasSuffix(cfg.EmbedURL, "&filter=Customer/Id eq 7"))

	_, err = f.svc.EmbedConfig(tenantCtx(9), v.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, 1, f.embedder.calls)
}

func TestEmbedConfigErrors(t *testing.T) {
	f := setupReportFixture(t)
	v, err := f.svc.Create(tenantCtx(7), validInput())
	require.NoError(t, err)

	f.embedder.err = errors.New("upstream 500")
	_, err = f.svc.EmbedConfig(tenantCtx(7), v.ID)
	assert.Equal(t, http.StatusBadGateway, common.HTTPStatusFor(err))

	unconfigured := NewService(f.db, scopeFromDB{db: f.db}, nil)
	_, err = unconfigured.EmbedConfig(tenantCtx(7), v.ID)
	assert.Equal(t, http.StatusNotImplemented, common.HTTPStatusFor(err))
}

func TestCategories(t *testing.T) {
	f := setupReportFixture(t)
	ctx := tenantCtx(7)

	created, err := f.svc.CreateCategory(ctx, CategoryInput{Name: "Finance", DisplayOrder: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.CustomerID)

	_, err = f.svc.CreateCategory(ctx, CategoryInput{Name: "finance"})
	assert.ErrorIs(t, err, common.ErrInvalidOperation)
	_, err = f.svc.CreateCategory(ctx, CategoryInput{Name: ""})
	assert.ErrorIs(t, err, common.ErrValidation)

	list, err := f.svc.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Finance", list[0].Name)
	assert.Equal(t, "Operations", list[1].Name)
}

func TestListForWorkspaces(t *testing.T) {
	f := setupReportFixture(t)
	_, err := f.svc.Create(tenantCtx(7), validInput())
	require.NoError(t, err)

	grouped, err := ListForWorkspaces(context.Background(), f.db, []int64{1, 42})
	require.NoError(t, err)
	assert.Len(t, grouped[1], 1)
	assert.Empty(t, grouped[42])
}
