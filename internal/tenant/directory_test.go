package tenant

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"customerportal/internal/common"
	"customerportal/internal/infra"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func setupTenantTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), infra.GormConfig(gormLogger.Discard))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(Models()...))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestServiceCreateNormalizesSubdomain(t *testing.T) {
	ctx := context.Background()
	db := setupTenantTestDB(t)
	svc := NewService(db, NewDirectory(db, nil))

	c, err := svc.Create(ctx, CreateCustomerInput{Name: "Acme", Subdomain: "  ACME "})
	require.NoError(t, err)
	assert.Equal(t, "acme", c.Subdomain)
	assert.True(t, c.IsActive)
	assert.NotZero(t, c.ID)
}

func TestValidateSubdomain(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{" Acme ", "acme", true},
		{"north-east", "north-east", true},
		{"", "", false},
		{"-acme", "", false},
		{"acme-", "", false},
		{"acme.corp", "", false},
		{"acme_corp", "", false},
		{"admin", "", false},
	}
	for _, tc := range cases {
		got, err := ValidateSubdomain(tc.raw)
		if !tc.ok {
			assert.Equal(t, http.StatusBadRequest, common.HTTPStatusFor(err), tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got)
	}
}

func TestServiceCreateRejectsDuplicateSubdomain(t *testing.T) {
	ctx := context.Background()
	db := setupTenantTestDB(t)
	svc := NewService(db, NewDirectory(db, nil))

	first, err := svc.Create(ctx, CreateCustomerInput{Name: "Acme", Subdomain: "acme"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateCustomerInput{Name: "Acme Again", Subdomain: "Acme"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, common.HTTPStatusFor(err))

	// 停用后子域名仍被占用
	_, err = svc.SetStatus(ctx, first.ID, false)
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateCustomerInput{Name: "Squatter", Subdomain: "acme"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, common.HTTPStatusFor(err))
}

func TestServiceCreateValidatesSubdomain(t *testing.T) {
	ctx := context.Background()
	db := setupTenantTestDB(t)
	svc := NewService(db, NewDirectory(db, nil))

	for _, sub := range []string{"", "has space", "-leading", "trailing-", "under_score", "admin", "a.b"} {
		_, err := svc.Create(ctx, CreateCustomerInput{Name: "X", Subdomain: sub})
		require.Error(t, err, sub)
		assert.Equal(t, http.StatusBadRequest, common.HTTPStatusFor(err), sub)
	}
}

func TestServiceUpdateSubdomainConflict(t *testing.T) {
	ctx := context.Background()
	db := setupTenantTestDB(t)
	svc := NewService(db, NewDirectory(db, nil))

	_, err := svc.Create(ctx, CreateCustomerInput{Name: "Acme", Subdomain: "acme"})
	require.NoError(t, err)
	globex, err := svc.Create(ctx, CreateCustomerInput{Name: "Globex", Subdomain: "globex"})
	require.NoError(t, err)

	taken := "acme"
	_, err = svc.Update(ctx, globex.ID, UpdateCustomerInput{Subdomain: &taken})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, common.HTTPStatusFor(err))

	same := "GLOBEX"
	name := "Globex Corp"
	updated, err := svc.Update(ctx, globex.ID, UpdateCustomerInput{Name: &name, Subdomain: &same})
	require.NoError(t, err)
	assert.Equal(t, "Globex Corp", updated.Name)
	assert.Equal(t, "globex", updated.Subdomain)
}

func TestServiceListHidesInactiveByDefault(t *testing.T) {
	ctx := context.Background()
	db := setupTenantTestDB(t)
	svc := NewService(db, NewDirectory(db, nil))

	_, err := svc.Create(ctx, CreateCustomerInput{Name: "Acme", Subdomain: "acme"})
	require.NoError(t, err)
	dormant, err := svc.Create(ctx, CreateCustomerInput{Name: "Dormant", Subdomain: "dormant"})
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, dormant.ID, false)
	require.NoError(t, err)

	active, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "acme", active[0].Subdomain)

	all, err := svc.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.Get(ctx, 999)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDirectoryCacheInvalidatedOnDeactivation(t *testing.T) {
	ctx := context.Background()
	db := setupTenantTestDB(t)
	dir := NewDirectory(db, NewInMemorySubdomainCache(time.Minute))
	svc := NewService(db, dir)

	acme, err := svc.Create(ctx, CreateCustomerInput{Name: "Acme", Subdomain: "acme"})
	require.NoError(t, err)

	found, err := dir.FindActiveBySubdomain(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, acme.ID, found.ID)

	_, err = svc.SetStatus(ctx, acme.ID, false)
	require.NoError(t, err)

	found, err = dir.FindActiveBySubdomain(ctx, "acme")
	require.NoError(t, err)
	assert.Nil(t, found)

	first, err := dir.FirstActive(ctx)
	require.NoError(t, err)
	assert.Nil(t, first)
}

func TestDirectoryMembership(t *testing.T) {
	ctx := context.Background()
	db := setupTenantTestDB(t)
	dir := NewDirectory(db, nil)
	svc := NewService(db, dir)

	acme, err := svc.Create(ctx, CreateCustomerInput{Name: "Acme", Subdomain: "acme"})
	require.NoError(t, err)

	ok, err := dir.IsMember(ctx, acme.ID, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, dir.AddMember(ctx, acme.ID, "user-1"))
	err = dir.AddMember(ctx, acme.ID, "user-1")
	assert.ErrorIs(t, err, common.ErrInvalidOperation)

	ok, err = dir.IsMember(ctx, acme.ID, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ids, err := dir.MemberIDs(ctx, acme.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1"}, ids)

	require.NoError(t, dir.RemoveMember(ctx, acme.ID, "user-1"))
	assert.ErrorIs(t, dir.RemoveMember(ctx, acme.ID, "user-1"), common.ErrNotFound)
}

func TestInMemorySubdomainCacheExpires(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemorySubdomainCache(10 * time.Millisecond)
	cache.Set(ctx, "acme", &Customer{ID: 7, Subdomain: "acme", IsActive: true})

	got, ok := cache.Get(ctx, "acme")
	require.True(t, ok)
	assert.Equal(t, int64(7), got.ID)

	time.Sleep(20 * time.Millisecond)
	_, ok = cache.Get(ctx, "acme")
	assert.False(t, ok)
}
