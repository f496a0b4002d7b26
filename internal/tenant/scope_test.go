package tenant

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"customerportal/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type scopedRecord struct {
	ID         int64
	CustomerID int64
	Name       string
}

func seedScopedRecords(t *testing.T, db *gorm.DB, tenants int) {
	t.Helper()
	require.NoError(t, db.AutoMigrate(&scopedRecord{}))
	for i := 1; i <= tenants; i++ {
		require.NoError(t, db.Create(&Customer{ID: int64(i), Name: fmt.Sprintf("c%d", i), Subdomain: fmt.Sprintf("c%d", i), IsActive: true}).Error)
		require.NoError(t, db.Create(&scopedRecord{CustomerID: int64(i), Name: fmt.Sprintf("record-%d", i)}).Error)
	}
}

func TestScopedFailsClosedWithoutTenant(t *testing.T) {
	db := setupTenantTestDB(t)
	seedScopedRecords(t, db, 2)

	_, err := Scoped(context.Background(), db, "customer_id")
	assert.ErrorIs(t, err, common.ErrTenantRequired)

	adminCtx := WithContext(context.Background(), RequestTenantContext{AdminPortal: true, Source: SourceAdminPortal})
	_, err = Scoped(adminCtx, db, "customer_id")
	assert.ErrorIs(t, err, common.ErrTenantRequired)
}

func TestScopedFiltersToResolvedTenant(t *testing.T) {
	db := setupTenantTestDB(t)
	seedScopedRecords(t, db, 3)

	ctx := WithContext(context.Background(), RequestTenantContext{TenantID: 2, Subdomain: "c2", Source: SourceSubdomain})
	q, err := Scoped(ctx, db, "customer_id")
	require.NoError(t, err)

	var rows []scopedRecord
	require.NoError(t, q.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].CustomerID)
}

func TestScopedHidesInactiveTenantData(t *testing.T) {
	db := setupTenantTestDB(t)
	seedScopedRecords(t, db, 2)
	require.NoError(t, db.Model(&Customer{}).Where("id = ?", 2).Update("is_active", false).Error)

	ctx := WithContext(context.Background(), RequestTenantContext{TenantID: 2, Source: SourceToken})
	q, err := Scoped(ctx, db, "customer_id")
	require.NoError(t, err)

	var count int64
	require.NoError(t, q.Model(&scopedRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestScopedConcurrentRequestsSeeOnlyTheirTenant(t *testing.T) {
	const tenants = 100
	db := setupTenantTestDB(t)
	seedScopedRecords(t, db, tenants)

	var wg sync.WaitGroup
	errs := make(chan error, tenants)
	for i := 1; i <= tenants; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			ctx := WithContext(context.Background(), RequestTenantContext{TenantID: id, Source: SourceSubdomain})

			q, err := Scoped(ctx, db, "customer_id")
			if err != nil {
				errs <- err
				return
			}
			var rows []scopedRecord
			if err := q.Find(&rows).Error; err != nil {
				errs <- err
				return
			}
			seen, _ := FromContext(ctx)
			if seen.TenantID != id {
				errs <- fmt.Errorf("context for %d reported tenant %d", id, seen.TenantID)
				return
			}
			for _, r := range rows {
				if r.CustomerID != id {
					errs <- fmt.Errorf("tenant %d observed row of tenant %d", id, r.CustomerID)
					return
				}
			}
			if len(rows) != 1 {
				errs <- fmt.Errorf("tenant %d observed %d rows", id, len(rows))
			}
		}(int64(i))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
