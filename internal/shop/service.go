package shop

import (
	"context"
	"errors"
	"sort"
	"strings"

	"customerportal/internal/common"
	"customerportal/internal/logger"
	"customerportal/internal/tenant"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MembershipChecker 租户成员关系查询
type MembershipChecker interface {
	IsMember(ctx context.Context, customerID int64, userID string) (bool, error)
}

// Service 门店与项目服务，所有读写限定在当前租户
type Service struct {
	db      *gorm.DB
	members MembershipChecker
}

// NewService 创建门店服务
func NewService(db *gorm.DB, members MembershipChecker) *Service {
	return &Service{db: db, members: members}
}

func (s *Service) scopedShops(ctx context.Context) (*gorm.DB, error) {
	return tenant.Scoped(ctx, s.db.Model(&Shop{}), "shops.customer_id")
}

func (s *Service) scopedPrograms(ctx context.Context) (*gorm.DB, error) {
	return tenant.Scoped(ctx, s.db.Model(&Program{}), "programs.customer_id")
}

// Search 按条件搜索门店
func (s *Service) Search(ctx context.Context, f SearchFilter) ([]View, error) {
	q, err := s.scopedShops(ctx)
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(f.SearchText); v != "" {
		q = q.Where("LOWER(shops.name) LIKE ?", likePattern(v))
	}
	if v := strings.TrimSpace(f.City); v != "" {
		q = q.Where("LOWER(shops.city) LIKE ?", likePattern(v))
	}
	if v := strings.TrimSpace(f.State); v != "" {
		q = q.Where("LOWER(shops.state) = ?", strings.ToLower(v))
	}
	if v := strings.TrimSpace(f.Program); v != "" {
		q = q.Where("EXISTS (SELECT 1 FROM shop_programs JOIN programs ON programs.id = shop_programs.program_id "+
			"WHERE shop_programs.shop_id = shops.id AND LOWER(programs.name) LIKE ?)", likePattern(v))
	}
	if f.StartDate != nil {
		q = q.Where("EXISTS (SELECT 1 FROM shop_kpis WHERE shop_kpis.shop_id = shops.id AND shop_kpis.recorded_at >= ?)", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("EXISTS (SELECT 1 FROM shop_kpis WHERE shop_kpis.shop_id = shops.id AND shop_kpis.recorded_at <= ?)", *f.EndDate)
	}

	var shops []Shop
	if err := q.Order("shops.name ASC, shops.id ASC").Find(&shops).Error; err != nil {
		return nil, err
	}
	return s.views(ctx, shops)
}

// Get 获取门店，不存在或跨租户返回 404
func (s *Service) Get(ctx context.Context, id int64) (*View, error) {
	shop, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, []Shop{*shop})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Create 在当前租户下创建门店
func (s *Service) Create(ctx context.Context, in Input) (*View, error) {
	customerID, err := tenant.CurrentTenantID(ctx)
	if err != nil {
		return nil, err
	}
	if err := normalizeInput(&in); err != nil {
		return nil, err
	}
	shop := &Shop{
		Name:       in.Name,
		Source:     in.Source,
		PostalCode: in.PostalCode,
		City:       in.City,
		State:      in.State,
		Country:    in.Country,
		IsActive:   in.IsActive == nil || *in.IsActive,
		CustomerID: customerID,
	}
	if err := s.db.WithContext(ctx).Create(shop).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, shop.ID)
}

// Update 更新门店基础信息
func (s *Service) Update(ctx context.Context, id int64, in Input) (*View, error) {
	shop, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := normalizeInput(&in); err != nil {
		return nil, err
	}
	updates := map[string]any{
		"name":        in.Name,
		"source":      in.Source,
		"postal_code": in.PostalCode,
		"city":        in.City,
		"state":       in.State,
		"country":     in.Country,
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if err := s.db.WithContext(ctx).Model(shop).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete 删除门店及其关联数据
func (s *Service) Delete(ctx context.Context, id int64) error {
	shop, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&ShopProgram{}, &ShopUser{}, &Kpi{}} {
			if err := tx.Where("shop_id = ?", shop.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&Shop{}, shop.ID).Error
	})
}

// SetActive 启用/停用门店
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	shop, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(shop).Update("is_active", active).Error
}

// AssignPrograms 以给定集合替换门店项目，项目必须属于当前租户
func (s *Service) AssignPrograms(ctx context.Context, id int64, programIDs []int64) error {
	shop, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	programIDs = uniqueInt64(programIDs)
	if len(programIDs) > 0 {
		q, err := s.scopedPrograms(ctx)
		if err != nil {
			return err
		}
		var count int64
		if err := q.Where("programs.id IN ?", programIDs).Count(&count).Error; err != nil {
			return err
		}
		if int(count) != len(programIDs) {
			return common.Validation("one or more programs were not found")
		}
	}

	now := s.db.NowFunc()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("shop_id = ?", shop.ID).Delete(&ShopProgram{}).Error; err != nil {
			return err
		}
		if len(programIDs) == 0 {
			return nil
		}
		rows := make([]ShopProgram, 0, len(programIDs))
		for _, pid := range programIDs {
			rows = append(rows, ShopProgram{ShopID: shop.ID, ProgramID: pid, AssignedAt: now, IsActive: true})
		}
		return tx.Create(&rows).Error
	})
	if err == nil {
		logger.WithContext(ctx).Info("门店项目已更新", zap.Int64("shop_id", shop.ID), zap.Int("programs", len(programIDs)))
	}
	return err
}

// AssignUsers 以给定集合替换门店用户，用户必须是当前租户成员
func (s *Service) AssignUsers(ctx context.Context, id int64, userIDs []string) error {
	shop, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	userIDs = uniqueStrings(userIDs)
	for _, uid := range userIDs {
		ok, err := s.members.IsMember(ctx, shop.CustomerID, uid)
		if err != nil {
			return err
		}
		if !ok {
			return common.Validation("user %s is not a member of this customer", uid)
		}
	}

	now := s.db.NowFunc()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("shop_id = ?", shop.ID).Delete(&ShopUser{}).Error; err != nil {
			return err
		}
		if len(userIDs) == 0 {
			return nil
		}
		rows := make([]ShopUser, 0, len(userIDs))
		for _, uid := range userIDs {
			rows = append(rows, ShopUser{ShopID: shop.ID, UserID: uid, AssignedAt: now})
		}
		return tx.Create(&rows).Error
	})
}

// UserIDs 门店已分配的用户
func (s *Service) UserIDs(ctx context.Context, id int64) ([]string, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	ids := []string{}
	err := s.db.WithContext(ctx).Model(&ShopUser{}).
		Where("shop_id = ?", id).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// KPIs 门店指标，按时间排序
func (s *Service) KPIs(ctx context.Context, id int64) ([]Kpi, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	kpis := []Kpi{}
	err := s.db.WithContext(ctx).
		Where("shop_id = ?", id).
		Order("recorded_at ASC, id ASC").
		Find(&kpis).Error
	return kpis, err
}

// ListPrograms 列出当前租户的项目
func (s *Service) ListPrograms(ctx context.Context) ([]Program, error) {
	q, err := s.scopedPrograms(ctx)
	if err != nil {
		return nil, err
	}
	programs := []Program{}
	err = q.Order("programs.name ASC").Find(&programs).Error
	return programs, err
}

// CreateProgram 在当前租户下创建项目，名称租户内唯一
func (s *Service) CreateProgram(ctx context.Context, in ProgramInput) (*Program, error) {
	customerID, err := tenant.CurrentTenantID(ctx)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := common.ValidateStruct(in); err != nil {
		return nil, err
	}
	q, err := s.scopedPrograms(ctx)
	if err != nil {
		return nil, err
	}
	var count int64
	if err := q.Where("LOWER(programs.name) = ?", strings.ToLower(in.Name)).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, common.InvalidOperation("program %q already exists", in.Name)
	}
	p := &Program{Name: in.Name, Description: in.Description, IsActive: true, CustomerID: customerID}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) find(ctx context.Context, id int64) (*Shop, error) {
	q, err := s.scopedShops(ctx)
	if err != nil {
		return nil, err
	}
	var shop Shop
	if err := q.Where("shops.id = ?", id).First(&shop).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("shop with ID %d not found", id)
		}
		return nil, err
	}
	return &shop, nil
}

// views 批量加载项目名称与指标
func (s *Service) views(ctx context.Context, shops []Shop) ([]View, error) {
	out := make([]View, 0, len(shops))
	if len(shops) == 0 {
		return out, nil
	}
	ids := make([]int64, 0, len(shops))
	for _, sh := range shops {
		ids = append(ids, sh.ID)
	}

	type programRow struct {
		ShopID int64
		Name   string
	}
	var programRows []programRow
	err := s.db.WithContext(ctx).Table("shop_programs").
		Select("shop_programs.shop_id, programs.name").
		Joins("JOIN programs ON programs.id = shop_programs.program_id").
		Where("shop_programs.shop_id IN ?", ids).
		Scan(&programRows).Error
	if err != nil {
		return nil, err
	}
	names := make(map[int64][]string, len(shops))
	for _, r := range programRows {
		names[r.ShopID] = append(names[r.ShopID], r.Name)
	}

	var kpis []Kpi
	if err := s.db.WithContext(ctx).Where("shop_id IN ?", ids).Order("recorded_at ASC, id ASC").Find(&kpis).Error; err != nil {
		return nil, err
	}
	byShop := make(map[int64][]Kpi, len(shops))
	for _, k := range kpis {
		byShop[k.ShopID] = append(byShop[k.ShopID], k)
	}

	for _, sh := range shops {
		programNames := names[sh.ID]
		sort.Strings(programNames)
		if programNames == nil {
			programNames = []string{}
		}
		shopKpis := byShop[sh.ID]
		if shopKpis == nil {
			shopKpis = []Kpi{}
		}
		out = append(out, View{
			ID:           sh.ID,
			Name:         sh.Name,
			Source:       sh.Source,
			PostalCode:   sh.PostalCode,
			City:         sh.City,
			State:        sh.State,
			Country:      sh.Country,
			IsActive:     sh.IsActive,
			ProgramNames: programNames,
			KPIs:         shopKpis,
		})
	}
	return out, nil
}

func normalizeInput(in *Input) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Source = strings.TrimSpace(in.Source)
	in.PostalCode = strings.TrimSpace(in.PostalCode)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.TrimSpace(in.State)
	in.Country = strings.TrimSpace(in.Country)
	return common.ValidateStruct(in)
}

func likePattern(v string) string {
	return "%" + strings.ToLower(v) + "%"
}

func uniqueInt64(in []int64) []int64 {
	seen := make(map[int64]struct{}, len(in))
	out := make([]int64, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
