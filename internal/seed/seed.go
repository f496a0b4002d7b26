// Package seed 从 yaml 文件加载开发环境初始数据
// 所有记录按自然键（子域名、邮箱、名称）幂等写入，重复执行不会产生重复数据
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"customerportal/internal/auth"
	"customerportal/internal/logger"
	"customerportal/internal/report"
	"customerportal/internal/shop"
	"customerportal/internal/tenant"
	"customerportal/internal/user"
	"customerportal/internal/workspace"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// File 种子文件结构
type File struct {
	Customers []Customer `yaml:"customers"`
	Users     []User     `yaml:"users"`
}

// Customer 租户及其下属数据
type Customer struct {
	Name       string      `yaml:"name"`
	Subdomain  string      `yaml:"subdomain"`
	Inactive   bool        `yaml:"inactive"`
	Categories []Category  `yaml:"categories"`
	Workspaces []Workspace `yaml:"workspaces"`
	Programs   []string    `yaml:"programs"`
	Shops      []Shop      `yaml:"shops"`
}

// Category 报表分类
type Category struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	DisplayOrder int    `yaml:"display_order"`
}

// Workspace 工作区及报表
type Workspace struct {
	Name       string   `yaml:"name"`
	SystemName string   `yaml:"system_name"`
	Reports    []Report `yaml:"reports"`
}

// Report 报表
type Report struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	PowerBIReportID string `yaml:"powerbi_report_id"`
	Category        string `yaml:"category"`
}

// Shop 门店
type Shop struct {
	Name     string   `yaml:"name"`
	City     string   `yaml:"city"`
	State    string   `yaml:"state"`
	Country  string   `yaml:"country"`
	Programs []string `yaml:"programs"`
}

// User 用户，Customers 为所属租户子域名
type User struct {
	Email          string   `yaml:"email"`
	Name           string   `yaml:"name"`
	Password       string   `yaml:"password"`
	IsCCIUser      bool     `yaml:"is_cci_user"`
	IsCustomerUser bool     `yaml:"is_customer_user"`
	Roles          []string `yaml:"roles"`
	Customers      []string `yaml:"customers"`
}

// LoadFile 读取并解析种子文件
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取种子文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析种子内容
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析种子文件失败: %w", err)
	}
	return &f, nil
}

// Apply 在单个事务内写入种子数据，要求内置角色已存在
func Apply(ctx context.Context, db *gorm.DB, f *File) error {
	if f == nil {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customerIDs := make(map[string]int64, len(f.Customers))
		for _, c := range f.Customers {
			id, err := applyCustomer(tx, c)
			if err != nil {
				return err
			}
			customerIDs[tenant.NormalizeSubdomain(c.Subdomain)] = id
		}
		for _, u := range f.Users {
			if err := applyUser(tx, u, customerIDs); err != nil {
				return err
			}
		}
		logger.Info("种子数据已加载",
			zap.Int("customers", len(f.Customers)),
			zap.Int("users", len(f.Users)),
		)
		return nil
	})
}

// ApplyFile 读取并写入种子文件
func ApplyFile(ctx context.Context, db *gorm.DB, path string) error {
	f, err := LoadFile(path)
	if err != nil {
		return err
	}
	return Apply(ctx, db, f)
}

func applyCustomer(tx *gorm.DB, c Customer) (int64, error) {
	sub, err := tenant.ValidateSubdomain(c.Subdomain)
	if err != nil {
		return 0, fmt.Errorf("customer %q: %w", c.Name, err)
	}

	var cust tenant.Customer
	err = tx.Where("subdomain = ?", sub).First(&cust).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		cust = tenant.Customer{Name: c.Name, Subdomain: sub, IsActive: !c.Inactive}
		if err := tx.Create(&cust).Error; err != nil {
			return 0, fmt.Errorf("create customer %q: %w", sub, err)
		}
	case err != nil:
		return 0, err
	}

	categories := make(map[string]int64, len(c.Categories))
	for _, cat := range c.Categories {
		row := report.Category{CustomerID: cust.ID, Name: cat.Name}
		if err := tx.Where("customer_id = ? AND name = ?", cust.ID, cat.Name).
			Attrs(report.Category{Description: cat.Description, DisplayOrder: cat.DisplayOrder}).
			FirstOrCreate(&row).Error; err != nil {
			return 0, fmt.Errorf("category %q: %w", cat.Name, err)
		}
		categories[strings.ToLower(cat.Name)] = row.ID
	}

	for _, ws := range c.Workspaces {
		if err := applyWorkspace(tx, cust.ID, ws, categories); err != nil {
			return 0, err
		}
	}

	programs := make(map[string]int64, len(c.Programs))
	for _, name := range c.Programs {
		row := shop.Program{CustomerID: cust.ID, Name: name}
		if err := tx.Where("customer_id = ? AND name = ?", cust.ID, name).
			Attrs(shop.Program{IsActive: true}).
			FirstOrCreate(&row).Error; err != nil {
			return 0, fmt.Errorf("program %q: %w", name, err)
		}
		programs[strings.ToLower(name)] = row.ID
	}

	for _, s := range c.Shops {
		if err := applyShop(tx, cust.ID, s, programs); err != nil {
			return 0, err
		}
	}
	return cust.ID, nil
}

func applyWorkspace(tx *gorm.DB, customerID int64, ws Workspace, categories map[string]int64) error {
	systemName := ws.SystemName
	if systemName == "" {
		systemName = ws.Name
	}
	row := workspace.Workspace{CustomerID: customerID, Name: ws.Name}
	if err := tx.Where("customer_id = ? AND name = ?", customerID, ws.Name).
		Attrs(workspace.Workspace{SystemName: systemName, IsActive: true}).
		FirstOrCreate(&row).Error; err != nil {
		return fmt.Errorf("workspace %q: %w", ws.Name, err)
	}

	for _, r := range ws.Reports {
		categoryID, ok := categories[strings.ToLower(r.Category)]
		if !ok {
			return fmt.Errorf("report %q: unknown category %q", r.Name, r.Category)
		}
		rep := report.Report{WorkspaceID: row.ID, Name: r.Name}
		if err := tx.Where("workspace_id = ? AND name = ?", row.ID, r.Name).
			Attrs(report.Report{
				Description:      r.Description,
				PowerBIReportID:  strings.ToLower(r.PowerBIReportID),
				ReportCategoryID: categoryID,
			}).
			FirstOrCreate(&rep).Error; err != nil {
			return fmt.Errorf("report %q: %w", r.Name, err)
		}
	}
	return nil
}

func applyShop(tx *gorm.DB, customerID int64, s Shop, programs map[string]int64) error {
	row := shop.Shop{CustomerID: customerID, Name: s.Name}
	if err := tx.Where("customer_id = ? AND name = ?", customerID, s.Name).
		Attrs(shop.Shop{City: s.City, State: s.State, Country: s.Country, Source: "seed", IsActive: true}).
		FirstOrCreate(&row).Error; err != nil {
		return fmt.Errorf("shop %q: %w", s.Name, err)
	}

	now := time.Now()
	for _, name := range s.Programs {
		programID, ok := programs[strings.ToLower(name)]
		if !ok {
			return fmt.Errorf("shop %q: unknown program %q", s.Name, name)
		}
		link := shop.ShopProgram{ShopID: row.ID, ProgramID: programID, AssignedAt: now, IsActive: true}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
			return err
		}
	}
	return nil
}

func applyUser(tx *gorm.DB, u User, customerIDs map[string]int64) error {
	email := user.NormalizeEmail(u.Email)
	if email == "" {
		return errors.New("seed user without email")
	}

	var row user.User
	err := tx.Where("email = ?", email).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return fmt.Errorf("user %q: %w", email, err)
		}
		row = user.User{
			ID:             uuid.NewString(),
			Email:          email,
			Name:           u.Name,
			PasswordHash:   hash,
			IsCCIUser:      u.IsCCIUser,
			IsCustomerUser: u.IsCustomerUser,
			Status:         user.StatusActive,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create user %q: %w", email, err)
		}
	case err != nil:
		return err
	}

	for _, roleName := range u.Roles {
		var role user.Role
		if err := tx.Where("LOWER(name) = ?", strings.ToLower(roleName)).First(&role).Error; err != nil {
			return fmt.Errorf("user %q: role %q: %w", email, roleName, err)
		}
		link := user.UserRole{UserID: row.ID, RoleID: role.ID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
			return err
		}
	}

	for _, sub := range u.Customers {
		customerID, ok := customerIDs[tenant.NormalizeSubdomain(sub)]
		if !ok {
			return fmt.Errorf("user %q: unknown customer %q", email, sub)
		}
		link := tenant.CustomerUser{CustomerID: customerID, UserID: row.ID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
			return err
		}
	}
	return nil
}
