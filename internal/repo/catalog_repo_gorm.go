package repo

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"catalog-admin/internal/catalog"
	"catalog-admin/internal/domain"
	"catalog-admin/internal/feature/app"
	"catalog-admin/internal/feature/audit"
	"catalog-admin/internal/feature/category"
	"catalog-admin/internal/feature/user"
)

// CatalogRepo mirrors committed catalog change sets into SQL. It implements
// catalog.Persister.
type CatalogRepo struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewCatalogRepo(db *gorm.DB, log *zap.Logger) *CatalogRepo {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogRepo{db: db, log: log}
}

func (r *CatalogRepo) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&category.CategoryModel{},
		&app.AppModel{},
		&user.UserModel{},
		&audit.AuditModel{},
	)
}

// Apply writes cs in one database transaction. Deletes run first so a freed slug or
// package can be reused by an upsert in the same change set.
func (r *CatalogRepo) Apply(ctx context.Context, cs catalog.ChangeSet) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(cs.DeletedApps) > 0 {
			if err := tx.Where("id IN ?", cs.DeletedApps).Delete(&app.AppModel{}).Error; err != nil {
				return fmt.Errorf("delete apps: %w", err)
			}
		}
		if len(cs.DeletedCategories) > 0 {
			if err := tx.Where("id IN ?", cs.DeletedCategories).Delete(&category.CategoryModel{}).Error; err != nil {
				return fmt.Errorf("delete categories: %w", err)
			}
		}
		if err := saveCategories(tx, cs.Categories); err != nil {
			return fmt.Errorf("save categories: %w", err)
		}
		if err := saveApps(tx, cs.Apps); err != nil {
			return fmt.Errorf("save apps: %w", err)
		}
		if err := saveUsers(tx, cs.Users); err != nil {
			return fmt.Errorf("save users: %w", err)
		}
		if err := appendAudit(tx, cs.Audit); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.log.Debug("change set applied",
		zap.Int("categories", len(cs.Categories)),
		zap.Int("apps", len(cs.Apps)),
		zap.Int("users", len(cs.Users)),
		zap.Int("deleted_categories", len(cs.DeletedCategories)),
		zap.Int("deleted_apps", len(cs.DeletedApps)),
		zap.Int("audit", len(cs.Audit)),
	)
	return nil
}

func saveCategories(tx *gorm.DB, cats []domain.Category) error {
	if len(cats) == 0 {
		return nil
	}
	rows := make([]category.CategoryModel, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, category.FromDomain(c))
	}
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
}

func saveApps(tx *gorm.DB, apps []domain.App) error {
	if len(apps) == 0 {
		return nil
	}
	rows := make([]app.AppModel, 0, len(apps))
	for _, a := range apps {
		rows = append(rows, app.FromDomain(a))
	}
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
}

func appendAudit(tx *gorm.DB, entries []domain.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]audit.AuditModel, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, audit.FromDomain(e))
	}
	return tx.Create(&rows).Error
}

// LoadState reads everything needed to warm the in-memory catalog.
func (r *CatalogRepo) LoadState(ctx context.Context) (catalog.State, error) {
	var st catalog.State
	db := r.db.WithContext(ctx)

	var cats []category.CategoryModel
	if err := db.Order("created_at asc, id asc").Find(&cats).Error; err != nil {
		return st, fmt.Errorf("load categories: %w", err)
	}
	for _, m := range cats {
		st.Categories = append(st.Categories, m.ToDomain())
	}

	var apps []app.AppModel
	if err := db.Order("created_at asc, id asc").Find(&apps).Error; err != nil {
		return st, fmt.Errorf("load apps: %w", err)
	}
	for _, m := range apps {
		st.Apps = append(st.Apps, m.ToDomain())
	}

	users, err := loadUsers(ctx, r.db)
	if err != nil {
		return st, fmt.Errorf("load users: %w", err)
	}
	st.Users = users

	var entries []audit.AuditModel
	if err := db.Order("seq asc, id asc").Find(&entries).Error; err != nil {
		return st, fmt.Errorf("load audit log: %w", err)
	}
	for _, m := range entries {
		st.Audit = append(st.Audit, m.ToDomain())
	}
	return st, nil
}
