package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"catalog-admin/internal/domain"
	"catalog-admin/internal/feature/user"
)

func saveUsers(tx *gorm.DB, users []domain.User) error {
	if len(users) == 0 {
		return nil
	}
	rows := make([]user.UserModel, 0, len(users))
	for _, u := range users {
		rows = append(rows, user.FromDomain(u))
	}
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
}

func loadUsers(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	var rows []user.UserModel
	if err := db.WithContext(ctx).Order("created_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.ToDomain())
	}
	return out, nil
}
