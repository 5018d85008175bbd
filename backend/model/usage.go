package model

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserUsage tracks how many verified bytes a user currently stores. It is
// incremented when a file completes and decremented when one is deleted.
type UserUsage struct {
	UserId    int64 `json:"user_id" gorm:"primaryKey"`
	UsedBytes int64 `json:"used_bytes" gorm:"default:0"`
	UpdatedAt int64 `json:"updated_at" gorm:"bigint"`
}

// AddUserUsage atomically adds delta (which may be negative) to the user's
// counter, creating the row on first use.
func AddUserUsage(userId int64, delta int64) error {
	now := time.Now().Unix()
	return DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"used_bytes": gorm.Expr("used_bytes + ?", delta),
			"updated_at": now,
		}),
	}).Create(&UserUsage{UserId: userId, UsedBytes: delta, UpdatedAt: now}).Error
}

func GetUserUsage(userId int64) (int64, error) {
	var usage UserUsage
	err := DB.Where("user_id = ?", userId).First(&usage).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, err
	}
	return usage.UsedBytes, nil
}
