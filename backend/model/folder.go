package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Folder exists here only as the target of file-count propagation at
// completion time; browsing and folder management live outside this service.
type Folder struct {
	Id        int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	ParentId  int64  `json:"parent_id" gorm:"index;default:0"`
	UserId    int64  `json:"user_id" gorm:"index"`
	Name      string `json:"name" gorm:"size:255"`
	FileCount int64  `json:"file_count" gorm:"default:0"`
	Deleted   bool   `json:"deleted" gorm:"index;default:false"`
	CreatedAt int64  `json:"created_at" gorm:"bigint"`
}

const maxFolderDepth = 64

// FolderIDsToRoot collects the folder id and every ancestor up to the root.
// Depth is capped so a corrupted parent cycle cannot loop forever.
func FolderIDsToRoot(folderId int64) ([]int64, error) {
	var ids []int64
	current := folderId
	for depth := 0; current != 0; depth++ {
		if depth >= maxFolderDepth {
			return nil, fmt.Errorf("folder chain too deep starting at %d", folderId)
		}
		var folder Folder
		if err := DB.Select("id", "parent_id").Where("id = ?", current).First(&folder).Error; err != nil {
			return nil, err
		}
		ids = append(ids, folder.Id)
		current = folder.ParentId
	}
	return ids, nil
}

// AdjustFolderFileCount adds delta to the file count of every listed folder.
func AdjustFolderFileCount(ids []int64, delta int64) error {
	if len(ids) == 0 {
		return nil
	}
	return DB.Model(&Folder{}).
		Where("id IN ?", ids).
		Update("file_count", gorm.Expr("file_count + ?", delta)).Error
}

func CreateFolder(f *Folder) error {
	if f.CreatedAt == 0 {
		f.CreatedAt = time.Now().Unix()
	}
	return DB.Create(f).Error
}

func GetFolderByID(id int64) (*Folder, error) {
	var folder Folder
	if err := DB.Where("id = ?", id).First(&folder).Error; err != nil {
		return nil, err
	}
	return &folder, nil
}
