package model

import (
	"encoding/json"
	"time"
)

// File lifecycle. A file is created pending at manifest registration and is
// promoted to complete exactly once, after every chunk in its manifest has
// both a database record and a verified object on its assigned node.
const (
	FileStatusPending  = 1
	FileStatusComplete = 2
)

// File owns the ordered chunk-hash manifest that defines reconstruction
// order: chunk i covers bytes [i*ChunkSize, i*ChunkSize+len) of the file.
// The manifest is immutable once the file is complete.
type File struct {
	Id              string     `json:"id" gorm:"primaryKey;size:32"`
	UserId          int64      `json:"user_id" gorm:"index"`
	FolderId        int64      `json:"folder_id" gorm:"index;default:0"`
	FileName        string     `json:"file_name" gorm:"index;size:255"`
	FileSize        int64      `json:"file_size" gorm:"not null"`
	MimeType        string     `json:"mime_type" gorm:"size:100"`
	ChunkSize       int64      `json:"chunk_size" gorm:"not null"`
	ChunkHashesJSON string     `json:"-" gorm:"type:text"`
	NodeId          string     `json:"node_id" gorm:"size:64;index"`
	Status          int        `json:"status" gorm:"type:int;default:1;index"`
	Deleted         bool       `json:"deleted" gorm:"index;default:false"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	CreatedAt       int64      `json:"created_at" gorm:"bigint"`
}

func (f *File) ChunkHashes() []string {
	var hashes []string
	if f.ChunkHashesJSON == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(f.ChunkHashesJSON), &hashes); err != nil {
		return nil
	}
	return hashes
}

func (f *File) SetChunkHashes(hashes []string) error {
	encoded, err := json.Marshal(hashes)
	if err != nil {
		return err
	}
	f.ChunkHashesJSON = string(encoded)
	return nil
}

func CreateFile(f *File) error {
	if f.CreatedAt == 0 {
		f.CreatedAt = time.Now().Unix()
	}
	return DB.Create(f).Error
}

// GetFileByID loads a file record. Soft-deleted rows are filtered here, not
// by any query interception: callers state explicitly whether they want them.
func GetFileByID(id string, includeDeleted bool) (*File, error) {
	var file File
	query := DB.Where("id = ?", id)
	if !includeDeleted {
		query = query.Where("deleted = ?", false)
	}
	if err := query.First(&file).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

func GetFileForUser(id string, userId int64, includeDeleted bool) (*File, error) {
	var file File
	query := DB.Where("id = ? AND user_id = ?", id, userId)
	if !includeDeleted {
		query = query.Where("deleted = ?", false)
	}
	if err := query.First(&file).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

func GetFilesByUser(userId int64, startIdx int, num int, includeDeleted bool) ([]*File, error) {
	var files []*File
	query := DB.Where("user_id = ?", userId)
	if !includeDeleted {
		query = query.Where("deleted = ?", false)
	}
	err := query.Order("created_at DESC").Offset(startIdx).Limit(num).Find(&files).Error
	return files, err
}

// AssignFileNode records the node assignment, but only when none exists yet.
// The assignment is fixed for the file's lifetime.
func AssignFileNode(id string, nodeId string) (bool, error) {
	res := DB.Model(&File{}).
		Where("id = ? AND (node_id = ? OR node_id IS NULL)", id, "").
		Update("node_id", nodeId)
	return res.RowsAffected == 1, res.Error
}

// PromoteFileToComplete flips pending -> complete. The status guard in the
// WHERE clause makes the promotion exactly-once under concurrent callers: the
// return value reports whether this call did the flip.
func PromoteFileToComplete(id string) (bool, error) {
	res := DB.Model(&File{}).
		Where("id = ? AND status = ?", id, FileStatusPending).
		Update("status", FileStatusComplete)
	return res.RowsAffected == 1, res.Error
}

func SoftDeleteFile(id string) error {
	now := time.Now()
	return DB.Model(&File{}).
		Where("id = ? AND deleted = ?", id, false).
		Updates(map[string]interface{}{"deleted": true, "deleted_at": &now}).Error
}

// HardDeleteFile removes the record entirely. Physical object removal is the
// caller's job; the record goes last so a failed purge can be retried.
func HardDeleteFile(id string) error {
	return DB.Unscoped().Where("id = ?", id).Delete(&File{}).Error
}
