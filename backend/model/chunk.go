package model

import (
	"time"

	"gorm.io/gorm/clause"
)

// Chunk is one ownership record of stored chunk bytes. Records are per
// (file, hash) even when identical content exists under another file: the
// dedup index only detects hash reuse at registration time, it never shares
// physical objects across files.
type Chunk struct {
	Id        int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Hash      string `json:"hash" gorm:"size:64;index;uniqueIndex:idx_chunk_file_hash,priority:2"`
	FileId    string `json:"file_id" gorm:"size:32;index;uniqueIndex:idx_chunk_file_hash,priority:1"`
	NodeId    string `json:"node_id" gorm:"size:64"`
	UserId    int64  `json:"user_id" gorm:"index"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mime_type" gorm:"size:100"`
	Deleted   bool   `json:"deleted" gorm:"index;default:false"`
	CreatedAt int64  `json:"created_at" gorm:"bigint"`
}

// CreateChunk inserts the record, silently keeping the existing row when the
// same (file, hash) was already recorded. A client retry of the same chunk
// therefore leaves the table unchanged.
func CreateChunk(c *Chunk) error {
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().Unix()
	}
	return DB.Clauses(clause.OnConflict{DoNothing: true}).Create(c).Error
}

// FindExistingChunkHashes returns the subset of hashes that already have a
// live chunk record under any owner. This powers dedup detection at
// registration time.
func FindExistingChunkHashes(hashes []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(hashes) == 0 {
		return existing, nil
	}
	var found []string
	err := DB.Model(&Chunk{}).
		Where("hash IN ? AND deleted = ?", hashes, false).
		Distinct().
		Pluck("hash", &found).Error
	if err != nil {
		return nil, err
	}
	for _, h := range found {
		existing[h] = true
	}
	return existing, nil
}

// FindFileChunkHashes returns the distinct hashes recorded for one file.
func FindFileChunkHashes(fileId string, includeDeleted bool) (map[string]bool, error) {
	query := DB.Model(&Chunk{}).Where("file_id = ?", fileId)
	if !includeDeleted {
		query = query.Where("deleted = ?", false)
	}
	var found []string
	if err := query.Distinct().Pluck("hash", &found).Error; err != nil {
		return nil, err
	}
	recorded := make(map[string]bool, len(found))
	for _, h := range found {
		recorded[h] = true
	}
	return recorded, nil
}

func GetChunkForFile(fileId string, hash string, includeDeleted bool) (*Chunk, error) {
	var chunk Chunk
	query := DB.Where("file_id = ? AND hash = ?", fileId, hash)
	if !includeDeleted {
		query = query.Where("deleted = ?", false)
	}
	if err := query.First(&chunk).Error; err != nil {
		return nil, err
	}
	return &chunk, nil
}

func SoftDeleteFileChunks(fileId string) error {
	return DB.Model(&Chunk{}).
		Where("file_id = ? AND deleted = ?", fileId, false).
		Update("deleted", true).Error
}

func HardDeleteFileChunks(fileId string) error {
	return DB.Unscoped().Where("file_id = ?", fileId).Delete(&Chunk{}).Error
}
