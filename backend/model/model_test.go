package model

import (
	"path/filepath"
	"testing"

	"chunkvault/backend/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	common.SQLitePath = filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, InitDB())
	t.Cleanup(func() {
		_ = CloseDB()
	})
}

func TestFile_ManifestRoundTrip(t *testing.T) {
	setupTestDB(t)

	file := &File{
		Id:        common.GetUUID(),
		UserId:    7,
		FileName:  "report.pdf",
		FileSize:  9000000,
		ChunkSize: 4194304,
		NodeId:    "node-1",
		Status:    FileStatusPending,
	}
	require.NoError(t, file.SetChunkHashes([]string{"h0", "h1", "h2"}))
	require.NoError(t, CreateFile(file))

	loaded, err := GetFileByID(file.Id, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"h0", "h1", "h2"}, loaded.ChunkHashes())
	assert.Equal(t, FileStatusPending, loaded.Status)
	assert.NotZero(t, loaded.CreatedAt)
}

func TestFile_SoftDeleteFiltering(t *testing.T) {
	setupTestDB(t)

	file := &File{Id: common.GetUUID(), UserId: 1, FileName: "a.bin", FileSize: 1, ChunkSize: 1, Status: FileStatusComplete}
	require.NoError(t, CreateFile(file))
	require.NoError(t, SoftDeleteFile(file.Id))

	_, err := GetFileByID(file.Id, false)
	assert.Error(t, err, "soft-deleted rows are invisible to normal reads")

	loaded, err := GetFileByID(file.Id, true)
	require.NoError(t, err)
	assert.True(t, loaded.Deleted)
	assert.NotNil(t, loaded.DeletedAt)
}

func TestFile_PromoteExactlyOnce(t *testing.T) {
	setupTestDB(t)

	file := &File{Id: common.GetUUID(), UserId: 1, FileName: "a.bin", FileSize: 1, ChunkSize: 1, Status: FileStatusPending}
	require.NoError(t, CreateFile(file))

	first, err := PromoteFileToComplete(file.Id)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := PromoteFileToComplete(file.Id)
	require.NoError(t, err)
	assert.False(t, second, "only one caller wins the promotion")

	loaded, err := GetFileByID(file.Id, false)
	require.NoError(t, err)
	assert.Equal(t, FileStatusComplete, loaded.Status)
}

func TestFile_AssignNodeOnlyOnce(t *testing.T) {
	setupTestDB(t)

	file := &File{Id: common.GetUUID(), UserId: 1, FileName: "a.bin", FileSize: 1, ChunkSize: 1, Status: FileStatusPending}
	require.NoError(t, CreateFile(file))

	assigned, err := AssignFileNode(file.Id, "node-1")
	require.NoError(t, err)
	assert.True(t, assigned)

	assigned, err = AssignFileNode(file.Id, "node-2")
	require.NoError(t, err)
	assert.False(t, assigned, "existing assignment must not be overwritten")

	loaded, _ := GetFileByID(file.Id, false)
	assert.Equal(t, "node-1", loaded.NodeId)
}

func TestChunk_DedupDetection(t *testing.T) {
	setupTestDB(t)

	require.NoError(t, CreateChunk(&Chunk{Hash: "aaa", FileId: "f1", NodeId: "n1", UserId: 1, Size: 10}))
	require.NoError(t, CreateChunk(&Chunk{Hash: "bbb", FileId: "f1", NodeId: "n1", UserId: 1, Size: 10}))

	existing, err := FindExistingChunkHashes([]string{"aaa", "bbb", "ccc"})
	require.NoError(t, err)
	assert.True(t, existing["aaa"])
	assert.True(t, existing["bbb"])
	assert.False(t, existing["ccc"])
}

func TestChunk_DedupIgnoresDeleted(t *testing.T) {
	setupTestDB(t)

	require.NoError(t, CreateChunk(&Chunk{Hash: "aaa", FileId: "f1", NodeId: "n1", UserId: 1, Size: 10}))
	require.NoError(t, SoftDeleteFileChunks("f1"))

	existing, err := FindExistingChunkHashes([]string{"aaa"})
	require.NoError(t, err)
	assert.False(t, existing["aaa"])
}

func TestChunk_DuplicateWriteKeepsOneRecord(t *testing.T) {
	setupTestDB(t)

	require.NoError(t, CreateChunk(&Chunk{Hash: "aaa", FileId: "f1", NodeId: "n1", UserId: 1, Size: 10}))
	require.NoError(t, CreateChunk(&Chunk{Hash: "aaa", FileId: "f1", NodeId: "n1", UserId: 1, Size: 10}))

	var count int64
	require.NoError(t, DB.Model(&Chunk{}).Where("file_id = ? AND hash = ?", "f1", "aaa").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// The same hash under a different file is a distinct record.
	require.NoError(t, CreateChunk(&Chunk{Hash: "aaa", FileId: "f2", NodeId: "n1", UserId: 2, Size: 10}))
	require.NoError(t, DB.Model(&Chunk{}).Where("hash = ?", "aaa").Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestFolder_ChainToRootAndCounts(t *testing.T) {
	setupTestDB(t)

	root := &Folder{UserId: 1, Name: "root"}
	require.NoError(t, CreateFolder(root))
	child := &Folder{UserId: 1, Name: "child", ParentId: root.Id}
	require.NoError(t, CreateFolder(child))

	ids, err := FolderIDsToRoot(child.Id)
	require.NoError(t, err)
	assert.Equal(t, []int64{child.Id, root.Id}, ids)

	require.NoError(t, AdjustFolderFileCount(ids, 1))
	loaded, err := GetFolderByID(root.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.FileCount)
}

func TestUserUsage_Accumulates(t *testing.T) {
	setupTestDB(t)

	require.NoError(t, AddUserUsage(9, 100))
	require.NoError(t, AddUserUsage(9, 50))
	require.NoError(t, AddUserUsage(9, -30))

	used, err := GetUserUsage(9)
	require.NoError(t, err)
	assert.Equal(t, int64(120), used)

	used, err = GetUserUsage(12345)
	require.NoError(t, err)
	assert.Equal(t, int64(0), used, "unknown user reads as zero usage")
}
