package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"chunkvault/backend/common"
	"chunkvault/backend/library/hashutil"
	"chunkvault/backend/library/storage"
	"chunkvault/backend/library/token"
	"chunkvault/backend/model"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// completionCheckParallelism bounds the per-chunk presence probes issued
// against a node while verifying completion.
const completionCheckParallelism = 8

type UploadService struct {
	Tokens *token.Store
	Nodes  *storage.Registry
}

func NewUploadService(tokens *token.Store, nodes *storage.Registry) *UploadService {
	return &UploadService{Tokens: tokens, Nodes: nodes}
}

type RegisterRequest struct {
	FileName    string
	FileSize    int64
	MimeType    string
	FolderID    int64
	ChunkHashes []string
}

type ChunkToken struct {
	Hash  string `json:"hash"`
	Token string `json:"token"`
}

type RegisterResult struct {
	FileID               string       `json:"file_id"`
	ChunkSize            int64        `json:"chunk_size"`
	ChunksToUpload       []ChunkToken `json:"chunks_to_upload"`
	ChunksAlreadyPresent []string     `json:"chunks_already_present"`
}

// Register creates the pending file record for a full chunk-hash manifest and
// hands back an upload token for every hash the index has no bytes for yet.
//
// Hashes already known to the index are only *detected* here: the file still
// records the full manifest, and completion will still demand the bytes on
// this file's own node. Registration never promotes a file by itself.
func (s *UploadService) Register(ctx context.Context, userID int64, req RegisterRequest) (*RegisterResult, error) {
	if req.FileName == "" || req.FileSize <= 0 {
		return nil, ErrBadManifest
	}
	if len(req.ChunkHashes) == 0 {
		return nil, ErrEmptyManifest
	}
	for _, h := range req.ChunkHashes {
		if !hashutil.IsValidDigest(h) {
			return nil, fmt.Errorf("%w: bad digest %q", ErrBadManifest, h)
		}
	}
	expected := (req.FileSize + common.ChunkSize - 1) / common.ChunkSize
	if int64(len(req.ChunkHashes)) != expected {
		return nil, fmt.Errorf("%w: %d bytes needs %d chunks, manifest has %d",
			ErrBadManifest, req.FileSize, expected, len(req.ChunkHashes))
	}

	unique := uniqueHashes(req.ChunkHashes)
	existing, err := model.FindExistingChunkHashes(unique)
	if err != nil {
		return nil, err
	}

	node, err := s.Nodes.Select()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeUnavailable, err)
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	file := &model.File{
		Id:        common.GetUUID(),
		UserId:    userID,
		FolderId:  req.FolderID,
		FileName:  req.FileName,
		FileSize:  req.FileSize,
		MimeType:  mimeType,
		ChunkSize: common.ChunkSize,
		NodeId:    node.ID,
		Status:    model.FileStatusPending,
	}
	if err := file.SetChunkHashes(req.ChunkHashes); err != nil {
		return nil, err
	}
	if err := model.CreateFile(file); err != nil {
		return nil, err
	}

	result := &RegisterResult{
		FileID:               file.Id,
		ChunkSize:            file.ChunkSize,
		ChunksToUpload:       []ChunkToken{},
		ChunksAlreadyPresent: []string{},
	}
	for _, h := range unique {
		if existing[h] {
			result.ChunksAlreadyPresent = append(result.ChunksAlreadyPresent, h)
			continue
		}
		tok, err := s.Tokens.Issue(file.Id, h, token.ActionUpload, common.TokenTTL)
		if err != nil {
			return nil, err
		}
		result.ChunksToUpload = append(result.ChunksToUpload, ChunkToken{Hash: h, Token: tok})
	}

	common.SysLog(fmt.Sprintf("registered file %s (%d bytes, %d chunks, %d to upload) on node %s",
		file.Id, file.FileSize, len(req.ChunkHashes), len(result.ChunksToUpload), node.ID))
	return result, nil
}

// WriteChunk stores one chunk's bytes under the token that authorized it.
// The order matters: token gate, then hash gate, then node write, then a
// re-read of the stored object. The chunk record is only persisted after all
// of that, so any failure leaves no record and the client simply retries.
func (s *UploadService) WriteChunk(ctx context.Context, userID int64, fileID string, hash string, tok string, data []byte) (*model.Chunk, error) {
	if !s.Tokens.Validate(tok, fileID, hash, token.ActionUpload) {
		return nil, ErrTokenInvalid
	}

	if computed := hashutil.SumBytes(data); computed != hash {
		return nil, fmt.Errorf("%w: claimed %s, computed %s", ErrHashMismatch, hash, computed)
	}

	file, err := model.GetFileByID(fileID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	if len(data) == 0 || int64(len(data)) > file.ChunkSize {
		return nil, fmt.Errorf("%w: payload of %d bytes", ErrBadManifest, len(data))
	}

	node, err := s.resolveOrAssignNode(file)
	if err != nil {
		return nil, err
	}

	key := storage.ChunkKey(fileID, hash)
	if err := node.Store.PutObject(ctx, key, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: put %s on %s: %v", ErrNodeUnavailable, key, node.ID, err)
	}

	// Durability check: the object must be retrievable, and its stored bytes
	// must still hash to the key we wrote it under.
	rc, err := node.Store.GetObject(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: re-read %s on %s: %v", ErrNodeUnavailable, key, node.ID, err)
	}
	stored, err := hashutil.SumReader(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: re-read %s on %s: %v", ErrNodeUnavailable, key, node.ID, err)
	}
	if stored != hash {
		return nil, fmt.Errorf("%w: stored bytes hash to %s", ErrHashMismatch, stored)
	}

	chunk := &model.Chunk{
		Hash:     hash,
		FileId:   fileID,
		NodeId:   node.ID,
		UserId:   userID,
		Size:     int64(len(data)),
		MimeType: file.MimeType,
	}
	if err := model.CreateChunk(chunk); err != nil {
		return nil, err
	}
	return chunk, nil
}

// resolveOrAssignNode looks up the file's recorded node and only selects a
// fresh one when no assignment exists yet (first write of a file registered
// before node selection, or a migration gap).
func (s *UploadService) resolveOrAssignNode(file *model.File) (*storage.Node, error) {
	if file.NodeId != "" {
		node, ok := s.Nodes.Resolve(file.NodeId)
		if !ok {
			return nil, fmt.Errorf("%w: unknown node %s", ErrNodeUnavailable, file.NodeId)
		}
		return node, nil
	}

	node, err := s.Nodes.Select()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeUnavailable, err)
	}
	assigned, err := model.AssignFileNode(file.Id, node.ID)
	if err != nil {
		return nil, err
	}
	if !assigned {
		// Lost the race to a concurrent writer; honor its assignment.
		reloaded, err := model.GetFileByID(file.Id, false)
		if err != nil {
			return nil, err
		}
		racedNode, ok := s.Nodes.Resolve(reloaded.NodeId)
		if !ok {
			return nil, fmt.Errorf("%w: unknown node %s", ErrNodeUnavailable, reloaded.NodeId)
		}
		return racedNode, nil
	}
	file.NodeId = node.ID
	return node, nil
}

type CompleteResult struct {
	UsedBytes       int64 `json:"used_bytes"`
	AlreadyComplete bool  `json:"already_complete"`
}

// Complete verifies every manifest hash twice - a chunk record in the
// database AND a retrievable object on the file's node - and promotes the
// file only when both hold for all of them. A single unverified hash fails
// the whole completion and the file stays pending; the error names exactly
// the hashes to re-send.
func (s *UploadService) Complete(ctx context.Context, userID int64, fileID string) (*CompleteResult, error) {
	file, err := model.GetFileForUser(fileID, userID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	if file.Status == model.FileStatusComplete {
		return &CompleteResult{UsedBytes: file.FileSize, AlreadyComplete: true}, nil
	}

	manifest := file.ChunkHashes()
	if len(manifest) == 0 {
		return nil, ErrEmptyManifest
	}
	unique := uniqueHashes(manifest)

	recorded, err := model.FindFileChunkHashes(fileID, false)
	if err != nil {
		return nil, err
	}

	node, ok := s.Nodes.Resolve(file.NodeId)
	if !ok {
		return nil, fmt.Errorf("%w: unknown node %s", ErrNodeUnavailable, file.NodeId)
	}

	// Physical presence probes run in parallel but the verdict is aggregated
	// only after every probe settles: completion is all-or-nothing.
	var mu sync.Mutex
	unverified := make(map[string]bool)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(completionCheckParallelism)
	for _, h := range unique {
		hash := h
		if !recorded[hash] {
			unverified[hash] = true
			continue
		}
		g.Go(func() error {
			size, err := node.Store.StatObject(gctx, storage.ChunkKey(fileID, hash))
			if err != nil || size == 0 {
				mu.Lock()
				unverified[hash] = true
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(unverified) > 0 {
		missing := make([]string, 0, len(unverified))
		for _, h := range unique {
			if unverified[h] {
				missing = append(missing, h)
			}
		}
		return nil, &MissingChunksError{Missing: missing}
	}

	promoted, err := model.PromoteFileToComplete(fileID)
	if err != nil {
		return nil, err
	}
	if promoted {
		if err := model.AddUserUsage(userID, file.FileSize); err != nil {
			return nil, err
		}
		if file.FolderId != 0 {
			ids, err := model.FolderIDsToRoot(file.FolderId)
			if err != nil {
				common.SysError("file count propagation failed for file " + fileID + ": " + err.Error())
			} else if err := model.AdjustFolderFileCount(ids, 1); err != nil {
				common.SysError("file count propagation failed for file " + fileID + ": " + err.Error())
			}
		}
		common.SysLog(fmt.Sprintf("file %s completed, %d bytes verified on node %s", fileID, file.FileSize, node.ID))
	}
	return &CompleteResult{UsedBytes: file.FileSize, AlreadyComplete: !promoted}, nil
}

// Delete soft-deletes the file and its chunk records and releases the user's
// quota. The physical objects stay on the node until a purge.
func (s *UploadService) Delete(ctx context.Context, userID int64, fileID string) error {
	file, err := model.GetFileForUser(fileID, userID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFileNotFound
		}
		return err
	}

	if err := model.SoftDeleteFile(fileID); err != nil {
		return err
	}
	if err := model.SoftDeleteFileChunks(fileID); err != nil {
		return err
	}

	if file.Status == model.FileStatusComplete {
		if err := model.AddUserUsage(userID, -file.FileSize); err != nil {
			return err
		}
		if file.FolderId != 0 {
			if ids, err := model.FolderIDsToRoot(file.FolderId); err == nil {
				_ = model.AdjustFolderFileCount(ids, -1)
			}
		}
	}
	return nil
}

// Purge hard-deletes the record and removes the physical objects. Objects go
// first: if the node rejects a delete the records survive and the purge can
// be retried.
func (s *UploadService) Purge(ctx context.Context, userID int64, fileID string) error {
	file, err := model.GetFileForUser(fileID, userID, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFileNotFound
		}
		return err
	}

	if node, ok := s.Nodes.Resolve(file.NodeId); ok {
		for _, h := range uniqueHashes(file.ChunkHashes()) {
			if err := node.Store.DeleteObject(ctx, storage.ChunkKey(fileID, h)); err != nil {
				return fmt.Errorf("%w: delete %s on %s: %v", ErrNodeUnavailable, h, node.ID, err)
			}
		}
	}

	if !file.Deleted && file.Status == model.FileStatusComplete {
		if err := model.AddUserUsage(userID, -file.FileSize); err != nil {
			return err
		}
		if file.FolderId != 0 {
			if ids, err := model.FolderIDsToRoot(file.FolderId); err == nil {
				_ = model.AdjustFolderFileCount(ids, -1)
			}
		}
	}

	if err := model.HardDeleteFileChunks(fileID); err != nil {
		return err
	}
	return model.HardDeleteFile(fileID)
}

func uniqueHashes(hashes []string) []string {
	seen := make(map[string]bool, len(hashes))
	unique := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if !seen[h] {
			seen[h] = true
			unique = append(unique, h)
		}
	}
	return unique
}
