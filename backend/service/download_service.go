package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"chunkvault/backend/common"
	"chunkvault/backend/library/storage"
	"chunkvault/backend/library/stream"
	"chunkvault/backend/library/token"
	"chunkvault/backend/model"

	"gorm.io/gorm"
)

var ErrChunkNotFound = errors.New("chunk not found for this file")

type DownloadService struct {
	Tokens *token.Store
	Nodes  *storage.Registry
}

func NewDownloadService(tokens *token.Store, nodes *storage.Registry) *DownloadService {
	return &DownloadService{Tokens: tokens, Nodes: nodes}
}

type DownloadManifest struct {
	FileID    string       `json:"file_id"`
	FileName  string       `json:"file_name"`
	FileSize  int64        `json:"file_size"`
	MimeType  string       `json:"mime_type"`
	ChunkSize int64        `json:"chunk_size"`
	Chunks    []ChunkToken `json:"chunks"`
}

// RequestDownload issues download-scoped chunk tokens for a completed file,
// one per distinct hash, in manifest order.
func (s *DownloadService) RequestDownload(ctx context.Context, userID int64, fileID string) (*DownloadManifest, error) {
	file, err := s.ownedCompleteFile(userID, fileID)
	if err != nil {
		return nil, err
	}

	manifest := &DownloadManifest{
		FileID:    file.Id,
		FileName:  file.FileName,
		FileSize:  file.FileSize,
		MimeType:  file.MimeType,
		ChunkSize: file.ChunkSize,
	}
	for _, h := range uniqueHashes(file.ChunkHashes()) {
		tok, err := s.Tokens.Issue(file.Id, h, token.ActionDownload, common.TokenTTL)
		if err != nil {
			return nil, err
		}
		manifest.Chunks = append(manifest.Chunks, ChunkToken{Hash: h, Token: tok})
	}
	return manifest, nil
}

// OpenChunk streams one whole chunk, gated by a download token. Token-based
// chunk reads skip the ownership check on purpose: the token itself is the
// capability, exactly as on the write path.
func (s *DownloadService) OpenChunk(ctx context.Context, fileID string, hash string, tok string) (io.ReadCloser, *model.Chunk, error) {
	if !s.Tokens.Validate(tok, fileID, hash, token.ActionDownload) {
		return nil, nil, ErrTokenInvalid
	}

	chunk, err := model.GetChunkForFile(fileID, hash, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrChunkNotFound
		}
		return nil, nil, err
	}

	node, ok := s.Nodes.Resolve(chunk.NodeId)
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown node %s", ErrNodeUnavailable, chunk.NodeId)
	}
	rc, err := node.Store.GetObject(ctx, storage.ChunkKey(fileID, hash))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, ErrChunkNotFound
		}
		return nil, nil, fmt.Errorf("%w: get %s on %s: %v", ErrNodeUnavailable, hash, node.ID, err)
	}
	return rc, chunk, nil
}

// OpenRange reconstructs the byte range [start, end] of a completed file as a
// single ordered stream. Only the intersecting sub-range of each chunk is
// requested from storage; chunk i+1 is not opened until chunk i is drained.
func (s *DownloadService) OpenRange(ctx context.Context, userID int64, fileID string, start int64, end int64) (io.ReadCloser, *model.File, error) {
	file, err := s.ownedCompleteFile(userID, fileID)
	if err != nil {
		return nil, nil, err
	}

	spans, err := stream.ResolveRange(file.ChunkHashes(), file.FileSize, file.ChunkSize, start, end)
	if err != nil {
		return nil, nil, err
	}

	node, ok := s.Nodes.Resolve(file.NodeId)
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown node %s", ErrNodeUnavailable, file.NodeId)
	}

	merged := stream.NewMergedReader(ctx, len(spans), func(ctx context.Context, i int) (io.ReadCloser, error) {
		span := spans[i]
		return node.Store.GetObjectRange(ctx, storage.ChunkKey(fileID, span.Hash), span.Start, span.Length())
	})
	return merged, file, nil
}

// OpenFull streams the entire file content.
func (s *DownloadService) OpenFull(ctx context.Context, userID int64, fileID string) (io.ReadCloser, *model.File, error) {
	file, err := s.ownedCompleteFile(userID, fileID)
	if err != nil {
		return nil, nil, err
	}
	return s.OpenRange(ctx, userID, fileID, 0, file.FileSize-1)
}

func (s *DownloadService) ownedCompleteFile(userID int64, fileID string) (*model.File, error) {
	file, err := model.GetFileForUser(fileID, userID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	if file.Status != model.FileStatusComplete {
		return nil, ErrFileNotReady
	}
	return file, nil
}
