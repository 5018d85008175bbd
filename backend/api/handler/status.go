package handler

import (
	"chunkvault/backend/common"
	"chunkvault/backend/library/storage"

	"github.com/gin-gonic/gin"
)

var nodeRegistry *storage.Registry

func SetupStatus(registry *storage.Registry) {
	nodeRegistry = registry
}

func GetStatus(c *gin.Context) {
	type nodeStatus struct {
		ID       string `json:"id"`
		Region   string `json:"region"`
		Writable bool   `json:"writable"`
	}
	var nodes []nodeStatus
	if nodeRegistry != nil {
		for _, n := range nodeRegistry.Nodes() {
			nodes = append(nodes, nodeStatus{ID: n.ID, Region: n.Region, Writable: n.Writable})
		}
	}
	common.RespSuccess(c, gin.H{
		"version":    common.Version,
		"start_time": common.StartTime,
		"chunk_size": common.ChunkSize,
		"nodes":      nodes,
	})
}
