package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/tapu-processor/internal/utils/validator"
	"github.com/feichai0017/tapu-processor/pkg/logger"
	"github.com/feichai0017/tapu-processor/pkg/queue"
	"github.com/feichai0017/tapu-processor/pkg/storage"
)

// Config holds the handler settings taken from the pipeline config.
type Config struct {
	UploadDir         string
	DownloadURLPrefix string
}

type Handlers struct {
	Job *JobHandler
}

func NewHandlers(
	service JobService,
	v *validator.DocumentValidator,
	store storage.Storage,
	snapshots queue.SnapshotStore,
	cfg Config,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		Job: NewJobHandler(service, v, store, snapshots, cfg, log),
	}
}

// Health reports liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
