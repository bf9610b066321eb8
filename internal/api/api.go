// Package api is a thin gin-based control/status surface over the scanner and
// artwork services: requestImmediateScan/requestStop/getStatus plus artwork
// serving. It is not a Subsonic-style API; library browsing, playback, playlists,
// and favorites stay out of scope, and this package only exposes the core's own
// control points.
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lms/internal/artwork"
	"lms/internal/artwork/codec"
	"lms/internal/database"
	"lms/internal/jobs"
	"lms/internal/models"
	"lms/internal/recommendation"
	"lms/internal/scanner"
)

// Deps are the collaborators the control surface calls into; all are optional
// except DB and Scanner, so a caller can stand up a minimal status-only server.
type Deps struct {
	DB      *database.DB
	Scanner *scanner.Service
	Artwork *artwork.Service
	Engine  *recommendation.Engine
	Jobs    *jobs.WorkerPool
}

// New builds the gin engine and registers every route: the usual
// gin.New() + Logger()/Recovery() middleware wiring, without the auth/rate-limit
// groups this surface doesn't need.
func New(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	h := &handler{deps: deps}

	r.GET("/api/ping", h.ping)
	r.GET("/api/health", h.health)

	scan := r.Group("/api/scan")
	scan.POST("", h.requestScan)
	scan.POST("/stop", h.requestStop)
	scan.POST("/reload", h.requestReload)
	scan.GET("/status", h.scanStatus)

	if deps.Engine != nil {
		r.POST("/api/engine/rebuild", h.rebuildEngine)
	}

	if deps.Artwork != nil {
		art := r.Group("/api/artwork")
		art.GET("/:id", h.artworkByID)
		art.GET("/track/:id", h.artworkByTrack)
		art.GET("/release/:id", h.artworkByRelease)
		art.GET("/artist/:id", h.artworkByArtist)
	}

	return r
}

type handler struct {
	deps Deps
}

func (h *handler) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) health(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.deps.DB.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// requestScan triggers an immediate scan. ?force=true bypasses the per-file skip of
// files whose size and last write time are unchanged.
func (h *handler) requestScan(c *gin.Context) {
	force := c.Query("force") == "true"
	h.deps.Scanner.RequestImmediateScan(force)
	c.JSON(http.StatusAccepted, gin.H{"message": "scan requested", "force": force})
}

// requestStop cooperatively cancels an in-progress scan; a no-op if nothing is
// running.
func (h *handler) requestStop(c *gin.Context) {
	h.deps.Scanner.RequestStop()
	c.JSON(http.StatusAccepted, gin.H{"message": "stop requested"})
}

// requestReload re-reads the configured MediaLibrary set from the database,
// cancelling any in-flight scan; used after a MediaLibrary is added or removed so
// the running service doesn't need a process restart to notice.
func (h *handler) requestReload(c *gin.Context) {
	h.deps.Scanner.RequestReload()
	c.JSON(http.StatusAccepted, gin.H{"message": "reload requested"})
}

// scanStatus reports the ScannerService state machine plus a human-readable
// errors/duplicates summary.
func (h *handler) scanStatus(c *gin.Context) {
	status := h.deps.Scanner.GetStatus()

	resp := gin.H{"state": status.State.String()}
	if status.NextScheduledScan != nil {
		resp["next_scheduled_scan"] = status.NextScheduledScan
	}
	if status.CurrentStepStats != nil {
		resp["current_step"] = stepStatsJSON(*status.CurrentStepStats)
	}
	if status.LastCompleteStats != nil {
		resp["last_scan"] = scanStatsJSON(status.LastCompleteStats)
	}
	c.JSON(http.StatusOK, resp)
}

func stepStatsJSON(s interface{ Progress() int }) gin.H {
	return gin.H{"progress_percent": s.Progress()}
}

func scanStatsJSON(stats interface {
	GetTotalFileCount() int
	GetChangesCount() int
}) gin.H {
	return gin.H{
		"total_files": stats.GetTotalFileCount(),
		"changes":     stats.GetChangesCount(),
	}
}

// rebuildEngine enqueues an asynchronous recommendation engine reload rather than
// blocking the request on SOM training, per internal/jobs' EngineRebuildHandler.
// When no job queue is configured, it reloads the engine synchronously instead.
func (h *handler) rebuildEngine(c *gin.Context) {
	force := c.Query("force") != "false"

	if h.deps.Jobs == nil {
		ctx := c.Request.Context()
		if err := h.deps.Engine.Load(ctx, force); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "engine rebuilt"})
		return
	}

	job, err := h.deps.Jobs.EnqueueJob(c.Request.Context(), jobs.JobTypeEngineRebuild, jobs.EngineRebuildPayload{Force: force})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "engine rebuild queued", "job_id": job.ID})
}

func (h *handler) artworkByID(c *gin.Context) {
	id, size, ok := h.parseIDAndSize(c)
	if !ok {
		return
	}
	h.serveImage(c, h.deps.Artwork.GetImage(c.Request.Context(), models.ArtworkID(id), size))
}

func (h *handler) artworkByTrack(c *gin.Context) {
	id, size, ok := h.parseIDAndSize(c)
	if !ok {
		return
	}
	allowFallback := c.Query("fallback") != "false"
	img, found, err := h.deps.Artwork.GetTrackImage(c.Request.Context(), models.TrackID(id), size, allowFallback)
	if !found && err == nil {
		h.serveImage(c, h.deps.Artwork.GetDefaultReleaseImage(), true, nil)
		return
	}
	h.serveImage(c, img, found, err)
}

func (h *handler) artworkByRelease(c *gin.Context) {
	id, size, ok := h.parseIDAndSize(c)
	if !ok {
		return
	}
	img, found, err := h.deps.Artwork.GetReleaseImage(c.Request.Context(), models.ReleaseID(id), size)
	if !found && err == nil {
		h.serveImage(c, h.deps.Artwork.GetDefaultReleaseImage(), true, nil)
		return
	}
	h.serveImage(c, img, found, err)
}

func (h *handler) artworkByArtist(c *gin.Context) {
	id, size, ok := h.parseIDAndSize(c)
	if !ok {
		return
	}
	img, found, err := h.deps.Artwork.GetArtistImage(c.Request.Context(), models.ArtistID(id), size)
	if !found && err == nil {
		h.serveImage(c, h.deps.Artwork.GetDefaultArtistImage(), true, nil)
		return
	}
	h.serveImage(c, img, found, err)
}

func (h *handler) parseIDAndSize(c *gin.Context) (int64, codec.ImageSize, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, 0, false
	}
	size := 600
	if q := c.Query("size"); q != "" {
		if parsed, err := strconv.Atoi(q); err == nil && parsed > 0 {
			size = parsed
		}
	}
	return id, codec.ImageSize(size), true
}

func (h *handler) serveImage(c *gin.Context, img codec.EncodedImage, found bool, err error) {
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Data(http.StatusOK, img.MimeType, img.Bytes)
}
