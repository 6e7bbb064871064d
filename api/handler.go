package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"ytmp3/config"
	"ytmp3/policy"
	"ytmp3/task"
	"ytmp3/youtube"

	"github.com/gin-gonic/gin"
	"github.com/lithammer/shortuuid/v4"
)

// Handler is the dispatcher: it drives conversion tasks through the manager
// and keeps one evolving status view per requester, the HTTP counterpart of
// an editable chat status message.
type Handler struct {
	manager *task.Manager
	wl      *config.Whitelist
	cfg     *config.Config

	mu    sync.Mutex
	views map[string]*conversionView
}

type conversionView struct {
	RequestID string `json:"requestId"`
	VideoID   string `json:"videoId"`
	Title     string `json:"title,omitempty"`
	State     string `json:"state"`
	Percent   int    `json:"percent"`
	Bitrate   int    `json:"bitrate"`
	Error     string `json:"error,omitempty"`

	outputPath string
	outputDir  string
	finishedAt time.Time
}

func NewHandler(tm *task.Manager, wl *config.Whitelist, cfg *config.Config) *Handler {
	return &Handler{
		manager: tm,
		wl:      wl,
		cfg:     cfg,
		views:   make(map[string]*conversionView),
	}
}

// Start launches the background sweep that expires finished conversions whose
// files were never collected.
func (h *Handler) Start(ctx context.Context) {
	if h.cfg.OutputLocalLifetime <= 0 {
		return
	}
	go h.sweepLoop(ctx)
}

type ConversionRequest struct {
	URL string `json:"url" binding:"required"`
}

// handleCreateConversion admits and starts a new conversion for the caller.
func (h *Handler) handleCreateConversion(c *gin.Context) {
	var req ConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	videoID, err := youtube.ExtractVideoID(req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a recognizable YouTube link"})
		return
	}

	requester := c.GetString(requesterKey)
	t, err := h.manager.Begin(c.Request.Context(), requester, videoID)
	if err != nil {
		h.renderBeginError(c, videoID, err)
		return
	}

	view := &conversionView{
		RequestID:  shortuuid.New(),
		VideoID:    t.ID,
		Title:      t.Info.Title,
		State:      string(task.StatusRunning),
		Bitrate:    t.Bitrate,
		outputPath: t.AudioPath(),
		outputDir:  t.Dir(),
	}
	h.mu.Lock()
	h.views[requester] = view
	h.mu.Unlock()

	go h.watch(requester, t)

	c.JSON(http.StatusAccepted, view)
}

func (h *Handler) renderBeginError(c *gin.Context, videoID string, err error) {
	var tooLong *policy.TooLongError
	switch {
	case errors.Is(err, task.ErrAlreadyActive):
		c.JSON(http.StatusConflict, gin.H{"error": "only one conversion at a time per requester"})
	case errors.Is(err, task.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too many conversions in progress, try again later"})
	case errors.Is(err, youtube.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found", "videoId": videoID})
	case errors.As(err, &tooLong):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":            "video too long",
			"bitrate":          tooLong.Bitrate,
			"maxLengthSeconds": tooLong.MaxLength,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start conversion", "details": err.Error()})
	}
}

// watch relays one task's events into the requester's status view. Slots are
// released on cancel and failure; a finished conversion keeps its slot until
// the file is collected or expires.
func (h *Handler) watch(requester string, t *task.Task) {
	for pct := range t.Progress() {
		h.update(requester, func(v *conversionView) {
			v.Percent = pct
		})
	}

	out := <-t.Done()
	switch out.Status {
	case task.StatusFinished:
		h.update(requester, func(v *conversionView) {
			v.State = string(task.StatusFinished)
			v.Percent = 100
			v.finishedAt = time.Now()
		})
	case task.StatusCanceled:
		h.update(requester, func(v *conversionView) {
			v.State = string(task.StatusCanceled)
		})
		h.manager.Release(requester)
	case task.StatusFailed:
		log.Printf("Conversion of %s failed: %v", t.ID, out.Err)
		h.update(requester, func(v *conversionView) {
			v.State = string(task.StatusFailed)
			v.Error = fmt.Sprintf("conversion of video %s failed: %v", t.ID, out.Err)
		})
		h.manager.Release(requester)
	}
}

func (h *Handler) update(requester string, fn func(*conversionView)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if v, ok := h.views[requester]; ok {
		fn(v)
	}
}

// handleGetConversion returns the caller's current status view.
func (h *Handler) handleGetConversion(c *gin.Context) {
	requester := c.GetString(requesterKey)

	h.mu.Lock()
	view, ok := h.views[requester]
	var snapshot conversionView
	if ok {
		snapshot = *view
	}
	h.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no conversion for this requester"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// handleCancelConversion routes a cancel to the caller's running task.
func (h *Handler) handleCancelConversion(c *gin.Context) {
	requester := c.GetString(requesterKey)
	if !h.manager.Cancel(requester) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active conversion to cancel"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "cancellation requested"})
}

// handleDownloadFile delivers the finished MP3 and then discards the
// conversion: the output tree is removed and the requester's slot freed.
func (h *Handler) handleDownloadFile(c *gin.Context) {
	requester := c.GetString(requesterKey)

	h.mu.Lock()
	view, ok := h.views[requester]
	var snapshot conversionView
	if ok {
		snapshot = *view
	}
	h.mu.Unlock()

	if !ok || snapshot.State != string(task.StatusFinished) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no finished conversion to download"})
		return
	}

	c.FileAttachment(snapshot.outputPath, attachmentName(snapshot.Title))

	h.discard(requester, &snapshot)
}

func (h *Handler) discard(requester string, view *conversionView) {
	if err := os.RemoveAll(view.outputDir); err != nil {
		log.Printf("Could not remove output directory %s: %v", view.outputDir, err)
	}
	h.mu.Lock()
	delete(h.views, requester)
	h.mu.Unlock()
	h.manager.Release(requester)
}

type AllowRequest struct {
	ID string `json:"id" binding:"required"`
}

// handleAllow adds an identity to the persistent whitelist. Owner only.
func (h *Handler) handleAllow(c *gin.Context) {
	requester := c.GetString(requesterKey)
	if !h.wl.IsOwner(requester) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner may change the whitelist"})
		return
	}

	var req AllowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.wl.Add(req.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist whitelist", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "requester allowed", "id": req.ID})
}

// handleInfo reports the conversion settings a requester needs to know before
// submitting: the bitrate and the longest acceptable video.
func (h *Handler) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"bitrate":          h.cfg.Bitrate,
		"maxLengthSeconds": policy.MaxLength(h.cfg.Bitrate),
		"sizeLimitKB":      policy.SizeLimitKB,
	})
}

// sweepLoop expires finished conversions whose files were never downloaded.
func (h *Handler) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.OutputLocalLifetime / 4) // Check 4 times per lifetime
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sweep loop shutting down.")
			return
		case <-ticker.C:
			h.sweep(time.Now())
		}
	}
}

func (h *Handler) sweep(now time.Time) {
	h.mu.Lock()
	expired := make(map[string]conversionView)
	for requester, view := range h.views {
		if view.State == string(task.StatusFinished) && now.Sub(view.finishedAt) > h.cfg.OutputLocalLifetime {
			expired[requester] = *view
		}
	}
	h.mu.Unlock()

	for requester, view := range expired {
		log.Printf("Cleaning up uncollected output for %s: %s", requester, view.outputDir)
		h.discard(requester, &view)
	}
}

// attachmentName derives a download filename from the video title.
func attachmentName(title string) string {
	safe := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`\/:*?"<>|`, r) {
			return -1
		}
		return r
	}, title)
	safe = strings.TrimSpace(safe)
	if safe == "" {
		safe = "audio"
	}
	return safe + ".mp3"
}
