package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jopa/salestracker/internal/auth"
	"github.com/jopa/salestracker/internal/domain/models"
	"github.com/jopa/salestracker/internal/repository/mongodb"
	"github.com/jopa/salestracker/internal/scheduler"
	"github.com/jopa/salestracker/internal/service/pipeline"
	"github.com/jopa/salestracker/internal/service/reporting"
)

// ReportStore reads and deletes stored reports.
type ReportStore interface {
	ListReports(ctx context.Context) ([]models.Report, error)
	GetReport(ctx context.Context, id uint) (*models.Report, error)
	DeleteReport(ctx context.Context, id uint) error
}

// ReportGenerator creates on-demand reports.
type ReportGenerator interface {
	Generate(ctx context.Context, req reporting.GenerateRequest) (*models.Report, error)
}

// DailyRunner runs the daily pipeline once outside its schedule.
type DailyRunner interface {
	Trigger(ctx context.Context) (pipeline.Result, error)
}

// SnapshotFinder looks up archived report snapshots.
type SnapshotFinder interface {
	Find(ctx context.Context, reportID uint) (*mongodb.ReportSnapshot, error)
}

// ReportHandler serves stored reports and manual pipeline runs.
type ReportHandler struct {
	store     ReportStore
	generator ReportGenerator
	runner    DailyRunner
	snapshots SnapshotFinder
	loc       *time.Location
	logger    *zap.Logger
}

// NewReportHandler constructs the report HTTP adapter. snapshots may be nil
// when no archive is configured.
func NewReportHandler(store ReportStore, generator ReportGenerator, runner DailyRunner, snapshots SnapshotFinder, loc *time.Location, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReportHandler{
		store:     store,
		generator: generator,
		runner:    runner,
		snapshots: snapshots,
		loc:       loc,
		logger:    logger,
	}
}

type generateRequest struct {
	ReportType string `json:"reportType" binding:"required"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
}

// Generate stores a report over the requested window, linking its sales.
func (h *ReportHandler) Generate(c *gin.Context) {
	var req generateRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	reportType, err := models.ParseReportType(req.ReportType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := parseDate(req.StartDate, h.loc, false)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	end, err := parseDate(req.EndDate, h.loc, true)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor, _ := auth.CurrentUser(c)

	report, err := h.generator.Generate(c.Request.Context(), reporting.GenerateRequest{
		Type:   reportType,
		Start:  start,
		End:    end,
		UserID: actor.ID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("report generated", zap.Uint("report_id", report.ID), zap.String("type", string(report.ReportType)))
	c.JSON(http.StatusCreated, report)
}

func (h *ReportHandler) List(c *gin.Context) {
	reports, err := h.store.ListReports(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (h *ReportHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	report, err := h.store.GetReport(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ReportHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteReport(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "report deleted"})
}

// Snapshot returns the archived metrics behind a daily report.
func (h *ReportHandler) Snapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report archive is not configured"})
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	snapshot, err := h.snapshots.Find(c.Request.Context(), id)
	if errors.Is(err, mongodb.ErrSnapshotNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// RunDaily runs the daily pipeline now. The run survives a client disconnect.
func (h *ReportHandler) RunDaily(c *gin.Context) {
	result, err := h.runner.Trigger(context.WithoutCancel(c.Request.Context()))
	if errors.Is(err, scheduler.ErrBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": "a report run is already in progress"})
		return
	}
	if err != nil {
		body := gin.H{"error": "report run failed", "outcome": pipeline.Outcome(err)}
		if id, ok := pipeline.DanglingReportID(err); ok {
			body["report_id"] = id
		}
		h.logger.Error("manual report run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report_id":   result.ReportID,
		"title":       result.Title,
		"pdf_bytes":   result.PDFBytes,
		"duration_ms": result.Duration.Milliseconds(),
	})
}

// parseDate accepts RFC 3339 timestamps or plain dates. A plain end date
// covers the whole day in loc.
func parseDate(value string, loc *time.Location, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	day, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", value)
	}
	if endOfDay {
		day = models.DayWindow(day, loc).End
	}
	return &day, nil
}
