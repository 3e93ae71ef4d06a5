package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tinrooster/tedecom-v1/internal/apperrors"
	"github.com/tinrooster/tedecom-v1/internal/auth"
	"github.com/tinrooster/tedecom-v1/internal/models"
	"github.com/tinrooster/tedecom-v1/internal/report"
)

func (s *Server) listReports(c *gin.Context) {
	reports, err := s.reports.List(c.Request.Context(), report.ListFilter{
		Type:   models.ReportType(c.Query("type")),
		Status: models.ReportStatus(c.Query("status")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (s *Server) listReportTypes(c *gin.Context) {
	c.JSON(http.StatusOK, models.ReportTypes)
}

func (s *Server) createReport(c *gin.Context) {
	var req report.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.CreatedBy = auth.UserID(c)

	r, err := s.reports.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (s *Server) getReport(c *gin.Context) {
	r, err := s.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) getReportStatus(c *gin.Context) {
	status, err := s.reports.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) downloadReport(c *gin.Context) {
	r, err := s.reports.Artifact(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidState) {
			respondErrorStatus(c, http.StatusBadRequest, err)
			return
		}
		respondError(c, err)
		return
	}

	c.Header("Content-Type", r.Format.ContentType())
	c.FileAttachment(r.FilePath, filepath.Base(r.FilePath))
}

// retryReport answers with the report after the retried attempt, whether
// that attempt completed or failed again.
func (s *Server) retryReport(c *gin.Context) {
	r, err := s.reports.Retry(c.Request.Context(), c.Param("id"))
	if err != nil && r == nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) deleteReport(c *gin.Context) {
	id := c.Param("id")
	if err := s.reports.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	s.scheduler.Remove(id)
	c.Status(http.StatusNoContent)
}

type scheduleResponse struct {
	Schedule *models.ReportSchedule `json:"schedule"`
	NextRun  *time.Time             `json:"nextRun,omitempty"`
}

func (s *Server) getSchedule(c *gin.Context) {
	id := c.Param("id")
	r, err := s.reports.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := scheduleResponse{Schedule: r.Schedule}
	if next, ok := s.scheduler.NextRun(id); ok {
		resp.NextRun = &next
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) scheduleReport(c *gin.Context) {
	var schedule models.ReportSchedule
	if err := c.ShouldBindJSON(&schedule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	if err := s.scheduler.ScheduleReport(c.Request.Context(), id, &schedule); err != nil {
		respondError(c, err)
		return
	}

	resp := scheduleResponse{Schedule: &schedule}
	if next, ok := s.scheduler.NextRun(id); ok {
		resp.NextRun = &next
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) cancelSchedule(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.reports.Get(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	if err := s.scheduler.CancelScheduledReport(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
