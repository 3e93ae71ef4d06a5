package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tinrooster/tedecom-v1/internal/auth"
	"github.com/tinrooster/tedecom-v1/internal/models"
	"github.com/tinrooster/tedecom-v1/internal/templates"
)

func (s *Server) listTemplates(c *gin.Context) {
	list, err := s.templates.List(c.Request.Context(), templates.Filter{
		Type:   models.ReportType(c.Query("type")),
		Format: models.ReportFormat(c.Query("format")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getTemplate(c *gin.Context) {
	tmpl, err := s.templates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

func (s *Server) createTemplate(c *gin.Context) {
	tmpl := models.ReportTemplate{}
	if err := c.ShouldBindJSON(&tmpl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tmpl.ID = ""
	userID := auth.UserID(c)
	tmpl.CreatedBy = &userID
	tmpl.Settings = tmpl.Settings.WithDefaults()

	if err := s.templates.Create(c.Request.Context(), &tmpl); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tmpl)
}

func (s *Server) updateTemplate(c *gin.Context) {
	var changes models.ReportTemplate
	if err := c.ShouldBindJSON(&changes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	changes.Settings = changes.Settings.WithDefaults()

	tmpl, err := s.templates.Update(c.Request.Context(), c.Param("id"), &changes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

func (s *Server) deleteTemplate(c *gin.Context) {
	if err := s.templates.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) setDefaultTemplate(c *gin.Context) {
	tmpl, err := s.templates.SetDefault(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}
