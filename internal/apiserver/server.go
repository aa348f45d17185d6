// Package apiserver is the reference templates API: gin routes over a SQLite store.
package apiserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/a3tai/mcp-template-mapper/internal/pdf"
	"github.com/a3tai/mcp-template-mapper/internal/template"
)

// MinNameLength is the shortest accepted template name, in characters
const MinNameLength = 3

// Server serves the templates API
type Server struct {
	store     *Store
	validator *pdf.Validator
	engine    *gin.Engine
}

// NewServer builds the router. maxFileSize limits decoded uploads.
func NewServer(store *Store, maxFileSize int64) *Server {
	s := &Server{
		store:     store,
		validator: pdf.NewValidator(maxFileSize),
		engine:    gin.New(),
	}
	s.engine.Use(gin.Logger(), gin.Recovery())

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	{
		api.POST("/templates", s.createTemplate)
		api.GET("/templates", s.listTemplates)
		api.GET("/templates/:id", s.getTemplate)
		api.PUT("/templates/:id", s.updateTemplate)
		api.DELETE("/templates/:id", s.deleteTemplate)
	}

	return s
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Templates API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		errorJSON(c, http.StatusBadRequest, "Template ID must be a positive integer")
		return 0, false
	}
	return id, true
}

// validateName applies the template naming rules
func validateName(name string) string {
	if name == "" {
		return "Template name is required"
	}
	if utf8.RuneCountInString(name) < MinNameLength {
		return fmt.Sprintf("Template name must be at least %d characters", MinNameLength)
	}
	return ""
}

// decodeFile decodes and validates an optional base64 upload. An empty
// string yields no file.
func (s *Server) decodeFile(encoded string) ([]byte, int, string) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, 0, ""
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, http.StatusBadRequest, "Failed to decode file: " + err.Error()
	}

	if err := s.validator.ValidateStructure(data); err != nil {
		if errors.Is(err, pdf.ErrTooLarge) {
			return nil, http.StatusRequestEntityTooLarge, err.Error()
		}
		return nil, http.StatusBadRequest, "Invalid PDF file: " + err.Error()
	}
	return data, 0, ""
}

func validateMappings(mappings []template.FieldMapping) string {
	seen := make(map[string]bool, len(mappings))
	for i, m := range mappings {
		if err := m.Validate(); err != nil {
			return fmt.Sprintf("fieldMappings[%d]: %v", i, err)
		}
		if seen[m.ID] {
			return fmt.Sprintf("fieldMappings[%d]: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = true
	}
	return ""
}

func (s *Server) createTemplate(c *gin.Context) {
	var req template.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	name := strings.TrimSpace(req.Name)
	fileName := strings.TrimSpace(req.FileName)
	if msg := validateName(name); msg != "" {
		errorJSON(c, http.StatusBadRequest, msg)
		return
	}
	if fileName == "" {
		errorJSON(c, http.StatusBadRequest, "File name is required")
		return
	}
	if msg := validateMappings(req.FieldMappings); msg != "" {
		errorJSON(c, http.StatusBadRequest, msg)
		return
	}

	file, status, msg := s.decodeFile(req.FileData)
	if msg != "" {
		errorJSON(c, status, msg)
		return
	}

	id, createdAt, err := s.store.Create(c.Request.Context(), name, fileName,
		strings.TrimSpace(req.FileURL), req.FieldMappings, file)
	if err != nil {
		log.Printf("Failed to create template %q: %v", name, err)
		errorJSON(c, http.StatusInternalServerError, "Failed to create template")
		return
	}

	c.JSON(http.StatusCreated, template.SaveResponse{
		ID:        id,
		Message:   fmt.Sprintf("Template %q created", name),
		CreatedAt: createdAt,
	})
}

func (s *Server) updateTemplate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req template.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	name := strings.TrimSpace(req.Name)
	fileName := strings.TrimSpace(req.FileName)
	if msg := validateName(name); msg != "" {
		errorJSON(c, http.StatusBadRequest, msg)
		return
	}
	if fileName == "" {
		errorJSON(c, http.StatusBadRequest, "File name is required")
		return
	}
	if msg := validateMappings(req.FieldMappings); msg != "" {
		errorJSON(c, http.StatusBadRequest, msg)
		return
	}

	file, status, msg := s.decodeFile(req.FileData)
	if msg != "" {
		errorJSON(c, status, msg)
		return
	}

	updatedAt, err := s.store.Update(c.Request.Context(), id, name, fileName,
		strings.TrimSpace(req.FileURL), req.FieldMappings, file)
	if errors.Is(err, ErrNotFound) {
		errorJSON(c, http.StatusNotFound, "Template not found")
		return
	}
	if err != nil {
		log.Printf("Failed to update template %d: %v", id, err)
		errorJSON(c, http.StatusInternalServerError, "Failed to update template")
		return
	}

	c.JSON(http.StatusOK, template.SaveResponse{
		ID:        id,
		Message:   fmt.Sprintf("Template %q updated", name),
		UpdatedAt: updatedAt,
	})
}

func (s *Server) getTemplate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	rec, err := s.store.Get(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		errorJSON(c, http.StatusNotFound, "Template not found")
		return
	}
	if err != nil {
		log.Printf("Failed to get template %d: %v", id, err)
		errorJSON(c, http.StatusInternalServerError, "Failed to get template")
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (s *Server) listTemplates(c *gin.Context) {
	templates, err := s.store.List(c.Request.Context())
	if err != nil {
		log.Printf("Failed to list templates: %v", err)
		errorJSON(c, http.StatusInternalServerError, "Failed to list templates")
		return
	}

	c.JSON(http.StatusOK, template.ListResponse{Templates: templates, Total: len(templates)})
}

func (s *Server) deleteTemplate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	err := s.store.Delete(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		errorJSON(c, http.StatusNotFound, "Template not found")
		return
	}
	if err != nil {
		log.Printf("Failed to delete template %d: %v", id, err)
		errorJSON(c, http.StatusInternalServerError, "Failed to delete template")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Template deleted"})
}
