package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thereceipt/print-gateway/internal/config"
)

// configMu serializes config file mutations across CRUD handlers.
var configMu sync.Mutex

type printerCreateRequest struct {
	Name    string         `json:"name"`
	ID      string         `json:"id"`
	Backend config.Backend `json:"backend"`
}

type printerUpdateRequest struct {
	Name    *string         `json:"name"`
	Backend *config.Backend `json:"backend"`
}

func apiTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// reload re-reads the config file and swaps the published printer map.
func (s *Server) reload() error {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return err
	}
	s.store.Replace(cfg.Map())
	s.logger.Info().Int("printers", s.store.Len()).Msg("printer configuration reloaded")
	return nil
}

func (s *Server) handleListPrinters(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}

	snapshot := s.store.Snapshot()
	printers := make([]config.Printer, 0, len(snapshot))
	for _, p := range snapshot {
		printers = append(printers, p)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"printers":  printers,
		"total":     len(printers),
		"timestamp": apiTimestamp(),
	})
}

func (s *Server) handleGetPrinter(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}

	printerID := c.Param("printer_id")
	p, ok := s.store.Get(printerID)
	if !ok {
		c.JSON(http.StatusNotFound, adminErr("Printer '"+printerID+"' not found"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"printer":   p,
		"timestamp": apiTimestamp(),
	})
}

func (s *Server) handleCreatePrinter(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}

	var req printerCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, adminErr("Invalid request body"))
		return
	}
	if req.ID == "" || req.Name == "" {
		c.JSON(http.StatusBadRequest, adminErr("ID and name are required"))
		return
	}
	if _, exists := s.store.Get(req.ID); exists {
		c.JSON(http.StatusConflict, adminErr("Printer '"+req.ID+"' already exists"))
		return
	}

	configMu.Lock()
	defer configMu.Unlock()

	cfg, err := config.Load(s.configPath)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load config")
		c.JSON(http.StatusInternalServerError, adminErr("Failed to load configuration"))
		return
	}

	created := config.Printer{Name: req.Name, ID: req.ID, Backend: req.Backend}
	cfg.Printers = append(cfg.Printers, created)

	if err := s.saveAndReload(cfg); err != nil {
		c.JSON(http.StatusInternalServerError, adminErr("Failed to save configuration"))
		return
	}

	s.logger.Info().Str("printer", req.ID).Msg("printer created")
	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"printer":   created,
		"timestamp": apiTimestamp(),
	})
}

func (s *Server) handleUpdatePrinter(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}

	printerID := c.Param("printer_id")

	var req printerUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, adminErr("Invalid request body"))
		return
	}

	configMu.Lock()
	defer configMu.Unlock()

	cfg, err := config.Load(s.configPath)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load config")
		c.JSON(http.StatusInternalServerError, adminErr("Failed to load configuration"))
		return
	}

	idx := -1
	for i, p := range cfg.Printers {
		if p.ID == printerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.JSON(http.StatusNotFound, adminErr("Printer '"+printerID+"' not found"))
		return
	}

	if req.Name != nil {
		cfg.Printers[idx].Name = *req.Name
	}
	if req.Backend != nil {
		cfg.Printers[idx].Backend = *req.Backend
	}

	if err := s.saveAndReload(cfg); err != nil {
		c.JSON(http.StatusInternalServerError, adminErr("Failed to save configuration"))
		return
	}

	s.logger.Info().Str("printer", printerID).Msg("printer updated")
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"printer":   cfg.Printers[idx],
		"timestamp": apiTimestamp(),
	})
}

func (s *Server) handleDeletePrinter(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}

	printerID := c.Param("printer_id")

	configMu.Lock()
	defer configMu.Unlock()

	cfg, err := config.Load(s.configPath)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load config")
		c.JSON(http.StatusInternalServerError, adminErr("Failed to load configuration"))
		return
	}

	kept := cfg.Printers[:0]
	for _, p := range cfg.Printers {
		if p.ID != printerID {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(cfg.Printers) {
		c.JSON(http.StatusNotFound, adminErr("Printer '"+printerID+"' not found"))
		return
	}
	cfg.Printers = kept

	if err := s.saveAndReload(cfg); err != nil {
		c.JSON(http.StatusInternalServerError, adminErr("Failed to save configuration"))
		return
	}

	s.logger.Info().Str("printer", printerID).Msg("printer deleted")
	c.JSON(http.StatusOK, adminOK("Printer '"+printerID+"' deleted successfully"))
}

func (s *Server) handleReloadPrinters(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}

	if err := s.reload(); err != nil {
		s.logger.Error().Err(err).Msg("failed to reload config")
		c.JSON(http.StatusInternalServerError, adminErr("Failed to reload configuration"))
		return
	}

	c.JSON(http.StatusOK, adminOK("Configuration reloaded successfully"))
}

func (s *Server) saveAndReload(cfg *config.Config) error {
	if err := config.Save(s.configPath, cfg); err != nil {
		s.logger.Error().Err(err).Msg("failed to save config")
		return err
	}
	s.store.Replace(cfg.Map())
	return nil
}
