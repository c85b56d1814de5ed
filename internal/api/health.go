package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thereceipt/print-gateway/internal/printer"
)

// handlePrintersHealth probes every configured printer concurrently and
// reports the aggregate. Results are keyed by printer id, so completion
// order does not matter.
func (s *Server) handlePrintersHealth(c *gin.Context) {
	printers := s.store.Snapshot()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]gin.H, len(printers))
		online  int
		offline int
	)

	for id, p := range printers {
		id, p := id, p
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := s.health.Check(p)

			mu.Lock()
			defer mu.Unlock()
			switch status {
			case printer.StatusOnline:
				online++
			case printer.StatusOffline:
				offline++
			}
			results[id] = gin.H{"status": status.String()}
		}()
	}
	wg.Wait()

	overall := "healthy"
	if offline > 0 {
		overall = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    overall,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"summary": gin.H{
			"total":   len(printers),
			"online":  online,
			"offline": offline,
		},
		"printers": results,
	})
}

// handlePrinterHealth probes a single printer.
func (s *Server) handlePrinterHealth(c *gin.Context) {
	printerID := c.Param("printer_id")

	p, ok := s.store.Get(printerID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "printer not found"})
		return
	}

	status := s.health.Check(p)

	c.JSON(http.StatusOK, gin.H{
		"printer_id": printerID,
		"status":     status.String(),
		"backend":    p.Backend,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
