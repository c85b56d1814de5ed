package api

import (
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// adminResponse is the JSON envelope for admin and printer-management
// endpoints.
type adminResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func adminOK(message string) adminResponse {
	return adminResponse{Success: true, Message: message, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

func adminErr(message string) adminResponse {
	return adminResponse{Success: false, Message: message, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

// validAdminToken checks the provided token against ADMIN_TOKEN. Admin
// endpoints stay disabled unless the variable is set and at least 16
// characters long.
func (s *Server) validAdminToken(provided string) bool {
	token := os.Getenv("ADMIN_TOKEN")
	if token == "" {
		s.logger.Warn().Msg("ADMIN_TOKEN not set, admin endpoints disabled")
		return false
	}
	if len(token) < 16 {
		s.logger.Warn().Msg("ADMIN_TOKEN too short (minimum 16 characters)")
		return false
	}
	return provided == token
}

// requireAdmin rejects the request with 401 unless the token query parameter
// is valid. Returns false when the response has already been written.
func (s *Server) requireAdmin(c *gin.Context) bool {
	if !s.validAdminToken(c.Query("token")) {
		s.logger.Warn().Str("path", c.Request.URL.Path).Msg("invalid or missing admin token")
		c.JSON(http.StatusUnauthorized, adminErr("Invalid or missing admin token"))
		return false
	}
	return true
}

func (s *Server) handleAdminStatus(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service": gin.H{
			"name":                "print-gateway",
			"version":             s.version,
			"uptime_seconds":      int(time.Since(s.startedAt).Seconds()),
			"printers_configured": s.store.Len(),
		},
		"system": gin.H{
			"pid":          os.Getpid(),
			"memory_usage": memoryUsage(),
		},
	})
}

func (s *Server) handleAdminShutdown(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}

	s.logger.Info().Msg("admin shutdown requested")

	// Respond first, then exit.
	go func() {
		time.Sleep(2 * time.Second)
		s.logger.Info().Msg("shutting down")
		os.Exit(0)
	}()

	c.JSON(http.StatusOK, adminOK("Graceful shutdown initiated - server will stop in 2 seconds"))
}

func (s *Server) handleAdminRestart(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}

	s.logger.Info().Msg("admin restart requested")

	go func() {
		time.Sleep(time.Second)

		// Prefer systemctl when running as a service; otherwise exit nonzero
		// and let the supervisor restart us.
		out, err := exec.Command("systemctl", "restart", "print-gateway").CombinedOutput()
		if err != nil {
			s.logger.Warn().Err(err).Str("output", string(out)).Msg("systemctl restart failed, exiting")
			os.Exit(1)
		}
		s.logger.Info().Msg("service restart initiated via systemctl")
	}()

	c.JSON(http.StatusOK, adminOK("Service restart initiated"))
}

func (s *Server) handleAdminRenewSSL(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}

	domain := c.DefaultQuery("domain", "localhost")
	port := c.DefaultQuery("port", "8080")

	const script = "./ssl.sh"
	if _, err := os.Stat(script); err != nil {
		s.logger.Error().Str("script", script).Msg("SSL renewal script not found")
		c.JSON(http.StatusInternalServerError, adminErr("SSL renewal script not found"))
		return
	}

	s.logger.Info().Str("domain", domain).Str("port", port).Msg("starting SSL renewal")

	go func() {
		out, err := exec.Command("sudo", script, domain, port).CombinedOutput()
		if err != nil {
			s.logger.Error().Err(err).Str("output", string(out)).Msg("SSL renewal failed")
			return
		}
		s.logger.Info().Str("output", string(out)).Msg("SSL renewal completed")
	}()

	c.JSON(http.StatusOK, adminOK("SSL renewal initiated for domain '"+domain+"' on port '"+port+"' - check logs for progress"))
}

// memoryUsage reads the resident set size from /proc/self/status. Returns
// "unknown" off Linux.
func memoryUsage() string {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return "unknown"
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "VmRSS:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				return fields[1] + " kB"
			}
		}
	}
	return "unknown"
}
