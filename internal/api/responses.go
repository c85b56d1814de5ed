package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Uniform XML wire responses. Clients always get one of these from the print
// endpoint regardless of input mode; error detail stays in the server log.
const (
	xmlSuccessBody = `<?xml version="1.0"?><response success="true" code="0"/>`
	xmlErrorBody   = `<?xml version="1.0"?><response success="false" code="1"/>`
)

func setCORSHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type")
}

func xmlSuccess(c *gin.Context) {
	setCORSHeaders(c)
	c.Data(http.StatusOK, "text/xml", []byte(xmlSuccessBody))
}

func xmlError(c *gin.Context) {
	setCORSHeaders(c)
	c.Data(http.StatusInternalServerError, "text/xml", []byte(xmlErrorBody))
}

func xmlNoContent(c *gin.Context) {
	setCORSHeaders(c)
	c.Status(http.StatusNoContent)
}
