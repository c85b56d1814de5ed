package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thereceipt/print-gateway/internal/escpos"
	"github.com/thereceipt/print-gateway/internal/printer"
)

// requestTimeout bounds the whole print pipeline including transmission.
const requestTimeout = 30 * time.Second

// handlePrint is the ePOS-compatible print endpoint. It classifies the
// request by content type, gates on the printer's cached health, translates
// the payload into ESC/POS bytes, and transmits them through the connection
// pool. Success and failure are both rendered as the uniform XML response.
func (s *Server) handlePrint(c *gin.Context) {
	if c.Request.Method == http.MethodOptions {
		xmlNoContent(c)
		return
	}

	printerID := c.Param("printer_id")

	if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut {
		s.failPrint(c, printerID, "", badPayload("use POST/PUT to submit print data", nil))
		return
	}

	p, ok := s.store.Get(printerID)
	if !ok {
		s.failPrint(c, printerID, "", notFound(printerID))
		return
	}

	// Health gate via the TTL cache: a printer known to be offline is
	// rejected before any parse or encode work. Unknown passes through.
	if s.health.GetOrCheck(p) == printer.StatusOffline {
		s.failPrint(c, printerID, "", printerOffline(printerID))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.failPrint(c, printerID, "", badPayload("failed to read request body", err))
		return
	}

	invertOverride, bitOverride := s.extractOverrides(c)

	ct := strings.ToLower(c.GetHeader("Content-Type"))

	var (
		mode    string
		payload []byte
		perr    *ProxyError
	)

	switch {
	case strings.HasPrefix(ct, "text/plain"),
		strings.HasPrefix(ct, "text/xml"),
		strings.HasPrefix(ct, "application/xml"):
		mode = "epos"
		payload, perr = encodeEposPayload(body, invertOverride, bitOverride)

	case strings.HasPrefix(ct, "application/octet-stream"),
		strings.EqualFold(c.GetHeader("x-esc-pos-mode"), "raw"):
		mode = "raw"
		if len(body) == 0 {
			perr = badPayload("empty body for raw mode", nil)
		} else {
			payload = body
		}

	case strings.HasPrefix(ct, "application/json"):
		mode = "json"
		payload, perr = encodeJSONPayload(body)

	default:
		s.failPrint(c, printerID, "", badPayload(
			"unsupported payload: use text/plain|text/xml|application/xml (ePOS), application/octet-stream (raw), or application/json (job)", nil))
		return
	}

	if perr != nil {
		s.failPrint(c, printerID, mode, perr)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := s.manager.Send(ctx, p, payload); err != nil {
		if errors.Is(err, printer.ErrUnsupportedBackend) {
			s.failPrint(c, printerID, mode, &ProxyError{Kind: KindUnsupported, Detail: "backend not supported", Err: err})
			return
		}
		s.failPrint(c, printerID, mode, ioError("transmit failed", err))
		return
	}

	s.logger.Info().
		Str("printer", printerID).
		Str("mode", mode).
		Int("bytes", len(payload)).
		Msg("print job sent")

	printRequests.WithLabelValues(printerID, mode, "success").Inc()
	printBytes.WithLabelValues(printerID).Add(float64(len(payload)))
	pooledConnections.Set(float64(s.manager.IdleConnections()))
	s.hub.Broadcast(EventPrint, gin.H{
		"printer_id": printerID,
		"mode":       mode,
		"bytes":      len(payload),
		"outcome":    "success",
	})

	xmlSuccess(c)
}

// failPrint logs the classified failure, records it, and renders the opaque
// XML error. The kind and detail never reach the client.
func (s *Server) failPrint(c *gin.Context, printerID, mode string, perr *ProxyError) {
	s.logger.Error().
		Str("printer", printerID).
		Str("mode", mode).
		Str("kind", string(perr.Kind)).
		Err(perr).
		Msg("print request failed")

	if mode == "" {
		mode = "none"
	}
	printRequests.WithLabelValues(printerID, mode, "error").Inc()
	s.hub.Broadcast(EventPrint, gin.H{
		"printer_id": printerID,
		"mode":       mode,
		"outcome":    "error",
	})

	xmlError(c)
}

// extractOverrides reads the optional invert / bit-order signals, query
// parameters first, then headers. They apply only to the XML mode.
func (s *Server) extractOverrides(c *gin.Context) (*bool, *escpos.BitOrder) {
	var invert *bool
	if v, ok := c.GetQuery("invert"); ok {
		b := escpos.ParseBool(v)
		invert = &b
	} else if h := c.GetHeader("x-escpos-invert"); h != "" {
		b := escpos.ParseBool(h)
		invert = &b
	}

	var bit *escpos.BitOrder
	if v, ok := c.GetQuery("bit"); ok {
		o := escpos.ParseBitOrder(v)
		bit = &o
	} else if h := c.GetHeader("x-escpos-bit-order"); h != "" {
		o := escpos.ParseBitOrder(h)
		bit = &o
	}

	return invert, bit
}

func encodeEposPayload(body []byte, invert *bool, bit *escpos.BitOrder) ([]byte, *ProxyError) {
	doc, err := escpos.ParseDocument(body, invert, bit)
	if err != nil {
		return nil, badPayload("ePOS parse failed", err)
	}
	payload, err := escpos.EncodeDocument(doc)
	if err != nil {
		return nil, badPayload("ePOS encode failed", err)
	}
	return payload, nil
}

func encodeJSONPayload(body []byte) ([]byte, *ProxyError) {
	var job escpos.Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, badPayload("invalid JSON job", err)
	}

	var payload []byte
	switch {
	case job.Base64 != "":
		decoded, err := base64.StdEncoding.DecodeString(job.Base64)
		if err != nil {
			return nil, badPayload("invalid base64 payload", err)
		}
		payload = decoded
	case job.Ops != nil:
		encoded, err := escpos.EncodeOps(job.Ops)
		if err != nil {
			return nil, badPayload("invalid op list", err)
		}
		payload = encoded
	}

	if len(payload) == 0 {
		return nil, badPayload("job produced no ESC/POS data", nil)
	}
	return payload, nil
}
