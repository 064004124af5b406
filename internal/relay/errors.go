package relay

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RelayErrorHeader marks responses produced by a failure inside the relay
// itself, as opposed to an error status relayed from upstream.
const RelayErrorHeader = "X-Relay-Error"

// APIError defines the structured error body.
// Example: { "error": { "code": "relay_error", "message": "upstream unreachable" } }
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// JSONError sends a structured error response and stops the chain.
func JSONError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: APIError{Code: code, Message: msg}})
}

// plainError sends {"error": msg}.
func plainError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// invalidParameter mirrors the upstream DashScope validation error shape.
func invalidParameter(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "InvalidParameter", "message": msg})
}

// relayError reports a relay-internal failure: 500, flagged by RelayErrorHeader.
func relayError(c *gin.Context, msg string, err error) {
	log.WithFields(log.Fields{
		"request_id": RequestIDFrom(c),
		"path":       c.Request.URL.Path,
	}).Errorf("%s: %v", msg, err)
	c.Header(RelayErrorHeader, "true")
	JSONError(c, http.StatusInternalServerError, "relay_error", msg)
}
