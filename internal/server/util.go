package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/loykin/prokill/internal/manager"
)

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	bp = strings.TrimRight(bp, "/")
	return bp
}

func writeJSON(c *gin.Context, code int, v any) {
	c.Header("Content-Type", "application/json")
	c.Status(code)
	_ = json.NewEncoder(c.Writer).Encode(v)
}

type errorResp struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	// Message is the text to show a user.
	Message string `json:"message,omitempty"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(k manager.Kind) int {
	switch k {
	case manager.KindNone:
		return http.StatusOK
	case manager.KindNotFound:
		return http.StatusNotFound
	case manager.KindPermissionDenied:
		return http.StatusForbidden
	case manager.KindProtected:
		return http.StatusLocked
	case manager.KindSignalFailed:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	k := manager.KindOf(err)
	writeJSON(c, StatusFor(k), errorResp{
		Error:   err.Error(),
		Kind:    k.String(),
		Message: manager.Rejection(err).Message,
	})
}

func parsePID(c *gin.Context) (uint32, bool) {
	s := c.Param("pid")
	pid, err := strconv.ParseUint(s, 10, 32)
	if err != nil || pid == 0 {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: fmt.Sprintf("invalid pid %q", s)})
		return 0, false
	}
	return uint32(pid), true
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}
