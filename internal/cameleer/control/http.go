package control

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cameleer-io/cameleer/internal/cameleer/logging"
)

// controlMarker is the literal substring the path must contain; everything
// after it, split on spaces, is the command line (§6).
const controlMarker = "control/command/"

// HTTPSurface exposes the control dispatch table as a GET endpoint. 200 on
// success; 500 with the error text in the body on command failure (§6).
type HTTPSurface struct {
	dispatcher *Dispatcher
	logger     logging.Logger
	engine     *gin.Engine
}

func NewHTTPSurface(d *Dispatcher, logger logging.Logger) *HTTPSurface {
	if logger == nil {
		logger = logging.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	h := &HTTPSurface{dispatcher: d, logger: logger, engine: r}
	r.GET("/*path", h.handle)
	return h
}

func (h *HTTPSurface) handle(c *gin.Context) {
	path := c.Param("path")
	idx := strings.Index(path, controlMarker)
	if idx < 0 {
		c.String(http.StatusNotFound, "not a control path")
		return
	}
	line := strings.TrimSpace(path[idx+len(controlMarker):])
	result, err := h.dispatcher.Dispatch(line)
	if err != nil {
		h.logger.Error("control", "command failed", "line", line, "err", err.Error())
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.String(http.StatusOK, fmt.Sprintf("%v", result))
}

// ListenAndServe blocks serving on the given port.
func (h *HTTPSurface) ListenAndServe(port int) error {
	return h.engine.Run(":" + strconv.Itoa(port))
}
