package ws

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	apihttp "github.com/GriffinCanCode/blurguard/internal/api/http"
	"github.com/GriffinCanCode/blurguard/internal/infrastructure/logging"
	"github.com/GriffinCanCode/blurguard/internal/scanner"
	"github.com/GriffinCanCode/blurguard/internal/watcher"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the CORS middleware decides who may call the API
	},
}

// Message is one frame sent to the client
type Message struct {
	Type       string          `json:"type"` // mark, complete, error
	Src        string          `json:"src,omitempty"`
	Tag        string          `json:"tag,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Reasons    []string        `json:"reasons,omitempty"`
	Report     *scanner.Report `json:"report,omitempty"`
	Error      string          `json:"error,omitempty"`
	Timestamp  int64           `json:"timestamp"`
}

// Handler streams annotations of a scan over a WebSocket
type Handler struct {
	scanner *scanner.Scanner
	timeout time.Duration
	log     *logging.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(s *scanner.Scanner, timeout time.Duration, log *logging.Logger) *Handler {
	return &Handler{
		scanner: s,
		timeout: timeout,
		log:     log.OrNop().Component("ws"),
	}
}

// HandleScan upgrades GET /v1/scan/stream?url=...&threshold=... and sends a
// mark frame per flagged element, then the full report
func (h *Handler) HandleScan(c *gin.Context) {
	pageURL := c.Query("url")
	if err := apihttp.ValidatePageURL(pageURL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var opts scanner.Options
	if raw := c.Query("threshold"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid threshold"})
			return
		}
		opts.Threshold = &t
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if h.timeout > 0 {
		ctx, cancel = context.WithTimeout(c.Request.Context(), h.timeout)
	} else {
		ctx, cancel = context.WithCancel(c.Request.Context())
	}
	defer cancel()

	// A client hanging up aborts the scan.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	var mu sync.Mutex
	send := func(msg Message) {
		msg.Timestamp = time.Now().Unix()
		data, err := sonic.Marshal(msg)
		if err != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug("WebSocket write failed", zap.Error(err))
		}
	}

	opts.OnMark = func(a watcher.Annotation) {
		send(Message{
			Type:       "mark",
			Src:        a.Src,
			Tag:        a.Element.TagName(),
			Confidence: a.Verdict.Confidence,
			Reasons:    a.Verdict.Reasons,
		})
	}

	report, err := h.scanner.Scan(ctx, pageURL, opts)
	if err != nil {
		send(Message{Type: "error", Error: err.Error()})
		return
	}
	send(Message{Type: "complete", Report: report})

	mu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	mu.Unlock()
}
