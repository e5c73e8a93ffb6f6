package orderhttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"ordercore/internal/engine"
	"ordercore/internal/logger"
	"ordercore/internal/order"
	"ordercore/internal/risk"
	"ordercore/internal/venue"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// OrderService is the slice of the engine the HTTP layer needs.
type OrderService interface {
	Submit(ctx context.Context, d order.Draft) (*order.Order, error)
	SubmitOCO(ctx context.Context, drafts []order.Draft) ([]*order.Order, error)
	Cancel(ctx context.Context, id, reason string) error
	Lookup(id string) (*order.Order, bool)
	Orders() []*order.Order
	Events(buffer int) (<-chan engine.StateChange, func())
	ApplyFill(id string, fill venue.Fill) (*order.Order, bool, error)
}

type Router struct {
	svc OrderService
}

func NewRouter(svc OrderService) *Router {
	return &Router{svc: svc}
}

// Register mounts the order API under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("", r.handleSubmit)
	group.POST("/oco", r.handleSubmitOCO)
	group.GET("", r.handleList)
	group.GET("/:id", r.handleGet)
	group.POST("/:id/cancel", r.handleCancel)
	group.GET("/events", r.handleEvents)
	group.POST("/fills", r.handleFillWebhook)
}

func (r *Router) handleSubmit(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading body failed"})
		return
	}
	if err := validateJSON(compiledDraft, body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": schemaMessage(err)})
		return
	}
	var d order.Draft
	if err := json.Unmarshal(body, &d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	o, err := r.svc.Submit(c.Request.Context(), d)
	if err != nil {
		r.writeSubmitError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": o})
}

func (r *Router) handleSubmitOCO(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading body failed"})
		return
	}
	if err := validateJSON(compiledOCO, body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": schemaMessage(err)})
		return
	}
	var req struct {
		Legs []order.Draft `json:"legs"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	legs, err := r.svc.SubmitOCO(c.Request.Context(), req.Legs)
	if err != nil {
		r.writeSubmitError(c, err)
		return
	}
	group := ""
	if len(legs) > 0 {
		group = legs[0].OCOGroupID
	}
	c.JSON(http.StatusCreated, gin.H{"group_id": group, "orders": legs})
}

func (r *Router) handleList(c *gin.Context) {
	symbol := order.NormalizeSymbol(c.Query("symbol"))
	status := strings.ToUpper(strings.TrimSpace(c.Query("status")))
	out := make([]*order.Order, 0)
	for _, o := range r.svc.Orders() {
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		if status != "" && string(o.Status) != status {
			continue
		}
		out = append(out, o)
	}
	c.JSON(http.StatusOK, gin.H{"orders": out, "count": len(out)})
}

func (r *Router) handleGet(c *gin.Context) {
	o, ok := r.svc.Lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

func (r *Router) handleCancel(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	// The body is optional; a bare POST cancels with the default reason.
	_ = c.ShouldBindJSON(&req)
	err := r.svc.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
	if errors.Is(err, engine.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	o, _ := r.svc.Lookup(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// handleEvents relays the lifecycle stream as server-sent events until the
// client disconnects.
func (r *Router) handleEvents(c *gin.Context) {
	events, unsubscribe := r.svc.Events(64)
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				logger.Warnf("encoding state change failed: %v", err)
				continue
			}
			c.SSEvent("state_change", string(payload))
			c.Writer.Flush()
		}
	}
}

// handleFillWebhook accepts asynchronous execution reports from a venue.
// The payload's order id must reference an engine record; duplicate exec
// ids are acknowledged without effect.
func (r *Router) handleFillWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading body failed"})
		return
	}
	fill, err := venue.ParseFill(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if fill.VenueOrderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "venue report missing order id"})
		return
	}
	o, applied, err := r.svc.ApplyFill(fill.VenueOrderID, fill)
	if errors.Is(err, engine.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o, "applied": applied})
}

func (r *Router) writeSubmitError(c *gin.Context, err error) {
	var rej *risk.Rejection
	switch {
	case errors.Is(err, order.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &rej):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": rej.Error(), "reason": rej.Reason})
	default:
		logger.Errorf("order submission failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func schemaMessage(err error) string {
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		loc := strings.TrimPrefix(leaf.InstanceLocation, "/")
		if loc == "" {
			return leaf.Message
		}
		return loc + ": " + leaf.Message
	}
	return err.Error()
}
