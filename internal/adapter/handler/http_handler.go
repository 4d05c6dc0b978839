package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rl1809/cartstore/internal/core/domain"
)

// CartStore is the cart surface the HTTP API drives.
type CartStore interface {
	Cart() domain.Cart
	AddItem(ctx context.Context, itemID int)
	RemoveItem(ctx context.Context, itemID int)
	SetQuantity(ctx context.Context, itemID, quantity int)
	Subscribe(buffer int) (<-chan domain.Cart, func())
}

type HTTPHandler struct {
	store  CartStore
	logger *zap.Logger
}

type SetQuantityHTTPRequest struct {
	Amount *int `json:"amount" binding:"required"`
}

type CartHTTPResponse struct {
	Items      domain.Cart `json:"items"`
	TotalUnits int         `json:"total_units"`
}

type ErrorHTTPResponse struct {
	Message string `json:"message"`
}

func NewHTTPHandler(store CartStore, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{store: store, logger: logger.Named("cart.http")}
}

func (h *HTTPHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api/cart")
	api.GET("", h.GetCart)
	api.GET("/events", h.StreamCart)
	api.POST("/items/:itemId", h.AddItem)
	api.PUT("/items/:itemId", h.SetQuantity)
	api.DELETE("/items/:itemId", h.RemoveItem)
}

func (h *HTTPHandler) GetCart(c *gin.Context) {
	c.JSON(http.StatusOK, cartResponse(h.store.Cart()))
}

// Mutations always answer with the resulting cart; rejected operations are
// delivered through the notice channel, not the response status.
func (h *HTTPHandler) AddItem(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	h.store.AddItem(c.Request.Context(), itemID)
	c.JSON(http.StatusOK, cartResponse(h.store.Cart()))
}

func (h *HTTPHandler) RemoveItem(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	h.store.RemoveItem(c.Request.Context(), itemID)
	c.JSON(http.StatusOK, cartResponse(h.store.Cart()))
}

func (h *HTTPHandler) SetQuantity(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	var req SetQuantityHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("invalid set quantity body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorHTTPResponse{Message: "invalid request body"})
		return
	}

	h.store.SetQuantity(c.Request.Context(), itemID, *req.Amount)
	c.JSON(http.StatusOK, cartResponse(h.store.Cart()))
}

// StreamCart sends the current cart, then every committed cart, as
// server-sent events until the client goes away.
func (h *HTTPHandler) StreamCart(c *gin.Context) {
	updates, cancel := h.store.Subscribe(8)
	defer cancel()

	c.SSEvent("cart", cartResponse(h.store.Cart()))
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case cart, open := <-updates:
			if !open {
				return false
			}
			c.SSEvent("cart", cartResponse(cart))
			return true
		}
	})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func itemIDParam(c *gin.Context) (int, bool) {
	itemID, err := strconv.Atoi(c.Param("itemId"))
	if err != nil || itemID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorHTTPResponse{Message: "invalid item id"})
		return 0, false
	}
	return itemID, true
}

func cartResponse(cart domain.Cart) CartHTTPResponse {
	if cart == nil {
		cart = domain.Cart{}
	}
	return CartHTTPResponse{Items: cart, TotalUnits: cart.TotalQuantity()}
}
