// Package gateway is the saga intake: it authenticates the caller,
// validates the request against the catalog, and publishes the enriched
// order task. The caller gets an immediate submission acknowledgment;
// everything downstream is observable only through the order's status
// fields.
package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Chamal1120/globalbooks-soa/catalog"
	"github.com/Chamal1120/globalbooks-soa/errdefs"
	"github.com/Chamal1120/globalbooks-soa/middleware"
	"github.com/Chamal1120/globalbooks-soa/models"
	"github.com/Chamal1120/globalbooks-soa/queue"
)

type Handler struct {
	publisher queue.Publisher
	catalog   catalog.Client
	jwtSecret []byte
	logger    *zap.Logger
}

func NewHandler(publisher queue.Publisher, catalogClient catalog.Client, jwtSecret []byte, logger *zap.Logger) *Handler {
	return &Handler{
		publisher: publisher,
		catalog:   catalogClient,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

type SubmitItem struct {
	BookID   string `json:"bookId" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

type SubmitOrderRequest struct {
	CustomerID      string         `json:"customerId" binding:"required"`
	Items           []SubmitItem   `json:"items" binding:"required,min=1,dive"`
	ShippingAddress models.Address `json:"shippingAddress"`
	PaymentMethod   string         `json:"paymentMethod"`
}

type SubmitOrderResponse struct {
	CorrelationID string `json:"correlationId"`
	Status        string `json:"status"`
}

// SubmitOrder accepts a saga-start request. The 202 response is returned
// only after the order task has been durably published; a publish failure
// surfaces as an error so an accepted order is never silently dropped.
func (h *Handler) SubmitOrder(c *gin.Context) {
	ctx, span := otel.Tracer("gateway").Start(c.Request.Context(), "SubmitOrder")
	defer span.End()

	if !h.authenticate(c) {
		return
	}

	var req SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("customer_id", req.CustomerID),
		attribute.Int("item_count", len(req.Items)),
	)

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		book, err := h.catalog.Lookup(ctx, item.BookID)
		if err != nil {
			span.RecordError(err)
			switch {
			case errdefs.IsNotFound(err):
				c.JSON(http.StatusNotFound, gin.H{"error": "Book not found", "bookId": item.BookID})
			case errdefs.IsUpstream(err):
				h.logger.Error("Catalog lookup failed",
					zap.String("trace_id", middleware.GetTraceID(ctx)),
					zap.String("book_id", item.BookID),
					zap.Error(err),
				)
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Catalog service unavailable"})
			default:
				h.logger.Error("Catalog lookup failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			}
			return
		}

		items = append(items, models.OrderItem{
			BookID:    book.ID,
			Title:     book.Title,
			Author:    book.Author,
			Quantity:  item.Quantity,
			UnitPrice: book.Price,
		})
	}

	task := models.OrderTask{
		IdempotencyKey:  uuid.NewString(),
		CustomerID:      req.CustomerID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	}

	if err := h.publisher.Publish(ctx, queue.OrderQueue, task.IdempotencyKey, task); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to publish order task",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Order could not be submitted"})
		return
	}

	h.logger.Info("Order submitted",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("correlation_id", task.IdempotencyKey),
		zap.String("customer_id", req.CustomerID),
	)

	c.JSON(http.StatusAccepted, SubmitOrderResponse{
		CorrelationID: task.IdempotencyKey,
		Status:        "submitted",
	})
}

// authenticate validates the bearer token. Token issuance is the auth
// collaborator's concern; the gateway only checks signature and expiry.
func (h *Handler) authenticate(c *gin.Context) bool {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is required"})
		return false
	}

	tokenString := strings.TrimPrefix(header, "Bearer ")
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return h.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return false
	}
	return true
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
