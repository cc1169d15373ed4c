package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nft-storefront/internal/service/notification"
)

const (
	signatureHeader = "X-Liteflow-Signature"
	maxWebhookBody  = 1 << 20
)

func webhookHandler(n Notifier, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "read body"})
			return
		}
		sent, err := n.Handle(c.Request.Context(), body, c.GetHeader(signatureHeader))
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"sent": sent})
		case errors.Is(err, notification.ErrInvalidSignature):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		case errors.Is(err, notification.ErrInvalidPayload), errors.Is(err, notification.ErrUnknownEvent):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.Error("webhook delivery failed", zap.Error(err))
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "notification failed"})
		}
	}
}
