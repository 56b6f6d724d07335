package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/pos-sync/internal/cart"
	"github.com/richardliu001/pos-sync/internal/engine"
	"github.com/richardliu001/pos-sync/internal/model"
	"github.com/richardliu001/pos-sync/internal/uploader"
	"go.uber.org/zap"
)

// API bundles what the local operator/UI surface is allowed to touch.
// It only ever sees aggregates and queue entries, never engine
// internals.
type API struct {
	Engine   *engine.Engine
	Uploader *uploader.Uploader
	Cart     *cart.Session
	Log      *zap.SugaredLogger
}

func RegisterHandlers(r *gin.Engine, api *API) {
	v1 := r.Group("/v1")
	{
		v1.GET("/sync/status", statusHandler(api))
		v1.POST("/cart/open", cartOpenHandler(api))
		v1.POST("/cart/close", cartCloseHandler(api))
		v1.POST("/transactions", completeSaleHandler(api))
		v1.GET("/transactions/abandoned", abandonedHandler(api))
		v1.POST("/transactions/:guid/retry", retryAbandonedHandler(api))
	}
}

func statusHandler(api *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		up, err := api.Uploader.Status(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"engine":  api.Engine.Status(c),
			"uploads": up,
		})
	}
}

func cartOpenHandler(api *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := api.Cart.Open(c); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"open": true})
	}
}

type cartCloseReq struct {
	// completed, held or voided; informational only, every terminal
	// state releases the staged shadows
	Reason string `json:"reason"`
}

func cartCloseHandler(api *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cartCloseReq
		_ = c.ShouldBindJSON(&req)
		if err := api.Cart.Close(c); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		swept, err := api.Engine.OnTransactionClosed(c)
		if err != nil {
			api.Log.Errorf("sweep after cart close (%s): %v", req.Reason, err)
		}
		c.JSON(http.StatusOK, gin.H{"open": false, "swept": swept})
	}
}

// completeSaleHandler is the sale-completion entry point: persist the
// sale for upload, close the cart, then release staged shadows.
func completeSaleHandler(api *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sale model.Sale
		if err := c.ShouldBindJSON(&sale); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		guid, err := api.Uploader.Enqueue(c, &sale)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := api.Cart.Close(c); err != nil {
			api.Log.Errorf("close cart after sale %s: %v", guid, err)
		}
		if _, err := api.Engine.OnTransactionClosed(c); err != nil {
			api.Log.Errorf("sweep after sale %s: %v", guid, err)
		}
		c.JSON(http.StatusAccepted, gin.H{"guid": guid})
	}
}

func abandonedHandler(api *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		qts, err := api.Uploader.ListAbandoned(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, qts)
	}
}

func retryAbandonedHandler(api *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		guid := c.Param("guid")
		if err := api.Uploader.RetryAbandoned(c, guid); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"guid": guid, "status": model.TxStatusPending})
	}
}
