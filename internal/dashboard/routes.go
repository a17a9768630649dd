package dashboard

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/tableside/internal/journal"
	"gorm.io/gorm"
)

// registerRoutes sets up all bridge routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	c := opts.Client
	api := router.Group("/api")

	// Reads.
	api.GET("/status", handleStatus(c))
	api.GET("/tables", handleTables(c))
	api.GET("/tables/:id", handleTable(c))
	api.GET("/queue", handleQueue(c))
	api.GET("/activity", handleActivity(opts.DB))

	// Intents.
	api.POST("/tables/:id/close", handleTableIntent(c.CloseTable))
	api.POST("/tables/:id/disable", handleTableIntent(c.DisableTable))
	api.POST("/tables/:id/enable", handleTableIntent(c.EnableTable))
	api.POST("/tables/:id/restore", handleTableIntent(c.RestoreTable))
	api.POST("/tables/:id/move", handleArmMove(c))
	api.POST("/tables/:id/select", handleSelect(c))
	api.POST("/move/cancel", handleCancelMove(c))
	api.POST("/requests/:id/resolve", handleResolve(c))
	api.POST("/orders/:id/retry-pos", handleRetryPOS(c))

	api.GET("/events", handleSSE(opts.Broker))
}

func handleStatus(c Client) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		frames, dropped := c.Stats()
		body := gin.H{
			"state":   c.State(),
			"tables":  c.Store().TableCount(),
			"queue":   c.Store().QueueLen(),
			"frames":  frames,
			"dropped": dropped,
		}
		if src, armed := c.MoveSource(); armed {
			body["move_source"] = src
		}
		ctx.JSON(http.StatusOK, body)
	}
}

func handleTables(c Client) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, c.Store().Tables())
	}
}

func handleTable(c Client) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id, ok := intParam(ctx, "id")
		if !ok {
			return
		}
		t, found := c.Store().Table(id)
		if !found {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "table not found"})
			return
		}
		ctx.JSON(http.StatusOK, t)
	}
}

func handleQueue(c Client) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, c.Store().Queue())
	}
}

func handleActivity(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if db == nil {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "journal is not enabled"})
			return
		}
		limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
		rows, err := journal.Recent(db, limit)
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, rows)
	}
}

// accepted answers an intent: 202 once the command reached the transport,
// 503 when the connection is not ready.
func accepted(ctx *gin.Context, sent bool) {
	if !sent {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "not connected"})
		return
	}
	ctx.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

func handleTableIntent(fn func(int) bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id, ok := intParam(ctx, "id")
		if !ok {
			return
		}
		accepted(ctx, fn(id))
	}
}

func handleArmMove(c Client) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id, ok := intParam(ctx, "id")
		if !ok {
			return
		}
		prev, wasArmed := c.MoveSource()
		if c.ArmMove(id) {
			ctx.JSON(http.StatusAccepted, gin.H{"armed": true, "source": id})
			return
		}
		if wasArmed && prev == id {
			ctx.JSON(http.StatusOK, gin.H{"armed": false})
			return
		}
		ctx.JSON(http.StatusConflict, gin.H{"error": "only an occupied table can be moved"})
	}
}

func handleSelect(c Client) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id, ok := intParam(ctx, "id")
		if !ok {
			return
		}
		if !c.SelectTable(id) {
			ctx.JSON(http.StatusConflict, gin.H{"error": "no move in progress"})
			return
		}
		_, armed := c.MoveSource()
		ctx.JSON(http.StatusAccepted, gin.H{"captured": true, "armed": armed})
	}
}

func handleCancelMove(c Client) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		c.CancelMove()
		ctx.JSON(http.StatusOK, gin.H{"armed": false})
	}
}

func handleResolve(c Client) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		accepted(ctx, c.ResolveWaiterRequest(ctx.Param("id")))
	}
}

func handleRetryPOS(c Client) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id, ok := intParam(ctx, "id")
		if !ok {
			return
		}
		accepted(ctx, c.RetryPOSPush(id))
	}
}

// intParam parses a positive integer path parameter, answering 400 itself
// when it is not one.
func intParam(ctx *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(ctx.Param(name))
	if err != nil || n <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return n, true
}
