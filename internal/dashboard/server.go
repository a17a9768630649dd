// Package dashboard exposes the synced floor and the staff intents over
// HTTP for whatever renders the operations dashboard.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/tableside/internal/conn"
	"github.com/zulandar/tableside/internal/floor"
	"github.com/zulandar/tableside/internal/notice"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Client is the subset of ops.Client the bridge drives.
type Client interface {
	Store() *floor.Store
	State() conn.State
	MoveSource() (int, bool)
	Stats() (frames, dropped int64)

	CloseTable(id int) bool
	DisableTable(id int) bool
	EnableTable(id int) bool
	RestoreTable(id int) bool
	ResolveWaiterRequest(id string) bool
	RetryPOSPush(orderID int) bool
	ArmMove(tableID int) bool
	SelectTable(tableID int) bool
	CancelMove()
}

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Client Client
	Broker *notice.Broker // optional; /api/events only sends heartbeats without it
	DB     *gorm.DB       // optional; enables /api/activity
	Port   int
	Rate   float64 // requests per second per client IP; 0 disables limiting
	Burst  int
	Out    io.Writer
}

// NewRouter builds the gin engine serving the bridge API.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("dashboard: client is required")
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if opts.Rate > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		router.Use(RateLimiter(rate.Limit(opts.Rate), burst))
	}
	registerRoutes(router, opts)
	return router, nil
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 8420
	}
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard bridge listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
