package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Domenick1991/carpool/api"
	"github.com/Domenick1991/carpool/config"
	"github.com/Domenick1991/carpool/internal/auth"
	"github.com/Domenick1991/carpool/internal/docstore"
	"github.com/Domenick1991/carpool/internal/service/bookings"
	"github.com/Domenick1991/carpool/internal/service/rides"
	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Run starts the HTTP server and blocks until ctx is canceled or the
// server fails.
func Run(ctx context.Context, cfg *config.Config, rideSvc rides.RideUseCase, bookingSvc bookings.BookingUseCase, store docstore.Store) error {
	router := newRouter(cfg, rideSvc, bookingSvc, store)

	httpSrv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func newRouter(cfg *config.Config, rideSvc rides.RideUseCase, bookingSvc bookings.BookingUseCase, store docstore.Store) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.HTTP.SwaggerDir != "" {
		router.Static("/swagger", cfg.HTTP.SwaggerDir)
		router.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(
			httpSwagger.URL("/swagger/carpool.swagger.json"),
		)))
	}

	v1 := router.Group("/api/v1", auth.Middleware(cfg.Auth.JWTSecret))
	api.NewRideHandler(rideSvc).Register(v1.Group("/rides"))
	api.NewBookingHandler(bookingSvc).Register(v1.Group("/bookings"))
	api.NewRideStream(store).Register(v1.Group("/ws"))

	return router
}
