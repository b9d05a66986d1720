// demo_server shows the intended composition: a gin application protected
// by the firewall middlewares, with the admin surface and Prometheus
// metrics on a separate management port.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pollguard/logger"
	"pollguard/manager"
	"pollguard/middleware"
	"pollguard/notifier"
	"pollguard/store"
	"pollguard/waf"
)

func main() {
	configPath := "config.json"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := waf.LoadConfig(configPath)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	var blocks store.Storer = store.NewLocalStore()
	if addr := os.Getenv("POLLGUARD_REDIS_ADDR"); addr != "" {
		blocks = store.NewRedisStore(addr, os.Getenv("POLLGUARD_REDIS_PASSWORD"))
		logger.Info("distributed block set initialized (redis)", "addr", addr)
	} else {
		logger.Info("in-memory block set initialized")
	}

	engine := waf.NewEngine(cfg, blocks)
	engine.Start()
	defer engine.Shutdown()

	alerts := notifier.New(cfg.WebhookURL)
	engine.Tracker().OnBlock = func(clientID string, rec waf.ActivityRecord) {
		alerts.Alert(fmt.Sprintf("auto-blocked %s after %d findings", clientID, rec.EventCount), "HIGH")
	}
	engine.OnManual = func(ip, reason string) {
		alerts.Alert(fmt.Sprintf("manually blocked %s: %s", ip, reason), "MEDIUM")
	}

	// Protected application.
	router := gin.New()
	router.Use(gin.Recovery(), engine.GinRateLimit(), engine.GinMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/observers/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"observer": c.Param("id")})
	})
	router.POST("/reports", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"received": body})
	})

	enableCSRF := func() bool { return engine.Config().EnableCSRFProtection }
	appHandler := middleware.SecurityHeaders(middleware.CSRFOriginCheck(enableCSRF, router))

	appSrv := &http.Server{
		Addr:              ":8080",
		Handler:           appHandler,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Management plane: admin surface plus metrics, internal port only.
	mgmtMux := http.NewServeMux()
	manager.NewAPI(engine).Register(mgmtMux)
	mgmtMux.Handle("/metrics", promhttp.Handler())
	mgmtSrv := &http.Server{Addr: ":9091", Handler: mgmtMux}

	go func() {
		logger.Info("management plane active", "addr", mgmtSrv.Addr)
		if err := mgmtSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("management server failed", "err", err)
		}
	}()

	go func() {
		logger.Info("application active", "addr", appSrv.Addr)
		if err := appSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("application server failed", "err", err)
			os.Exit(1)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	logger.Info("stopping...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	appSrv.Shutdown(ctx)
	mgmtSrv.Shutdown(ctx)
	logger.Info("stopped")
}
