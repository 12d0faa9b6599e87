// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/media-forge/internal/compositor"
	"github.com/yourusername/media-forge/internal/config"
	"github.com/yourusername/media-forge/internal/events"
	"github.com/yourusername/media-forge/internal/extractor"
	"github.com/yourusername/media-forge/internal/jobs"
	"github.com/yourusername/media-forge/internal/storage"
	"github.com/yourusername/media-forge/internal/ytdlp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	logger := log.Default()
	diag, closeDiag, err := openDiagnosticLog(cfg.DiagnosticLogPath)
	if err != nil {
		log.Fatalf("Failed to open diagnostic log: %v", err)
	}
	defer closeDiag()

	app, err := newApp(cfg, logger, diag)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	app.start(ctx)

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()
	router.Use(cors.New(corsConfig(cfg)))

	// ルーティングの設定
	setupRoutes(router, app)

	// サーバーの起動
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// SSE の購読を先に閉じないと Shutdown が接続の終了を待ち続ける
	app.broadcaster.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	app.shutdown(shutdownCtx)
}

// corsConfig は CORS ミドルウェアの設定を作ります。
func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	var origins []string
	for _, o := range strings.Split(cfg.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	corsCfg.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Cache-Control",
	}
	// ダウンロード時にファイル名を読めるように公開
	corsCfg.ExposeHeaders = []string{"Content-Disposition", "X-Job-Id"}
	return corsCfg
}

// healthHandler はヘルスチェックエンドポイントのハンドラーです。
func healthHandler(app *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"service":     "media-forge-api",
			"version":     "0.1.0",
			"subscribers": app.broadcaster.SubscriberCount(),
		})
	}
}

// setupRoutes は API グループの配線を行います。
func setupRoutes(router *gin.Engine, app *app) {
	router.GET("/health", healthHandler(app))

	api := router.Group("/api")
	{
		api.POST("/video-info", extractor.InfoHandler(app.gateway))
		api.GET("/events", events.StreamHandler(app.broadcaster))

		jobRoutes := api.Group("/jobs")
		{
			jobRoutes.POST("", jobs.CreateHandler(app.manager, app.dispatcher))
			jobRoutes.GET("", jobs.ListHandler(app.manager))
			jobRoutes.GET("/:id", jobs.StatusHandler(app.manager))
			jobRoutes.POST("/:id/cancel", jobs.CancelHandler(app.manager))
			jobRoutes.GET("/:id/file", jobs.FileHandler(app.manager, app.store))
		}
	}
}

// app はサーバーが使うサービス一式です。
type app struct {
	cfg         *config.Config
	logger      *log.Logger
	broadcaster *events.Broadcaster
	store       *storage.Local
	manager     *jobs.Manager
	gateway     *extractor.Gateway
	dispatcher  jobs.Dispatcher
	stopWorkers func(ctx context.Context) error
	closers     []func() error
}

func newApp(cfg *config.Config, logger, diag *log.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	var sinks []events.Sink
	if cfg.EventsRedisURL != "" {
		sink, err := events.NewRedisSinkFromURL(cfg.EventsRedisURL, cfg.EventsChannel)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
		a.closers = append(a.closers, sink.Close)
		logger.Printf("Relaying job events to redis channel %s", cfg.EventsChannel)
	}
	a.broadcaster = events.NewBroadcaster(logger, sinks...)

	store, err := storage.NewLocal(cfg.DownloadDir)
	if err != nil {
		return nil, err
	}
	a.store = store
	logger.Printf("Saving downloads to %s", store.Root())
	client := ytdlp.NewClient(cfg.YtDlpPath, cfg.FFmpegLocation, cfg.UserAgent, cfg.PrimaryHosts)
	comp := compositor.New(cfg.FFmpegPath, cfg.WatermarkWidthRatio)

	a.manager, err = jobs.NewManager(jobs.NewTable(cfg.Retention()), store, client, comp, a.broadcaster, jobs.Options{
		CancelGrace: cfg.CancelGrace(),
		Logger:      logger,
		Diagnostics: diag,
	})
	if err != nil {
		return nil, err
	}

	a.dispatcher, a.stopWorkers, err = setupDispatcher(cfg, a.manager, logger)
	if err != nil {
		return nil, err
	}
	a.gateway = extractor.NewGateway(client, cfg.CredentialContexts, cfg.PlaylistMaxEntries, logger)
	return a, nil
}

// start は掃除ループを起動します。
func (a *app) start(ctx context.Context) {
	go a.manager.RunSweeper(ctx, a.cfg.SweepInterval())
}

func (a *app) shutdown(ctx context.Context) {
	if err := a.stopWorkers(ctx); err != nil {
		a.logger.Printf("Worker shutdown error: %v", err)
	}
	a.broadcaster.Close()
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Printf("Close error: %v", err)
		}
	}
}
