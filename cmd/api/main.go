package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nemonet1337/soukoWMS/internal/config"
	"github.com/nemonet1337/soukoWMS/pkg/warehouse"
	"github.com/nemonet1337/soukoWMS/pkg/warehouse/storage"
)

func main() {
	// .envがあれば読み込む（本番環境では環境変数を直接使用）
	_ = godotenv.Load()

	// 設定読み込み（CONFIG_FILE指定時はYAMLと環境変数をマージ）
	cfg, err := config.Resolve()
	if err != nil {
		log.Fatal("設定読み込みに失敗しました:", err)
	}

	// ログ設定
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatal("ログ初期化に失敗しました:", err)
	}
	defer logger.Sync()

	// データベース接続
	store, err := storage.NewPostgreSQLStore(cfg.DSN(), logger)
	if err != nil {
		logger.Fatal("データベース接続に失敗しました", zap.Error(err))
	}
	defer store.Close()

	// メトリクス
	var metrics *warehouse.Metrics
	if cfg.API.EnableMetrics {
		metrics = warehouse.NewMetrics(prometheus.DefaultRegisterer)
		// DBコネクションプールの使用状況も公開する
		prometheus.DefaultRegisterer.MustRegister(
			collectors.NewDBStatsCollector(store.DB(), cfg.Database.DBName))
	}

	// 移動エンジン初期化
	engine := warehouse.NewEngine(store, metrics, logger, &warehouse.Config{
		MaxTransferQuantity: cfg.Warehouse.MaxTransferQuantity,
	})

	// HTTPハンドラー設定
	handlers := NewHandlers(engine, store, logger, cfg.Warehouse.MovementHistoryLimit)
	router := setupRouter(handlers, cfg.API)

	// HTTPサーバー設定
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.API.Port),
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	// グレースフルシャットダウン設定
	go func() {
		logger.Info("倉庫管理APIサーバーを開始します", zap.Int("port", cfg.API.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー開始に失敗しました", zap.Error(err))
		}
	}()

	// シャットダウンシグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	// グレースフルシャットダウン
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("サーバーシャットダウンに失敗しました", zap.Error(err))
	}

	logger.Info("サーバーが正常に停止しました")
}

// newLogger builds a zap logger from the logging configuration
// ログ設定からzapロガーを構築
func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("無効なログレベル %s: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = level
	zapCfg.Encoding = cfg.Format
	zapCfg.OutputPaths = []string{cfg.Output}

	return zapCfg.Build()
}

// setupRouter sets up HTTP routes
// HTTPルートを設定
func setupRouter(handlers *Handlers, apiCfg config.APIConfig) *mux.Router {
	router := mux.NewRouter()

	// ヘルスチェック
	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	if apiCfg.EnableMetrics {
		router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	// API v1ルート
	api := router.PathPrefix("/api/v1").Subrouter()

	// 移動操作
	api.HandleFunc("/putaway", handlers.Putaway).Methods("POST")
	api.HandleFunc("/picking/item", handlers.PickingItem).Methods("POST")

	// 診断ビュー
	api.HandleFunc("/inventory/{itemId}", handlers.GetInventory).Methods("GET")
	api.HandleFunc("/documents/{documentId}/progress", handlers.GetDocumentProgress).Methods("GET")
	api.HandleFunc("/locations/{locationId}/utilization", handlers.GetLocationUtilization).Methods("GET")
	api.HandleFunc("/items/{itemId}/movements", handlers.GetMovements).Methods("GET")

	// CORS設定（開発用）
	if apiCfg.EnableCORS {
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Company-ID, X-User-ID")

				if r.Method == "OPTIONS" {
					w.WriteHeader(http.StatusOK)
					return
				}

				next.ServeHTTP(w, r)
			})
		})
	}

	// ログ機能
	router.Use(loggingMiddleware(handlers.logger))

	return router
}

// loggingMiddleware logs HTTP requests
// HTTPリクエストをログ出力するミドルウェア
func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// リクエスト処理
			next.ServeHTTP(w, r)

			// ログ出力
			logger.Info("HTTPリクエスト",
				zap.String("method", r.Method),
				zap.String("url", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
