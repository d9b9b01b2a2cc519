package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/rebound/backend/internal/api"
	"github.com/wonny/rebound/backend/internal/api/handlers"
	"github.com/wonny/rebound/backend/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 랭킹/레코드 조회 엔드포인트 제공
- 리프레시/보강 트리거 제공

Endpoints:
  GET  /health                      - Health check
  GET  /api/cryptos/ranking         - 기간별 랭킹 조회
  GET  /api/cryptos/{symbol}        - 심볼 레코드 조회
  GET  /api/cryptos/count           - 레코드 수
  POST /api/cryptos/refresh         - 백그라운드 리프레시 시작
  GET  /api/cryptos/refresh/status  - 리프레시 상태
  GET  /api/stats                   - 데이터베이스 통계
  POST /api/enrichment/trigger      - 보강 작업 트리거
  GET  /api/rankings/computation    - 스냅샷 계산 상태

Example:
  go run ./cmd/radar api
  go run ./cmd/radar api --port 8091`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default from PORT env)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Rebound Radar API Server ===")

	ctx := context.Background()

	// 1. Build the component graph
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	// 2. Create handlers
	cryptoHandler := handlers.NewCryptoHandler(a.engine, a.records, a.coordinator, a.log)
	if a.redis != nil && a.redis.Enabled() {
		cryptoHandler = cryptoHandler.WithSharedCache(redis.NewCache(a.redis, "radar"))
	}
	systemHandler := handlers.NewSystemHandler(a.stats, a.enricher, a.engine, a.log)

	// 3. Create router and server
	router := api.NewRouter(cryptoHandler, systemHandler, a.log)
	server := api.New(a.cfg, a.log, router)

	// 4. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	a.log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	a.log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
