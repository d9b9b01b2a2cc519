package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/rebound/backend/internal/contracts"
	"github.com/wonny/rebound/backend/internal/ranking"
	"github.com/wonny/rebound/backend/pkg/database"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "시스템 상태 확인",
	Long: `데이터베이스, 레코드, 스냅샷 상태를 출력합니다.

Example:
  go run ./cmd/radar status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Rebound Radar Status ===")

	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// 1. Database health
	health, err := a.db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	fmt.Printf("\n✅ Database: %s\n", healthLine(health))

	// 2. Record and task stats
	stats, err := a.stats(ctx)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	fmt.Printf("\nRecords: %d (avg quality %.1f)\n", stats.TotalRecords, stats.AverageQualityScore)
	for _, level := range []string{"high", "medium", "low", "invalid"} {
		if n, ok := stats.QualityDistribution[level]; ok {
			fmt.Printf("  %-12s %d\n", level, n)
		}
	}
	fmt.Printf("Enrichment tasks: %d pending, %d completed\n", stats.PendingTasks, stats.CompletedTasks)

	// 3. Snapshot freshness per period
	fmt.Println("\nSnapshots:")
	for _, period := range contracts.Periods {
		snap, err := a.snapshots.Get(ctx, period)
		if err != nil {
			if errors.Is(err, contracts.ErrNotFound) {
				fmt.Printf("  %-5s (none)\n", period)
				continue
			}
			return fmt.Errorf("load snapshot %s: %w", period, err)
		}
		state := "fresh"
		if snap.Expired(ranking.SnapshotTTL(period)) {
			state = "expired"
		}
		fmt.Printf("  %-5s %d records, refresh #%d, computed %s (%s)\n",
			period, snap.TotalRecords, snap.RefreshCount,
			snap.ComputedAt.Format("2006-01-02 15:04:05"), state)
	}

	return nil
}

// healthLine renders the database health for the status report
func healthLine(hs *database.HealthStatus) string {
	if !hs.Healthy {
		return "unhealthy: " + hs.Error
	}
	return fmt.Sprintf("ok (ping %s, %d/%d conns)",
		hs.ResponseTime, hs.Stats.TotalConns, hs.Stats.MaxConns)
}
