package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/rebound/backend/internal/contracts"
)

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "프로바이더 수집 실행",
	Long: `프로바이더 풀패스를 실행하고 레코드를 저장합니다.

이 명령어는:
- 전략에 따라 프로바이더 팬아웃
- 우선순위 병합 후 품질 스코어링
- 레코드 저장 및 메모리 캐시 초기화

Example:
  go run ./cmd/radar refresh
  go run ./cmd/radar refresh --force
  go run ./cmd/radar refresh --periods 1h,24h`,
	RunE: runRefresh,
}

var (
	refreshForce   bool
	refreshPeriods []string
)

func init() {
	rootCmd.AddCommand(refreshCmd)

	// Flags
	refreshCmd.Flags().BoolVar(&refreshForce, "force", false, "기간 신선도 게이트 무시")
	refreshCmd.Flags().StringSliceVar(&refreshPeriods, "periods", nil, "리프레시할 기간 (기본: 전체)")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Rebound Radar Refresh ===")

	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, period := range refreshPeriods {
		if !contracts.IsValidPeriod(period) {
			return fmt.Errorf("invalid period: %s", period)
		}
	}

	jobID, err := a.coordinator.StartBackgroundRefresh(refreshForce, refreshPeriods)
	if err != nil {
		return fmt.Errorf("start refresh: %w", err)
	}

	fmt.Printf("Refresh job started: %s\n", jobID)

	// One-shot command: wait for the background job to settle
	for {
		time.Sleep(500 * time.Millisecond)

		job := a.coordinator.Status()
		if job.Status == contracts.RefreshRunning {
			continue
		}

		switch job.Status {
		case contracts.RefreshCompleted:
			fmt.Printf("\n✅ Refresh completed: %d records stored in %s\n",
				job.StoredCount, job.Duration)
			return nil
		case contracts.RefreshFailed:
			return fmt.Errorf("refresh failed: %s", job.LastError)
		default:
			return fmt.Errorf("refresh ended in unexpected state: %s", job.Status)
		}
	}
}
