package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/rebound/backend/internal/contracts"
)

// precomputeCmd represents the precompute command
var precomputeCmd = &cobra.Command{
	Use:   "precompute",
	Short: "랭킹 스냅샷 재계산",
	Long: `모든 기간의 랭킹 스냅샷을 재계산합니다.

이 명령어는:
- 품질 필터링된 레코드 풀 조회
- 기간별 스코어링 및 정렬
- RankingSnapshot 저장

Example:
  go run ./cmd/radar precompute
  go run ./cmd/radar precompute --period 24h`,
	RunE: runPrecompute,
}

var (
	precomputePeriod string
)

func init() {
	rootCmd.AddCommand(precomputeCmd)

	// Flags
	precomputeCmd.Flags().StringVar(&precomputePeriod, "period", "", "특정 기간만 재계산 (기본: 전체)")
}

func runPrecompute(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Rebound Radar Precompute ===")

	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if precomputePeriod != "" {
		if !contracts.IsValidPeriod(precomputePeriod) {
			return fmt.Errorf("invalid period: %s", precomputePeriod)
		}
		if err := a.engine.Precompute(ctx, precomputePeriod); err != nil {
			return fmt.Errorf("precompute %s: %w", precomputePeriod, err)
		}
	} else {
		if err := a.engine.PrecomputeAll(ctx); err != nil {
			return fmt.Errorf("precompute all: %w", err)
		}
	}

	status := a.engine.Status(ctx)
	fmt.Println("\n✅ Snapshots:")
	for _, period := range contracts.Periods {
		state, ok := status.Snapshots[period]
		if !ok {
			fmt.Printf("  %-5s (none)\n", period)
			continue
		}
		fmt.Printf("  %-5s %d records, refresh #%d, computed %s\n",
			period, state.TotalRecords, state.RefreshCount,
			state.ComputedAt.Format("15:04:05"))
	}

	return nil
}
