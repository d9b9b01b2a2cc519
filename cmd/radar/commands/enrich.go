package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// enrichCmd represents the enrich command
var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "보강 작업 실행",
	Long: `보강 작업을 생성하고 한 배치를 처리합니다.

이 명령어는:
- 오래되거나 품질 낮은 심볼에 작업 생성
- 필드별 선호 프로바이더에서 백필
- 완료/실패 작업 상태 기록

Example:
  go run ./cmd/radar enrich
  go run ./cmd/radar enrich --symbols BTC,ETH
  go run ./cmd/radar enrich --batch 20 --cleanup`,
	RunE: runEnrich,
}

var (
	enrichSymbols []string
	enrichLimit   int
	enrichBatch   int
	enrichCleanup bool
)

func init() {
	rootCmd.AddCommand(enrichCmd)

	// Flags
	enrichCmd.Flags().StringSliceVar(&enrichSymbols, "symbols", nil, "보강할 심볼 (기본: 오래된 심볼)")
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 50, "오래된 심볼 최대 수")
	enrichCmd.Flags().IntVar(&enrichBatch, "batch", 0, "배치 크기 (기본: config)")
	enrichCmd.Flags().BoolVar(&enrichCleanup, "cleanup", false, "종료된 작업 정리 포함")
}

func runEnrich(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Rebound Radar Enrichment ===")

	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var created int
	if len(enrichSymbols) > 0 {
		for i := range enrichSymbols {
			enrichSymbols[i] = strings.ToUpper(enrichSymbols[i])
		}
		created, err = a.enricher.ScheduleFor(ctx, enrichSymbols)
	} else {
		created, err = a.enricher.ScheduleStale(ctx, enrichLimit)
	}
	if err != nil {
		return fmt.Errorf("schedule enrichment: %w", err)
	}

	batch := enrichBatch
	if batch < 1 {
		batch = a.cfg.Aggregator.EnrichmentBatch
	}

	processed, err := a.enricher.ProcessBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("process batch: %w", err)
	}

	fmt.Printf("\n✅ Tasks created: %d, processed: %d\n", created, processed)

	if enrichCleanup {
		purged, err := a.enricher.Cleanup(ctx)
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		fmt.Printf("✅ Terminal tasks purged: %d\n", purged)
	}

	return nil
}
