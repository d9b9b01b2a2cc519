package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/rebound/backend/internal/scheduler"
	"github.com/wonny/rebound/backend/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "백그라운드 스케줄러 시작",
	Long: `주기 작업 스케줄러를 시작합니다.

등록 작업:
- background_refresh: 5분마다 프로바이더 수집
- ranking_precompute: 15분마다 스냅샷 재계산
- enrichment_batch:   2분마다 보강 배치 처리
- task_cleanup:       매일 03:00 종료 작업 정리

Example:
  go run ./cmd/radar scheduler`,
	RunE: runScheduler,
}

var (
	schedulerStaleCap int
)

func init() {
	rootCmd.AddCommand(schedulerCmd)

	// Flags
	schedulerCmd.Flags().IntVar(&schedulerStaleCap, "stale-cap", 50, "보강 배치당 오래된 심볼 최대 수")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Rebound Radar Scheduler ===")

	ctx := context.Background()

	// 1. Build the component graph
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// 2. Register jobs
	sched := scheduler.New(a.log)

	jobList := []scheduler.Job{
		jobs.NewRefreshJob(a.coordinator, a.log),
		jobs.NewPrecomputeJob(a.engine, a.log),
		jobs.NewEnrichmentJob(a.enricher, schedulerStaleCap, a.cfg.Aggregator.EnrichmentBatch, a.log),
		jobs.NewCleanupJob(a.enricher, a.memCache, a.log),
	}
	for _, job := range jobList {
		if err := sched.AddJob(job); err != nil {
			return fmt.Errorf("add job %s: %w", job.Name(), err)
		}
	}

	// 3. Start
	sched.Start()

	fmt.Println("\n✅ Scheduler running with jobs:")
	for _, name := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", name)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	a.log.Info("Stopping scheduler...")
	sched.Stop()
	a.log.Info("Scheduler stopped")
	return nil
}
