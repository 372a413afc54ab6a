package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yshimizu/kabuscan/internal/scheduler"
	"github.com/yshimizu/kabuscan/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Manage the scan scheduler",
	Long: `Starts the scheduler daemon or manages its jobs.

Registered jobs:
  daily_scan - stop-high scan, weekdays after the session close

Example:
  go run ./cmd/kabuscan scheduler start
  go run ./cmd/kabuscan scheduler list
  go run ./cmd/kabuscan scheduler run daily_scan`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler daemon",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run a specific job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

var scanSchedule string

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)

	schedulerCmd.PersistentFlags().StringVar(&scanSchedule, "schedule", "",
		"cron schedule for the daily scan (seconds field first)")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	fmt.Println("Scheduler started. Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job: %s\n", jobName)
	if err := sched.RunJob(jobName); err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	history, err := sched.GetJobHistory(jobName)
	if err != nil {
		return err
	}
	if last, ok := history.Last(); ok && !last.Success {
		return fmt.Errorf("job %s failed: %s", jobName, last.Error)
	}

	fmt.Println("Job completed")
	return nil
}

func initScheduler() (*scheduler.Scheduler, error) {
	cfg, log, orchestrator, err := buildScanner()
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(log)
	if err := sched.AddJob(jobs.NewDailyScanJob(orchestrator, cfg.Scan, scanSchedule, log)); err != nil {
		return nil, err
	}

	return sched, nil
}
