package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/bryant1410/jsr352/example/chunkstop/internal/app"
	usecase "github.com/bryant1410/jsr352/pkg/batch/core/application/usecase"
	config "github.com/bryant1410/jsr352/pkg/batch/core/config"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	coremetrics "github.com/bryant1410/jsr352/pkg/batch/core/metrics"
	"github.com/bryant1410/jsr352/pkg/batch/infrastructure/metrics"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/serialization"
)

//go:embed resources/application.yaml
var embeddedConfig []byte

//go:embed resources/job.json
var embeddedJob []byte

type options struct {
	envFile     string
	maxRestarts int
	metricsAddr string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "chunkstop",
		Short: "Runs the chunkStop batch job",
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", os.Getenv("ENV_FILE_PATH"), "path of a .env file")

	run := &cobra.Command{
		Use:   "run [key=value ...]",
		Short: "Start the job and restart it while it fails",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParameters(args)
			if err != nil {
				return err
			}
			return runJob(cmd.Context(), opts, params)
		},
	}
	run.Flags().IntVar(&opts.maxRestarts, "max-restarts", 2, "restarts attempted after a FAILED execution")
	run.Flags().StringVar(&opts.metricsAddr, "metrics-addr", ":9090", "listen address of /metrics when metrics are enabled")

	root.AddCommand(run)
	return root
}

func parseParameters(args []string) (model.JobParameters, error) {
	params := model.NewJobParameters()
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return params, fmt.Errorf("job parameter %q is not in key=value form", arg)
		}
		params.Put(k, v)
	}
	return params, nil
}

func runJob(parent context.Context, opts *options, params model.JobParameters) error {
	cfg, err := config.LoadConfig(opts.envFile, embeddedConfig)
	if err != nil {
		return err
	}
	var def model.JobDefinition
	if err := serialization.Unmarshal(embeddedJob, &def); err != nil {
		return err
	}

	var (
		operator usecase.JobOperator
		recorder coremetrics.MetricRecorder
	)
	fxApp := fx.New(append(
		app.Options(embeddedConfig, opts.envFile, cfg.Repository.Type, &def),
		fx.Populate(&operator, &recorder),
	)...)

	startCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Batch.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()
		if err := fxApp.Stop(stopCtx); err != nil {
			logger.Errorf("Application stop failed: %v", err)
		}
	}()

	if prom, ok := recorder.(*metrics.PrometheusRecorder); ok {
		srv := serveMetrics(opts.metricsAddr, prom)
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	je, err := operator.Start(ctx, def.Name, params)
	if err != nil {
		return err
	}
	final, err := await(ctx, operator, je.ID)
	for restarts := 0; err == nil && final.Status == model.BatchStatusFailed && restarts < opts.maxRestarts; restarts++ {
		logger.Warnf("Job '%s' failed with exit status %s. Restarting (%d/%d).", def.Name, final.ExitStatus, restarts+1, opts.maxRestarts)
		je, err = operator.Restart(ctx, final.ID, model.NewJobParameters())
		if err != nil {
			break
		}
		final, err = await(ctx, operator, je.ID)
	}
	if err != nil {
		return err
	}

	logger.Infof("Job '%s' finished with status %s, exit status %s. Execution ID: %s", def.Name, final.Status, final.ExitStatus, final.ID)
	report(operator, final.ID)
	if final.Status != model.BatchStatusCompleted {
		return fmt.Errorf("job %s ended %s", def.Name, final.Status)
	}
	return nil
}

// await waits for the execution to finish, asking it to stop when ctx is cancelled.
func await(ctx context.Context, operator usecase.JobOperator, executionID string) (*model.JobExecution, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			logger.Warnf("Interrupted. Stopping execution %s.", executionID)
			if err := operator.Stop(context.Background(), executionID); err != nil && !errors.Is(err, exception.ErrInvalidTransition) {
				logger.Errorf("Failed to stop execution %s: %v", executionID, err)
			}
		case <-done:
		}
	}()
	return operator.WaitForCompletion(context.Background(), executionID)
}

func report(explorer usecase.JobExplorer, executionID string) {
	steps, err := explorer.GetStepExecutions(context.Background(), executionID)
	if err != nil {
		logger.Errorf("Failed to load step executions of %s: %v", executionID, err)
		return
	}
	for _, se := range steps {
		logger.Infof("  %-12s %-9s read=%d write=%d skip=%d commit=%d", se.StepName, se.Status, se.ReadCount, se.WriteCount, se.SkipCount(), se.CommitCount)
	}
}

func serveMetrics(addr string, prom *metrics.PrometheusRecorder) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics server failed: %v", err)
		}
	}()
	logger.Infof("Serving metrics on %s/metrics.", addr)
	return srv
}
