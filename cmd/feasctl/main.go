// feasctl is a small operator tool for the feasibility platform: it
// watches CAD drawing import jobs and checks their status from the
// command line, using the same client library the web frontend build
// pipeline consumes.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"github.com/parcelio/feas-client/pkg/client"
	"github.com/parcelio/feas-client/pkg/config"
	"github.com/parcelio/feas-client/pkg/importjob"
	"github.com/parcelio/feas-client/pkg/logging"
	"github.com/parcelio/feas-client/pkg/statuscache"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp builds the feasctl command tree.
func newApp() *cli.Command {
	return &cli.Command{
		Name:  "feasctl",
		Usage: "feasibility platform import tooling",
		Commands: []*cli.Command{
			{
				Name:  "import",
				Usage: "drawing import commands",
				Commands: []*cli.Command{
					{
						Name:  "watch",
						Usage: "poll an import job until it finishes",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "environment file path",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "id",
								Usage:    "import job id",
								Required: true,
							},
						},
						Action: watchAction,
					},
					{
						Name:  "status",
						Usage: "fetch the current status of an import job",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "environment file path",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "id",
								Usage:    "import job id",
								Required: true,
							},
						},
						Action: statusAction,
					},
				},
			},
		},
	}
}

// setup builds the client stack shared by all commands.
func setup(cmd *cli.Command) (*config.Config, *client.Client, *statuscache.Cache, error) {
	cfg, err := config.Load(cmd.String("env"))
	if err != nil {
		return nil, nil, nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Pretty = true
	logging.Setup(logCfg)

	c := client.New(client.Config{
		BaseURL:  cfg.BaseURL,
		Identity: cfg.Identity,
	})

	var cache *statuscache.Cache
	if cfg.RedisAddr != "" {
		cache = statuscache.New(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	return cfg, c, cache, nil
}

// watchAction polls the import job, printing every update until the
// session reaches a terminal outcome.
func watchAction(ctx context.Context, cmd *cli.Command) error {
	cfg, c, cache, err := setup(cmd)
	if err != nil {
		return err
	}

	importID := cmd.String("id")
	logger := logging.NewLogger("feasctl")

	var pollerOpts []importjob.Option
	if cache != nil {
		pollerOpts = append(pollerOpts, importjob.WithRecorder(cache))
	}
	poller := importjob.NewPoller(importjob.NewAPIFetcher(c), pollerOpts...)

	done := make(chan importjob.Outcome, 1)
	cancel, err := poller.Start(ctx, importjob.StartOptions{
		ImportID: importID,
		Interval: cfg.PollInterval,
		Timeout:  cfg.PollTimeout,
		OnUpdate: func(u importjob.Update) {
			if u.Status != nil {
				event := logger.Info().
					Str("import_id", importID).
					Int("seq", u.Seq).
					Str("state", string(u.Status.State))
				if u.Status.Result != nil {
					event = event.Strs("detected_units", u.Status.Result.DetectedUnits)
				}
				if u.Status.Error != "" {
					event = event.Str("job_error", u.Status.Error)
				}
				event.Msg("Import status")
			}
			if u.Outcome != "" {
				done <- u.Outcome
			}
		},
	})
	if err != nil {
		return err
	}
	defer cancel()

	select {
	case <-ctx.Done():
		return nil
	case outcome := <-done:
		switch outcome {
		case importjob.OutcomeCompleted:
			return nil
		case importjob.OutcomeFailed:
			return errors.New("import job failed")
		case importjob.OutcomeTimedOut:
			return errors.New("import job did not finish before the timeout")
		default:
			return nil
		}
	}
}

// statusAction fetches the job status once, falling back to the last
// cached status when the platform is unreachable.
func statusAction(ctx context.Context, cmd *cli.Command) error {
	_, c, cache, err := setup(cmd)
	if err != nil {
		return err
	}

	importID := cmd.String("id")
	fetcher := importjob.NewAPIFetcher(c)

	status, err := client.WithFallback(ctx,
		func(ctx context.Context) (*importjob.JobStatus, error) {
			return fetcher.FetchStatus(ctx, importID)
		},
		func() *importjob.JobStatus {
			if cache == nil {
				return nil
			}
			cached, cacheErr := cache.Get(ctx, importID)
			if cacheErr != nil {
				return nil
			}
			return cached
		},
	)
	if err != nil {
		return err
	}
	if status == nil {
		return fmt.Errorf("no status available for import %s", importID)
	}

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
