package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/secdash/secdash/internal/config"
	"github.com/secdash/secdash/internal/snapshot"
	"github.com/secdash/secdash/pkg/dashboard"
	"github.com/secdash/secdash/pkg/policy/client"
	"github.com/secdash/secdash/pkg/server"
	"github.com/secdash/secdash/pkg/store"
)

func serveCmd() *cobra.Command {
	var (
		configDir string
		addr      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard server",
		Long: `Run the policy API, the dashboard state store and the WebSocket
state stream. Reads secdash.json from the config directory; missing file
means defaults (fixture API, metrics on, no snapshot export).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if addr != "" {
				os.Setenv(config.EnvAddress, addr)
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configDir, "config", "c", ".", "Directory containing secdash.json")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides config)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	address := cfg.Address()

	// The dashboard loads from the configured upstream, or from this
	// server's own fixture API when none is set.
	upstream := cfg.Upstream.BaseURL
	if upstream == "" {
		upstream = "http://" + address
	}
	c := client.New(upstream)

	dashCfg := dashboard.Config{
		Services: dashboard.Services{
			WAF: c.WAFPolicies(),
			IPS: c.IPSSummaries(),
			SCM: c.SCMRepositories(),
		},
		Context: ctx,
	}
	if cfg.Metrics.Enabled {
		opts := []store.MetricsOption{}
		if cfg.Name != "" {
			opts = append(opts, store.WithConstLabels(prometheus.Labels{"deployment": cfg.Name}))
		}
		dashCfg.Metrics = store.NewMetrics(opts...)
	}
	dash := dashboard.New(dashCfg)

	if cfg.Snapshot.Enabled {
		interval, err := cfg.SnapshotInterval()
		if err != nil {
			return err
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("load AWS config: %w", err)
		}
		exp, err := snapshot.New(s3.NewFromConfig(awsCfg), snapshot.Config{
			Bucket:   cfg.Snapshot.Bucket,
			Prefix:   cfg.Snapshot.Prefix,
			Interval: interval,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		exp.Start(dash)
		defer exp.Stop(context.Background())
		logger.Info("snapshot export enabled", "bucket", cfg.Snapshot.Bucket, "interval", interval)
	}

	srv := server.New(&server.Config{
		Address:        address,
		DisableMetrics: !cfg.Metrics.Enabled,
	}, dash)

	// Prime the dashboard once the listener is up; the load intents go
	// through the same effect pipeline interactive reloads use. Retried a
	// few times because the first attempt can race the listener coming up
	// when the upstream is this server's own fixture API.
	go func() {
		for attempt := 0; attempt < 5; attempt++ {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
			dash.LoadAll()
			time.Sleep(time.Second)
			if dash.WAF.Loaded() && dash.IPS.Loaded() && dash.SCM.Loaded() {
				return
			}
		}
	}()

	logger.Info("dashboard starting", "address", address, "upstream", upstream)
	return srv.Run()
}
