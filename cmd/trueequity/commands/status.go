package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trueequity/backend/internal/contracts"
	"github.com/trueequity/backend/internal/pipelineconfig"
)

// statusCmd reports the health of every backing service
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check database, Redis and provider health",
	Long: `Check connectivity of every backing service.

Checked:
- PostgreSQL (pool stats), or the in-memory store
- Redis, when enabled
- Yahoo, Alpha Vantage, FMP and the composite provider
- the pipeline YAML (hash and warnings)

With --init-schema the ingestion tables are created first.

Example:
  go run ./cmd/trueequity status
  go run ./cmd/trueequity status --init-schema`,
	RunE: runStatus,
}

var initSchema bool

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&initSchema, "init-schema", false, "create missing tables")
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== trueequity status ===")
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	healthy := true

	// Storage
	if a.db == nil {
		PrintWarning("Storage     : in-memory")
	} else {
		if initSchema {
			if err := a.db.EnsureSchema(ctx); err != nil {
				return err
			}
			PrintSuccess("Schema      : applied")
		}
		health, err := a.db.HealthCheck(ctx)
		if err != nil {
			PrintError("PostgreSQL  : " + err.Error())
			healthy = false
		} else {
			PrintSuccess(fmt.Sprintf("PostgreSQL  : %s (%d/%d conns)",
				health.ResponseTime.Round(time.Millisecond), health.Stats.TotalConns, health.Stats.MaxConns))
		}
	}

	// Redis
	switch {
	case !a.redis.Enabled():
		PrintWarning("Redis       : disabled")
	case a.redis.Ping(ctx) != nil:
		PrintError("Redis       : unreachable")
		healthy = false
	default:
		PrintSuccess("Redis       : ok")
	}

	// Providers
	for _, p := range []contracts.Provider{a.sources.Yahoo, a.sources.AlphaVantage, a.sources.FMP} {
		if p.HealthCheck(ctx) {
			PrintSuccess(fmt.Sprintf("%-12s: ok", p.Name()))
		} else {
			PrintWarning(fmt.Sprintf("%-12s: unavailable", p.Name()))
		}
	}
	if !a.sources.Composite.HealthCheck(ctx) {
		PrintError("Composite   : " + a.sources.Composite.Name() + " unavailable")
		healthy = false
	}

	// Pipeline config
	hash, err := pipelineconfig.Hash(a.pipeline)
	if err != nil {
		return err
	}
	fmt.Println()
	PrintKeyValue("Pipeline", a.pipeline.Meta.PipelineID+" v"+a.pipeline.Meta.Version, 10)
	PrintKeyValue("Hash", hash[:12], 10)
	PrintKeyValue("Timezone", a.location.String(), 10)
	PrintKeyValue("Universe", fmt.Sprintf("%d symbols", len(a.universe())), 10)
	for _, w := range pipelineconfig.Warn(a.pipeline) {
		PrintWarning(w.Code + ": " + w.Message)
	}

	if !healthy {
		return fmt.Errorf("one or more services are unhealthy")
	}
	return nil
}
