package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/Strob0t/StaffForge/internal/adapter/postgres"
	"github.com/Strob0t/StaffForge/internal/config"
	"github.com/Strob0t/StaffForge/internal/domain/tenant"
	"github.com/Strob0t/StaffForge/internal/middleware"
	"github.com/Strob0t/StaffForge/internal/service"
)

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "migrate":
		return runAdminMigrate(args[1:])
	case "reproject":
		return runAdminReproject(args[1:])
	case "create-tenant":
		return runAdminCreateTenant(args[1:])
	case "list-tenants":
		return runAdminListTenants(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: staffforge admin <command> [options]

Commands:
  migrate          Apply, roll back or inspect database migrations
  reproject        Rebuild consultant availability and assignment summaries
  create-tenant    Register a new tenant
  list-tenants     List all tenants
  help             Show this help message

Examples:
  staffforge admin migrate up
  staffforge admin migrate down --steps 1
  staffforge admin migrate version
  staffforge admin reproject --tenant acme
  staffforge admin create-tenant --name "Acme Corp" --slug acme
  staffforge admin list-tenants --json
`)
}

func loadAdminConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Driver == "memory" {
		return nil, fmt.Errorf("admin commands need the postgres store")
	}
	return cfg, nil
}

func loadAdminStore(ctx context.Context) (*config.Config, *postgres.Store, func(), error) {
	cfg, err := loadAdminConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return cfg, postgres.NewStore(pool), pool.Close, nil
}

func runAdminMigrate(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("migrate needs one of: up, down, version")
	}
	fs := flag.NewFlagSet("migrate "+args[0], flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := loadAdminConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch args[0] {
	case "up":
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return err
		}
	case "down":
		if *steps < 1 {
			return fmt.Errorf("--steps must be at least 1")
		}
		if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, *steps); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown migrate command: %s", args[0])
	}

	version, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Schema version: %d\n", version)
	return nil
}

func runAdminReproject(args []string) error {
	fs := flag.NewFlagSet("reproject", flag.ContinueOnError)
	tenantID := fs.String("tenant", "", "tenant to rebuild (all tenants if empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	cfg, store, cleanup, err := loadAdminStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	projector := service.NewProjectorService(store, cfg.Projection.Timeout, cfg.Projection.Concurrency)
	if *tenantID == "" {
		return reprojectTenants(ctx, store, projector)
	}

	res, err := projector.RecomputeAll(middleware.WithTenantID(ctx, *tenantID))
	if err != nil {
		return fmt.Errorf("reproject: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Reprojected %d consultants (%d failed)\n", res.Total, res.Failed)
	return nil
}

func runAdminCreateTenant(args []string) error {
	fs := flag.NewFlagSet("create-tenant", flag.ContinueOnError)
	name := fs.String("name", "", "tenant display name (required)")
	slug := fs.String("slug", "", "tenant slug (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("--name is required")
	}
	if *slug == "" {
		return fmt.Errorf("--slug is required")
	}

	ctx := context.Background()
	_, store, cleanup, err := loadAdminStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	t, err := service.NewTenantService(store).Create(ctx, tenant.CreateRequest{Name: *name, Slug: *slug})
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Tenant created: %s (id=%s, slug=%s)\n", t.Name, t.ID, t.Slug)
	return nil
}

func runAdminListTenants(args []string) error {
	fs := flag.NewFlagSet("list-tenants", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print JSON even on a terminal")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	_, store, cleanup, err := loadAdminStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	tenants, err := service.NewTenantService(store).List(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	// Piped output is JSON so scripts can consume it.
	if *asJSON || !term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec // fd fits in int
		return writeTenantsJSON(os.Stdout, tenants)
	}
	if len(tenants) == 0 {
		fmt.Println("No tenants found.")
		return nil
	}
	return writeTenantsTable(os.Stdout, tenants)
}

func writeTenantsJSON(w io.Writer, tenants []tenant.Tenant) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(tenants)
}

func writeTenantsTable(out io.Writer, tenants []tenant.Tenant) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSLUG\tNAME\tENABLED\tCREATED")
	for i := range tenants {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
			tenants[i].ID, tenants[i].Slug, tenants[i].Name, tenants[i].Enabled, tenants[i].CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}
