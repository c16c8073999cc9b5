package main

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/mailplane/internal/config"
	migrations "github.com/dropDatabas3/mailplane/migrations/postgres"
)

func newMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate [up|down] [steps]",
		Short: "Aplica las migraciones embebidas de PostgreSQL",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			action := "up"
			steps := 0
			if len(args) >= 1 && args[0] != "" {
				action = strings.ToLower(args[0])
			}
			if len(args) >= 2 {
				if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
					steps = n
				}
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Storage.DSN == "" {
				return fmt.Errorf("migrate: storage.dsn is empty")
			}

			ctx := context.Background()
			pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
			if err != nil {
				return fmt.Errorf("pgxpool: %w", err)
			}
			defer pool.Close()

			switch action {
			case "up":
				files, err := listSQL("_up.sql")
				if err != nil {
					return err
				}
				sort.Strings(files) // aplicar en orden ascendente
				if steps > 0 && steps < len(files) {
					files = files[:steps]
				}
				return execAll(ctx, pool, files, cmd)
			case "down":
				files, err := listSQL("_down.sql")
				if err != nil {
					return err
				}
				sort.Sort(sort.Reverse(sort.StringSlice(files))) // revertir en orden inverso
				if steps > 0 && steps < len(files) {
					files = files[:steps]
				}
				return execAll(ctx, pool, files, cmd)
			default:
				return fmt.Errorf("unknown action %q. Use: up | down [steps]", action)
			}
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "configs/config.yaml", "ruta al YAML de configuración")
	return cmd
}

func listSQL(suffix string) ([]string, error) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func execAll(ctx context.Context, pool *pgxpool.Pool, files []string, cmd *cobra.Command) error {
	if len(files) == 0 {
		cmd.Println("No migrations found. Nothing to do.")
		return nil
	}
	cmd.Printf("Applying %d migration(s)...\n", len(files))
	for _, name := range files {
		b, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		start := time.Now()
		if _, err := pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec %s: %w", name, err)
		}
		cmd.Printf("OK %s (%s)\n", name, time.Since(start).Truncate(time.Millisecond))
	}
	return nil
}
