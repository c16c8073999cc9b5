package main

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/mailplane/internal/config"
	jwtx "github.com/dropDatabas3/mailplane/internal/jwt"
)

func newTokenCmd() *cobra.Command {
	var (
		configPath string
		sub        string
		roles      []string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Emite un bearer token HS256 para operar el API",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.JWT.Secret == "" {
				return fmt.Errorf("token: jwt.secret is empty")
			}

			tok, err := jwtx.SignHS256(cfg.JWT.Secret, cfg.JWT.Issuer, sub, roles, ttl)
			if err != nil {
				return err
			}
			cmd.Println(tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "configs/config.yaml", "ruta al YAML de configuración")
	cmd.Flags().StringVar(&sub, "sub", "ops", "subject (actor) del token")
	cmd.Flags().StringSliceVar(&roles, "role", []string{"templates:admin"}, "roles a incluir")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "vigencia del token")
	return cmd
}
