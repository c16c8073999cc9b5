package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var (
		serverURL string
		token     string
		idemKey   string
		slugs     []string
		dryRun    bool
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Dispara un sync de templates contra un servidor corriendo",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("MAILPLANE_TOKEN")
			}
			if idemKey == "" {
				idemKey = "cli-" + uuid.NewString()
			}

			body, err := json.Marshal(map[string]any{
				"slugs":   slugs,
				"dry_run": dryRun,
			})
			if err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
				serverURL+"/v1/admin/templates/sync", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Idempotency-Key", idemKey)
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}

			client := &http.Client{Timeout: timeout}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			// pretty-print si es JSON, crudo si no
			var buf bytes.Buffer
			if json.Indent(&buf, raw, "", "  ") == nil {
				cmd.Println(buf.String())
			} else {
				cmd.Println(string(raw))
			}
			if resp.StatusCode >= 300 {
				return fmt.Errorf("sync: server returned %s (idempotency key %s)",
					resp.Status, idemKey)
			}
			cmd.Printf("idempotency key: %s\n", idemKey)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "URL base del servidor")
	cmd.Flags().StringVar(&token, "token", "", "bearer token (default: env MAILPLANE_TOKEN)")
	cmd.Flags().StringVar(&idemKey, "key", "", "idempotency key (default: generada)")
	cmd.Flags().StringSliceVar(&slugs, "slug", nil, "slugs a sincronizar (default: todos los soportados)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validar y traducir sin llamar al provider")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "timeout del request")
	return cmd
}
