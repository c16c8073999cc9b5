package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "mailplane",
		Short:   "Servicio de templates transaccionales con sync al identity provider",
		Version: version,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newSyncCmd(), newTokenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
