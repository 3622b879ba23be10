package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "discussion",
	Short: "Threaded comment service",
	Long: `discussion serves a nested comment thread over HTTP.

Configuration comes from the environment (and an optional .env file):
  DATABASE_URL   Postgres DSN; in-memory store when empty outside production
  NATS_URL       JetStream server for lifecycle events; disabled when empty
  JWT_SECRET     HS256 secret for optional bearer identities
  HTTP_ADDR      HTTP listen address (default :8080)
  GRPC_ADDR      gRPC health listen address (default :9090)
  API_PREFIX     mount point of the comment routes (default /api)`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
