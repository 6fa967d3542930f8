package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/devserver"
)

// demoServerCmd runs the scripted in-memory backend, useful for trying the
// client without a real deployment. Prometheus metrics are on /metrics.
func demoServerCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "demo-server",
		Short: "Run a scripted demo backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := &http.Server{
				Addr:              addr,
				Handler:           devserver.New(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			fmt.Printf("demo backend listening on %s\n", addr)
			return srv.ListenAndServe()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "listen address")
	return cmd
}
