package main

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/taskstream/internal/enginegrpc"
	"pkt.systems/taskstream/internal/script"
)

func newMockEngineCmd() *cobra.Command {
	var scriptPath string
	var address string
	cmd := &cobra.Command{
		Use:   "mock-engine --script <file.yaml> [--addr host:port]",
		Short: "Serve a scripted engine over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			parsed, err := script.Load(scriptPath)
			if err != nil {
				return err
			}
			engine, err := script.NewEngine(parsed)
			if err != nil {
				return err
			}
			logger.Info("mock engine script loaded", "path", scriptPath, "steps", len(parsed.Steps), "hold", parsed.Hold)

			server := enginegrpc.NewServer(enginegrpc.Config{Address: strings.TrimSpace(address)}, engine)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&scriptPath, "script", "", "path to the engine script")
	cmd.Flags().StringVar(&address, "addr", "127.0.0.1:50051", "listen address")
	_ = cmd.MarkFlagRequired("script")
	return cmd
}
