package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/recap-cli/pkg/bridge"
	"github.com/otherjamesbrown/recap-cli/pkg/logging"
)

// NewFrameCommand creates the frame command group.
func NewFrameCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "frame",
		Short: "Serve an embedded transcript frame over the bridge",
		Long: `Serve an embedded transcript frame over the bridge.

The recap page embeds its transcript in a separate document. Commands run
with --frame reach that document through request/reply messages on Redis
(bridge.redis_address, bridge.channel_prefix). 'recap frame serve' answers
those requests from a snapshot or replay capture of the frame.`,
	}

	cmd.AddCommand(newFrameServeCommand(deps))
	return cmd
}

func newFrameServeCommand(deps *Deps) *cobra.Command {
	var (
		src         SourceOptions
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer frame requests until interrupted",
		Long: `Answer frame requests from a snapshot or capture until interrupted.

Examples:
  recap frame serve --capture frame.yaml
  recap frame serve --html frame.html --url https://teams.example.com/transcript`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFrameServe(cmd, deps, src, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&src.HTMLPath, "html", "", "Static HTML snapshot of the frame")
	cmd.Flags().StringVar(&src.CapturePath, "capture", "", "Replay capture manifest of the frame (YAML)")
	cmd.Flags().StringVar(&src.URL, "url", "", "Override the frame URL")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Also serve /metrics on this address")

	return cmd
}

func runFrameServe(cmd *cobra.Command, deps *Deps, src SourceOptions, metricsAddr string) error {
	if err := deps.init(); err != nil {
		return err
	}

	page, err := openPage(src)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	transport, closeTransport, err := deps.OpenTransport(ctx, deps.Config, deps.Logger)
	if err != nil {
		return err
	}
	defer closeTransport()

	if metricsAddr != "" {
		go func() {
			if err := serveMetrics(ctx, metricsAddr, deps); err != nil {
				deps.Logger.Warn("Metrics server failed", logging.Err(err))
			}
		}()
	}

	server := bridge.NewServer(transport, deps.Config.Bridge.ChannelPrefix, deps.Logger)
	server.SetObserver(deps.Metrics)
	if err := server.Serve(ctx, page); err != nil {
		deps.Logger.Error("Frame bridge stopped", logging.Err(err))
		return err
	}
	return nil
}
