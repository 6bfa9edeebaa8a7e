package cli

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/roach88/noiseablate/internal/library"
	"github.com/roach88/noiseablate/internal/remote"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host the native library over gRPC",
		Long: `Serve the in-process library to remote harnesses. A harness on another
host uses it with --library grpc://host:port. Data paths in manifests are
resolved on the serving host.

Example:
  noiseablate serve --listen 0.0.0.0:50071`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default from config remote.listen)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(cmd, opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidConfig, err, nil)
	}
	if cmd.Flags().Changed("listen") {
		cfg.Remote.Listen = opts.Listen
	}
	log := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	lis, err := net.Listen("tcp", cfg.Remote.Listen)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLibrary, err, map[string]string{"listen": cfg.Remote.Listen})
	}

	srv := remote.NewServer(
		library.NewNative(library.WithIntegrations(cfg.SK.Integrations)),
		[]remote.ServerOption{remote.WithServerLogger(log)},
		grpc.MaxRecvMsgSize(cfg.Remote.MaxMessageBytes),
		grpc.MaxSendMsgSize(cfg.Remote.MaxMessageBytes),
	)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Info("shutting down", "open_scans", srv.OpenScans())
		srv.Stop()
	}()

	fmt.Fprintf(formatter.Writer, "Serving %s on %s\n", remote.ServiceName, lis.Addr())

	if err := srv.Serve(lis); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeLibrary, err, nil)
	}
	log.Info("library server stopped")
	return nil
}
