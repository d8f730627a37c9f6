package app

import (
	"context"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"harnss7/cmd/s7gateway/options"
	"harnss7/pkg/generic"
	baseoptions "harnss7/pkg/generic/options"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/web"
	utilserrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/component-base/version"
	"k8s.io/component-base/version/verflag"
	"k8s.io/klog/v2"
	"os"
	"os/signal"
	"syscall"
)

const (
	ComponentGateway = "s7gateway"
)

func NewGatewayCmd() *cobra.Command {
	cleanFlagSet := pflag.NewFlagSet(ComponentGateway, pflag.ContinueOnError)
	o := options.NewDefaultOptions()
	cmd := &cobra.Command{
		Use:                ComponentGateway,
		Long:               `The s7 gateway polls variables of a Siemens S7 controller over ISO-on-TCP, publishes their values over MQTT and serves reads and writes over http.`,
		DisableFlagParsing: true,
		Args:               cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// initial flag parse, since we disable cobra's flag parsing
			if err := cleanFlagSet.Parse(args); err != nil {
				klog.ErrorS(err, "Failed to parse flag")
				_ = cmd.Usage()
				os.Exit(1)
			}

			// check if there are non-flag arguments in the command line
			cmds := cleanFlagSet.Args()
			if len(cmds) > 0 {
				klog.ErrorS(nil, "Unknown command", "command", cmds[0])
				_ = cmd.Usage()
				os.Exit(1)
			}

			// short-circuit on help
			baseoptions.PrintHelpAndExitIfRequested(cmd, cleanFlagSet)

			// short-circuit on defaultconfig
			baseoptions.PrintDefaultConfigAndExitIfRequested(options.NewDefaultOptions(), cleanFlagSet)

			// short-circuit on verflag
			verflag.PrintAndExitIfRequested()

			if err := baseoptions.ParseAndApplyConfigFile(o, args); err != nil {
				return err
			}

			if errs := options.Validate(o); len(errs) != 0 {
				return utilserrors.NewAggregate(errs)
			}

			// To help debugging, immediately log version
			klog.Infof("Version: %+v", version.Get())
			return run(o)
		},
	}

	verflag.AddFlags(cleanFlagSet)
	o.AddFlags(cleanFlagSet)
	o.AddBaseFlags(cmd, cleanFlagSet)

	cmd.AddCommand(NewReadCmd(), NewWriteCmd())
	return cmd
}

func run(o *options.Options) error {
	c, err := o.Config()
	if err != nil {
		return err
	}

	server, err := web.NewServer(generic.Default(), o, c)
	if err != nil {
		return err
	}

	exit, err := server.Serve()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Collector.Collect(ctx)
	if c.Publisher != nil {
		go c.Publisher.Run(ctx, c.Results)
	} else {
		go drain(ctx, c.Results)
	}
	klog.V(1).InfoS("Server started", "port", o.Port, "plc", o.PLC.Host, "variables", len(o.Variables))
	// Graceful shutdown
	// Wait for interrupt signal to gracefully shutdown the server
	exitCh := make(chan os.Signal, 1)
	// kill (no param) default send syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	// kill -9 is syscall.SIGKILL but can't be catch, so don't need add it
	signal.Notify(exitCh, syscall.SIGINT, syscall.SIGTERM)
	<-exitCh
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), o.Wait.Duration)
	defer shutdownCancel()

	exit(shutdownCtx)
	return nil
}

// drain logs poll failures when nothing publishes the results.
func drain(ctx context.Context, results <-chan *s7runtime.ParseVariableResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case pvr, ok := <-results:
			if !ok {
				return
			}
			for _, err := range pvr.Err {
				klog.V(2).InfoS("Failed to collect variable", "err", err)
			}
		}
	}
}
