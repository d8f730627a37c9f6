package app

import (
	"context"
	"fmt"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"harnss7/cmd/s7gateway/options"
	"harnss7/pkg/protocol/s7"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/protocol/s7/value"
	"io"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"k8s.io/klog/v2"
	"os"
	"os/signal"
	"sigs.k8s.io/yaml"
	"syscall"
)

type readResult struct {
	Address string      `json:"address"`
	Value   interface{} `json:"value,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func NewReadCmd() *cobra.Command {
	o := options.NewDefaultPLCOptions()
	cmd := &cobra.Command{
		Use:   "read ADDRESS...",
		Short: "Read addresses once and print their values as yaml",
		Example: `  s7gateway read --plc-host 192.168.0.1 DB1.DBW0 M10.1 C3
  s7gateway read --plc-host 192.168.0.1 --cpu s7300 --slot 2 MD100`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if errs := options.ValidatePLC(&o, field.NewPath("plc")); len(errs) != 0 {
				return errs.ToAggregate()
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withClient(ctx, o.ConnectionOptions(), func(client *s7.Client) error {
				return readAddresses(ctx, client, args, cmd.OutOrStdout())
			})
		},
	}
	o.AddFlags(cmd.Flags())
	setUsage(cmd)
	return cmd
}

func NewWriteCmd() *cobra.Command {
	o := options.NewDefaultPLCOptions()
	cmd := &cobra.Command{
		Use:   "write ADDRESS VALUE",
		Short: "Write one value, VALUE is parsed as a yaml scalar or list",
		Example: `  s7gateway write --plc-host 192.168.0.1 DB1.DBW0 1200
  s7gateway write --plc-host 192.168.0.1 M10.1 true`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if errs := options.ValidatePLC(&o, field.NewPath("plc")); len(errs) != 0 {
				return errs.ToAggregate()
			}
			ref, v, err := parseValue(args[0], args[1])
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withClient(ctx, o.ConnectionOptions(), func(client *s7.Client) error {
				if err := client.WriteReference(ctx, ref, v); err != nil {
					return errors.Wrapf(err, "write %s", args[0])
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s written\n", s7runtime.FormatAddress(ref))
				return err
			})
		},
	}
	o.AddFlags(cmd.Flags())
	setUsage(cmd)
	return cmd
}

// setUsage replaces the usage inherited from the root command, which only lists
// the flags of the gateway itself.
func setUsage(cmd *cobra.Command) {
	const usageFmt = "Usage:\n  %s\n\nExamples:\n%s\n\nFlags:\n%s"
	cmd.SetUsageFunc(func(c *cobra.Command) error {
		_, _ = fmt.Fprintf(c.OutOrStderr(), usageFmt, c.UseLine(), c.Example, c.LocalFlags().FlagUsagesWrapped(2))
		return nil
	})
	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		_, _ = fmt.Fprintf(c.OutOrStdout(), "%s\n\n"+usageFmt, c.Short, c.UseLine(), c.Example, c.LocalFlags().FlagUsagesWrapped(2))
	})
}

func withClient(ctx context.Context, opts s7.ConnectionOptions, fn func(client *s7.Client) error) error {
	client, err := s7.NewClient(opts)
	if err != nil {
		return err
	}
	if err := client.Open(ctx); err != nil {
		return errors.Wrapf(err, "connect %s", client.Address())
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			klog.V(2).InfoS("Failed to close s7 client", "id", client.ID(), "err", err)
		}
	}()
	return fn(client)
}

func readAddresses(ctx context.Context, client *s7.Client, addresses []string, out io.Writer) error {
	results := make([]readResult, len(addresses))
	refs := make([]s7runtime.MemoryReference, 0, len(addresses))
	index := make([]int, 0, len(addresses))
	for i, address := range addresses {
		results[i].Address = address
		ref, err := s7runtime.ParseAddress(address)
		if err != nil {
			results[i].Error = err.Error()
			continue
		}
		refs = append(refs, ref)
		index = append(index, i)
	}

	items, err := client.ReadMany(ctx, refs)
	if err != nil {
		return err
	}
	for j, item := range items {
		i := index[j]
		if item.Err != nil {
			results[i].Error = item.Err.Error()
			continue
		}
		results[i].Value = item.Value.Interface()
	}

	data, err := yaml.Marshal(results)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

// parseValue decodes raw as yaml and converts it for the type derived from address.
func parseValue(address, raw string) (s7runtime.MemoryReference, value.Value, error) {
	ref, err := s7runtime.ParseAddress(address)
	if err != nil {
		return ref, nil, err
	}
	var in interface{}
	if err := yaml.Unmarshal([]byte(raw), &in); err != nil {
		return ref, nil, errors.Wrapf(err, "parse value %q", raw)
	}
	v, err := value.FromInterface(ref, in)
	if err != nil {
		return ref, nil, err
	}
	return ref, v, nil
}
