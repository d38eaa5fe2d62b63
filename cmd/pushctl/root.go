package main

import (
	"context"

	"github.com/brutalpush/pushclient/pkg/metrics"
	"github.com/spf13/cobra"
)

type cli struct {
	deps        deps
	root        *cobra.Command
	app         *app
	metricsAddr string
}

func newCLI(d deps) *cli {
	c := &cli{deps: d}
	c.root = c.rootCmd()
	return c
}

// execute runs one invocation and releases the app afterwards, also when the
// command failed. nil args means os.Args.
func (c *cli) execute(ctx context.Context, args []string) error {
	if args != nil {
		c.root.SetArgs(args)
	}
	defer func() {
		if c.app != nil {
			c.app.close()
			c.app = nil
		}
	}()
	return c.root.ExecuteContext(ctx)
}

func (c *cli) rootCmd() *cobra.Command {
	d := c.deps

	root := &cobra.Command{
		Use:          "pushctl",
		Short:        "Manage push subscriptions and notifications",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), c.deps)
			if err != nil {
				return err
			}
			c.app = a

			if c.metricsAddr != "" {
				go func() {
					if err := metrics.Serve(cmd.Context(), c.metricsAddr); err != nil {
						a.logger.Error().Err(err).Str("addr", c.metricsAddr).Msg("Metrics server failed")
					}
				}()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	if d.out != nil {
		root.SetOut(d.out)
		root.SetErr(d.out)
	}

	root.AddCommand(
		c.loginCmd(),
		c.registerCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.forgotPasswordCmd(),
		c.resetPasswordCmd(),
		c.subscriptionsCmd(),
		c.notificationsCmd(),
		c.deviceCmd(),
		c.pushCmd(),
	)
	return root
}
