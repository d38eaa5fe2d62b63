package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/brutalpush/pushclient/pkg/pagination"
	"github.com/brutalpush/pushclient/pkg/subscriptions"
	"github.com/spf13/cobra"
)

func (c *cli) subscriptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscriptions",
		Aliases: []string{"subs"},
		Short:   "List, create and delete topic subscriptions",
	}
	cmd.AddCommand(c.subscriptionsListCmd(), c.subscriptionsCreateCmd(), c.subscriptionsDeleteCmd())
	return cmd
}

func (c *cli) subscriptionsListCmd() *cobra.Command {
	var (
		perPage  int
		page     int
		all      bool
		topic    string
		parallel int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if perPage == 0 {
				perPage = c.app.cfg.SubscriptionsPerPage
			}
			if err := atLeastOne("per-page", perPage); err != nil {
				return err
			}
			if err := atLeastOne("page", page); err != nil {
				return err
			}

			if topic != "" {
				p, err := c.app.subs.ByTopic(ctx, topic)
				if err != nil {
					return err
				}
				c.printSubscriptions(p.Items, p.Meta)
				return nil
			}

			if all {
				bcfg := pagination.DefaultConfig()
				if parallel > 0 {
					bcfg.MaxConcurrency = parallel
				}
				items, meta, err := pagination.NewBatchFetcher[subscriptions.Subscription](c.app.subs.Fetcher(), bcfg).FetchAll(ctx, perPage)
				if err != nil {
					if len(items) > 0 {
						c.printSubscriptions(items, meta)
					}
					return err
				}
				c.printSubscriptions(items, meta)
				return nil
			}

			p, err := c.app.subs.Fetcher().FetchPage(ctx, page, perPage)
			if err != nil {
				return err
			}
			c.printSubscriptions(p.Items, p.Meta)
			return nil
		},
	}
	cmd.Flags().IntVar(&perPage, "per-page", 0, "page size (default PUSH_SUBSCRIPTIONS_PER_PAGE)")
	cmd.Flags().IntVar(&page, "page", 1, "page to show")
	cmd.Flags().BoolVar(&all, "all", false, "fetch every page in parallel")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent page fetches with --all")
	cmd.Flags().StringVar(&topic, "topic", "", "only subscriptions to this topic (first page)")
	return cmd
}

func (c *cli) printSubscriptions(items []subscriptions.Subscription, meta pagination.Meta) {
	w := tabwriter.NewWriter(c.app.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTOPIC\tCREATED")
	for _, s := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.TopicName, s.CreatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
	c.app.printf("page %d/%d, %d total\n", meta.Page, meta.LastPage, meta.Total)
}

func (c *cli) subscriptionsCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create TOPIC",
		Short: "Subscribe to a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := c.app.subs.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			c.app.printf("Created subscription %s for topic %s\n", sub.ID, sub.TopicName)
			return nil
		},
	}
}

func (c *cli) subscriptionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.subs.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.app.printf("Deleted subscription %s\n", args[0])
			return nil
		},
	}
}
