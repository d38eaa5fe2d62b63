package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/brutalpush/pushclient/pkg/notifications"
	"github.com/spf13/cobra"
)

func (c *cli) notificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notifs"},
		Short:   "Browse notification history and send notifications",
	}
	cmd.AddCommand(c.notificationsListCmd(), c.notificationsSendCmd())
	return cmd
}

func (c *cli) notificationsListCmd() *cobra.Command {
	var perPage, pages int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sent notifications, newest pages loaded incrementally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if perPage == 0 {
				perPage = c.app.cfg.NotificationsPerPage
			}
			if err := atLeastOne("per-page", perPage); err != nil {
				return err
			}
			if err := atLeastOne("pages", pages); err != nil {
				return err
			}

			ctrl := c.app.notifs.NewController()
			defer ctrl.Close()

			ctrl.LoadFirstPage(ctx, perPage)
			for loaded := 1; loaded < pages; loaded++ {
				st := ctrl.State()
				if st.Err != "" || !st.HasNext() {
					break
				}
				ctrl.LoadNextPage(ctx, perPage)
			}

			st := ctrl.State()
			w := tabwriter.NewWriter(c.app.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTOPIC\tTITLE\tSTATUS\tCREATED")
			for _, n := range st.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", n.ID, n.TopicName, n.Title, n.Status, n.CreatedAt.Format("2006-01-02 15:04"))
			}
			w.Flush()

			if st.Meta != nil {
				more := ""
				if st.HasNext() {
					more = ", more available"
				}
				c.app.printf("%d of %d shown%s\n", len(st.Items), st.Meta.Total, more)
			}
			if st.Err != "" {
				return errors.New(st.Err)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&perPage, "per-page", 0, "page size (default PUSH_NOTIFICATIONS_PER_PAGE)")
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
	return cmd
}

func (c *cli) notificationsSendCmd() *cobra.Command {
	var req notifications.SendRequest
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a notification to every subscriber of a topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.Domain == "" {
				if u, err := c.app.auth.CachedUser(cmd.Context()); err == nil && u != nil {
					req.Domain = u.Domain
				}
			}
			res, err := c.app.notifs.Send(cmd.Context(), req)
			if err != nil {
				return err
			}
			c.app.printf("Sent message %s\n", res.MessageID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Domain, "domain", "", "sending domain (default: signed-in user's domain)")
	cmd.Flags().StringVar(&req.TopicName, "topic", "", "topic to send to")
	cmd.Flags().StringVar(&req.Title, "title", "", "notification title")
	cmd.Flags().StringVar(&req.Body, "body", "", "notification body")
	cmd.Flags().StringVar(&req.ImageURL, "image-url", "", "optional image url")
	cmd.Flags().StringToStringVar(&req.Data, "data", nil, "extra key=value payload")
	return cmd
}
