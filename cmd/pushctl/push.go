package main

import (
	"errors"
	"fmt"

	"github.com/brutalpush/pushclient/pkg/push"
	"github.com/spf13/cobra"
)

func (c *cli) deviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Manage the push device",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "register TOKEN",
		Short: "Register a push token for the signed-in user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := c.app.subs.RegisterDevice(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			c.app.printf("Registered device %s\n", device.ID)
			return nil
		},
	})
	return cmd
}

func (c *cli) pushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Receive push deliveries",
	}

	var token string
	listen := &cobra.Command{
		Use:   "listen",
		Short: "Register this device and print deliveries from the broker until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if c.app.cfg.AMQPURL == "" {
				return errors.New("PUSH_AMQP_URL is not set")
			}

			source, err := push.DialAMQP(push.AMQPConfig{
				URL:   c.app.cfg.AMQPURL,
				Queue: c.app.cfg.AMQPQueue,
				Token: token,
			})
			if err != nil {
				return err
			}

			reg, err := push.Register(ctx, source, c.app.subs, c.app.creds)
			if err != nil {
				source.Close()
				return err
			}
			defer reg.Close()

			c.app.printf("Listening with token %s\n", reg.Token)
			if id := reg.DeviceID(); id != "" {
				c.app.printf("Device id %s\n", id)
			}
			return c.printDeliveries(cmd, reg)
		},
	}
	listen.Flags().StringVar(&token, "token", "", "device token (random when empty)")
	cmd.AddCommand(listen)
	return cmd
}

func (c *cli) printDeliveries(cmd *cobra.Command, reg *push.Registration) error {
	messages, responses := reg.Messages(), reg.Responses()
	for messages != nil || responses != nil {
		select {
		case <-cmd.Context().Done():
			return nil
		case m, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			c.app.printf("%s  %s: %s\n", m.ReceivedAt.Format("15:04:05"), m.Title, m.Body)
		case r, ok := <-responses:
			if !ok {
				responses = nil
				continue
			}
			c.app.printf("%s  %s on %q\n", r.Message.ReceivedAt.Format("15:04:05"), r.Action, r.Message.Title)
		}
	}
	return fmt.Errorf("push source closed")
}
