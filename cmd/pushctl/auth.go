package main

import (
	"github.com/brutalpush/pushclient/pkg/auth"
	"github.com/spf13/cobra"
)

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := c.app.session.SignIn(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			c.app.printf("Signed in as %s (%s)\n", user.Email, user.Domain)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func (c *cli) registerCmd() *cobra.Command {
	var req auth.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account bound to a sending domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := c.app.session.SignUp(cmd.Context(), req)
			if err != nil {
				return err
			}
			c.app.printf("Registered %s (%s)\nAPI key: %s\n", user.Email, user.Domain, user.APIKey)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password")
	cmd.Flags().StringVar(&req.Domain, "domain", "", "sending domain")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.session.SignOut(cmd.Context()); err != nil {
				return err
			}
			c.app.printf("Signed out\n")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Validate the stored session and print the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := c.app.session.Restore(cmd.Context())
			if err != nil {
				return err
			}
			if user == nil {
				c.app.printf("Not signed in\n")
				return nil
			}
			c.app.printf("%s\t%s\t%s\n", user.ID, user.Email, user.Domain)
			return nil
		},
	}
}

func (c *cli) forgotPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forgot-password EMAIL",
		Short: "Request a password reset code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := c.app.auth.ForgotPassword(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			c.app.printf("%s\n", msg)
			return nil
		},
	}
}

func (c *cli) resetPasswordCmd() *cobra.Command {
	var otp, password string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with a reset code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			msg, err := c.app.auth.ResetPassword(cmd.Context(), otp, password)
			if err != nil {
				return err
			}
			c.app.printf("%s\n", msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&otp, "otp", "", "reset code from the email")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	return cmd
}
