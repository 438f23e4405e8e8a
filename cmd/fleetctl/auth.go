package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rideops/fleet-backoffice/internal/session"
	"github.com/rideops/fleet-backoffice/pkg/domain"
)

func newLoginCmd(a *app) *cobra.Command {
	var creds domain.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.sess.Login(cmd.Context(), creds)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.errOut, "signed in as %s (%s)\n", user.Username, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&creds.Username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&creds.Password, "password", "p", "", "password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var (
		reg  domain.Registration
		role string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg.Role = domain.Role(role)
			if !reg.Role.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			user, err := a.sess.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			return a.print(user)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&reg.Username, "username", "u", "", "username")
	f.StringVar(&reg.Email, "email", "", "email address")
	f.StringVarP(&reg.Password, "password", "p", "", "password")
	f.StringVar(&reg.FirstName, "first-name", "", "first name")
	f.StringVar(&reg.LastName, "last-name", "", "last name")
	f.StringVar(&reg.Phone, "phone", "", "phone number")
	f.StringVar(&role, "role", string(domain.RoleDriver), "driver, manager or admin")
	f.StringVar(&reg.LicenseNumber, "license", "", "driving license number, drivers only")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the token and revoke it on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.sess.Logout(cmd.Context())
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireAuth(cmd.Context()); err != nil {
				return err
			}
			user, err := a.sess.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(user)
		},
	}
}

func newVerifyCmd(a *app) *cobra.Command {
	var watch time.Duration
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the persisted token is still accepted",
		Long: "Check that the persisted token is still accepted. With --watch the check\n" +
			"repeats until the session ends or the command is interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.requireAuth(ctx); err != nil {
				return err
			}
			if watch <= 0 {
				fmt.Fprintln(a.out, a.sess.Verify(ctx))
				return nil
			}

			a.sess.RunVerifier(ctx, watch)
			if ctx.Err() != nil {
				return nil
			}
			return session.ErrNotAuthenticated
		},
	}
	cmd.Flags().DurationVar(&watch, "watch", 0, "keep verifying at this interval")
	return cmd
}

func newProfileCmd(a *app) *cobra.Command {
	var upd domain.ProfileUpdate
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update the signed-in user's profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if upd == (domain.ProfileUpdate{}) {
				return errors.New("nothing to update")
			}
			if err := a.requireAuth(cmd.Context()); err != nil {
				return err
			}
			user, err := a.sess.UpdateProfile(cmd.Context(), upd)
			if err != nil {
				return err
			}
			return a.print(user)
		},
	}
	f := cmd.Flags()
	f.StringVar(&upd.Username, "username", "", "new username")
	f.StringVar(&upd.Email, "email", "", "new email address")
	f.StringVar(&upd.FirstName, "first-name", "", "new first name")
	f.StringVar(&upd.LastName, "last-name", "", "new last name")
	f.StringVar(&upd.Phone, "phone", "", "new phone number")
	return cmd
}

func newPasswordCmd(a *app) *cobra.Command {
	var current, next string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the signed-in user's password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireAuth(cmd.Context()); err != nil {
				return err
			}
			if err := a.sess.ChangePassword(cmd.Context(), current, next); err != nil {
				return err
			}
			fmt.Fprintln(a.errOut, "password changed")
			return nil
		},
	}
	cmd.Flags().StringVar(&current, "current", "", "current password")
	cmd.Flags().StringVar(&next, "new", "", "new password")
	_ = cmd.MarkFlagRequired("current")
	_ = cmd.MarkFlagRequired("new")
	return cmd
}
