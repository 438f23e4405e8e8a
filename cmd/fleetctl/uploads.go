package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rideops/fleet-backoffice/pkg/client"
	"github.com/rideops/fleet-backoffice/pkg/domain"
)

func newVehiclesCmd(a *app) *cobra.Command {
	cmd := newResourceCmd(a, "vehicles", "Fleet vehicles",
		func(c *client.Client) crud[domain.Vehicle] { return c.Vehicles }, "type", "driver")
	cmd.AddCommand(newImageCmd(a, "image ID FILE", "Set a vehicle's picture",
		func(ctx context.Context, id domain.ID, f client.File) (*client.UploadResult, error) {
			return a.api.Vehicles.UploadImage(ctx, id, f)
		}))
	return cmd
}

func newDriversCmd(a *app) *cobra.Command {
	cmd := newResourceCmd(a, "drivers", "Driver profiles",
		func(c *client.Client) crud[domain.Driver] { return c.Drivers }, "user")
	cmd.AddCommand(newImageCmd(a, "photo ID FILE", "Set a driver's photo",
		func(ctx context.Context, id domain.ID, f client.File) (*client.UploadResult, error) {
			return a.api.Drivers.UploadPhoto(ctx, id, f)
		}))
	return cmd
}

func newImageCmd(a *app, use, short string, upload func(context.Context, domain.ID, client.File) (*client.UploadResult, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(cmd.Context()); err != nil {
				return err
			}
			files, closeAll, err := client.OpenFiles(args[1])
			if err != nil {
				return err
			}
			defer closeAll()

			res, err := upload(cmd.Context(), domain.ID(args[0]), files[0])
			if err != nil {
				return err
			}
			return a.printUpload(res)
		},
	}
}

func newDocumentsCmd(a *app) *cobra.Command {
	cmd := newResourceCmd(a, "documents", "Vehicle and driver documents",
		func(c *client.Client) crud[domain.Document] { return c.Documents }, "type", "ownerType", "owner")

	fields := map[string]*string{}
	upload := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a document file and record it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			form := make(map[string]string, len(fields))
			for k, v := range fields {
				if *v != "" {
					form[k] = *v
				}
			}
			if form["ownerType"] == "" || form["owner"] == "" || form["type"] == "" {
				return errors.New("--owner-type, --owner and --type are required")
			}

			if err := a.requireAuth(cmd.Context()); err != nil {
				return err
			}
			files, closeAll, err := client.OpenFiles(args[0])
			if err != nil {
				return err
			}
			defer closeAll()

			res, err := a.api.Documents.Upload(cmd.Context(), form, files...)
			if err != nil {
				return err
			}
			return a.printUpload(res)
		},
	}
	f := upload.Flags()
	fields["ownerType"] = f.String("owner-type", "", "vehicle or driver")
	fields["owner"] = f.String("owner", "", "owner identifier")
	fields["type"] = f.String("type", "", "document type, e.g. insurance")
	fields["title"] = f.String("title", "", "title, defaults to the file name")
	fields["status"] = f.String("status", "", "document status")
	fields["issuedAt"] = f.String("issued", "", "issue date (YYYY-MM-DD)")
	fields["expiresAt"] = f.String("expires", "", "expiry date (YYYY-MM-DD)")
	cmd.AddCommand(upload)
	return cmd
}

func newMediaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "media", Short: "Uploaded media files"}
	cmd.AddCommand(&cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload one or more files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(cmd.Context()); err != nil {
				return err
			}
			files, closeAll, err := client.OpenFiles(args...)
			if err != nil {
				return err
			}
			defer closeAll()

			res, err := a.api.Media.Upload(cmd.Context(), "files", files...)
			if err != nil {
				return err
			}
			return a.printUpload(res)
		},
	})
	return cmd
}

// printUpload prints the raw response, then every identifier it carries.
func (a *app) printUpload(res *client.UploadResult) error {
	if err := a.print(res.Raw); err != nil {
		return err
	}
	if ids := res.CandidateIDs(); len(ids) > 0 {
		s := make([]string, len(ids))
		for i, id := range ids {
			s[i] = id.String()
		}
		fmt.Fprintf(a.errOut, "ids: %s\n", strings.Join(s, ", "))
	}
	return nil
}

func newNotificationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "notifications", Short: "Your notifications"}

	var (
		p        client.ListParams
		from, to string
		unread   bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if p.From, err = parseDate(from); err != nil {
				return err
			}
			if p.To, err = parseDate(to); err != nil {
				return err
			}
			if unread {
				p.Filters = map[string]string{"read": "false"}
			}
			if err := a.requireAuth(cmd.Context()); err != nil {
				return err
			}
			page, err := a.api.Notifications.List(cmd.Context(), p)
			if err != nil {
				return err
			}
			return a.print(page)
		},
	}
	addListFlags(list, &p, &from, &to)
	list.Flags().BoolVar(&unread, "unread", false, "only unread notifications")

	cmd.AddCommand(list,
		&cobra.Command{
			Use:   "read ID",
			Short: "Mark one notification as read",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.requireAuth(cmd.Context()); err != nil {
					return err
				}
				n, err := a.api.Notifications.MarkRead(cmd.Context(), domain.ID(args[0]))
				if err != nil {
					return err
				}
				return a.print(n)
			},
		},
		&cobra.Command{
			Use:   "read-all",
			Short: "Mark every notification as read",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := a.requireAuth(cmd.Context()); err != nil {
					return err
				}
				updated, err := a.api.Notifications.MarkAllRead(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(a.errOut, "%d marked as read\n", updated)
				return nil
			},
		},
	)
	return cmd
}
