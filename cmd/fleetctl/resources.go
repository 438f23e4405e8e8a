package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rideops/fleet-backoffice/pkg/client"
	"github.com/rideops/fleet-backoffice/pkg/domain"
)

// crud is the part of a client resource service the generic commands use.
type crud[T any] interface {
	List(ctx context.Context, p client.ListParams) (*domain.Page[T], error)
	Get(ctx context.Context, id domain.ID) (*T, error)
	Create(ctx context.Context, v *T) (*T, error)
	Update(ctx context.Context, id domain.ID, patch any) (*T, error)
	Delete(ctx context.Context, id domain.ID) error
}

// newResourceCmd builds list, get, create, update and delete for one
// collection. filters name the extra equality query parameters list accepts.
// pick is called after setup, once the client exists.
func newResourceCmd[T any](a *app, name, short string, pick func(*client.Client) crud[T], filters ...string) *cobra.Command {
	cmd := &cobra.Command{Use: name, Short: short}
	cmd.AddCommand(
		newListCmd(a, pick, filters),
		&cobra.Command{
			Use:   "get ID",
			Short: "Show one entry",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.requireAuth(cmd.Context()); err != nil {
					return err
				}
				v, err := pick(a.api).Get(cmd.Context(), domain.ID(args[0]))
				if err != nil {
					return err
				}
				return a.print(v)
			},
		},
		newCreateCmd(a, pick),
		newUpdateCmd(a, pick),
		&cobra.Command{
			Use:   "delete ID",
			Short: "Delete one entry",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.requireAuth(cmd.Context()); err != nil {
					return err
				}
				if err := pick(a.api).Delete(cmd.Context(), domain.ID(args[0])); err != nil {
					return err
				}
				fmt.Fprintf(a.errOut, "deleted %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func newListCmd[T any](a *app, pick func(*client.Client) crud[T], filters []string) *cobra.Command {
	var (
		p        client.ListParams
		from, to string
	)
	values := make(map[string]*string, len(filters))
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if p.From, err = parseDate(from); err != nil {
				return err
			}
			if p.To, err = parseDate(to); err != nil {
				return err
			}
			p.Filters = map[string]string{}
			for k, v := range values {
				if *v != "" {
					p.Filters[k] = *v
				}
			}

			if err := a.requireAuth(cmd.Context()); err != nil {
				return err
			}
			page, err := pick(a.api).List(cmd.Context(), p)
			if err != nil {
				return err
			}
			return a.print(page)
		},
	}
	addListFlags(cmd, &p, &from, &to)
	for _, name := range filters {
		values[name] = cmd.Flags().String(name, "", "filter by "+name)
	}
	return cmd
}

func addListFlags(cmd *cobra.Command, p *client.ListParams, from, to *string) {
	f := cmd.Flags()
	f.IntVar(&p.Page, "page", 0, "page number, from 1")
	f.IntVar(&p.Limit, "limit", 0, "page size")
	f.StringVar(&p.Status, "status", "", "filter by status")
	f.StringVar(&p.Search, "search", "", "free-text search")
	f.StringVar(from, "from", "", "only entries on or after this date (YYYY-MM-DD or RFC 3339)")
	f.StringVar(to, "to", "", "only entries on or before this date (YYYY-MM-DD or RFC 3339)")
}

func newCreateCmd[T any](a *app, pick func(*client.Client) crud[T]) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an entry from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var v T
			if err := readJSON(file, &v); err != nil {
				return err
			}
			if err := a.requireAuth(cmd.Context()); err != nil {
				return err
			}
			created, err := pick(a.api).Create(cmd.Context(), &v)
			if err != nil {
				return err
			}
			return a.print(created)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON document, - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newUpdateCmd[T any](a *app, pick func(*client.Client) crud[T]) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Apply the fields of a JSON file to an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch json.RawMessage
			if err := readJSON(file, &patch); err != nil {
				return err
			}
			if err := a.requireAuth(cmd.Context()); err != nil {
				return err
			}
			updated, err := pick(a.api).Update(cmd.Context(), domain.ID(args[0]), patch)
			if err != nil {
				return err
			}
			return a.print(updated)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON document, - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readJSON(path string, v any) error {
	if path == "-" {
		if err := json.NewDecoder(os.Stdin).Decode(v); err != nil {
			return fmt.Errorf("decode stdin: %w", err)
		}
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}
