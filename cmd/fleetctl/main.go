// Command fleetctl is the operator console for the fleet back-office API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rideops/fleet-backoffice/internal/infrastructure/db/redis"
	"github.com/rideops/fleet-backoffice/internal/notify"
	"github.com/rideops/fleet-backoffice/internal/pkg/config"
	"github.com/rideops/fleet-backoffice/internal/session"
	"github.com/rideops/fleet-backoffice/pkg/client"
	"github.com/rideops/fleet-backoffice/pkg/domain"
	"github.com/rideops/fleet-backoffice/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := &app{out: os.Stdout, errOut: os.Stderr}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	stop()

	if err != nil {
		// client failures were already printed by the notifier
		if !a.notified.Load() {
			fmt.Fprintln(a.errOut, "error:", err)
		}
		os.Exit(1)
	}
}

// app holds everything a command needs. It is filled in by setup, which runs
// before every command.
type app struct {
	out    io.Writer
	errOut io.Writer

	cfg   *config.Client
	log   zerolog.Logger
	api   *client.Client
	sess  *session.Session
	notes *notify.Dispatcher
	rdb   *goredis.Client

	notified atomic.Bool
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "fleetctl",
		Short:         "Operate the fleet back-office from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newVerifyCmd(a),
		newProfileCmd(a),
		newPasswordCmd(a),
		newVehiclesCmd(a),
		newDriversCmd(a),
		newResourceCmd(a, "schedules", "Work shifts", func(c *client.Client) crud[domain.Schedule] { return c.Schedules },
			"shift", "driver", "vehicle"),
		newResourceCmd(a, "payments", "Driver payments", func(c *client.Client) crud[domain.Payment] { return c.Payments },
			"method", "driver", "schedule"),
		newDocumentsCmd(a),
		newMediaCmd(a),
		newNotificationsCmd(a),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.LoadClient(ctx)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  true,
		Output:  a.errOut,
		Service: "fleetctl",
	})

	store, err := a.tokenStore(ctx)
	if err != nil {
		return err
	}

	sink := notify.WriterSink(a.errOut)
	a.notes = notify.NewDispatcher(0, notify.SinkFunc(func(n client.Notification) {
		a.notified.Store(true)
		sink.Deliver(n)
	}), a.log)
	a.notes.Start(context.WithoutCancel(ctx))

	a.api = client.New(cfg.APIURL,
		client.WithTokenSource(session.AsTokenSource(store)),
		client.WithNotifier(a.notes),
		client.WithTimeout(cfg.RequestTimeout),
		client.WithLogger(a.log.With().Str("component", "client").Logger()),
	)
	a.sess = session.New(a.api.Auth, store, session.Options{
		VerifyInterval: cfg.VerifyInterval,
		CacheTTL:       cfg.CacheTTL,
		OnSignedOut:    a.signedOut,
		Logger:         a.log.With().Str("component", "session").Logger(),
	})
	a.api.SetUnauthorizedHook(a.sess.HandleUnauthorized)
	return nil
}

func (a *app) tokenStore(ctx context.Context) (session.TokenStore, error) {
	switch a.cfg.TokenStore {
	case "redis":
		rdb, err := redis.Connect(ctx, redis.Config{Addr: a.cfg.Redis.Addr, Password: a.cfg.Redis.Password, DB: a.cfg.Redis.DB})
		if err != nil {
			return nil, err
		}
		a.rdb = rdb
		return session.NewRedisTokenStore(rdb, a.cfg.Profile, 0), nil
	case "memory":
		return session.NewMemoryTokenStore(""), nil
	}

	path := a.cfg.TokenFile
	if path == "" {
		var err error
		if path, err = session.DefaultTokenPath(); err != nil {
			return nil, err
		}
	}
	return session.NewFileTokenStore(path)
}

// close waits for background logouts and drains pending notifications.
func (a *app) close() {
	if a.sess != nil {
		a.sess.Wait()
	}
	if a.notes != nil {
		a.notes.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

func (a *app) signedOut(r session.Reason) {
	switch r {
	case session.ReasonLogout:
		fmt.Fprintln(a.errOut, "signed out")
	case session.ReasonNoToken:
	default:
		fmt.Fprintf(a.errOut, "session ended (%s), sign in again with: fleetctl login\n", r)
	}
}

// requireAuth restores the persisted session.
func (a *app) requireAuth(ctx context.Context) error {
	if a.sess.Start(ctx) != session.StateAuthenticated {
		return session.ErrNotAuthenticated
	}
	return nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
