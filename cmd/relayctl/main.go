// Command relayctl runs administrative tasks against the relay database.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"telephony-relay/internal/config"
	"telephony-relay/internal/settings"
	"telephony-relay/migrations"
	"telephony-relay/pkg/logger"
	"telephony-relay/pkg/utils"
)

const usage = `usage: relayctl <command> [flags]

commands:
  migrate                                   apply pending database migrations
  list-settings [--user=ID] [--detailed]    show telephony settings
  clear-settings (--user=ID | --all) [--list] [--force]
                                            delete telephony settings
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "relayctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return err
	}
	defer func() { _ = logger.ShutdownFlush(log, time.Second) }()

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxOpenConns: 2})
	if err != nil {
		return err
	}
	defer db.Close()

	if cmd == "migrate" {
		applied, err := utils.Migrate(ctx, db, migrations.FS)
		if err != nil {
			return err
		}
		for _, m := range applied {
			log.Info("migration applied", zap.Int64("version", m.Version), zap.String("source", m.Source))
		}
		fmt.Printf("%d migration(s) applied\n", len(applied))
		return nil
	}

	cipher, err := settings.NewCipher(cfg.Crypto.SettingsKey)
	if err != nil {
		return err
	}
	cli := &CLI{
		Settings: settings.NewService(settings.NewPostgresRepo(db, cipher)),
		Out:      os.Stdout,
		In:       os.Stdin,
		Log:      logger.Named(log, "relayctl"),
	}
	switch cmd {
	case "list-settings":
		return cli.ListSettings(ctx, args)
	case "clear-settings":
		return cli.ClearSettings(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// SettingsStore is what the settings commands need.
type SettingsStore interface {
	Get(ctx context.Context, ownerID string) (settings.Configuration, error)
	List(ctx context.Context) ([]settings.Configuration, error)
	Delete(ctx context.Context, ownerID string) error
	DeleteAll(ctx context.Context) (int64, error)
}

type CLI struct {
	Settings SettingsStore
	Out      io.Writer
	In       io.Reader
	Log      *zap.Logger
}

func (c *CLI) ListSettings(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list-settings", flag.ContinueOnError)
	fs.SetOutput(c.Out)
	user := fs.String("user", "", "only this owner id")
	detailed := fs.Bool("detailed", false, "show every field")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rows, err := c.load(ctx, *user)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(c.Out, "No telephony settings found.")
		return nil
	}
	c.print(rows, *detailed)
	return nil
}

func (c *CLI) ClearSettings(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("clear-settings", flag.ContinueOnError)
	fs.SetOutput(c.Out)
	user := fs.String("user", "", "clear this owner's settings")
	all := fs.Bool("all", false, "clear every owner's settings")
	list := fs.Bool("list", false, "show what will be deleted first")
	force := fs.Bool("force", false, "skip confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	switch {
	case *user != "" && *all:
		return errors.New("--user and --all are mutually exclusive")
	case *user == "" && !*all:
		return errors.New("one of --user or --all is required")
	}

	rows, err := c.load(ctx, *user)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(c.Out, "No telephony settings found.")
		return nil
	}
	if *list {
		c.print(rows, false)
	}

	if !*force {
		target := fmt.Sprintf("settings for user %s", *user)
		if *all {
			target = fmt.Sprintf("ALL telephony settings (%d)", len(rows))
		}
		if !c.confirm("Delete " + target + "?") {
			fmt.Fprintln(c.Out, "Aborted.")
			return nil
		}
	}

	if *all {
		n, err := c.Settings.DeleteAll(ctx)
		if err != nil {
			return err
		}
		c.Log.Warn("telephony settings cleared", zap.Int64("count", n))
		fmt.Fprintf(c.Out, "Deleted %d telephony setting(s).\n", n)
		return nil
	}
	if err := c.Settings.Delete(ctx, *user); err != nil {
		return err
	}
	c.Log.Warn("telephony settings cleared", zap.String("owner_id", *user))
	fmt.Fprintf(c.Out, "Deleted telephony settings for user %s.\n", *user)
	return nil
}

func (c *CLI) load(ctx context.Context, user string) ([]settings.Configuration, error) {
	if user == "" {
		return c.Settings.List(ctx)
	}
	cfg, err := c.Settings.Get(ctx, user)
	if errors.Is(err, settings.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []settings.Configuration{cfg}, nil
}

func (c *CLI) print(rows []settings.Configuration, detailed bool) {
	tw := tabwriter.NewWriter(c.Out, 0, 4, 2, ' ', 0)
	if detailed {
		fmt.Fprintln(tw, "OWNER\tINBOUND\tACTION\tPHONE\tSIP ENDPOINT\tSIP USER\tSIP PASSWORD\tSMS FORWARD\tFORWARD TO\tGREETING\tUPDATED")
	} else {
		fmt.Fprintln(tw, "OWNER\tINBOUND\tACTION\tTARGET\tSMS FORWARD\tUPDATED")
	}
	for _, cfg := range rows {
		v := cfg.View()
		updated := v.UpdatedAt.Format("2006-01-02 15:04:05")
		if !detailed {
			target := v.PhoneNumber
			if target == "" {
				target = v.SIPEndpoint
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				v.OwnerID, v.InboundNumber, v.CallAction, dash(target), yesNo(v.SMSForwardingEnabled), updated)
			continue
		}
		password := "-"
		if v.HasSIPPassword {
			password = "***SET***"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.OwnerID, v.InboundNumber, v.CallAction, dash(v.PhoneNumber), dash(v.SIPEndpoint),
			dash(v.SIPUsername), password, yesNo(v.SMSForwardingEnabled), dash(v.SMSForwardTo),
			dash(v.Greeting), updated)
	}
	_ = tw.Flush()
}

func (c *CLI) confirm(question string) bool {
	fmt.Fprintf(c.Out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
