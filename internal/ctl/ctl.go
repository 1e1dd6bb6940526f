// Package ctl implements the groupledgerctl admin commands.
package ctl

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/groupledger/internal/flagx"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"golang.org/x/term"
)

// Backend is what the commands operate on.
type Backend interface {
	Migrate(ctx context.Context) error
	CreateUser(ctx context.Context, email, password, name string) (*models.User, error)
	SweepExpired(ctx context.Context) (invitations, refreshTokens int64, err error)
	SendReminders(ctx context.Context, groupID int64) (*models.ReminderReport, error)
	RunReminderSweep(ctx context.Context) (models.SweepSummary, error)
}

var ErrUsage = errors.New("usage: groupledgerctl <migrate|create-user|sweep-invitations|send-reminders> [flags]")

// commandFlags are the flags owned by subcommands. Everything else on the
// command line belongs to the server configuration.
var commandFlags = []string{"-email", "-name", "-password", "-group"}

type App struct {
	backend Backend
	out     io.Writer
	// readPassword prompts for a password without echo.
	readPassword func() ([]byte, error)
}

func NewApp(b Backend, out io.Writer) *App {
	return &App{backend: b, out: out, readPassword: readTerminalPassword}
}

func readTerminalPassword() ([]byte, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	defer fmt.Fprintln(os.Stderr)
	return term.ReadPassword(int(os.Stdin.Fd()))
}

// Run executes the command named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", "", "account email")
	name := fs.String("name", "", "display name")
	password := fs.String("password", "", "password; prompted for when empty")
	group := fs.Int64("group", 0, "only this group")
	if err := fs.Parse(flagx.FilterArgs(args[1:], commandFlags)); err != nil {
		return err
	}

	switch args[0] {
	case "migrate":
		if err := a.backend.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "migrations applied")
		return nil

	case "create-user":
		return a.createUser(ctx, *email, *password, *name)

	case "sweep-invitations":
		inv, tokens, err := a.backend.SweepExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "removed %d expired invitations and %d refresh tokens\n", inv, tokens)
		return nil

	case "send-reminders":
		if *group > 0 {
			rep, err := a.backend.SendReminders(ctx, *group)
			if err != nil {
				return err
			}
			return a.printJSON(rep)
		}
		sum, err := a.backend.RunReminderSweep(ctx)
		if err != nil {
			return err
		}
		return a.printJSON(sum)

	default:
		return fmt.Errorf("unknown command %q: %w", args[0], ErrUsage)
	}
}

func (a *App) createUser(ctx context.Context, email, password, name string) error {
	if strings.TrimSpace(email) == "" {
		return errors.New("-email is required")
	}
	if password == "" {
		pw, err := a.readPassword()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = string(pw)
		clear(pw)
	}
	u, err := a.backend.CreateUser(ctx, email, password, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created user %d <%s>\n", u.ID, u.Email)
	return nil
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
