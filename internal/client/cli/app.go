// Package cli implements the textshr-cli subcommands over the API client.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/textshr/internal/client"
	"github.com/dmitrijs2005/textshr/internal/common"
)

// api is the slice of the API client the commands use; tests substitute
// a stub.
type api interface {
	Create(ctx context.Context, text string, opts client.CreateOptions) (string, error)
	Get(ctx context.Context, key string) (*client.Text, error)
	Verify(ctx context.Context, key, password string) (*client.Text, error)
	Update(ctx context.Context, key, text string, opts client.CreateOptions) error
	Delete(ctx context.Context, key string) error
}

type App struct {
	api api
	out io.Writer
}

func NewApp(api api, out io.Writer) *App {
	return &App{api: api, out: out}
}

// Run dispatches args (without the program name) to a subcommand.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.usage()
		return errors.New("no command")
	}

	switch cmd := args[0]; cmd {
	case "create":
		return a.create(ctx, args[1:])
	case "get":
		return a.get(ctx, args[1:])
	case "verify":
		return a.verify(ctx, args[1:])
	case "update":
		return a.update(ctx, args[1:])
	case "delete":
		return a.delete(ctx, args[1:])
	default:
		a.usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *App) usage() {
	fmt.Fprintln(a.out, `usage: textshr-cli <command> [flags]

commands:
  create   submit text, print the generated key
  get      print the text stored under a key
  verify   retrieve a password-gated text
  update   replace a record you created
  delete   remove a record you created`)
}

func createFlags(fs *flag.FlagSet) (*time.Duration, *bool, *bool, *string) {
	ttl := fs.Duration("ttl", 10*time.Minute, "record lifetime")
	once := fs.Bool("once", false, "delete after the first read")
	gated := fs.Bool("password", false, "prompt for an access password")
	summary := fs.String("summary", "", "short description")
	return ttl, once, gated, summary
}

func (a *App) create(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(a.out)
	ttl, once, gated, summary := createFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	text, err := readText(fs.Args(), a.out)
	if err != nil {
		return err
	}

	opts := client.CreateOptions{TTL: *ttl, OnlyOneRead: *once, Summary: *summary}
	if *gated {
		pw, err := GetPassword(a.out)
		if err != nil {
			return err
		}
		opts.Password = string(pw)
	}

	key, err := a.api.Create(ctx, text, opts)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, key)
	return nil
}

func (a *App) get(ctx context.Context, args []string) error {
	key, err := oneKey(args)
	if err != nil {
		return err
	}

	text, err := a.api.Get(ctx, key)
	if errors.Is(err, common.ErrPasswordRequired) {
		// fall through to the gated path
		return a.verify(ctx, args)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, text.Text)
	return nil
}

func (a *App) verify(ctx context.Context, args []string) error {
	key, err := oneKey(args)
	if err != nil {
		return err
	}

	pw, err := GetPassword(a.out)
	if err != nil {
		return err
	}

	text, err := a.api.Verify(ctx, key, string(pw))
	if errors.Is(err, common.ErrNoMatch) {
		return errors.New("no matching record")
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, text.Text)
	return nil
}

func (a *App) update(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.SetOutput(a.out)
	ttl, once, gated, summary := createFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) < 1 {
		return errors.New("key required")
	}
	key := rest[0]

	text, err := readText(rest[1:], a.out)
	if err != nil {
		return err
	}

	opts := client.CreateOptions{TTL: *ttl, OnlyOneRead: *once, Summary: *summary}
	if *gated {
		pw, err := GetPassword(a.out)
		if err != nil {
			return err
		}
		opts.Password = string(pw)
	}

	if err := a.api.Update(ctx, key, text, opts); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "updated")
	return nil
}

func (a *App) delete(ctx context.Context, args []string) error {
	key, err := oneKey(args)
	if err != nil {
		return err
	}

	if err := a.api.Delete(ctx, key); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "deleted")
	return nil
}

func oneKey(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("key required")
	}
	return args[0], nil
}

// readText takes the text from the argument list when present, otherwise
// prompts for it interactively.
func readText(args []string, out io.Writer) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return GetMultiline("Enter text", out)
}
