package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/docopt/docopt-go"
	"golang.org/x/term"

	"github.com/dtroode/fieldops/internal/config"
	"github.com/dtroode/fieldops/internal/logger"
	"github.com/dtroode/fieldops/internal/model"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const usage = `Field operations dispatch control.

The backend is configured through DISPATCH_ENDPOINT, DISPATCH_API_KEY,
DISPATCH_PROJECT_ID and DISPATCH_USE_TLS.

Usage:
    dispatchctl login [--email=<email>] [--password=<password>]
    dispatchctl logout
    dispatchctl whoami
    dispatchctl list [--format=<format>]
    dispatchctl watch [--format=<format>]
    dispatchctl create <title>...
    dispatchctl start <id>
    dispatchctl complete <id>
    dispatchctl -h | --help
    dispatchctl --version

Options:
    -h --help              Show this screen.
    --version              Show version.
    --email=<email>        Account email. Prompted when omitted.
    --password=<password>  Account password. Prompted when omitted.
    --format=<format>      Output format: table, yaml or json [default: table].`

func main() {
	version := fmt.Sprintf("%s (%s, %s)", buildVersion, buildDate, buildCommit)
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		log.Fatalf("failed to parse arguments: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	cfg, err := config.NewClientConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.NewWithWriter(cfg.LogLevel, os.Stderr)

	a, err := newApp(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dispatchctl: %v\n", err)
		os.Exit(1)
	}

	err = runCommand(ctx, a, opts, os.Stdin, os.Stdout, os.Stderr)
	a.Close()

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "dispatchctl: %s\n", describe(err))
		os.Exit(1)
	}
}

// runCommand dispatches one parsed command. Results go to out, progress
// warnings such as lost connections to errOut.
func runCommand(ctx context.Context, a *app, opts docopt.Opts, in io.Reader, out, errOut io.Writer) error {
	switch {
	case flag(opts, "login"):
		return login(ctx, a, opts, in, out)
	case flag(opts, "logout"):
		return logout(ctx, a, out)
	case flag(opts, "whoami"):
		return whoami(ctx, a, out)
	case flag(opts, "list"):
		return list(ctx, a, opts, out)
	case flag(opts, "watch"):
		return watch(ctx, a, opts, out, errOut)
	case flag(opts, "create"):
		return create(ctx, a, opts, out)
	case flag(opts, "start"):
		return start(ctx, a, opts, out)
	case flag(opts, "complete"):
		return complete(ctx, a, opts, out)
	}
	return nil
}

func flag(opts docopt.Opts, name string) bool {
	v, _ := opts.Bool(name)
	return v
}

func login(ctx context.Context, a *app, opts docopt.Opts, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	email, _ := opts.String("--email")
	if email == "" {
		fmt.Fprint(out, "Email: ")
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}

	password, _ := opts.String("--password")
	if password == "" {
		fmt.Fprint(out, "Password: ")
		var err error
		password, err = readPassword(in, reader)
		fmt.Fprintln(out)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}

	if err := a.client.SignIn(ctx, email, password); err != nil {
		return err
	}

	fmt.Fprintf(out, "Signed in as %s\n", email)
	return nil
}

// readPassword reads without echo from a terminal and falls back to a plain line.
func readPassword(in io.Reader, reader *bufio.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		return string(b), err
	}

	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func logout(ctx context.Context, a *app, out io.Writer) error {
	identity, err := a.restore(ctx)
	if err != nil {
		return err
	}
	if identity == nil {
		fmt.Fprintln(out, "Not signed in.")
		return nil
	}

	if err := a.client.SignOut(ctx); err != nil {
		return err
	}

	fmt.Fprintf(out, "Signed out %s\n", identity.Email)
	return nil
}

func whoami(ctx context.Context, a *app, out io.Writer) error {
	identity, err := a.requireIdentity(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s (%s)\n", identity.Email, identity.UserID)
	return nil
}

func list(ctx context.Context, a *app, opts docopt.Opts, out io.Writer) error {
	format, _ := opts.String("--format")
	p, err := newPrinter(out, format)
	if err != nil {
		return err
	}

	if _, err := a.requireIdentity(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Dispatch.RequestTimeout)
	defer cancel()

	stop := a.run(ctx)
	defer stop()

	for {
		v, err := a.nextView(ctx)
		if err != nil {
			return fmt.Errorf("no task snapshot received: %w", err)
		}
		if v.Err != nil && !v.Loaded {
			return v.Err
		}
		if v.Loaded {
			return p.snapshot(v.Tasks)
		}
	}
}

func watch(ctx context.Context, a *app, opts docopt.Opts, out, errOut io.Writer) error {
	format, _ := opts.String("--format")
	p, err := newPrinter(out, format)
	if err != nil {
		return err
	}

	if _, err := a.requireIdentity(ctx); err != nil {
		return err
	}

	stop := a.run(ctx)
	defer stop()

	var (
		printed  model.Snapshot
		started  bool
		signedIn bool
		lastErr  error
	)
	for {
		v, err := a.nextView(ctx)
		if err != nil {
			return err
		}

		if v.Identity == nil {
			if signedIn {
				return model.NewAuthError(model.ErrSessionExpired)
			}
			continue
		}
		signedIn = true

		if v.Err != nil && v.Err != lastErr {
			fmt.Fprintf(errOut, "dispatchctl: %s\n", describe(v.Err))
		}
		lastErr = v.Err

		if v.Loaded && (!started || !snapshotsEqual(printed, v.Tasks)) {
			started = true
			printed = v.Tasks
			if err := p.snapshot(v.Tasks); err != nil {
				return err
			}
		}
	}
}

func create(ctx context.Context, a *app, opts docopt.Opts, out io.Writer) error {
	words, _ := opts["<title>"].([]string)
	if _, err := a.requireIdentity(ctx); err != nil {
		return err
	}

	if err := a.client.CreateTask(ctx, strings.Join(words, " ")); err != nil {
		return err
	}

	fmt.Fprintln(out, "Task dispatched.")
	return nil
}

func start(ctx context.Context, a *app, opts docopt.Opts, out io.Writer) error {
	id, _ := opts.String("<id>")
	if _, err := a.requireIdentity(ctx); err != nil {
		return err
	}

	if err := a.client.StartTask(ctx, id); err != nil {
		return err
	}

	fmt.Fprintf(out, "Task %s started.\n", id)
	return nil
}

func complete(ctx context.Context, a *app, opts docopt.Opts, out io.Writer) error {
	id, _ := opts.String("<id>")
	if _, err := a.requireIdentity(ctx); err != nil {
		return err
	}

	if err := a.client.CompleteTask(ctx, id); err != nil {
		return err
	}

	fmt.Fprintf(out, "Task %s completed.\n", id)
	return nil
}

func snapshotsEqual(a, b model.Snapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// describe turns collaborator errors into a short message for the terminal.
func describe(err error) string {
	var (
		authErr *model.AuthError
		mutErr  *model.MutationError
		subErr  *model.SubscriptionError
	)

	switch {
	case errors.As(err, &authErr):
		switch authErr.Reason {
		case model.AuthReasonInvalidCredentials:
			return "invalid email or password"
		case model.AuthReasonSessionExpired:
			return "session expired, run dispatchctl login"
		case model.AuthReasonNetwork:
			return "dispatch server unreachable"
		}
	case errors.As(err, &mutErr):
		switch mutErr.Reason {
		case model.MutationReasonValidation:
			return mutErr.Err.Error()
		case model.MutationReasonPermissionDenied:
			return "permission denied"
		case model.MutationReasonNotFound:
			return "task not found"
		case model.MutationReasonNetwork:
			return "dispatch server unreachable, try again"
		}
	case errors.As(err, &subErr):
		if subErr.Transient() {
			return "connection lost, reconnecting"
		}
	case errors.Is(err, model.ErrUnavailable):
		return "dispatch server unreachable"
	}
	return err.Error()
}
