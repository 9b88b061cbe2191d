// queuectl drives the ticket queue from a terminal: it lists, issues and
// advances tickets, and can poll the queue the way a lobby display does.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"qms/ticket-queue/internal/client"
	"qms/ticket-queue/internal/models"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	url      string
	interval time.Duration
	preview  int
	seed     string
	timeout  time.Duration
}

func run(args []string, out io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("queuectl", pflag.ContinueOnError)
	flagSet.StringVar(&opts.url, "url", envOr("QUEUE_URL", "http://localhost:8080"), "base URL of the ticket-queue service")
	flagSet.DurationVar(&opts.interval, "interval", 5*time.Second, "poll interval for watch")
	flagSet.IntVar(&opts.preview, "preview", 3, "number of upcoming tickets shown by watch")
	flagSet.StringVar(&opts.seed, "seed", "", "serving pointer: last or next (default last, next for watch)")
	flagSet.DurationVar(&opts.timeout, "timeout", 15*time.Second, "per-request timeout")
	flagSet.SetInterspersed(true)
	flagSet.Usage = func() { printHelp(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	rest := flagSet.Args()
	if len(rest) == 0 {
		printHelp(flagSet)
		return fmt.Errorf("missing command")
	}

	seed, err := seedFor(rest[0], opts.seed)
	if err != nil {
		return err
	}
	if opts.interval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(opts.url, nil)
	command, params := rest[0], rest[1:]
	switch command {
	case "list":
		return withTimeout(ctx, opts.timeout, func(ctx context.Context) error {
			tickets, err := c.List(ctx)
			if err != nil {
				return err
			}
			printTickets(out, tickets)
			return nil
		})
	case "issue":
		return withTimeout(ctx, opts.timeout, func(ctx context.Context) error {
			id, err := c.Issue(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, id)
			return nil
		})
	case "attend", "absent":
		if len(params) != 1 {
			return fmt.Errorf("usage: queuectl %s <ticket>", command)
		}
		return withTimeout(ctx, opts.timeout, func(ctx context.Context) error {
			advance := c.Attend
			if command == "absent" {
				advance = c.Absent
			}
			next, err := advance(ctx, params[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, next)
			return nil
		})
	case "current":
		return withTimeout(ctx, opts.timeout, func(ctx context.Context) error {
			current, _, err := c.Current(ctx, seed)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, current)
			return nil
		})
	case "watch":
		return watch(ctx, c, out, opts, seed)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// watch re-reads the queue every interval until ctx is cancelled. A failed
// poll is reported and the previous board stays valid.
func watch(ctx context.Context, c *client.Client, out io.Writer, opts options, seed client.Seed) error {
	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()
	for {
		err := withTimeout(ctx, opts.timeout, func(ctx context.Context) error {
			current, tickets, err := c.Current(ctx, seed)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, formatBoard(time.Now(), current, client.Upcoming(tickets, current, opts.preview)))
			return nil
		})
		if err != nil && ctx.Err() == nil {
			fmt.Fprintf(out, "poll failed: %v\n", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// seedFor resolves --seed. watch defaults to the first unresolved ticket;
// seeding it from the last ticket would leave nothing to preview.
func seedFor(command, raw string) (client.Seed, error) {
	if raw == "" && command == "watch" {
		return client.SeedNext, nil
	}
	return client.ParseSeed(raw)
}

func formatBoard(now time.Time, current string, upcoming []string) string {
	if current == "" {
		current = "-"
	}
	next := "-"
	if len(upcoming) > 0 {
		next = strings.Join(upcoming, " ")
	}
	return fmt.Sprintf("%s  now serving %s  next: %s", now.Format("15:04:05"), current, next)
}

func printTickets(out io.Writer, tickets []models.Ticket) {
	if len(tickets) == 0 {
		fmt.Fprintln(out, "no tickets")
		return
	}
	for _, t := range tickets {
		fmt.Fprintf(out, "%-8s %-8s %s\n", t.Queue, t.Status, t.Timestamp)
	}
}

func withTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `queuectl talks to a ticket-queue service.

Usage:
  queuectl [flags] <command> [args]

Commands:
  list             list tickets in the current scope
  issue            issue a new ticket and print its id
  attend <ticket>  mark the ticket attended and print the next ticket
  absent <ticket>  mark the ticket absent and print the next ticket
  current          print the serving pointer chosen by --seed
  watch            poll the queue like a lobby display, showing the serving
                   ticket and the next --preview tickets (seeds from the
                   first unresolved ticket unless --seed is given)

Flags:
`)
	flagSet.PrintDefaults()
}
