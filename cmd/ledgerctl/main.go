// Command ledgerctl runs maintenance tasks against the reservation store.
//
//	ledgerctl migrate
//	ledgerctl sweep-locks
//	ledgerctl reconcile
//	ledgerctl intents [--status PENDING] [--limit 100]
//	ledgerctl put-event --file event.json
//	ledgerctl token --sub buyer-1 [--name N] [--email E] [--role CUSTOMER] [--ttl 1h]
package main

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "os"
    "time"

    "github.com/spf13/pflag"

    "github.com/iliyamo/ticket-inventory/internal/app"
    "github.com/iliyamo/ticket-inventory/internal/config"
    "github.com/iliyamo/ticket-inventory/internal/model"
    "github.com/iliyamo/ticket-inventory/internal/utils"
)

const usage = `usage: ledgerctl <command> [flags]

commands:
  migrate       create tables and indexes
  sweep-locks   delete expired reservation locks
  reconcile     abandon PENDING purchase intents older than INTENT_TIMEOUT
  intents       list purchase intents (--status, --limit)
  put-event     insert or replace a catalog event from JSON (--file, "-" for stdin)
  token         print a buyer access token signed with JWT_SECRET
`

var errUsage = errors.New("usage")

func main() {
    if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
        if errors.Is(err, errUsage) || errors.Is(err, pflag.ErrHelp) {
            fmt.Fprint(os.Stderr, usage)
            os.Exit(2)
        }
        fmt.Fprintln(os.Stderr, "ledgerctl:", err)
        os.Exit(1)
    }
}

func run(ctx context.Context, args []string, out io.Writer) error {
    if len(args) == 0 {
        return errUsage
    }
    cmd, args := args[0], args[1:]
    fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
    var (
        status = fs.String("status", "", "intent status filter")
        limit  = fs.Int("limit", 100, "maximum rows")
        file   = fs.String("file", "", "event JSON file")
        sub    = fs.String("sub", "", "buyer id")
        name   = fs.String("name", "", "buyer name")
        email  = fs.String("email", "", "buyer email")
        role   = fs.String("role", "CUSTOMER", "role claim")
        ttl    = fs.Duration("ttl", time.Hour, "token lifetime")
    )
    if err := fs.Parse(args); err != nil {
        return err
    }

    if err := config.LoadDotEnv(); err != nil {
        return err
    }

    if cmd == "token" {
        secret := os.Getenv("JWT_SECRET")
        if secret == "" || *sub == "" {
            return errors.New("token needs JWT_SECRET and --sub")
        }
        tok, err := utils.NewAccessToken(secret, *sub, *name, *email, *role, *ttl)
        if err != nil {
            return err
        }
        _, err = fmt.Fprintln(out, tok.Token)
        return err
    }

    var ev model.Event
    if cmd == "put-event" {
        if err := readEvent(*file, &ev); err != nil {
            return err
        }
    }

    cfg, err := config.Load()
    if err != nil {
        return err
    }
    a, err := app.Open(ctx, cfg, app.NewLogger(cfg.LogLevel), cmd == "migrate")
    if err != nil {
        return err
    }
    defer a.Close()

    switch cmd {
    case "migrate":
        _, err = fmt.Fprintln(out, "schema up to date")
    case "sweep-locks":
        var n int
        if n, err = a.Sweeper.RunOnce(ctx); err == nil {
            _, err = fmt.Fprintf(out, "removed %d expired locks\n", n)
        }
    case "reconcile":
        var n int
        if n, err = a.Reconciler.RunOnce(ctx); err == nil {
            _, err = fmt.Fprintf(out, "abandoned %d intents\n", n)
        }
    case "intents":
        var intents []model.Intent
        if intents, err = a.Ledger.ListIntents(ctx, *status, *limit); err == nil {
            err = writeJSON(out, intents)
        }
    case "put-event":
        if err = a.Events.Put(ctx, ev); err == nil {
            _, err = fmt.Fprintf(out, "event %s stored\n", ev.ID)
        }
    default:
        return errUsage
    }
    return err
}

func readEvent(path string, ev *model.Event) error {
    if path == "" {
        return errors.New("put-event needs --file")
    }
    var r io.Reader = os.Stdin
    if path != "-" {
        f, err := os.Open(path)
        if err != nil {
            return err
        }
        defer f.Close()
        r = f
    }
    if err := json.NewDecoder(r).Decode(ev); err != nil {
        return fmt.Errorf("decode event: %w", err)
    }
    if ev.ID == "" {
        return errors.New("event id is required")
    }
    return nil
}

func writeJSON(w io.Writer, v any) error {
    enc := json.NewEncoder(w)
    enc.SetIndent("", "  ")
    return enc.Encode(v)
}
