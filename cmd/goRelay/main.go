// Command goRelay runs the bus-to-WebSocket bridge and ships the producer
// tooling that goes with it.
//
//	goRelay serve   --secret ... --origin https://forum.example
//	goRelay token   --secret ... --user 7 --group 3
//	goRelay publish --channel news --group 3 --data '{"id":1}'
//
// Every flag can also be set through its GORELAY_* environment variable or a
// .env file in the working directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

var BuildVersion = "dev"

// app carries process state into go-flags commands, which only receive args.
type app struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
}

func newParser(a *app) *flags.Parser {
	parser := flags.NewNamedParser("goRelay", flags.HelpFlag|flags.PassDoubleDash)
	parser.ShortDescription = "Redis pub/sub to WebSocket bridge " + BuildVersion

	mustAddCommand(parser, "serve", "Run the bridge",
		"Subscribe to the bus and serve authenticated WebSocket sessions until interrupted.",
		&serveCommand{app: a})
	mustAddCommand(parser, "token", "Issue a credential",
		"Sign a credential for a user and print it to stdout.",
		&tokenCommand{app: a})
	mustAddCommand(parser, "publish", "Publish an envelope",
		"Wrap JSON data in a bus envelope with the given permissions and publish it.",
		&publishCommand{app: a})
	return parser
}

func mustAddCommand(p *flags.Parser, name, short, long string, data any) {
	if _, err := p.AddCommand(name, short, long, data); err != nil {
		panic(fmt.Sprintf("register command %s: %v", name, err))
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	parser := newParser(&app{ctx: ctx, stdout: stdout, stderr: stderr})
	if _, err := parser.ParseArgs(args); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) {
			if flagErr.Type == flags.ErrHelp {
				fmt.Fprintln(stdout, flagErr.Message)
				return 0
			}
			fmt.Fprintln(stderr, err)
			return 2
		}
		fmt.Fprintln(stderr, "goRelay:", err)
		return 1
	}
	return 0
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
