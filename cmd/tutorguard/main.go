package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/tutorguard/cmd/tutorguard/commands"
	"git.home.luguber.info/inful/tutorguard/internal/errorhandler"
	"git.home.luguber.info/inful/tutorguard/internal/errors"
	"git.home.luguber.info/inful/tutorguard/internal/version"
)

func main() {
	// A panic is routed through the global handler, then re-raised so the
	// process still exits non-zero with a stack trace.
	errorhandler.SetupGlobalHandlers(nil, errorhandler.WithRepanic())
	defer errorhandler.Recover()

	cli := &commands.CLI{}
	global := &commands.Global{Out: os.Stdout, In: os.Stdin}
	parser := kong.Parse(cli,
		kong.Name("tutorguard"),
		kong.Description("Error recovery coordinator tooling for the tutoring services."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)

	err := parser.Run(global, cli)
	errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
