package main

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"pkt.systems/psi"
	"pkt.systems/pslog"

	"serialmon/cmd"
)

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	return execute(ctx, cmd.NewRootCmd(), os.Args[1:], os.Stderr)
}

// execute runs root and maps its error to the process exit status.
func execute(ctx context.Context, root *cobra.Command, args []string, stderr io.Writer) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("serialmon failed")
		return 1
	}
	return 0
}
