package launchpad

import (
	"context"
	"fmt"
	"io"
	"os"
)

var (
	osExit                    = os.Exit
	mainErrorOutput io.Writer = os.Stderr
)

// Main runs app with args and terminates the process. After a successful
// run it waits for ctx to be done and exits with the code computed by Exit.
// A failed run exits with the recorded exit code, or 1; the failure is
// printed only when no reporter or log line has covered it already.
func Main(ctx context.Context, app *Application, args ...string) {
	osExit(runMain(ctx, app, args))
}

func runMain(ctx context.Context, app *Application, args []string) int {
	c, err := app.Run(ctx, args...)
	if err != nil {
		handler := app.exceptionHandler()
		if handler == nil || !handler.IsLogged(err) {
			fmt.Fprintf(mainErrorOutput, "%v\n", err)
		}
		if handler != nil {
			if code := handler.ExitCode(); code != 0 {
				return code
			}
		}
		return 1
	}

	<-ctx.Done()
	return Exit(context.WithoutCancel(ctx), c)
}
