// moviesync manages a small movie collection kept in a remote JSON document
// store, with a separately stored counter that caps how many movies may exist.
//
// Usage:
//
//	moviesync list                         # fetch and print the collection
//	moviesync refresh                      # fetch again and confirm
//	moviesync add [--title ... ]           # add a movie (prompts when flags are missing)
//	moviesync delete <id>                  # delete one movie
//	moviesync clear [--yes]                # delete every movie and reset the counter
//	moviesync count                        # compare the counter with the collection
//	moviesync repair-count                 # overwrite the counter with the real size
//	moviesync watch                        # interactive session
//	moviesync emulator [--addr :9000]      # run a local store emulator
//	moviesync version                      # print version
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	err := newRootCommand(newApp(os.Stdin, os.Stdout, os.Stderr)).ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}
