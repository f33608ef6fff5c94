// Command howto prints instructions from the top answers of a Q&A site.
//
//	howto read file lines
//	howto -n 1 -f full list open ports
//	howto history --store sqlite:howto.db
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "howto:", err)
		stop()
		os.Exit(1)
	}
}
