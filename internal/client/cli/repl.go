package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// runREPL starts a simple read–eval–print loop for the FileKeeper CLI.
//
// It reads a line from the provided scanner, splits it into fields and hands
// them to exec, which dispatches through the command tree (see newRootCmd).
// Errors returned by exec are printed and the loop continues. The loop exits
// on scanner EOF, on "exit" or "quit", or when ctx is done.
func runREPL(ctx context.Context, exec func(ctx context.Context, args []string) error, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("fk %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		if err := exec(ctx, parts); err != nil {
			printlnFn("Error:", err)
		}
	}
}
