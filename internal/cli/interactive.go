package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kballard/go-shellquote"
	"golang.org/x/term"
)

const prompt = "nebula> "

// runInteractive reads one command per line until EOF, "exit" or "quit".
// Lines are split with shell quoting rules; a failing command prints its
// error and the loop continues.
func (c *CLI) runInteractive(ctx context.Context) error {
	showPrompt := isTerminal(c.in)
	scanner := bufio.NewScanner(c.in)

	for {
		if showPrompt {
			fmt.Fprint(c.out, prompt)
		}
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		args, err := shellquote.Split(line)
		if err != nil {
			fmt.Fprintln(c.errOut, "Error:", err)
			continue
		}
		if err := c.runLine(ctx, args); err != nil {
			fmt.Fprintln(c.errOut, "Error:", err)
		}
	}
	return scanner.Err()
}

// runLine executes args against a fresh command tree so flag values do not
// leak between lines. The client state is shared.
func (c *CLI) runLine(ctx context.Context, args []string) error {
	if len(args) > 0 && (args[0] == "-i" || args[0] == "--interactive") {
		return fmt.Errorf("already in interactive mode")
	}
	cmd := c.Command()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func isTerminal(in interface{}) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
