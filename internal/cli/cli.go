// Package cli implements the nebula command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackportal-ai/nebula/internal/app"
	"github.com/blackportal-ai/nebula/internal/config"
	"github.com/blackportal-ai/nebula/internal/logging"
)

// outputFormat selects how results are printed.
type outputFormat int

const (
	outputFormatTable outputFormat = iota
	outputFormatJSON
)

// parseOutputFormat takes "table" or "json".
func parseOutputFormat(s string) (outputFormat, error) {
	switch s {
	case "table", "":
		return outputFormatTable, nil
	case "json":
		return outputFormatJSON, nil
	default:
		return 0, fmt.Errorf(`invalid format %q (must be "table" or "json")`, s)
	}
}

// globalOptions are the persistent flags of the root command.
type globalOptions struct {
	configPath  string
	dataDir     string
	remote      string
	verbose     bool
	interactive bool
}

// CLI holds the streams and the lazily created client state shared by all
// commands of one process.
type CLI struct {
	version string
	in      io.Reader
	out     io.Writer
	errOut  io.Writer

	opts   globalOptions
	state  *app.ClientState
	logger *zap.Logger
}

// New creates a CLI reading from in and writing to out and errOut.
func New(version string, in io.Reader, out, errOut io.Writer) *CLI {
	return &CLI{
		version: version,
		in:      in,
		out:     out,
		errOut:  errOut,
		logger:  zap.NewNop(),
	}
}

// Execute runs the CLI against the process arguments and returns the exit
// code.
func Execute(version string) int {
	c := New(version, os.Stdin, os.Stdout, os.Stderr)
	defer c.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := c.Command().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(c.errOut, "Error:", err)
		return 1
	}
	return 0
}

// Close releases the client state.
func (c *CLI) Close() error {
	c.logger.Sync()
	if c.state == nil {
		return nil
	}
	return c.state.Close()
}

// Command builds the root command and its subcommands.
func (c *CLI) Command() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "nebula",
		Short:         "Find, inspect and mirror dataset packages",
		Version:       c.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.opts.interactive {
				return c.runInteractive(cmd.Context())
			}
			return cmd.Help()
		},
	}
	rootCmd.SetIn(c.in)
	rootCmd.SetOut(c.out)
	rootCmd.SetErr(c.errOut)
	rootCmd.SetVersionTemplate(`nebula {{.Version}}` + "\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.opts.configPath, "config", c.opts.configPath, "path to a configuration file (YAML, JSON or TOML)")
	flags.StringVar(&c.opts.dataDir, "data-dir", c.opts.dataDir, "data directory (default: $NEBULA_DATA or the user data dir)")
	flags.StringVar(&c.opts.remote, "remote", c.opts.remote, "remote registry as host:port")
	flags.BoolVarP(&c.opts.verbose, "verbose", "v", c.opts.verbose, "log debug output to stderr")
	rootCmd.Flags().BoolVarP(&c.opts.interactive, "interactive", "i", false, "read commands from stdin")

	rootCmd.AddCommand(
		c.listCommand(),
		c.searchCommand(),
		c.infoCommand(),
		c.syncCommand(),
		c.mcpCommand(),
	)
	for _, stub := range []struct{ use, short string }{
		{"install PACKAGE", "Download a package's payload into the cache"},
		{"update [PACKAGE]", "Update installed packages to their latest version"},
		{"uninstall PACKAGE", "Remove a package from the cache"},
		{"explore", "Browse packages interactively"},
		{"init", "Create a datapackage.json in the current directory"},
		{"status", "Show the state of the local cache"},
	} {
		rootCmd.AddCommand(notImplementedCommand(stub.use, stub.short))
	}
	return rootCmd
}

// init loads the configuration and creates the client state once per
// process.
func (c *CLI) init() error {
	if c.state != nil {
		return nil
	}

	cfg, err := config.Load(c.opts.configPath)
	if err != nil {
		return err
	}
	if c.opts.dataDir != "" {
		cfg.DataDir = c.opts.dataDir
		cfg.Registry.Root = ""
		cfg.Storage.Path = ""
		cfg.Resolve()
	}
	if c.opts.remote != "" {
		host, port, err := splitRemote(c.opts.remote)
		if err != nil {
			return err
		}
		cfg.Remote.Host, cfg.Remote.Port = host, port
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := logging.New(cliLogging(cfg, c.opts.verbose))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	c.logger = logger

	state, err := app.NewClientState(cfg, logger)
	if err != nil {
		return err
	}
	c.state = state
	logger.Debug("client state ready",
		zap.String("data_dir", state.DataDir()),
		zap.String("config_dir", state.ConfigDir()),
		zap.String("remote", cfg.RemoteAddr()),
	)
	return nil
}

// cliLogging writes warnings to the log file under the data directory;
// --verbose adds debug output on stderr.
func cliLogging(cfg *config.Config, verbose bool) logging.Config {
	lc := logging.Config{
		Level:       "warn",
		OutputPaths: []string{cfg.LogPath()},
	}
	if verbose {
		lc.Level = "debug"
		lc.Development = true
		lc.OutputPaths = append(lc.OutputPaths, "stderr")
	}
	return lc
}

func splitRemote(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid remote %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid remote port %q", portStr)
	}
	return host, port, nil
}

func notImplementedCommand(use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short + " (not implemented)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("%s: not implemented", cmd.Name())
		},
	}
}
