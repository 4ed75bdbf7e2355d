package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/blackportal-ai/nebula/internal/mcp"
	"github.com/blackportal-ai/nebula/internal/model"
	"github.com/blackportal-ai/nebula/internal/query"
	"github.com/blackportal-ai/nebula/internal/syncer"
)

// queryFlags are shared by list and search.
type queryFlags struct {
	site      string
	format    string
	limit     uint32
	offset    uint32
	sortBy    string
	desc      bool
	pkgType   string
	status    string
	withJSON  bool
	withImage bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.SortFlags = false
	flags.StringVarP(&f.site, "site", "s", "local", `where to look ("local" or "remote")`)
	flags.StringVarP(&f.format, "format", "f", "table", `output format ("table" or "json")`)
	flags.Uint32Var(&f.limit, "limit", model.DefaultPagination().Limit, "maximum number of packages to show")
	flags.Uint32Var(&f.offset, "offset", 0, "number of packages to skip")
	flags.StringVar(&f.sortBy, "sort", "", `sort by "name" or "version"`)
	flags.BoolVar(&f.desc, "desc", false, "sort in descending order")
	flags.StringVar(&f.pkgType, "type", "both", `package type ("both", "dataset" or "model")`)
	flags.StringVar(&f.status, "status", "any", `only packages that are "installed", "updatable" or "not-installed"`)
	flags.BoolVar(&f.withJSON, "json", false, "include the full datapackage.json")
	flags.BoolVar(&f.withImage, "images", false, "include preview images")
}

// settings converts the flags into query settings.
func (f *queryFlags) settings() (model.Site, outputFormat, model.SortSettings, model.FilterSettings, model.PaginationSettings, model.FieldSettings, error) {
	var (
		sort   model.SortSettings
		filter model.FilterSettings
		fields model.FieldSettings
		err    error
	)
	page := model.PaginationSettings{Limit: f.limit, Offset: f.offset}

	site, err := model.ParseSite(f.site)
	if err != nil {
		return site, 0, sort, filter, page, fields, err
	}
	format, err := parseOutputFormat(f.format)
	if err != nil {
		return site, format, sort, filter, page, fields, err
	}
	if sort.By, err = model.ParseSortField(f.sortBy); err != nil {
		return site, format, sort, filter, page, fields, err
	}
	sort.Descending = f.desc
	if filter.PackageType, err = model.ParsePackageType(f.pkgType); err != nil {
		return site, format, sort, filter, page, fields, err
	}
	if filter.Status, err = model.ParsePackageStatus(f.status); err != nil {
		return site, format, sort, filter, page, fields, err
	}
	if f.withJSON {
		fields = fields.With(model.FieldDataPackage)
	}
	if f.withImage {
		fields = fields.With(model.FieldPreviewImages)
	}
	return site, format, sort, filter, page, fields, nil
}

func (c *CLI) listCommand() *cobra.Command {
	var f queryFlags
	var name string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List packages in the local cache or the remote registry",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			site, format, sort, filter, page, fields, err := f.settings()
			if err != nil {
				return err
			}
			filter.Query = name

			svc, err := c.state.Query()
			if err != nil {
				return err
			}
			res, err := svc.List(cmd.Context(), site, sort, filter, page, fields)
			if err != nil {
				return err
			}
			return c.printResult(res, page, fields, format)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&name, "name", "n", "", "only packages whose name contains this text")
	return cmd
}

func (c *CLI) searchCommand() *cobra.Command {
	var f queryFlags

	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Search package names, descriptions and keywords",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			site, format, sort, filter, page, fields, err := f.settings()
			if err != nil {
				return err
			}
			q := strings.TrimSpace(strings.Join(args, " "))
			if q == "" {
				return fmt.Errorf("search query is empty")
			}

			svc, err := c.state.Query()
			if err != nil {
				return err
			}
			res, err := svc.Search(cmd.Context(), site, q, sort, filter, page, fields)
			if err != nil {
				return err
			}
			return c.printResult(res, page, fields, format)
		},
	}
	f.register(cmd)
	return cmd
}

func (c *CLI) infoCommand() *cobra.Command {
	var site, format string
	var raw bool

	cmd := &cobra.Command{
		Use:     "info PACKAGE",
		Aliases: []string{"show"},
		Short:   "Show the descriptor of a package",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := model.ParseSite(site)
			if err != nil {
				return err
			}
			of, err := parseOutputFormat(format)
			if err != nil {
				return err
			}

			svc, err := c.state.Query()
			if err != nil {
				return err
			}
			item, err := svc.Get(cmd.Context(), s, args[0], model.FilterSettings{})
			if err != nil {
				return err
			}
			if item == nil {
				return fmt.Errorf("no package matches %q on %s", args[0], s)
			}
			if raw {
				return printDescriptor(c.out, item.Package)
			}
			return c.printItem(item, of)
		},
	}
	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&site, "site", "s", "local", `where to look ("local" or "remote")`)
	cmd.Flags().StringVarP(&format, "format", "f", "table", `output format ("table" or "json")`)
	cmd.Flags().BoolVar(&raw, "json", false, "print the datapackage.json only")
	return cmd
}

func (c *CLI) syncCommand() *cobra.Command {
	var pkgType string
	var since int64

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Copy every descriptor of the remote registry into the local cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := model.ParsePackageType(pkgType)
			if err != nil {
				return err
			}
			syncArgs := syncer.Args{PackageType: t}
			if since > 0 {
				syncArgs.LastSync = &since
			}

			engine, err := c.state.Syncer()
			if err != nil {
				return err
			}
			report, err := engine.Sync(cmd.Context(), syncArgs)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.out, "synced %d packages, skipped %d (%s)\n", report.Synced, report.Skipped, report.Duration.Round(time.Millisecond))
			for _, f := range report.Failures {
				fmt.Fprintf(c.errOut, "  skipped %s\n", f)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pkgType, "type", "both", `package type ("both", "dataset" or "model")`)
	cmd.Flags().Int64Var(&since, "since", 0, "unix time of the last sync, forwarded to the registry")
	return cmd
}

func (c *CLI) mcpCommand() *cobra.Command {
	var transport, addr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve package queries to MCP clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.state.Query()
			if err != nil {
				return err
			}
			srv := mcpserver.New(svc, c.version, c.logger.Named("mcp"))
			return mcpserver.Serve(cmd.Context(), srv, transport, addr, c.logger.Named("mcp"))
		},
	}
	cmd.Flags().StringVar(&transport, "transport", mcpserver.TransportStdio, `transport ("stdio" or "http")`)
	cmd.Flags().StringVar(&addr, "addr", ":8081", "listen address for the http transport")
	return cmd
}

// reportFailures prints remote summaries the query layer had to skip.
func (c *CLI) reportFailures(res *query.Result) {
	for _, f := range res.Failures {
		fmt.Fprintf(c.errOut, "warning: skipped %s@%s: %v\n", f.Name, f.Version, f.Err)
	}
}
