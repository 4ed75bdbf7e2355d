package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/blackportal-ai/nebula/internal/model"
	"github.com/blackportal-ai/nebula/internal/query"
	"github.com/blackportal-ai/nebula/pkg/datapackage"
)

// Tools holds the query service the tool handlers answer from.
type Tools struct {
	Query  *query.Service
	logger *zap.Logger
}

// --- Input types ---

type ListPackagesInput struct {
	Site   string `json:"site,omitempty" jsonschema:"Where to look: local (default) or remote"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of packages to return (default 30)"`
	Offset int    `json:"offset,omitempty" jsonschema:"Number of packages to skip"`
	Query  string `json:"query,omitempty" jsonschema:"Only packages whose name contains this text"`
}

type SearchPackagesInput struct {
	Site  string `json:"site,omitempty" jsonschema:"Where to look: local (default) or remote"`
	Query string `json:"query" jsonschema:"Text to search for"`
}

type PackageInfoInput struct {
	Site string `json:"site,omitempty" jsonschema:"Where to look: local (default) or remote"`
	Name string `json:"name" jsonschema:"Package name or part of it"`
}

// --- Output types ---

// PackageSummary is one row of a list or search result.
type PackageSummary struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	License     string `json:"license,omitempty"`
	Status      string `json:"status"`
}

// PackagePage is the result of list_packages and search_packages.
type PackagePage struct {
	Packages []PackageSummary `json:"packages"`
	Total    int              `json:"total"`
	Skipped  []string         `json:"skipped,omitempty"`
}

// PackageDetail is the result of package_info.
type PackageDetail struct {
	Status     string                          `json:"status"`
	Descriptor datapackage.PackageNotValidated `json:"datapackage"`
}

// --- Handlers ---

func (t *Tools) ListPackages(ctx context.Context, _ *mcp.CallToolRequest, input ListPackagesInput) (*mcp.CallToolResult, any, error) {
	site, err := model.ParseSite(input.Site)
	if err != nil {
		return toolError("%v", err), nil, nil
	}
	if input.Limit < 0 || input.Offset < 0 {
		return toolError("limit and offset must not be negative"), nil, nil
	}

	page := model.DefaultPagination()
	if input.Limit > 0 {
		page.Limit = uint32(input.Limit)
	}
	page.Offset = uint32(input.Offset)

	res, err := t.Query.List(ctx, site, model.SortSettings{By: model.SortByName}, model.FilterSettings{Query: input.Query}, page, 0)
	if err != nil {
		return t.fail("list packages", err), nil, nil
	}
	return toolJSON(pageOf(res))
}

func (t *Tools) SearchPackages(ctx context.Context, _ *mcp.CallToolRequest, input SearchPackagesInput) (*mcp.CallToolResult, any, error) {
	if input.Query == "" {
		return toolError("Search query is required"), nil, nil
	}
	site, err := model.ParseSite(input.Site)
	if err != nil {
		return toolError("%v", err), nil, nil
	}

	res, err := t.Query.Search(ctx, site, input.Query, model.SortSettings{}, model.FilterSettings{}, model.DefaultPagination(), 0)
	if err != nil {
		return t.fail("search packages", err), nil, nil
	}
	return toolJSON(pageOf(res))
}

func (t *Tools) PackageInfo(ctx context.Context, _ *mcp.CallToolRequest, input PackageInfoInput) (*mcp.CallToolResult, any, error) {
	if input.Name == "" {
		return toolError("Package name is required"), nil, nil
	}
	site, err := model.ParseSite(input.Site)
	if err != nil {
		return toolError("%v", err), nil, nil
	}

	item, err := t.Query.Get(ctx, site, input.Name, model.FilterSettings{})
	if err != nil {
		return t.fail("get package", err), nil, nil
	}
	if item == nil {
		return toolError("No package matches %q on %s", input.Name, site), nil, nil
	}
	return toolJSON(PackageDetail{Status: item.Status.String(), Descriptor: item.Package.Descriptor()})
}

func (t *Tools) fail(op string, err error) *mcp.CallToolResult {
	t.logger.Debug("tool call failed", zap.String("op", op), zap.Error(err))
	return toolError("Failed to %s: %v", op, err)
}

func pageOf(res *query.Result) PackagePage {
	out := PackagePage{Packages: make([]PackageSummary, 0, len(res.Items)), Total: res.Total}
	for _, it := range res.Items {
		out.Packages = append(out.Packages, PackageSummary{
			Name:        it.Package.Name(),
			Version:     it.Package.Version(),
			Description: it.Package.Description(),
			License:     it.Package.LicenseName(),
			Status:      it.Status.String(),
		})
	}
	for _, f := range res.Failures {
		out.Skipped = append(out.Skipped, fmt.Sprintf("%s@%s: %v", f.Name, f.Version, f.Err))
	}
	return out
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
