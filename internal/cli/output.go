package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/blackportal-ai/nebula/internal/model"
	"github.com/blackportal-ai/nebula/internal/query"
	"github.com/blackportal-ai/nebula/pkg/datapackage"
)

// packageLine is one package in list and search output.
type packageLine struct {
	Name          string          `json:"name"`
	Version       string          `json:"version"`
	Status        string          `json:"status"`
	License       string          `json:"license"`
	Description   string          `json:"description"`
	DataPackage   json.RawMessage `json:"datapackage,omitempty"`
	PreviewImages []string        `json:"preview_images,omitempty"`
}

// pageOutput is the JSON form of a list or search result.
type pageOutput struct {
	Packages []packageLine `json:"packages"`
	Total    int           `json:"total"`
	Limit    uint32        `json:"limit"`
	Offset   uint32        `json:"offset"`
}

// infoLine represents one line in the table emitted by 'nebula info'.
type infoLine struct {
	Field string
	Value string
}

func lineOf(it query.Item, fields model.FieldSettings) (packageLine, error) {
	info, err := model.InfoFromPackage(it.Package, fields)
	if err != nil {
		return packageLine{}, err
	}
	l := packageLine{
		Name:          info.Name,
		Version:       info.Version,
		Status:        it.Status.String(),
		License:       info.License,
		Description:   info.Description,
		PreviewImages: info.PreviewImages,
	}
	if info.DatapackageJson != nil {
		l.DataPackage = json.RawMessage(*info.DatapackageJson)
	}
	return l, nil
}

func (c *CLI) printResult(res *query.Result, page model.PaginationSettings, fields model.FieldSettings, format outputFormat) error {
	c.reportFailures(res)

	out := pageOutput{
		Packages: make([]packageLine, 0, len(res.Items)),
		Total:    res.Total,
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
	for _, it := range res.Items {
		l, err := lineOf(it, fields)
		if err != nil {
			return err
		}
		out.Packages = append(out.Packages, l)
	}

	switch format {
	case outputFormatJSON:
		return writeJSON(c.out, out)
	default:
		if len(out.Packages) == 0 {
			fmt.Fprintln(c.out, "no packages found")
			return nil
		}
		w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
		header := "NAME\tVERSION\tSTATUS\tLICENSE\tDESCRIPTION"
		if fields.Has(model.FieldPreviewImages) {
			header += "\tIMAGES"
		}
		fmt.Fprintln(w, header)
		for _, l := range out.Packages {
			row := fmt.Sprintf("%s\t%s\t%s\t%s\t%s", l.Name, l.Version, l.Status, l.License, truncate(l.Description, 60))
			if fields.Has(model.FieldPreviewImages) {
				row += "\t" + strings.Join(l.PreviewImages, ", ")
			}
			fmt.Fprintln(w, row)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "\n%d of %d packages\n", len(out.Packages), out.Total)

		if fields.Has(model.FieldDataPackage) {
			for _, it := range res.Items {
				fmt.Fprintf(c.out, "\n# %s@%s\n", it.Package.Name(), it.Package.Version())
				if err := printDescriptor(c.out, it.Package); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

func (c *CLI) printItem(it *query.Item, format outputFormat) error {
	if format == outputFormatJSON {
		return writeJSON(c.out, struct {
			Status     string                          `json:"status"`
			Descriptor datapackage.PackageNotValidated `json:"datapackage"`
		}{it.Status.String(), it.Package.Descriptor()})
	}

	d := it.Package.Descriptor()
	var licenses, resources []string
	for _, l := range d.Licenses {
		licenses = append(licenses, l.Name)
	}
	for _, r := range d.Resources {
		resources = append(resources, r.Name)
	}

	rows := []infoLine{
		{"Name", d.Name},
		{"Version", d.Version},
		{"Status", it.Status.String()},
		{"Title", d.Title},
		{"Description", d.Description},
		{"License", strings.Join(licenses, ", ")},
		{"Homepage", d.Homepage},
		{"Keywords", strings.Join(d.Keywords, ", ")},
		{"Created", d.Created},
		{"Resources", strings.Join(resources, ", ")},
		{"Image", d.Image},
		{"ID", d.ID},
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	for _, r := range rows {
		if r.Value == "" {
			continue
		}
		fmt.Fprintf(w, "%s:\t%s\n", r.Field, r.Value)
	}
	return w.Flush()
}

func printDescriptor(w io.Writer, pkg *datapackage.Package) error {
	data, err := pkg.MarshalIndent()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
