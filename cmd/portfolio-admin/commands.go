package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitProblems = 3
)

var errUsage = errors.New("invalid usage")

// CLI runs admin commands against a service.
type CLI struct {
	Service portfolio.Service
	Out     io.Writer
}

// Run executes command and returns the process exit code.
func (c *CLI) Run(ctx context.Context, command string, args []string) (int, error) {
	var err error
	switch command {
	case "list":
		err = c.list(ctx, args)
	case "renumber":
		err = c.renumber(ctx, args)
	case "reorder":
		err = c.reorder(ctx, args)
	case "import":
		err = c.importFile(ctx, args)
	case "delete-item":
		err = c.deleteItem(ctx, args)
	case "delete-collection":
		err = c.deleteCollection(ctx, args)
	case "check":
		return c.check(ctx, args)
	default:
		return exitUsage, fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
	switch {
	case err == nil:
		return exitOK, nil
	case errors.Is(err, errUsage):
		return exitUsage, err
	default:
		return exitFailure, err
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parse accepts flags before and after positional arguments.
func parse(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %v", errUsage, err)
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func (c *CLI) list(ctx context.Context, args []string) error {
	fs := newFlagSet("list")
	asJSON := fs.Bool("json", false, "")
	rest, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("%w: list takes exactly one collection", errUsage)
	}

	doc, err := c.Service.ListItems(ctx, rest[0])
	if err != nil {
		return err
	}
	if *asJSON {
		return c.writeJSON(map[string]interface{}{
			"collection": rest[0],
			"version":    string(doc.Version),
			"items":      doc.Items,
		})
	}
	c.printItems(doc)
	return nil
}

func (c *CLI) renumber(ctx context.Context, args []string) error {
	fs := newFlagSet("renumber")
	sortBy := fs.String("sort-by", string(portfolio.SortByCreatedAt), "")
	rest, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("%w: renumber takes exactly one collection", errUsage)
	}
	key, err := portfolio.ParseSortKey(*sortBy)
	if err != nil {
		return err
	}

	doc, err := c.Service.RenumberItems(ctx, rest[0], key)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "Renumbered %d items in %s by %s\n", len(doc.Items), rest[0], key)
	c.printItems(doc)
	return nil
}

func (c *CLI) reorder(ctx context.Context, args []string) error {
	rest, err := parse(newFlagSet("reorder"), args)
	if err != nil {
		return err
	}
	if len(rest) < 1 {
		return fmt.Errorf("%w: reorder takes a collection and the item ids in order", errUsage)
	}

	doc, err := c.Service.ReorderItems(ctx, rest[0], rest[1:])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "Reordered %d items in %s\n", len(doc.Items), rest[0])
	c.printItems(doc)
	return nil
}

func (c *CLI) importFile(ctx context.Context, args []string) error {
	fs := newFlagSet("import")
	title := fs.String("title", "", "")
	description := fs.String("description", "", "")
	thumbnail := fs.String("thumbnail", "", "")
	contentType := fs.String("content-type", "", "")
	rest, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 2 {
		return fmt.Errorf("%w: import takes a collection and a file", errUsage)
	}

	file, err := os.Open(rest[1])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", rest[1], err)
	}
	defer file.Close()

	req := portfolio.ImportItemRequest{
		Collection:  rest[0],
		Title:       *title,
		Description: *description,
		FileName:    filepath.Base(rest[1]),
		ContentType: *contentType,
		Reader:      file,
	}
	if *thumbnail != "" {
		thumb, err := os.Open(*thumbnail)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", *thumbnail, err)
		}
		defer thumb.Close()
		req.Thumbnail = thumb
		req.ThumbnailFileName = filepath.Base(*thumbnail)
	}

	rec, err := c.Service.ImportItem(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "Imported %s into %s as %s (sequence %s)\n", rec.PrimaryKey, rest[0], rec.ID, sequence(rec.Sequence))
	return nil
}

func (c *CLI) deleteItem(ctx context.Context, args []string) error {
	rest, err := parse(newFlagSet("delete-item"), args)
	if err != nil {
		return err
	}
	if len(rest) != 2 {
		return fmt.Errorf("%w: delete-item takes a collection and an id", errUsage)
	}

	result, err := c.Service.DeleteItem(ctx, rest[0], rest[1])
	if err != nil {
		return err
	}
	if !result.Removed {
		fmt.Fprintf(c.Out, "Item %s is not in %s\n", rest[1], rest[0])
		return nil
	}
	fmt.Fprintf(c.Out, "Removed %s from %s, deleted %d blobs\n", rest[1], rest[0], result.Blobs.Succeeded)
	return c.reportFailures(&result.Blobs)
}

func (c *CLI) deleteCollection(ctx context.Context, args []string) error {
	fs := newFlagSet("delete-collection")
	yes := fs.Bool("yes", false, "")
	rest, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("%w: delete-collection takes exactly one collection", errUsage)
	}
	if !*yes {
		return fmt.Errorf("%w: delete-collection removes every blob of %s, pass --yes to confirm", errUsage, rest[0])
	}

	result, err := c.Service.DeleteCollection(ctx, rest[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "Deleted %d blobs from %s\n", result.Succeeded, rest[0])
	return c.reportFailures(result)
}

// CollectionReport is the outcome of checking one collection
type CollectionReport struct {
	Collection string   `json:"collection"`
	Version    string   `json:"version,omitempty"`
	Items      int      `json:"items"`
	Assets     int      `json:"assets"`
	Error      string   `json:"error,omitempty"`
	Missing    []string `json:"missing,omitempty"`
	Orphaned   []string `json:"orphaned,omitempty"`
}

// Healthy reports whether the collection can be served as is.
// Orphaned blobs are only reported.
func (r CollectionReport) Healthy() bool {
	return r.Error == "" && len(r.Missing) == 0
}

func (c *CLI) check(ctx context.Context, args []string) (int, error) {
	fs := newFlagSet("check")
	asJSON := fs.Bool("json", false, "")
	collections, err := parse(fs, args)
	if err != nil {
		return exitUsage, err
	}
	if len(collections) == 0 {
		collections = c.Service.Collections()
	}

	reports := make([]CollectionReport, 0, len(collections))
	healthy := true
	for _, name := range collections {
		report := c.checkCollection(ctx, name)
		healthy = healthy && report.Healthy()
		reports = append(reports, report)
	}

	if *asJSON {
		if err := c.writeJSON(reports); err != nil {
			return exitFailure, err
		}
	} else {
		c.printReports(reports)
	}
	if !healthy {
		return exitProblems, nil
	}
	return exitOK, nil
}

func (c *CLI) checkCollection(ctx context.Context, name string) CollectionReport {
	report := CollectionReport{Collection: name}
	doc, err := c.Service.ListItems(ctx, name)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	assets, err := c.Service.ListAssets(ctx, name)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Version = string(doc.Version)
	report.Items = len(doc.Items)
	report.Assets = len(assets)

	stored := make(map[string]bool, len(assets))
	for _, a := range assets {
		stored[a.Key] = false
	}
	for _, item := range doc.Items {
		for _, key := range []string{item.PrimaryKey, item.ThumbnailKey} {
			if key == "" {
				continue
			}
			if _, ok := stored[key]; !ok {
				report.Missing = append(report.Missing, key)
				continue
			}
			stored[key] = true
		}
	}
	for key, referenced := range stored {
		if !referenced {
			report.Orphaned = append(report.Orphaned, key)
		}
	}
	sort.Strings(report.Missing)
	sort.Strings(report.Orphaned)
	return report
}

func (c *CLI) printItems(doc *portfolio.Document) {
	w := tabwriter.NewWriter(c.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tID\tTITLE\tCREATED\tPRIMARY KEY")
	for _, item := range doc.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			sequence(item.Sequence), item.ID, item.Title, item.CreatedAt.Format(time.RFC3339), item.PrimaryKey)
	}
	w.Flush()
	fmt.Fprintf(c.Out, "\n%d items, version %s\n", len(doc.Items), doc.Version)
}

func (c *CLI) printReports(reports []CollectionReport) {
	w := tabwriter.NewWriter(c.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COLLECTION\tITEMS\tASSETS\tMISSING\tORPHANED\tSTATUS")
	for _, r := range reports {
		status := "ok"
		switch {
		case r.Error != "":
			status = r.Error
		case len(r.Missing) > 0:
			status = "missing blobs"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n", r.Collection, r.Items, r.Assets, len(r.Missing), len(r.Orphaned), status)
	}
	w.Flush()
	for _, r := range reports {
		for _, key := range r.Missing {
			fmt.Fprintf(c.Out, "missing  %s\n", key)
		}
		for _, key := range r.Orphaned {
			fmt.Fprintf(c.Out, "orphaned %s\n", key)
		}
	}
}

func (c *CLI) reportFailures(result *portfolio.BatchResult) error {
	if result.OK() {
		return nil
	}
	keys := make([]string, 0, len(result.Failed))
	for _, f := range result.Failed {
		fmt.Fprintf(c.Out, "failed   %s: %s\n", f.Key, f.Error)
		keys = append(keys, f.Key)
	}
	return fmt.Errorf("%d blobs could not be deleted: %s", len(keys), strings.Join(keys, ", "))
}

func (c *CLI) writeJSON(v interface{}) error {
	enc := json.NewEncoder(c.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sequence(seq *int) string {
	if seq == nil {
		return "-"
	}
	return fmt.Sprint(*seq)
}
