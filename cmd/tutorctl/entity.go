package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/noah-isme/tutor-admin/internal/models"
	"github.com/noah-isme/tutor-admin/internal/service"
	"github.com/noah-isme/tutor-admin/internal/view"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
)

type listOptions struct {
	search string
	sort   string
	order  string
	pages  int
	all    bool
}

// entityCommands are the per-resource operations reachable from the command line.
type entityCommands interface {
	list(ctx context.Context, out io.Writer, opts listOptions) error
	browse(ctx context.Context, in io.Reader, out io.Writer, opts listOptions) error
	show(ctx context.Context, out io.Writer, id int64) error
	create(ctx context.Context, out io.Writer, raw []byte) error
	update(ctx context.Context, out io.Writer, id int64, raw []byte) error
	remove(ctx context.Context, id int64) error
	importCSV(ctx context.Context, r io.Reader) (*models.ImportResult, error)
	export(ctx context.Context, opts listOptions, format service.ExportFormat) (*service.ExportResult, error)
}

type entity[T models.Entity] struct {
	app *app
	ws  *service.Workspace[T]
	cfg view.Config[T]
}

// load mounts the list, pulls further pages and applies search and sort.
func (e *entity[T]) load(ctx context.Context, opts listOptions) error {
	if opts.sort != "" {
		spec := view.SortSpec{Key: opts.sort, Direction: view.ParseDirection(opts.order)}
		if err := e.ws.View().SetSort(spec); err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
	}
	if err := e.ws.Mount(ctx); err != nil {
		return errReported
	}
	for page := 1; opts.all || page < opts.pages; page++ {
		fetched, err := e.ws.LoadMore(ctx)
		if err != nil {
			return errReported
		}
		if !fetched {
			break
		}
	}
	if opts.search != "" {
		e.ws.SearchNow(opts.search)
	}
	return nil
}

func (e *entity[T]) list(ctx context.Context, out io.Writer, opts listOptions) error {
	defer e.ws.Unmount()
	if err := e.load(ctx, opts); err != nil {
		return err
	}
	if err := e.printRows(out); err != nil {
		return err
	}
	if e.ws.State().HasMore {
		fmt.Fprintln(out, "More records available, use -pages or -all.") //nolint:errcheck
	} else {
		fmt.Fprintln(out, "All data has been displayed.") //nolint:errcheck
	}
	return nil
}

// browse pages through the list driven by input lines. An empty line scrolls
// to the last row, "/term" edits the search and "q" quits.
func (e *entity[T]) browse(ctx context.Context, in io.Reader, out io.Writer, opts listOptions) error {
	defer e.ws.Unmount()
	opts.pages, opts.all = 1, false
	if err := e.load(ctx, opts); err != nil {
		return err
	}
	boundary := e.ws.Boundary(ctx)
	if err := e.printRows(out); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ") //nolint:errcheck
		if !scanner.Scan() {
			fmt.Fprintln(out) //nolint:errcheck
			return scanner.Err()
		}
		line := scanner.Text()
		switch {
		case line == "q":
			return nil
		case strings.HasPrefix(line, "/"):
			e.ws.Settle()
			e.ws.Search(strings.TrimPrefix(line, "/"))
		case line == "":
			if !e.ws.State().HasMore {
				fmt.Fprintln(out, "All data has been displayed.") //nolint:errcheck
				continue
			}
			e.ws.Settle()
			if !boundary.Observe(true) {
				continue
			}
		default:
			fmt.Fprintln(out, `Press enter for more rows, "/term" to search, "q" to quit.`) //nolint:errcheck
			continue
		}

		if err := e.ws.WaitIdle(ctx); err != nil {
			return err
		}
		// the new rows push the last one out of view again
		boundary.Observe(false)
		if err := e.printRows(out); err != nil {
			return err
		}
	}
}

func (e *entity[T]) printRows(out io.Writer) error {
	rows := e.ws.Rows()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, col := range e.cfg.Columns {
		if i > 0 {
			fmt.Fprint(tw, "\t") //nolint:errcheck
		}
		fmt.Fprint(tw, col) //nolint:errcheck
	}
	fmt.Fprintln(tw) //nolint:errcheck
	for _, item := range rows {
		cells := e.cfg.Row(item)
		for i, col := range e.cfg.Columns {
			if i > 0 {
				fmt.Fprint(tw, "\t") //nolint:errcheck
			}
			fmt.Fprint(tw, cells[col]) //nolint:errcheck
		}
		fmt.Fprintln(tw) //nolint:errcheck
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\n%d shown, %d loaded.\n", len(rows), len(e.ws.State().Items))
	return err
}

func (e *entity[T]) show(ctx context.Context, out io.Writer, id int64) error {
	item, err := e.ws.Get(ctx, id)
	if err != nil {
		return errReported
	}
	return printJSON(out, item)
}

func (e *entity[T]) create(ctx context.Context, out io.Writer, raw []byte) error {
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, "payload is not valid JSON")
	}
	created, err := e.ws.Create(ctx, payload)
	if err != nil {
		return errReported
	}
	return printJSON(out, created)
}

func (e *entity[T]) update(ctx context.Context, out io.Writer, id int64, raw []byte) error {
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, "payload is not valid JSON")
	}
	updated, err := e.ws.Update(ctx, id, payload)
	if err != nil {
		return errReported
	}
	return printJSON(out, updated)
}

func (e *entity[T]) remove(ctx context.Context, id int64) error {
	if err := e.ws.Delete(ctx, id); err != nil {
		return errReported
	}
	return nil
}

func (e *entity[T]) importCSV(ctx context.Context, r io.Reader) (*models.ImportResult, error) {
	defer e.ws.Unmount()
	result, err := e.ws.ImportCSV(ctx, r)
	if err != nil {
		return nil, errReported
	}
	return result, nil
}

func (e *entity[T]) export(ctx context.Context, opts listOptions, format service.ExportFormat) (*service.ExportResult, error) {
	defer e.ws.Unmount()
	if err := e.load(ctx, opts); err != nil {
		return nil, err
	}
	exporter, err := e.app.exportService()
	if err != nil {
		return nil, err
	}
	return exporter.Export(e.cfg.Entity, format, service.DatasetFrom(e.cfg, e.ws.Rows()))
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
