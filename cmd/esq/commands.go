package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/robert-malhotra/go-es-query/pkg/loader"
)

func newSearchCommand() *cli.Command {
	return &cli.Command{
		Name:                      "search",
		Usage:                     "Run a query and print the matching documents",
		DisableSliceFlagSeparator: true,
		Flags: append([]cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "print the compiled request instead of sending it"},
			&cli.IntFlag{Name: "page", Usage: "1-based page to fetch; uses --limit as the page size"},
			&cli.BoolFlag{Name: "all", Usage: "stream every match with a scroll cursor"},
		}, queryFlags()...),
		Action: searchAction,
	}
}

func searchAction(ctx context.Context, cmd *cli.Command) error {
	spec, err := specFromCommand(cmd)
	if err != nil {
		return err
	}
	out := cmd.Root().Writer
	index := cmd.String("index")

	s, err := newSession(cmd, cmd.Bool("dry-run"))
	if err != nil {
		return err
	}
	if cmd.Bool("dry-run") {
		req, err := s.compiler.Compile(index, spec)
		if err != nil {
			return err
		}
		view := map[string]any{"index": req.Index, "body": req.Body}
		if req.Routing != "" {
			view["routing"] = req.Routing
		}
		return printJSON(out, view)
	}

	q := s.executor.Bind(index, spec)
	switch {
	case cmd.Bool("all"):
		return printJSONArray(out, q.Cursor(ctx))
	case cmd.IsSet("page"):
		perPage := spec.Fields().Limit
		if perPage == 0 {
			perPage = 10
		}
		page, err := q.Paginate(ctx, cmd.Int("page"), perPage)
		if err != nil {
			return err
		}
		view := newResultView(page.Result)
		view.Total, view.TotalIsExact = page.Total, true
		view.Page, view.PerPage, view.LastPage = page.Page, page.PerPage, page.LastPage
		return printJSON(out, view)
	}

	res, err := q.Get(ctx)
	if err != nil {
		return err
	}
	return printJSON(out, newResultView(res))
}

func newCountCommand() *cli.Command {
	return &cli.Command{
		Name:                      "count",
		Usage:                     "Print the number of matching documents",
		DisableSliceFlagSeparator: true,
		Flags:                     queryFlags(),
		Action:                    countAction,
	}
}

func countAction(ctx context.Context, cmd *cli.Command) error {
	spec, err := specFromCommand(cmd)
	if err != nil {
		return err
	}
	s, err := newSession(cmd, false)
	if err != nil {
		return err
	}
	n, err := s.executor.Bind(cmd.String("index"), spec).Count(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.Root().Writer, n)
	return err
}

func newInsertCommand() *cli.Command {
	return &cli.Command{
		Name:                      "insert",
		Usage:                     "Index documents from a file, URL or S3 object",
		ArgsUsage:                 "<path|-|http(s)://...|s3://bucket/key>",
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "index", Aliases: []string{"i"}, Usage: "target index", Required: true},
			&cli.StringFlag{Name: "routing", Usage: "routing value for every document"},
		},
		Action: insertAction,
	}
}

type insertSummary struct {
	Indexed int      `json:"indexed"`
	Failed  []string `json:"failed,omitempty"`
	IDs     []string `json:"ids"`
}

func insertAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected 1 argument: document source")
	}
	s, err := newSession(cmd, false)
	if err != nil {
		return err
	}
	docs, err := loader.New().Load(ctx, cmd.Args().First())
	if err != nil {
		return err
	}

	index := cmd.String("index")
	resp, err := s.executor.Insert(ctx, index, docs, cmd.String("routing"))
	if err != nil {
		return err
	}

	summary := insertSummary{}
	for _, entry := range resp.Items {
		for _, item := range entry {
			summary.IDs = append(summary.IDs, item.ID)
			if item.Error != nil {
				summary.Failed = append(summary.Failed, fmt.Sprintf("%s: %s", item.ID, item.Error.Reason))
				continue
			}
			summary.Indexed++
		}
	}
	if err := printJSON(cmd.Root().Writer, summary); err != nil {
		return err
	}
	if len(summary.Failed) > 0 {
		return fmt.Errorf("%d of %d documents failed", len(summary.Failed), len(docs))
	}
	return nil
}

func newDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:                      "delete",
		Usage:                     "Delete a document by id",
		ArgsUsage:                 "<id>",
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "index", Aliases: []string{"i"}, Usage: "index holding the document", Required: true},
			&cli.StringFlag{Name: "routing", Usage: "routing value used when the document was indexed"},
		},
		Action: deleteAction,
	}
}

func deleteAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected 1 argument: document id")
	}
	s, err := newSession(cmd, false)
	if err != nil {
		return err
	}
	resp, err := s.executor.Delete(ctx, cmd.String("index"), cmd.Args().First(), cmd.String("routing"))
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, resp)
}
