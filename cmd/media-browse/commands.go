package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/media-browser/internal/config"
	"github.com/Sternrassler/media-browser/pkg/layout"
	"github.com/Sternrassler/media-browser/pkg/pagination"
	"github.com/Sternrassler/media-browser/pkg/render"
	"github.com/Sternrassler/media-browser/pkg/tree"
	"github.com/urfave/cli/v3"
)

const defaultConfigFile = "config.toml"

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   defaultConfigFile,
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "Path to a .env file with overrides",
			Value: ".env",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level (debug, info, warn, error)",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Serve Prometheus metrics on this address while running (e.g. :9090)",
		},
	}
}

func initCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write an example configuration file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Where to write the file",
				Value:   defaultConfigFile,
			},
		},
		Action: r.Init,
	}
}

func treeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tree",
		Usage: "Load the folder tree and optionally reveal a path",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Comma separated ancestor chain from root to target (e.g. root,library-1,folder-4)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the path to resolve",
				Value: 10 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the rendered tree as JSON",
			},
		},
		Action: r.Tree,
	}
}

func scrollCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "scroll",
		Usage: "Page through the items of a folder",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "folder",
				Usage:    "Folder ID",
				Required: true,
			},
		}, pagingFlags()...),
		Action: r.Scroll,
	}
}

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Page through search results",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "query",
				Aliases:  []string{"q"},
				Usage:    "Search query",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "post",
				Usage: "Submit the query as a form instead of a query string",
			},
		}, pagingFlags()...),
		Action: r.Search,
	}
}

func pagingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "pages",
			Usage: "Maximum number of scroll ticks after the first page",
			Value: 10,
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output a JSON summary",
		},
	}
}

func sidebarCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sidebar",
		Usage: "Show or change the stored sidebar layout",
		Commands: []*cli.Command{
			{Name: "show", Usage: "Print the sidebar geometry", Action: r.SidebarShow},
			{Name: "open", Usage: "Open the sidebar", Action: r.SidebarOpen},
			{Name: "close", Usage: "Close the sidebar", Action: r.SidebarClose},
			{Name: "toggle", Usage: "Toggle the sidebar", Action: r.SidebarToggle},
			{
				Name:  "resize",
				Usage: "Change the sidebar width by an offset",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "offset", Usage: "Pixels to add (negative shrinks)", Required: true},
				},
				Action: r.SidebarResize,
			},
			{
				Name:  "width",
				Usage: "Set the sidebar width",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "px", Usage: "Width in pixels", Required: true},
				},
				Action: r.SidebarWidth,
			},
		},
	}
}

// Init writes the example configuration.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if err := config.CreateConfigFile(path); err != nil {
		return err
	}
	r.writeln("Wrote %s", path)
	return nil
}

// Tree loads the folder tree and reveals --path if given.
func (r *Runner) Tree(ctx context.Context, cmd *cli.Command) error {
	loader := tree.NewLoader(r.fetcher)
	defer loader.Teardown()

	chain := parseChain(cmd.String("path"))
	var done *tree.Completion
	if len(chain) > 0 {
		var err error
		if done, err = loader.ExpandPath(chain); err != nil {
			return err
		}
	}

	if err := loader.LoadRoot(ctx, r.config.Server.NodesPath); err != nil {
		return err
	}

	if done != nil {
		waitCtx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
		defer cancel()
		res, err := done.Wait(waitCtx)
		if err != nil {
			return fmt.Errorf("path %s did not resolve: %w", strings.Join(chain, "/"), err)
		}
		if err := loader.SelectTarget(res); err != nil {
			return err
		}
		r.logger.Info().Str("target", res.Target.ID()).Msg("Path revealed")
	}
	loader.Wait()

	if loader.State() == tree.StateUnloaded {
		return errors.New("root listing could not be loaded")
	}

	if cmd.Bool("json") {
		var top []*tree.Node
		for _, n := range loader.Rendered() {
			if n.Parent() == nil {
				top = append(top, n)
			}
		}
		return r.writeJSON(top)
	}

	for _, n := range loader.Rendered() {
		marker := " "
		switch {
		case n.IsSelected():
			marker = "*"
		case n.IsOpen():
			marker = "-"
		case !n.IsLoaded():
			marker = "+"
		}
		r.writeln("%s%s %s (%s)", strings.Repeat("  ", len(n.Path())-1), marker, n.Text(), n.ID())
	}
	return nil
}

// Scroll pages through a folder.
func (r *Runner) Scroll(ctx context.Context, cmd *cli.Command) error {
	return r.paginate(ctx, cmd, pagination.FolderSource(cmd.String("folder")))
}

// Search pages through search results.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.String("query")
	src := pagination.SearchSource(query)
	if cmd.Bool("post") {
		src = pagination.SearchFormSource(map[string][]string{"query": {query}})
	}
	return r.paginate(ctx, cmd, src)
}

// scrollSummary is the JSON output of scroll and search.
type scrollSummary struct {
	Session   string   `json:"session"`
	LastPage  int      `json:"last_page"`
	Items     int      `json:"items"`
	Exhausted bool     `json:"exhausted"`
	Previews  []string `json:"previews,omitempty"`
	Gallery   []string `json:"gallery,omitempty"`
}

// paginate navigates to src and keeps the viewport at the bottom until the
// source is exhausted or the tick budget is spent.
func (r *Runner) paginate(ctx context.Context, cmd *cli.Command, src pagination.Source) error {
	var (
		thumbs  render.Thumbnails
		gallery render.Gallery
		failed  error
	)
	items := render.NewItemSet()
	p := pagination.New(r.fetcher, items,
		pagination.WithLookahead(r.config.Pagination.Lookahead),
		pagination.WithHooks(thumbs.Hook(), gallery.Hook()),
		pagination.WithResets(thumbs.Reset, gallery.Reset),
		pagination.WithObserver(func(res pagination.PageResult) {
			if res.Err != nil {
				failed = res.Err
			}
		}),
	)
	defer p.Close()

	if err := p.Navigate(ctx, src); err != nil {
		return err
	}
	p.Wait()
	if failed != nil {
		return fmt.Errorf("first page: %w", failed)
	}

	// A viewport parked at the bottom of whatever has been rendered so far.
	bottom := pagination.Viewport{ScrollTop: 1, DocumentHeight: 1, ViewportHeight: 1}
	for i := 0; i < int(cmd.Int("pages")) && !p.Exhausted(); i++ {
		failed = nil
		if !p.OnScrollTick(ctx, bottom) {
			break
		}
		p.Wait()
		if failed != nil {
			r.logger.Warn().Err(failed).Int("page", p.Page()+1).Msg("Page failed, scrolling again")
		}
	}

	id, _ := p.Session()
	summary := scrollSummary{
		Session:   id.String(),
		LastPage:  p.Page(),
		Items:     items.Len(),
		Exhausted: p.Exhausted(),
		Previews:  thumbs.Take(),
		Gallery:   gallery.Items(),
	}
	if cmd.Bool("json") {
		return r.writeJSON(summary)
	}
	r.writeln("%d items, last page %d (exhausted: %v)", summary.Items, summary.LastPage, summary.Exhausted)
	for _, g := range summary.Gallery {
		r.writeln("  %s", g)
	}
	return nil
}

func (r *Runner) sidebar(ctx context.Context) (*layout.Sidebar, error) {
	s := layout.NewSidebar(r.store)
	if err := s.Restore(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Runner) printGeometry(s *layout.Sidebar) error {
	g := s.Geometry()
	r.writeln("open=%v width=%d sidebar=%dpx handle=%dpx main-margin=%dpx",
		g.Open, s.Width(), g.SidebarWidth, g.HandleLeft, g.MainMargin)
	return nil
}

// SidebarShow prints the stored layout.
func (r *Runner) SidebarShow(ctx context.Context, cmd *cli.Command) error {
	s, err := r.sidebar(ctx)
	if err != nil {
		return err
	}
	return r.printGeometry(s)
}

// SidebarOpen opens the sidebar.
func (r *Runner) SidebarOpen(ctx context.Context, cmd *cli.Command) error {
	s, err := r.sidebar(ctx)
	if err != nil {
		return err
	}
	if err := s.Open(ctx); err != nil {
		return err
	}
	return r.printGeometry(s)
}

// SidebarClose closes the sidebar.
func (r *Runner) SidebarClose(ctx context.Context, cmd *cli.Command) error {
	s, err := r.sidebar(ctx)
	if err != nil {
		return err
	}
	if err := s.Close(ctx); err != nil {
		return err
	}
	return r.printGeometry(s)
}

// SidebarToggle toggles the sidebar.
func (r *Runner) SidebarToggle(ctx context.Context, cmd *cli.Command) error {
	s, err := r.sidebar(ctx)
	if err != nil {
		return err
	}
	if _, err := s.Toggle(ctx); err != nil {
		return err
	}
	return r.printGeometry(s)
}

// SidebarResize changes the width by --offset.
func (r *Runner) SidebarResize(ctx context.Context, cmd *cli.Command) error {
	s, err := r.sidebar(ctx)
	if err != nil {
		return err
	}
	if err := s.Resize(ctx, int(cmd.Int("offset"))); err != nil {
		return err
	}
	return r.printGeometry(s)
}

// SidebarWidth sets the width to --px.
func (r *Runner) SidebarWidth(ctx context.Context, cmd *cli.Command) error {
	s, err := r.sidebar(ctx)
	if err != nil {
		return err
	}
	if err := s.SetWidth(ctx, int(cmd.Int("px"))); err != nil {
		return err
	}
	return r.printGeometry(s)
}

func parseChain(s string) tree.AncestorChain {
	var chain tree.AncestorChain
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			chain = append(chain, id)
		}
	}
	return chain
}
