package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/osg-htc/topology-institutions-admin/internal/core/listquery"
	"github.com/osg-htc/topology-institutions-admin/internal/shell/session"
	"github.com/osg-htc/topology-institutions-admin/internal/shell/workers"
)

const browseHelp = `Commands:
  <text>         search by name, applied once typing pauses
  (empty line)   apply pending search now
  :clear         clear the search
  :sort <field>  sort by name, osg_id, ror_id, unitid or state; repeat to flip
  :unitid        toggle the unit ID filter
  :ids           toggle matching search text against OSG IDs
  :r             reload from the backend
  :q             quit
`

func newBrowseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Search and sort the institution list interactively",
		Long:  "Reads one command or search string per line from standard input.\n\n" + browseHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.browse(cmd.Context())
		},
	}
}

// syncWriter serializes whole renders from the input loop and the debounce
// timer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *syncWriter) render(fn func(w io.Writer)) {
	var buf bytes.Buffer
	fn(&buf)
	_, _ = s.Write(buf.Bytes())
}

func (a *app) browse(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := &syncWriter{w: a.out}

	var list *session.List
	list = session.NewList(a.client, session.ListConfig{
		Debounce: a.cfg.UI.Debounce,
		OnChange: func(rows []listquery.Row) {
			out.render(func(w io.Writer) {
				renderList(w, rows, list.Total(), list.Query())
			})
		},
	}, a.logger)
	defer list.Close()

	if err := list.Refresh(ctx); err != nil {
		return err
	}

	if interval := a.cfg.UI.RefreshInterval; interval > 0 {
		refresher := workers.NewRefresher(list, workers.RefresherConfig{
			Interval: interval,
			Timeout:  a.cfg.API.Timeout,
		}, a.logger)
		refresher.Start()
		defer refresher.Stop()
	}

	lines, scanErr := readLines(ctx, a.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return scanErr()
			}
			if quit := a.browseLine(ctx, list, out, line); quit {
				return nil
			}
		}
	}
}

// browseLine handles one input line and reports whether to quit.
func (a *app) browseLine(ctx context.Context, list *session.List, out io.Writer, line string) bool {
	cmd := strings.TrimSpace(line)
	switch {
	case cmd == "":
		list.FlushSearch()
	case cmd == ":q":
		return true
	case cmd == ":r":
		if err := list.Refresh(ctx); err != nil {
			errColor.Fprintf(out, "Error: %v\n", err)
		}
	case cmd == ":clear":
		list.SetSearch("")
		list.FlushSearch()
	case cmd == ":unitid":
		list.SetUnitIDOnly(!list.Query().UnitIDOnly)
	case cmd == ":ids":
		list.SetMatchID(!list.Query().MatchID)
	case strings.HasPrefix(cmd, ":sort"):
		field, err := listquery.ParseSortField(strings.TrimSpace(strings.TrimPrefix(cmd, ":sort")))
		if err != nil {
			errColor.Fprintf(out, "Error: %v\n", err)
			return false
		}
		list.Sort(field)
	case strings.HasPrefix(cmd, ":"):
		fmt.Fprint(out, browseHelp)
	default:
		list.SetSearch(line)
	}
	return false
}

// readLines delivers input lines until EOF or ctx is done. The returned func
// reports the scan error once the channel is closed.
func readLines(ctx context.Context, r io.Reader) (<-chan string, func() error) {
	lines := make(chan string)
	var err error

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		err = scanner.Err()
	}()

	return lines, func() error { return err }
}
