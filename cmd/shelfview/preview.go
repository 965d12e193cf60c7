package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/ShelfView/internal/download"
	"github.com/dharsanguruparan/ShelfView/internal/handle"
	"github.com/dharsanguruparan/ShelfView/internal/model"
	"github.com/dharsanguruparan/ShelfView/internal/preview"
	"github.com/dharsanguruparan/ShelfView/internal/session"
)

const viewerHelp = `commands: n next page, p previous page, z toggle zoom, r retry, d dismiss error, s save pdf, q quit`

func newPreviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <book-id>",
		Short: "Page through a book preview",
		Long: `Opens an interactive preview of a book. Each page is fetched from the server
and kept as a spool file; the path of the current page is printed after every change.

` + viewerHelp,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.client()
			if err != nil {
				return err
			}
			book, err := c.Book(ctx, args[0])
			if err != nil {
				return err
			}

			fs := afero.NewOsFs()
			spool := a.cfg.Client.SpoolDir
			if spool == "" {
				spool, err = afero.TempDir(fs, "", "shelfview-spool-")
				if err != nil {
					return fmt.Errorf("create spool dir: %w", err)
				}
				defer fs.RemoveAll(spool)
			}
			registry, err := handle.NewRegistry(fs, spool)
			if err != nil {
				return err
			}

			logger := slog.Default()
			ctrl := session.New(
				preview.NewFetcher(c, a.cfg.Client.FetchTimeout),
				registry,
				session.WithContext(ctx),
				session.WithLogger(logger),
				session.WithDownloader(download.NewSaver(c, fs, a.cfg.Client.DownloadDir, logger)),
			)
			v := newViewer(ctrl, cmd.OutOrStdout())
			return v.run(ctx, *book, cmd.InOrStdin())
		},
	}
}

// controller is the part of *session.Controller the viewer drives.
type controller interface {
	Open(doc model.Book)
	Navigate(direction int) bool
	Rescale() bool
	Retry() bool
	DismissError()
	Close() error
	Download(ctx context.Context) (string, error)
	Snapshot() session.Snapshot
	Changes() <-chan struct{}
	Wait()
}

// viewer is a line-driven terminal front end for a preview session.
type viewer struct {
	ctrl controller

	mu   sync.Mutex
	out  io.Writer
	last string
}

func newViewer(ctrl controller, out io.Writer) *viewer {
	return &viewer{ctrl: ctrl, out: out}
}

// run opens book and executes command lines from in until q, end of input or
// ctx cancellation. If in is an io.Closer, run closes it on return so the
// line reader is released even when it is blocked waiting for input.
func (v *viewer) run(ctx context.Context, book model.Book, in io.Reader) error {
	if closer, ok := in.(io.Closer); ok {
		defer closer.Close()
	}
	v.println(viewerHelp)
	v.ctrl.Open(book)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		v.watch(done)
	}()
	defer func() {
		close(done)
		wg.Wait()
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return v.close()
		case line, ok := <-lines:
			if !ok {
				return v.close()
			}
			if quit := v.exec(ctx, strings.TrimSpace(line)); quit {
				return v.close()
			}
		}
	}
}

// exec runs one command line and reports whether the viewer should quit.
func (v *viewer) exec(ctx context.Context, line string) bool {
	switch line {
	case "n":
		if !v.ctrl.Navigate(1) {
			v.println("no next page")
		}
	case "p":
		if !v.ctrl.Navigate(-1) {
			v.println("no previous page")
		}
	case "z":
		if !v.ctrl.Rescale() {
			v.println("cannot zoom now")
		}
	case "r":
		if !v.ctrl.Retry() {
			v.println("nothing to retry")
		}
	case "d":
		v.ctrl.DismissError()
	case "s":
		path, err := v.ctrl.Download(ctx)
		if err != nil {
			v.println("save failed: " + err.Error())
			break
		}
		v.println("saved " + path)
	case "q":
		return true
	case "", "h", "?", "help":
		v.println(viewerHelp)
	default:
		v.println(fmt.Sprintf("unknown command %q", line))
	}
	return false
}

// watch prints the session state after every change until done is closed.
func (v *viewer) watch(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-v.ctrl.Changes():
			v.render(v.ctrl.Snapshot())
		}
	}
}

func (v *viewer) render(s session.Snapshot) {
	line := describe(s)
	v.mu.Lock()
	defer v.mu.Unlock()
	if line == v.last {
		return
	}
	v.last = line
	fmt.Fprintln(v.out, line)
}

func (v *viewer) println(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, msg)
}

func (v *viewer) close() error {
	err := v.ctrl.Close()
	v.ctrl.Wait()
	return err
}

// describe renders a snapshot as one status line, plus an error line when a
// failure is being shown.
func describe(s session.Snapshot) string {
	switch s.Status {
	case session.Closed:
		return "closed"
	case session.Opening:
		return fmt.Sprintf("opening %q", s.Document.Title)
	case session.Failed:
		return fmt.Sprintf("could not open %q: %v (r to retry)", s.Document.Title, s.LastError)
	}

	total := "?"
	if s.TotalPagesKnown {
		total = strconv.Itoa(s.TotalPages)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s  page %d/%s  scale %s", s.Document.Title, s.Target.Page+1, total, s.Target.Scale)
	if s.Handle != nil {
		fmt.Fprintf(&b, "  %s (%s)", s.Handle.Ref, humanize.Bytes(uint64(s.Handle.Size)))
	}
	if s.Pending {
		fmt.Fprintf(&b, "  loading page %d at %s", s.PendingTarget.Page+1, s.PendingTarget.Scale)
	}
	if s.LastError != nil {
		fmt.Fprintf(&b, "\n  error: %v (r to retry, d to dismiss)", s.LastError)
	}
	return b.String()
}
