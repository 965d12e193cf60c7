package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dharsanguruparan/ShelfView/internal/model"
)

func newBooksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "List and search the catalog",
	}
	cmd.AddCommand(newBooksListCmd(a), newBooksSearchCmd(a))
	return cmd
}

func newBooksListCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every book in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			books, err := c.ListBooks(cmd.Context())
			if err != nil {
				return err
			}
			return printBooks(cmd.OutOrStdout(), books, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json, yaml)")
	return cmd
}

func newBooksSearchCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find books by title, author or category",
		Example: `  # Books whose title, author or category mention "code"
  shelfview books search code`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			books, err := c.SearchBooks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printBooks(cmd.OutOrStdout(), books, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json, yaml)")
	return cmd
}

// bookRow is the listing view of a book.
type bookRow struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Author   string `yaml:"author"`
	Category string `yaml:"category,omitempty"`
	Year     int    `yaml:"publication_year,omitempty"`
	Pages    int    `yaml:"page_count,omitempty"`
	Reviews  int    `yaml:"reviews"`
}

func rows(books []model.Book) []bookRow {
	out := make([]bookRow, 0, len(books))
	for _, b := range books {
		out = append(out, bookRow{
			ID:       b.ID,
			Title:    b.Title,
			Author:   b.Author,
			Category: b.Category,
			Year:     b.PublicationYear,
			Pages:    b.PageCount,
			Reviews:  len(b.Reviews),
		})
	}
	return out
}

func printBooks(w io.Writer, books []model.Book, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(books)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows(books)); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tCATEGORY\tPAGES")
		for _, r := range rows(books) {
			pages := "-"
			if r.Pages > 0 {
				pages = strconv.Itoa(r.Pages)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Title, r.Author, r.Category, pages)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
