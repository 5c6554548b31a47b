package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

const maxTitleWidth = 80

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

// writePapers prints one aligned row per paper.
func writePapers(w io.Writer, papers []*domain.Paper) error {
	if len(papers) == 0 {
		_, err := fmt.Fprintln(w, "no results")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tYEAR\tCITED\tID\tTITLE")
	for _, p := range papers {
		year := "-"
		if y, ok := p.Year(); ok {
			year = strconv.Itoa(y)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", p.Source, year, p.CitationCount, p.ID, truncate(p.Title, maxTitleWidth))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
