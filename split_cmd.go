package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/voiceverse/voiceverse/document"
	"github.com/voiceverse/voiceverse/sentence"
)

var (
	splitStats bool
	splitLimit int

	pageHeaderStyle = lipgloss.NewStyle().Faint(true)

	splitCmd = &cobra.Command{
		Use:   "split [FILE|-]",
		Short: "Print the sentences of a document, one per line",
		Long: paragraph(fmt.Sprintf("\n%s a document into sentences the way it would be read aloud, without speaking it.", keyword("Split"))),
		Example: paragraph("voiceverse split chapter.txt\npdftotext book.pdf - | voiceverse split --stats"),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := sourceArg(args)
			if err != nil {
				return err
			}
			doc, err := document.OpenFile(path)
			if err != nil {
				return err
			}
			if splitStats {
				return writeStats(cmd.OutOrStdout(), doc, splitLimit)
			}
			return writeSentences(cmd.OutOrStdout(), doc, splitLimit)
		},
	}
)

func init() {
	splitCmd.Flags().BoolVarP(&splitStats, "stats", "s", false, "print sentence counts per page instead of sentences")
	splitCmd.Flags().IntVarP(&splitLimit, "pages", "n", 0, "only the first n pages (0 for all)")
}

func pageCount(doc *document.Document, limit int) int {
	if limit > 0 && limit < doc.PageCount() {
		return limit
	}
	return doc.PageCount()
}

func writeSentences(w io.Writer, doc *document.Document, limit int) error {
	n := pageCount(doc, limit)
	for i := 0; i < n; i++ {
		text, _ := doc.PageText(i)
		if doc.PageCount() > 1 {
			if _, err := fmt.Fprintln(w, pageHeaderStyle.Render(fmt.Sprintf("# page %d", i+1))); err != nil {
				return err
			}
		}
		for _, s := range sentence.Split(text) {
			if _, err := fmt.Fprintln(w, s); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeStats(w io.Writer, doc *document.Document, limit int) error {
	var sentences, runes int
	for _, s := range document.Stats(doc, limit) {
		sentences += s.Sentences
		runes += s.Runes
		if _, err := fmt.Fprintf(w, "page %-5d %8s sentences %10s characters\n",
			s.Page+1, humanize.Comma(int64(s.Sentences)), humanize.Comma(int64(s.Runes))); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "total      %8s sentences %10s characters in %d pages\n",
		humanize.Comma(int64(sentences)), humanize.Comma(int64(runes)), pageCount(doc, limit))
	return err
}
