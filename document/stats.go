package document

import "github.com/voiceverse/voiceverse/sentence"

// PageStats describes the sentences found on one page.
type PageStats struct {
	Page      int
	Runes     int
	Sentences int
}

// Stats splits the first limit pages and counts their sentences. A limit of
// zero or less covers every page.
func Stats(d *Document, limit int) []PageStats {
	n := d.PageCount()
	if limit > 0 && limit < n {
		n = limit
	}

	stats := make([]PageStats, 0, n)
	for i := 0; i < n; i++ {
		text, _ := d.PageText(i)
		stats = append(stats, PageStats{
			Page:      i,
			Runes:     len([]rune(text)),
			Sentences: len(sentence.Split(text)),
		})
	}
	return stats
}
