package formatter

import (
	"fmt"
	"strings"

	"notecrawl/pkg/utils"
)

const maxCellWidth = 40

// AuthorStatus is one author line of a run summary.
type AuthorStatus struct {
	Handle  string
	Status  string
	Records int
}

// Summary describes the outcome of one crawl run.
type Summary struct {
	RunID        string
	Query        string
	Authors      []AuthorStatus
	QueryRecords int
	NewRecords   int
	UserRecords  int
	Matched      int
	Registered   int
	ResumedFrom  int
	Interrupted  bool
}

// RenderSummary formats s as a markdown report with an aligned author table.
func RenderSummary(s Summary) string {
	helper := utils.NewStringHelper()

	var sb strings.Builder

	fmt.Fprintf(&sb, "## Crawl %q\n\n", s.Query)
	fmt.Fprintf(&sb, "- run: %s\n", s.RunID)
	fmt.Fprintf(&sb, "- query records: %d (new: %d)\n", s.QueryRecords, s.NewRecords)
	fmt.Fprintf(&sb, "- resumed from author index: %d\n", s.ResumedFrom)
	fmt.Fprintf(&sb, "- user records: %d (matched: %d)\n", s.UserRecords, s.Matched)
	fmt.Fprintf(&sb, "- registered keys: %d\n", s.Registered)

	if s.Interrupted {
		sb.WriteString("- interrupted: checkpoint saved, registry untouched\n")
	}

	if len(s.Authors) == 0 {
		return sb.String()
	}

	sb.WriteString("\n| author | records | status |\n| --- | --- | --- |\n")

	for _, a := range s.Authors {
		handle := helper.TruncateWidth(helper.NormalizeWhitespace(a.Handle), maxCellWidth)
		status := helper.TruncateWidth(strings.ReplaceAll(helper.NormalizeWhitespace(a.Status), "|", "/"), maxCellWidth)
		fmt.Fprintf(&sb, "| %s | %d | %s |\n", handle, a.Records, status)
	}

	return AlignTables(sb.String())
}
