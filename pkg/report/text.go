package report

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Oeditus/propwise/pkg/analyzers/analyze"
	"github.com/Oeditus/propwise/pkg/analyzers/patterns"
)

const (
	titleText      = "PROPERTY-BASED TESTING CANDIDATES"
	msgLowerMin    = "consider lowering the threshold with --min-score"
	suggestIndent  = "    - "
	sectionIndent  = "  "
	patternJoinSep = ", "
)

// palette holds the colours of one text render.
type palette struct {
	title  *color.Color
	high   *color.Color
	medium *color.Color
	low    *color.Color
	muted  *color.Color
}

func newPalette(noColor bool) palette {
	colors := palette{
		title:  color.New(color.FgBlue, color.Bold),
		high:   color.New(color.FgGreen, color.Bold),
		medium: color.New(color.FgYellow),
		low:    color.New(color.FgCyan),
		muted:  color.New(color.FgHiBlack),
	}

	if noColor {
		for _, c := range []*color.Color{colors.title, colors.high, colors.medium, colors.low, colors.muted} {
			c.DisableColor()
		}
	}

	return colors
}

func (colors palette) score(value int) string {
	text := strconv.Itoa(value)

	switch PriorityOf(value) {
	case PriorityHigh:
		return colors.high.Sprint(text)
	case PriorityMedium:
		return colors.medium.Sprint(text)
	default:
		return colors.low.Sprint(text)
	}
}

func writeText(writer io.Writer, result *analyze.Result, opts Options) error {
	colors := newPalette(opts.NoColor)

	var out strings.Builder

	out.WriteString(colors.title.Sprint(titleText))
	out.WriteString("\n")
	out.WriteString(summaryLine(result))
	out.WriteString("\n")

	if result.Empty() {
		fmt.Fprintf(&out, "\nNo function scored %d or more; %s.\n", result.MinScore, msgLowerMin)
	} else {
		out.WriteString("\n")
		out.WriteString(candidateTable(result, colors))
		out.WriteString("\n")
		out.WriteString(suggestionSection(result, opts.MaxSuggestions, colors))
		out.WriteString(statsSection(result))
	}

	out.WriteString(pairSection(result))

	if _, err := io.WriteString(writer, out.String()); err != nil {
		return fmt.Errorf("write text report: %w", err)
	}

	return nil
}

func summaryLine(result *analyze.Result) string {
	return fmt.Sprintf("Analyzed %s functions: %s candidates (min score %d), %s below threshold, %s impure",
		humanize.Comma(int64(result.TotalFunctions)),
		humanize.Comma(int64(result.CandidatesCount)),
		result.MinScore,
		humanize.Comma(int64(result.DroppedCount)),
		humanize.Comma(int64(result.ImpureCount)),
	)
}

func candidateTable(result *analyze.Result, colors palette) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false

	tbl.AppendHeader(table.Row{"#", "Score", "Function", "Patterns", "Location"})

	for idx, candidate := range result.Candidates {
		kinds := make([]string, 0, len(candidate.Matches))
		for _, match := range candidate.Matches {
			kinds = append(kinds, string(match.Kind))
		}

		tbl.AppendRow(table.Row{
			idx + 1,
			colors.score(candidate.Score),
			candidate.Function.QualifiedName(),
			strings.Join(kinds, patternJoinSep),
			colors.muted.Sprint(candidate.Function.Location()),
		})
	}

	tbl.AppendFooter(table.Row{"", "", "Total: " + humanize.Comma(int64(len(result.Candidates)))})

	return tbl.Render() + "\n"
}

func suggestionSection(result *analyze.Result, limit int, colors palette) string {
	var out strings.Builder

	out.WriteString("Suggested properties:\n")

	for _, candidate := range result.Candidates {
		suggestions := candidate.Suggestions
		if limit > 0 && len(suggestions) > limit {
			suggestions = suggestions[:limit]
		}

		fmt.Fprintf(&out, "%s%s %s\n", sectionIndent, candidate.Function.QualifiedName(),
			colors.muted.Sprintf("(score %d)", candidate.Score))

		for _, suggestion := range suggestions {
			out.WriteString(suggestIndent)
			out.WriteString(suggestion)
			out.WriteString("\n")
		}

		if hidden := len(candidate.Suggestions) - len(suggestions); hidden > 0 {
			fmt.Fprintf(&out, "%s%s more\n", suggestIndent, humanize.Comma(int64(hidden)))
		}
	}

	return out.String()
}

func statsSection(result *analyze.Result) string {
	if len(result.PatternStats) == 0 {
		return ""
	}

	var out strings.Builder

	out.WriteString("\nPattern statistics:\n")

	kinds := patterns.Kinds()
	slices.SortStableFunc(kinds, func(left, right patterns.Kind) int {
		return result.PatternStats[right] - result.PatternStats[left]
	})

	for _, kind := range kinds {
		count := result.PatternStats[kind]
		if count == 0 {
			continue
		}

		fmt.Fprintf(&out, "%s%-22s %s\n", sectionIndent, kind, humanize.Comma(int64(count)))
	}

	return out.String()
}

func pairSection(result *analyze.Result) string {
	if len(result.InversePairs) == 0 {
		return ""
	}

	var out strings.Builder

	out.WriteString("\nInverse function pairs:\n")

	for _, pair := range result.InversePairs {
		fmt.Fprintf(&out, "%s%s <-> %s\n", sectionIndent, pair.Forward.QualifiedName(), pair.Inverse.QualifiedName())
		out.WriteString(suggestIndent)
		out.WriteString(pair.Suggestion)
		out.WriteString("\n")
	}

	return out.String()
}
