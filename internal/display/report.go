package display

import (
	"os"
	"strings"

	"golang.org/x/term"

	"backup-compare/internal/compare"
)

// ReportRenderer renders findings reports for human consumption, colorizing
// finding kinds by category.
type ReportRenderer struct {
	colors   ColorSystem
	maxWidth int
}

// NewReportRenderer creates a renderer. A maxWidth of 0 means the terminal
// width is detected, falling back to 80 columns.
func NewReportRenderer(colors ColorSystem, maxWidth int) *ReportRenderer {
	if maxWidth <= 0 {
		maxWidth = detectTerminalWidth()
	}
	return &ReportRenderer{colors: colors, maxWidth: maxWidth}
}

func detectTerminalWidth() int {
	// The report is written to stdout, so that is the fd whose width matters.
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// kindColor groups finding kinds into the report palette: structural problems
// render red, existence-check failures magenta, everything else yellow.
func kindColor(kind compare.FindingKind) Color {
	switch kind {
	case compare.KindUnorderedInput, compare.KindUnequalCounts:
		return ColorRed
	default:
		if strings.HasSuffix(kind.String(), "ExistenceCheck") {
			return ColorMagenta
		}
		return ColorYellow
	}
}

// RenderReport renders the full findings report: a headline with the count, a
// separator, then one block per finding.
func (rr *ReportRenderer) RenderReport(findings *compare.ComparatorFindings) string {
	if findings.Empty() {
		return rr.colors.Sprint(ColorGreen, "Done, found 0 differences!")
	}

	var sb strings.Builder
	sb.WriteString(rr.colors.Sprintf(ColorYellow, "Done, found %d differences:", findings.Len()))
	sb.WriteString("\n")
	sb.WriteString(rr.separator())
	sb.WriteString("\n")

	for _, finding := range findings.Findings() {
		sb.WriteString(rr.renderFinding(finding))
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

// renderFinding colorizes the kind line of one finding's pretty block.
func (rr *ReportRenderer) renderFinding(finding compare.ComparatorFinding) string {
	block := finding.Pretty()
	if !rr.colors.IsColorSupported() {
		return block
	}

	kindName := finding.Kind.String()
	colored := rr.colors.Sprint(kindColor(finding.Kind), kindName)
	return strings.Replace(block, "kind: "+kindName, "kind: "+colored, 1)
}

func (rr *ReportRenderer) separator() string {
	width := rr.maxWidth
	if width > 120 {
		width = 120
	}
	return rr.colors.Sprint(ColorGray, strings.Repeat("-", width))
}

// RenderError renders a user-facing error line.
func (rr *ReportRenderer) RenderError(message string) string {
	return rr.colors.Sprintf(ColorRed, "Error: %s", message)
}
