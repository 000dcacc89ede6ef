package agent

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/floats"
)

// FollowupIntent is the reduction a follow-up question asks for.
type FollowupIntent string

const (
	IntentMax     FollowupIntent = "max"
	IntentMin     FollowupIntent = "min"
	IntentTrend   FollowupIntent = "trend"
	IntentTotal   FollowupIntent = "total"
	IntentSummary FollowupIntent = "summary"
)

// Keyword families, checked in this order.
var intentKeywords = []struct {
	intent FollowupIntent
	words  []string
}{
	{IntentMax, []string{"highest", "maximum", "max", "peak", "most", "largest", "top", "biggest", "greatest"}},
	{IntentMin, []string{"lowest", "minimum", "min", "least", "smallest", "bottom", "fewest"}},
	{IntentTrend, []string{"trend", "trending", "direction", "increase", "increasing", "decrease", "decreasing", "growing", "declining", "change"}},
	{IntentTotal, []string{"total", "sum", "overall", "altogether", "combined"}},
}

var labelHints = []string{"month", "date", "period", "week", "year", "day", "time", "quarter"}

// stableThreshold is the relative change below which a trend is "stable".
const stableThreshold = 0.01

// ColumnFinding is the reduction of one numeric column.
type ColumnFinding struct {
	Column    string
	Value     float64 // max, min, total or last value depending on intent
	Label     string  // label of the row holding Value, for max and min
	First     float64
	Last      float64
	Direction string // increase, decrease or stable, for trend
	Min       float64
	Max       float64
}

// AnalysisResult answers a follow-up question from cached chart data.
type AnalysisResult struct {
	ChartID     string
	ChartKind   ChartKind
	Intent      FollowupIntent
	LabelColumn string
	Filter      map[string]string // categorical column -> value the rows were narrowed to
	RowCount    int
	Findings    []ColumnFinding
	Summary     string
}

// ChartFollowupAnalyzer answers simple aggregate questions about the most
// recent chart without querying the database again.
type ChartFollowupAnalyzer struct{}

// Analyze reduces the latest chart in mem according to question.
func (ChartFollowupAnalyzer) Analyze(mem *ChartMemory, question string) (*AnalysisResult, error) {
	rec, ok := mem.Latest()
	if !ok || rec.Table == nil {
		return nil, ErrNoChartAvailable
	}
	return analyzeTable(rec, question), nil
}

func analyzeTable(rec ChartRecord, question string) *AnalysisResult {
	tokens := tokenize(question)
	q := strings.ToLower(question)
	table := rec.Table

	numeric := numericColumns(table)
	label := labelColumn(table, numeric)

	res := &AnalysisResult{
		ChartID:     rec.ID,
		ChartKind:   rec.Kind,
		Intent:      classifyIntent(tokens),
		LabelColumn: label,
	}

	table, res.Filter = applyCategoryFilter(table, numeric, label, q, tokens)
	res.RowCount = table.RowCount()

	var measures []string
	for _, c := range numeric {
		if c != label {
			measures = append(measures, c)
		}
	}
	cols := focusColumns(measures, q)
	if table.Empty() || len(cols) == 0 {
		res.Intent = IntentSummary
	}

	li := table.ColumnIndex(label)
	for _, col := range cols {
		vals := numericValues(table, col)
		if len(vals) == 0 {
			continue
		}
		f := ColumnFinding{
			Column: col,
			First:  vals[0],
			Last:   vals[len(vals)-1],
			Min:    floats.Min(vals),
			Max:    floats.Max(vals),
		}
		switch res.Intent {
		case IntentMax:
			i := floats.MaxIdx(vals)
			f.Value, f.Label = vals[i], cellAt(table, i, li)
		case IntentMin:
			i := floats.MinIdx(vals)
			f.Value, f.Label = vals[i], cellAt(table, i, li)
		case IntentTotal:
			f.Value = floats.Sum(vals)
		case IntentTrend:
			f.Value = f.Last
			f.Direction = direction(f.First, f.Last)
		}
		res.Findings = append(res.Findings, f)
	}
	res.Summary = describe(res, rec, table)
	return res
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hasToken(tokens []string, word string) bool {
	for _, t := range tokens {
		if t == word {
			return true
		}
	}
	return false
}

func classifyIntent(tokens []string) FollowupIntent {
	for _, fam := range intentKeywords {
		for _, w := range fam.words {
			if hasToken(tokens, w) {
				return fam.intent
			}
		}
	}
	return IntentSummary
}

// numericColumns returns columns whose every cell is a number.
func numericColumns(t *Table) []string {
	var cols []string
	for i, c := range t.Columns {
		if len(t.Rows) == 0 {
			break
		}
		numeric := true
		for _, row := range t.Rows {
			if i >= len(row) {
				numeric = false
				break
			}
			if _, ok := toFloat(row[i]); !ok {
				numeric = false
				break
			}
		}
		if numeric {
			cols = append(cols, c)
		}
	}
	return cols
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// labelColumn prefers a date-like column, else the first non-numeric one.
func labelColumn(t *Table, numeric []string) string {
	for _, c := range t.Columns {
		lc := strings.ToLower(c)
		for _, h := range labelHints {
			if strings.Contains(lc, h) {
				return c
			}
		}
	}
	for _, c := range t.Columns {
		if !contains(numeric, c) {
			return c
		}
	}
	return ""
}

// applyCategoryFilter narrows rows to categorical values named in the
// question, e.g. "inbound" for a transaction_type column.
func applyCategoryFilter(t *Table, numeric []string, label, q string, tokens []string) (*Table, map[string]string) {
	var filter map[string]string
	for ci, c := range t.Columns {
		if c == label || contains(numeric, c) {
			continue
		}
		seen := map[string]bool{}
		var match string
		for _, row := range t.Rows {
			v := FormatCell(row[ci])
			lv := strings.ToLower(strings.TrimSpace(v))
			if lv == "" || seen[lv] {
				continue
			}
			seen[lv] = true
			if mentions(q, tokens, lv) {
				match = v
				break
			}
		}
		if match == "" {
			continue
		}
		if filter == nil {
			filter = map[string]string{}
		}
		filter[c] = match
		idx := ci
		want := strings.ToLower(strings.TrimSpace(match))
		t = t.Filter(func(row []any) bool {
			return strings.ToLower(strings.TrimSpace(FormatCell(row[idx]))) == want
		})
	}
	return t, filter
}

// mentions matches single words as tokens and multi-word values as phrases.
func mentions(q string, tokens []string, value string) bool {
	if strings.ContainsAny(value, " -_/") {
		return strings.Contains(q, value)
	}
	return hasToken(tokens, value)
}

// focusColumns keeps only numeric columns named in the question, or all of
// them when none is named.
func focusColumns(numeric []string, q string) []string {
	var named []string
	for _, c := range numeric {
		lc := strings.ToLower(c)
		if strings.Contains(q, lc) || strings.Contains(q, strings.ReplaceAll(lc, "_", " ")) {
			named = append(named, c)
		}
	}
	if len(named) > 0 {
		return named
	}
	return numeric
}

func numericValues(t *Table, col string) []float64 {
	idx := t.ColumnIndex(col)
	vals := make([]float64, 0, len(t.Rows))
	for _, row := range t.Rows {
		if f, ok := toFloat(row[idx]); ok {
			vals = append(vals, f)
		}
	}
	return vals
}

func cellAt(t *Table, row, col int) string {
	if col < 0 || row >= len(t.Rows) {
		return ""
	}
	return FormatCell(t.Rows[row][col])
}

func direction(first, last float64) string {
	diff := last - first
	if math.Abs(diff) <= stableThreshold*math.Abs(first) {
		return "stable"
	}
	if diff > 0 {
		return "increase"
	}
	return "decrease"
}

func describe(res *AnalysisResult, rec ChartRecord, t *Table) string {
	var b strings.Builder
	scope := ""
	if len(res.Filter) > 0 {
		var parts []string
		for _, c := range t.Columns {
			if v, ok := res.Filter[c]; ok {
				parts = append(parts, v)
			}
		}
		scope = " for " + strings.Join(parts, ", ")
	}

	switch res.Intent {
	case IntentMax, IntentMin:
		word := "highest"
		if res.Intent == IntentMin {
			word = "lowest"
		}
		for _, f := range res.Findings {
			fmt.Fprintf(&b, "The %s %s%s is %s", word, f.Column, scope, formatNumber(f.Value))
			if f.Label != "" {
				fmt.Fprintf(&b, " in %s", f.Label)
			}
			b.WriteString(". ")
		}
	case IntentTotal:
		for _, f := range res.Findings {
			fmt.Fprintf(&b, "The total %s%s is %s across %d rows. ", f.Column, scope, formatNumber(f.Value), res.RowCount)
		}
	case IntentTrend:
		for _, f := range res.Findings {
			switch f.Direction {
			case "stable":
				fmt.Fprintf(&b, "%s%s is stable, from %s to %s. ", f.Column, scope, formatNumber(f.First), formatNumber(f.Last))
			default:
				pct := ""
				if f.First != 0 {
					pct = fmt.Sprintf(" (%+.1f%%)", (f.Last-f.First)/math.Abs(f.First)*100)
				}
				article := "an"
				if f.Direction == "decrease" {
					article = "a"
				}
				fmt.Fprintf(&b, "%s%s shows %s %s from %s to %s%s. ", f.Column, scope, article, f.Direction, formatNumber(f.First), formatNumber(f.Last), pct)
			}
		}
		if res.LabelColumn != "" && t.RowCount() > 0 {
			li := t.ColumnIndex(res.LabelColumn)
			fmt.Fprintf(&b, "Period: %s to %s. ", cellAt(t, 0, li), cellAt(t, t.RowCount()-1, li))
		}
	default:
		desc := rec.Description
		if desc == "" {
			desc = string(rec.Kind) + " chart"
		}
		fmt.Fprintf(&b, "The latest chart (%s) has %d rows%s. ", desc, res.RowCount, scope)
		if res.LabelColumn != "" && t.RowCount() > 0 {
			li := t.ColumnIndex(res.LabelColumn)
			fmt.Fprintf(&b, "%s ranges from %s to %s. ", res.LabelColumn, cellAt(t, 0, li), cellAt(t, t.RowCount()-1, li))
		}
		for _, f := range res.Findings {
			fmt.Fprintf(&b, "%s ranges from %s to %s. ", f.Column, formatNumber(f.Min), formatNumber(f.Max))
		}
	}
	return strings.TrimSpace(b.String())
}
