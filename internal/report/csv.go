package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/AngelCh415/moi-etl/internal/models"
)

var ErrUnterminatedQuote = errors.New("unterminated quoted field")

func GenerateTopLevelCSV(rows []models.IntegratedDailyMetrics, p Preamble) string {
	var b strings.Builder
	writePreamble(&b, p.rows(TopLevelTitle), TopLevelHeaders)
	for i := range rows {
		cells := []string{rows[i].Date}
		for _, v := range topLevelValues(&rows[i]) {
			cells = append(cells, formatValue(*v))
		}
		writeLine(&b, cells)
	}
	return b.String()
}

func GenerateAdsetCSV(rows []models.AdsetMetricsRow, p Preamble) string {
	var b strings.Builder
	writePreamble(&b, p.rows(AdsetTitle), AdsetHeaders)
	for i := range rows {
		r := &rows[i]
		cells := []string{r.Date, r.Campaign, r.AdSet, string(r.Platform)}
		for _, v := range adsetValues(r) {
			cells = append(cells, formatValue(*v))
		}
		writeLine(&b, cells)
	}
	return b.String()
}

func ParseTopLevelCSV(text string) ([]models.IntegratedDailyMetrics, error) {
	lines, err := dataLines(text)
	if err != nil {
		return nil, err
	}
	out := make([]models.IntegratedDailyMetrics, 0, len(lines))
	for _, cells := range lines {
		var m models.IntegratedDailyMetrics
		m.Date = cell(cells, 0)
		for i, v := range topLevelValues(&m) {
			*v = parseValue(cell(cells, i+1))
		}
		out = append(out, m)
	}
	return out, nil
}

func ParseAdsetCSV(text string) ([]models.AdsetMetricsRow, error) {
	lines, err := dataLines(text)
	if err != nil {
		return nil, err
	}
	out := make([]models.AdsetMetricsRow, 0, len(lines))
	for _, cells := range lines {
		r := models.AdsetMetricsRow{
			Date:     cell(cells, 0),
			Campaign: cell(cells, 1),
			AdSet:    cell(cells, 2),
			Platform: models.Platform(cell(cells, 3)),
		}
		for i, v := range adsetValues(&r) {
			*v = parseValue(cell(cells, adsetTextColumns+i))
		}
		out = append(out, r)
	}
	return out, nil
}

// dataLines drops the preamble and the header row and tokenizes the rest.
func dataLines(text string) ([][]string, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) < preambleRows {
		return nil, nil
	}
	lines = lines[preambleRows:]
	var out [][]string
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells, err := SplitCSVLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+preambleRows+1, err)
		}
		if len(out) == 0 && strings.EqualFold(strings.TrimSpace(cell(cells, 0)), "Date") {
			continue
		}
		out = append(out, cells)
	}
	return out, nil
}

// SplitCSVLine tokenizes one line: fields split on commas, a field wrapped
// in double quotes may contain commas, and "" inside quotes is a literal quote.
func SplitCSVLine(line string) ([]string, error) {
	var (
		fields []string
		cur    strings.Builder
		quoted bool
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quoted && c == '"':
			if i+1 < len(line) && line[i+1] == '"' {
				cur.WriteByte('"')
				i++
			} else {
				quoted = false
			}
		case quoted:
			cur.WriteByte(c)
		case c == '"':
			quoted = true
		case c == ',':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if quoted {
		return nil, ErrUnterminatedQuote
	}
	return append(fields, cur.String()), nil
}

func writePreamble(b *strings.Builder, preamble [][]string, header []string) {
	for _, row := range preamble {
		writeLine(b, row)
	}
	writeLine(b, header)
}

func writeLine(b *strings.Builder, cells []string) {
	for i, c := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quote(c))
	}
	b.WriteByte('\n')
}

func quote(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	if !strings.ContainsAny(s, ",\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func formatValue(v models.Value) string {
	return strconv.FormatFloat(v.Wire(), 'f', -1, 64)
}

// parseValue maps the sentinel and anything non-numeric to Unavailable.
func parseValue(s string) models.Value {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return models.Unavailable()
	}
	return models.FromWire(f)
}

func cell(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}
