package ingest

import (
	"strings"

	"github.com/AngelCh415/moi-etl/internal/models"
)

type Field string

const (
	FieldCampaign       Field = "campaign"
	FieldAdSet          Field = "adset"
	FieldSpend          Field = "spend"
	FieldCPM            Field = "cpm"
	FieldCTR            Field = "ctr"
	FieldImpressions    Field = "impressions"
	FieldClicks         Field = "clicks"
	FieldReportingStart Field = "reporting_start"
	FieldReportingEnd   Field = "reporting_end"
	FieldDay            Field = "day"
	FieldTerm           Field = "term"
	FieldVisitors       Field = "visitors"
	FieldSessions       Field = "sessions"
	FieldCartAdds       Field = "cart_adds"
	FieldCheckouts      Field = "checkouts"
	FieldDuration       Field = "duration"
	FieldPageviews      Field = "pageviews"
)

// Schema maps canonical fields to the header spellings a platform has been
// seen to export. Aliases are compared after lowercasing and collapsing
// whitespace; a trailing "*" makes an alias a prefix match.
type Schema struct {
	Platform models.Platform
	Aliases  map[Field][]string
	Required []Field
}

var MetaSchema = Schema{
	Platform: models.PlatformMeta,
	Aliases: map[Field][]string{
		FieldCampaign:       {"campaign name", "campaign"},
		FieldAdSet:          {"ad set name", "adset name", "ad set"},
		FieldSpend:          {"amount spent*", "spend"},
		FieldCPM:            {"cpm (cost per 1,000 impressions)*", "cpm"},
		FieldCTR:            {"ctr (link click-through rate)", "ctr (all)", "ctr"},
		FieldImpressions:    {"impressions"},
		FieldReportingStart: {"reporting starts"},
		FieldReportingEnd:   {"reporting ends"},
	},
	Required: []Field{FieldCampaign, FieldSpend},
}

var GoogleSchema = Schema{
	Platform: models.PlatformGoogle,
	Aliases: map[Field][]string{
		FieldCampaign:    {"campaign"},
		FieldSpend:       {"cost"},
		FieldCPM:         {"avg. cpm", "avg cpm", "cpm"},
		FieldCTR:         {"ctr"},
		FieldImpressions: {"impr.", "impressions"},
		FieldClicks:      {"clicks"},
		FieldDay:         {"day", "date"},
	},
	Required: []Field{FieldCampaign, FieldSpend},
}

var ShopifySchema = Schema{
	Platform: models.PlatformShopify,
	Aliases: map[Field][]string{
		FieldDay:       {"day", "date"},
		FieldCampaign:  {"utm campaign", "utm_campaign", "utm campaign name"},
		FieldTerm:      {"utm term", "utm_term"},
		FieldVisitors:  {"online store visitors", "visitors"},
		FieldSessions:  {"sessions"},
		FieldCartAdds:  {"sessions with cart additions"},
		FieldCheckouts: {"sessions that reached checkout"},
		FieldDuration:  {"average session duration", "avg. session duration", "avg session duration"},
		FieldPageviews: {"pageviews"},
	},
	Required: []Field{FieldVisitors},
}

// Columns is a schema resolved against one header row.
type Columns struct {
	header []string
	index  map[Field]int
}

// Resolve matches the header once. ok is false when a required field is missing.
func (s Schema) Resolve(header []string) (Columns, bool) {
	cols := Columns{header: header, index: make(map[Field]int, len(s.Aliases))}
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = normalizeHeader(h)
	}
	for field, aliases := range s.Aliases {
		if i := matchAlias(norm, aliases); i >= 0 {
			cols.index[field] = i
		}
	}
	for _, f := range s.Required {
		if _, ok := cols.index[f]; !ok {
			return cols, false
		}
	}
	return cols, true
}

func matchAlias(norm []string, aliases []string) int {
	for _, a := range aliases {
		prefix := strings.HasSuffix(a, "*")
		a = strings.TrimSuffix(a, "*")
		for i, h := range norm {
			if h == a || (prefix && strings.HasPrefix(h, a)) {
				return i
			}
		}
	}
	return -1
}

func (c Columns) Has(f Field) bool {
	_, ok := c.index[f]
	return ok
}

func (c Columns) Get(row []string, f Field) string {
	i, ok := c.index[f]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (c Columns) Number(row []string, f Field) float64 { return ParseNumber(c.Get(row, f)) }

// Raw keeps the row keyed by its original header text.
func (c Columns) Raw(row []string) models.RawRecord {
	raw := make(models.RawRecord, len(c.header))
	for i, h := range c.header {
		if i < len(row) {
			raw[strings.TrimSpace(h)] = row[i]
		}
	}
	return raw
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.Join(strings.Fields(strings.ToLower(h)), " ")
}
