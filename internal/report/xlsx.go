package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/AngelCh415/moi-etl/internal/models"
)

// WriteXLSX writes both tables as sheets of one workbook. Unavailable
// metrics are shown as "-".
func WriteXLSX(w io.Writer, daily []models.IntegratedDailyMetrics, adset []models.AdsetMetricsRow, p Preamble) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TopLevelTitle); err != nil {
		return err
	}
	if _, err := f.NewSheet(AdsetTitle); err != nil {
		return err
	}

	top := make([][]any, 0, len(daily))
	for i := range daily {
		row := []any{daily[i].Date}
		for _, v := range topLevelValues(&daily[i]) {
			row = append(row, xlsxValue(*v))
		}
		top = append(top, row)
	}
	if err := writeSheet(f, TopLevelTitle, p.rows(TopLevelTitle), TopLevelHeaders, top); err != nil {
		return err
	}

	rows := make([][]any, 0, len(adset))
	for i := range adset {
		r := &adset[i]
		row := []any{r.Date, r.Campaign, r.AdSet, string(r.Platform)}
		for _, v := range adsetValues(r) {
			row = append(row, xlsxValue(*v))
		}
		rows = append(rows, row)
	}
	if err := writeSheet(f, AdsetTitle, p.rows(AdsetTitle), AdsetHeaders, rows); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, preamble [][]string, header []string, rows [][]any) error {
	r := 1
	for _, line := range preamble {
		if err := setRow(f, sheet, r, toAny(line)); err != nil {
			return err
		}
		r++
	}
	if err := setRow(f, sheet, r, toAny(header)); err != nil {
		return err
	}
	r++
	for _, row := range rows {
		if err := setRow(f, sheet, r, row); err != nil {
			return err
		}
		r++
	}
	return nil
}

func setRow(f *excelize.File, sheet string, r int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, r)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("%s row %d: %w", sheet, r, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func xlsxValue(v models.Value) any {
	if f, ok := v.Float(); ok {
		return f
	}
	return "-"
}
