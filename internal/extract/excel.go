package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/tameru/internal/models"
)

// parseXLSX parses workbook bytes into one table unit per non-empty sheet,
// header row first.
func parseXLSX(content []byte, opts Options) (*models.StructuredContent, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content), excelize.Options{Password: opts.Password})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "password") {
			if opts.Password == "" {
				return nil, fmt.Errorf("%w: workbook is encrypted", models.ErrCredentialsRequired)
			}
			return nil, fmt.Errorf("%w: workbook password rejected", models.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%w: open workbook: %v", models.ErrSourceUnreadable, err)
	}
	defer f.Close()

	sc := &models.StructuredContent{Format: "xlsx"}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: get rows for sheet %q: %v", models.ErrSourceUnreadable, sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		sc.Units = append(sc.Units, models.Unit{
			Type:  models.UnitTable,
			Sheet: sheet,
			Rows:  rows,
		})
	}
	return sc, nil
}
