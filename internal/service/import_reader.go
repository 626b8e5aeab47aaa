package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/noah-isme/tutor-admin/internal/models"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
)

// ReadImportCSV parses a CSV file with a header row into records keyed by
// header name. Blank lines are skipped. Any malformed line fails the whole
// file so nothing is sent.
func ReadImportCSV(r io.Reader) ([]models.ImportRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, appErrors.Clone(appErrors.ErrParse, "csv file is empty")
		}
		return nil, parseError(err)
	}
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if h == "" {
			return nil, appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("csv header column %d is empty", i+1))
		}
		headers[i] = h
	}

	records := make([]models.ImportRecord, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, parseError(err)
		}
		if isBlank(row) {
			continue
		}
		record := make(models.ImportRecord, len(headers))
		for i, h := range headers {
			record[h] = strings.TrimSpace(row[i])
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrParse, "csv file has no data rows")
	}
	return records, nil
}

func parseError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, fmt.Sprintf("malformed csv at line %d", pe.Line))
	}
	return appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, appErrors.ErrParse.Message)
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
