package tastytrade

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/username/tradefolio/src/models"
)

// TastytradeParser reads the account history CSV export. Each data row is
// returned as a map keyed by the header names, untouched. Column order in
// the export has changed between broker releases, so nothing here depends
// on positions.
type TastytradeParser struct{}

func NewParser() *TastytradeParser {
	return &TastytradeParser{}
}

func (p *TastytradeParser) Parse(file io.Reader) ([]models.RawLeg, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\uFEFF"))
	}

	var legs []models.RawLeg
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		leg := make(models.RawLeg, len(header))
		for i, name := range header {
			if i < len(record) {
				leg[name] = record[i]
			}
		}
		legs = append(legs, leg)
	}

	return legs, nil
}
