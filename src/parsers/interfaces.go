package parsers

import (
	"io"

	"github.com/username/tradefolio/src/models"
)

// Parser turns a broker export into raw legs keyed by the export's own
// column names. Normalization happens later, in the matching engine.
type Parser interface {
	Parse(file io.Reader) ([]models.RawLeg, error)
}
