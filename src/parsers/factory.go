package parsers

import (
	"fmt"

	"github.com/username/tradefolio/src/parsers/tastytrade"
)

func GetParser(source string) (Parser, error) {
	switch source {
	case "tastytrade":
		return tastytrade.NewParser(), nil
	default:
		return nil, fmt.Errorf("no parser available for source: %s", source)
	}
}
