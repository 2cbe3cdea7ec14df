package parsers

import (
	"fmt"
	"strings"

	"github.com/username/cryptotax/src/parsers/csvledger"
	"github.com/username/cryptotax/src/parsers/jsonledger"
)

func GetParser(source string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "csv":
		return csvledger.NewParser(), nil
	case "json":
		return jsonledger.NewParser(), nil
	default:
		return nil, fmt.Errorf("no parser available for source: %s", source)
	}
}
