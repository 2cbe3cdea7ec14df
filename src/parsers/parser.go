package parsers

import (
	"io"

	"github.com/username/cryptotax/src/models"
)

// Parser reads an import file into raw ledger rows. Value parsing and
// validation happen later in the transaction processor.
type Parser interface {
	Parse(file io.Reader) ([]models.RawLedgerRow, error)
}
