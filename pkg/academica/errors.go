package academica

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/eeyn/academica/pkg/academica/layout"
	"github.com/eeyn/academica/pkg/academica/parser"
	"github.com/eeyn/academica/pkg/academica/store"
	"github.com/eeyn/academica/pkg/academica/transform"
)

// ErrFileNotFound indicates an input or reference file does not exist.
var ErrFileNotFound = errors.New("file not found")

// ErrInvalidFormat indicates the input file is neither xlsx nor csv.
var ErrInvalidFormat = parser.ErrUnsupportedFormat

// ErrUnknownTable indicates no layout is registered for the table.
var ErrUnknownTable = layout.ErrUnknownTable

// ErrMissingMetadata indicates a run value required by the layout (anio, periodo) is missing.
var ErrMissingMetadata = transform.ErrMissingMetadata

// ErrMixedPartition indicates a replace_partition batch spans several partitions.
var ErrMixedPartition = store.ErrMixedPartition

// ErrNoReferenceCodes indicates a code-sectioned import has no career codes to validate against.
var ErrNoReferenceCodes = errors.New("no reference codes")

// Import stages reported by ImportError.
const (
	StageLayout    = "layout"
	StageInput     = "input"
	StageReference = "reference"
	StageParse     = "parse"
	StageStore     = "store"
)

// ImportError represents an error during one table import.
type ImportError struct {
	Table string
	Stage string
	Err   error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %s (%s): %v", e.Table, e.Stage, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// NewImportError creates a new ImportError.
func NewImportError(table, stage string, err error) *ImportError {
	return &ImportError{
		Table: table,
		Stage: stage,
		Err:   err,
	}
}
