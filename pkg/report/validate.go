package report

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is the JSON schema of the json report format.
//
//go:embed report.schema.json
var Schema []byte

// ErrInvalidReport is returned when a report cannot be checked at all,
// for example because it is not JSON.
var ErrInvalidReport = errors.New("invalid report")

// Problem is one schema violation.
type Problem struct {
	Field       string
	Description string
	Value       any
}

// String formats the problem as "field: description".
func (problem Problem) String() string {
	return problem.Field + ": " + problem.Description
}

// Validate checks a JSON report against Schema. An empty problem list
// means the report is valid.
func Validate(data []byte) ([]Problem, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(Schema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}

	problems := make([]Problem, 0, len(result.Errors()))

	for _, resultErr := range result.Errors() {
		problems = append(problems, Problem{
			Field:       resultErr.Field(),
			Description: resultErr.Description(),
			Value:       resultErr.Value(),
		})
	}

	return problems, nil
}
