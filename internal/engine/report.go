package engine

import (
	"encoding/json"

	"github.com/example/fileguardian/internal/errs"
)

// marshalReport renders a Report as indented JSON, the only format the
// engine itself produces; HTML/CSV rendering of the same data is left
// to a caller outside this module.
func marshalReport(r Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, errs.Wrap(errs.IOFailure, err, "marshal report")
	}
	return data, nil
}
