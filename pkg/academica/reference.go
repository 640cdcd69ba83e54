package academica

import (
	"context"
	"encoding/csv"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/pkg/errors"

	"github.com/eeyn/academica/pkg/academica/models"
	"github.com/eeyn/academica/pkg/academica/parser"
	"github.com/eeyn/academica/pkg/academica/store"
)

type codeRow struct {
	Codigo string `csv:"Codigo"`
}

// LoadCodesCSV reads the reference code set from a csv file with a Codigo column.
func LoadCodesCSV(path string) (models.CodeSet, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.CodeSet{}, errors.Wrap(ErrFileNotFound, path)
		}
		return models.CodeSet{}, err
	}
	defer f.Close()

	dec, err := csvutil.NewDecoder(csv.NewReader(parser.SkipBOM(f)))
	if err != nil {
		return models.CodeSet{}, errors.Wrapf(err, "read %s", path)
	}
	if !hasHeader(dec.Header(), "Codigo") {
		return models.CodeSet{}, errors.Errorf("%s: missing Codigo column", path)
	}
	var rows []codeRow
	if err := dec.Decode(&rows); err != nil {
		return models.CodeSet{}, errors.Wrapf(err, "decode %s", path)
	}
	codes := make([]string, len(rows))
	for i, r := range rows {
		codes[i] = r.Codigo
	}
	return models.NewCodeSet(codes...), nil
}

// LoadCodes resolves the reference code set from path, or from the store's
// carreras table when path is empty.
func LoadCodes(ctx context.Context, st *store.Store, path string) (models.CodeSet, error) {
	if path != "" {
		return LoadCodesCSV(path)
	}
	if st == nil {
		return models.CodeSet{}, errors.Wrap(ErrNoReferenceCodes, "no codes file and no store")
	}
	codes, err := st.Codes(ctx)
	if err != nil {
		return models.CodeSet{}, err
	}
	return models.NewCodeSet(codes...), nil
}

func hasHeader(header []string, name string) bool {
	for _, h := range header {
		if h == name {
			return true
		}
	}
	return false
}
