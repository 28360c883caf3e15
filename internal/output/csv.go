package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/qgenlab/qgen/internal/model"
)

// utf8BOM lets spreadsheet tools detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteRubricCSV writes one row per rubric question with a UTF-8 BOM.
func WriteRubricCSV(path string, questions []model.RubricQuestion) error {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Question", "Level", "Number"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, q := range questions {
		if err := w.Write([]string{q.Body, q.Level, strconv.Itoa(q.Number)}); err != nil {
			return fmt.Errorf("write csv row %d: %w", q.Number, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return WriteFile(path, buf.Bytes())
}
