package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/AbhigyanPie/product-impoter/internal/models"
)

// DefaultChunkSize is the number of rows upserted per batch when no
// explicit size is configured.
const DefaultChunkSize = 1000

// ErrMissingHeader reports a structurally unusable file: no header row, or
// one without the required sku and name columns.
var ErrMissingHeader = errors.New("header row with sku and name columns is required")

// Row is one data row. Number is its position in the file counting the
// header as row 1, so the first data row is row 2.
type Row struct {
	Number int
	Fields map[string]string
}

// Chunk is a batch of rows plus the malformed-row errors found while
// reading them. Malformed rows never abort the stream.
type Chunk struct {
	Index int
	Rows  []Row
	Bad   []models.RowValidationError
}

// ChunkReader slices a delimited stream into fixed-size row batches. Only
// one chunk of rows plus decode buffers is resident at a time.
type ChunkReader struct {
	r      *csv.Reader
	header []string
	size   int
	index  int
	rowNum int
	done   bool
}

// NewChunkReader reads and validates the header row. It fails before
// producing any chunk when the header is absent or lacks sku or name.
// Column order is irrelevant and unknown columns are ignored.
func NewChunkReader(r io.Reader, chunkSize int) (*ChunkReader, error) {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	record, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingHeader, err)
	}
	header := make([]string, len(record))
	for i, name := range record {
		header[i] = strings.ToLower(strings.TrimSpace(name))
	}
	if !contains(header, colSKU) || !contains(header, colName) {
		return nil, ErrMissingHeader
	}

	return &ChunkReader{r: cr, header: header, size: chunkSize, rowNum: 1}, nil
}

// Next returns the next batch of up to chunkSize rows. io.EOF signals a
// clean end of input. Any other error is structural and fatal.
func (c *ChunkReader) Next() (Chunk, error) {
	if c.done {
		return Chunk{}, io.EOF
	}
	chunk := Chunk{Index: c.index + 1}
	for len(chunk.Rows) < c.size {
		record, err := c.r.Read()
		if errors.Is(err, io.EOF) {
			c.done = true
			break
		}
		c.rowNum++
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			chunk.Bad = append(chunk.Bad, models.RowValidationError{
				RowNumber: c.rowNum,
				Message:   fmt.Sprintf("malformed row: %v", parseErr.Err),
			})
			continue
		}
		if err != nil {
			return Chunk{}, fmt.Errorf("read row %d: %w", c.rowNum, err)
		}

		fields := make(map[string]string, len(c.header))
		for i, name := range c.header {
			if name == "" || i >= len(record) {
				continue
			}
			fields[name] = record[i]
		}
		chunk.Rows = append(chunk.Rows, Row{Number: c.rowNum, Fields: fields})
	}
	if len(chunk.Rows) == 0 && len(chunk.Bad) == 0 {
		return Chunk{}, io.EOF
	}
	c.index++
	return chunk, nil
}

// CountRows counts data rows (header excluded) in one streaming pass.
// Malformed rows are included so the count matches what chunking will
// hand out as rows plus row errors.
func CountRows(r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		var parseErr *csv.ParseError
		if !errors.As(err, &parseErr) {
			return 0, fmt.Errorf("read header: %w", err)
		}
	}

	n := 0
	for {
		_, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return n, fmt.Errorf("count rows: %w", err)
			}
		}
		n++
	}
}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
