package bulk

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// Source yields rows for a staging table. Next returns io.EOF once the
// rows are exhausted; every row must have one value per staging column.
type Source interface {
	Next() ([]any, error)
}

// SliceSource serves rows held in memory.
type SliceSource struct {
	Rows [][]any
	pos  int
}

// Next implements Source.
func (s *SliceSource) Next() ([]any, error) {
	if s.pos >= len(s.Rows) {
		return nil, io.EOF
	}
	row := s.Rows[s.pos]
	s.pos++
	return row, nil
}

// CSVSource reads comma separated records. Values arrive as strings.
type CSVSource struct {
	reader *csv.Reader

	// Header skips the first record.
	Header bool

	// NullEmpty turns empty fields into NULL, the way COPY ... CSV treats
	// unquoted empty fields.
	NullEmpty bool

	started bool
	line    int
}

// NewCSVSource reads records from r.
func NewCSVSource(r io.Reader, header bool) *CSVSource {
	return &CSVSource{reader: csv.NewReader(r), Header: header}
}

// Next implements Source.
func (s *CSVSource) Next() ([]any, error) {
	if !s.started {
		s.started = true
		if s.Header {
			if _, err := s.reader.Read(); err != nil {
				if err == io.EOF {
					return nil, io.EOF
				}
				return nil, errors.Wrap(err, "reading header")
			}
			s.line++
		}
	}
	record, err := s.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	s.line++
	if err != nil {
		return nil, errors.Wrapf(err, "reading record %d", s.line)
	}
	row := make([]any, len(record))
	for i, v := range record {
		if v == "" && s.NullEmpty {
			row[i] = nil
			continue
		}
		row[i] = v
	}
	return row, nil
}

// JSONLSource reads one JSON document per line into a single column.
// Blank lines are skipped; a line that is not valid JSON is an error.
type JSONLSource struct {
	scanner *bufio.Scanner
	line    int
}

// maxJSONLine bounds a single document.
const maxJSONLine = 16 << 20

// NewJSONLSource reads documents from r.
func NewJSONLSource(r io.Reader) *JSONLSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxJSONLine)
	return &JSONLSource{scanner: scanner}
}

// Next implements Source.
func (s *JSONLSource) Next() ([]any, error) {
	for s.scanner.Scan() {
		s.line++
		doc := bytes.TrimSpace(s.scanner.Bytes())
		if len(doc) == 0 {
			continue
		}
		if !json.Valid(doc) {
			return nil, errors.Errorf("line %d: invalid JSON document", s.line)
		}
		return []any{string(doc)}, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading line %d", s.line+1)
	}
	return nil, io.EOF
}
