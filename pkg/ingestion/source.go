// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const sniffBytes = 64 * 1024

// ParseDelimiter maps a configured delimiter name to a rune. Zero means
// detect from the header line.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return 0, nil
	case "tab", `\t`, "\t":
		return '\t', nil
	case "comma", ",":
		return ',', nil
	}
	return 0, fmt.Errorf("unknown delimiter %q (want auto, tab or comma)", s)
}

// Row is one data row of an export.
type Row struct {
	// Index is the 0-based position among data rows; the header is not
	// counted. Start offsets and checkpoints refer to it.
	Index int64
	// Line is the 1-based line in the input where the row begins.
	Line int

	values []string
	header *Header
	delim  rune
}

// Get returns the trimmed value of col, or "" if the column is absent.
func (r *Row) Get(col string) string {
	i, ok := r.header.Index(col)
	if !ok || i >= len(r.values) {
		return ""
	}
	return strings.TrimSpace(r.values[i])
}

// Raw reconstructs the row's text for error reports.
func (r *Row) Raw() string {
	return strings.Join(r.values, string(r.delim))
}

// Reader streams rows from a delimited export.
type Reader struct {
	records recordReader
	header  *Header
	delim   rune
	next    int64
}

// recordReader yields one record and the 1-based line it starts on.
type recordReader interface {
	Read() ([]string, int, error)
}

// NewReader reads the header from r. A zero delim is detected from the
// header line: tab if it has at least as many tabs as commas.
//
// Tab exports are unquoted: each line is one record and a '"' is an
// ordinary character. Comma input follows RFC 4180 quoting.
func NewReader(r io.Reader, delim rune) (*Reader, error) {
	br := bufio.NewReaderSize(r, sniffBytes)
	if bom, _ := br.Peek(3); bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	if delim == 0 {
		delim = sniffDelimiter(br)
	}

	var records recordReader
	if delim == '\t' {
		records = &tabRecords{br: br}
	} else {
		cr := csv.NewReader(br)
		cr.Comma = delim
		cr.LazyQuotes = true
		cr.FieldsPerRecord = -1
		records = &csvRecords{cr: cr}
	}

	fields, _, err := records.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("input is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	return &Reader{records: records, header: NewHeader(fields), delim: delim}, nil
}

func sniffDelimiter(br *bufio.Reader) rune {
	buf, _ := br.Peek(sniffBytes)
	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		buf = buf[:i]
	}
	if bytes.Count(buf, []byte{'\t'}) >= bytes.Count(buf, []byte{','}) && bytes.IndexByte(buf, '\t') >= 0 {
		return '\t'
	}
	return ','
}

// Header returns the parsed header.
func (r *Reader) Header() *Header { return r.header }

// Delimiter returns the delimiter in use.
func (r *Reader) Delimiter() rune { return r.delim }

// Next returns the next row, or io.EOF after the last one. Malformed
// records are returned as *RowError.
func (r *Reader) Next() (*Row, error) {
	rec, line, err := r.records.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	idx := r.next
	r.next++
	if err != nil {
		return nil, &RowError{Index: idx, Line: line, Err: err}
	}
	return &Row{Index: idx, Line: line, values: rec, header: r.header, delim: r.delim}, nil
}

type csvRecords struct {
	cr *csv.Reader
}

func (c *csvRecords) Read() ([]string, int, error) {
	rec, err := c.cr.Read()
	if err != nil {
		line := 0
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			line = pe.StartLine
		}
		return nil, line, err
	}
	line, _ := c.cr.FieldPos(0)
	return rec, line, nil
}

// tabRecords splits lines on tabs. Blank lines are skipped, as the comma
// reader does.
type tabRecords struct {
	br   *bufio.Reader
	line int
}

func (t *tabRecords) Read() ([]string, int, error) {
	for {
		s, err := t.br.ReadString('\n')
		if s == "" && err != nil {
			return nil, t.line + 1, err
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, t.line + 1, err
		}
		t.line++
		s = strings.TrimSuffix(s, "\n")
		s = strings.TrimSuffix(s, "\r")
		if s == "" {
			continue
		}
		return strings.Split(s, "\t"), t.line, nil
	}
}
