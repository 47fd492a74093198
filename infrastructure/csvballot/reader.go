// Package csvballot reads ballot tables from comma separated text.
//
// The first record holds the choice names, each following record one
// mention per choice. Cells are trimmed and lines holding nothing but
// whitespace are skipped. A record of empty cells such as ",," is a ballot
// and is kept for the empty-cell policy to judge. Rows of the wrong width
// are returned as is: rejecting them is the ballot validator's job, where
// the failure can name the offending row.
package csvballot

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/ahrav/go-scrutin/internal/ports"
)

const utf8BOM = "\ufeff"

// Option configures a Reader.
type Option func(*Reader)

// WithComma sets the field delimiter. Zero keeps delimiter detection.
func WithComma(r rune) Option {
	return func(rd *Reader) { rd.comma = r }
}

// Reader is a ports.BallotSource over an io.Reader.
type Reader struct {
	src   io.Reader
	comma rune
}

var _ ports.BallotSource = (*Reader)(nil)

// NewReader returns a source reading from src. Without WithComma the
// delimiter is a comma, or a semicolon when the header contains semicolons
// and no comma.
func NewReader(src io.Reader, opts ...Option) *Reader {
	r := &Reader{src: src}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadRows reads the whole table. ctx is checked between records.
func (r *Reader) ReadRows(ctx context.Context) ([][]string, error) {
	data, err := io.ReadAll(r.src)
	if err != nil {
		return nil, fmt.Errorf("read ballots: %w", err)
	}
	return ReadRows(ctx, data, r.comma)
}

// ReadRows parses data into trimmed rows. comma is the field delimiter; zero
// selects it from the header line.
func ReadRows(ctx context.Context, data []byte, comma rune) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte(utf8BOM))
	if comma == 0 {
		comma = detectComma(data)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = !unicode.IsSpace(comma)

	var rows [][]string
	var start int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := cr.Read()
		end := cr.InputOffset()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse ballots: %w", err)
		}

		raw := data[start:end]
		start = end

		// A whitespace-only line reads as one empty field, as does a quoted
		// empty cell; only the raw text tells them apart. Several fields
		// mean delimiters were written, so the record is a ballot.
		if len(record) == 1 && len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func detectComma(data []byte) rune {
	header := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		header = data[:i]
	}
	if bytes.IndexByte(header, ',') < 0 && bytes.IndexByte(header, ';') >= 0 {
		return ';'
	}
	return ','
}

// File is a ports.BallotSource reading a CSV file from disk.
type File struct {
	Path string
	opts []Option
}

var _ ports.BallotSource = (*File)(nil)

// NewFile returns a source for the CSV file at path.
func NewFile(path string, opts ...Option) *File {
	return &File{Path: path, opts: opts}
}

// ReadRows opens and parses the file.
func (f *File) ReadRows(ctx context.Context) ([][]string, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open ballots: %w", err)
	}
	defer fh.Close()
	return NewReader(fh, f.opts...).ReadRows(ctx)
}
