package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Options controls how source files are read into a Table.
type Options struct {
	// MaxRows limits rows read; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, chosen from the file extension.
	Delimiter rune
	// SheetName selects an XLSX sheet by name; SheetIndex (1-based) is the fallback.
	SheetName  string
	SheetIndex int
	// DateLayouts are tried in order on cells of date-like columns.
	DateLayouts []string
	// DefaultYear fills in dates parsed from layouts without a year.
	// 0 means the current year.
	DefaultYear int
}

// DefaultOptions returns the layouts and limits used by the CLI.
func DefaultOptions() Options {
	return Options{
		DateLayouts: DefaultDateLayouts(),
	}
}

// ErrUnsupportedFileType is matched by every UnsupportedFileTypeError.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// UnsupportedFileTypeError reports an input file the loader cannot read.
type UnsupportedFileTypeError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFileTypeError) Error() string {
	msg := fmt.Sprintf("unsupported file type %q for %s (supported: .csv, .tsv, .xlsx)", e.Ext, filepath.Base(e.Path))
	if e.Ext == ".xls" {
		msg += "; re-save legacy .xls workbooks as .xlsx or .csv"
	}
	return msg
}

func (e *UnsupportedFileTypeError) Is(target error) bool { return target == ErrUnsupportedFileType }

// LoadFile reads a CSV, TSV or XLSX file selected by extension.
func LoadFile(path string, opt Options) (*Table, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv", ".tsv":
		return ReadCSVFile(path, opt)
	case ".xlsx":
		return ReadXLSXFile(path, opt)
	default:
		return nil, &UnsupportedFileTypeError{Path: path, Ext: ext}
	}
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string, opt Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	if opt.Delimiter == 0 {
		opt.Delimiter = sniffDelimiter(path)
	}
	return ReadCSV(f, filepath.Base(path), opt)
}

// ReadCSV reads a header row followed by data rows.
func ReadCSV(r io.Reader, name string, opt Options) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if opt.Delimiter != 0 {
		cr.Comma = opt.Delimiter
	}

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return New(name, nil), nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	b := newBuilder(name, header, opt)
	for !b.full() {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", b.t.Len()+2, err)
		}
		b.add(rec)
	}
	return b.finish(), nil
}

// builder turns raw string records into a typed Table.
type builder struct {
	t       *Table
	opt     Options
	maxRows int
	serials bool
}

func newBuilder(name string, header []string, opt Options) *builder {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	return &builder{t: New(name, cols), opt: opt, maxRows: maxRows}
}

func (b *builder) full() bool { return b.t.Len() >= b.maxRows }

func (b *builder) add(rec []string) {
	row := make([]Value, b.t.Width())
	for i := range row {
		if i < len(rec) {
			row[i] = Text(strings.TrimSpace(rec[i]))
		}
	}
	// Append cannot fail: row is exactly table width.
	_ = b.t.Append(row)
}

func (b *builder) finish() *Table {
	ParseDateColumns(b.t, b.opt, b.serials)
	return b.t
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}
