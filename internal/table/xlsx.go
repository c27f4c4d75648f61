package table

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ReadXLSXFile reads one sheet of an .xlsx workbook. The sheet is chosen by
// opt.SheetName, falling back to opt.SheetIndex (1-based, default the first sheet).
func ReadXLSXFile(p string, opt Options) (*Table, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	return ReadXLSX(data, filepath.Base(p), opt)
}

// ReadXLSX reads a workbook held in memory.
func ReadXLSX(data []byte, name string, opt Options) (*Table, error) {
	wb, err := openWorkbook(data)
	if err != nil {
		return nil, err
	}
	target, err := wb.sheetPath(opt.SheetName, opt.SheetIndex)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	rows := newSheetRowReader(wb.file(target), wb.shared)
	header, ok := rows.Next()
	if !ok || len(header) == 0 {
		return New(name, nil), nil
	}
	b := newBuilder(name, header, opt)
	b.serials = true
	for !b.full() {
		rec, ok := rows.Next()
		if !ok {
			break
		}
		b.add(rec)
	}
	return b.finish(), nil
}

type workbook struct {
	zr     *zip.Reader
	sheets []sheetEntry
	rels   map[string]string
	shared []string
}

type sheetEntry struct {
	Name    string
	SheetID int
	RID     string
}

func openWorkbook(data []byte) (*workbook, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	wb := &workbook{zr: zr}
	wb.sheets = parseWorkbook(wb.file("xl/workbook.xml"))
	wb.rels = parseRelationships(wb.file("xl/_rels/workbook.xml.rels"))
	wb.shared = parseSharedStrings(wb.file("xl/sharedStrings.xml"))
	return wb, nil
}

func (wb *workbook) file(name string) []byte {
	for _, f := range wb.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		return b
	}
	return nil
}

func (wb *workbook) sheetPath(sheetName string, sheetIndex int) (string, error) {
	if sheetName != "" {
		names := make([]string, 0, len(wb.sheets))
		for _, s := range wb.sheets {
			if strings.EqualFold(s.Name, sheetName) {
				if rel, ok := wb.rels[s.RID]; ok {
					return normalizeRelPath(rel), nil
				}
			}
			names = append(names, s.Name)
		}
		return "", fmt.Errorf("sheet %q not found (available: %s)", sheetName, strings.Join(names, ", "))
	}
	idx := sheetIndex
	if idx <= 0 {
		idx = 1
	}
	for _, s := range wb.sheets {
		if s.SheetID == idx {
			if rel, ok := wb.rels[s.RID]; ok {
				return normalizeRelPath(rel), nil
			}
		}
	}
	// Workbooks written without relationships still follow the sheetN naming.
	return path.Join("xl", "worksheets", fmt.Sprintf("sheet%d.xml", idx)), nil
}

// forEachStart calls fn for every start element in an XML document.
func forEachStart(data []byte, fn func(xml.StartElement)) {
	if len(data) == 0 {
		return
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		if se, ok := tok.(xml.StartElement); ok {
			fn(se)
		}
	}
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func parseWorkbook(data []byte) []sheetEntry {
	var sheets []sheetEntry
	forEachStart(data, func(se xml.StartElement) {
		if se.Name.Local != "sheet" {
			return
		}
		sheets = append(sheets, sheetEntry{
			Name:    attr(se, "name"),
			SheetID: atoiSafe(attr(se, "sheetId")),
			RID:     attr(se, "id"),
		})
	})
	return sheets
}

// parseRelationships maps relationship ids to their targets.
func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	forEachStart(data, func(se xml.StartElement) {
		if se.Name.Local != "Relationship" {
			return
		}
		id, target := attr(se, "Id"), attr(se, "Target")
		if id != "" && target != "" {
			out[id] = target
		}
	})
	return out
}

func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	inT := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inT = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inT = false
			case "si":
				out = append(out, buf.String())
			}
		case xml.CharData:
			if inT {
				buf.Write(se)
			}
		}
	}
}

// sheetRowReader streams rows out of a worksheet document.
type sheetRowReader struct {
	dec    *xml.Decoder
	shared []string
}

func newSheetRowReader(data []byte, shared []string) *sheetRowReader {
	return &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

// Next returns the next row with cells placed by their column reference.
func (r *sheetRowReader) Next() ([]string, bool) {
	var row []string
	inRow := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				inRow, row = true, nil
				continue
			}
			if !inRow || se.Name.Local != "c" {
				continue
			}
			col := colIndexFromRef(attr(se, "r"))
			if col < 0 {
				col = len(row)
			}
			val, err := r.cellValue(attr(se, "t"))
			if err != nil {
				return nil, false
			}
			for len(row) <= col {
				row = append(row, "")
			}
			row[col] = val
		case xml.EndElement:
			if inRow && se.Name.Local == "row" {
				return row, true
			}
		}
	}
}

// cellValue reads the <v> or inline <is><t> content up to the end of the cell.
func (r *sheetRowReader) cellValue(cellType string) (string, error) {
	var val strings.Builder
	inValue := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return "", errors.New("truncated cell")
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				inValue = true
			}
		case xml.CharData:
			if inValue {
				val.Write(se)
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "v", "t":
				inValue = false
			case "c":
				if cellType == "s" {
					idx := atoiSafe(val.String())
					if idx >= 0 && idx < len(r.shared) {
						return r.shared[idx], nil
					}
					return "", nil
				}
				return val.String(), nil
			}
		}
	}
}

// colIndexFromRef maps a cell reference like "C12" to a 0-based column (2).
func colIndexFromRef(ref string) int {
	idx := 0
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case c >= 'A' && c <= 'Z':
			idx = idx*26 + int(c-'A'+1)
		case c >= 'a' && c <= 'z':
			idx = idx*26 + int(c-'a'+1)
		default:
			return idx - 1
		}
	}
	return idx - 1
}

func atoiSafe(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// normalizeRelPath converts relationship targets to ZIP entry names.
// Targets may be absolute ("/xl/worksheets/sheet1.xml") or relative to xl/.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
