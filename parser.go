// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Date layouts accepted in uploads, tried in order
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	"2006-01",
	"Jan 2006",
	"January 2006",
	"2006",
}

// Excel stores dates as days since 1899-12-30
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Serial day numbers outside this range are not treated as dates
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465 // 9999-12-31
)

// parseDate parses an upload date cell into a UTC day
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dayStart(t.UTC()), true
		}
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= minExcelSerial && serial <= maxExcelSerial {
		return excelEpoch.AddDate(0, 0, int(math.Floor(serial))), true
	}

	return time.Time{}, false
}

// parseConsumption parses a consumption cell. Thousands separators are ignored;
// NaN and infinities count as non-numeric.
func parseConsumption(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// columnIndex locates the date and consumption columns of a header row
type columnIndex struct {
	date        int
	consumption int
}

// findColumns matches header cells against the header keywords
func findColumns(header []string) (columnIndex, bool) {
	cols := columnIndex{date: -1, consumption: -1}
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		if cols.date < 0 && containsAny(name, dateHeaderKeywords) {
			cols.date = i
			continue
		}
		if cols.consumption < 0 && containsAny(name, consumptionHeaderKeywords) {
			cols.consumption = i
		}
	}
	return cols, cols.date >= 0 && cols.consumption >= 0
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Parser turns uploaded consumption tables into datasets
type Parser struct {
	logger *Logger
}

// NewParser creates a parser
func NewParser(logger *Logger) *Parser {
	return &Parser{logger: logger.WithComponent("parser")}
}

// SupportedExtension reports whether uploads with this file name can be parsed
func SupportedExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", ".xlsx", ".xlsm":
		return true
	default:
		return false
	}
}

// ParseFile reads and parses a file from disk
func (p *Parser) ParseFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{File: path, Message: "failed to open file", Err: err}
	}
	defer f.Close()

	return p.Parse(filepath.Base(path), f)
}

// Parse dispatches on the file extension of name
func (p *Parser) Parse(name string, r io.Reader) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return p.ParseCSV(name, r)
	case ".xlsx", ".xlsm":
		return p.ParseExcel(name, r)
	default:
		return nil, &ParseError{File: name, Message: fmt.Sprintf("unsupported file type %q", filepath.Ext(name))}
	}
}

// ParseCSV parses a comma separated consumption table
func (p *Parser) ParseCSV(name string, r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	dataset := &Dataset{Name: name}
	var cols columnIndex
	haveHeader := false

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{File: name, Message: "malformed CSV", Err: err}
		}
		if isBlankRow(row) {
			continue
		}

		line, _ := reader.FieldPos(0)
		if !haveHeader {
			var ok bool
			if cols, ok = findColumns(row); !ok {
				return nil, &ParseError{File: name, Message: "header must contain a date column and a consumption column"}
			}
			haveHeader = true
			continue
		}

		if record, ok := p.parseRow(name, line, row, cols); ok {
			dataset.Records = append(dataset.Records, record)
		} else {
			dataset.SkippedRows++
		}
	}

	if !haveHeader {
		return nil, &ParseError{File: name, Message: "file is empty"}
	}

	p.logger.Debug("Parsed CSV", "file", name, "records", len(dataset.Records), "skipped", dataset.SkippedRows)
	return dataset, nil
}

// ParseExcel parses the first worksheet carrying a consumption table
func (p *Parser) ParseExcel(name string, r io.Reader) (*Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{File: name, Message: "failed to open workbook", Err: err}
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			p.logger.Warn("Failed to read sheet", "file", name, "sheet", sheet, "error", err)
			continue
		}

		headerRow := -1
		for i, row := range rows {
			if !isBlankRow(row) {
				headerRow = i
				break
			}
		}
		if headerRow < 0 {
			continue
		}

		cols, ok := findColumns(rows[headerRow])
		if !ok {
			p.logger.Debug("Sheet has no consumption header", "file", name, "sheet", sheet)
			continue
		}

		dataset := &Dataset{Name: name}
		for i := headerRow + 1; i < len(rows); i++ {
			if isBlankRow(rows[i]) {
				continue
			}
			if record, ok := p.parseRow(name, i+1, rows[i], cols); ok {
				dataset.Records = append(dataset.Records, record)
			} else {
				dataset.SkippedRows++
			}
		}

		p.logger.Debug("Parsed workbook", "file", name, "sheet", sheet, "records", len(dataset.Records), "skipped", dataset.SkippedRows)
		return dataset, nil
	}

	return nil, &ParseError{File: name, Message: "no worksheet has a date column and a consumption column"}
}

// parseRow converts one data row. Rows that cannot be read are logged and skipped.
func (p *Parser) parseRow(file string, line int, row []string, cols columnIndex) (ConsumptionRecord, bool) {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}

	date, ok := parseDate(cell(cols.date))
	if !ok {
		p.logger.LogSkippedRow(file, line, "invalid date", cell(cols.date))
		return ConsumptionRecord{}, false
	}

	consumption, ok := parseConsumption(cell(cols.consumption))
	if !ok {
		p.logger.LogSkippedRow(file, line, "invalid consumption", cell(cols.consumption))
		return ConsumptionRecord{}, false
	}

	return ConsumptionRecord{Date: date, Consumption: consumption}, true
}
