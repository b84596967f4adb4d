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
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
		ok    bool
	}{
		{"2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"2024-01-15T22:30:00Z", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"2024-01-15 08:00", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"2024/03/02", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), true},
		{"03/02/2024", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), true},
		{"02.03.2024", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), true},
		{"2024-07", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), true},
		{"Jul 2024", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), true},
		{"September 2023", time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC), true},
		{"2022", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"45292", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"45292.75", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"  2024-01-15  ", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"not a date", time.Time{}, false},
		{"-4", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseDate(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCSV(t *testing.T) {
	input := strings.Join([]string{
		"Meter,Reading Date,Consumption (kWh)",
		"A,2024-01-01,100",
		"",
		"A,2024-02-01,\"1,250.5\"",
		"A,garbage,300",
		"A,2024-04-01,n/a",
		"A,2024-05-01,90",
	}, "\n")

	dataset, err := NewParser(NewDiscardLogger()).ParseCSV("usage.csv", strings.NewReader(input))

	require.NoError(t, err)
	assert.Equal(t, "usage.csv", dataset.Name)
	assert.Equal(t, 2, dataset.SkippedRows)
	assert.Equal(t, []ConsumptionRecord{
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Consumption: 100},
		{Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Consumption: 1250.5},
		{Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Consumption: 90},
	}, dataset.Records)
}

func TestParseCSV_SkipsNonFiniteValues(t *testing.T) {
	input := strings.Join([]string{
		"date,consumption",
		"2024-01-01,100",
		"2024-02-01,NaN",
		"2024-03-01,300",
		"2024-04-01,Inf",
		"2024-05-01,-Infinity",
	}, "\n")

	dataset, err := NewParser(NewDiscardLogger()).ParseCSV("export.csv", strings.NewReader(input))

	require.NoError(t, err)
	assert.Equal(t, 3, dataset.SkippedRows)
	require.Len(t, dataset.Records, 2)
	assert.Equal(t, 300.0, dataset.Records[1].Consumption)
	assert.True(t, ValidateData(dataset.Records).IsValid)
}

func TestParseConsumption(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"42", 42, true},
		{" 1,234.5 ", 1234.5, true},
		{"-3", -3, true},
		{"NaN", 0, false},
		{"nan", 0, false},
		{"+Inf", 0, false},
		{"Infinity", 0, false},
		{"n/a", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseConsumption(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := parseConsumption("")
	assert.False(t, ok)
}

func TestParseCSV_HeaderErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{"missing consumption column", "date,meter\n2024-01-01,A\n", "header must contain a date column and a consumption column"},
		{"missing date column", "month,kwh\nJan,100\n", "header must contain a date column and a consumption column"},
		{"empty", "\n\n", "file is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(NewDiscardLogger()).ParseCSV("bad.csv", strings.NewReader(tt.input))

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, tt.message, parseErr.Message)
			assert.Equal(t, "bad.csv", parseErr.File)
		})
	}
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	dataset, err := NewParser(NewDiscardLogger()).ParseCSV("empty.csv", strings.NewReader("timestamp,usage\n"))

	require.NoError(t, err)
	assert.Empty(t, dataset.Records)
}

func buildWorkbook(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Exported by the utility portal"))

	_, err := f.NewSheet("Data")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Data", "A1", "Date"))
	require.NoError(t, f.SetCellValue("Data", "B1", "Usage (kWh)"))
	require.NoError(t, f.SetCellValue("Data", "A2", "2023-12-01"))
	require.NoError(t, f.SetCellValue("Data", "B2", 100))
	require.NoError(t, f.SetCellValue("Data", "A3", 45292))
	require.NoError(t, f.SetCellValue("Data", "B3", 120.5))
	require.NoError(t, f.SetCellValue("Data", "A4", "unknown"))
	require.NoError(t, f.SetCellValue("Data", "B4", 5))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseExcel(t *testing.T) {
	dataset, err := NewParser(NewDiscardLogger()).ParseExcel("usage.xlsx", bytes.NewReader(buildWorkbook(t)))

	require.NoError(t, err)
	assert.Equal(t, 1, dataset.SkippedRows)
	assert.Equal(t, []ConsumptionRecord{
		{Date: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), Consumption: 100},
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Consumption: 120.5},
	}, dataset.Records)
}

func TestParseExcel_NoTable(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "nothing here"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = NewParser(NewDiscardLogger()).ParseExcel("notes.xlsx", buf)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "no worksheet has a date column and a consumption column", parseErr.Message)
}

func TestParseExcel_NotAWorkbook(t *testing.T) {
	_, err := NewParser(NewDiscardLogger()).ParseExcel("fake.xlsx", strings.NewReader("date,kwh\n"))

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "failed to open workbook", parseErr.Message)
}

func TestParse_DispatchesOnExtension(t *testing.T) {
	p := NewParser(NewDiscardLogger())

	dataset, err := p.Parse("READINGS.TXT", strings.NewReader("date,kwh\n2024-01-01,5\n"))
	require.NoError(t, err)
	assert.Len(t, dataset.Records, 1)

	_, err = p.Parse("readings.json", strings.NewReader("{}"))
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.Message, "unsupported file type")
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,consumption\n2024-01-01,10\n2024-02-01,20\n"), 0644))

	dataset, err := NewParser(NewDiscardLogger()).ParseFile(path)

	require.NoError(t, err)
	assert.Equal(t, "history.csv", dataset.Name)
	assert.Len(t, dataset.Records, 2)

	_, err = NewParser(NewDiscardLogger()).ParseFile(filepath.Join(t.TempDir(), "missing.csv"))
	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestSupportedExtension(t *testing.T) {
	assert.True(t, SupportedExtension("a.csv"))
	assert.True(t, SupportedExtension("a.XLSX"))
	assert.True(t, SupportedExtension("a.xlsm"))
	assert.True(t, SupportedExtension("a.txt"))
	assert.False(t, SupportedExtension("a.xls"))
	assert.False(t, SupportedExtension("a"))
}
