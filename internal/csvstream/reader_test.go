package csvstream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r *Reader) []Row {
	t.Helper()
	var rows []Row
	for {
		row, ok := r.Next()
		if !ok {
			return rows
		}
		rows = append(rows, row)
	}
}

func TestReaderWithHeader(t *testing.T) {
	src := "barcode;price\n3001234567890;12,50\n3009876543210;8,00\n"
	r, err := New(strings.NewReader(src), Options{Delimiter: ';', HasHeader: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"barcode", "price"}, r.Headers())
	rows := readAll(t, r)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"3001234567890", "12,50"}, rows[0].Values)
	assert.Equal(t, 1, rows[0].Line)
	assert.Equal(t, 2, rows[1].Line)
}

func TestReaderPositionalHeaders(t *testing.T) {
	src := "3001234567890;12.50\n3009876543210;8.00\n"
	r, err := New(strings.NewReader(src), Options{HasHeader: false})
	require.NoError(t, err)

	assert.Equal(t, []string{"col_1", "col_2"}, r.Headers())
	rows := readAll(t, r)
	require.Len(t, rows, 2)
	assert.Equal(t, "3001234567890", rows[0].Values[0])
}

func TestReaderSniffsDelimiter(t *testing.T) {
	src := "barcode,price\n123,4.20\n"
	r, err := New(strings.NewReader(src), Options{Delimiter: ';', HasHeader: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"barcode", "price"}, r.Headers())
	rows := readAll(t, r)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"123", "4.20"}, rows[0].Values)
}

func TestReaderStripsBOM(t *testing.T) {
	src := "\xEF\xBB\xBFbarcode;price\n123;1.00\n"
	r, err := New(strings.NewReader(src), Options{Delimiter: ';', HasHeader: true})
	require.NoError(t, err)
	assert.Equal(t, "barcode", r.Headers()[0])
}

func TestReaderDecodesLatin1(t *testing.T) {
	// "libellé" in Windows-1252: e-acute is 0xE9, invalid as UTF-8.
	src := "libell\xe9;prix\nproduit;3.00\n"
	r, err := New(strings.NewReader(src), Options{Delimiter: ';', HasHeader: true})
	require.NoError(t, err)
	assert.Equal(t, "libellé", r.Headers()[0])
}

func TestReaderReportsColumnMismatchPerRow(t *testing.T) {
	src := "barcode;price\n123;1.00\nonly-one-field\n456;2.00\n"
	r, err := New(strings.NewReader(src), Options{Delimiter: ';', HasHeader: true})
	require.NoError(t, err)

	rows := readAll(t, r)
	require.Len(t, rows, 3)
	assert.NoError(t, rows[0].Err)
	assert.Error(t, rows[1].Err)
	assert.NoError(t, rows[2].Err)
	assert.Equal(t, []string{"456", "2.00"}, rows[2].Values)
}

func TestReaderRejectsEmptyInput(t *testing.T) {
	_, err := New(strings.NewReader(""), Options{})
	assert.Error(t, err)
}
