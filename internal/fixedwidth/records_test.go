package fixedwidth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitLine(id, item string, amount int64, year int, flag string) string {
	return fmt.Sprintf("%-14s%-3s%12d%4d%s", id, item, amount, year, flag)
}

func TestLayoutWidths(t *testing.T) {
	assert.Equal(t, 34, UnitRecordLayout.Width())
	assert.Equal(t, 153, DirectoryLayout.Width())
	assert.Equal(t, 2, DirectoryLayout.Index("County name"))
	assert.Equal(t, -1, DirectoryLayout.Index("nope"))

	f := DirectoryLayout[DirectoryLayout.Index("Population")]
	assert.Equal(t, 14+64+35+2+3+5, f.Position)
	assert.Equal(t, 9, f.Length)
}

func TestSliceLoosePadsShortLines(t *testing.T) {
	values := DirectoryLayout.SliceLoose("01201001000000BIRMINGHAM CITY")
	require.Len(t, values, 14)
	assert.Equal(t, "01201001000000", values[0])
	assert.Equal(t, "BIRMINGHAM CITY", values[1])
	assert.Equal(t, "", values[2])
}

func TestParseRecord(t *testing.T) {
	rec, err := ParseRecord(unitLine("01201001000000", "E62", -1532, 2017, "R"), 2017)
	require.NoError(t, err)

	assert.Equal(t, "01201001000000", rec.EntityID)
	assert.Equal(t, "E62", rec.ItemCode)
	assert.True(t, decimal.NewFromInt(-1532).Equal(rec.Amount))
	assert.Equal(t, 2017, rec.DataYear)
	assert.Equal(t, types.Reported, rec.Flag)

	tests := map[string]string{
		"short":     "01201001000000E62   12",
		"amount":    unitLine("01201001000000", "E62", 0, 2017, "R")[:17] + "    12x45678" + "2017R",
		"flag":      unitLine("01201001000000", "E62", 10, 2017, "X"),
		"no id":     unitLine("", "E62", 10, 2017, "I"),
		"bad year":  unitLine("01201001000000", "E62", 10, 2017, "I")[:29] + "20x7I",
		"no item":   unitLine("01201001000000", "", 10, 2017, "I"),
	}
	for name, line := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRecord(line, 2017)
			assert.Error(t, err)
		})
	}
}

func TestRecordReaderSkipsMalformed(t *testing.T) {
	input := strings.Join([]string{
		unitLine("01201001000000", "A01", 100, 2017, "R"),
		"",
		"garbage",
		unitLine("01201001000000", "A02", 50, 2017, "I") + "\r",
		unitLine("01201002000000", "A01", 7, 2017, "Q"),
	}, "\n")

	r := NewRecordReader(strings.NewReader(input), "2017FinEstDAT.txt", 2017)
	records, err := ReadAllRecords(r)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "A02", records[1].ItemCode)
	assert.Equal(t, types.Imputed, records[1].Flag)
	assert.Equal(t, 2017, records[1].Year)

	assert.Equal(t, 2, r.Malformed())
	assert.Equal(t, 2, r.Parsed())
	require.Len(t, r.MalformedSamples(), 2)
	assert.Equal(t, 3, r.MalformedSamples()[0].Line)
	assert.Equal(t, 5, r.MalformedSamples()[1].Line)
	assert.NoError(t, r.Close())
}

func TestOpenRecordsIsRestartable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "units.txt")
	content := unitLine("01201001000000", "A01", 100, 2016, "R") + "\n" +
		unitLine("01201001000000", "A02", 50, 2016, "R") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	for i := 0; i < 2; i++ {
		r, err := OpenRecords(path, 2016)
		require.NoError(t, err)
		records, err := ReadAllRecords(r)
		require.NoError(t, err)
		assert.Len(t, records, 2)
		require.NoError(t, r.Close())
	}

	_, err := OpenRecords(filepath.Join(t.TempDir(), "missing.txt"), 2016)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSliceSource(t *testing.T) {
	src := NewSliceSource([]types.RawFinanceRecord{{EntityID: "a"}, {EntityID: "b"}})
	records, err := ReadAllRecords(src)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.False(t, src.Next())
}
