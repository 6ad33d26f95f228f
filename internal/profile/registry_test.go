package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfiles(t *testing.T) {
	r := Default()

	tests := []struct {
		year      int
		skip      int
		stateCol  int
		localCol  int
		localData bool
	}{
		{2012, 7, 2, 3, false},
		{2013, 9, 3, 4, false},
		{2015, 9, 3, 4, true},
		{2017, 7, 2, 3, true},
	}

	for _, tt := range tests {
		p, err := r.For(tt.year)
		require.NoError(t, err)
		assert.Equal(t, tt.skip, p.HeaderSkipRows, "year %d", tt.year)
		assert.Equal(t, types.LevelState, p.StateLocalColumns[tt.stateCol])
		assert.Equal(t, types.LevelLocal, p.StateLocalColumns[tt.localCol])
		assert.Equal(t, tt.localData, p.HasLocalData(), "year %d", tt.year)
		assert.Equal(t, 175, p.MaxDataRows)
	}

	p, _ := r.For(2015)
	l0, l1 := p.LevelHeaderRows()
	assert.Equal(t, 9, l0)
	assert.Equal(t, 13, l1)
	assert.Equal(t, "15slsstab1a.xlsx", p.Files.SummaryA)
	assert.Equal(t, "Fin_GID_2015.txt", p.Files.Directory)

	assert.Equal(t, []int{2012, 2013, 2014, 2015, 2016, 2017}, r.Years())
	assert.Equal(t, []int{2014, 2015, 2016, 2017}, r.LocalYears())
}

func TestUnsupportedYear(t *testing.T) {
	_, err := Default().For(2011)

	var yearErr *types.UnsupportedYearError
	require.True(t, errors.As(err, &yearErr))
	assert.Equal(t, 2011, yearErr.Year)
}

func TestNewRejectsBadProfiles(t *testing.T) {
	_, err := New(Profile{Year: 2020, HeaderRowCount: 5, StateLocalColumns: map[int]string{2: "State"}})
	assert.Error(t, err)

	good := Profile{Year: 2020, HeaderSkipRows: 7, HeaderRowCount: 5, StateLocalColumns: map[int]string{2: "State", 3: "Local"}}
	_, err = New(good, good)
	assert.Error(t, err)

	r, err := New(good)
	require.NoError(t, err)
	_, err = r.For(2020)
	assert.NoError(t, err)
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	content := `profiles:
  - year: 2018
    header_skip_rows: 7
    header_row_count: 5
    state_local_columns: {2: State, 3: Local}
    max_data_rows: 180
    files:
      summary_a: 18slsstab1a.xlsx
      summary_b: 18slsstab1b.xlsx
  - year: 2017
    files:
      unit_records: 2017FinEstDAT_reissue.txt
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r, err := Default().LoadFile(path)
	require.NoError(t, err)

	p18, err := r.For(2018)
	require.NoError(t, err)
	assert.Equal(t, 180, p18.MaxDataRows)
	assert.False(t, p18.HasLocalData())

	p17, err := r.For(2017)
	require.NoError(t, err)
	assert.Equal(t, "2017FinEstDAT_reissue.txt", p17.Files.UnitRecords)
	assert.Equal(t, 7, p17.HeaderSkipRows)
	assert.Equal(t, "Fin_GID_2017.txt", p17.Files.Directory)

	// the receiver is unchanged
	_, err = Default().For(2018)
	assert.Error(t, err)
}
