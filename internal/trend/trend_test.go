package trend

import (
	"math"
	"testing"

	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   string
	}{
		{"empty", nil, ""},
		{"rising", []float64{0, 50, 100}, "0{0,50,100}100"},
		{"flat", []float64{5, 5, 5}, "5{0,0,0}5"},
		{"single", []float64{42.9}, "42{0}42"},
		{"truncates", []float64{10, 12.9, 13}, "10{0,96,100}13"},
		{"negative raw", []float64{-7.8, 2}, "-7{0,100}2"},
		{"nan", []float64{1, math.NaN(), 3}, "1{0,0,100}3"},
		{"documented example", []float64{8534, 8933, 8855, 8992, 8948, 9226}, "8534{0,57,46,66,59,100}9226"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.values))
		})
	}
}

func TestEncodeDecimals(t *testing.T) {
	got := EncodeDecimals([]decimal.Decimal{decimal.NewFromInt(100), decimal.NewFromInt(200)})
	assert.Equal(t, "100{0,100}200", got)
}

func TestForWideFillsMissingYears(t *testing.T) {
	report := types.WideReport{
		Years: []int{2016, 2017},
		Rows: []types.WideRow{
			{
				Amount:   map[int]decimal.Decimal{2016: decimal.NewFromInt(10), 2017: decimal.NewFromInt(20)},
				Observed: map[int]bool{2016: true, 2017: true},
			},
			{
				Amount:   map[int]decimal.Decimal{2017: decimal.NewFromInt(30)},
				Observed: map[int]bool{2017: true},
			},
		},
	}

	got := ForWide(report, types.MetricAmount, []int{2015, 2016, 2017})
	assert.Equal(t, []string{"0{0,50,100}20", "0{0,0,100}30"}, got)
}
