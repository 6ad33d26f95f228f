// =============================================================================
// govfin - Trend Encoder
// =============================================================================
//
// Encodes a multi-year series as the compact sparkline string read by the
// dashboard's sparkline renderer:
//
//	<first>{v1,v2,...,vn}<last>
//
//	first, last   the raw first and last values, truncated toward zero
//	v1..vn        (x - min) / (max - min) * 100, truncated toward zero;
//	              0 when max == min or x is NaN
//
// Example: 8534{0,57,46,66,59,100}9226
//
// The format is a fixed contract. Values are truncated, never rounded.
//
// =============================================================================

package trend

import (
	"math"
	"strconv"
	"strings"

	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
)

// Encode returns the sparkline encoding of values. An empty series encodes
// as "".
func Encode(values []float64) string {
	if len(values) == 0 {
		return ""
	}

	lo, hi := bounds(values)
	span := hi - lo

	var b strings.Builder
	b.WriteString(strconv.FormatInt(truncate(values[0]), 10))
	b.WriteByte('{')
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		n := int64(0)
		if span != 0 && !math.IsNaN(v) {
			n = truncate((v - lo) / span * 100)
		}
		b.WriteString(strconv.FormatInt(n, 10))
	}
	b.WriteByte('}')
	b.WriteString(strconv.FormatInt(truncate(values[len(values)-1]), 10))
	return b.String()
}

// EncodeDecimals encodes a series of decimal amounts.
func EncodeDecimals(values []decimal.Decimal) string {
	fs := make([]float64, len(values))
	for i, v := range values {
		fs[i] = v.InexactFloat64()
	}
	return Encode(fs)
}

// ForWide encodes one metric of every row of a wide report over the given
// years. Years the report does not hold read as zero. The result is
// aligned with report.Rows.
func ForWide(report types.WideReport, metric types.Metric, years []int) []string {
	out := make([]string, len(report.Rows))
	series := make([]decimal.Decimal, len(years))
	for i, row := range report.Rows {
		for j, year := range years {
			series[j] = row.Value(metric, year)
		}
		out[i] = EncodeDecimals(series)
	}
	return out
}

// bounds returns min and max ignoring NaN. A series of only NaN has
// bounds 0, 0.
func bounds(values []float64) (lo, hi float64) {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return 0, 0
	}
	return floats.Min(clean), floats.Max(clean)
}

func truncate(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int64(math.Trunc(v))
}
