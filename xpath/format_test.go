package xpath_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-xslt/xpath"
)

func TestFormatNumberWith_DefaultFormat(t *testing.T) {
	df := xpath.DefaultDecimalFormat()

	require.Equal(t, "1,234.5", xpath.FormatNumberWith(1234.5, "#,##0.0##", df))
	require.Equal(t, "007", xpath.FormatNumberWith(7, "000", df))
	require.Equal(t, "-42.00", xpath.FormatNumberWith(-42, "0.00", df))
	require.Equal(t, "NaN", xpath.FormatNumberWith(nan(), "0.0", df))
}

func TestFormatNumberWith_CustomSeparators(t *testing.T) {
	df := xpath.DefaultDecimalFormat()
	df.DecimalSeparator = ','
	df.GroupingSeparator = '.'

	require.Equal(t, "1.234,50", xpath.FormatNumberWith(1234.5, "#.##0,00", df))
}

func nan() float64 {
	var zero float64
	return zero / zero
}
