package greenops

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "123", FormatNumber(123))
	assert.Equal(t, "18,248", FormatNumber(18248))
	assert.Equal(t, "-1,234", FormatNumber(-1234))
	assert.Equal(t, "1,234,567,890", FormatNumber(1234567890))
}

func TestFormatFloat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		f         float64
		precision int
		want      string
	}{
		{18248.56, 0, "18,249"},
		{781.25, 1, "781.3"},
		{1234.567, 2, "1,234.57"},
		{-1234.5, 1, "-1,234.5"},
		{0.004, 2, "0.00"},
		{550.6608, 2, "550.66"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatFloat(tt.f, tt.precision))
		})
	}
}

func TestFormatKg(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "500.0 kg", FormatKg(500))
	assert.Equal(t, "2.53 t", FormatKg(2530))
}

func TestFormatLarge(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "999,999", FormatLarge(999_999))
	assert.Equal(t, "~1.5 million", FormatLarge(1_500_000))
	assert.Equal(t, "~2.0 billion", FormatLarge(2_000_000_000))
}
