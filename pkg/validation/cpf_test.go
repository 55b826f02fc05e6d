package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidCPF(t *testing.T) {
	t.Run("accepts correct check digits", func(t *testing.T) {
		assert.True(t, ValidCPF("12345678909"))
		assert.True(t, ValidCPF("529.982.247-25"))
	})

	t.Run("rejects wrong check digits", func(t *testing.T) {
		assert.False(t, ValidCPF("12345678901"))
		assert.False(t, ValidCPF("52998224726"))
	})

	t.Run("rejects repeated digits even when the checksum holds", func(t *testing.T) {
		for d := '0'; d <= '9'; d++ {
			cpf := string([]rune{d, d, d, d, d, d, d, d, d, d, d})
			assert.False(t, ValidCPF(cpf), cpf)
		}
	})

	t.Run("rejects wrong length and non digits", func(t *testing.T) {
		assert.False(t, ValidCPF(""))
		assert.False(t, ValidCPF("1234567890"))
		assert.False(t, ValidCPF("123456789012"))
		assert.False(t, ValidCPF("1234567890a"))
	})
}

func TestFormatCPF(t *testing.T) {
	assert.Equal(t, "123.456.789-09", FormatCPF("12345678909"))
	assert.Equal(t, "123.456.789-09", FormatCPF("123.456.789-09"))
	assert.Equal(t, "123", FormatCPF("123"))
}
