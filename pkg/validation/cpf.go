// Package validation holds input validators for identity data received from
// voting machines and the voter roll.
package validation

import "strings"

const cpfLength = 11

// NormalizeCPF strips the punctuation accepted in formatted CPF numbers.
func NormalizeCPF(cpf string) string {
	return strings.NewReplacer(".", "", "-", "", " ", "").Replace(cpf)
}

// ValidCPF reports whether cpf is a well-formed CPF: eleven digits, not all
// identical, with both check digits matching the mod-11 weighted sums.
func ValidCPF(cpf string) bool {
	cpf = NormalizeCPF(cpf)
	if len(cpf) != cpfLength {
		return false
	}

	digits := make([]int, cpfLength)
	allSame := true
	for i := 0; i < cpfLength; i++ {
		c := cpf[i]
		if c < '0' || c > '9' {
			return false
		}
		digits[i] = int(c - '0')
		if digits[i] != digits[0] {
			allSame = false
		}
	}
	if allSame {
		return false
	}

	return digits[9] == cpfCheckDigit(digits[:9]) && digits[10] == cpfCheckDigit(digits[:10])
}

// cpfCheckDigit weights the prefix from len+1 down to 2.
func cpfCheckDigit(prefix []int) int {
	sum := 0
	weight := len(prefix) + 1
	for _, d := range prefix {
		sum += d * weight
		weight--
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}

// FormatCPF renders an 11-digit CPF as 000.000.000-00. Other input is returned normalized.
func FormatCPF(cpf string) string {
	cpf = NormalizeCPF(cpf)
	if len(cpf) != cpfLength {
		return cpf
	}
	return cpf[0:3] + "." + cpf[3:6] + "." + cpf[6:9] + "-" + cpf[9:11]
}
