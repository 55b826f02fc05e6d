package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"nil", nil, nil},
		{"empty", []string{}, []string{}},
		{"trims", []string{" k1:9092", "k2:9092 "}, []string{"k1:9092", "k2:9092"}},
		{"keeps first of repeats", []string{"k2:9092", "k1:9092", "k2:9092"}, []string{"k2:9092", "k1:9092"}},
		{"drops blanks", []string{"k1:9092", "", "   "}, []string{"k1:9092"}},
		{"case sensitive", []string{"AC Raiz v5", "ac raiz v5"}, []string{"AC Raiz v5", "ac raiz v5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://n1|0xaa", "http://n2|0xbb"}, SplitList("http://n1|0xaa, http://n2|0xbb,http://n1|0xaa", ","))
	assert.Nil(t, SplitList("", ","))
	assert.Nil(t, SplitList(" , ,", ","))
}
