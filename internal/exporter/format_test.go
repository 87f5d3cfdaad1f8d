package exporter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected string
	}{
		{name: "zero value", input: 0.0, expected: "0.0000"},
		{name: "rounds to four places", input: 1.234567, expected: "1.2346"},
		{name: "negative", input: -0.5, expected: "-0.5000"},
		{name: "not a number", input: math.NaN(), expected: "NaN"},
		{name: "positive infinity", input: math.Inf(1), expected: "+Inf"},
		{name: "negative infinity", input: math.Inf(-1), expected: "-Inf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatFloat(tt.input))
		})
	}
}

func TestFormatOptional(t *testing.T) {
	v := 2.5
	assert.Equal(t, "", formatOptional(nil))
	assert.Equal(t, "2.5000", formatOptional(&v))
}

func TestCellValue(t *testing.T) {
	assert.Equal(t, 1.5, cellValue(1.5))
	assert.Equal(t, "NaN", cellValue(math.NaN()))
	assert.Equal(t, "+Inf", cellValue(math.Inf(1)))
	assert.Equal(t, 1.235, round3(1.23456))
	assert.Equal(t, "NaN", round3(math.NaN()))
}
