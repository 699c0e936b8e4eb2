package reconcile

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePlate(t *testing.T) {
	tests := []struct {
		name  string
		plate string
		want  string
	}{
		{name: "upper case", plate: "ABC123", want: "abc123"},
		{name: "inner space", plate: "abc 123", want: "abc123"},
		{name: "punctuation", plate: "ABC-12.3", want: "abc123"},
		{name: "surrounding whitespace", plate: "\t SBA 1234 X \n", want: "sba1234x"},
		{name: "full width", plate: "ＡＢＣ１２３", want: "abc123"},
		{name: "cjk province prefix kept", plate: "京A·12345", want: "京a12345"},
		{name: "only separators", plate: " - . ", want: ""},
		{name: "empty", plate: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePlate(tt.plate))
		})
	}
}

func TestKeyOf(t *testing.T) {
	day := civil.Date{Year: 2024, Month: 5, Day: 1}

	t.Run("visually equivalent plates share a key", func(t *testing.T) {
		assert.Equal(t, KeyOf("ABC123", day), KeyOf("abc 123", day))
	})

	t.Run("different days do not", func(t *testing.T) {
		assert.NotEqual(t, KeyOf("ABC123", day), KeyOf("ABC123", day.AddDays(1)))
	})

	t.Run("string form", func(t *testing.T) {
		assert.Equal(t, "abc123@2024-05-01", KeyOf("ABC 123", day).String())
	})
}
