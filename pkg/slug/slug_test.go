package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"words", "Blue Shirt", "blue-shirt"},
		{"upper case", "ALL UPPER CASE", "all-upper-case"},
		{"punctuation", "Hello!!! World???", "hello-world"},
		{"symbols", "price: $100", "price-100"},
		{"ampersand", "Home & Kitchen", "home-kitchen"},
		{"surrounding space", "   hello world   ", "hello-world"},
		{"tabs", "hello\t\tworld", "hello-world"},
		{"hyphen runs", "a - - b", "a-b"},
		{"edge punctuation", "!hello!", "hello"},
		{"digits", "123", "123"},
		{"empty", "", ""},
		{"only symbols", "!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Generate(tt.input))
		})
	}
}

func TestGenerate_FoldsDiacritics(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Crème Brûlée", "creme-brulee"},
		{"Año Nuevo", "ano-nuevo"},
		{"Çocuk Ürünleri", "cocuk-urunleri"},
		{"Şeker Bayramı", "seker-bayrami"},
		{"İstanbul", "istanbul"},
		{"Straße", "strasse"},
		{"Smørrebrød", "smorrebrod"},
		{"Łódź", "lodz"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Generate(tt.input)
			assert.Equal(t, tt.want, got)
			assert.True(t, IsValid(got))
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		handle string
		valid  bool
	}{
		{"blue-shirt", true},
		{"a1", true},
		{"", false},
		{"Blue-Shirt", false},
		{"blue--shirt", false},
		{"-blue", false},
		{"blue shirt", false},
		{"crème", false},
	}
	for _, tt := range tests {
		t.Run(tt.handle, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValid(tt.handle))
		})
	}
}

func TestIsValid_Length(t *testing.T) {
	long := make([]byte, MaxLength+1)
	for i := range long {
		long[i] = 'a'
	}

	assert.True(t, IsValid(string(long[:MaxLength])))
	assert.False(t, IsValid(string(long)))
}
