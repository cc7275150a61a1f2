package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"crlf", "Vergi No: 123\r\nÜnvan: ACME\r", "Vergi No: 123\nÜnvan: ACME"},
		{"tabs and runs of spaces", "Vergi No:\t\t123    456", "Vergi No: 123 456"},
		{"blank line runs collapse", "a\n\n\n\n\nb", "a\n\nb"},
		{"trailing spaces stripped", "a   \nb\t\n", "a\nb"},
		{"separator noise removed", "a\n_______\nb", "a\n\nb"},
		{"surrounding whitespace trimmed", "\n\n  metin  \n\n", "metin"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestNormalize_NFC(t *testing.T) {
	// u + combining diaeresis must compose to a single rune.
	decomposed := "u\u0308nvan"
	assert.Equal(t, "\u00fcnvan", Normalize(decomposed))
}

func TestFoldForSearch_TurkishCasing(t *testing.T) {
	// Dotted and dotless i fold differently under Turkish rules.
	assert.Equal(t, "imza", FoldForSearch("İMZA"))
	assert.Equal(t, "ımza", FoldForSearch("IMZA"))
	assert.Equal(t, "vergi dairesi", FoldForSearch("VERGİ DAİRESİ"))
}

func TestCueWindow(t *testing.T) {
	page := "Madde 1: Taraflar\nİmza: Mehmet Yılmaz\nParaf\nTarih: 01.01.2026"
	got := cueWindow(page)
	assert.Contains(t, got, "İmza: Mehmet Yılmaz")
	assert.Contains(t, got, "Paraf")
	assert.NotContains(t, got, "Tarih")

	assert.Empty(t, cueWindow(""))
}
