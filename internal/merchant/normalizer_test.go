package merchant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "lowercases", raw: "STARBUCKS", want: "starbucks"},
		{name: "strips store number", raw: "STARBUCKS #1234", want: "starbucks"},
		{name: "strips store marker", raw: "WALMART STORE 5543", want: "walmart"},
		{name: "strips paypal prefix", raw: "PAYPAL *SPOTIFY", want: "spotify"},
		{name: "strips square prefix", raw: "SQ *BLUE BOTTLE COFFEE", want: "blue bottle coffee"},
		{name: "strips tst prefix", raw: "TST* CHIPOTLE 0422", want: "chipotle"},
		{name: "strips trailing transaction id", raw: "UBER TRIP 884422", want: "uber trip"},
		{name: "strips legal suffix", raw: "Acme Co.", want: "acme"},
		{name: "collapses punctuation", raw: "7-ELEVEN", want: "7 eleven"},
		{name: "squeezes whitespace", raw: "  UBER    TRIP  ", want: "uber trip"},
		{name: "empty stays empty", raw: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalizeVariantsConverge(t *testing.T) {
	variants := []string{"UBER TRIP", "Uber Trip 99182", "uber   trip"}
	for _, v := range variants {
		assert.Equal(t, "uber trip", Normalize(v))
	}
}

func TestBeautify(t *testing.T) {
	assert.Equal(t, "Starbucks", Beautify("starbucks"))
	assert.Equal(t, "McDonald's", Beautify("mcdonalds"), "known merchants use the lookup table")
	assert.Equal(t, "7-Eleven", Beautify("7 eleven"))
	assert.Equal(t, "Blue Bottle Coffee", Beautify("blue bottle coffee"), "unknown merchants are title-cased")
}
