package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInfersType(t *testing.T) {
	cases := []struct {
		name    string
		regions []string
		want    Type
	}{
		{name: "nil", regions: nil, want: TypeCountry},
		{name: "blank entries only", regions: []string{"", "  "}, want: TypeCountry},
		{name: "state codes", regions: []string{"RO", " sp "}, want: TypeState},
		{name: "city names", regions: []string{"Ji-Paraná", "Cacoal"}, want: TypeCity},
		{name: "mixed falls to city", regions: []string{"RO", "Cacoal"}, want: TypeCity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Parse(tc.regions).Type)
		})
	}
}

func TestEligibleByState(t *testing.T) {
	regions := []string{"RO", "SP"}
	assert.True(t, Eligible(regions, Location{City: "Ji-Paraná", State: "RO"}))
	assert.True(t, Eligible(regions, Location{City: "Campinas", State: " sp"}))
	assert.False(t, Eligible(regions, Location{City: "Manaus", State: "AM"}))
}

func TestEligibleByCityIgnoresAccentsAndCase(t *testing.T) {
	regions := []string{"Ouro Preto do Oeste", "Ji-Paraná"}
	assert.True(t, Eligible(regions, Location{City: "OURO PRETO DO OESTE", State: "RO"}))
	assert.True(t, Eligible(regions, Location{City: "ji-parana", State: "RO"}))
	assert.True(t, Eligible(regions, Location{City: "  Ji-Paraná  ", State: "RO"}))
	assert.False(t, Eligible(regions, Location{City: "Porto Velho", State: "RO"}))
}

func TestEligibleCountryCoversEverything(t *testing.T) {
	assert.True(t, Eligible(nil, Location{City: "Manaus", State: "AM"}))
	assert.True(t, Eligible([]string{}, Location{}))
}

func TestTwoLetterCityIsReadAsState(t *testing.T) {
	rule := Parse([]string{"Ré"})
	assert.Equal(t, TypeState, rule.Type)
	assert.False(t, rule.Allows(Location{City: "Ré", State: "RO"}))
}

func TestNormalizeCity(t *testing.T) {
	assert.Equal(t, "SAO PAULO", NormalizeCity("São   Paulo "))
	assert.Equal(t, "GOIANIA", NormalizeCity("Goiânia"))
	assert.Equal(t, "", NormalizeCity("   "))
}
