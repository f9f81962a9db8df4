package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   Params
		want Params
	}{
		{name: "defaults", in: Params{}, want: Params{Limit: DefaultLimit}},
		{name: "caps limit", in: Params{Limit: 500, Offset: 10}, want: Params{Limit: MaxLimit, Offset: 10}},
		{name: "negative offset", in: Params{Limit: 5, Offset: -3}, want: Params{Limit: 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.Normalize())
		})
	}
}
