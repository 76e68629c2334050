package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	md "wuyrush.io/serendipity/models"
)

func pin(id string, lat, lon float64) md.Pin {
	return md.Pin{ID: id, Latitude: lat, Longitude: lon}
}

func ids(c md.Cluster) []string {
	var out []string
	for _, m := range c.Members {
		out = append(out, m.ID)
	}
	return out
}

func TestGroup(t *testing.T) {
	tcs := []struct {
		name     string
		pins     []md.Pin
		expected [][]string
	}{
		{
			name:     "Empty",
			pins:     nil,
			expected: nil,
		},
		{
			name: "NearPairAndLoner",
			pins: []md.Pin{
				pin("a", 0, 0),
				pin("b", 0, 0.00003),
				pin("c", 0, 0.001),
			},
			expected: [][]string{{"a", "b"}, {"c"}},
		},
		{
			// b and c are both within 4m of a but 6.7m apart
			name: "SeedDecidesMembership",
			pins: []md.Pin{
				pin("a", 0, 0),
				pin("b", 0, -0.00003),
				pin("c", 0, 0.00003),
			},
			expected: [][]string{{"a", "b", "c"}},
		},
		{
			// seeding from b first leaves c out of reach
			name: "OrderIsTheTieBreak",
			pins: []md.Pin{
				pin("b", 0, -0.00003),
				pin("a", 0, 0),
				pin("c", 0, 0.00003),
			},
			expected: [][]string{{"b", "a"}, {"c"}},
		},
	}
	for _, c := range tcs {
		t.Run(c.name, func(t *testing.T) {
			cs := Group(c.pins, 4)
			var actual [][]string
			for _, cl := range cs {
				actual = append(actual, ids(cl))
				assert.Equal(t, len(cl.Members), cl.Count())
			}
			assert.Equal(t, c.expected, actual)
		})
	}
}

func TestGroup_Centroid(t *testing.T) {
	cs := Group([]md.Pin{pin("a", 0, 0), pin("b", 0, 0.00003)}, 4)
	require.Len(t, cs, 1)
	assert.InDelta(t, 0, cs[0].Latitude, 1e-12)
	assert.InDelta(t, 0.000015, cs[0].Longitude, 1e-12)
}

func TestGroup_Idempotent(t *testing.T) {
	pins := []md.Pin{pin("a", 1, 1), pin("b", 1, 1.00002), pin("c", 1.00002, 1), pin("d", 1, 1.01)}
	assert.Equal(t, Group(pins, 4), Group(pins, 4))
}
