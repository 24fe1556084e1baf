package poi

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/tour_router/pkg/geo"
)

const sample = `# Stuttgart sights
48.7784 9.1800 museum Staatsgalerie
48.7758 9.1829 castle Neues Schloss

48.7904 9.1913 museum Mercedes-Benz Museum
48.7785 9.1799 viewpoint Staatsgalerie
`

func readSample(t *testing.T) []POI {
	t.Helper()
	pois, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	return pois
}

func TestRead(t *testing.T) {
	pois := readSample(t)
	require.Len(t, pois, 4)
	assert.Equal(t, 0, pois[0].ID)
	assert.Equal(t, "Neues Schloss", pois[1].Name)
	assert.Equal(t, "castle", pois[1].Category)
	assert.Equal(t, 48.7758, pois[1].Position.Lat())
	assert.Equal(t, 9.1829, pois[1].Position.Lon())
	assert.Equal(t, "Mercedes-Benz Museum", pois[2].Name)
	assert.Equal(t, 3, pois[3].ID)
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"too few fields", "48.7 9.1 museum\n", 1},
		{"bad lat", "# c\nabc 9.1 museum X\n", 2},
		{"lat range", "91 9.1 museum X\n", 1},
		{"lon range", "48 181 museum X\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.src))
			var fe *FormatError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, tt.line, fe.Line)
		})
	}
}

func TestByName(t *testing.T) {
	idx := NewIndex(readSample(t))
	assert.Equal(t, 4, idx.Len())

	got := idx.ByName("  staatsgalerie ")
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].ID)
	assert.Equal(t, 3, got[1].ID)

	assert.Empty(t, idx.ByName("Fernsehturm"))
}

func TestWithinRadius(t *testing.T) {
	idx := NewIndex(readSample(t))

	got := idx.WithinRadius(48.7784, 9.1800, 50)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].ID, "exact position first")
	assert.Equal(t, 3, got[1].ID)

	assert.Len(t, idx.WithinRadius(48.7784, 9.1800, 5000), 4)
	assert.Empty(t, idx.WithinRadius(0, 0, 1000))
}

func TestNearest(t *testing.T) {
	idx := NewIndex(readSample(t))

	p, d, ok := idx.Nearest(48.7903, 9.1910, 1000)
	require.True(t, ok)
	assert.Equal(t, "Mercedes-Benz Museum", p.Name)
	assert.InDelta(t, geo.Haversine(48.7903, 9.1910, 48.7904, 9.1913), d, 1e-9)

	// About 2 km east of the museum, nothing else is closer.
	_, _, ok = idx.Nearest(48.7904, 9.1913+0.03, 1000)
	assert.False(t, ok)

	_, _, ok = NewIndex(nil).Nearest(48, 9, 1000)
	assert.False(t, ok)
}

func TestSearchAcrossAntimeridian(t *testing.T) {
	pois, err := Read(strings.NewReader("-16.80 179.9990 island East Cape\n-16.80 -179.9990 island West Cape\n"))
	require.NoError(t, err)
	idx := NewIndex(pois)

	got := idx.WithinRadius(-16.80, 179.9995, 1000)
	require.Len(t, got, 2)
	assert.Equal(t, "East Cape", got[0].Name)
	assert.Equal(t, "West Cape", got[1].Name)

	p, d, ok := idx.Nearest(-16.80, -179.9999, 500)
	require.True(t, ok)
	assert.Equal(t, "West Cape", p.Name)
	assert.Less(t, d, 200.0)

	only := NewIndex(pois[:1])
	p, _, ok = only.Nearest(-16.80, -179.9999, 500)
	require.True(t, ok, "found on the other side of 180")
	assert.Equal(t, "East Cape", p.Name)
}

func TestNearestMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	pois := make([]POI, 500)
	for i := range pois {
		pois[i] = POI{ID: i, Name: "p"}
		pois[i].Position[0] = 9.0 + rng.Float64()*0.4
		pois[i].Position[1] = 48.6 + rng.Float64()*0.3
	}
	idx := NewIndex(pois)

	for q := 0; q < 200; q++ {
		lat := 48.55 + rng.Float64()*0.4
		lon := 8.95 + rng.Float64()*0.5
		best, bestDist := -1, 0.0
		for _, p := range pois {
			d := geo.Haversine(lat, lon, p.Position.Lat(), p.Position.Lon())
			if best < 0 || d < bestDist {
				best, bestDist = p.ID, d
			}
		}
		got, d, ok := idx.Nearest(lat, lon, 100_000)
		require.True(t, ok)
		assert.InDelta(t, bestDist, d, 1e-6, "query %d: got %d want %d", q, got.ID, best)
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sights.txt")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	idx, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())

	_, err = Open(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
