package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testDirectory() directory {
	return newDirectory([]ServiceProvider{
		{ID: "DR001", Name: "Dra. María Gómez", Role: "Oftalmología"},
		{ID: "DR002", Name: "Dr. Andrés Pérez", Role: "Optometría"},
		{ID: "BAR01", Name: "Julián", Role: "Barbero"},
	})
}

func TestFold(t *testing.T) {
	assert.Equal(t, "oftalmologia", Fold("OFTALMOLOGÍA"))
	assert.Equal(t, "andres perez", Fold("Andrés Pérez"))
}

func TestDirectorySearch(t *testing.T) {
	dir := testDirectory()
	ids := func(ps []ServiceProvider) []string {
		out := []string{}
		for _, p := range ps {
			out = append(out, p.ID)
		}
		return out
	}

	assert.Equal(t, []string{"DR001"}, ids(dir.search("gomez")))
	assert.Equal(t, []string{"DR001"}, ids(dir.search("maria oftalmologia")))
	assert.Equal(t, []string{"DR002"}, ids(dir.search("PÉREZ")))
	assert.Equal(t, []string{"BAR01"}, ids(dir.search("bar01")))
	assert.Equal(t, []string{"DR001", "DR002"}, ids(dir.search("dr")))
	assert.Empty(t, dir.search("gomez barbero"), "every token must match")
	assert.Empty(t, dir.search("   "))
}

func TestDirectoryByID(t *testing.T) {
	p, ok := testDirectory().byID("dr002")
	assert.True(t, ok)
	assert.Equal(t, "DR002", p.ID)

	_, ok = testDirectory().byID("nope")
	assert.False(t, ok)
}
