package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExternalID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"two words", "Harlan Tate", "harlan_tate"},
		{"periods and double space", "Dr. A.  B", "dr_a_b"},
		{"already a slug", "lila_hart", "lila_hart"},
		{"tabs and newlines", "Old\t\nMo", "old_mo"},
		{"no-break and ideographic space", "Lila\u00a0Hart\u3000Jr", "lila_hart_jr"},
		{"byte order mark splits", "Lila\ufeffHart", "lila_hart"},
		{"next line does not split", "Lila\u0085Hart", "lila\u0085hart"},
		{"empty", "", ""},
		{"only periods", "...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExternalID(tt.input))
			assert.Equal(t, ExternalID(tt.input), ExternalID(tt.input), "must be deterministic")
		})
	}
}

func TestNewNPCRef(t *testing.T) {
	ref := NewNPCRef("", "Lila Hart", "Bank", Profile{Role: "banker"})
	assert.NotEmpty(t, ref.ID, "local id should be assigned")
	assert.Equal(t, "lila_hart", ref.ExternalID)
	assert.Equal(t, "Bank", ref.Location)

	ref = NewNPCRef("npc-1", "Harlan Tate", "", Profile{})
	assert.Equal(t, "npc-1", ref.ID)
}

func TestLocationIndex(t *testing.T) {
	idx := NewLocationIndex([]Location{
		{Name: "Saloon", Center: Point{X: 688, Y: 384}},
		{Name: "Bank", Center: Point{X: 0, Y: 768}},
	})

	t.Run("validity", func(t *testing.T) {
		assert.True(t, idx.IsValid("Saloon"))
		assert.True(t, idx.IsValid("Bank"))
		assert.False(t, idx.IsValid("Jail"))
		assert.False(t, idx.IsValid(""))
	})

	t.Run("center to percent", func(t *testing.T) {
		x, y := idx.CenterToPercent("Saloon")
		assert.Equal(t, 50.0, x)
		assert.Equal(t, 50.0, y)

		x, y = idx.CenterToPercent("Bank")
		assert.Equal(t, 0.0, x)
		assert.Equal(t, 100.0, y)
	})

	t.Run("unknown location falls back to map center", func(t *testing.T) {
		x, y := idx.CenterToPercent("Nowhere")
		assert.Equal(t, 50.0, x)
		assert.Equal(t, 50.0, y)
	})

	t.Run("names keep load order", func(t *testing.T) {
		assert.Equal(t, []string{"Saloon", "Bank"}, idx.Names())
		assert.Equal(t, "Saloon", idx.First())
		assert.Equal(t, 2, idx.Len())
	})
}

func TestLocationIndex_Nil(t *testing.T) {
	var idx *LocationIndex
	assert.False(t, idx.IsValid("Saloon"))
	assert.Equal(t, "", idx.First())
	x, y := idx.CenterToPercent("Saloon")
	assert.Equal(t, 50.0, x)
	assert.Equal(t, 50.0, y)
}

func TestLocationIndex_DuplicateNames(t *testing.T) {
	idx := NewLocationIndex([]Location{
		{Name: "Saloon", Center: Point{X: 10, Y: 10}},
		{Name: "Saloon", Center: Point{X: 688, Y: 384}},
	})
	assert.Equal(t, 1, idx.Len())
	c, ok := idx.Center("Saloon")
	assert.True(t, ok)
	assert.Equal(t, Point{X: 688, Y: 384}, c)
}
