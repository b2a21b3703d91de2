package symbols

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortRangeAndStorage(t *testing.T) {
	tests := []struct {
		typ     string
		rng     string
		storage string
	}{
		{"", "", ""},
		{"[7:0]", "[7:0]", ""},
		{"logic [7:0]", "[7:0]", "logic"},
		{"wire signed [WIDTH-1:0]", "[WIDTH-1:0]", "wire signed"},
		{"reg", "", "reg"},
		{"logic [$clog2(N)-1:0]", "[$clog2(N)-1:0]", "logic"},
		{"logic [A[0]:0]", "[A[0]:0]", "logic"},
		{"logic [3:0][7:0]", "[3:0][7:0]", "logic"},
		{"logic [7:0", "", "logic"},
	}
	for _, tt := range tests {
		p := Port{Name: "x", Type: tt.typ}
		assert.Equal(t, tt.rng, p.Range(), "range of %q", tt.typ)
		assert.Equal(t, tt.storage, p.Storage(), "storage of %q", tt.typ)
	}
}

func TestDirectionJSON(t *testing.T) {
	p := Port{Name: "q", Direction: Output, Type: "[3:0]"}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"direction":"output"`)

	var back Port
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p, back)

	var bad Port
	err = json.Unmarshal([]byte(`{"name":"x","direction":"buffer"}`), &bad)
	assert.Error(t, err)
}

func TestParseDirection(t *testing.T) {
	d, ok := ParseDirection(" INOUT ")
	require.True(t, ok)
	assert.Equal(t, Inout, d)

	_, ok = ParseDirection("in")
	assert.False(t, ok)
}

func TestModuleCloneIsDeep(t *testing.T) {
	m := &Module{
		Name:      "top",
		Ports:     []Port{{Name: "clk"}},
		Instances: []Instance{{Type: "sub", Name: "u_sub"}},
	}
	c := m.Clone()
	c.Ports[0].Name = "changed"
	c.Instances = append(c.Instances, Instance{Type: "other"})

	assert.Equal(t, "clk", m.Ports[0].Name)
	assert.Len(t, m.Instances, 1)
	assert.Nil(t, (*Module)(nil).Clone())
}
