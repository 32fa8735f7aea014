package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaths(t *testing.T) {
	assert.Equal(t, "total", JoinPath("", "total"))
	assert.Equal(t, "lines[0].qty", JoinPath(IndexPath("lines", 0), "qty"))
	assert.Equal(t, "labels[ru]", IndexPath("labels", "ru"))

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"total", "total"},
		{"lines[0].qty", "lines.qty"},
		{"lines[*].tags[x]", "lines.tags"},
		{"lines[].qty", "lines.qty"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanPath(tt.in), tt.in)
	}
}

func TestForcedSet(t *testing.T) {
	fs := newForcedSet([]string{"lines[1].sku", "lines[*].note", "number", ""})

	assert.True(t, fs.has("lines[1].sku"))
	assert.False(t, fs.has("lines[0].sku"))
	assert.False(t, fs.has("lines.sku"))
	assert.True(t, fs.has("lines[0].note"))
	assert.True(t, fs.has("lines[7].note"))
	assert.True(t, fs.has("number"))
	assert.False(t, fs.has(""))

	plain := newForcedSet([]string{"lines.qty"})
	assert.True(t, plain.has("lines[0].qty"))
	assert.True(t, plain.has("lines[3].qty"))
	assert.False(t, plain.has("lines[0].sku"))
}

func TestCaptionPath(t *testing.T) {
	reg := registry(t, salesDSL)
	inv, ok := reg.Lookup("Invoice")
	require.True(t, ok)

	assert.Equal(t, "Invoice", CaptionPath(reg, inv, ""))
	assert.Equal(t, "Total", CaptionPath(reg, inv, "total"))
	assert.Equal(t, "lines / SKU", CaptionPath(reg, inv, "lines[2].sku"))
	assert.Equal(t, "customer / name", CaptionPath(reg, inv, "customer.name"))
	assert.Equal(t, "ghost / x", CaptionPath(reg, inv, "ghost.x"))
}

func TestFailuresHelpers(t *testing.T) {
	fs := Failures{
		newFailure(ErrRequired, "sales.Invoice", "total", "Total"),
		newFailure(ErrLength, "sales.Invoice", "number", "Number", 12),
	}
	assert.True(t, fs.HasCode(ErrLength))
	assert.False(t, fs.HasCode(ErrUsedBy))
	assert.Len(t, fs.ByField("number"), 1)
	assert.Equal(t, "sales.Invoice.number: Number: length 12 is out of range", fs[1].String())
	assert.Contains(t, fs.Error(), "validation failed (2)")

	ce := critical(ErrCycle, "t.Node", "children[0]", "entity visited twice on one path")
	assert.Equal(t, "critical: t.Node.children[0]: cyclic entity graph: entity visited twice on one path", ce.Error())
}
