package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatch(t *testing.T) {
	t.Run("keep leaves fields untouched", func(t *testing.T) {
		var p Patch[string]
		fields := map[string]any{}
		p.Put(fields, "assignedTo")
		assert.Empty(t, fields)
		assert.False(t, p.Changed())

		cur := "u1"
		ptr := &cur
		p.ApplyPtr(&ptr)
		assert.Equal(t, "u1", *ptr)
	})

	t.Run("set", func(t *testing.T) {
		p := Set("u2")
		fields := map[string]any{}
		p.Put(fields, "assignedTo")
		assert.Equal(t, "u2", fields["assignedTo"])

		v, ok := p.Value()
		assert.True(t, ok)
		assert.Equal(t, "u2", v)

		var ptr *string
		p.ApplyPtr(&ptr)
		assert.Equal(t, "u2", *ptr)
	})

	t.Run("clear", func(t *testing.T) {
		p := Clear[string]()
		fields := map[string]any{}
		p.Put(fields, "assignedTo")
		assert.True(t, IsDeleteField(fields["assignedTo"]))
		assert.True(t, p.Cleared())

		cur := "u1"
		ptr := &cur
		p.ApplyPtr(&ptr)
		assert.Nil(t, ptr)

		title := "x"
		Clear[string]().Apply(&title)
		assert.Equal(t, "", title)
	})

	t.Run("set or clear", func(t *testing.T) {
		v := "u3"
		_, ok := SetOrClear(&v).Value()
		assert.True(t, ok)
		assert.True(t, SetOrClear[string](nil).Cleared())
	})

	t.Run("put with encoder", func(t *testing.T) {
		fields := map[string]any{}
		Set(3).PutWith(fields, "n", func(v int) any { return v * 2 })
		assert.Equal(t, 6, fields["n"])
	})
}

func TestQueryBuilderCopies(t *testing.T) {
	base := NewQuery().Where("collectiveId", OpEqual, "c1")
	a := base.Where("status", OpEqual, "active").Order("createdAt", Desc)
	b := base.Take(1)

	assert.Len(t, base.Filters, 1)
	assert.Len(t, a.Filters, 2)
	assert.Equal(t, "createdAt", a.OrderBy)
	assert.Equal(t, Desc, a.Direction)
	assert.Len(t, b.Filters, 1)
	assert.Equal(t, 1, b.Limit)
}
