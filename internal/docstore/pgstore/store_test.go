package pgstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandm-app/tandm/internal/docstore"
)

func TestBuildSelect(t *testing.T) {
	t.Run("equality with order and limit", func(t *testing.T) {
		sql, args, err := buildSelect("users", docstore.NewQuery().
			Where("email", docstore.OpEqual, "ada@example.com").
			Order("createdAt", docstore.Desc).
			Take(1))
		require.NoError(t, err)
		assert.Equal(t,
			"SELECT id, data, created_at FROM documents WHERE collection = $1"+
				" AND data->$2 = $3::jsonb ORDER BY data->$4 DESC NULLS FIRST, id LIMIT $5",
			sql)
		assert.Equal(t, []any{"users", "email", `"ada@example.com"`, "createdAt", 1}, args)
	})

	t.Run("array contains", func(t *testing.T) {
		sql, args, err := buildSelect("collectives", docstore.NewQuery().
			Where("members", docstore.OpArrayContains, "u1"))
		require.NoError(t, err)
		assert.Contains(t, sql, "data->$2 @> $3::jsonb")
		assert.Contains(t, sql, "ORDER BY id")
		assert.Equal(t, `["u1"]`, args[2])
	})

	t.Run("in", func(t *testing.T) {
		sql, args, err := buildSelect("users", docstore.NewQuery().
			Where("uid", docstore.OpIn, []string{"a", "b"}))
		require.NoError(t, err)
		assert.Contains(t, sql, "data->$2 = ANY($3::jsonb[])")
		assert.Equal(t, []string{`"a"`, `"b"`}, args[2])
	})

	t.Run("in rejects scalars and oversize lists", func(t *testing.T) {
		_, _, err := buildSelect("users", docstore.NewQuery().Where("uid", docstore.OpIn, "a"))
		assert.ErrorIs(t, err, docstore.ErrValidation)

		many := make([]string, docstore.MaxInValues+1)
		_, _, err = buildSelect("users", docstore.NewQuery().Where("uid", docstore.OpIn, many))
		assert.ErrorIs(t, err, docstore.ErrValidation)
	})
}

func TestSplitWrite(t *testing.T) {
	w, err := splitWrite(map[string]any{
		"title":      "t",
		"createdAt":  docstore.ServerTimestamp,
		"assignedTo": docstore.DeleteField,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"t"}`, w.fields)
	assert.Equal(t, []string{"createdAt"}, w.stamps)
	assert.Equal(t, []string{"assignedTo"}, w.deletes)
}
