package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testEnv() map[string]interface{} {
	return map[string]interface{}{
		"input": map[string]interface{}{
			"user": "ada",
			"tags": []interface{}{"x", "y"},
		},
		"fetch": map[string]interface{}{
			"count": float64(42),
			"items": []interface{}{
				map[string]interface{}{"id": "first"},
				map[string]interface{}{"id": "second"},
			},
			"ok": true,
		},
	}
}

func TestWholeTokenPreservesType(t *testing.T) {
	r := New(nil)
	env := testEnv()

	assert.Equal(t, float64(42), r.Resolve("$fetch.count", env))
	assert.Equal(t, true, r.Resolve("$fetch.ok", env))
	assert.Equal(t, "ada", r.Resolve("$input.user", env))
	assert.Equal(t,
		map[string]interface{}{"id": "first"},
		r.Resolve("$fetch.items[0]", env))
}

func TestEmbeddedTokensStringify(t *testing.T) {
	r := New(nil)
	env := testEnv()

	assert.Equal(t, "user=ada count=42", r.Resolve("user=$input.user count=$fetch.count", env))
	// Non-string values embed as compact JSON
	assert.Equal(t, `got {"id":"second"}!`, r.Resolve(`got $fetch.items[1]!`, env))
}

func TestDollarEscape(t *testing.T) {
	r := New(nil)
	assert.Equal(t, "$input", r.Resolve("$$input", testEnv()))
	assert.Equal(t, "$", r.Resolve("$$", testEnv()))
	assert.Equal(t, "cost: $5", r.Resolve("cost: $$5", testEnv()))
}

func TestMissingReferenceResolvesToNull(t *testing.T) {
	r := New(nil)
	assert.Nil(t, r.Resolve("$nope.deep.path", testEnv()))
	// Embedded missing references become empty strings
	assert.Equal(t, "x=", r.Resolve("x=$nope", testEnv()))
}

func TestArrayIndexing(t *testing.T) {
	r := New(nil)
	assert.Equal(t, "x", r.Resolve("$input.tags[0]", testEnv()))
	assert.Nil(t, r.Resolve("$input.tags[9]", testEnv()))
}

func TestResolveParametersWalksNestedStructures(t *testing.T) {
	r := New(nil)
	params := map[string]interface{}{
		"url": "https://api/$input.user",
		"nested": map[string]interface{}{
			"count": "$fetch.count",
		},
		"list":    []interface{}{"$input.user", "literal"},
		"number":  float64(7),
		"literal": "no refs here",
	}

	resolved := r.ResolveParameters(params, testEnv())
	assert.Equal(t, "https://api/ada", resolved["url"])
	assert.Equal(t, float64(42), resolved["nested"].(map[string]interface{})["count"])
	assert.Equal(t, []interface{}{"ada", "literal"}, resolved["list"])
	assert.Equal(t, float64(7), resolved["number"])
	assert.Equal(t, "no refs here", resolved["literal"])
}
