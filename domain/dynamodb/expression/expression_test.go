package expression_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ddb "localcloud/domain/dynamodb"
	"localcloud/domain/dynamodb/expression"
)

func evalCondition(t *testing.T, condition string, env *expression.Env) bool {
	t.Helper()
	expr, err := expression.ParseCondition(condition)
	require.NoError(t, err)
	result, err := expression.EvalCondition(expr, env)
	require.NoError(t, err)
	return result
}

func TestComparisons(t *testing.T) {
	env := &expression.Env{
		Item: ddb.Item{
			"name":  ddb.String("alpha"),
			"count": ddb.Number("5"),
		},
		Values: map[string]ddb.AttributeValue{
			":n":     ddb.String("alpha"),
			":five":  ddb.Number("5.0"),
			":ten":   ddb.Number("10"),
			":other": ddb.String("beta"),
		},
	}

	assert.True(t, evalCondition(t, "name = :n", env))
	assert.True(t, evalCondition(t, "count = :five", env), "numbers compare as decimals")
	assert.True(t, evalCondition(t, "count < :ten", env))
	assert.True(t, evalCondition(t, "name <> :other", env))
	assert.False(t, evalCondition(t, "count >= :ten", env))
	// Comparisons with an absent attribute are false.
	assert.False(t, evalCondition(t, "missing = :n", env))
	assert.False(t, evalCondition(t, "NOT name = :n", env))
}

func TestLogicalOperators(t *testing.T) {
	env := &expression.Env{
		Item: ddb.Item{"a": ddb.Number("1"), "b": ddb.Number("2")},
		Values: map[string]ddb.AttributeValue{
			":one": ddb.Number("1"),
			":two": ddb.Number("2"),
		},
	}
	assert.True(t, evalCondition(t, "a = :one AND b = :two", env))
	assert.True(t, evalCondition(t, "a = :two OR b = :two", env))
	assert.True(t, evalCondition(t, "NOT a = :two", env))
	assert.True(t, evalCondition(t, "(a = :two OR b = :two) AND a = :one", env))
}

func TestFunctions(t *testing.T) {
	env := &expression.Env{
		Item: ddb.Item{
			"name": ddb.String("hello world"),
			"tags": ddb.StringSet("red", "blue"),
			"data": ddb.Binary([]byte{0x01, 0x02, 0x03}),
		},
		Values: map[string]ddb.AttributeValue{
			":prefix": ddb.String("hello"),
			":sub":    ddb.String("o w"),
			":red":    ddb.String("red"),
			":type":   ddb.String("SS"),
			":bin":    ddb.Binary([]byte{0x02, 0x03}),
		},
	}

	assert.True(t, evalCondition(t, "attribute_exists(name)", env))
	assert.False(t, evalCondition(t, "attribute_exists(missing)", env))
	assert.True(t, evalCondition(t, "attribute_not_exists(missing)", env))
	assert.True(t, evalCondition(t, "begins_with(name, :prefix)", env))
	assert.True(t, evalCondition(t, "contains(name, :sub)", env), "substring on strings")
	assert.True(t, evalCondition(t, "contains(tags, :red)", env), "membership on sets")
	assert.True(t, evalCondition(t, "contains(data, :bin)", env), "subsequence on binary")
	assert.True(t, evalCondition(t, "attribute_type(tags, :type)", env))
}

func TestSizeBetweenIn(t *testing.T) {
	env := &expression.Env{
		Item: ddb.Item{
			"name":  ddb.String("abcdef"),
			"count": ddb.Number("5"),
		},
		Values: map[string]ddb.AttributeValue{
			":three": ddb.Number("3"),
			":ten":   ddb.Number("10"),
			":four":  ddb.Number("4"),
			":five":  ddb.Number("5"),
			":six":   ddb.Number("6"),
		},
	}

	assert.True(t, evalCondition(t, "size(name) BETWEEN :three AND :ten", env))
	assert.True(t, evalCondition(t, "count BETWEEN :four AND :six", env))
	assert.False(t, evalCondition(t, "count BETWEEN :six AND :ten", env))
	assert.True(t, evalCondition(t, "count IN (:four, :five, :six)", env))
	assert.False(t, evalCondition(t, "count IN (:four, :six)", env))
}

func TestNestedPaths(t *testing.T) {
	env := &expression.Env{
		Item: ddb.Item{
			"doc": ddb.Map(map[string]ddb.AttributeValue{
				"items": ddb.List(ddb.String("first"), ddb.String("second")),
			}),
		},
		Names:  map[string]string{"#d": "doc"},
		Values: map[string]ddb.AttributeValue{":v": ddb.String("second")},
	}

	assert.True(t, evalCondition(t, "#d.items[1] = :v", env))
	assert.False(t, evalCondition(t, "#d.items[5] = :v", env), "out-of-range index is absent")
	assert.False(t, evalCondition(t, "#d.missing.deeper = :v", env), "missing chain is absent")
}

func TestParseErrors(t *testing.T) {
	_, err := expression.ParseCondition("a = ")
	assert.Error(t, err)
	_, err = expression.ParseCondition("a == :v")
	assert.Error(t, err)
	_, err = expression.ParseCondition("a = :v extra")
	assert.Error(t, err)
	_, err = expression.ParseCondition("size(a)")
	assert.Error(t, err, "bare operand is not a condition")
	_, err = expression.ParseCondition("unknown_fn(a)")
	assert.Error(t, err)
}

func TestLexErrors(t *testing.T) {
	_, err := expression.ParseCondition("a = :v @")
	assert.Error(t, err)
	_, err = expression.ParseCondition("a = :")
	assert.Error(t, err)
}

func applyUpdate(t *testing.T, item ddb.Item, updateExpr string, env *expression.Env) ddb.Item {
	t.Helper()
	update, err := expression.ParseUpdate(updateExpr)
	require.NoError(t, err)
	result, err := expression.ApplyUpdate(item, update, env)
	require.NoError(t, err)
	return result
}

func TestUpdateSet(t *testing.T) {
	item := ddb.Item{"n": ddb.Number("1"), "list": ddb.List(ddb.String("a"))}
	env := &expression.Env{
		Item: item,
		Values: map[string]ddb.AttributeValue{
			":one":  ddb.Number("1"),
			":zero": ddb.Number("0"),
			":more": ddb.List(ddb.String("b")),
		},
	}

	updated := applyUpdate(t, item, "SET n = if_not_exists(n, :zero) + :one, list = list_append(list, :more)", env)
	assert.True(t, ddb.Number("2").Equal(updated["n"]))
	require.Len(t, updated["list"].L, 2)
	assert.Equal(t, "b", updated["list"].L[1].S)

	// if_not_exists falls back when the path is absent.
	updated = applyUpdate(t, ddb.Item{}, "SET n = if_not_exists(n, :zero) + :one",
		&expression.Env{Item: ddb.Item{}, Values: env.Values})
	assert.True(t, ddb.Number("1").Equal(updated["n"]))
}

func TestUpdateSetReadsPreUpdateItem(t *testing.T) {
	item := ddb.Item{"a": ddb.Number("1"), "b": ddb.Number("2")}
	env := &expression.Env{Item: item}

	updated := applyUpdate(t, item, "SET a = b, b = a", env)
	assert.True(t, ddb.Number("2").Equal(updated["a"]))
	assert.True(t, ddb.Number("1").Equal(updated["b"]))
}

func TestUpdateRemove(t *testing.T) {
	item := ddb.Item{
		"gone": ddb.String("x"),
		"list": ddb.List(ddb.String("a"), ddb.String("b"), ddb.String("c")),
	}
	updated := applyUpdate(t, item, "REMOVE gone, list[1]", &expression.Env{Item: item})

	_, exists := updated["gone"]
	assert.False(t, exists)
	require.Len(t, updated["list"].L, 2)
	assert.Equal(t, "a", updated["list"].L[0].S)
	assert.Equal(t, "c", updated["list"].L[1].S)
}

func TestUpdateAdd(t *testing.T) {
	item := ddb.Item{"n": ddb.Number("10"), "tags": ddb.StringSet("a")}
	env := &expression.Env{
		Item: item,
		Values: map[string]ddb.AttributeValue{
			":five": ddb.Number("5"),
			":tags": ddb.StringSet("a", "b"),
		},
	}

	updated := applyUpdate(t, item, "ADD n :five, tags :tags", env)
	assert.True(t, ddb.Number("15").Equal(updated["n"]))
	assert.ElementsMatch(t, []string{"a", "b"}, updated["tags"].SS, "union preserves uniqueness")

	// ADD on an absent number starts from zero.
	updated = applyUpdate(t, ddb.Item{}, "ADD n :five", &expression.Env{Item: ddb.Item{}, Values: env.Values})
	assert.True(t, ddb.Number("5").Equal(updated["n"]))
}

func TestUpdateDelete(t *testing.T) {
	item := ddb.Item{"tags": ddb.StringSet("a", "b")}
	env := &expression.Env{
		Item:   item,
		Values: map[string]ddb.AttributeValue{":b": ddb.StringSet("b")},
	}
	updated := applyUpdate(t, item, "DELETE tags :b", env)
	assert.ElementsMatch(t, []string{"a"}, updated["tags"].SS)

	// Emptying a set removes the attribute entirely.
	env.Values[":both"] = ddb.StringSet("a", "b")
	updated = applyUpdate(t, item, "DELETE tags :both", env)
	_, exists := updated["tags"]
	assert.False(t, exists)
}

func TestUpdateParseErrors(t *testing.T) {
	_, err := expression.ParseUpdate("")
	assert.Error(t, err)
	_, err = expression.ParseUpdate("SET a = :v SET b = :w")
	assert.Error(t, err, "duplicate clause")
	_, err = expression.ParseUpdate("BOGUS a")
	assert.Error(t, err)
}

func TestCollectRefs(t *testing.T) {
	expr, err := expression.ParseCondition("#a.b = :v AND size(#c) > :w")
	require.NoError(t, err)
	refs := expression.CollectExprRefs(expr)

	assert.True(t, refs.Names["#a"])
	assert.True(t, refs.Names["#c"])
	assert.True(t, refs.Values[":v"])
	assert.True(t, refs.Values[":w"])
	assert.Len(t, refs.Names, 2)
	assert.Len(t, refs.Values, 2)
}

func TestProjection(t *testing.T) {
	item := ddb.Item{
		"id":   ddb.String("x"),
		"doc":  ddb.Map(map[string]ddb.AttributeValue{"a": ddb.Number("1"), "b": ddb.Number("2")}),
		"drop": ddb.Boolean(true),
	}
	paths, err := expression.ParseProjection("id, doc.a, missing")
	require.NoError(t, err)

	projected, err := expression.ApplyProjection(item, paths, nil)
	require.NoError(t, err)

	assert.Len(t, projected, 2)
	assert.Equal(t, "x", projected["id"].S)
	require.Equal(t, ddb.TypeMap, projected["doc"].Type)
	assert.Len(t, projected["doc"].M, 1)
	assert.True(t, ddb.Number("1").Equal(projected["doc"].M["a"]))
}

func TestExtractKeyCondition(t *testing.T) {
	expr, err := expression.ParseCondition("pk = :p AND sk BETWEEN :a AND :b")
	require.NoError(t, err)
	keyCondition, err := expression.ExtractKeyCondition(expr, nil)
	require.NoError(t, err)

	assert.Equal(t, "pk", keyCondition.PartitionName)
	assert.Equal(t, ":p", keyCondition.PartitionRef)
	assert.Equal(t, "sk", keyCondition.SortName)
	assert.Equal(t, "BETWEEN", keyCondition.SortOp)
	assert.Equal(t, []string{":a", ":b"}, keyCondition.SortRefs)

	expr, err = expression.ParseCondition("begins_with(sk, :x) AND pk = :p")
	require.NoError(t, err)
	keyCondition, err = expression.ExtractKeyCondition(expr, nil)
	require.NoError(t, err)
	assert.Equal(t, "pk", keyCondition.PartitionName)
	assert.Equal(t, "begins_with", keyCondition.SortOp)

	expr, err = expression.ParseCondition("pk < :p")
	require.NoError(t, err)
	_, err = expression.ExtractKeyCondition(expr, nil)
	assert.Error(t, err, "partition key requires equality")

	expr, err = expression.ParseCondition("pk = :p OR sk = :s")
	require.NoError(t, err)
	_, err = expression.ExtractKeyCondition(expr, nil)
	assert.Error(t, err)
}
