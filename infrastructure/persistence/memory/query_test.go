package memory_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ddb "localcloud/domain/dynamodb"
	"localcloud/infrastructure/persistence/memory"
	apperrors "localcloud/pkg/errors"
)

func seedEvents(t *testing.T, engine *memory.TableEngine) {
	t.Helper()
	createRangeTable(t, engine)
	for _, pk := range []string{"p1", "p2"} {
		for i := 1; i <= 9; i++ {
			item := ddb.Item{
				"pk":   ddb.String(pk),
				"sk":   ddb.Number(fmt.Sprintf("%d", i)),
				"even": ddb.Boolean(i%2 == 0),
			}
			_, err := engine.PutItem("events", item, memory.WriteOptions{})
			require.NoError(t, err)
		}
	}
}

func sortKeys(items []ddb.Item) []string {
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = item["sk"].N
	}
	return keys
}

func TestQueryRange(t *testing.T) {
	engine := newTableEngine(t)
	seedEvents(t, engine)

	output, err := engine.Query("events", memory.QueryInput{
		KeyCondition: "pk = :p AND sk BETWEEN :a AND :b",
		Values: map[string]ddb.AttributeValue{
			":p": ddb.String("p1"),
			":a": ddb.Number("3"),
			":b": ddb.Number("6"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4", "5", "6"}, sortKeys(output.Items),
		"exactly the closed range, ascending")
	assert.Nil(t, output.LastEvaluatedKey)
}

func TestQueryDescending(t *testing.T) {
	engine := newTableEngine(t)
	seedEvents(t, engine)

	forward := false
	output, err := engine.Query("events", memory.QueryInput{
		KeyCondition:     "pk = :p AND sk <= :max",
		ScanIndexForward: &forward,
		Values: map[string]ddb.AttributeValue{
			":p":   ddb.String("p1"),
			":max": ddb.Number("3"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2", "1"}, sortKeys(output.Items))
}

func TestQuerySortOperators(t *testing.T) {
	engine := newTableEngine(t)
	seedEvents(t, engine)

	values := map[string]ddb.AttributeValue{
		":p": ddb.String("p1"),
		":v": ddb.Number("7"),
	}

	output, err := engine.Query("events", memory.QueryInput{
		KeyCondition: "pk = :p AND sk > :v", Values: values,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"8", "9"}, sortKeys(output.Items))

	output, err = engine.Query("events", memory.QueryInput{
		KeyCondition: "pk = :p AND sk = :v", Values: values,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, sortKeys(output.Items))
}

func TestQueryBeginsWith(t *testing.T) {
	engine := newTableEngine(t)
	_, err := engine.CreateTable(&ddb.Table{
		Name: "paths",
		Schema: ddb.KeySchema{
			Partition: ddb.KeyAttribute{Name: "pk", Type: ddb.TypeString},
			Sort:      &ddb.KeyAttribute{Name: "sk", Type: ddb.TypeString},
		},
		Definitions: []ddb.AttributeDefinition{
			{Name: "pk", Type: ddb.TypeString},
			{Name: "sk", Type: ddb.TypeString},
		},
	})
	require.NoError(t, err)

	for _, sk := range []string{"a#1", "a#2", "b#1"} {
		_, err := engine.PutItem("paths", ddb.Item{"pk": ddb.String("p"), "sk": ddb.String(sk)}, memory.WriteOptions{})
		require.NoError(t, err)
	}

	output, err := engine.Query("paths", memory.QueryInput{
		KeyCondition: "pk = :p AND begins_with(sk, :prefix)",
		Values: map[string]ddb.AttributeValue{
			":p":      ddb.String("p"),
			":prefix": ddb.String("a#"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, output.Count)
}

func TestQueryFilterAndLimit(t *testing.T) {
	engine := newTableEngine(t)
	seedEvents(t, engine)

	output, err := engine.Query("events", memory.QueryInput{
		KeyCondition: "pk = :p",
		Filter:       "even = :true",
		Limit:        5,
		Values: map[string]ddb.AttributeValue{
			":p":    ddb.String("p1"),
			":true": ddb.Boolean(true),
		},
	})
	require.NoError(t, err)
	// Limit counts key matches before filtering.
	assert.Equal(t, 5, output.ScannedCount)
	assert.Equal(t, []string{"2", "4"}, sortKeys(output.Items))
	require.NotNil(t, output.LastEvaluatedKey)
	assert.Equal(t, "5", output.LastEvaluatedKey["sk"].N)
}

func TestQueryFilterRejectsKeyAttributes(t *testing.T) {
	engine := newTableEngine(t)
	seedEvents(t, engine)

	_, err := engine.Query("events", memory.QueryInput{
		KeyCondition: "pk = :p",
		Filter:       "sk > :v",
		Values: map[string]ddb.AttributeValue{
			":p": ddb.String("p1"),
			":v": ddb.Number("1"),
		},
	})
	assert.True(t, apperrors.IsCode(err, "ValidationException"))
}

func TestQueryPaginationRoundTrip(t *testing.T) {
	engine := newTableEngine(t)
	seedEvents(t, engine)

	input := memory.QueryInput{
		KeyCondition: "pk = :p",
		Values:       map[string]ddb.AttributeValue{":p": ddb.String("p1")},
	}

	full, err := engine.Query("events", input)
	require.NoError(t, err)

	var paged []ddb.Item
	pagedInput := input
	pagedInput.Limit = 2
	for {
		page, err := engine.Query("events", pagedInput)
		require.NoError(t, err)
		paged = append(paged, page.Items...)
		if page.LastEvaluatedKey == nil {
			break
		}
		pagedInput.ExclusiveStartKey = page.LastEvaluatedKey
	}

	assert.Equal(t, sortKeys(full.Items), sortKeys(paged),
		"chained pages equal the unlimited result")
}

func TestQueryCount(t *testing.T) {
	engine := newTableEngine(t)
	seedEvents(t, engine)

	output, err := engine.Query("events", memory.QueryInput{
		KeyCondition: "pk = :p",
		Select:       "COUNT",
		Values:       map[string]ddb.AttributeValue{":p": ddb.String("p1")},
	})
	require.NoError(t, err)
	assert.Equal(t, 9, output.Count)
	assert.Empty(t, output.Items)
}

func TestQueryRequiresPartitionEquality(t *testing.T) {
	engine := newTableEngine(t)
	seedEvents(t, engine)

	_, err := engine.Query("events", memory.QueryInput{
		KeyCondition: "sk > :v",
		Values:       map[string]ddb.AttributeValue{":v": ddb.Number("1")},
	})
	assert.True(t, apperrors.IsCode(err, "ValidationException"))
}

func TestScanWithFilterAndPagination(t *testing.T) {
	engine := newTableEngine(t)
	seedEvents(t, engine)

	full, err := engine.Scan("events", memory.ScanInput{
		Filter: "even = :true",
		Values: map[string]ddb.AttributeValue{":true": ddb.Boolean(true)},
	})
	require.NoError(t, err)
	assert.Equal(t, 8, full.Count, "four even rows in each of two partitions")
	assert.Equal(t, 18, full.ScannedCount)

	var paged int
	input := memory.ScanInput{
		Filter: "even = :true",
		Limit:  4,
		Values: map[string]ddb.AttributeValue{":true": ddb.Boolean(true)},
	}
	for {
		page, err := engine.Scan("events", input)
		require.NoError(t, err)
		paged += page.Count
		if page.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}
	assert.Equal(t, full.Count, paged)
}

func TestScanSegmentsPartition(t *testing.T) {
	engine := newTableEngine(t)
	seedEvents(t, engine)

	total := 0
	segments := 3
	for segment := 0; segment < segments; segment++ {
		seg := segment
		output, err := engine.Scan("events", memory.ScanInput{
			Segment:       &seg,
			TotalSegments: &segments,
		})
		require.NoError(t, err)
		total += output.Count
	}
	assert.Equal(t, 18, total, "segments cover the table exactly once")
}

func TestScanProjection(t *testing.T) {
	engine := newTableEngine(t)
	seedEvents(t, engine)

	output, err := engine.Scan("events", memory.ScanInput{
		Projection: "pk, even",
	})
	require.NoError(t, err)
	require.NotEmpty(t, output.Items)
	for _, item := range output.Items {
		_, hasSK := item["sk"]
		assert.False(t, hasSK)
		_, hasPK := item["pk"]
		assert.True(t, hasPK)
	}
}
