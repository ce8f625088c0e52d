package memory

import (
	"bytes"
	"hash/fnv"
	"sort"
	"strings"

	ddb "localcloud/domain/dynamodb"
	"localcloud/domain/dynamodb/expression"
	apperrors "localcloud/pkg/errors"
)

// QueryInput is the engine-level Query request.
type QueryInput struct {
	KeyCondition      string
	Filter            string
	Projection        string
	Names             map[string]string
	Values            map[string]ddb.AttributeValue
	Limit             int
	ExclusiveStartKey ddb.Item
	ScanIndexForward  *bool
	IndexName         string
	Select            string
}

// ScanInput is the engine-level Scan request.
type ScanInput struct {
	Filter            string
	Projection        string
	Names             map[string]string
	Values            map[string]ddb.AttributeValue
	Limit             int
	ExclusiveStartKey ddb.Item
	Segment           *int
	TotalSegments     *int
	Select            string
}

// PageOutput is the shared result shape of Query and Scan.
type PageOutput struct {
	Items            []ddb.Item
	Count            int
	ScannedCount     int
	LastEvaluatedKey ddb.Item
}

// Query runs a key-condition query over one partition in sort-key order.
func (e *TableEngine) Query(tableName string, input QueryInput) (*PageOutput, error) {
	state, err := e.table(tableName)
	if err != nil {
		return nil, err
	}
	if input.IndexName != "" {
		return nil, apperrors.Validationf("index %q queries are not supported", input.IndexName)
	}
	if input.KeyCondition == "" {
		return nil, apperrors.Validation("KeyConditionExpression must not be empty")
	}

	keyExpr, err := expression.ParseCondition(input.KeyCondition)
	if err != nil {
		return nil, apperrors.Validationf("invalid KeyConditionExpression: %v", err)
	}
	keyCondition, err := expression.ExtractKeyCondition(keyExpr, input.Names)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	filter, filterRefs, err := parseFilter(input.Filter)
	if err != nil {
		return nil, err
	}

	used := expression.CollectExprRefs(keyExpr)
	if filterRefs != nil {
		used.Merge(filterRefs)
	}
	if err := e.validateReadRefs(used, input.Projection, input.Names, input.Values); err != nil {
		return nil, err
	}

	state.mu.RLock()
	defer state.mu.RUnlock()
	schema := state.meta.Schema

	// Align the extracted condition with the schema: when both terms were
	// equalities the partition assignment may be swapped.
	if keyCondition.PartitionName != schema.Partition.Name &&
		keyCondition.SortName == schema.Partition.Name && keyCondition.SortOp == "=" {
		keyCondition.PartitionName, keyCondition.SortName = keyCondition.SortName, keyCondition.PartitionName
		keyCondition.PartitionRef, keyCondition.SortRefs[0] = keyCondition.SortRefs[0], keyCondition.PartitionRef
	}
	if keyCondition.PartitionName != schema.Partition.Name {
		return nil, apperrors.Validationf("query condition missed key schema element: %s", schema.Partition.Name)
	}
	if keyCondition.SortName != "" {
		if schema.Sort == nil || keyCondition.SortName != schema.Sort.Name {
			return nil, apperrors.Validationf("query condition missed key schema element: %s", keyCondition.SortName)
		}
	}
	if filter != nil {
		for _, root := range expression.CollectPathRoots(filter, input.Names) {
			if root == schema.Partition.Name || (schema.Sort != nil && root == schema.Sort.Name) {
				return nil, apperrors.Validationf("filter expression can not contain key attribute %s", root)
			}
		}
	}

	partitionValue, ok := input.Values[keyCondition.PartitionRef]
	if !ok {
		return nil, apperrors.Validationf("expression attribute value %s is not defined", keyCondition.PartitionRef)
	}
	if partitionValue.Type != schema.Partition.Type {
		return nil, apperrors.Validation("query key condition partition type mismatch")
	}

	entries := state.partitions[ddb.Key{Partition: partitionValue}.PartitionString()]
	forward := input.ScanIndexForward == nil || *input.ScanIndexForward

	ordered := make([]partitionEntry, len(entries))
	copy(ordered, entries)
	if !forward {
		for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	}

	// Resolve the exclusive start bound from ExclusiveStartKey. The key is
	// an ordering bound, not a membership assertion.
	var startKey *ddb.Key
	if input.ExclusiveStartKey != nil {
		extracted, err := schema.ExtractKey(input.ExclusiveStartKey)
		if err != nil {
			return nil, apperrors.Validation(err.Error())
		}
		startKey = &extracted
	}

	output := &PageOutput{}
	filterEnv := func(item ddb.Item) *expression.Env {
		return &expression.Env{Item: item, Names: input.Names, Values: input.Values}
	}

	for i, entry := range ordered {
		if startKey != nil && !pastStartBound(entry, startKey, forward) {
			continue
		}
		if !sortMatches(keyCondition, entry.sortValue, input.Values) {
			continue
		}

		item := state.items[entry.keyString]
		output.ScannedCount++

		keep := true
		if filter != nil {
			keep, err = expression.EvalCondition(filter, filterEnv(item))
			if err != nil {
				return nil, apperrors.Validation(err.Error())
			}
		}
		if keep {
			projected, err := projectItem(ddb.CloneItem(item), input.Projection, input.Names)
			if err != nil {
				return nil, err
			}
			output.Count++
			if !strings.EqualFold(input.Select, "COUNT") {
				output.Items = append(output.Items, projected)
			}
		}

		if input.Limit > 0 && output.ScannedCount == input.Limit {
			if queryHasMore(ordered[i+1:], keyCondition, input.Values) {
				key, _ := schema.ExtractKey(item)
				output.LastEvaluatedKey = schema.KeyItem(key)
			}
			break
		}
	}
	return output, nil
}

// pastStartBound reports whether an entry lies strictly beyond the
// ExclusiveStartKey in the iteration direction.
func pastStartBound(entry partitionEntry, startKey *ddb.Key, forward bool) bool {
	if entry.sortValue == nil || startKey.Sort == nil {
		if forward {
			return entry.keyString > startKey.String()
		}
		return entry.keyString < startKey.String()
	}
	cmp := ddb.CompareSort(*entry.sortValue, *startKey.Sort)
	if forward {
		return cmp > 0
	}
	return cmp < 0
}

// queryHasMore reports whether any remaining entry still matches the sort
// restriction.
func queryHasMore(rest []partitionEntry, keyCondition *expression.KeyCondition, values map[string]ddb.AttributeValue) bool {
	for _, entry := range rest {
		if sortMatches(keyCondition, entry.sortValue, values) {
			return true
		}
	}
	return false
}

// sortMatches applies the sort-key restriction to one entry.
func sortMatches(keyCondition *expression.KeyCondition, sortValue *ddb.AttributeValue, values map[string]ddb.AttributeValue) bool {
	if keyCondition.SortName == "" {
		return true
	}
	if sortValue == nil {
		return false
	}
	operand := func(ref string) (ddb.AttributeValue, bool) {
		av, ok := values[ref]
		return av, ok
	}

	switch keyCondition.SortOp {
	case "BETWEEN":
		lower, okL := operand(keyCondition.SortRefs[0])
		upper, okU := operand(keyCondition.SortRefs[1])
		if !okL || !okU {
			return false
		}
		cmpL, okL := sortValue.Compare(lower)
		cmpU, okU := sortValue.Compare(upper)
		return okL && okU && cmpL >= 0 && cmpU <= 0
	case "begins_with":
		prefix, ok := operand(keyCondition.SortRefs[0])
		if !ok {
			return false
		}
		switch {
		case sortValue.Type == ddb.TypeString && prefix.Type == ddb.TypeString:
			return strings.HasPrefix(sortValue.S, prefix.S)
		case sortValue.Type == ddb.TypeBinary && prefix.Type == ddb.TypeBinary:
			return bytes.HasPrefix(sortValue.B, prefix.B)
		default:
			return false
		}
	default:
		target, ok := operand(keyCondition.SortRefs[0])
		if !ok {
			return false
		}
		cmp, isComparable := sortValue.Compare(target)
		if !isComparable {
			return false
		}
		switch keyCondition.SortOp {
		case "=":
			return cmp == 0
		case "<":
			return cmp < 0
		case "<=":
			return cmp <= 0
		case ">":
			return cmp > 0
		case ">=":
			return cmp >= 0
		default:
			return false
		}
	}
}

// Scan iterates the whole table in stable key order, optionally sharded by
// segment.
func (e *TableEngine) Scan(tableName string, input ScanInput) (*PageOutput, error) {
	state, err := e.table(tableName)
	if err != nil {
		return nil, err
	}

	filter, filterRefs, err := parseFilter(input.Filter)
	if err != nil {
		return nil, err
	}
	if err := e.validateReadRefs(filterRefs, input.Projection, input.Names, input.Values); err != nil {
		return nil, err
	}
	if (input.Segment == nil) != (input.TotalSegments == nil) {
		return nil, apperrors.Validation("Segment and TotalSegments must be supplied together")
	}
	if input.TotalSegments != nil && (*input.TotalSegments < 1 || *input.Segment < 0 || *input.Segment >= *input.TotalSegments) {
		return nil, apperrors.Validation("invalid Segment/TotalSegments")
	}

	state.mu.RLock()
	defer state.mu.RUnlock()
	schema := state.meta.Schema

	keys := make([]string, 0, len(state.items))
	for keyString := range state.items {
		keys = append(keys, keyString)
	}
	sort.Strings(keys)

	startAfter := ""
	if input.ExclusiveStartKey != nil {
		startKey, err := schema.ExtractKey(input.ExclusiveStartKey)
		if err != nil {
			return nil, apperrors.Validation(err.Error())
		}
		startAfter = startKey.String()
	}

	output := &PageOutput{}
	for i, keyString := range keys {
		if startAfter != "" && keyString <= startAfter {
			continue
		}
		item := state.items[keyString]
		if input.TotalSegments != nil {
			key, err := schema.ExtractKey(item)
			if err != nil {
				continue
			}
			if segmentOf(key.PartitionString(), *input.TotalSegments) != *input.Segment {
				continue
			}
		}

		output.ScannedCount++

		keep := true
		if filter != nil {
			keep, err = expression.EvalCondition(filter, &expression.Env{
				Item: item, Names: input.Names, Values: input.Values,
			})
			if err != nil {
				return nil, apperrors.Validation(err.Error())
			}
		}
		if keep {
			projected, err := projectItem(ddb.CloneItem(item), input.Projection, input.Names)
			if err != nil {
				return nil, err
			}
			output.Count++
			if !strings.EqualFold(input.Select, "COUNT") {
				output.Items = append(output.Items, projected)
			}
		}

		if input.Limit > 0 && output.ScannedCount == input.Limit {
			if i < len(keys)-1 {
				key, _ := schema.ExtractKey(item)
				output.LastEvaluatedKey = schema.KeyItem(key)
			}
			break
		}
	}
	return output, nil
}

func segmentOf(partition string, totalSegments int) int {
	hash := fnv.New32a()
	hash.Write([]byte(partition))
	return int(hash.Sum32() % uint32(totalSegments))
}

func parseFilter(filterExpr string) (expression.Expr, *expression.Refs, error) {
	if filterExpr == "" {
		return nil, nil, nil
	}
	filter, err := expression.ParseCondition(filterExpr)
	if err != nil {
		return nil, nil, apperrors.Validationf("invalid FilterExpression: %v", err)
	}
	return filter, expression.CollectExprRefs(filter), nil
}

// validateReadRefs merges projection refs into the used set and runs the
// declared/used placeholder check.
func (e *TableEngine) validateReadRefs(used *expression.Refs, projection string, names map[string]string, values map[string]ddb.AttributeValue) error {
	if projection != "" {
		paths, err := expression.ParseProjection(projection)
		if err != nil {
			return apperrors.Validationf("invalid ProjectionExpression: %v", err)
		}
		projectionRefs := expression.CollectProjectionRefs(paths)
		if used != nil {
			projectionRefs.Merge(used)
		}
		used = projectionRefs
	}
	return validatePlaceholders(used, names, values)
}
