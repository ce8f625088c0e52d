package memory

import (
	ddb "localcloud/domain/dynamodb"
	"localcloud/domain/dynamodb/expression"
	apperrors "localcloud/pkg/errors"
)

// WriteOptions carries the optional expression inputs of a mutating call.
type WriteOptions struct {
	Condition    string
	Names        map[string]string
	Values       map[string]ddb.AttributeValue
	ReturnValues string
}

// PutItem stores an item, optionally guarded by a condition expression
// evaluated against the pre-existing item. Returns the old item for
// ReturnValues=ALL_OLD.
func (e *TableEngine) PutItem(tableName string, item ddb.Item, opts WriteOptions) (ddb.Item, error) {
	state, err := e.table(tableName)
	if err != nil {
		return nil, err
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	key, err := state.meta.Schema.ExtractKey(item)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	keyString := key.String()
	existing := state.items[keyString]

	if err := e.checkCondition(opts, existing, nil); err != nil {
		return nil, err
	}

	state.items[keyString] = ddb.CloneItem(item)
	state.insertEntry(key)

	if opts.ReturnValues == "ALL_OLD" && existing != nil {
		return ddb.CloneItem(existing), nil
	}
	return nil, nil
}

// GetItem reads an item by key, optionally applying a projection.
func (e *TableEngine) GetItem(tableName string, keyItem ddb.Item, projection string, names map[string]string) (ddb.Item, error) {
	state, err := e.table(tableName)
	if err != nil {
		return nil, err
	}

	state.mu.RLock()
	key, err := state.meta.Schema.ExtractKey(keyItem)
	if err != nil {
		state.mu.RUnlock()
		return nil, apperrors.Validation(err.Error())
	}
	item := state.items[key.String()]
	if item != nil {
		item = ddb.CloneItem(item)
	}
	state.mu.RUnlock()

	if item == nil {
		return nil, nil
	}
	return projectItem(item, projection, names)
}

// UpdateItem applies an update expression, creating the item when absent.
// Key attributes may not be touched by any action.
func (e *TableEngine) UpdateItem(tableName string, keyItem ddb.Item, updateExpr string, opts WriteOptions) (ddb.Item, error) {
	state, err := e.table(tableName)
	if err != nil {
		return nil, err
	}
	if updateExpr == "" {
		return nil, apperrors.Validation("UpdateExpression must not be empty")
	}

	update, err := expression.ParseUpdate(updateExpr)
	if err != nil {
		return nil, apperrors.Validationf("invalid UpdateExpression: %v", err)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	key, err := state.meta.Schema.ExtractKey(keyItem)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if err := e.rejectKeyActions(state.meta, update, opts.Names); err != nil {
		return nil, err
	}

	keyString := key.String()
	existing := state.items[keyString]

	refs := expression.CollectUpdateRefs(update)
	if err := e.checkCondition(opts, existing, refs); err != nil {
		return nil, err
	}

	base := existing
	if base == nil {
		base = state.meta.Schema.KeyItem(key)
	}
	env := &expression.Env{Item: base, Names: opts.Names, Values: opts.Values}
	updated, err := expression.ApplyUpdate(base, update, env)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	state.items[keyString] = updated
	state.insertEntry(key)

	touched := touchedRoots(update, opts.Names)
	switch opts.ReturnValues {
	case "", "NONE":
		return nil, nil
	case "ALL_NEW":
		return ddb.CloneItem(updated), nil
	case "ALL_OLD":
		if existing == nil {
			return nil, nil
		}
		return ddb.CloneItem(existing), nil
	case "UPDATED_NEW":
		return filterRoots(updated, touched), nil
	case "UPDATED_OLD":
		return filterRoots(existing, touched), nil
	default:
		return nil, apperrors.Validationf("invalid ReturnValues %q", opts.ReturnValues)
	}
}

// DeleteItem removes an item by key, optionally guarded by a condition.
func (e *TableEngine) DeleteItem(tableName string, keyItem ddb.Item, opts WriteOptions) (ddb.Item, error) {
	state, err := e.table(tableName)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	key, err := state.meta.Schema.ExtractKey(keyItem)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	keyString := key.String()
	existing := state.items[keyString]

	if err := e.checkCondition(opts, existing, nil); err != nil {
		return nil, err
	}

	if existing != nil {
		delete(state.items, keyString)
		state.removeEntry(key)
	}

	if opts.ReturnValues == "ALL_OLD" && existing != nil {
		return ddb.CloneItem(existing), nil
	}
	return nil, nil
}

// BatchGet reads a set of keys from one table. Absent keys are omitted; every
// requested key is processed, so there are no unprocessed keys to report.
func (e *TableEngine) BatchGet(tableName string, keys []ddb.Item, projection string, names map[string]string) ([]ddb.Item, error) {
	var items []ddb.Item
	for _, keyItem := range keys {
		item, err := e.GetItem(tableName, keyItem, projection, names)
		if err != nil {
			return nil, err
		}
		if item != nil {
			items = append(items, item)
		}
	}
	return items, nil
}

// BatchWriteRequest is one element of a BatchWriteItem call: exactly one of
// Put or DeleteKey is set.
type BatchWriteRequest struct {
	Put       ddb.Item
	DeleteKey ddb.Item
}

// BatchWrite executes the requests for one table independently; failed
// requests are returned as unprocessed rather than failing the batch.
func (e *TableEngine) BatchWrite(tableName string, requests []BatchWriteRequest) []BatchWriteRequest {
	var unprocessed []BatchWriteRequest
	for _, request := range requests {
		var err error
		if request.Put != nil {
			_, err = e.PutItem(tableName, request.Put, WriteOptions{})
		} else {
			_, err = e.DeleteItem(tableName, request.DeleteKey, WriteOptions{})
		}
		if err != nil {
			unprocessed = append(unprocessed, request)
		}
	}
	return unprocessed
}

// checkCondition parses and evaluates a condition expression against the
// existing item (or an empty one). extraRefs are placeholder usages from
// sibling expressions in the same request, merged before the unused check.
func (e *TableEngine) checkCondition(opts WriteOptions, existing ddb.Item, extraRefs *expression.Refs) error {
	used := extraRefs
	var condition expression.Expr
	if opts.Condition != "" {
		var err error
		condition, err = expression.ParseCondition(opts.Condition)
		if err != nil {
			return apperrors.Validationf("invalid ConditionExpression: %v", err)
		}
		condRefs := expression.CollectExprRefs(condition)
		if used != nil {
			condRefs.Merge(used)
		}
		used = condRefs
	}

	if err := validatePlaceholders(used, opts.Names, opts.Values); err != nil {
		return err
	}

	if condition == nil {
		return nil
	}
	item := existing
	if item == nil {
		item = ddb.Item{}
	}
	ok, err := expression.EvalCondition(condition, &expression.Env{
		Item: item, Names: opts.Names, Values: opts.Values,
	})
	if err != nil {
		return apperrors.Validation(err.Error())
	}
	if !ok {
		return apperrors.ConditionalCheckFailed()
	}
	return nil
}

// rejectKeyActions fails when any update action path is rooted at a key
// attribute.
func (e *TableEngine) rejectKeyActions(meta *ddb.Table, update *expression.UpdateExpression, names map[string]string) error {
	keyNames := map[string]bool{meta.Schema.Partition.Name: true}
	if meta.Schema.Sort != nil {
		keyNames[meta.Schema.Sort.Name] = true
	}
	for _, root := range touchedRoots(update, names) {
		if keyNames[root] {
			return apperrors.Validationf("cannot update attribute %s: it is part of the key", root)
		}
	}
	return nil
}

// touchedRoots lists the distinct top-level attribute names the update
// writes, with name placeholders resolved.
func touchedRoots(update *expression.UpdateExpression, names map[string]string) []string {
	var paths []expression.Path
	for _, action := range update.Set {
		paths = append(paths, action.Path)
	}
	paths = append(paths, update.Remove...)
	for _, action := range update.Add {
		paths = append(paths, action.Path)
	}
	for _, action := range update.Delete {
		paths = append(paths, action.Path)
	}

	seen := map[string]bool{}
	var roots []string
	for _, path := range paths {
		if len(path) == 0 {
			continue
		}
		root := path[0].Ident
		if path[0].NameRef != "" {
			root = names[path[0].NameRef]
		}
		if root != "" && !seen[root] {
			seen[root] = true
			roots = append(roots, root)
		}
	}
	return roots
}

// filterRoots keeps only the named top-level attributes.
func filterRoots(item ddb.Item, roots []string) ddb.Item {
	if item == nil {
		return nil
	}
	out := ddb.Item{}
	for _, root := range roots {
		if value, ok := item[root]; ok {
			out[root] = value.Clone()
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// validateItem checks every attribute value structurally.
func validateItem(item ddb.Item) error {
	if len(item) == 0 {
		return apperrors.Validation("item must not be empty")
	}
	for name, value := range item {
		if err := value.Validate(); err != nil {
			return apperrors.Validationf("attribute %q: %v", name, err)
		}
	}
	return nil
}

// validatePlaceholders enforces that used and declared placeholder sets
// match exactly.
func validatePlaceholders(used *expression.Refs, names map[string]string, values map[string]ddb.AttributeValue) error {
	usedNames := map[string]bool{}
	usedValues := map[string]bool{}
	if used != nil {
		usedNames = used.Names
		usedValues = used.Values
	}

	for name := range usedNames {
		if _, ok := names[name]; !ok {
			return apperrors.Validationf("expression attribute name %s is not defined", name)
		}
	}
	for value := range usedValues {
		if _, ok := values[value]; !ok {
			return apperrors.Validationf("expression attribute value %s is not defined", value)
		}
	}
	for name := range names {
		if !usedNames[name] {
			return apperrors.Validationf("expression attribute name %s is declared but never used", name)
		}
	}
	for value := range values {
		if !usedValues[value] {
			return apperrors.Validationf("expression attribute value %s is declared but never used", value)
		}
	}
	for _, value := range values {
		if err := value.Validate(); err != nil {
			return apperrors.Validation(err.Error())
		}
	}
	return nil
}

// projectItem applies an optional projection expression.
func projectItem(item ddb.Item, projection string, names map[string]string) (ddb.Item, error) {
	if projection == "" {
		return item, nil
	}
	paths, err := expression.ParseProjection(projection)
	if err != nil {
		return nil, apperrors.Validationf("invalid ProjectionExpression: %v", err)
	}
	projected, err := expression.ApplyProjection(item, paths, names)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	return projected, nil
}
