package expression

import (
	"bytes"
	"fmt"

	ddb "localcloud/domain/dynamodb"
)

// ApplyUpdate runs an update expression against item and returns the updated
// copy. Every action reads from the pre-update item, so
// `SET a = b, b = a` swaps.
func ApplyUpdate(item ddb.Item, update *UpdateExpression, env *Env) (ddb.Item, error) {
	original := &Env{Item: item, Names: env.Names, Values: env.Values}
	result := ddb.CloneItem(item)
	if result == nil {
		result = ddb.Item{}
	}

	for _, action := range update.Set {
		newValue, err := evalSetOperand(action.Value, original)
		if err != nil {
			return nil, err
		}
		steps, err := resolvePathNames(action.Path, env.Names)
		if err != nil {
			return nil, err
		}
		if err := setAtPath(result, steps, newValue); err != nil {
			return nil, err
		}
	}

	for _, path := range update.Remove {
		steps, err := resolvePathNames(path, env.Names)
		if err != nil {
			return nil, err
		}
		if err := removeAtPath(result, steps); err != nil {
			return nil, err
		}
	}

	for _, action := range update.Add {
		operand, ok := env.Values[action.Ref]
		if !ok {
			return nil, fmt.Errorf("value placeholder %s is not defined", action.Ref)
		}
		steps, err := resolvePathNames(action.Path, env.Names)
		if err != nil {
			return nil, err
		}
		existing, present, err := ResolvePath(action.Path, original)
		if err != nil {
			return nil, err
		}
		merged, err := applyAdd(existing, present, operand)
		if err != nil {
			return nil, err
		}
		if err := setAtPath(result, steps, merged); err != nil {
			return nil, err
		}
	}

	for _, action := range update.Delete {
		operand, ok := env.Values[action.Ref]
		if !ok {
			return nil, fmt.Errorf("value placeholder %s is not defined", action.Ref)
		}
		steps, err := resolvePathNames(action.Path, env.Names)
		if err != nil {
			return nil, err
		}
		existing, present, err := ResolvePath(action.Path, original)
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		remaining, removeAttr, err := applyDelete(existing, operand)
		if err != nil {
			return nil, err
		}
		if removeAttr {
			if err := removeAtPath(result, steps); err != nil {
				return nil, err
			}
		} else if err := setAtPath(result, steps, remaining); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// evalSetOperand evaluates a SET right-hand side against the pre-update item.
func evalSetOperand(operand SetOperand, env *Env) (ddb.AttributeValue, error) {
	switch node := operand.(type) {
	case *SetValueRef:
		av, ok := env.Values[node.Ref]
		if !ok {
			return ddb.AttributeValue{}, fmt.Errorf("value placeholder %s is not defined", node.Ref)
		}
		return av, nil

	case *SetPath:
		av, present, err := ResolvePath(node.Path, env)
		if err != nil {
			return ddb.AttributeValue{}, err
		}
		if !present {
			return ddb.AttributeValue{}, fmt.Errorf("document path %s does not exist", node.Path)
		}
		return av, nil

	case *SetIfNotExists:
		av, present, err := ResolvePath(node.Path, env)
		if err != nil {
			return ddb.AttributeValue{}, err
		}
		if present {
			return av, nil
		}
		return evalSetOperand(node.Default, env)

	case *SetListAppend:
		first, err := evalSetOperand(node.A, env)
		if err != nil {
			return ddb.AttributeValue{}, err
		}
		second, err := evalSetOperand(node.B, env)
		if err != nil {
			return ddb.AttributeValue{}, err
		}
		if first.Type != ddb.TypeList || second.Type != ddb.TypeList {
			return ddb.AttributeValue{}, fmt.Errorf("list_append requires two lists")
		}
		combined := make([]ddb.AttributeValue, 0, len(first.L)+len(second.L))
		combined = append(combined, first.L...)
		combined = append(combined, second.L...)
		return ddb.List(combined...), nil

	case *SetArithmetic:
		left, err := evalSetOperand(node.Left, env)
		if err != nil {
			return ddb.AttributeValue{}, err
		}
		right, err := evalSetOperand(node.Right, env)
		if err != nil {
			return ddb.AttributeValue{}, err
		}
		if left.Type != ddb.TypeNumber || right.Type != ddb.TypeNumber {
			return ddb.AttributeValue{}, fmt.Errorf("arithmetic requires number operands")
		}
		var sum string
		if node.Op == "+" {
			sum, err = ddb.AddNumbers(left.N, right.N)
		} else {
			sum, err = ddb.SubNumbers(left.N, right.N)
		}
		if err != nil {
			return ddb.AttributeValue{}, err
		}
		return ddb.Number(sum), nil

	default:
		return ddb.AttributeValue{}, fmt.Errorf("unknown SET operand %T", operand)
	}
}

// applyAdd implements ADD: numeric addition on N (absent treated as 0),
// set union on set types (absent treated as empty).
func applyAdd(existing ddb.AttributeValue, present bool, operand ddb.AttributeValue) (ddb.AttributeValue, error) {
	switch operand.Type {
	case ddb.TypeNumber:
		if !present {
			return operand, nil
		}
		if existing.Type != ddb.TypeNumber {
			return ddb.AttributeValue{}, fmt.Errorf("ADD requires a number attribute")
		}
		sum, err := ddb.AddNumbers(existing.N, operand.N)
		if err != nil {
			return ddb.AttributeValue{}, err
		}
		return ddb.Number(sum), nil

	case ddb.TypeStringSet, ddb.TypeNumberSet, ddb.TypeBinarySet:
		if !present {
			return operand, nil
		}
		if existing.Type != operand.Type {
			return ddb.AttributeValue{}, fmt.Errorf("ADD set type mismatch")
		}
		return unionSets(existing, operand), nil

	default:
		return ddb.AttributeValue{}, fmt.Errorf("ADD supports numbers and sets only")
	}
}

// applyDelete implements DELETE on set types. removeAttr is true when the
// resulting set is empty.
func applyDelete(existing, operand ddb.AttributeValue) (ddb.AttributeValue, bool, error) {
	if !existing.IsSet() || existing.Type != operand.Type {
		return ddb.AttributeValue{}, false, fmt.Errorf("DELETE requires matching set types")
	}
	remaining := subtractSets(existing, operand)
	size, _ := remaining.Size()
	return remaining, size == 0, nil
}

func unionSets(a, b ddb.AttributeValue) ddb.AttributeValue {
	switch a.Type {
	case ddb.TypeStringSet:
		seen := map[string]bool{}
		var union []string
		for _, member := range append(append([]string(nil), a.SS...), b.SS...) {
			if !seen[member] {
				seen[member] = true
				union = append(union, member)
			}
		}
		return ddb.StringSet(union...)
	case ddb.TypeNumberSet:
		var union []string
		for _, member := range append(append([]string(nil), a.NS...), b.NS...) {
			if !numberSetContains(union, member) {
				union = append(union, member)
			}
		}
		return ddb.NumberSet(union...)
	default:
		var union [][]byte
		for _, member := range append(append([][]byte(nil), a.BS...), b.BS...) {
			if !binarySetContains(union, member) {
				union = append(union, member)
			}
		}
		return ddb.BinarySet(union...)
	}
}

func subtractSets(a, b ddb.AttributeValue) ddb.AttributeValue {
	switch a.Type {
	case ddb.TypeStringSet:
		remove := map[string]bool{}
		for _, member := range b.SS {
			remove[member] = true
		}
		var kept []string
		for _, member := range a.SS {
			if !remove[member] {
				kept = append(kept, member)
			}
		}
		return ddb.AttributeValue{Type: ddb.TypeStringSet, SS: kept}
	case ddb.TypeNumberSet:
		var kept []string
		for _, member := range a.NS {
			if !numberSetContains(b.NS, member) {
				kept = append(kept, member)
			}
		}
		return ddb.AttributeValue{Type: ddb.TypeNumberSet, NS: kept}
	default:
		var kept [][]byte
		for _, member := range a.BS {
			if !binarySetContains(b.BS, member) {
				kept = append(kept, member)
			}
		}
		return ddb.AttributeValue{Type: ddb.TypeBinarySet, BS: kept}
	}
}

func numberSetContains(set []string, candidate string) bool {
	target := ddb.Number(candidate)
	for _, member := range set {
		if ddb.Number(member).Equal(target) {
			return true
		}
	}
	return false
}

func binarySetContains(set [][]byte, candidate []byte) bool {
	for _, member := range set {
		if bytes.Equal(member, candidate) {
			return true
		}
	}
	return false
}

// setAtPath writes value at the resolved path. Intermediate containers must
// already exist; only the leaf is created.
func setAtPath(item ddb.Item, steps []pathStep, newValue ddb.AttributeValue) error {
	if len(steps) == 1 {
		item[steps[0].name] = newValue
		return nil
	}
	root, ok := item[steps[0].name]
	if !ok {
		return fmt.Errorf("document path %s does not exist", steps[0].name)
	}
	updated, err := setInValue(root, steps[1:], newValue)
	if err != nil {
		return err
	}
	item[steps[0].name] = updated
	return nil
}

func setInValue(current ddb.AttributeValue, steps []pathStep, newValue ddb.AttributeValue) (ddb.AttributeValue, error) {
	step := steps[0]
	if step.isIndex {
		if current.Type != ddb.TypeList {
			return current, fmt.Errorf("document path indexes into a non-list")
		}
		if len(steps) == 1 {
			// Setting past the end appends, matching DynamoDB.
			if step.index < 0 || step.index >= len(current.L) {
				current.L = append(current.L, newValue)
			} else {
				current.L[step.index] = newValue
			}
			return current, nil
		}
		if step.index < 0 || step.index >= len(current.L) {
			return current, fmt.Errorf("document path index out of range")
		}
		updated, err := setInValue(current.L[step.index], steps[1:], newValue)
		if err != nil {
			return current, err
		}
		current.L[step.index] = updated
		return current, nil
	}

	if current.Type != ddb.TypeMap {
		return current, fmt.Errorf("document path traverses a non-map")
	}
	if len(steps) == 1 {
		current.M[step.name] = newValue
		return current, nil
	}
	child, ok := current.M[step.name]
	if !ok {
		return current, fmt.Errorf("document path %s does not exist", step.name)
	}
	updated, err := setInValue(child, steps[1:], newValue)
	if err != nil {
		return current, err
	}
	current.M[step.name] = updated
	return current, nil
}

// removeAtPath removes the attribute at the resolved path; an index leaf
// splices the element out of its list. Removing a missing leaf is a no-op.
func removeAtPath(item ddb.Item, steps []pathStep) error {
	if len(steps) == 1 {
		delete(item, steps[0].name)
		return nil
	}
	root, ok := item[steps[0].name]
	if !ok {
		return nil
	}
	updated, err := removeInValue(root, steps[1:])
	if err != nil {
		return err
	}
	item[steps[0].name] = updated
	return nil
}

func removeInValue(current ddb.AttributeValue, steps []pathStep) (ddb.AttributeValue, error) {
	step := steps[0]
	if step.isIndex {
		if current.Type != ddb.TypeList {
			return current, fmt.Errorf("document path indexes into a non-list")
		}
		if step.index < 0 || step.index >= len(current.L) {
			return current, nil
		}
		if len(steps) == 1 {
			current.L = append(current.L[:step.index], current.L[step.index+1:]...)
			return current, nil
		}
		updated, err := removeInValue(current.L[step.index], steps[1:])
		if err != nil {
			return current, err
		}
		current.L[step.index] = updated
		return current, nil
	}

	if current.Type != ddb.TypeMap {
		return current, fmt.Errorf("document path traverses a non-map")
	}
	if len(steps) == 1 {
		delete(current.M, step.name)
		return current, nil
	}
	child, ok := current.M[step.name]
	if !ok {
		return current, nil
	}
	updated, err := removeInValue(child, steps[1:])
	if err != nil {
		return current, err
	}
	current.M[step.name] = updated
	return current, nil
}
