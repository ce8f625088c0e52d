package expression

import (
	"bytes"
	"fmt"
	"strings"

	ddb "localcloud/domain/dynamodb"
)

// Env is the evaluation environment: the item under test plus the
// placeholder substitution maps.
type Env struct {
	Item   ddb.Item
	Names  map[string]string
	Values map[string]ddb.AttributeValue
}

// value is an evaluated operand; present is false for the absent state
// produced by unresolvable paths.
type value struct {
	av      ddb.AttributeValue
	present bool
}

// EvalCondition evaluates a boolean expression against an item. Comparisons
// involving absent operands are false.
func EvalCondition(expr Expr, env *Env) (bool, error) {
	switch node := expr.(type) {
	case *LogicalExpr:
		left, err := EvalCondition(node.Left, env)
		if err != nil {
			return false, err
		}
		if node.Op == "AND" && !left {
			return false, nil
		}
		if node.Op == "OR" && left {
			return true, nil
		}
		return EvalCondition(node.Right, env)

	case *NotExpr:
		inner, err := EvalCondition(node.Inner, env)
		if err != nil {
			return false, err
		}
		return !inner, nil

	case *CompareExpr:
		left, err := evalOperand(node.Left, env)
		if err != nil {
			return false, err
		}
		right, err := evalOperand(node.Right, env)
		if err != nil {
			return false, err
		}
		return compareValues(node.Op, left, right), nil

	case *BetweenExpr:
		target, err := evalOperand(node.Value, env)
		if err != nil {
			return false, err
		}
		lower, err := evalOperand(node.Lower, env)
		if err != nil {
			return false, err
		}
		upper, err := evalOperand(node.Upper, env)
		if err != nil {
			return false, err
		}
		return compareValues(">=", target, lower) && compareValues("<=", target, upper), nil

	case *InExpr:
		target, err := evalOperand(node.Value, env)
		if err != nil {
			return false, err
		}
		if !target.present {
			return false, nil
		}
		for _, candidate := range node.List {
			evaluated, err := evalOperand(candidate, env)
			if err != nil {
				return false, err
			}
			if evaluated.present && target.av.Equal(evaluated.av) {
				return true, nil
			}
		}
		return false, nil

	case *FunctionExpr:
		return evalFunction(node, env)

	default:
		return false, fmt.Errorf("unknown expression node %T", expr)
	}
}

func evalFunction(fn *FunctionExpr, env *Env) (bool, error) {
	switch fn.Name {
	case "attribute_exists", "attribute_not_exists":
		path, ok := fn.Args[0].(*PathOperand)
		if !ok {
			return false, fmt.Errorf("%s requires a document path", fn.Name)
		}
		_, present, err := ResolvePath(path.Path, env)
		if err != nil {
			return false, err
		}
		if fn.Name == "attribute_exists" {
			return present, nil
		}
		return !present, nil

	case "attribute_type":
		target, err := evalOperand(fn.Args[0], env)
		if err != nil {
			return false, err
		}
		expected, err := evalOperand(fn.Args[1], env)
		if err != nil {
			return false, err
		}
		if !target.present || !expected.present || expected.av.Type != ddb.TypeString {
			return false, nil
		}
		return string(target.av.Type) == expected.av.S, nil

	case "begins_with":
		target, err := evalOperand(fn.Args[0], env)
		if err != nil {
			return false, err
		}
		prefix, err := evalOperand(fn.Args[1], env)
		if err != nil {
			return false, err
		}
		if !target.present || !prefix.present {
			return false, nil
		}
		switch {
		case target.av.Type == ddb.TypeString && prefix.av.Type == ddb.TypeString:
			return strings.HasPrefix(target.av.S, prefix.av.S), nil
		case target.av.Type == ddb.TypeBinary && prefix.av.Type == ddb.TypeBinary:
			return bytes.HasPrefix(target.av.B, prefix.av.B), nil
		default:
			return false, nil
		}

	case "contains":
		haystack, err := evalOperand(fn.Args[0], env)
		if err != nil {
			return false, err
		}
		needle, err := evalOperand(fn.Args[1], env)
		if err != nil {
			return false, err
		}
		if !haystack.present || !needle.present {
			return false, nil
		}
		return valueContains(haystack.av, needle.av), nil

	default:
		return false, fmt.Errorf("unknown function %q", fn.Name)
	}
}

// valueContains implements contains(): substring on strings, subsequence on
// binary, membership on sets and lists.
func valueContains(haystack, needle ddb.AttributeValue) bool {
	switch haystack.Type {
	case ddb.TypeString:
		return needle.Type == ddb.TypeString && strings.Contains(haystack.S, needle.S)
	case ddb.TypeBinary:
		return needle.Type == ddb.TypeBinary && bytes.Contains(haystack.B, needle.B)
	case ddb.TypeStringSet:
		if needle.Type != ddb.TypeString {
			return false
		}
		for _, member := range haystack.SS {
			if member == needle.S {
				return true
			}
		}
		return false
	case ddb.TypeNumberSet:
		if needle.Type != ddb.TypeNumber {
			return false
		}
		for _, member := range haystack.NS {
			if ddb.Number(member).Equal(needle) {
				return true
			}
		}
		return false
	case ddb.TypeBinarySet:
		if needle.Type != ddb.TypeBinary {
			return false
		}
		for _, member := range haystack.BS {
			if bytes.Equal(member, needle.B) {
				return true
			}
		}
		return false
	case ddb.TypeList:
		for _, member := range haystack.L {
			if member.Equal(needle) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func compareValues(op string, left, right value) bool {
	if !left.present || !right.present {
		return false
	}
	switch op {
	case "=":
		return left.av.Equal(right.av)
	case "<>":
		return !left.av.Equal(right.av)
	}
	ordering, comparable := left.av.Compare(right.av)
	if !comparable {
		return false
	}
	switch op {
	case "<":
		return ordering < 0
	case "<=":
		return ordering <= 0
	case ">":
		return ordering > 0
	case ">=":
		return ordering >= 0
	default:
		return false
	}
}

func evalOperand(operand Operand, env *Env) (value, error) {
	switch node := operand.(type) {
	case *PathOperand:
		av, present, err := ResolvePath(node.Path, env)
		if err != nil {
			return value{}, err
		}
		return value{av: av, present: present}, nil

	case *ValueOperand:
		av, ok := env.Values[node.Ref]
		if !ok {
			return value{}, fmt.Errorf("value placeholder %s is not defined", node.Ref)
		}
		return value{av: av, present: true}, nil

	case *SizeOperand:
		inner, err := evalOperand(node.Arg, env)
		if err != nil {
			return value{}, err
		}
		if !inner.present {
			return value{}, nil
		}
		size, ok := inner.av.Size()
		if !ok {
			return value{}, nil
		}
		return value{av: ddb.Number(itoa(size)), present: true}, nil

	default:
		return value{}, fmt.Errorf("unknown operand %T", operand)
	}
}

// ResolvePath walks a document path against the item. Indexing into a
// non-list, or any missing component, yields absent rather than an error.
// Undefined #name placeholders are errors.
func ResolvePath(path Path, env *Env) (ddb.AttributeValue, bool, error) {
	steps, err := resolvePathNames(path, env.Names)
	if err != nil {
		return ddb.AttributeValue{}, false, err
	}

	var current ddb.AttributeValue
	for i, step := range steps {
		if i == 0 {
			av, ok := env.Item[step.name]
			if !ok {
				return ddb.AttributeValue{}, false, nil
			}
			current = av
			continue
		}
		if step.isIndex {
			if current.Type != ddb.TypeList || step.index < 0 || step.index >= len(current.L) {
				return ddb.AttributeValue{}, false, nil
			}
			current = current.L[step.index]
			continue
		}
		if current.Type != ddb.TypeMap {
			return ddb.AttributeValue{}, false, nil
		}
		av, ok := current.M[step.name]
		if !ok {
			return ddb.AttributeValue{}, false, nil
		}
		current = av
	}
	return current, true, nil
}

// pathStep is a path element with name placeholders substituted.
type pathStep struct {
	name    string
	index   int
	isIndex bool
}

func resolvePathNames(path Path, names map[string]string) ([]pathStep, error) {
	steps := make([]pathStep, 0, len(path))
	for _, element := range path {
		switch {
		case element.IsIndex:
			steps = append(steps, pathStep{index: element.Index, isIndex: true})
		case element.NameRef != "":
			name, ok := names[element.NameRef]
			if !ok {
				return nil, fmt.Errorf("name placeholder %s is not defined", element.NameRef)
			}
			steps = append(steps, pathStep{name: name})
		default:
			steps = append(steps, pathStep{name: element.Ident})
		}
	}
	if len(steps) == 0 || steps[0].isIndex {
		return nil, fmt.Errorf("document path must begin with an attribute name")
	}
	return steps, nil
}
