package expression

import (
	"fmt"
)

// KeyCondition is the validated shape of a KeyConditionExpression:
// `pk = :v` optionally AND a single sort-key restriction.
type KeyCondition struct {
	PartitionName string
	PartitionRef  string
	SortName      string
	SortOp        string   // "=", "<", "<=", ">", ">=", "BETWEEN", "begins_with"
	SortRefs      []string // one ref, two for BETWEEN
}

// ExtractKeyCondition validates that expr matches the restricted key
// condition grammar and returns its flattened form. names resolves #name
// placeholders in key attribute positions.
func ExtractKeyCondition(expr Expr, names map[string]string) (*KeyCondition, error) {
	var conditions []Expr
	switch node := expr.(type) {
	case *LogicalExpr:
		if node.Op != "AND" {
			return nil, fmt.Errorf("key condition supports AND only")
		}
		if _, nested := node.Left.(*LogicalExpr); nested {
			return nil, fmt.Errorf("key condition supports at most two terms")
		}
		conditions = []Expr{node.Left, node.Right}
	default:
		conditions = []Expr{expr}
	}

	result := &KeyCondition{}
	for _, condition := range conditions {
		name, op, refs, err := flattenKeyTerm(condition, names)
		if err != nil {
			return nil, err
		}
		if op == "=" && result.PartitionName == "" {
			// First equality term is provisionally the partition key; the
			// engine reassigns against the schema when both terms are "=".
			result.PartitionName = name
			result.PartitionRef = refs[0]
			continue
		}
		if result.SortName != "" {
			return nil, fmt.Errorf("key condition references too many attributes")
		}
		result.SortName = name
		result.SortOp = op
		result.SortRefs = refs
	}

	if result.PartitionName == "" {
		return nil, fmt.Errorf("key condition must include an equality test on the partition key")
	}
	return result, nil
}

// flattenKeyTerm reduces one term to (attribute, operator, value refs).
func flattenKeyTerm(expr Expr, names map[string]string) (string, string, []string, error) {
	switch node := expr.(type) {
	case *CompareExpr:
		if node.Op == "<>" {
			return "", "", nil, fmt.Errorf("key condition does not support <>")
		}
		name, err := keyAttributeName(node.Left, names)
		if err != nil {
			return "", "", nil, err
		}
		ref, err := keyValueRef(node.Right)
		if err != nil {
			return "", "", nil, err
		}
		return name, node.Op, []string{ref}, nil

	case *BetweenExpr:
		name, err := keyAttributeName(node.Value, names)
		if err != nil {
			return "", "", nil, err
		}
		lower, err := keyValueRef(node.Lower)
		if err != nil {
			return "", "", nil, err
		}
		upper, err := keyValueRef(node.Upper)
		if err != nil {
			return "", "", nil, err
		}
		return name, "BETWEEN", []string{lower, upper}, nil

	case *FunctionExpr:
		if node.Name != "begins_with" {
			return "", "", nil, fmt.Errorf("key condition does not support %s()", node.Name)
		}
		name, err := keyAttributeName(node.Args[0], names)
		if err != nil {
			return "", "", nil, err
		}
		ref, err := keyValueRef(node.Args[1])
		if err != nil {
			return "", "", nil, err
		}
		return name, "begins_with", []string{ref}, nil

	default:
		return "", "", nil, fmt.Errorf("unsupported key condition term")
	}
}

func keyAttributeName(operand Operand, names map[string]string) (string, error) {
	path, ok := operand.(*PathOperand)
	if !ok || len(path.Path) != 1 {
		return "", fmt.Errorf("key condition must compare a top-level key attribute")
	}
	element := path.Path[0]
	if element.NameRef != "" {
		name, ok := names[element.NameRef]
		if !ok {
			return "", fmt.Errorf("name placeholder %s is not defined", element.NameRef)
		}
		return name, nil
	}
	return element.Ident, nil
}

func keyValueRef(operand Operand) (string, error) {
	ref, ok := operand.(*ValueOperand)
	if !ok {
		return "", fmt.Errorf("key condition values must be expression attribute values")
	}
	return ref.Ref, nil
}
