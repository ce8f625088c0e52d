// Package expression implements the DynamoDB expression language: condition,
// filter and key-condition expressions, update expressions and projection
// expressions, through a lexer, a recursive-descent parser and an evaluator.
package expression

import "strings"

// PathElement is one component of a document path: a plain identifier, a
// #name placeholder, or a [n] list index.
type PathElement struct {
	Ident   string
	NameRef string
	Index   int
	IsIndex bool
}

// Path is a document path, e.g. a.b[2].#c
type Path []PathElement

func (p Path) String() string {
	var b strings.Builder
	for i, element := range p {
		switch {
		case element.IsIndex:
			b.WriteByte('[')
			b.WriteString(itoa(element.Index))
			b.WriteByte(']')
		default:
			if i > 0 {
				b.WriteByte('.')
			}
			if element.NameRef != "" {
				b.WriteString(element.NameRef)
			} else {
				b.WriteString(element.Ident)
			}
		}
	}
	return b.String()
}

// Expr is a boolean expression node.
type Expr interface{ isExpr() }

// LogicalExpr is AND / OR.
type LogicalExpr struct {
	Op    string // "AND" or "OR"
	Left  Expr
	Right Expr
}

// NotExpr negates its operand.
type NotExpr struct{ Inner Expr }

// CompareExpr is a binary comparison.
type CompareExpr struct {
	Op    string // = <> < <= > >=
	Left  Operand
	Right Operand
}

// BetweenExpr is `operand BETWEEN lower AND upper`.
type BetweenExpr struct {
	Value Operand
	Lower Operand
	Upper Operand
}

// InExpr is `operand IN (a, b, …)`.
type InExpr struct {
	Value Operand
	List  []Operand
}

// FunctionExpr is a boolean function call: attribute_exists,
// attribute_not_exists, attribute_type, begins_with, contains.
type FunctionExpr struct {
	Name string
	Args []Operand
}

func (*LogicalExpr) isExpr()  {}
func (*NotExpr) isExpr()      {}
func (*CompareExpr) isExpr()  {}
func (*BetweenExpr) isExpr()  {}
func (*InExpr) isExpr()       {}
func (*FunctionExpr) isExpr() {}

// Operand is a comparable value source.
type Operand interface{ isOperand() }

// PathOperand reads a document path.
type PathOperand struct{ Path Path }

// ValueOperand reads a :value placeholder.
type ValueOperand struct{ Ref string }

// SizeOperand is size(operand).
type SizeOperand struct{ Arg Operand }

func (*PathOperand) isOperand()  {}
func (*ValueOperand) isOperand() {}
func (*SizeOperand) isOperand()  {}

// UpdateExpression groups the four clause types of an update.
type UpdateExpression struct {
	Set    []SetAction
	Remove []Path
	Add    []AddAction
	Delete []DeleteAction
}

// SetAction is `path = value`.
type SetAction struct {
	Path  Path
	Value SetOperand
}

// AddAction is `path :value` under ADD.
type AddAction struct {
	Path Path
	Ref  string
}

// DeleteAction is `path :value` under DELETE.
type DeleteAction struct {
	Path Path
	Ref  string
}

// SetOperand is the right-hand side grammar of a SET action.
type SetOperand interface{ isSetOperand() }

// SetPath reads a document path.
type SetPath struct{ Path Path }

// SetValueRef reads a :value placeholder.
type SetValueRef struct{ Ref string }

// SetIfNotExists is if_not_exists(path, fallback).
type SetIfNotExists struct {
	Path    Path
	Default SetOperand
}

// SetListAppend is list_append(a, b).
type SetListAppend struct{ A, B SetOperand }

// SetArithmetic is `left + right` or `left - right` on numbers.
type SetArithmetic struct {
	Op    string // "+" or "-"
	Left  SetOperand
	Right SetOperand
}

func (*SetPath) isSetOperand()        {}
func (*SetValueRef) isSetOperand()    {}
func (*SetIfNotExists) isSetOperand() {}
func (*SetListAppend) isSetOperand()  {}
func (*SetArithmetic) isSetOperand()  {}

// Refs holds the placeholder names used by an expression, collected by a
// post-order walk. Declared-but-unused placeholders are a validation error
// at the engine level.
type Refs struct {
	Names  map[string]bool
	Values map[string]bool
}

func newRefs() *Refs {
	return &Refs{Names: map[string]bool{}, Values: map[string]bool{}}
}

// Merge folds another ref set into this one.
func (r *Refs) Merge(other *Refs) {
	for name := range other.Names {
		r.Names[name] = true
	}
	for value := range other.Values {
		r.Values[value] = true
	}
}

func (r *Refs) addPath(path Path) {
	for _, element := range path {
		if element.NameRef != "" {
			r.Names[element.NameRef] = true
		}
	}
}

// CollectExprRefs walks a boolean expression.
func CollectExprRefs(expr Expr) *Refs {
	refs := newRefs()
	collectExpr(expr, refs)
	return refs
}

func collectExpr(expr Expr, refs *Refs) {
	switch node := expr.(type) {
	case *LogicalExpr:
		collectExpr(node.Left, refs)
		collectExpr(node.Right, refs)
	case *NotExpr:
		collectExpr(node.Inner, refs)
	case *CompareExpr:
		collectOperand(node.Left, refs)
		collectOperand(node.Right, refs)
	case *BetweenExpr:
		collectOperand(node.Value, refs)
		collectOperand(node.Lower, refs)
		collectOperand(node.Upper, refs)
	case *InExpr:
		collectOperand(node.Value, refs)
		for _, operand := range node.List {
			collectOperand(operand, refs)
		}
	case *FunctionExpr:
		for _, operand := range node.Args {
			collectOperand(operand, refs)
		}
	}
}

func collectOperand(operand Operand, refs *Refs) {
	switch node := operand.(type) {
	case *PathOperand:
		refs.addPath(node.Path)
	case *ValueOperand:
		refs.Values[node.Ref] = true
	case *SizeOperand:
		collectOperand(node.Arg, refs)
	}
}

// CollectUpdateRefs walks an update expression.
func CollectUpdateRefs(update *UpdateExpression) *Refs {
	refs := newRefs()
	for _, action := range update.Set {
		refs.addPath(action.Path)
		collectSetOperand(action.Value, refs)
	}
	for _, path := range update.Remove {
		refs.addPath(path)
	}
	for _, action := range update.Add {
		refs.addPath(action.Path)
		refs.Values[action.Ref] = true
	}
	for _, action := range update.Delete {
		refs.addPath(action.Path)
		refs.Values[action.Ref] = true
	}
	return refs
}

func collectSetOperand(operand SetOperand, refs *Refs) {
	switch node := operand.(type) {
	case *SetPath:
		refs.addPath(node.Path)
	case *SetValueRef:
		refs.Values[node.Ref] = true
	case *SetIfNotExists:
		refs.addPath(node.Path)
		collectSetOperand(node.Default, refs)
	case *SetListAppend:
		collectSetOperand(node.A, refs)
		collectSetOperand(node.B, refs)
	case *SetArithmetic:
		collectSetOperand(node.Left, refs)
		collectSetOperand(node.Right, refs)
	}
}

// CollectPathRoots returns the distinct top-level attribute names an
// expression reads, with #name placeholders resolved through names.
func CollectPathRoots(expr Expr, names map[string]string) []string {
	var paths []Path
	collectPaths(expr, &paths)
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

func collectPaths(expr Expr, paths *[]Path) {
	switch node := expr.(type) {
	case *LogicalExpr:
		collectPaths(node.Left, paths)
		collectPaths(node.Right, paths)
	case *NotExpr:
		collectPaths(node.Inner, paths)
	case *CompareExpr:
		collectOperandPaths(node.Left, paths)
		collectOperandPaths(node.Right, paths)
	case *BetweenExpr:
		collectOperandPaths(node.Value, paths)
		collectOperandPaths(node.Lower, paths)
		collectOperandPaths(node.Upper, paths)
	case *InExpr:
		collectOperandPaths(node.Value, paths)
		for _, operand := range node.List {
			collectOperandPaths(operand, paths)
		}
	case *FunctionExpr:
		for _, operand := range node.Args {
			collectOperandPaths(operand, paths)
		}
	}
}

func collectOperandPaths(operand Operand, paths *[]Path) {
	switch node := operand.(type) {
	case *PathOperand:
		*paths = append(*paths, node.Path)
	case *SizeOperand:
		collectOperandPaths(node.Arg, paths)
	}
}

// CollectProjectionRefs walks a projection path list.
func CollectProjectionRefs(paths []Path) *Refs {
	refs := newRefs()
	for _, path := range paths {
		refs.addPath(path)
	}
	return refs
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits [20]byte
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
}
