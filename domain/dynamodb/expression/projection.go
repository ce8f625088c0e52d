package expression

import (
	ddb "localcloud/domain/dynamodb"
)

// ApplyProjection reduces an item to the projected paths. Paths that do not
// resolve are simply absent from the result. Nested projections rebuild the
// enclosing containers with only the selected members.
func ApplyProjection(item ddb.Item, paths []Path, names map[string]string) (ddb.Item, error) {
	env := &Env{Item: item, Names: names}
	result := ddb.Item{}

	for _, path := range paths {
		steps, err := resolvePathNames(path, names)
		if err != nil {
			return nil, err
		}
		av, present, err := ResolvePath(path, env)
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		existing, ok := result[steps[0].name]
		result[steps[0].name] = graft(existing, ok, steps[1:], av.Clone())
	}
	return result, nil
}

// graft rebuilds the container skeleton along the remaining steps. Projected
// list elements are appended in path order; original positions collapse.
func graft(existing ddb.AttributeValue, exists bool, steps []pathStep, av ddb.AttributeValue) ddb.AttributeValue {
	if len(steps) == 0 {
		return av
	}
	step := steps[0]
	if step.isIndex {
		if !exists || existing.Type != ddb.TypeList {
			existing = ddb.List()
		}
		child := graft(ddb.AttributeValue{}, false, steps[1:], av)
		existing.L = append(existing.L, child)
		return existing
	}
	if !exists || existing.Type != ddb.TypeMap {
		existing = ddb.Map(map[string]ddb.AttributeValue{})
	}
	child, ok := existing.M[step.name]
	existing.M[step.name] = graft(child, ok, steps[1:], av)
	return existing
}
