package dynamodb

import (
	"encoding/base64"
	"fmt"
)

// KeyAttribute names one key schema element and its attribute type.
type KeyAttribute struct {
	Name string
	Type ValueType // S, N or B
}

// KeySchema is a table's partition key and optional sort key.
type KeySchema struct {
	Partition KeyAttribute
	Sort      *KeyAttribute
}

// Key is an item's extracted primary key.
type Key struct {
	Partition AttributeValue
	Sort      *AttributeValue
}

// ExtractKey pulls the key attributes out of an item, enforcing that every
// schema element is present with the declared type.
func (s KeySchema) ExtractKey(item Item) (Key, error) {
	partition, ok := item[s.Partition.Name]
	if !ok {
		return Key{}, fmt.Errorf("missing key attribute %q", s.Partition.Name)
	}
	if partition.Type != s.Partition.Type {
		return Key{}, fmt.Errorf("key attribute %q has type %s, schema requires %s",
			s.Partition.Name, partition.Type, s.Partition.Type)
	}
	key := Key{Partition: partition}

	if s.Sort != nil {
		sortValue, ok := item[s.Sort.Name]
		if !ok {
			return Key{}, fmt.Errorf("missing key attribute %q", s.Sort.Name)
		}
		if sortValue.Type != s.Sort.Type {
			return Key{}, fmt.Errorf("key attribute %q has type %s, schema requires %s",
				s.Sort.Name, sortValue.Type, s.Sort.Type)
		}
		key.Sort = &sortValue
	}
	return key, nil
}

// KeyItem returns the key as a bare item map, the wire shape of
// LastEvaluatedKey and ExclusiveStartKey.
func (s KeySchema) KeyItem(key Key) Item {
	item := Item{s.Partition.Name: key.Partition}
	if s.Sort != nil && key.Sort != nil {
		item[s.Sort.Name] = *key.Sort
	}
	return item
}

// PartitionString encodes the partition value for grouping.
func (k Key) PartitionString() string {
	return encodeKeyValue(k.Partition)
}

// String encodes the full key for identity lookups.
func (k Key) String() string {
	encoded := encodeKeyValue(k.Partition)
	if k.Sort != nil {
		encoded += "|" + encodeKeyValue(*k.Sort)
	}
	return encoded
}

// CompareSort orders two sort key values of the same type: strings and
// binaries by raw bytes, numbers numerically.
func CompareSort(a, b AttributeValue) int {
	result, ok := a.Compare(b)
	if !ok {
		return 0
	}
	return result
}

// encodeKeyValue produces a stable, type-tagged encoding of a key value.
// Numbers are canonicalized so "1" and "1.0" collide as required.
func encodeKeyValue(v AttributeValue) string {
	switch v.Type {
	case TypeString:
		return "S:" + v.S
	case TypeNumber:
		if rat, err := ParseNumber(v.N); err == nil {
			return "N:" + FormatNumber(rat)
		}
		return "N:" + v.N
	case TypeBinary:
		return "B:" + base64.StdEncoding.EncodeToString(v.B)
	default:
		return string(v.Type) + ":?"
	}
}
