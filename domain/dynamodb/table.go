package dynamodb

import (
	"fmt"
	"time"
)

// TableStatus is the table lifecycle state. This engine activates tables
// immediately, so Creating and Deleting are transient wire values only.
type TableStatus string

const (
	TableStatusCreating TableStatus = "CREATING"
	TableStatusActive   TableStatus = "ACTIVE"
	TableStatusDeleting TableStatus = "DELETING"
)

// AttributeDefinition declares an attribute used in a key schema.
type AttributeDefinition struct {
	Name string
	Type ValueType
}

// ProvisionedThroughput is accepted and echoed but never enforced.
type ProvisionedThroughput struct {
	ReadCapacityUnits  int64
	WriteCapacityUnits int64
}

// SecondaryIndex captures a GSI or LSI definition. Only the schema is kept;
// index-backed queries are not served.
type SecondaryIndex struct {
	Name       string
	Schema     KeySchema
	Projection string
}

// Table is the metadata of one DynamoDB table.
type Table struct {
	Name        string
	ARN         string
	ID          string
	Schema      KeySchema
	Definitions []AttributeDefinition
	BillingMode string
	Throughput  *ProvisionedThroughput
	GSIs        []SecondaryIndex
	LSIs        []SecondaryIndex
	StreamSpec  string
	SSESpec     string
	Tags        map[string]string
	CreatedAt   time.Time
	Status      TableStatus
}

// ValidateSchema enforces: key attributes declared in the definitions with
// matching types, exactly one HASH element, at most one RANGE element.
func ValidateSchema(schema KeySchema, definitions []AttributeDefinition) error {
	byName := map[string]ValueType{}
	for _, def := range definitions {
		switch def.Type {
		case TypeString, TypeNumber, TypeBinary:
		default:
			return fmt.Errorf("attribute %q has non-key type %s", def.Name, def.Type)
		}
		byName[def.Name] = def.Type
	}

	declared, ok := byName[schema.Partition.Name]
	if !ok {
		return fmt.Errorf("hash key %q is not declared in AttributeDefinitions", schema.Partition.Name)
	}
	if declared != schema.Partition.Type {
		return fmt.Errorf("hash key %q declared as %s but schema says %s",
			schema.Partition.Name, declared, schema.Partition.Type)
	}

	if schema.Sort != nil {
		declared, ok := byName[schema.Sort.Name]
		if !ok {
			return fmt.Errorf("range key %q is not declared in AttributeDefinitions", schema.Sort.Name)
		}
		if declared != schema.Sort.Type {
			return fmt.Errorf("range key %q declared as %s but schema says %s",
				schema.Sort.Name, declared, schema.Sort.Type)
		}
	}
	return nil
}
