package dynamodbapi

import (
	ddb "localcloud/domain/dynamodb"
	"localcloud/infrastructure/persistence/memory"
	apperrors "localcloud/pkg/errors"
)

func (s *Service) handleCreateTable(body []byte) (any, error) {
	var input createTableInput
	if err := decode(body, &input); err != nil {
		return nil, err
	}

	schema, err := schemaFromWire(input.KeySchema, input.AttributeDefinitions)
	if err != nil {
		return nil, err
	}
	definitions := make([]ddb.AttributeDefinition, len(input.AttributeDefinitions))
	for i, def := range input.AttributeDefinitions {
		definitions[i] = ddb.AttributeDefinition{Name: def.AttributeName, Type: ddb.ValueType(def.AttributeType)}
	}

	table := &ddb.Table{
		Name:        input.TableName,
		Schema:      schema,
		Definitions: definitions,
		BillingMode: input.BillingMode,
	}
	if input.ProvisionedThroughput != nil {
		table.Throughput = &ddb.ProvisionedThroughput{
			ReadCapacityUnits:  input.ProvisionedThroughput.ReadCapacityUnits,
			WriteCapacityUnits: input.ProvisionedThroughput.WriteCapacityUnits,
		}
	}
	for _, index := range input.GlobalSecondaryIndexes {
		indexSchema, err := schemaFromWire(index.KeySchema, input.AttributeDefinitions)
		if err != nil {
			return nil, err
		}
		table.GSIs = append(table.GSIs, ddb.SecondaryIndex{Name: index.IndexName, Schema: indexSchema})
	}
	for _, index := range input.LocalSecondaryIndexes {
		indexSchema, err := schemaFromWire(index.KeySchema, input.AttributeDefinitions)
		if err != nil {
			return nil, err
		}
		table.LSIs = append(table.LSIs, ddb.SecondaryIndex{Name: index.IndexName, Schema: indexSchema})
	}
	if len(input.Tags) > 0 {
		table.Tags = map[string]string{}
		for _, tag := range input.Tags {
			table.Tags[tag.Key] = tag.Value
		}
	}

	created, err := s.engine.CreateTable(table)
	if err != nil {
		return nil, err
	}
	return tableOutput{TableDescription: describeWire(created, 0)}, nil
}

func (s *Service) handleDeleteTable(body []byte) (any, error) {
	var input tableNameInput
	if err := decode(body, &input); err != nil {
		return nil, err
	}
	table, err := s.engine.DeleteTable(input.TableName)
	if err != nil {
		return nil, err
	}
	return tableOutput{TableDescription: describeWire(table, 0)}, nil
}

func (s *Service) handleDescribeTable(body []byte) (any, error) {
	var input tableNameInput
	if err := decode(body, &input); err != nil {
		return nil, err
	}
	table, itemCount, err := s.engine.DescribeTable(input.TableName)
	if err != nil {
		return nil, err
	}
	return describeTableOutput{Table: describeWire(table, itemCount)}, nil
}

func (s *Service) handleListTables(body []byte) (any, error) {
	var input listTablesInput
	if err := decode(body, &input); err != nil {
		return nil, err
	}
	names, last := s.engine.ListTables(input.ExclusiveStartTableName, input.Limit)
	if names == nil {
		names = []string{}
	}
	return listTablesOutput{TableNames: names, LastEvaluatedTableName: last}, nil
}

func (s *Service) handleUpdateTable(body []byte) (any, error) {
	var input updateTableInput
	if err := decode(body, &input); err != nil {
		return nil, err
	}
	var throughput *ddb.ProvisionedThroughput
	if input.ProvisionedThroughput != nil {
		throughput = &ddb.ProvisionedThroughput{
			ReadCapacityUnits:  input.ProvisionedThroughput.ReadCapacityUnits,
			WriteCapacityUnits: input.ProvisionedThroughput.WriteCapacityUnits,
		}
	}
	table, err := s.engine.UpdateTable(input.TableName, input.BillingMode, throughput)
	if err != nil {
		return nil, err
	}
	return tableOutput{TableDescription: describeWire(table, 0)}, nil
}

func (s *Service) handlePutItem(body []byte) (any, error) {
	var input putItemInput
	if err := decode(body, &input); err != nil {
		return nil, err
	}
	old, err := s.engine.PutItem(input.TableName, input.Item, memory.WriteOptions{
		Condition:    input.ConditionExpression,
		Names:        input.ExpressionAttributeNames,
		Values:       input.ExpressionAttributeValues,
		ReturnValues: input.ReturnValues,
	})
	if err != nil {
		return nil, err
	}
	return attributesOutput{Attributes: old}, nil
}

func (s *Service) handleGetItem(body []byte) (any, error) {
	var input getItemInput
	if err := decode(body, &input); err != nil {
		return nil, err
	}
	item, err := s.engine.GetItem(input.TableName, input.Key, input.ProjectionExpression, input.ExpressionAttributeNames)
	if err != nil {
		return nil, err
	}
	return getItemOutput{Item: item}, nil
}

func (s *Service) handleUpdateItem(body []byte) (any, error) {
	var input updateItemInput
	if err := decode(body, &input); err != nil {
		return nil, err
	}
	attributes, err := s.engine.UpdateItem(input.TableName, input.Key, input.UpdateExpression, memory.WriteOptions{
		Condition:    input.ConditionExpression,
		Names:        input.ExpressionAttributeNames,
		Values:       input.ExpressionAttributeValues,
		ReturnValues: input.ReturnValues,
	})
	if err != nil {
		return nil, err
	}
	return attributesOutput{Attributes: attributes}, nil
}

func (s *Service) handleDeleteItem(body []byte) (any, error) {
	var input deleteItemInput
	if err := decode(body, &input); err != nil {
		return nil, err
	}
	old, err := s.engine.DeleteItem(input.TableName, input.Key, memory.WriteOptions{
		Condition:    input.ConditionExpression,
		Names:        input.ExpressionAttributeNames,
		Values:       input.ExpressionAttributeValues,
		ReturnValues: input.ReturnValues,
	})
	if err != nil {
		return nil, err
	}
	return attributesOutput{Attributes: old}, nil
}

func (s *Service) handleQuery(body []byte) (any, error) {
	var input queryInput
	if err := decode(body, &input); err != nil {
		return nil, err
	}
	output, err := s.engine.Query(input.TableName, memory.QueryInput{
		KeyCondition:      input.KeyConditionExpression,
		Filter:            input.FilterExpression,
		Projection:        input.ProjectionExpression,
		Names:             input.ExpressionAttributeNames,
		Values:            input.ExpressionAttributeValues,
		Limit:             input.Limit,
		ExclusiveStartKey: input.ExclusiveStartKey,
		ScanIndexForward:  input.ScanIndexForward,
		IndexName:         input.IndexName,
		Select:            input.Select,
	})
	if err != nil {
		return nil, err
	}
	return pageWire(output), nil
}

func (s *Service) handleScan(body []byte) (any, error) {
	var input scanInput
	if err := decode(body, &input); err != nil {
		return nil, err
	}
	output, err := s.engine.Scan(input.TableName, memory.ScanInput{
		Filter:            input.FilterExpression,
		Projection:        input.ProjectionExpression,
		Names:             input.ExpressionAttributeNames,
		Values:            input.ExpressionAttributeValues,
		Limit:             input.Limit,
		ExclusiveStartKey: input.ExclusiveStartKey,
		Segment:           input.Segment,
		TotalSegments:     input.TotalSegments,
		Select:            input.Select,
	})
	if err != nil {
		return nil, err
	}
	return pageWire(output), nil
}

func (s *Service) handleBatchGetItem(body []byte) (any, error) {
	var input batchGetInput
	if err := decode(body, &input); err != nil {
		return nil, err
	}
	if len(input.RequestItems) == 0 {
		return nil, apperrors.Validation("RequestItems must not be empty")
	}

	output := batchGetOutput{
		Responses:       map[string][]ddb.Item{},
		UnprocessedKeys: map[string]batchGetRequest{},
	}
	for tableName, request := range input.RequestItems {
		items, err := s.engine.BatchGet(tableName, request.Keys, request.ProjectionExpression, request.ExpressionAttributeNames)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []ddb.Item{}
		}
		output.Responses[tableName] = items
	}
	return output, nil
}

func (s *Service) handleBatchWriteItem(body []byte) (any, error) {
	var input batchWriteInput
	if err := decode(body, &input); err != nil {
		return nil, err
	}
	if len(input.RequestItems) == 0 {
		return nil, apperrors.Validation("RequestItems must not be empty")
	}

	output := batchWriteOutput{UnprocessedItems: map[string][]writeRequest{}}
	for tableName, requests := range input.RequestItems {
		engineRequests := make([]memory.BatchWriteRequest, 0, len(requests))
		for _, request := range requests {
			switch {
			case request.PutRequest != nil:
				engineRequests = append(engineRequests, memory.BatchWriteRequest{Put: request.PutRequest.Item})
			case request.DeleteRequest != nil:
				engineRequests = append(engineRequests, memory.BatchWriteRequest{DeleteKey: request.DeleteRequest.Key})
			default:
				return nil, apperrors.Validation("write request must contain PutRequest or DeleteRequest")
			}
		}
		unprocessed := s.engine.BatchWrite(tableName, engineRequests)
		if len(unprocessed) > 0 {
			var wire []writeRequest
			for _, request := range unprocessed {
				if request.Put != nil {
					wire = append(wire, writeRequest{PutRequest: &putRequest{Item: request.Put}})
				} else {
					wire = append(wire, writeRequest{DeleteRequest: &deleteRequest{Key: request.DeleteKey}})
				}
			}
			output.UnprocessedItems[tableName] = wire
		}
	}
	return output, nil
}

func (s *Service) handleTagResource(body []byte) (any, error) {
	var input tagResourceInput
	if err := decode(body, &input); err != nil {
		return nil, err
	}
	tags := map[string]string{}
	for _, tag := range input.Tags {
		tags[tag.Key] = tag.Value
	}
	if err := s.engine.TagResource(input.ResourceArn, tags); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

func (s *Service) handleUntagResource(body []byte) (any, error) {
	var input untagResourceInput
	if err := decode(body, &input); err != nil {
		return nil, err
	}
	if err := s.engine.UntagResource(input.ResourceArn, input.TagKeys); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

func (s *Service) handleListTags(body []byte) (any, error) {
	var input listTagsInput
	if err := decode(body, &input); err != nil {
		return nil, err
	}
	tags, err := s.engine.ListTags(input.ResourceArn)
	if err != nil {
		return nil, err
	}
	output := listTagsOutput{Tags: []tagWire{}}
	for key, value := range tags {
		output.Tags = append(output.Tags, tagWire{Key: key, Value: value})
	}
	return output, nil
}

func (s *Service) handleDescribeTimeToLive(body []byte) (any, error) {
	var input tableNameInput
	if err := decode(body, &input); err != nil {
		return nil, err
	}
	if _, _, err := s.engine.DescribeTable(input.TableName); err != nil {
		return nil, err
	}
	var output describeTimeToLiveOutput
	output.TimeToLiveDescription.TimeToLiveStatus = "DISABLED"
	return output, nil
}

// schemaFromWire converts KeySchema elements, enforcing one HASH and at most
// one RANGE.
func schemaFromWire(elements []keySchemaElement, definitions []attributeDefinition) (ddb.KeySchema, error) {
	typeOf := func(name string) ddb.ValueType {
		for _, def := range definitions {
			if def.AttributeName == name {
				return ddb.ValueType(def.AttributeType)
			}
		}
		return ""
	}

	var schema ddb.KeySchema
	var hashSeen, rangeSeen bool
	for _, element := range elements {
		switch element.KeyType {
		case "HASH":
			if hashSeen {
				return schema, apperrors.Validation("key schema has more than one HASH element")
			}
			hashSeen = true
			schema.Partition = ddb.KeyAttribute{Name: element.AttributeName, Type: typeOf(element.AttributeName)}
		case "RANGE":
			if rangeSeen {
				return schema, apperrors.Validation("key schema has more than one RANGE element")
			}
			rangeSeen = true
			schema.Sort = &ddb.KeyAttribute{Name: element.AttributeName, Type: typeOf(element.AttributeName)}
		default:
			return schema, apperrors.Validationf("invalid KeyType %q", element.KeyType)
		}
	}
	if !hashSeen {
		return schema, apperrors.Validation("key schema requires exactly one HASH element")
	}
	return schema, nil
}

// describeWire renders a table description.
func describeWire(table *ddb.Table, itemCount int64) tableDescription {
	description := tableDescription{
		TableName:        table.Name,
		TableStatus:      string(table.Status),
		TableArn:         table.ARN,
		TableID:          table.ID,
		CreationDateTime: float64(table.CreatedAt.UnixMilli()) / 1000.0,
		ItemCount:        itemCount,
	}
	description.KeySchema = append(description.KeySchema, keySchemaElement{
		AttributeName: table.Schema.Partition.Name,
		KeyType:       "HASH",
	})
	if table.Schema.Sort != nil {
		description.KeySchema = append(description.KeySchema, keySchemaElement{
			AttributeName: table.Schema.Sort.Name,
			KeyType:       "RANGE",
		})
	}
	for _, def := range table.Definitions {
		description.AttributeDefinitions = append(description.AttributeDefinitions, attributeDefinition{
			AttributeName: def.Name,
			AttributeType: string(def.Type),
		})
	}
	if table.BillingMode != "" {
		description.BillingModeSummary = &billingModeSummary{BillingMode: table.BillingMode}
	}
	if table.Throughput != nil {
		description.ProvisionedThroughput = &provisionedThroughputDescription{
			ReadCapacityUnits:  table.Throughput.ReadCapacityUnits,
			WriteCapacityUnits: table.Throughput.WriteCapacityUnits,
		}
	}
	return description
}

func pageWire(output *memory.PageOutput) pageOutput {
	items := output.Items
	if items == nil {
		items = []ddb.Item{}
	}
	return pageOutput{
		Items:            items,
		Count:            output.Count,
		ScannedCount:     output.ScannedCount,
		LastEvaluatedKey: output.LastEvaluatedKey,
	}
}
