package dynamodbapi

import (
	ddb "localcloud/domain/dynamodb"
)

// Wire DTOs for the DynamoDB 2012-08-10 JSON protocol. Attribute values use
// the domain codec directly.

type keySchemaElement struct {
	AttributeName string `json:"AttributeName"`
	KeyType       string `json:"KeyType"`
}

type attributeDefinition struct {
	AttributeName string `json:"AttributeName"`
	AttributeType string `json:"AttributeType"`
}

type provisionedThroughput struct {
	ReadCapacityUnits  int64 `json:"ReadCapacityUnits"`
	WriteCapacityUnits int64 `json:"WriteCapacityUnits"`
}

type provisionedThroughputDescription struct {
	ReadCapacityUnits  int64 `json:"ReadCapacityUnits"`
	WriteCapacityUnits int64 `json:"WriteCapacityUnits"`
}

type tagWire struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

type secondaryIndexWire struct {
	IndexName string             `json:"IndexName"`
	KeySchema []keySchemaElement `json:"KeySchema"`
	Projection *struct {
		ProjectionType string `json:"ProjectionType"`
	} `json:"Projection,omitempty"`
}

type createTableInput struct {
	TableName              string                 `json:"TableName"`
	KeySchema              []keySchemaElement     `json:"KeySchema"`
	AttributeDefinitions   []attributeDefinition  `json:"AttributeDefinitions"`
	BillingMode            string                 `json:"BillingMode,omitempty"`
	ProvisionedThroughput  *provisionedThroughput `json:"ProvisionedThroughput,omitempty"`
	GlobalSecondaryIndexes []secondaryIndexWire   `json:"GlobalSecondaryIndexes,omitempty"`
	LocalSecondaryIndexes  []secondaryIndexWire   `json:"LocalSecondaryIndexes,omitempty"`
	Tags                   []tagWire              `json:"Tags,omitempty"`
}

type tableDescription struct {
	TableName             string                            `json:"TableName"`
	TableStatus           string                            `json:"TableStatus"`
	TableArn              string                            `json:"TableArn"`
	TableID               string                            `json:"TableId"`
	CreationDateTime      float64                           `json:"CreationDateTime"`
	KeySchema             []keySchemaElement                `json:"KeySchema"`
	AttributeDefinitions  []attributeDefinition             `json:"AttributeDefinitions"`
	ItemCount             int64                             `json:"ItemCount"`
	BillingModeSummary    *billingModeSummary               `json:"BillingModeSummary,omitempty"`
	ProvisionedThroughput *provisionedThroughputDescription `json:"ProvisionedThroughput,omitempty"`
}

type billingModeSummary struct {
	BillingMode string `json:"BillingMode"`
}

type tableNameInput struct {
	TableName string `json:"TableName"`
}

type tableOutput struct {
	TableDescription tableDescription `json:"TableDescription"`
}

type describeTableOutput struct {
	Table tableDescription `json:"Table"`
}

type listTablesInput struct {
	ExclusiveStartTableName string `json:"ExclusiveStartTableName,omitempty"`
	Limit                   int    `json:"Limit,omitempty"`
}

type listTablesOutput struct {
	TableNames             []string `json:"TableNames"`
	LastEvaluatedTableName string   `json:"LastEvaluatedTableName,omitempty"`
}

type updateTableInput struct {
	TableName             string                 `json:"TableName"`
	BillingMode           string                 `json:"BillingMode,omitempty"`
	ProvisionedThroughput *provisionedThroughput `json:"ProvisionedThroughput,omitempty"`
}

type putItemInput struct {
	TableName                 string                        `json:"TableName"`
	Item                      ddb.Item                      `json:"Item"`
	ConditionExpression       string                        `json:"ConditionExpression,omitempty"`
	ExpressionAttributeNames  map[string]string             `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues map[string]ddb.AttributeValue `json:"ExpressionAttributeValues,omitempty"`
	ReturnValues              string                        `json:"ReturnValues,omitempty"`
}

type getItemInput struct {
	TableName                string            `json:"TableName"`
	Key                      ddb.Item          `json:"Key"`
	ConsistentRead           bool              `json:"ConsistentRead,omitempty"`
	ProjectionExpression     string            `json:"ProjectionExpression,omitempty"`
	ExpressionAttributeNames map[string]string `json:"ExpressionAttributeNames,omitempty"`
}

type getItemOutput struct {
	Item ddb.Item `json:"Item,omitempty"`
}

type updateItemInput struct {
	TableName                 string                        `json:"TableName"`
	Key                       ddb.Item                      `json:"Key"`
	UpdateExpression          string                        `json:"UpdateExpression,omitempty"`
	ConditionExpression       string                        `json:"ConditionExpression,omitempty"`
	ExpressionAttributeNames  map[string]string             `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues map[string]ddb.AttributeValue `json:"ExpressionAttributeValues,omitempty"`
	ReturnValues              string                        `json:"ReturnValues,omitempty"`
}

type deleteItemInput struct {
	TableName                 string                        `json:"TableName"`
	Key                       ddb.Item                      `json:"Key"`
	ConditionExpression       string                        `json:"ConditionExpression,omitempty"`
	ExpressionAttributeNames  map[string]string             `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues map[string]ddb.AttributeValue `json:"ExpressionAttributeValues,omitempty"`
	ReturnValues              string                        `json:"ReturnValues,omitempty"`
}

type attributesOutput struct {
	Attributes ddb.Item `json:"Attributes,omitempty"`
}

type queryInput struct {
	TableName                 string                        `json:"TableName"`
	IndexName                 string                        `json:"IndexName,omitempty"`
	KeyConditionExpression    string                        `json:"KeyConditionExpression,omitempty"`
	FilterExpression          string                        `json:"FilterExpression,omitempty"`
	ProjectionExpression      string                        `json:"ProjectionExpression,omitempty"`
	ExpressionAttributeNames  map[string]string             `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues map[string]ddb.AttributeValue `json:"ExpressionAttributeValues,omitempty"`
	Limit                     int                           `json:"Limit,omitempty"`
	ExclusiveStartKey         ddb.Item                      `json:"ExclusiveStartKey,omitempty"`
	ScanIndexForward          *bool                         `json:"ScanIndexForward,omitempty"`
	Select                    string                        `json:"Select,omitempty"`
	ConsistentRead            bool                          `json:"ConsistentRead,omitempty"`
}

type scanInput struct {
	TableName                 string                        `json:"TableName"`
	FilterExpression          string                        `json:"FilterExpression,omitempty"`
	ProjectionExpression      string                        `json:"ProjectionExpression,omitempty"`
	ExpressionAttributeNames  map[string]string             `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues map[string]ddb.AttributeValue `json:"ExpressionAttributeValues,omitempty"`
	Limit                     int                           `json:"Limit,omitempty"`
	ExclusiveStartKey         ddb.Item                      `json:"ExclusiveStartKey,omitempty"`
	Segment                   *int                          `json:"Segment,omitempty"`
	TotalSegments             *int                          `json:"TotalSegments,omitempty"`
	Select                    string                        `json:"Select,omitempty"`
}

type pageOutput struct {
	Items            []ddb.Item `json:"Items"`
	Count            int        `json:"Count"`
	ScannedCount     int        `json:"ScannedCount"`
	LastEvaluatedKey ddb.Item   `json:"LastEvaluatedKey,omitempty"`
}

type batchGetInput struct {
	RequestItems map[string]batchGetRequest `json:"RequestItems"`
}

type batchGetRequest struct {
	Keys                     []ddb.Item        `json:"Keys"`
	ProjectionExpression     string            `json:"ProjectionExpression,omitempty"`
	ExpressionAttributeNames map[string]string `json:"ExpressionAttributeNames,omitempty"`
	ConsistentRead           bool              `json:"ConsistentRead,omitempty"`
}

type batchGetOutput struct {
	Responses       map[string][]ddb.Item      `json:"Responses"`
	UnprocessedKeys map[string]batchGetRequest `json:"UnprocessedKeys"`
}

type batchWriteInput struct {
	RequestItems map[string][]writeRequest `json:"RequestItems"`
}

type writeRequest struct {
	PutRequest    *putRequest    `json:"PutRequest,omitempty"`
	DeleteRequest *deleteRequest `json:"DeleteRequest,omitempty"`
}

type putRequest struct {
	Item ddb.Item `json:"Item"`
}

type deleteRequest struct {
	Key ddb.Item `json:"Key"`
}

type batchWriteOutput struct {
	UnprocessedItems map[string][]writeRequest `json:"UnprocessedItems"`
}

type tagResourceInput struct {
	ResourceArn string    `json:"ResourceArn"`
	Tags        []tagWire `json:"Tags"`
}

type untagResourceInput struct {
	ResourceArn string   `json:"ResourceArn"`
	TagKeys     []string `json:"TagKeys"`
}

type listTagsInput struct {
	ResourceArn string `json:"ResourceArn"`
}

type listTagsOutput struct {
	Tags []tagWire `json:"Tags"`
}

type describeTimeToLiveOutput struct {
	TimeToLiveDescription struct {
		TimeToLiveStatus string `json:"TimeToLiveStatus"`
	} `json:"TimeToLiveDescription"`
}
