package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	ddb "localcloud/domain/dynamodb"
	apperrors "localcloud/pkg/errors"
	"localcloud/pkg/observability"
)

// TableEngine is the DynamoDB table/item engine. Tables are isolation units
// with their own locks; the engine lock guards only the table map.
type TableEngine struct {
	logger    *zap.Logger
	metrics   *observability.Collector
	accountID string
	region    string

	mu     sync.RWMutex
	tables map[string]*tableState
}

type tableState struct {
	mu   sync.RWMutex
	meta *ddb.Table
	// items maps the encoded full key to the item.
	items map[string]ddb.Item
	// partitions maps the encoded partition value to the sort-ordered keys
	// within it.
	partitions map[string][]partitionEntry
}

type partitionEntry struct {
	keyString string
	sortValue *ddb.AttributeValue
}

// NewTableEngine builds an empty engine.
func NewTableEngine(accountID, region string, logger *zap.Logger, metrics *observability.Collector) *TableEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if accountID == "" {
		accountID = "000000000000"
	}
	return &TableEngine{
		logger:    logger,
		metrics:   metrics,
		accountID: accountID,
		region:    region,
		tables:    map[string]*tableState{},
	}
}

// CreateTable validates the schema and registers the table, activating it
// immediately.
func (e *TableEngine) CreateTable(table *ddb.Table) (*ddb.Table, error) {
	if table.Name == "" {
		return nil, apperrors.Validation("TableName must not be empty")
	}
	if err := ddb.ValidateSchema(table.Schema, table.Definitions); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.tables[table.Name]; exists {
		return nil, apperrors.ResourceInUse(table.Name)
	}

	table.ARN = fmt.Sprintf("arn:aws:dynamodb:%s:%s:table/%s", e.region, e.accountID, table.Name)
	table.ID = uuid.NewString()
	table.CreatedAt = time.Now().UTC()
	table.Status = ddb.TableStatusActive
	if table.BillingMode == "" {
		table.BillingMode = "PROVISIONED"
	}

	e.tables[table.Name] = &tableState{
		meta:       table,
		items:      map[string]ddb.Item{},
		partitions: map[string][]partitionEntry{},
	}
	e.updateTableGauge(len(e.tables))
	return table, nil
}

// DeleteTable removes a table and all its items.
func (e *TableEngine) DeleteTable(name string) (*ddb.Table, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.tables[name]
	if !ok {
		return nil, apperrors.ResourceNotFound(name)
	}
	delete(e.tables, name)
	e.updateTableGauge(len(e.tables))
	meta := *state.meta
	meta.Status = ddb.TableStatusDeleting
	return &meta, nil
}

// DescribeTable returns the table metadata with the live item count.
func (e *TableEngine) DescribeTable(name string) (*ddb.Table, int64, error) {
	state, err := e.table(name)
	if err != nil {
		return nil, 0, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	meta := *state.meta
	return &meta, int64(len(state.items)), nil
}

// ListTables returns table names after exclusiveStart, capped at limit.
func (e *TableEngine) ListTables(exclusiveStart string, limit int) (names []string, lastEvaluated string) {
	e.mu.RLock()
	for name := range e.tables {
		if exclusiveStart == "" || name > exclusiveStart {
			names = append(names, name)
		}
	}
	e.mu.RUnlock()

	sort.Strings(names)
	if limit > 0 && len(names) > limit {
		names = names[:limit]
		lastEvaluated = names[len(names)-1]
	}
	return names, lastEvaluated
}

// UpdateTable accepts billing-mode and throughput changes.
func (e *TableEngine) UpdateTable(name, billingMode string, throughput *ddb.ProvisionedThroughput) (*ddb.Table, error) {
	state, err := e.table(name)
	if err != nil {
		return nil, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if billingMode != "" {
		state.meta.BillingMode = billingMode
	}
	if throughput != nil {
		state.meta.Throughput = throughput
	}
	meta := *state.meta
	return &meta, nil
}

// TagResource merges tags onto a table identified by ARN.
func (e *TableEngine) TagResource(arn string, tags map[string]string) error {
	state, err := e.tableByARN(arn)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.meta.Tags == nil {
		state.meta.Tags = map[string]string{}
	}
	for key, value := range tags {
		state.meta.Tags[key] = value
	}
	return nil
}

// UntagResource removes tag keys from a table identified by ARN.
func (e *TableEngine) UntagResource(arn string, keys []string) error {
	state, err := e.tableByARN(arn)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	for _, key := range keys {
		delete(state.meta.Tags, key)
	}
	return nil
}

// ListTags returns a table's tags by ARN.
func (e *TableEngine) ListTags(arn string) (map[string]string, error) {
	state, err := e.tableByARN(arn)
	if err != nil {
		return nil, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	tags := make(map[string]string, len(state.meta.Tags))
	for key, value := range state.meta.Tags {
		tags[key] = value
	}
	return tags, nil
}

// Reset drops every table.
func (e *TableEngine) Reset() {
	e.mu.Lock()
	e.tables = map[string]*tableState{}
	e.updateTableGauge(0)
	e.mu.Unlock()
}

func (e *TableEngine) table(name string) (*tableState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	state, ok := e.tables[name]
	if !ok {
		return nil, apperrors.ResourceNotFound(name)
	}
	return state, nil
}

func (e *TableEngine) tableByARN(arn string) (*tableState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, state := range e.tables {
		if state.meta.ARN == arn {
			return state, nil
		}
	}
	return nil, apperrors.ResourceNotFound(arn)
}

func (e *TableEngine) updateTableGauge(n int) {
	if e.metrics != nil {
		e.metrics.TablesActive.Set(float64(n))
	}
}

// insertEntry places a key into its partition slice keeping sort order.
func (t *tableState) insertEntry(key ddb.Key) {
	pk := key.PartitionString()
	keyString := key.String()
	entries := t.partitions[pk]

	i := sort.Search(len(entries), func(i int) bool {
		if entries[i].sortValue == nil || key.Sort == nil {
			return entries[i].keyString >= keyString
		}
		cmp := ddb.CompareSort(*entries[i].sortValue, *key.Sort)
		if cmp != 0 {
			return cmp > 0
		}
		return true
	})
	if i < len(entries) && entries[i].keyString == keyString {
		return
	}
	entries = append(entries, partitionEntry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = partitionEntry{keyString: keyString, sortValue: key.Sort}
	t.partitions[pk] = entries
}

// removeEntry drops a key from its partition slice.
func (t *tableState) removeEntry(key ddb.Key) {
	pk := key.PartitionString()
	keyString := key.String()
	entries := t.partitions[pk]
	for i, entry := range entries {
		if entry.keyString == keyString {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(t.partitions, pk)
	} else {
		t.partitions[pk] = entries
	}
}
