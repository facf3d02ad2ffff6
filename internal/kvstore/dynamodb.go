package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/rzpsarthak13/rowsync/internal/registry"
)

const (
	// dynamoKeyAttr is the partition key attribute of the backing table.
	dynamoKeyAttr = "key"

	// Hash fields are stored as attributes with this prefix so a field named
	// "key" cannot collide with the partition key.
	dynamoFieldPrefix = "f_"
)

// dynamoAPI is the subset of the DynamoDB client the store uses.
type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoDBKVStore implements core.HashStore with one DynamoDB item per hash.
// Each field is a string attribute on the item.
type DynamoDBKVStore struct {
	client    dynamoAPI
	tableName string
	logger    *slog.Logger
	closed    atomic.Bool
}

// NewDynamoDBKVStore creates a DynamoDB store and checks the table exists.
func NewDynamoDBKVStore(cfg registry.KVStoreConfig) (*DynamoDBKVStore, error) {
	dc := cfg.DynamoDB
	if dc.Region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if dc.TableName == "" {
		return nil, fmt.Errorf("table name is required")
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(dc.Region),
		config.WithRetryMaxAttempts(cfg.MaxRetries+1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Override credentials if provided
	if dc.AccessKeyID != "" && dc.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(dc.AccessKeyID, dc.SecretAccessKey, "")
	}

	var clientOptions []func(*dynamodb.Options)
	if dc.Endpoint != "" {
		// Custom endpoint (e.g., for LocalStack)
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(dc.Endpoint)
		})
	}
	client := dynamodb.NewFromConfig(awsCfg, clientOptions...)

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(dc.TableName),
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB table %s: %w: %w", dc.TableName, core.ErrBackendUnavailable, err)
	}

	return newDynamoDBKVStore(client, dc.TableName), nil
}

func newDynamoDBKVStore(client dynamoAPI, tableName string) *DynamoDBKVStore {
	return &DynamoDBKVStore{
		client:    client,
		tableName: tableName,
		logger:    slog.Default().With("component", "kvstore", "backend", "dynamodb"),
	}
}

func (d *DynamoDBKVStore) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoKeyAttr: &types.AttributeValueMemberS{Value: key},
	}
}

func (d *DynamoDBKVStore) wrap(op, key string, err error) error {
	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return fmt.Errorf("%s %s: %w: %w", op, key, core.ErrBackendUnavailable, err)
	}
	return fmt.Errorf("%s %s: %w", op, key, err)
}

// HGet reads one attribute with a consistent read.
func (d *DynamoDBKVStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	if d.closed.Load() {
		return "", false, core.ErrStoreClosed
	}

	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(d.tableName),
		Key:                      d.itemKey(key),
		ConsistentRead:           aws.Bool(true),
		ProjectionExpression:     aws.String("#f"),
		ExpressionAttributeNames: map[string]string{"#f": dynamoFieldPrefix + field},
	})
	if err != nil {
		return "", false, d.wrap("get item", key, err)
	}
	if out.Item == nil {
		return "", false, nil
	}
	s, ok := out.Item[dynamoFieldPrefix+field].(*types.AttributeValueMemberS)
	if !ok {
		return "", false, nil
	}
	return s.Value, true, nil
}

// HSet upserts the item with a single SET expression.
func (d *DynamoDBKVStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if d.closed.Load() {
		return core.ErrStoreClosed
	}
	if len(fields) == 0 {
		return nil
	}

	expr, names, values := setExpression(fields)
	if _, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.tableName),
		Key:                       d.itemKey(key),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}); err != nil {
		return d.wrap("update item", key, err)
	}
	d.logger.Debug("hash fields written", "key", key, "fields", len(fields))
	return nil
}

// HGetAll reads the whole item. A missing item yields an empty map.
func (d *DynamoDBKVStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if d.closed.Load() {
		return nil, core.ErrStoreClosed
	}

	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            d.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, d.wrap("get item", key, err)
	}
	return fieldsFromItem(out.Item), nil
}

// HDel removes attributes with a REMOVE expression.
func (d *DynamoDBKVStore) HDel(ctx context.Context, key string, fields ...string) error {
	if d.closed.Load() {
		return core.ErrStoreClosed
	}
	if len(fields) == 0 {
		return nil
	}

	expr, names := removeExpression(fields)
	if _, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(d.tableName),
		Key:                      d.itemKey(key),
		UpdateExpression:         aws.String(expr),
		ExpressionAttributeNames: names,
	}); err != nil {
		return d.wrap("update item", key, err)
	}
	return nil
}

// Del deletes the item.
func (d *DynamoDBKVStore) Del(ctx context.Context, key string) error {
	if d.closed.Load() {
		return core.ErrStoreClosed
	}
	if _, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.itemKey(key),
	}); err != nil {
		return d.wrap("delete item", key, err)
	}
	return nil
}

// Close marks the store closed. The SDK client holds no connection state.
func (d *DynamoDBKVStore) Close() error {
	d.closed.Store(true)
	return nil
}

func sortedFields(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return names
}

// setExpression builds "SET #f0 = :v0, #f1 = :v1" in field name order.
func setExpression(fields map[string]string) (string, map[string]string, map[string]types.AttributeValue) {
	names := make(map[string]string, len(fields))
	values := make(map[string]types.AttributeValue, len(fields))
	parts := make([]string, 0, len(fields))

	for i, f := range sortedFields(fields) {
		n := "#f" + strconv.Itoa(i)
		v := ":v" + strconv.Itoa(i)
		names[n] = dynamoFieldPrefix + f
		values[v] = &types.AttributeValueMemberS{Value: fields[f]}
		parts = append(parts, n+" = "+v)
	}
	return "SET " + strings.Join(parts, ", "), names, values
}

func removeExpression(fields []string) (string, map[string]string) {
	names := make(map[string]string, len(fields))
	parts := make([]string, 0, len(fields))
	for i, f := range fields {
		n := "#f" + strconv.Itoa(i)
		names[n] = dynamoFieldPrefix + f
		parts = append(parts, n)
	}
	return "REMOVE " + strings.Join(parts, ", "), names
}

func fieldsFromItem(item map[string]types.AttributeValue) map[string]string {
	out := make(map[string]string, len(item))
	for attr, av := range item {
		field, ok := strings.CutPrefix(attr, dynamoFieldPrefix)
		if !ok {
			continue
		}
		if s, ok := av.(*types.AttributeValueMemberS); ok {
			out[field] = s.Value
		}
	}
	return out
}

// DynamoDBKVStoreFactory creates DynamoDB stores.
type DynamoDBKVStoreFactory struct{}

// Type returns the type identifier for this factory.
func (f *DynamoDBKVStoreFactory) Type() string {
	return "dynamodb"
}

// Validate validates the DynamoDB-specific configuration.
func (f *DynamoDBKVStoreFactory) Validate(config registry.KVStoreConfig) error {
	if config.DynamoDB.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if config.DynamoDB.TableName == "" {
		return fmt.Errorf("table_name is required for DynamoDB")
	}
	if (config.DynamoDB.AccessKeyID == "") != (config.DynamoDB.SecretAccessKey == "") {
		return fmt.Errorf("access_key_id and secret_access_key must be set together")
	}
	return nil
}

// Create creates a new DynamoDB store.
func (f *DynamoDBKVStoreFactory) Create(config registry.KVStoreConfig) (core.HashStore, error) {
	store, err := NewDynamoDBKVStore(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB KV store: %w", err)
	}
	return store, nil
}

func init() {
	register(&DynamoDBKVStoreFactory{})
}
