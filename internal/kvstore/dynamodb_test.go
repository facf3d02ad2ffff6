package kvstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/rzpsarthak13/rowsync/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo interprets the SET and REMOVE expressions the store emits.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	err   error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(key map[string]types.AttributeValue) string {
	return key[dynamoKeyAttr].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	item, ok := f.items[keyOf(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	if in.ProjectionExpression != nil {
		attr := in.ExpressionAttributeNames[aws.ToString(in.ProjectionExpression)]
		out = map[string]types.AttributeValue{}
		if v, ok := item[attr]; ok {
			out[attr] = v
		}
	}
	return &dynamodb.GetItemOutput{Item: out}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	key := keyOf(in.Key)
	item, ok := f.items[key]
	if !ok {
		item = map[string]types.AttributeValue{dynamoKeyAttr: in.Key[dynamoKeyAttr]}
		f.items[key] = item
	}

	expr := aws.ToString(in.UpdateExpression)
	switch {
	case strings.HasPrefix(expr, "SET "):
		for _, part := range strings.Split(strings.TrimPrefix(expr, "SET "), ", ") {
			name, value, _ := strings.Cut(part, " = ")
			item[in.ExpressionAttributeNames[name]] = in.ExpressionAttributeValues[value]
		}
	case strings.HasPrefix(expr, "REMOVE "):
		for _, name := range strings.Split(strings.TrimPrefix(expr, "REMOVE "), ", ") {
			delete(item, in.ExpressionAttributeNames[name])
		}
	default:
		return nil, errors.New("unsupported update expression")
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	delete(f.items, keyOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamoDB_HashOperations(t *testing.T) {
	store := newDynamoDBKVStore(newFakeDynamo(), "cache")
	testHashOperations(t, store)
}

func TestDynamoDB_FieldNamedKey(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	store := newDynamoDBKVStore(fake, "cache")

	require.NoError(t, store.HSet(ctx, "t:1", map[string]string{"key": "value"}))

	all, err := store.HGetAll(ctx, "t:1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"key": "value"}, all)
	assert.Equal(t, "t:1", keyOf(fake.items["t:1"]), "partition key is intact")
}

func TestDynamoDB_Expressions(t *testing.T) {
	expr, names, values := setExpression(map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1", expr)
	assert.Equal(t, map[string]string{"#f0": "f_a", "#f1": "f_b"}, names)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "1"}, values[":v0"])

	expr, names = removeExpression([]string{"x", "y"})
	assert.Equal(t, "REMOVE #f0, #f1", expr)
	assert.Equal(t, map[string]string{"#f0": "f_x", "#f1": "f_y"}, names)
}

func TestDynamoDB_SendErrorIsBackendUnavailable(t *testing.T) {
	fake := newFakeDynamo()
	fake.err = &smithyhttp.RequestSendError{Err: errors.New("dial tcp: connection refused")}
	store := newDynamoDBKVStore(fake, "cache")

	_, err := store.HGetAll(context.Background(), "t:1")
	assert.ErrorIs(t, err, core.ErrBackendUnavailable)

	fake.err = errors.New("ValidationException")
	err = store.Del(context.Background(), "t:1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrBackendUnavailable)
}

func TestDynamoDB_Closed(t *testing.T) {
	store := newDynamoDBKVStore(newFakeDynamo(), "cache")
	require.NoError(t, store.Close())

	_, _, err := store.HGet(context.Background(), "k", "f")
	assert.ErrorIs(t, err, core.ErrStoreClosed)
}
