package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo keeps items in memory keyed by the PK string attribute.
type fakeDynamo struct {
	m            sync.Mutex
	items        map[string]map[string]types.AttributeValue
	transactions int
	err          error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func pk(key map[string]types.AttributeValue) string {
	return key["PK"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[pk(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.items[pk(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	delete(f.items, pk(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.transactions++
	for _, item := range in.TransactItems {
		switch {
		case item.Put != nil:
			f.items[pk(item.Put.Item)] = item.Put.Item
		case item.Delete != nil:
			delete(f.items, pk(item.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func TestDynamoKV_SinglePutAndGet(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	kv := NewDynamoKV(fake, "cart")

	require.NoError(t, kv.Put(ctx, Entry{Key: "u1:cart_items", Value: []byte(`{}`)}))
	assert.Equal(t, 0, fake.transactions)

	v, err := kv.Get(ctx, "u1:cart_items")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(v))
}

func TestDynamoKV_MultiPutUsesTransaction(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	kv := NewDynamoKV(fake, "cart")

	require.NoError(t, kv.Put(ctx,
		Entry{Key: "u1:cart_items", Value: []byte(`{"P1":{}}`)},
		Entry{Key: "u1:cart_selections", Value: []byte(`{"P1":true}`)},
	))
	assert.Equal(t, 1, fake.transactions)
	assert.Len(t, fake.items, 2)

	require.NoError(t, kv.Delete(ctx, "u1:cart_items", "u1:cart_selections"))
	assert.Equal(t, 2, fake.transactions)
	assert.Empty(t, fake.items)
}

func TestDynamoKV_Expired(t *testing.T) {
	ctx := context.Background()
	kv := NewDynamoKV(newFakeDynamo(), "cart")
	now := time.Unix(1_700_000_000, 0)
	kv.now = func() time.Time { return now }

	require.NoError(t, kv.Put(ctx, Entry{Key: "s", Value: []byte("x"), TTL: time.Minute}))
	now = now.Add(2 * time.Minute)

	_, err := kv.Get(ctx, "s")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoKV_MissAndFailure(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	kv := NewDynamoKV(fake, "cart")

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	fake.err = errors.New("throttled")
	_, err = kv.Get(ctx, "missing")
	assert.ErrorContains(t, err, "dynamodb get failed")
	assert.ErrorContains(t, kv.Put(ctx, Entry{Key: "a"}, Entry{Key: "b"}), "transact put failed")
}
