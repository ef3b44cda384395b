package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// maxTransactItems is the DynamoDB limit for one TransactWriteItems call.
const maxTransactItems = 100

// DynamoAPI is the subset of the DynamoDB client DynamoKV needs.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

type dynamoRecord struct {
	Key       string `dynamodbav:"PK"`
	Value     []byte `dynamodbav:"value"`
	ExpiresAt int64  `dynamodbav:"expires_at,omitempty"`
}

// DynamoKV keeps every key as one item in a single table keyed by PK.
// Expired items are filtered on read; the table's TTL attribute cleans them up later.
type DynamoKV struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

func NewDynamoDBClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func NewDynamoKV(client DynamoAPI, tableName string) *DynamoKV {
	return &DynamoKV{client: client, tableName: tableName, now: time.Now}
}

func (d *DynamoKV) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            d.keyAttr(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal %s failed: %w: %v", key, ErrCorrupted, err)
	}
	if rec.ExpiresAt > 0 && d.now().Unix() > rec.ExpiresAt {
		return nil, ErrNotFound
	}
	return rec.Value, nil
}

func (d *DynamoKV) Put(ctx context.Context, entries ...Entry) error {
	switch {
	case len(entries) == 0:
		return nil
	case len(entries) > maxTransactItems:
		return fmt.Errorf("dynamodb put: %d entries exceed transaction limit", len(entries))
	}

	items := make([]map[string]types.AttributeValue, 0, len(entries))
	for _, e := range entries {
		rec := dynamoRecord{Key: e.Key, Value: e.Value}
		if e.TTL > 0 {
			rec.ExpiresAt = d.now().Add(e.TTL).Unix()
		}
		av, err := attributevalue.MarshalMap(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", e.Key, err)
		}
		items = append(items, av)
	}

	if len(items) == 1 {
		_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(d.tableName),
			Item:      items[0],
		})
		if err != nil {
			return fmt.Errorf("dynamodb put failed: %w", err)
		}
		return nil
	}

	tx := make([]types.TransactWriteItem, len(items))
	for i, item := range items {
		tx[i] = types.TransactWriteItem{
			Put: &types.Put{TableName: aws.String(d.tableName), Item: item},
		}
	}
	if _, err := d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: tx}); err != nil {
		return fmt.Errorf("dynamodb transact put failed: %w", err)
	}
	return nil
}

func (d *DynamoKV) Delete(ctx context.Context, keys ...string) error {
	switch {
	case len(keys) == 0:
		return nil
	case len(keys) == 1:
		_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(d.tableName),
			Key:       d.keyAttr(keys[0]),
		})
		if err != nil {
			return fmt.Errorf("dynamodb delete failed: %w", err)
		}
		return nil
	case len(keys) > maxTransactItems:
		return fmt.Errorf("dynamodb delete: %d keys exceed transaction limit", len(keys))
	}

	tx := make([]types.TransactWriteItem, len(keys))
	for i, key := range keys {
		tx[i] = types.TransactWriteItem{
			Delete: &types.Delete{TableName: aws.String(d.tableName), Key: d.keyAttr(key)},
		}
	}
	if _, err := d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: tx}); err != nil {
		return fmt.Errorf("dynamodb transact delete failed: %w", err)
	}
	return nil
}

func (d *DynamoKV) keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: key},
	}
}
