package ddb

import (
	"context"
	"inboxlens/internal/types"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// CacheStore implements ports.CacheStore on a DynamoDB single table with one
// item per entry. The raw entry bytes are stored opaquely; the store applies
// no expiry of its own.
type CacheStore struct {
	table string
	cli   *dynamodb.Client
}

type entryItem struct {
	PK      string `dynamodbav:"PK"`
	SK      string `dynamodbav:"SK"`
	Payload []byte `dynamodbav:"payload"`
}

func NewCacheStore(table string, cli *dynamodb.Client) *CacheStore {
	// Creates the table only if it doesn't exist.
	// We ignore the error if the table already exists.
	createTableIfNotExists(cli, table)
	return &CacheStore{table: table, cli: cli}
}

func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.table,
		Key: map[string]ddbTypes.AttributeValue{
			"PK": &ddbTypes.AttributeValueMemberS{Value: pkThread(key)},
			"SK": &ddbTypes.AttributeValueMemberS{Value: skEntry()},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, types.Err(types.ErrCacheStoreAccess, err, "")
	}
	if out.Item == nil {
		return nil, types.ErrNotFound
	}
	var item entryItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, types.Err(types.ErrCacheStoreAccess, err, "")
	}
	return item.Payload, nil
}

func (s *CacheStore) Put(ctx context.Context, key string, entry []byte) error {
	item, err := attributevalue.MarshalMap(entryItem{
		PK:      pkThread(key),
		SK:      skEntry(),
		Payload: entry,
	})
	if err != nil {
		return types.Err(types.ErrCacheStoreAccess, err, "")
	}
	_, err = s.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      item,
	})
	if err != nil {
		return types.Err(types.ErrCacheStoreAccess, err, "")
	}
	return nil
}

func (s *CacheStore) Delete(ctx context.Context, key string) error {
	_, err := s.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.table,
		Key: map[string]ddbTypes.AttributeValue{
			"PK": &ddbTypes.AttributeValueMemberS{Value: pkThread(key)},
			"SK": &ddbTypes.AttributeValueMemberS{Value: skEntry()},
		},
	})
	return err
}

func (s *CacheStore) ClearAll(ctx context.Context) error {
	// delete all items in the table
	_, err := s.cli.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: &s.table,
	})
	if err != nil {
		return err
	}
	// wait until the table is deleted
	err = dynamodb.NewTableNotExistsWaiter(s.cli).Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	}, 30*time.Second)
	if err != nil {
		return err
	}
	// Recreate the table
	createTableIfNotExists(s.cli, s.table)
	return nil
}
