package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

const (
	pkPrefix = "BATCH#"
	skPrefix = "STAGE#"
)

// DynamoStore implements RunStore using AWS DynamoDB.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
}

// Compile-time interface check.
var _ RunStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

func batchPK(batchID string) string {
	return pkPrefix + batchID
}

func runSK(rec *RunRecord) string {
	return skPrefix + rec.Stage + "#" + rec.StartedAt.UTC().Format(time.RFC3339Nano)
}

// expiresAt returns the Unix epoch timestamp for record expiration (now + RunTTL).
func expiresAt() int64 {
	return time.Now().Add(RunTTL).Unix()
}

// PutRun marshals rec and writes it with PK, SK, and TTL.
func (s *DynamoStore) PutRun(ctx context.Context, rec *RunRecord) error {
	pk := batchPK(rec.BatchID)
	sk := runSK(rec)

	start := time.Now()
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt(), 10)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	duration := time.Since(start)
	if err != nil {
		log.Debug().Err(err).Str("pk", pk).Str("sk", sk).Dur("duration", duration).Msg("PutRun: DynamoDB PutItem failed")
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	log.Debug().Str("pk", pk).Str("sk", sk).Dur("duration", duration).Msg("PutRun: run record persisted")
	return nil
}

// GetRuns queries every record under the batch partition.
func (s *DynamoStore) GetRuns(ctx context.Context, batchID string) ([]RunRecord, error) {
	pk := batchPK(batchID)
	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
			":sk": &types.AttributeValueMemberS{Value: skPrefix},
		},
	}

	var allItems []map[string]types.AttributeValue
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Query runs PK=%s: %w", pk, err)
		}
		allItems = append(allItems, result.Items...)
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	runs := make([]RunRecord, 0, len(allItems))
	for _, item := range allItems {
		var rec RunRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal run PK=%s: %w", pk, err)
		}
		runs = append(runs, rec)
	}
	SortRuns(runs)
	return runs, nil
}

// SortRuns orders records by start time, then stage name.
func SortRuns(runs []RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.Before(runs[j].StartedAt)
		}
		return runs[i].Stage < runs[j].Stage
	})
}
