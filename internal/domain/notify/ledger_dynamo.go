package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of *dynamodb.Client the ledger uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// dynamoRecord is the item layout of the send-records table, keyed by
// record_key.
type dynamoRecord struct {
	RecordKey   string `dynamodbav:"record_key"`
	SubjectID   string `dynamodbav:"subject_id"`
	GuardKey    string `dynamodbav:"guard_key"`
	Channel     string `dynamodbav:"channel"`
	CalendarDay string `dynamodbav:"calendar_day"`
	Status      string `dynamodbav:"status"`
	ClaimedAt   string `dynamodbav:"claimed_at"`
	// ExpiresAt lets DynamoDB TTL drop records once their day is long past.
	ExpiresAt int64 `dynamodbav:"expires_at"`
}

const dynamoRecordTTL = 30 * 24 * time.Hour

type ledgerDynamo struct {
	client    DynamoAPI
	tableName string
}

// NewLedgerDynamo stores send records in a DynamoDB table with a string
// partition key named record_key. Claims are conditional puts.
func NewLedgerDynamo(client DynamoAPI, tableName string) Ledger {
	return &ledgerDynamo{client: client, tableName: tableName}
}

func recordKeyAttr(key SendKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"record_key": &types.AttributeValueMemberS{Value: key.String()},
	}
}

func (l *ledgerDynamo) Claim(ctx context.Context, key SendKey, at time.Time) (bool, error) {
	item, err := attributevalue.MarshalMap(dynamoRecord{
		RecordKey:   key.String(),
		SubjectID:   key.SubjectID,
		GuardKey:    key.GuardKey,
		Channel:     string(key.Channel),
		CalendarDay: key.Day,
		Status:      string(RecordClaimed),
		ClaimedAt:   at.UTC().Format(time.RFC3339Nano),
		ExpiresAt:   at.Add(dynamoRecordTTL).Unix(),
	})
	if err != nil {
		return false, fmt.Errorf("marshal send record: %w", err)
	}
	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(record_key) OR #s = :failed"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed": &types.AttributeValueMemberS{Value: string(RecordFailed)},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (l *ledgerDynamo) update(ctx context.Context, key SendKey, expr string, values map[string]types.AttributeValue) error {
	values[":claimed"] = &types.AttributeValueMemberS{Value: string(RecordClaimed)}
	_, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(l.tableName),
		Key:                       recordKeyAttr(key),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("#s = :claimed"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return errRecordMissing(key)
	}
	return err
}

func (l *ledgerDynamo) MarkSent(ctx context.Context, key SendKey, messageID string, at time.Time) error {
	return l.update(ctx, key, "SET #s = :sent, provider_message_id = :mid, sent_at = :at",
		map[string]types.AttributeValue{
			":sent": &types.AttributeValueMemberS{Value: string(RecordSent)},
			":mid":  &types.AttributeValueMemberS{Value: messageID},
			":at":   &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339Nano)},
		})
}

func (l *ledgerDynamo) MarkFailed(ctx context.Context, key SendKey, reason string) error {
	return l.update(ctx, key, "SET #s = :failed, #e = :reason",
		map[string]types.AttributeValue{
			":failed": &types.AttributeValueMemberS{Value: string(RecordFailed)},
			":reason": &types.AttributeValueMemberS{Value: reason},
		})
}

// NewDynamoClient builds the DynamoDB client from an aws.Config.
func NewDynamoClient(awsCfg aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg)
}
