package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo evaluates the two condition expressions the ledger issues.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	puts  []*dynamodb.PutItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func strAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, in)
	key := strAttr(in.Item, "record_key")
	if cur, ok := f.items[key]; ok && strAttr(cur, "status") != string(RecordFailed) {
		return nil, conditionFailed()
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strAttr(in.Key, "record_key")
	cur, ok := f.items[key]
	if !ok || strAttr(cur, "status") != string(RecordClaimed) {
		return nil, conditionFailed()
	}
	next := make(map[string]types.AttributeValue, len(cur))
	for k, v := range cur {
		next[k] = v
	}
	for _, placeholder := range []string{":sent", ":failed"} {
		if v, ok := in.ExpressionAttributeValues[placeholder]; ok {
			next["status"] = v
		}
	}
	f.items[key] = next
	return &dynamodb.UpdateItemOutput{}, nil
}

func TestLedgerDynamo_Claim(t *testing.T) {
	fake := newFakeDynamo()
	l := NewLedgerDynamo(fake, "send_records")
	ctx := context.Background()

	ok, err := l.Claim(ctx, testKey(), testNow)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Claim(ctx, testKey(), testNow)
	require.NoError(t, err)
	assert.False(t, ok)

	require.Len(t, fake.puts, 2)
	put := fake.puts[0]
	assert.Equal(t, "send_records", aws.ToString(put.TableName))
	assert.Equal(t, "attribute_not_exists(record_key) OR #s = :failed", aws.ToString(put.ConditionExpression))
	assert.Equal(t, testKey().String(), strAttr(put.Item, "record_key"))
	assert.Equal(t, "2026-03-10", strAttr(put.Item, "calendar_day"))
	assert.Equal(t, "claimed", strAttr(put.Item, "status"))
}

func TestLedgerDynamo_FailThenReclaim(t *testing.T) {
	fake := newFakeDynamo()
	l := NewLedgerDynamo(fake, "send_records")
	ctx := context.Background()

	_, err := l.Claim(ctx, testKey(), testNow)
	require.NoError(t, err)
	require.NoError(t, l.MarkFailed(ctx, testKey(), "timeout"))

	ok, err := l.Claim(ctx, testKey(), testNow)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.MarkSent(ctx, testKey(), "wamid.9", testNow))
	assert.Equal(t, "sent", strAttr(fake.items[testKey().String()], "status"))

	err = l.MarkSent(ctx, SendKey{SubjectID: "other"}, "x", testNow)
	assert.True(t, errors.Is(err, ErrRecordMissing))
}

func TestLedgerDynamo_PropagatesErrors(t *testing.T) {
	l := NewLedgerDynamo(brokenDynamo{}, "t")
	_, err := l.Claim(context.Background(), testKey(), testNow)
	assert.Error(t, err)
}

type brokenDynamo struct{}

func (brokenDynamo) PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return nil, errors.New("throttled")
}

func (brokenDynamo) UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return nil, errors.New("throttled")
}
