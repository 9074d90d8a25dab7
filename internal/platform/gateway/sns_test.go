package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type fakeSNS struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("sns-1")}, nil
}

func TestSMSSender_PublishesBody(t *testing.T) {
	fake := &fakeSNS{}
	id, err := NewSMSSender(fake).Send(context.Background(), "+525512345678", renderWelcome(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "sns-1" {
		t.Errorf("expected sns-1, got %q", id)
	}
	if aws.ToString(fake.input.PhoneNumber) != "+525512345678" {
		t.Errorf("unexpected phone %q", aws.ToString(fake.input.PhoneNumber))
	}
	if aws.ToString(fake.input.Message) != renderWelcome(t).Body {
		t.Errorf("unexpected message %q", aws.ToString(fake.input.Message))
	}
	if aws.ToString(fake.input.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue) != "Transactional" {
		t.Error("expected transactional SMS type")
	}
}

func TestSMSSender_Error(t *testing.T) {
	fake := &fakeSNS{err: errors.New("throttled")}
	if _, err := NewSMSSender(fake).Send(context.Background(), "+525512345678", renderWelcome(t)); err == nil {
		t.Fatal("expected error")
	}
}
