package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/ElmerIwyze/WyzeSecureApi/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// AttemptRepo is the keyed store of in-flight login attempts.
// PK: phone. Rows carry expires_at as a DynamoDB TTL attribute, but expiry
// is also re-checked on every read since TTL deletion is not immediate.
type AttemptRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAttemptRepo(client *dynamodb.Client, tableName string) *AttemptRepo {
	return &AttemptRepo{client: client, tableName: tableName}
}

// Create stores a fresh attempt, replacing any stale one for the same phone.
func (r *AttemptRepo) Create(ctx context.Context, a *domain.LoginAttempt) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *AttemptRepo) Get(ctx context.Context, phoneNumber string) (*domain.LoginAttempt, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("phone", phoneNumber),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("attempt not found: %w", domain.ErrNotFound)
	}
	var a domain.LoginAttempt
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Advance bumps the round counter after a wrong answer. The conditional
// expression pins the attempt session so a concurrent re-initiate cannot be
// advanced by a stale answer.
func (r *AttemptRepo) Advance(ctx context.Context, phoneNumber, attemptSession string, roundIndex int) error {
	expr, names, values, err := buildUpdateExpr(map[string]interface{}{
		fieldRoundIndex: roundIndex,
	})
	if err != nil {
		return err
	}
	values[":sess"] = &types.AttributeValueMemberS{Value: attemptSession}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("phone", phoneNumber),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attempt_session = :sess"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("attempt superseded: %w", domain.ErrUnauthorized)
	}
	return err
}

// Expire discards the attempt on any terminal outcome.
func (r *AttemptRepo) Expire(ctx context.Context, phoneNumber string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("phone", phoneNumber),
	})
	return err
}
