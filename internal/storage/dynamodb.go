package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDB implements Backend on an AWS DynamoDB table set.
type DynamoDB struct {
	client *dynamodb.Client
}

// DynamoDBOptions configures the client. Endpoint and static credentials are
// only needed when pointing at a local DynamoDB instance.
type DynamoDBOptions struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// NewDynamoDB builds a Backend backed by a DynamoDB client. The client is
// process-wide; construct it once at startup and inject it.
func NewDynamoDB(ctx context.Context, opts DynamoDBOptions) (*DynamoDB, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	return &DynamoDB{client: client}, nil
}

func (d *DynamoDB) Get(ctx context.Context, table string, key Item, attrs ...string) (Item, error) {
	keyAV, err := attributevalue.MarshalMap(map[string]any(key))
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}

	input := &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       keyAV,
	}
	if len(attrs) > 0 {
		// Attribute names go through the substitution map so reserved
		// words like "role" stay usable.
		names := make(map[string]string, len(attrs))
		placeholders := make([]string, 0, len(attrs))
		for i, a := range attrs {
			p := fmt.Sprintf("#a%d", i)
			names[p] = a
			placeholders = append(placeholders, p)
		}
		input.ProjectionExpression = aws.String(strings.Join(placeholders, ", "))
		input.ExpressionAttributeNames = names
	}

	out, err := d.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", table, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var item map[string]any
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return Item(item), nil
}

func (d *DynamoDB) Put(ctx context.Context, table string, item Item, cond *PutCondition) error {
	itemAV, err := attributevalue.MarshalMap(map[string]any(item))
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      itemAV,
	}
	if cond != nil {
		input.ConditionExpression = aws.String("attribute_not_exists(#k)")
		input.ExpressionAttributeNames = map[string]string{"#k": cond.IfNotExists}
	}

	if _, err := d.client.PutItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrConditionFailed
		}
		return fmt.Errorf("put %s: %w", table, err)
	}
	return nil
}

func (d *DynamoDB) Update(ctx context.Context, table string, key Item, set map[string]any) error {
	keyAV, err := attributevalue.MarshalMap(map[string]any(key))
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}

	expr, names, values, err := buildUpdateExpression(set)
	if err != nil {
		return err
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       keyAV,
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}

	if _, err := d.client.UpdateItem(ctx, input); err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

func (d *DynamoDB) Delete(ctx context.Context, table string, key Item) error {
	keyAV, err := attributevalue.MarshalMap(map[string]any(key))
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}

	if _, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(table),
		Key:       keyAV,
	}); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

// buildUpdateExpression turns attribute assignments into a SET expression.
// Assignment names are processed in sorted order so the expression is
// deterministic. Every path segment goes through the name substitution map.
func buildUpdateExpression(set map[string]any) (string, map[string]string, map[string]types.AttributeValue, error) {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names := make(map[string]string)
	values := make(map[string]types.AttributeValue, len(set))
	actions := make([]string, 0, len(set))

	n := 0
	for i, k := range keys {
		segments := strings.Split(k, ".")
		placeholders := make([]string, 0, len(segments))
		for _, seg := range segments {
			p := fmt.Sprintf("#n%d", n)
			names[p] = seg
			placeholders = append(placeholders, p)
			n++
		}

		av, err := attributevalue.Marshal(set[k])
		if err != nil {
			return "", nil, nil, fmt.Errorf("marshal value for %s: %w", k, err)
		}
		vp := fmt.Sprintf(":v%d", i)
		values[vp] = av

		actions = append(actions, fmt.Sprintf("%s = %s", strings.Join(placeholders, "."), vp))
	}

	return "SET " + strings.Join(actions, ", "), names, values, nil
}
