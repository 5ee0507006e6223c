package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// Single-table key layout.
const (
	pkPrefix  = "RUN#"
	skRow     = "ROW#"
	skSummary = "SUMMARY"
)

// PutItemAPI is the DynamoDB call the ledger needs.
type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoLedger writes records to one DynamoDB table keyed by PK/SK with an
// expiresAt TTL attribute.
type DynamoLedger struct {
	client    PutItemAPI
	tableName string
	now       func() time.Time
}

var _ Ledger = (*DynamoLedger)(nil)

// NewDynamoLedger creates a ledger for the given table.
func NewDynamoLedger(client PutItemAPI, tableName string) *DynamoLedger {
	return &DynamoLedger{client: client, tableName: tableName, now: time.Now}
}

func runPK(runID string) string {
	return pkPrefix + runID
}

func rowSK(row int) string {
	return skRow + strconv.Itoa(row)
}

// RecordJob writes PK=RUN#<run>, SK=ROW#<row>.
func (l *DynamoLedger) RecordJob(ctx context.Context, rec *JobRecord) error {
	return l.putItem(ctx, runPK(rec.RunID), rowSK(rec.Row), rec)
}

// RecordRun writes PK=RUN#<run>, SK=SUMMARY.
func (l *DynamoLedger) RecordRun(ctx context.Context, rec *RunRecord) error {
	return l.putItem(ctx, runPK(rec.RunID), skSummary, rec)
}

// putItem marshals data and writes it with PK, SK and TTL. Fields derived
// from the keys are tagged dynamodbav:"-" on the record types.
func (l *DynamoLedger) putItem(ctx context.Context, pk, sk string, data interface{}) error {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	item["expiresAt"] = &types.AttributeValueMemberN{
		Value: strconv.FormatInt(l.now().Add(RetentionPeriod).Unix(), 10),
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &l.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	log.Debug().Str("pk", pk).Str("sk", sk).Msg("Ledger record written")
	return nil
}
