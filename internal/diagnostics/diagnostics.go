// Package diagnostics formats and, optionally, ships crash/error
// reports produced by the CLI driver (cmd/noxy). It is ambient CLI
// tooling, not part of the language: spec.md forbids any language
// builtin beyond `clock` and any I/O beyond `print` (spec.md §1), so
// nothing here is reachable from compiled bytecode.
package diagnostics

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/ncruces/go-strftime"
)

// RunID identifies one CLI invocation (REPL session or file run), the
// same way the teacher's plugin protocol correlates requests with a
// generated id.
type RunID string

func NewRunID() RunID { return RunID(uuid.NewString()) }

// Report is the shape shipped to a trace sink: enough to reconstruct
// the runtime-error message spec.md §4.3/§7 requires the VM to
// surface, plus the run it came from.
type Report struct {
	RunID     RunID
	File      string
	Line      int
	Message   string
	Frames    []string
	Elapsed   time.Duration
	Timestamp time.Time
}

// FormatTimestamp renders a Report's timestamp for a human reading CLI
// output, using go-strftime the way `clock`'s raw epoch seconds never
// need to be read directly.
func FormatTimestamp(t time.Time) string {
	return strftime.Format("%Y-%m-%d %H:%M:%S", t)
}

// Summarize renders a one-line, human-scaled report for the REPL's
// `:stats` meta-command.
func Summarize(r Report) string {
	return fmt.Sprintf("run %s: %s (line %d) after %s, %d frame(s), at %s",
		r.RunID, r.Message, r.Line, humanize.RelTime(time.Now().Add(-r.Elapsed), time.Now(), "", ""),
		len(r.Frames), FormatTimestamp(r.Timestamp))
}

// Sink ships a Report somewhere outside the process.
type Sink interface {
	Record(ctx context.Context, r Report) error
}

// dynamoSink ships reports to a single DynamoDB table via PutItem,
// repurposing the teacher's own DynamoDB plugin dependency as
// CLI-level crash reporting rather than a language-level builtin,
// which spec.md's "no FFI beyond clock" rules out (see SPEC_FULL.md
// §3).
type dynamoSink struct {
	client *dynamodb.Client
	table  string
}

// NewDynamoSink builds a sink against table, resolving AWS credentials
// the standard SDK way (env vars, shared config, IMDS — whatever
// `config.LoadDefaultConfig` finds).
func NewDynamoSink(ctx context.Context, table string) (Sink, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &dynamoSink{client: dynamodb.NewFromConfig(cfg), table: table}, nil
}

type dynamoItem struct {
	RunID     string   `dynamodbav:"run_id"`
	File      string   `dynamodbav:"file"`
	Line      int      `dynamodbav:"line"`
	Message   string   `dynamodbav:"message"`
	Frames    []string `dynamodbav:"frames"`
	Timestamp string   `dynamodbav:"timestamp"`
}

func (s *dynamoSink) Record(ctx context.Context, r Report) error {
	item, err := attributevalue.MarshalMap(dynamoItem{
		RunID:     string(r.RunID),
		File:      r.File,
		Line:      r.Line,
		Message:   r.Message,
		Frames:    r.Frames,
		Timestamp: FormatTimestamp(r.Timestamp),
	})
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	return err
}
