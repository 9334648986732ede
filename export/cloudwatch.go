package export

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs/cloudwatchlogsiface"
	"go.uber.org/zap"

	"github.com/BaSui01/traceflow/span"
)

// CloudWatchConfig configures the CloudWatch Logs adapter.
type CloudWatchConfig struct {
	// LogGroup is the destination log group. Defaults to "/genai/traces".
	LogGroup string

	// LogStream defaults to genai-<current date>.
	LogStream string

	// Region selects the AWS region. Defaults to us-east-1.
	Region string

	// Explicit credentials; when empty the SDK default chain (environment,
	// shared config, instance role) is used.
	AccessKeyID     string
	SecretAccessKey string

	BatchSize     int
	FlushInterval time.Duration

	Logger *zap.Logger
}

// CloudWatchExporter sends span records to AWS CloudWatch Logs. The
// log-stream protocol orders appends with a sequence token returned by the
// previous successful send, so sends are serialized through a single
// in-process writer per stream.
type CloudWatchExporter struct {
	*batcher

	logGroup  string
	logStream string
	region    string
	accessKey string
	secretKey string
	logger    *zap.Logger

	// sendMu serializes PutLogEvents calls so concurrent flushes cannot
	// race on a stale sequence token.
	sendMu        sync.Mutex
	client        cloudwatchlogsiface.CloudWatchLogsAPI
	sequenceToken *string
}

// NewCloudWatchExporter builds the adapter. The AWS client is created
// lazily on the first send; a client that cannot be constructed degrades
// every send to a logged failure rather than a crash.
func NewCloudWatchExporter(cfg CloudWatchConfig) *CloudWatchExporter {
	if cfg.LogGroup == "" {
		cfg.LogGroup = "/genai/traces"
	}
	if cfg.LogStream == "" {
		cfg.LogStream = "genai-" + time.Now().Format("2006-01-02")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	e := &CloudWatchExporter{
		logGroup:  cfg.LogGroup,
		logStream: cfg.LogStream,
		region:    cfg.Region,
		accessKey: cfg.AccessKeyID,
		secretKey: cfg.SecretAccessKey,
		logger:    cfg.Logger.With(zap.String("exporter", "cloudwatch")),
	}
	e.batcher = newBatcher(cfg.BatchSize, cfg.FlushInterval, e.sendBatch)
	return e
}

// SetClient injects a CloudWatch Logs client, replacing lazy construction.
func (e *CloudWatchExporter) SetClient(client cloudwatchlogsiface.CloudWatchLogsAPI) {
	e.sendMu.Lock()
	e.client = client
	e.sendMu.Unlock()
}

// Export delivers or enqueues one record as a log event.
func (e *CloudWatchExporter) Export(ctx context.Context, rec span.Record) bool {
	return e.enqueue(ctx, rec)
}

// ExportBatch delivers multiple records sequentially.
func (e *CloudWatchExporter) ExportBatch(ctx context.Context, recs []span.Record) bool {
	return exportEach(ctx, e, recs)
}

// HealthCheck reports whether a client is available or constructible.
func (e *CloudWatchExporter) HealthCheck(ctx context.Context) bool {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()
	return e.ensureClient() == nil
}

// ensureClient lazily constructs the SDK client. Callers hold sendMu.
func (e *CloudWatchExporter) ensureClient() error {
	if e.client != nil {
		return nil
	}
	awsCfg := aws.NewConfig().WithRegion(e.region)
	if e.accessKey != "" && e.secretKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(e.accessKey, e.secretKey, ""))
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return err
	}
	e.client = cloudwatchlogs.New(sess)
	return nil
}

func (e *CloudWatchExporter) sendBatch(ctx context.Context, batch []span.Record) bool {
	if len(batch) == 0 {
		return true
	}

	events := make([]*cloudwatchlogs.InputLogEvent, 0, len(batch))
	now := time.Now().UnixMilli()
	for _, rec := range batch {
		line, err := json.Marshal(rec)
		if err != nil {
			e.logger.Error("encode log event", zap.Error(err))
			continue
		}
		events = append(events, &cloudwatchlogs.InputLogEvent{
			Timestamp: aws.Int64(now),
			Message:   aws.String(string(line)),
		})
	}
	if len(events) == 0 {
		return false
	}

	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	if err := e.ensureClient(); err != nil {
		e.logger.Warn("cloudwatch client unavailable, dropping batch",
			zap.Int("events", len(events)), zap.Error(err))
		return false
	}

	input := &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(e.logGroup),
		LogStreamName: aws.String(e.logStream),
		LogEvents:     events,
		SequenceToken: e.sequenceToken,
	}

	out, err := e.client.PutLogEventsWithContext(ctx, input)
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == cloudwatchlogs.ErrCodeResourceNotFoundException {
			// Lazily create the group/stream and retry once.
			if err := e.createStream(ctx); err != nil {
				e.logger.Error("create log stream failed", zap.Error(err))
				return false
			}
			input.SequenceToken = nil
			out, err = e.client.PutLogEventsWithContext(ctx, input)
		}
		if err != nil {
			e.logger.Error("cloudwatch send failed", zap.Error(err))
			return false
		}
	}

	e.sequenceToken = out.NextSequenceToken
	return true
}

// createStream creates the log group and stream, tolerating both already
// existing.
func (e *CloudWatchExporter) createStream(ctx context.Context) error {
	_, err := e.client.CreateLogGroupWithContext(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(e.logGroup),
	})
	if err != nil && !isAlreadyExists(err) {
		return err
	}
	_, err = e.client.CreateLogStreamWithContext(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(e.logGroup),
		LogStreamName: aws.String(e.logStream),
	})
	if err != nil && !isAlreadyExists(err) {
		return err
	}
	return nil
}

func isAlreadyExists(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == cloudwatchlogs.ErrCodeResourceAlreadyExistsException
}
