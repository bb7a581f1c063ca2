package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"garasiku/internal/notifications/email"
	"garasiku/internal/types"
)

// Metrics receives job telemetry. Implementations must not fail the job.
type Metrics interface {
	RecordTasksFound(ctx context.Context, kind types.TaskKind, n int)
	RecordDispatch(ctx context.Context, group string, status email.DeliveryStatus)
	RecordJobLatency(ctx context.Context, d time.Duration, success bool)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordTasksFound(context.Context, types.TaskKind, int)        {}
func (NoopMetrics) RecordDispatch(context.Context, string, email.DeliveryStatus) {}
func (NoopMetrics) RecordJobLatency(context.Context, time.Duration, bool)        {}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics publishes job metrics:
//   - ReminderTasksFound: Dims {Kind}
//   - ReminderDispatch: Dims {Group, Result}
//   - ReminderJobLatency: Dims {Result}, milliseconds
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchMetrics publishes under namespace, or types.MetricNamespace
// when empty.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

func (m *CloudWatchMetrics) RecordTasksFound(ctx context.Context, kind types.TaskKind, n int) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricReminderTasksFound),
		Value:      aws.Float64(float64(n)),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimKind), Value: aws.String(string(kind))},
		},
	})
}

func (m *CloudWatchMetrics) RecordDispatch(ctx context.Context, group string, status email.DeliveryStatus) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricReminderDispatch),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimGroup), Value: aws.String(group)},
			{Name: aws.String(types.DimResult), Value: aws.String(string(status))},
		},
	})
}

func (m *CloudWatchMetrics) RecordJobLatency(ctx context.Context, d time.Duration, success bool) {
	result := "success"
	if !success {
		result = "failed"
	}
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricReminderJobLatency),
		Value:      aws.Float64(float64(d.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimResult), Value: aws.String(result)},
		},
	})
}

func (m *CloudWatchMetrics) put(ctx context.Context, datum cwtypes.MetricDatum) {
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to record metric",
			"metric", aws.ToString(datum.MetricName),
			"error", err,
		)
	}
}

var (
	_ Metrics = NoopMetrics{}
	_ Metrics = (*CloudWatchMetrics)(nil)
)
