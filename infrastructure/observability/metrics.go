package observability

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"raffle/config"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

var weiPerEther = new(big.Float).SetFloat64(1e18)

// MetricsProvider manages OpenTelemetry metrics for the raffle service.
// A nil provider, or one that is disabled, silently drops every record.
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	entriesCounter        metric.Int64Counter
	drawsRequestedCounter metric.Int64Counter
	drawsCompletedCounter metric.Int64Counter
	fulfillmentsRejected  metric.Int64Counter
	payoutFailuresCounter metric.Int64Counter
	orphanedRequests      metric.Int64Counter
	poolBalanceGauge      metric.Float64Gauge
	playersGauge          metric.Int64Gauge
	upkeepChecksCounter   metric.Int64Counter
	natsMessagesPublished metric.Int64Counter
	operationDurationHist metric.Float64Histogram
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
			attribute.Int64("raffle_id", mp.config.RaffleID),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdkmetric.Exporter
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
			),
		),
	)

	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("raffle")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	log.Info("Metrics provider initialized successfully")
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{&mp.entriesCounter, EntriesTotal, "Total number of raffle entries"},
		{&mp.drawsRequestedCounter, DrawsRequestedTotal, "Total number of randomness requests issued"},
		{&mp.drawsCompletedCounter, DrawsCompletedTotal, "Total number of completed draws"},
		{&mp.fulfillmentsRejected, FulfillmentsRejected, "Total number of rejected randomness fulfillments"},
		{&mp.payoutFailuresCounter, PayoutFailuresTotal, "Total number of failed winner payouts"},
		{&mp.orphanedRequests, OrphanedRequests, "Total number of oracle requests left untracked after a failed upkeep"},
		{&mp.upkeepChecksCounter, UpkeepChecksTotal, "Total number of upkeep checks"},
		{&mp.natsMessagesPublished, NATSMessagesPublished, "Total number of NATS messages published"},
	}
	for _, c := range counters {
		*c.target, err = mp.meter.Int64Counter(c.name, metric.WithDescription(c.description), metric.WithUnit("1"))
		if err != nil {
			return fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	mp.poolBalanceGauge, err = mp.meter.Float64Gauge(
		PoolBalance,
		metric.WithDescription("Current prize pool of the open round in ether"),
		metric.WithUnit("ETH"),
	)
	if err != nil {
		return fmt.Errorf("failed to create pool balance gauge: %w", err)
	}

	mp.playersGauge, err = mp.meter.Int64Gauge(
		PlayersActive,
		metric.WithDescription("Current number of entrants in the open round"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create players gauge: %w", err)
	}

	mp.operationDurationHist, err = mp.meter.Float64Histogram(
		OperationDuration,
		metric.WithDescription("Duration of raffle operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create operation duration histogram: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordEntry records an accepted entry and the resulting round size
func (mp *MetricsProvider) RecordEntry(players int64, pool *big.Int) {
	if !mp.isEnabled() {
		return
	}
	ctx := context.Background()
	mp.entriesCounter.Add(ctx, 1)
	mp.playersGauge.Record(ctx, players)
	mp.poolBalanceGauge.Record(ctx, toEther(pool))
}

// RecordDrawRequested records a randomness request
func (mp *MetricsProvider) RecordDrawRequested() {
	if !mp.isEnabled() {
		return
	}
	mp.drawsRequestedCounter.Add(context.Background(), 1)
}

// RecordDrawCompleted records a paid out draw and resets the round gauges
func (mp *MetricsProvider) RecordDrawCompleted() {
	if !mp.isEnabled() {
		return
	}
	ctx := context.Background()
	mp.drawsCompletedCounter.Add(ctx, 1)
	mp.playersGauge.Record(ctx, 0)
	mp.poolBalanceGauge.Record(ctx, 0)
}

// RecordFulfillmentRejected records a fulfillment that did not match the active request
func (mp *MetricsProvider) RecordFulfillmentRejected(reason string) {
	if !mp.isEnabled() {
		return
	}
	mp.fulfillmentsRejected.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelReason, reason)),
	)
}

// RecordPayoutFailure records a payout that rolled back a draw
func (mp *MetricsProvider) RecordPayoutFailure() {
	if !mp.isEnabled() {
		return
	}
	mp.payoutFailuresCounter.Add(context.Background(), 1)
}

// RecordOrphanedRequest records an oracle request that could not be cancelled after its draw rolled back
func (mp *MetricsProvider) RecordOrphanedRequest() {
	if !mp.isEnabled() {
		return
	}
	mp.orphanedRequests.Add(context.Background(), 1)
}

// RecordUpkeepCheck records one trigger evaluation
func (mp *MetricsProvider) RecordUpkeepCheck(needed bool) {
	if !mp.isEnabled() {
		return
	}
	mp.upkeepChecksCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Bool("needed", needed)),
	)
}

// RecordNATSMessagePublished records a NATS message being published
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if !mp.isEnabled() {
		return
	}
	mp.natsMessagesPublished.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelEventType, eventType)),
	)
}

// RecordOperation records the duration and outcome of an engine operation
func (mp *MetricsProvider) RecordOperation(operation, result string, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}
	mp.operationDurationHist.Record(context.Background(), duration.Seconds(),
		metric.WithAttributes(
			attribute.String(LabelOperation, operation),
			attribute.String(LabelResult, result),
		),
	)
}

// MeasureOperation returns a function recording the operation when called
// Usage:
//
//	defer mp.MeasureOperation("enter")(&result)
func (mp *MetricsProvider) MeasureOperation(operation string) func(result *string) {
	start := time.Now()
	return func(result *string) {
		mp.RecordOperation(operation, *result, time.Since(start))
	}
}

// isEnabled checks if metrics are enabled and exporting
func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.meter != nil
}

func toEther(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther).Float64()
	return f
}

// Global metrics provider instance
var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return err
}

// GetMetrics returns the global metrics provider, nil before initialization
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	if globalMetrics != nil {
		return globalMetrics.Shutdown(ctx)
	}
	return nil
}
