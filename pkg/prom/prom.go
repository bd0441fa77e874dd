package prom

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nimasrn/ar-collections/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemJobs    = "jobs"
	SystemSync    = "sync"
	SystemEmail   = "email"
	SystemHTTP    = "http"
	SystemGateway = "gateway"
)

const (
	MetricJobRunsTotal        = "runs_total"
	MetricJobDurationSeconds  = "duration_seconds"
	MetricJobAffectedRows     = "affected_rows_total"
	MetricSyncChangesTotal    = "changes_total"
	MetricSyncDurationSeconds = "duration_seconds"
	MetricEmailsTotal         = "messages_total"
	MetricHTTPRequestsTotal   = "requests_total"
	MetricHTTPDurationSeconds = "request_duration_seconds"
	MetricQueueDepth          = "queue_depth"
	MetricGatewayCallsTotal   = "calls_total"
	MetricGatewayLatency      = "call_duration_seconds"
)

const (
	TypeCounter      = "counter"
	TypeCounterVec   = "counterVec"
	TypeHistogram    = "histogram"
	TypeHistogramVec = "histogramVec"
	TypeGaugeVec     = "gaugeVec"
)

var lockCreateMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var MetricCollectionCounters = make(map[string]prometheus.Counter)
var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionGaugeVec = make(map[string]*prometheus.GaugeVec)
var MetricCollectionHistogram = make(map[string]prometheus.Histogram)
var MetricCollectionHistogramVec = make(map[string]*prometheus.HistogramVec)

var defaultLabels prometheus.Labels

var registerer prometheus.Registerer = prometheus.DefaultRegisterer

// Create registers every metric the service reports. Calling it is optional;
// until it is called every Add*/Inc* helper is a no-op.
func Create(host string, env string, nameSpace string) error {
	defaultLabels = prometheus.Labels{"env": env, "instance": host}
	namespace = nameSpace

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounterVec(SystemJobs, MetricJobRunsTotal, []string{"job", "result"}))
	hasError(createHistogramVec(SystemJobs, MetricJobDurationSeconds, []string{"job"}))
	hasError(createCounterVec(SystemJobs, MetricJobAffectedRows, []string{"job"}))
	hasError(createCounterVec(SystemSync, MetricSyncChangesTotal, []string{"entity", "action"}))
	hasError(createHistogramVec(SystemSync, MetricSyncDurationSeconds, []string{"result"}))
	hasError(createCounterVec(SystemEmail, MetricEmailsTotal, []string{"kind", "result"}))
	hasError(createGaugeVec(SystemEmail, MetricQueueDepth, []string{"queue"}))
	hasError(createCounterVec(SystemHTTP, MetricHTTPRequestsTotal, []string{"method", "route", "status"}))
	hasError(createHistogramVec(SystemHTTP, MetricHTTPDurationSeconds, []string{"method", "route"}))
	hasError(createCounterVec(SystemGateway, MetricGatewayCallsTotal, []string{"target", "result"}))
	hasError(createHistogramVec(SystemGateway, MetricGatewayLatency, []string{"target"}))

	if err == nil {
		MetricSystemEnabled = true
	}
	return err
}

func CreateMetric(metricType, metricSubsystem, metricName string, labelsValues ...string) error {
	switch metricType {
	case TypeCounter:
		return createCounter(metricSubsystem, metricName)
	case TypeCounterVec:
		return createCounterVec(metricSubsystem, metricName, labelsValues)
	case TypeHistogram:
		return createHistogram(metricSubsystem, metricName)
	case TypeHistogramVec:
		return createHistogramVec(metricSubsystem, metricName, labelsValues)
	case TypeGaugeVec:
		return createGaugeVec(metricSubsystem, metricName, labelsValues)
	}
	return fmt.Errorf("metric type %s is not defined", metricType)
}

// ListenAndServer exposes the default registry on addr/url. It blocks.
func ListenAndServer(addr string, url string) error {
	metrics := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	handler := func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) == url {
			metrics(ctx)
			return
		}
		ctx.Error(fasthttp.StatusMessage(fasthttp.StatusNotFound), fasthttp.StatusNotFound)
	}
	logger.Info("[metrics-server] listening...", "addr", addr, "url", url)
	return fasthttp.ListenAndServe(addr, handler)
}

func createCounter(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionCounters[subsystem+name] = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        subsystem + " " + name,
		ConstLabels: defaultLabels,
	})
	return register(MetricCollectionCounters[subsystem+name])
}

func createCounterVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionCounterVec[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        subsystem + " " + name,
		ConstLabels: defaultLabels,
	}, labels)
	return register(MetricCollectionCounterVec[subsystem+name])
}

func createHistogram(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionHistogram[subsystem+name] = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        subsystem + " " + name,
		ConstLabels: defaultLabels,
		Buckets:     prometheus.DefBuckets,
	})
	return register(MetricCollectionHistogram[subsystem+name])
}

func createHistogramVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionHistogramVec[subsystem+name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        subsystem + " " + name,
		ConstLabels: defaultLabels,
	}, labels)
	return register(MetricCollectionHistogramVec[subsystem+name])
}

func createGaugeVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()

	MetricCollectionGaugeVec[subsystem+name] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        subsystem + " " + name,
		ConstLabels: defaultLabels,
	}, labels)
	return register(MetricCollectionGaugeVec[subsystem+name])
}

func register(c prometheus.Collector) error {
	if err := registerer.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return nil
		}
		return err
	}
	return nil
}

func IncCounter(subsystem, name string) {
	AddCounter(subsystem, name, 1)
}

func AddCounter(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounters[subsystem+name]; ok {
		v.Add(number)
		return
	}
	logger.Warn("[metrics-server] counter not found", "subsystem", subsystem, "name", name)
}

func SetGaugeVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionGaugeVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Set(num)
		return
	}
	logger.Warn("[metrics-server] gauge not found", "subsystem", subsystem, "name", name)
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddHistogramVec(subsystem, name string, number float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram vec not found", "subsystem", subsystem, "name", name)
}

func ObserveJobRun(job, result string, seconds float64, affected int64) {
	IncCounterVec(SystemJobs, MetricJobRunsTotal, job, result)
	AddHistogramVec(SystemJobs, MetricJobDurationSeconds, seconds, job)
	if affected > 0 {
		AddCounterVec(SystemJobs, MetricJobAffectedRows, float64(affected), job)
	}
}

func AddSyncChanges(entity, action string, n int) {
	AddCounterVec(SystemSync, MetricSyncChangesTotal, float64(n), entity, action)
}

func ObserveSyncRun(result string, seconds float64) {
	AddHistogramVec(SystemSync, MetricSyncDurationSeconds, seconds, result)
}

func IncEmail(kind, result string) {
	IncCounterVec(SystemEmail, MetricEmailsTotal, kind, result)
}

func SetQueueDepth(queue string, depth int64) {
	SetGaugeVec(SystemEmail, MetricQueueDepth, float64(depth), queue)
}

func ObserveHTTPRequest(method, route, status string, seconds float64) {
	IncCounterVec(SystemHTTP, MetricHTTPRequestsTotal, method, route, status)
	AddHistogramVec(SystemHTTP, MetricHTTPDurationSeconds, seconds, method, route)
}

func ObserveGatewayCall(target, result string, seconds float64) {
	IncCounterVec(SystemGateway, MetricGatewayCallsTotal, target, result)
	AddHistogramVec(SystemGateway, MetricGatewayLatency, seconds, target)
}
