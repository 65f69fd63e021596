package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveToolRecordsStatusLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveTool("shell", false, 50*time.Millisecond)
	m.ObserveTool("shell", true, 10*time.Millisecond)

	successCount := histogramSampleCount(t, m.ToolDuration.WithLabelValues("shell", "success"))
	errorCount := histogramSampleCount(t, m.ToolDuration.WithLabelValues("shell", "error"))

	if successCount != 1 {
		t.Fatalf("expected 1 success sample, got %d", successCount)
	}
	if errorCount != 1 {
		t.Fatalf("expected 1 error sample, got %d", errorCount)
	}
}

func TestObserveChatRequestAccumulatesTokens(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveChatRequest("anthropic", "claude-sonnet", 2*time.Second, 100, 40)
	m.ObserveChatRequest("anthropic", "claude-sonnet", time.Second, 50, 20)

	input := counterValue(t, m.TokensUsed.WithLabelValues("anthropic", "claude-sonnet", "input"))
	output := counterValue(t, m.TokensUsed.WithLabelValues("anthropic", "claude-sonnet", "output"))

	if input != 150 {
		t.Fatalf("expected 150 cumulative input tokens, got %v", input)
	}
	if output != 60 {
		t.Fatalf("expected 60 cumulative output tokens, got %v", output)
	}
}

func TestObserveTransitionIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveTransition("completed")
	m.ObserveTransition("completed")
	m.ObserveTransition("failed")

	if got := counterValue(t, m.TaskTransitions.WithLabelValues("completed")); got != 2 {
		t.Fatalf("expected 2 completed transitions, got %v", got)
	}
	if got := counterValue(t, m.TaskTransitions.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected 1 failed transition, got %v", got)
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func histogramSampleCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	h, ok := o.(prometheus.Histogram)
	if !ok {
		t.Fatalf("observer is not a Histogram")
	}
	var m dto.Metric
	if err := h.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestObserveRetryIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRetry("anthropic", "529")
	m.ObserveRetry("anthropic", "529")
	m.ObserveRetry("bedrock", "throttlingexception")

	if got := counterValue(t, m.ChatRequestRetries.WithLabelValues("anthropic", "529")); got != 2 {
		t.Fatalf("expected 2 anthropic 529 retries, got %v", got)
	}
	if got := counterValue(t, m.ChatRequestRetries.WithLabelValues("bedrock", "throttlingexception")); got != 1 {
		t.Fatalf("expected 1 bedrock throttling retry, got %v", got)
	}
}

func TestWorkerGaugeTracksStartAndFinish(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.WorkerStarted()
	m.WorkerStarted()
	m.WorkerFinished()

	var dm dto.Metric
	if err := m.RunningWorkers.Write(&dm); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if got := dm.GetGauge().GetValue(); got != 1 {
		t.Fatalf("expected 1 running worker, got %v", got)
	}
}
