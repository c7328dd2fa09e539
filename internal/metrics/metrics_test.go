package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New()

	m.RecordCommand("start")
	m.RecordCommand("start")
	m.RecordCapabilityCall("stop")
	m.RecordResult(true, true)
	m.RecordResult(false, true)
	m.RecordLine()
	m.RecordError("network")
	m.RecordEnd()
	m.SetState(true, true)

	require.Equal(t, 2.0, value(t, m.Commands.WithLabelValues("start")))
	require.Equal(t, 1.0, value(t, m.CapabilityCalls.WithLabelValues("stop")))
	require.Equal(t, 1.0, value(t, m.Results.WithLabelValues("interim")))
	require.Equal(t, 2.0, value(t, m.Results.WithLabelValues("final")))
	require.Equal(t, 1.0, value(t, m.LinesAppended))
	require.Equal(t, 1.0, value(t, m.CapabilityErrors.WithLabelValues("network")))
	require.Equal(t, 1.0, value(t, m.CapabilityEnds))
	require.Equal(t, 1.0, value(t, m.Listening))
	require.Equal(t, 1.0, value(t, m.Muted))

	m.SetState(false, true)
	require.Equal(t, 0.0, value(t, m.Listening))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.RecordCommand("start")
		m.RecordCapabilityCall("start")
		m.RecordResult(true, true)
		m.RecordLine()
		m.RecordError("network")
		m.RecordEnd()
		m.SetState(true, false)
	})
}

func TestServerServesMetricsAndHealth(t *testing.T) {
	m := New()
	m.RecordLine()

	server := NewServer("127.0.0.1:0", m, zerolog.Nop())
	require.NoError(t, server.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})

	body := get(t, "http://"+server.Addr()+"/healthz")
	require.Equal(t, "ok", body)

	body = get(t, "http://"+server.Addr()+"/metrics")
	require.Contains(t, body, "livescribe_transcript_lines_total 1")
}

func value(t *testing.T, metric prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, metric.Write(&out))
	if out.Counter != nil {
		return out.Counter.GetValue()
	}
	return out.Gauge.GetValue()
}

func get(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}
