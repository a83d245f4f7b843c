package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppMetricsCounters(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)

	m.Bytes(14)
	m.Bytes(0)
	m.Frame("ok")
	m.Frame("ok")
	m.Frame("malformed")
	m.Variant("pattern")
	m.ReadError()
	m.Connect(true)
	m.Connect(false)
	m.SetReaderActive(true)

	assert.Equal(t, 14.0, testutil.ToFloat64(m.SerialBytes))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeVariant.WithLabelValues("pattern")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SerialReadErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectsTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReaderActive))

	m.SetReaderActive(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ReaderActive))
}

func TestReaderActiveCountsOverlap(t *testing.T) {
	m := NewAppMetrics(NewRegistry())

	m.SetReaderActive(true)
	m.SetReaderActive(true)
	m.SetReaderActive(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReaderActive))
}

func TestNilAppMetricsIsSafe(t *testing.T) {
	var m *AppMetrics
	assert.NotPanics(t, func() {
		m.Bytes(3)
		m.Frame("ok")
		m.Variant("json")
		m.ReadError()
		m.Connect(true)
		m.SetReaderActive(true)
	})
}

func TestHandlerServesSeries(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)
	m.Frame("unrecognized")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `scoreboard_frames_total{result="unrecognized"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
