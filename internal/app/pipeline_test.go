package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/leveler/internal/calibration"
	"github.com/relabs-tech/leveler/internal/connection"
	"github.com/relabs-tech/leveler/internal/protocol"
	"github.com/relabs-tech/leveler/internal/render"
	"github.com/relabs-tech/leveler/internal/tilt"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type harness struct {
	pipeline *Pipeline
	store    *ViewStore
	form     *calibration.Form
	registry *prometheus.Registry
}

func newHarness(t *testing.T, sinks ...FrameSink) *harness {
	t.Helper()
	rollSurface, err := render.NewImageSurface(64)
	require.NoError(t, err)
	pitchSurface, err := render.NewImageSurface(64)
	require.NoError(t, err)

	model := tilt.NewModel()
	h := &harness{
		store:    NewViewStore(),
		form:     calibration.NewForm(model.Snapshot().Calibration),
		registry: prometheus.NewRegistry(),
	}
	metrics := connection.NewMetrics(h.registry)
	h.pipeline = NewPipeline(model,
		render.New(render.AxisRoll, rollSurface, nil),
		render.New(render.AxisPitch, pitchSurface, nil),
		h.form, quiet, metrics, append([]FrameSink{h.store}, sinks...)...)
	h.pipeline.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return h
}

func reading(t *testing.T, roll, pitch float64) []byte {
	t.Helper()
	data, err := protocol.EncodeReading(protocol.Reading{
		Telemetry:   protocol.TelemetrySample{RollAngleDeg: roll, PitchAngleDeg: pitch},
		Calibration: protocol.CalibrationState{RollDeviationDeg: 2, PitchDeviationDeg: 2, WheelbaseMm: 2000, DrawbarMm: 4000},
	})
	require.NoError(t, err)
	return data
}

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestPipeline_RendersBothAxes(t *testing.T) {
	h := newHarness(t)
	h.pipeline.HandleMessage(reading(t, 5, 0))

	u, ok := h.store.Latest()
	require.True(t, ok)
	assert.Equal(t, "5.0", u.Snapshot.RollText)
	assert.Equal(t, "Raise right 174 cm", u.Roll.Adjustment.Text)
	assert.Equal(t, render.OutOfTolerance, u.Roll.Zone)
	assert.Equal(t, render.InTolerance, u.Pitch.Zone)
	assert.True(t, bytes.HasPrefix(u.RollPNG, pngMagic))
	assert.True(t, bytes.HasPrefix(u.PitchPNG, pngMagic))

	assert.ElementsMatch(t, []tilt.Field{tilt.FieldRollDeviation, tilt.FieldPitchDeviation}, u.Changed)
	v := h.form.Values()
	assert.Equal(t, "2.0", v.RollDeviation)
	assert.Equal(t, "2000", v.Wheelbase)
}

func TestPipeline_MalformedMessageKeepsState(t *testing.T) {
	h := newHarness(t)
	h.pipeline.HandleMessage(reading(t, 1.5, -0.5))
	h.pipeline.HandleMessage([]byte(`{"rollValue":"abc"}`))
	h.pipeline.HandleMessage([]byte(`not json`))

	assert.Equal(t, uint64(1), h.store.Frames())
	u, _ := h.store.Latest()
	assert.Equal(t, "1.5", u.Snapshot.RollText)

	expected := `
# HELP leveler_decode_errors_total Inbound messages discarded because they did not decode.
# TYPE leveler_decode_errors_total counter
leveler_decode_errors_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(h.registry, strings.NewReader(expected), "leveler_decode_errors_total"))
}

func TestPipeline_OperatorEditSurvivesPolls(t *testing.T) {
	h := newHarness(t)
	h.pipeline.HandleMessage(reading(t, 0, 0))
	h.form.Set(tilt.FieldWheelbase, "2300")

	h.pipeline.HandleMessage(reading(t, 0.3, 0))
	assert.Equal(t, "2300", h.form.Values().Wheelbase)
}

func TestViewHandler(t *testing.T) {
	h := newHarness(t)
	h.store.SetState(connection.Open)
	handler := NewViewHandler(h.store, h.form, h.registry, quiet)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusServiceUnavailable, get("/api/tilt").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get("/roll.png").Code)

	h.pipeline.HandleMessage(reading(t, 5, 0))

	rec := get("/api/tilt")
	require.Equal(t, http.StatusOK, rec.Code)
	var m TiltMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "open", m.State)
	assert.Equal(t, "Raise right 174 cm", m.Roll.Adjustment.Text)
	assert.Equal(t, "out_of_tolerance", m.Roll.ZoneName)
	assert.Equal(t, 4000.0, m.Calibration.DrawbarMm)

	rec = get("/pitch.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), pngMagic))

	rec = get("/api/form")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rollDeviation":"2.0"`)

	rec = get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "leveler_connection_state")

	assert.Contains(t, get("/").Body.String(), "<title>Leveler</title>")
	assert.Equal(t, http.StatusNotFound, get("/nope").Code)
}

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}
func (t doneToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeMQTT struct {
	msgs []published
	err  error
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.msgs = append(f.msgs, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return doneToken{err: f.err}
}

func TestPublisher_RetainedTiltMessage(t *testing.T) {
	client := &fakeMQTT{}
	pub := NewPublisher(client, "leveler/tilt", func() string { return "open" }, quiet)
	h := newHarness(t, pub)

	h.pipeline.HandleMessage(reading(t, 5, 0))

	require.Len(t, client.msgs, 1)
	msg := client.msgs[0]
	assert.Equal(t, "leveler/tilt", msg.topic)
	assert.Equal(t, byte(0), msg.qos)
	assert.True(t, msg.retained)

	line, err := monitorLine(msg.payload)
	require.NoError(t, err)
	assert.Contains(t, line, "Raise right 174 cm")
	assert.Contains(t, line, "out_of_tolerance")
	assert.Contains(t, line, "state=open")
}

func TestPublisher_ErrorDoesNotStopPipeline(t *testing.T) {
	client := &fakeMQTT{err: errors.New("not connected")}
	h := newHarness(t, NewPublisher(client, "t", nil, quiet))

	h.pipeline.HandleMessage(reading(t, 1, 1))
	h.pipeline.HandleMessage(reading(t, 2, 2))
	assert.Len(t, client.msgs, 2)
	assert.Equal(t, uint64(2), h.store.Frames())
}

func TestMonitorLine_RejectsGarbage(t *testing.T) {
	_, err := monitorLine([]byte("{"))
	assert.Error(t, err)
}

func TestClientID(t *testing.T) {
	a, b := clientID("leveler"), clientID("leveler")
	assert.True(t, strings.HasPrefix(a, "leveler-"))
	assert.Len(t, a, len("leveler-")+8)
	assert.NotEqual(t, a, b)
}
