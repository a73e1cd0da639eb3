package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/research_radar/app/research/pkg/model"
)

func TestEmitter_OrderAndSingleTerminal(t *testing.T) {
	rec := &Recorder{}
	em := NewEmitter(context.Background(), rec)

	require.NoError(t, em.Progress(Progress{Status: PhaseInitializing, Message: "starting"}))
	require.NoError(t, em.Progress(Progress{Status: PhaseSearching, Message: "searching", SearchCount: Count(1)}))
	report := &model.StructuredReport{}
	report.Normalize()
	require.NoError(t, em.Complete(report))

	// 终止之后的写入全部忽略
	require.NoError(t, em.Progress(Progress{Status: PhaseAnalyzing}))
	require.NoError(t, em.Fail(Failure{Message: "late"}))

	assert.Equal(t, []string{"progress", "progress", "complete"}, rec.Types())
	frames := rec.Frames()
	for i, f := range frames {
		assert.Equal(t, uint64(i+1), f.Seq)
	}
	assert.True(t, em.Terminated())
	assert.Equal(t, 1, rec.Closes())
}

func TestEmitter_CloseIsIdempotent(t *testing.T) {
	rec := &Recorder{}
	em := NewEmitter(context.Background(), rec)

	require.NoError(t, em.Progress(Progress{Status: PhaseInitializing}))
	assert.NotPanics(t, func() {
		assert.NoError(t, em.Close())
		assert.NoError(t, em.Close())
	})

	assert.Equal(t, 1, rec.Closes())
	assert.Equal(t, []string{"progress"}, rec.Types(), "Close must not emit a terminal event")

	require.NoError(t, em.Fail(Failure{Message: "after close"}))
	assert.Equal(t, []string{"progress"}, rec.Types())
}

func TestEmitter_TransportFailureIsSilent(t *testing.T) {
	rec := &Recorder{FailAfter: 1}
	em := NewEmitter(context.Background(), rec)

	require.NoError(t, em.Progress(Progress{Status: PhaseInitializing}))
	err := em.Progress(Progress{Status: PhaseSearching})
	require.ErrorIs(t, err, ErrTransportClosed)
	assert.True(t, em.Broken())

	// 之后的写入静默丢弃
	assert.NoError(t, em.Progress(Progress{Status: PhaseReading}))
	assert.NoError(t, em.Fail(Failure{Message: "x"}))
	assert.Len(t, rec.Frames(), 1)
	assert.Equal(t, 1, rec.Closes(), "cleanup still runs")
}

func TestMarshal_WireShapes(t *testing.T) {
	b, err := Marshal(Progress{
		Status:      PhaseSearching,
		Message:     "Searching the web",
		SearchCount: Count(2),
		Metadata:    MetadataFor(model.ResearchRequest{Company: "Acme", Industry: "Retail"}, "research-large"),
	})
	require.NoError(t, err)
	var p map[string]any
	require.NoError(t, json.Unmarshal(b, &p))
	assert.Equal(t, "progress", p["type"])
	assert.Equal(t, "searching", p["status"])
	assert.Equal(t, float64(2), p["searchCount"])
	assert.NotContains(t, p, "pagesRead")
	assert.Equal(t, "research-large", p["metadata"].(map[string]any)["model"])

	b, err = Marshal(Failure{Message: "research failed", Details: "primary: timeout"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","message":"research failed","details":"primary: timeout"}`, string(b))

	report := &model.StructuredReport{}
	report.Normalize()
	b, err = Marshal(Complete{Report: report})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), `{"type":"complete","report":{`))
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(Progress{}))
	assert.True(t, IsTerminal(Complete{}))
	assert.True(t, IsTerminal(Failure{}))
}

func TestWriterTransport(t *testing.T) {
	var buf bytes.Buffer
	em := NewEmitter(context.Background(), NewWriterTransport(&buf))

	require.NoError(t, em.Progress(Progress{Status: PhaseInitializing, Message: "go"}))
	require.NoError(t, em.Fail(Failure{Message: "nope"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"status":"initializing"`)
	assert.Contains(t, lines[1], `"type":"error"`)
}

func TestWriterTransport_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	em := NewEmitter(ctx, NewWriterTransport(&bytes.Buffer{}))
	assert.ErrorIs(t, em.Progress(Progress{Status: PhaseInitializing}), ErrTransportClosed)
}
