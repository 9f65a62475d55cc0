package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMultiFansOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	var got string
	sink := Multi{a, nil, b, Func(func(m string) { got = m }), Nop{}}

	sink.SetStatus(Saved("grok_abc_001.jpg"))

	assert.Equal(t, []string{"Last saved: grok_abc_001.jpg"}, a.Lines())
	assert.Equal(t, "Last saved: grok_abc_001.jpg", b.Last())
	assert.Equal(t, "Last saved: grok_abc_001.jpg", got)
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "Rescanning...", Rescanning)
	assert.Equal(t, "Session: abc", SessionActive("abc"))
	assert.Equal(t, "Counter reset for abc", CounterReset("abc"))
	assert.Equal(t, "", (&Recorder{}).Last())
}

func TestZapSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ZapSink{Logger: zap.New(core)}.SetStatus(Rescanning)
	ZapSink{}.SetStatus("ignored")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "status", entries[0].Message)
		assert.Equal(t, Rescanning, entries[0].ContextMap()["message"])
	}
}
