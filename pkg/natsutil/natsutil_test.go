package natsutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func startTestNATS(t *testing.T) (*natsserver.Server, *nats.Conn) {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	require.NoError(t, err)
	srv.Start()
	require.True(t, srv.ReadyForConnections(3*time.Second), "nats not ready")

	nc, err := Connect(srv.ClientURL(), "natsutil-test", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return srv, nc
}

type payload struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestNatsHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	c := (*natsHeaderCarrier)(msg)
	assert.Equal(t, "", c.Get("missing"))
	assert.Nil(t, c.Keys())

	c.Set("traceparent", "00-abc")
	c.Set("traceparent", "00-def")
	c.Set("tracestate", "x=1")
	assert.Equal(t, "00-def", c.Get("traceparent"))
	assert.ElementsMatch(t, []string{"traceparent", "tracestate"}, c.Keys())
}

func TestConnect_BadURL(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "test", nil)
	assert.Error(t, err)
}

func TestPublish(t *testing.T) {
	_, nc := startTestNATS(t)

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("test.pub", ch)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, Publish(context.Background(), nc, "test.pub", payload{Name: "hello", Value: 1}))

	select {
	case msg := <-ch:
		var p payload
		require.NoError(t, json.Unmarshal(msg.Data, &p))
		assert.Equal(t, payload{Name: "hello", Value: 1}, p)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishMarshalError(t *testing.T) {
	_, nc := startTestNATS(t)
	assert.Error(t, Publish(context.Background(), nc, "test.bad", make(chan int)))
}

func TestSubscribe(t *testing.T) {
	_, nc := startTestNATS(t)

	got := make(chan payload, 1)
	sub, err := Subscribe(nc, "test.sub", func(_ context.Context, p payload) { got <- p })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, nc.Publish("test.sub", []byte("{not json")))
	require.NoError(t, Publish(context.Background(), nc, "test.sub", payload{Name: "ok", Value: 2}))

	select {
	case p := <-got:
		assert.Equal(t, payload{Name: "ok", Value: 2}, p)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
	select {
	case p := <-got:
		t.Fatalf("malformed message delivered: %+v", p)
	default:
	}
}

func TestTraceContextPropagates(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	_, nc := startTestNATS(t)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	got := make(chan trace.SpanContext, 1)
	sub, err := Subscribe(nc, "test.trace", func(ctx context.Context, _ payload) {
		got <- trace.SpanContextFromContext(ctx)
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, Publish(ctx, nc, "test.trace", payload{}))
	select {
	case remote := <-got:
		assert.Equal(t, traceID, remote.TraceID())
		assert.True(t, remote.IsRemote())
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}
