package orchestration

import (
	"context"
	"image"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/koscakluka/ema-vision/core/events"
	"github.com/koscakluka/ema-vision/core/vision"
)

type videoSourceStub struct{}

func (videoSourceStub) VideoTrack(context.Context) (vision.VideoTrack, bool) {
	return videoTrackStub{}, true
}

type videoTrackStub struct{}

func (videoTrackStub) ID() string { return "camera" }

func (videoTrackStub) OpenStream(context.Context) (vision.FrameStream, error) {
	return frameStreamStub{}, nil
}

type frameStreamStub struct{}

func (frameStreamStub) Next(context.Context) (vision.Frame, error) {
	return vision.Frame{Image: image.NewRGBA(image.Rect(0, 0, 8, 8)), Timestamp: time.Now()}, nil
}

func (frameStreamStub) Close() error { return nil }

func TestSnapshotSpansAreNamedPerLayer(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(noop.NewTracerProvider())
		_ = provider.Shutdown(context.Background())
	})

	llm := &scriptedLLMStub{chunks: []string{"A small square."}}
	o := NewOrchestrator(
		WithConfig(testConfig()),
		WithStreamingLLM(llm),
		WithVideoSource(videoSourceStub{}),
	)
	defer o.Close()

	recorder := &eventRecorder{}
	if err := o.Orchestrate(context.Background(), WithEventCallback(recorder.record)); err != nil {
		t.Fatalf("failed to orchestrate: %v", err)
	}
	if err := o.SendPrompt("what do you see?"); err != nil {
		t.Fatalf("failed to send prompt: %v", err)
	}
	waitForCondition(t, 2*time.Second, "response to complete", func() bool {
		return recorder.count(events.KindResponseCompleted) == 1
	})
	if recorder.count(events.KindSnapshotCaptured) != 1 {
		t.Fatalf("expected a captured snapshot")
	}

	byName := map[string][]sdktrace.ReadOnlySpan{}
	for _, span := range spans.Ended() {
		byName[span.Name()] = append(byName[span.Name()], span)
	}
	attach, capture := byName["attach snapshot"], byName["capture snapshot"]
	if len(attach) != 1 || len(capture) != 1 {
		t.Fatalf("expected one attach and one capture span, got %d and %d", len(attach), len(capture))
	}
	if capture[0].Parent().SpanID() != attach[0].SpanContext().SpanID() {
		t.Fatalf("expected the capture span to be a child of the attach span")
	}
}
