package backend

import (
	"context"
	"errors"
	"testing"

	"trtd/internal/cuda"
)

type emitted struct {
	token   uint32
	logProb float32
	final   bool
}

func collect(sink *[]emitted) TokenCallback {
	return func(token uint32, logProb float32, isFinal bool) error {
		*sink = append(*sink, emitted{token, logProb, isFinal})
		return nil
	}
}

func TestStreamEmitsTokensInOrder(t *testing.T) {
	fake := newFakeExecutor()
	b := newTestBackend(t, fake, Config{}, cuda.Capability{})
	defer b.Close()

	fake.scriptNext(
		[]Response{{Token: 5}, {Token: 9}},
		[]Response{{Token: 3, IsFinal: true}},
	)
	id, err := b.Submit(validRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	var got []emitted
	n, err := b.Stream(context.Background(), id, collect(&got))
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 tokens produced, got %d", n)
	}
	want := []emitted{{5, 0, false}, {9, 0, false}, {3, 0, true}}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestStreamErrorTerminatesAfterEmittedTokens(t *testing.T) {
	fake := newFakeExecutor()
	b := newTestBackend(t, fake, Config{}, cuda.Capability{})
	defer b.Close()

	fake.scriptNext(
		[]Response{{Token: 5}},
		[]Response{{Error: "oom"}},
	)
	id, err := b.Submit(validRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	var got []emitted
	n, err := b.Stream(context.Background(), id, collect(&got))
	if !IsGenerationError(err) {
		t.Fatalf("expected generation error, got %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 token produced before the error, got %d", n)
	}
	if len(got) != 1 || got[0].token != 5 {
		t.Fatalf("already-emitted tokens must stand: %+v", got)
	}
}

func TestStreamForwardsPopulatedLogProbs(t *testing.T) {
	fake := newFakeExecutor()
	b := newTestBackend(t, fake, Config{}, cuda.Capability{})
	defer b.Close()

	lp := float32(-0.25)
	fake.scriptNext([]Response{{Token: 7, LogProb: &lp, IsFinal: true}})
	id, err := b.Submit(validRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	var got []emitted
	if _, err := b.Stream(context.Background(), id, collect(&got)); err != nil {
		t.Fatalf("stream: %v", err)
	}
	if got[0].logProb != -0.25 {
		t.Fatalf("expected populated log-prob, got %v", got[0].logProb)
	}
}

func TestStreamCallbackErrorAborts(t *testing.T) {
	fake := newFakeExecutor()
	b := newTestBackend(t, fake, Config{}, cuda.Capability{})
	defer b.Close()

	fake.scriptNext(
		[]Response{{Token: 1}, {Token: 2}},
		[]Response{{Token: 3, IsFinal: true}},
	)
	id, err := b.Submit(validRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	abort := errors.New("sink closed")
	calls := 0
	n, err := b.Stream(context.Background(), id, func(uint32, float32, bool) error {
		calls++
		return abort
	})
	if !errors.Is(err, abort) {
		t.Fatalf("expected sink error to propagate, got %v", err)
	}
	if calls != 1 || n != 1 {
		t.Fatalf("expected draining to stop after the failing call, calls=%d n=%d", calls, n)
	}
}

func TestStreamHonorsContextBetweenPolls(t *testing.T) {
	fake := newFakeExecutor()
	b := newTestBackend(t, fake, Config{}, cuda.Capability{})
	defer b.Close()

	id, err := b.Submit(validRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Stream(ctx, id, collect(new([]emitted))); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestStreamIsolatesConcurrentRequests(t *testing.T) {
	fake := newFakeExecutor()
	b := newTestBackend(t, fake, Config{}, cuda.Capability{})
	defer b.Close()

	fake.scriptNext([]Response{{Token: 11, IsFinal: true}})
	id1, err := b.Submit(validRequest())
	if err != nil {
		t.Fatalf("submit 1: %v", err)
	}
	fake.scriptNext([]Response{{Token: 22}, {Token: 23, IsFinal: true}})
	id2, err := b.Submit(validRequest())
	if err != nil {
		t.Fatalf("submit 2: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("concurrent requests must not share an id")
	}

	var got1, got2 []emitted
	done := make(chan error, 2)
	go func() {
		_, err := b.Stream(context.Background(), id1, collect(&got1))
		done <- err
	}()
	go func() {
		_, err := b.Stream(context.Background(), id2, collect(&got2))
		done <- err
	}()
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("stream: %v", err)
		}
	}
	if len(got1) != 1 || got1[0].token != 11 {
		t.Fatalf("stream 1 received foreign events: %+v", got1)
	}
	if len(got2) != 2 || got2[0].token != 22 || got2[1].token != 23 {
		t.Fatalf("stream 2 received foreign events: %+v", got2)
	}
}
