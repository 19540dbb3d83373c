package worker

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func TestMap_KeepsInputOrder(t *testing.T) {
	inputs := make([]int, 200)
	for i := range inputs {
		inputs[i] = i
	}

	got, err := Map(context.Background(), 8, inputs, func(_ context.Context, n int) (string, error) {
		if n%7 == 0 {
			time.Sleep(time.Millisecond)
		}
		return strconv.Itoa(n * n), nil
	})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	for i, s := range got {
		if s != strconv.Itoa(i*i) {
			t.Fatalf("output %d = %s, want %d", i, s, i*i)
		}
	}
}

func TestMap_Empty(t *testing.T) {
	got, err := Map(context.Background(), 4, nil, func(context.Context, int) (int, error) {
		t.Fatal("fn called for empty input")
		return 0, nil
	})
	if err != nil || len(got) != 0 {
		t.Errorf("Map(nil) = %v, %v", got, err)
	}
}

func TestMap_ErrorCancelsRemainingWork(t *testing.T) {
	var calls int32
	inputs := make([]int, 1000)
	for i := range inputs {
		inputs[i] = i
	}

	_, err := Map(context.Background(), 2, inputs, func(ctx context.Context, n int) (int, error) {
		atomic.AddInt32(&calls, 1)
		if n == 3 {
			return 0, fmt.Errorf("input %d: %w", n, errBoom)
		}
		return n, nil
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
	if c := atomic.LoadInt32(&calls); c == int32(len(inputs)) {
		t.Error("expected remaining inputs to be skipped after the failure")
	}
}

var errBoom = errors.New("boom")

func TestMap_ReportsEarliestFailure(t *testing.T) {
	_, err := Map(context.Background(), 1, []int{0, 1, 2, 3}, func(_ context.Context, n int) (int, error) {
		if n%2 == 1 {
			return 0, fmt.Errorf("input %d", n)
		}
		return n, nil
	})
	if err == nil || err.Error() != "input 1" {
		t.Errorf("expected the error for input 1, got %v", err)
	}
}

func TestMap_Panic(t *testing.T) {
	_, err := Map(context.Background(), 2, []string{"a", "b"}, func(_ context.Context, s string) (string, error) {
		if s == "b" {
			panic("nope")
		}
		return s, nil
	})
	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Errorf("expected PanicError, got %v", err)
	}
}

func TestMap_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Map(ctx, 2, []int{1, 2, 3}, func(ctx context.Context, n int) (int, error) {
		return n, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMap_SingleWorker(t *testing.T) {
	got, err := Map(context.Background(), 0, []string{"x", "y"}, func(_ context.Context, s string) (string, error) {
		return s + s, nil
	})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"xx", "yy"}) {
		t.Errorf("got %v", got)
	}
}
