package worker

import "context"

type mapJob[In, Out any] struct {
	index int
	input In
	fn    func(context.Context, In) (Out, error)
}

func (j *mapJob[In, Out]) Execute(ctx context.Context) Result {
	out, err := j.fn(ctx, j.input)
	return &mapResult[Out]{index: j.index, output: out, err: err}
}

type mapResult[Out any] struct {
	index  int
	output Out
	err    error
}

func (r *mapResult[Out]) GetError() error {
	return r.err
}

// Map applies fn to every input on a pool of workers and returns the
// outputs in input order. The first failure cancels the remaining work and
// is returned. When several failures arrive before the cancellation takes
// hold, the one with the lowest index wins.
func Map[In, Out any](ctx context.Context, workers int, inputs []In, fn func(context.Context, In) (Out, error)) ([]Out, error) {
	outputs := make([]Out, len(inputs))
	if len(inputs) == 0 {
		return outputs, ctx.Err()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := NewPoolWithContext(runCtx, workers)
	pool.Start()

	go func() {
		defer pool.Close()
		for i, in := range inputs {
			if !pool.Submit(&mapJob[In, Out]{index: i, input: in, fn: fn}) {
				return
			}
		}
	}()

	var firstErr error
	errIndex := len(inputs)
	done := 0
	for r := range pool.Results() {
		res, ok := r.(*mapResult[Out])
		if !ok {
			// A panic carries no index
			if firstErr == nil {
				firstErr, errIndex = r.GetError(), -1
			}
			cancel()
			continue
		}
		if res.err != nil {
			if res.index < errIndex {
				firstErr, errIndex = res.err, res.index
			}
			cancel()
			continue
		}
		outputs[res.index] = res.output
		done++
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if done != len(inputs) {
		return nil, context.Canceled
	}
	return outputs, nil
}
