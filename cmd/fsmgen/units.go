package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/nihei9/fsmgen/codegen"
	"golang.org/x/sync/errgroup"
)

// unit is one machine file and what was generated from it.
type unit struct {
	path string
	out  *codegen.Output
}

// generateUnits generates every machine file independently. At most jobs
// units run at once; 0 means one per CPU. The outputs keep the order of
// paths. The first failure cancels the units that have not started.
func generateUnits(ctx context.Context, paths []string, tgt *target, format string, jobs int) ([]*unit, error) {
	if jobs < 0 {
		return nil, fmt.Errorf("jobs must not be negative: %v", jobs)
	}
	if jobs == 0 {
		jobs = runtime.NumCPU()
	}

	units := make([]*unit, len(paths))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(jobs)
	for i, path := range paths {
		i, path := i, path
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			m, err := readMachine(path, format)
			if err != nil {
				return fmt.Errorf("Cannot read a machine: %w", err)
			}
			opts := make([]codegen.GenerateOption, 0, len(tgt.opts)+1)
			opts = append(opts, tgt.opts...)
			opts = append(opts, codegen.WithStem(path))
			out, err := codegen.Generate(m, tgt.host, tgt.style, opts...)
			if err != nil {
				return fmt.Errorf("Failed to generate a scanner from %s: %w", path, err)
			}
			units[i] = &unit{
				path: path,
				out:  out,
			}
			return nil
		})
	}
	err := eg.Wait()
	if err != nil {
		return nil, err
	}
	return units, nil
}
