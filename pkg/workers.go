package vx2740

import (
	"fmt"
	"sync"
)

type FitJob struct {
	Index   int
	Samples []uint16
}

type FitJobResult struct {
	Index int
	Fit   SineFit
	Err   error
}

func fitWorker(id int, jobs <-chan FitJob, results chan<- FitJobResult) {
	for job := range jobs {
		results <- runFitJob(id, job)
	}
}

func runFitJob(id int, job FitJob) (result FitJobResult) {
	defer func() {
		if r := recover(); r != nil {
			result = FitJobResult{Index: job.Index, Err: fmt.Errorf("fit worker %d recovered from panic: %v", id, r)}
		}
	}()
	fit, err := FitSine(job.Samples)
	return FitJobResult{Index: job.Index, Fit: fit, Err: err}
}

// FitWaveforms fits every waveform of the buffer on nWorkers goroutines.
// Results keep the buffer order. When several waveforms fail, the error of
// the lowest index is returned together with that index.
func FitWaveforms(buffer *BoardBuffer, nWorkers int) ([]SineFit, int, error) {
	n := buffer.Len()
	nWorkers = max(1, min(nWorkers, n))

	jobs := make(chan FitJob, n)
	results := make(chan FitJobResult, n)

	var wg sync.WaitGroup
	for w := 0; w < nWorkers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			fitWorker(id, jobs, results)
		}(w)
	}

	for i := 0; i < n; i++ {
		jobs <- FitJob{Index: i, Samples: buffer.Waveform(i)}
	}
	close(jobs)
	wg.Wait()
	close(results)

	fits := make([]SineFit, n)
	failed := -1
	var failure error
	for result := range results {
		if result.Err != nil {
			if failed < 0 || result.Index < failed {
				failed, failure = result.Index, result.Err
			}
			continue
		}
		fits[result.Index] = result.Fit
	}
	if failure != nil {
		return nil, failed, failure
	}
	return fits, -1, nil
}
