package training

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/mhclab/epibind/tensor"
)

// Dataset interface defines methods that all datasets must implement.
// Samples may carry several input tensors (an epitope embedding and an HLA
// embedding, for instance) alongside a single label tensor.
type Dataset interface {
	Len() int                                                              // Total number of samples
	Get(idx int) (inputs []*tensor.Tensor, label *tensor.Tensor, err error) // Returns a single sample
}

// Batch represents a batch of input tensors and labels. Inputs[k] stacks the
// k-th input of every sample along a leading batch dimension.
type Batch struct {
	Inputs []*tensor.Tensor
	Labels *tensor.Tensor
	Size   int
}

// DataLoader provides batching, shuffling, and parallel data loading.
// Shuffling draws from the loader's own seeded source so epochs replay
// identically for a given seed.
type DataLoader struct {
	dataset    Dataset
	batchSize  int
	shuffle    bool
	numWorkers int
	rng        *rand.Rand
	indices    []int
	position   int
	err        error
	stop       chan struct{}
	mutex      sync.Mutex
}

// NewDataLoader creates a new DataLoader
func NewDataLoader(dataset Dataset, batchSize int, shuffle bool, numWorkers int, seed int64) (*DataLoader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}

	datasetLen := dataset.Len()
	indices := make([]int, datasetLen)
	for i := range indices {
		indices[i] = i
	}

	return &DataLoader{
		dataset:    dataset,
		batchSize:  batchSize,
		shuffle:    shuffle,
		numWorkers: numWorkers,
		rng:        rand.New(rand.NewSource(seed)),
		indices:    indices,
	}, nil
}

// Len returns the number of batches in an epoch
func (dl *DataLoader) Len() int {
	return (dl.dataset.Len() + dl.batchSize - 1) / dl.batchSize
}

// Samples returns the number of samples in the underlying dataset
func (dl *DataLoader) Samples() int {
	return dl.dataset.Len()
}

// Err returns the first error encountered by the most recent Iterator pass,
// or nil. A non-nil value means the iteration ended early.
func (dl *DataLoader) Err() error {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()
	return dl.err
}

// Reset resets the data loader for a new epoch
func (dl *DataLoader) Reset() {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	dl.position = 0
	dl.err = nil
	dl.stop = make(chan struct{})

	if dl.shuffle {
		for i := len(dl.indices) - 1; i > 0; i-- {
			j := dl.rng.Intn(i + 1)
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		}
	}
}

// Next returns the next batch or nil if the epoch is complete
func (dl *DataLoader) Next() (*Batch, error) {
	dl.mutex.Lock()

	if dl.position >= len(dl.indices) {
		dl.mutex.Unlock()
		return nil, nil // End of epoch
	}

	batchEnd := dl.position + dl.batchSize
	if batchEnd > len(dl.indices) {
		batchEnd = len(dl.indices)
	}

	batchIndices := make([]int, batchEnd-dl.position)
	copy(batchIndices, dl.indices[dl.position:batchEnd])
	dl.position = batchEnd
	dl.mutex.Unlock()

	batch, err := dl.loadBatch(batchIndices)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch: %v", err)
	}
	return batch, nil
}

// Stop shuts down the goroutines behind the current Iterator pass. Callers
// that abandon the iterator channel before exhausting it must call Stop, or
// the loader's workers stay blocked on the undelivered batches. Safe to call
// after a fully consumed pass; the loader stays reusable.
func (dl *DataLoader) Stop() {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()
	if dl.stop != nil {
		close(dl.stop)
		dl.stop = nil
	}
}

// HasNext returns true if there are more batches in the current epoch
func (dl *DataLoader) HasNext() bool {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()
	return dl.position < len(dl.indices)
}

// loadBatch loads a group of samples and stacks them into batched tensors
func (dl *DataLoader) loadBatch(indices []int) (*Batch, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("empty batch indices")
	}
	batchSize := len(indices)

	// Load first sample to determine input count, shapes, and types.
	firstInputs, firstLabel, err := dl.dataset.Get(indices[0])
	if err != nil {
		return nil, fmt.Errorf("failed to load sample %d: %v", indices[0], err)
	}

	batchInputs := make([]*tensor.Tensor, len(firstInputs))
	for k, in := range firstInputs {
		shape := append([]int{batchSize}, in.Shape...)
		batchInputs[k], err = tensor.Zeros(shape, in.DType)
		if err != nil {
			return nil, fmt.Errorf("failed to create batch input tensor: %v", err)
		}
	}

	labelShape := append([]int{batchSize}, firstLabel.Shape...)
	batchLabels, err := tensor.Zeros(labelShape, firstLabel.DType)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch labels tensor: %v", err)
	}

	for i, idx := range indices {
		inputs, label, err := dl.dataset.Get(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to load sample %d: %v", idx, err)
		}
		if len(inputs) != len(batchInputs) {
			return nil, fmt.Errorf("sample %d has %d inputs, expected %d", idx, len(inputs), len(batchInputs))
		}

		for k, in := range inputs {
			if err := copyInto(batchInputs[k], in, i); err != nil {
				return nil, fmt.Errorf("failed to copy input %d of sample %d: %v", k, idx, err)
			}
		}
		if err := copyInto(batchLabels, label, i); err != nil {
			return nil, fmt.Errorf("failed to copy label of sample %d: %v", idx, err)
		}
	}

	return &Batch{
		Inputs: batchInputs,
		Labels: batchLabels,
		Size:   batchSize,
	}, nil
}

// copyInto copies a sample tensor into a specific position in the batch tensor
func copyInto(batchTensor, sampleTensor *tensor.Tensor, batchIndex int) error {
	if batchTensor.DType != sampleTensor.DType {
		return fmt.Errorf("dtype mismatch: batch %s, sample %s", batchTensor.DType, sampleTensor.DType)
	}

	sampleSize := sampleTensor.NumElems
	offset := batchIndex * sampleSize

	switch batchTensor.DType {
	case tensor.Float32:
		dst := batchTensor.Data.([]float32)
		src := sampleTensor.Data.([]float32)
		if len(src) != sampleSize {
			return fmt.Errorf("sample data size mismatch: expected %d, got %d", sampleSize, len(src))
		}
		copy(dst[offset:offset+sampleSize], src)

	case tensor.Int32:
		dst := batchTensor.Data.([]int32)
		src := sampleTensor.Data.([]int32)
		if len(src) != sampleSize {
			return fmt.Errorf("sample data size mismatch: expected %d, got %d", sampleSize, len(src))
		}
		copy(dst[offset:offset+sampleSize], src)

	default:
		return fmt.Errorf("unsupported dtype for batch copying: %s", batchTensor.DType)
	}

	return nil
}

type loaderJob struct {
	seq     int
	indices []int
}

type loaderResult struct {
	seq   int
	batch *Batch
	err   error
}

// Iterator returns a channel-based iterator for use in training loops.
// With more than one worker, batches are assembled in parallel but always
// delivered in epoch order. On a load error the channel closes early and
// Err() reports the cause. Stop unblocks the delivery goroutines if the
// consumer walks away mid-epoch.
func (dl *DataLoader) Iterator() <-chan *Batch {
	batchChan := make(chan *Batch, dl.numWorkers)

	dl.Reset()
	dl.mutex.Lock()
	stop := dl.stop
	dl.mutex.Unlock()

	if dl.numWorkers == 1 {
		go func() {
			defer close(batchChan)
			for {
				batch, err := dl.Next()
				if err != nil {
					dl.mutex.Lock()
					dl.err = err
					dl.mutex.Unlock()
					return
				}
				if batch == nil {
					return
				}
				select {
				case batchChan <- batch:
				case <-stop:
					return
				}
			}
		}()
		return batchChan
	}

	// Slice the shuffled index list into per-batch jobs up front so workers
	// only race on the job channel, never on loader state.
	dl.mutex.Lock()
	var jobs []loaderJob
	for seq, pos := 0, 0; pos < len(dl.indices); seq++ {
		end := pos + dl.batchSize
		if end > len(dl.indices) {
			end = len(dl.indices)
		}
		indices := make([]int, end-pos)
		copy(indices, dl.indices[pos:end])
		jobs = append(jobs, loaderJob{seq: seq, indices: indices})
		pos = end
	}
	dl.position = len(dl.indices)
	dl.mutex.Unlock()

	jobChan := make(chan loaderJob, len(jobs))
	resultChan := make(chan loaderResult, dl.numWorkers)

	var wg sync.WaitGroup
	for w := 0; w < dl.numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				batch, err := dl.loadBatch(job.indices)
				resultChan <- loaderResult{seq: job.seq, batch: batch, err: err}
			}
		}()
	}

	for _, job := range jobs {
		jobChan <- job
	}
	close(jobChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	go func() {
		defer close(batchChan)

		// Drains remaining results so workers can exit.
		drain := func() {
			for range resultChan {
			}
		}

		pending := make(map[int]*Batch)
		next := 0
		for res := range resultChan {
			if res.err != nil {
				dl.mutex.Lock()
				if dl.err == nil {
					dl.err = res.err
				}
				dl.mutex.Unlock()
				drain()
				return
			}
			pending[res.seq] = res.batch
			for {
				batch, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				select {
				case batchChan <- batch:
				case <-stop:
					drain()
					return
				}
				next++
			}
		}
	}()

	return batchChan
}

// SimpleDataset provides a basic in-memory implementation of Dataset for
// testing and simple use cases
type SimpleDataset struct {
	inputs [][]*tensor.Tensor
	labels []*tensor.Tensor
}

// NewSimpleDataset creates a new SimpleDataset
func NewSimpleDataset(inputs [][]*tensor.Tensor, labels []*tensor.Tensor) (*SimpleDataset, error) {
	if len(inputs) != len(labels) {
		return nil, fmt.Errorf("inputs and labels must have the same length: got %d and %d", len(inputs), len(labels))
	}
	return &SimpleDataset{
		inputs: inputs,
		labels: labels,
	}, nil
}

// Len returns the number of samples in the dataset
func (ds *SimpleDataset) Len() int {
	return len(ds.inputs)
}

// Get returns a sample at the given index
func (ds *SimpleDataset) Get(idx int) ([]*tensor.Tensor, *tensor.Tensor, error) {
	if idx < 0 || idx >= len(ds.inputs) {
		return nil, nil, fmt.Errorf("index %d out of range [0, %d)", idx, len(ds.inputs))
	}
	return ds.inputs[idx], ds.labels[idx], nil
}
