package scene

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/asset"
	"github.com/Carmen-Shannon/oxy-anim/engine/renderer/animator"
	"github.com/Carmen-Shannon/oxy-anim/engine/renderer/bind_group_provider"
	"github.com/go-gl/mathgl/mgl32"
)

// Scene owns a model library and the Animators that drive instances of its models. Once per frame
// Update advances every instance by the same delta time and evaluates the pose of each visible
// instance into one contiguous PoseBatch, ready for a single GPU upload.
// Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene name.
	//
	// Returns:
	//   - string: the name
	Name() string

	SetName(name string)

	// Active reports whether the host should update this scene.
	//
	// Returns:
	//   - bool: the active flag
	Active() bool

	SetActive(active bool)

	// Library returns the asset library models are loaded into.
	//
	// Returns:
	//   - *asset.Library: the library
	Library() *asset.Library

	// AddAnimator creates an Animator for a model of the library and registers it with the scene.
	// Animators are evaluated in registration order and their instances appear in the batch in that order.
	//
	// Parameters:
	//   - handle: the model handle
	//   - options: options forwarded to animator.NewAnimator
	//
	// Returns:
	//   - animator.Animator: the registered animator
	//   - error: an error if the handle does not resolve
	AddAnimator(handle asset.Handle, options ...animator.AnimatorBuilderOption) (animator.Animator, error)

	// RemoveAnimator unregisters and releases an Animator.
	//
	// Parameters:
	//   - a: the animator to remove
	//
	// Returns:
	//   - bool: false if the animator was not registered
	RemoveAnimator(a animator.Animator) bool

	// Animators returns the registered animators in evaluation order.
	//
	// Returns:
	//   - []animator.Animator: a copy of the animator list
	Animators() []animator.Animator

	// InstanceCount returns the number of instances across all animators.
	//
	// Returns:
	//   - int: the instance count
	InstanceCount() int

	// Update advances every instance by deltaTime and rebuilds the pose batch. Animators are prepared
	// in parallel on the compute pool; each writes a disjoint, precomputed region of the batch.
	// Every animator is also flushed so its staged writes are ready for StageUpload.
	//
	// Parameters:
	//   - deltaTime: elapsed time since the last frame in seconds
	//
	// Returns:
	//   - PoseBatch: the batch for this frame, valid until the next Update
	Update(deltaTime float32) PoseBatch

	// Batch returns the batch built by the last Update.
	//
	// Returns:
	//   - PoseBatch: the batch, valid until the next Update
	Batch() PoseBatch

	// LastUpdateDuration returns the wall-clock time the last Update took.
	//
	// Returns:
	//   - time.Duration: the duration
	LastUpdateDuration() time.Duration

	// StageUpload collects the frame's GPU writes: every animator's pending writes followed by the
	// batch matrices, ranges and world matrices against provider. The provider's declared buffer
	// sizes grow to fit the batch. The returned writes alias scene memory and must be submitted
	// (see bind_group_provider.WriteBuffers) before the next Update.
	//
	// Parameters:
	//   - provider: the provider holding the batch buffers
	//   - bindings: the binding index of each batch buffer
	//
	// Returns:
	//   - []bind_group_provider.BufferWrite: the writes for this frame
	StageUpload(provider bind_group_provider.BindGroupProvider, bindings BatchBindings) []bind_group_provider.BufferWrite

	// Release releases every animator.
	Release()
}

type scene struct {
	mu *sync.RWMutex

	name   string
	active bool

	lib       *asset.Library
	animators []animator.Animator

	// Bindings used when flushing animator state each Update.
	globalsBinding, stateBinding, modelBinding int

	batch      PoseBatch
	lastUpdate time.Duration

	// Per-frame scratch reused to avoid allocations.
	visible, matrixOffsets, instanceOffsets, written, dropped []uint32
	writePool                                         []bind_group_provider.BufferWrite

	// computePool manages a bounded set of reusable goroutines for the parallel
	// prep phase of Update. Workers persist across frames, avoiding
	// per-frame goroutine spawn/teardown overhead.
	computePool    worker.DynamicWorkerPool
	computeWorkers int
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates a new Scene with an empty asset library unless WithLibrary supplies one.
//
// Parameters:
//   - name: the name of the scene
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:             &sync.RWMutex{},
		name:           name,
		computeWorkers: max(runtime.NumCPU()-1, 1),
		globalsBinding: 0,
		stateBinding:   1,
		modelBinding:   2,
	}

	for _, option := range options {
		option(s)
	}
	if s.lib == nil {
		s.lib = asset.NewLibrary()
	}

	// Initialize the compute pool after options so WithComputeWorkers can override the default.
	// Queue size of 256 accommodates typical animator counts with headroom.
	s.computePool = worker.NewDynamicWorkerPool(s.computeWorkers, 256, 1*time.Second)
	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Library() *asset.Library {
	return s.lib
}

func (s *scene) AddAnimator(handle asset.Handle, options ...animator.AnimatorBuilderOption) (animator.Animator, error) {
	a, err := animator.NewAnimator(s.lib, handle, options...)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", s.Name(), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.animators = append(s.animators, a)
	return a, nil
}

func (s *scene) RemoveAnimator(a animator.Animator) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.animators {
		if existing == a {
			s.animators = append(s.animators[:i], s.animators[i+1:]...)
			a.Release()
			return true
		}
	}
	return false
}

func (s *scene) Animators() []animator.Animator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]animator.Animator, len(s.animators))
	copy(out, s.animators)
	return out
}

func (s *scene) InstanceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.animators {
		n += int(a.InstanceCount())
	}
	return n
}

func (s *scene) Update(deltaTime float32) PoseBatch {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	// Phase 1 (serial): reserve a disjoint region of the batch for every animator.
	n := len(s.animators)
	s.visible = resize(s.visible, n)
	s.matrixOffsets = resize(s.matrixOffsets, n)
	s.instanceOffsets = resize(s.instanceOffsets, n)
	s.written = resize(s.written, n)
	s.dropped = resize(s.dropped, n)

	var totalMatrices, totalInstances uint32
	for i, a := range s.animators {
		vis := a.VisibleCount()
		s.visible[i] = vis
		s.matrixOffsets[i] = totalMatrices
		s.instanceOffsets[i] = totalInstances
		totalMatrices += vis * a.BoneCount()
		totalInstances += vis
	}
	s.batch.resize(totalMatrices, totalInstances)

	// Phase 2 (parallel): advance and evaluate every animator on the compute pool.
	// A WaitGroup provides per-frame barrier sync since pool.Wait() blocks until
	// workers idle-exit which is unsuitable for frame-rate workloads.
	var wg sync.WaitGroup
	for i, a := range s.animators {
		if a.InstanceCount() == 0 {
			s.written[i], s.dropped[i] = 0, 0
			continue
		}
		bones := a.BoneCount()
		mOff, iOff, vis := s.matrixOffsets[i], s.instanceOffsets[i], s.visible[i]
		out := animator.FrameOutput{
			BaseOffset: mOff,
			Matrices:   s.batch.Matrices[mOff : mOff+vis*bones],
			Ranges:     s.batch.Ranges[iOff : iOff+vis],
			Models:     s.batch.Models[iOff : iOff+vis],
		}

		wg.Add(1)
		aCap, idx := a, i
		s.computePool.SubmitTask(worker.Task{
			ID: idx,
			Do: func() (any, error) {
				defer wg.Done()
				s.written[idx] = aCap.PrepareFrame(deltaTime, out)
				s.dropped[idx] = aCap.DroppedCount()
				aCap.Flush(s.globalsBinding, s.stateBinding, s.modelBinding)
				return nil, nil
			},
		})
	}
	wg.Wait()

	// Phase 3 (serial): close gaps left by animators that wrote fewer instances than reserved,
	// e.g. when visibility changed during the frame.
	s.compact()
	s.logDropped()

	s.lastUpdate = time.Since(start)
	return s.batch
}

// compact moves every animator's region down so the batch has no holes.
func (s *scene) compact() {
	var mDst, iDst uint32
	for i, a := range s.animators {
		bones, got := a.BoneCount(), s.written[i]
		mSrc, iSrc := s.matrixOffsets[i], s.instanceOffsets[i]
		if mSrc != mDst || iSrc != iDst {
			copy(s.batch.Matrices[mDst:], s.batch.Matrices[mSrc:mSrc+got*bones])
			copy(s.batch.Models[iDst:], s.batch.Models[iSrc:iSrc+got])
			for k := range got {
				s.batch.Ranges[iDst+k] = animator.GPUInstanceRange{Offset: mDst + k*bones, Count: bones}
			}
		}
		mDst += got * bones
		iDst += got
	}
	if int(iDst) != len(s.batch.Ranges) {
		log.Printf("[Scene] %s: %d instances reserved, %d written", s.name, len(s.batch.Ranges), iDst)
	}
	s.batch.resize(mDst, iDst)
}

// logDropped reports animators that had more visible instances than their reserved region held.
// The extra instances are left out of this frame's batch and picked up by the next reservation.
func (s *scene) logDropped() {
	for i, a := range s.animators {
		if s.dropped[i] > 0 {
			log.Printf("[Scene] %s: animator %q dropped %d visible instances (%d reserved)",
				s.name, a.Model().Name, s.dropped[i], s.visible[i])
		}
	}
}

func (s *scene) Batch() PoseBatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batch
}

func (s *scene) LastUpdateDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}

func (s *scene) StageUpload(provider bind_group_provider.BindGroupProvider, bindings BatchBindings) []bind_group_provider.BufferWrite {
	s.mu.Lock()
	defer s.mu.Unlock()

	writes := s.writePool[:0]
	for _, a := range s.animators {
		writes = append(writes, a.StagedWriteData()...)
	}

	stageBatch := func(binding int, data []byte) {
		bind_group_provider.EnsureBufferSize(provider, binding, uint64(len(data)))
		writes = append(writes, bind_group_provider.BufferWrite{
			Provider: provider,
			Binding:  binding,
			Offset:   0,
			Data:     data,
		})
	}
	stageBatch(bindings.Matrices, common.SliceToBytes(s.batch.Matrices))
	stageBatch(bindings.Ranges, common.SliceToBytes(s.batch.Ranges))
	stageBatch(bindings.Models, common.SliceToBytes(s.batch.Models))

	s.writePool = writes
	return writes
}

func (s *scene) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.animators {
		a.Release()
	}
	s.animators = nil
	s.batch = PoseBatch{}
}

func resize(buf []uint32, n int) []uint32 {
	if cap(buf) < n {
		return make([]uint32, n)
	}
	return buf[:n]
}

// PoseBatch is the output of one Update: the skinning matrices of every visible instance of every
// animator, laid out contiguously and instance-major.
type PoseBatch struct {
	// Matrices holds BoneCount matrices per skeletal instance.
	Matrices []mgl32.Mat4

	// Ranges holds one entry per visible instance: the offset and count of its matrices.
	// Rigid instances have a count of 0.
	Ranges []animator.GPUInstanceRange

	// Models holds the world matrix of each visible instance, parallel to Ranges.
	Models []mgl32.Mat4
}

// InstanceMatrices returns the skinning matrices of the i-th instance of the batch.
func (b PoseBatch) InstanceMatrices(i int) []mgl32.Mat4 {
	r := b.Ranges[i]
	return b.Matrices[r.Offset : r.Offset+r.Count]
}

func (b *PoseBatch) resize(matrices, instances uint32) {
	if uint32(cap(b.Matrices)) < matrices {
		b.Matrices = make([]mgl32.Mat4, matrices, matrices+matrices/4)
	}
	b.Matrices = b.Matrices[:matrices]
	if uint32(cap(b.Ranges)) < instances {
		b.Ranges = make([]animator.GPUInstanceRange, instances, instances+instances/4)
		b.Models = make([]mgl32.Mat4, instances, instances+instances/4)
	}
	b.Ranges = b.Ranges[:instances]
	b.Models = b.Models[:instances]
}

// BatchBindings names the binding index of each PoseBatch buffer on the upload provider.
type BatchBindings struct {
	Matrices int
	Ranges   int
	Models   int
}
