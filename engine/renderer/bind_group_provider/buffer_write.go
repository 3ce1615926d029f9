package bind_group_provider

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// BufferWrite describes a single GPU buffer write operation targeting a specific binding
// on a BindGroupProvider at a given byte offset.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}

// QueueWriter is the part of a device queue WriteBuffers needs. *wgpu.Queue satisfies it.
type QueueWriter interface {
	WriteBuffer(buffer *wgpu.Buffer, bufferOffset uint64, data []byte) error
}

// EnsureBufferSize grows the declared size of a binding to at least size. A larger declared size
// is left alone.
//
// Parameters:
//   - provider: the provider owning the binding
//   - binding: the binding index
//   - size: the minimum buffer size in bytes
//
// Returns:
//   - bool: true if the declared size grew
func EnsureBufferSize(provider BindGroupProvider, binding int, size uint64) bool {
	if provider == nil || size <= provider.BufferSize(binding) {
		return false
	}
	provider.SetBufferSize(binding, size)
	return true
}

// StagedBytes sums the payload of the writes, whether or not their buffers exist yet.
func StagedBytes(writes []BufferWrite) uint64 {
	var n uint64
	for _, w := range writes {
		n += uint64(len(w.Data))
	}
	return n
}

// WriteBuffers submits staged writes to the queue. Writes whose provider has no buffer for the
// binding yet are skipped, as are empty writes.
//
// Parameters:
//   - queue: the device queue
//   - writes: the staged writes, in submission order
//
// Returns:
//   - int: the number of writes submitted
//   - error: the first queue error, wrapped with the provider label and binding
func WriteBuffers(queue QueueWriter, writes []BufferWrite) (int, error) {
	submitted := 0
	for _, w := range writes {
		if w.Provider == nil || len(w.Data) == 0 {
			continue
		}
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			continue
		}
		if err := queue.WriteBuffer(buf, w.Offset, w.Data); err != nil {
			return submitted, fmt.Errorf("failed to write %s binding %d: %w", w.Provider.Label(), w.Binding, err)
		}
		submitted++
	}
	return submitted, nil
}

// InitBuffers creates a buffer for every binding of the provider that declares a size and has no
// buffer yet. Buffers default to storage usage; usageOverrides adds flags per binding (e.g. uniform).
//
// Parameters:
//   - device: the device that allocates the buffers
//   - provider: the provider to fill
//   - usageOverrides: extra usage flags keyed by binding index, may be nil
//
// Returns:
//   - error: an error if a buffer could not be created
func InitBuffers(device *wgpu.Device, provider BindGroupProvider, usageOverrides map[int]wgpu.BufferUsage) error {
	for binding, size := range provider.BufferSizes() {
		if size == 0 || provider.Buffer(binding) != nil {
			continue
		}
		usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
		if override, ok := usageOverrides[binding]; ok {
			usage = override | wgpu.BufferUsageCopyDst
		}
		buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: fmt.Sprintf("%s Buffer %d", provider.Label(), binding),
			Size:  size,
			Usage: usage,
		})
		if err != nil {
			return fmt.Errorf("failed to create %s binding %d: %w", provider.Label(), binding, err)
		}
		provider.SetBuffer(binding, buf)
	}
	return nil
}
