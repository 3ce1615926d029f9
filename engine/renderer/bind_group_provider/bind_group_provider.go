package bind_group_provider

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// bufferSizes holds the byte size each binding's buffer must have, keyed by binding index.
	// InitBuffers allocates from it; it is not a GPU resource.
	bufferSizes map[int]uint64

	// buffers holds the GPU buffers created by InitBuffers, keyed by binding index.
	// They must be released when no longer needed.
	buffers map[int]*wgpu.Buffer
}

// BindGroupProvider defines the interface for components that require GPU buffer resources.
// Animators hold a BindGroupProvider to describe the storage and uniform buffers their staged
// writes target. The owner of the device then uses the provider to create and fill those buffers.
//
// Usage pattern:
//  1. Component creates a BindGroupProvider with a label and the buffer size of each binding
//  2. InitBuffers creates the GPU buffers on a device
//  3. The component stages BufferWrite values against the provider each frame
//  4. WriteBuffers submits the staged writes to the device queue
type BindGroupProvider interface {
	// Release releases any GPU resources held by this provider.
	// It will clean up all buffers and remove them from the map they belonged to.
	Release()

	// Label returns the debug label for this provider.
	// Used for debugging and profiling purposes.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Buffer returns the buffer created for a binding.
	// Returns nil if GPU resources have not been initialized.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil
	Buffer(binding int) *wgpu.Buffer

	// BufferSize returns the declared byte size of a binding's buffer, or 0 if none was declared.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - uint64: the buffer size in bytes
	BufferSize(binding int) uint64

	// BufferSizes returns the declared byte size of every binding's buffer.
	//
	// Returns:
	//   - map[int]uint64: buffer sizes keyed by binding index
	BufferSizes() map[int]uint64

	// SetBufferSize declares the byte size of a binding's buffer. Growing a binding that already has
	// a buffer releases that buffer, so the next InitBuffers recreates it.
	//
	// Parameters:
	//   - binding: the binding index
	//   - size: the buffer size in bytes
	SetBufferSize(binding int, size uint64)

	// SetBuffer sets the buffer of a binding. InitBuffers calls it for every buffer it creates.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the created buffer
	SetBuffer(binding int, buf *wgpu.Buffer)
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: the debug label, also used as the prefix of GPU buffer labels
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:       label,
		buffers:     make(map[int]*wgpu.Buffer),
		bufferSizes: make(map[int]uint64),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) Buffer(binding int) *wgpu.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) BufferSize(binding int) uint64 {
	return p.bufferSizes[binding]
}

func (p *bindGroupProvider) BufferSizes() map[int]uint64 {
	return p.bufferSizes
}

func (p *bindGroupProvider) SetBufferSize(binding int, size uint64) {
	if p.bufferSizes == nil {
		p.bufferSizes = make(map[int]uint64)
	}
	old := p.bufferSizes[binding]
	p.bufferSizes[binding] = size
	if size <= old {
		return
	}
	// The existing buffer is too small.
	if buf := p.buffers[binding]; buf != nil {
		buf.Release()
		delete(p.buffers, binding)
	}
}

func (p *bindGroupProvider) SetBuffer(binding int, buf *wgpu.Buffer) {
	if p.buffers == nil {
		p.buffers = make(map[int]*wgpu.Buffer)
	}
	p.buffers[binding] = buf
}

func (p *bindGroupProvider) Release() {
	for i, buf := range p.buffers {
		if buf != nil {
			buf.Release()
		}
		delete(p.buffers, i)
	}
}
