package bind_group_provider

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBufferSizes declares the byte sizes of several bindings at once.
//
// Parameters:
//   - sizes: buffer sizes in bytes keyed by binding index
//
// Returns:
//   - BindGroupProviderOption: a function that declares the buffer sizes
func WithBufferSizes(sizes map[int]uint64) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		for binding, size := range sizes {
			p.bufferSizes[binding] = size
		}
	}
}
