package animator

import (
	"bytes"
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/renderer/shader"
)

// GPUInstanceRangeSource is the canonical WGSL definition of the InstanceRange struct.
// Matches GPUInstanceRange layout exactly (16 bytes, std430 aligned).
//
//go:embed assets/instance_range.wgsl
var GPUInstanceRangeSource string

// GPUInstanceRange locates one instance's skinning matrices inside the shared pose buffer.
// Offset and Count are measured in matrices, not bytes.
// Size: 16 bytes.
type GPUInstanceRange struct {
	Offset uint32 // offset 0: index of the instance's first matrix
	Count  uint32 // offset 4: number of matrices (the bone count)
	_pad0  uint32 // offset 8
	_pad1  uint32 // offset 12
}

// Size returns the size of the GPUInstanceRange struct in bytes.
//
// Returns:
//   - int: The size of the struct in bytes.
func (g *GPUInstanceRange) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUInstanceRange struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload.
func (g *GPUInstanceRange) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], g.Offset)
	binary.LittleEndian.PutUint32(buf[4:8], g.Count)
	return buf
}

// GPUAnimationGlobalsSource is the canonical WGSL definition of the AnimationGlobals struct.
// Matches GPUAnimationGlobals layout exactly (16 bytes, std430 aligned).
//
//go:embed assets/animation_globals.wgsl
var GPUAnimationGlobalsSource string

// GPUAnimationGlobals is the per-frame uniform of one animator.
// Size: 16 bytes.
type GPUAnimationGlobals struct {
	InstanceCount uint32 // offset 0: live instances
	VisibleCount  uint32 // offset 4: instances written to the pose batch this frame
	BoneCount     uint32 // offset 8
	MatrixOffset  uint32 // offset 12: first matrix of this animator in the pose batch
}

// Size returns the size of the GPUAnimationGlobals struct in bytes.
//
// Returns:
//   - int: The size of the struct in bytes.
func (g *GPUAnimationGlobals) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUAnimationGlobals struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload.
func (g *GPUAnimationGlobals) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], g.InstanceCount)
	binary.LittleEndian.PutUint32(buf[4:8], g.VisibleCount)
	binary.LittleEndian.PutUint32(buf[8:12], g.BoneCount)
	binary.LittleEndian.PutUint32(buf[12:16], g.MatrixOffset)
	return buf
}

// GPUInstanceDataSource is the canonical WGSL definition of the InstanceData struct.
// Matches GPUInstanceData layout exactly (64 bytes, std430 aligned).
//
//go:embed assets/instance_data.wgsl
var GPUInstanceDataSource string

// GPUInstanceData is the world matrix of one instance, column-major.
// Size: 64 bytes.
type GPUInstanceData struct {
	Model [16]float32 // offset 0, size 64 (mat4x4<f32>)
}

// Size returns the size of the GPUInstanceData struct in bytes.
//
// Returns:
//   - int: The size of the struct in bytes.
func (g *GPUInstanceData) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUInstanceData struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload.
func (g *GPUInstanceData) Marshal() []byte {
	buf := make([]byte, 64)
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(g.Model[i]))
	}
	return buf
}

// GPUSkeletalAnimationDataSource is the canonical WGSL definition of the SkeletalAnimationData struct.
// Matches GPUSkeletalAnimationData layout exactly (32 bytes, std430 aligned).
//
//go:embed assets/skeletal_animation_data.wgsl
var GPUSkeletalAnimationDataSource string

// GPUSkeletalAnimationData mirrors one instance's playback state for shaders that react to it
// (for example effects keyed on play time). Skinning itself only needs the pose batch.
//
// WGSL layout (storage buffer alignment rules):
//
//	clip_index:       u32 offset  0
//	play_time:        f32 offset  4
//	blend_factor:     f32 offset  8
//	blend_clip_index: u32 offset 12
//	blend_time:       f32 offset 16
//	speed:            f32 offset 20
//	_pad0, _pad1:     u32 offset 24, 28
//
// Size: 32 bytes.
type GPUSkeletalAnimationData struct {
	ClipIndex      uint32
	PlayTime       float32
	BlendFactor    float32
	BlendClipIndex uint32
	BlendTime      float32
	Speed          float32
	_pad           [2]uint32
}

// Size returns the size of the GPUSkeletalAnimationData struct in bytes.
//
// Returns:
//   - int: The size of the struct in bytes.
func (g *GPUSkeletalAnimationData) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSkeletalAnimationData struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload.
func (g *GPUSkeletalAnimationData) Marshal() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], g.ClipIndex)
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.PlayTime))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.BlendFactor))
	binary.LittleEndian.PutUint32(buf[12:16], g.BlendClipIndex)
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(g.BlendTime))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(g.Speed))
	return buf
}

// gpuValue is an upload type that can encode itself explicitly.
type gpuValue interface {
	Size() int
	Marshal() []byte
}

// gpuStruct pairs a sample Go upload value with the WGSL struct it mirrors. raw is the in-memory
// view of the same value that SliceToBytes hands to the queue.
type gpuStruct struct {
	name   string
	source string
	value  gpuValue
	raw    []byte
}

// gpuStructs lists every type this package uploads, each with distinct field values so a
// reordered field shows up as a byte mismatch.
func gpuStructs() []gpuStruct {
	rng := GPUInstanceRange{Offset: 11, Count: 22}
	globals := GPUAnimationGlobals{InstanceCount: 1, VisibleCount: 2, BoneCount: 3, MatrixOffset: 4}
	var inst GPUInstanceData
	for i := range inst.Model {
		inst.Model[i] = float32(i + 1)
	}
	state := GPUSkeletalAnimationData{ClipIndex: 1, PlayTime: 2, BlendFactor: 0.5, BlendClipIndex: 4, BlendTime: 5, Speed: 6}

	return []gpuStruct{
		{"InstanceRange", GPUInstanceRangeSource, &rng, common.SliceToBytes([]GPUInstanceRange{rng})},
		{"AnimationGlobals", GPUAnimationGlobalsSource, &globals, common.SliceToBytes([]GPUAnimationGlobals{globals})},
		{"InstanceData", GPUInstanceDataSource, &inst, common.SliceToBytes([]GPUInstanceData{inst})},
		{"SkeletalAnimationData", GPUSkeletalAnimationDataSource, &state, common.SliceToBytes([]GPUSkeletalAnimationData{state})},
	}
}

// checkGPUStruct compares one upload type against its WGSL struct: the Go size, the encoded size
// and the encoded bytes against the raw memory that is actually uploaded.
func checkGPUStruct(g gpuStruct) error {
	layout, err := shader.LookupStruct(g.source, g.name)
	if err != nil {
		return fmt.Errorf("failed to check GPU layout: %w", err)
	}
	if layout.Size != uint64(g.value.Size()) {
		return fmt.Errorf("GPU layout mismatch for %s: WGSL %d bytes, Go %d bytes", g.name, layout.Size, g.value.Size())
	}
	encoded := g.value.Marshal()
	if uint64(len(encoded)) != layout.Size {
		return fmt.Errorf("GPU layout mismatch for %s: WGSL %d bytes, encoded %d bytes", g.name, layout.Size, len(encoded))
	}
	if !bytes.Equal(encoded, g.raw) {
		return fmt.Errorf("GPU layout mismatch for %s: encoded bytes differ from the uploaded memory", g.name)
	}
	return nil
}

// CheckGPULayouts verifies that every Go upload type matches the WGSL struct it mirrors, and that
// the zero-copy upload bytes agree with the explicit little-endian encoding.
//
// Returns:
//   - error: error naming the first struct whose layout disagrees
func CheckGPULayouts() error {
	for _, g := range gpuStructs() {
		if err := checkGPUStruct(g); err != nil {
			return err
		}
	}
	return nil
}
