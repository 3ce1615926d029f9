// Package animation samples skeletal animation clips and evaluates per-instance bone poses.
//
// Channels hold sparse keyframes and, by default, a uniform lookup table built at load time so
// that evaluation costs O(1) per track. Clips and skeletons are immutable after construction and
// can be read from many goroutines; InstanceAnimationState and PoseEvaluator are per-instance or
// per-worker values.
package animation
