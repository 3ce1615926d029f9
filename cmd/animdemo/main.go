// Command animdemo runs the animation pipeline headless: it builds a synthetic rig, spawns a grid
// of instances, scripts clip transitions and a key-driven leader, and reports frame statistics.
package main

import (
	"flag"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine"
	"github.com/Carmen-Shannon/oxy-anim/engine/config"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/Carmen-Shannon/oxy-anim/engine/profiler"
	"github.com/Carmen-Shannon/oxy-anim/engine/renderer/animator"
	bgp "github.com/Carmen-Shannon/oxy-anim/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-anim/engine/scene"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// tailBones is the number of bones in the synthetic tail rig.
	tailBones = 24
	// spacing determines how far apart instances are placed in the XZ grid.
	spacing = 4.0
	// leaderSpeed is how fast the key-driven leader moves, in units per second.
	leaderSpeed = 3.0
)

// byteQueue stands in for a device queue in headless runs and counts the bytes that reach it.
type byteQueue struct {
	bytes uint64
}

func (q *byteQueue) WriteBuffer(_ *wgpu.Buffer, _ uint64, data []byte) error {
	q.bytes += uint64(len(data))
	return nil
}

// uploadStats separates what the scene staged from what a queue accepted. Without a device no
// buffers exist, so every write is staged and none is submitted.
type uploadStats struct {
	stagedWrites    int
	submittedWrites int
	stagedBytes     uint64
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults when empty)")
	frames := flag.Int("frames", 600, "number of frames to simulate")
	instances := flag.Int("instances", 500, "number of animated instances")
	tickRate := flag.Float64("tick-rate", 60, "simulated frames per second")
	realtime := flag.Bool("realtime", false, "tick on the wall clock instead of a fixed simulated step")
	flag.Parse()

	if err := animator.CheckGPULayouts(); err != nil {
		log.Fatalf("[Demo] %v", err)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("[Demo] %v", err)
		}
	}

	sc := scene.NewScene("animdemo", scene.WithActive(true), scene.WithComputeWorkers(cfg.ComputeWorkers))
	defer sc.Release()

	tail, err := sc.Library().Load(tailModel(), cfg.LoadOptions()...)
	if err != nil {
		log.Fatalf("[Demo] %v", err)
	}
	tails, err := sc.AddAnimator(tail, animator.WithMaxInstances(cfg.MaxInstances))
	if err != nil {
		log.Fatalf("[Demo] %v", err)
	}
	swayClip, _ := tails.Model().ClipIndex("sway")

	side := int(math.Ceil(math.Sqrt(float64(*instances))))
	for i := range *instances {
		idx, err := tails.AddInstance()
		if err != nil {
			log.Fatalf("[Demo] %v", err)
		}
		x, z := float32(i%side)*spacing, float32(i/side)*spacing
		tails.SetInstanceTransform(idx, [3]float32{x, 0, z}, [3]float32{1, 1, 1})
		tails.SetAnimationSpeed(idx, 0.75+rand.Float32()*0.5)
		tails.SetAnimationTime(idx, rand.Float32()*2)
	}

	bindings := scene.BatchBindings{Matrices: 0, Ranges: 1, Models: 2}
	upload := bgp.NewBindGroupProvider("pose_batch", bgp.WithBufferSizes(map[int]uint64{
		bindings.Matrices: uint64(*instances) * tailBones * 64,
		bindings.Ranges:   uint64(*instances) * 16,
		bindings.Models:   uint64(*instances) * 64,
	}))
	queue := &byteQueue{}
	var stats uploadStats
	eng := engine.NewEngine(
		engine.WithTickRate(*tickRate),
		engine.WithProfiler(profiler.NewProfiler(profiler.WithInterval(cfg.ProfilerInterval))),
		engine.WithProfiling(true),
		engine.WithScene(0, sc),
	)

	// A scripted key sequence steers instance 0.
	script := [][]int{{common.KeyW}, {common.KeyW, common.KeyD}, {common.KeyS}, {common.KeyA, common.KeyE}, {}}
	frame, perSecond := 0, max(int(*tickRate), 1)

	eng.SetTickCallback(func(dt float32) {
		keys := script[(frame/120)%len(script)]
		move := common.DirectionForKeys(keys...)
		if !move.IsZero() {
			pos, scale := tails.InstanceTransform(0)
			step := move.Vector().Mul(leaderSpeed * dt)
			tails.SetInstanceTransform(0, mgl32.Vec3(pos).Add(step), scale)
		}

		// Every second, a different tenth of the crowd cross-fades between the two clips.
		if frame%perSecond == 0 {
			group := (frame / perSecond) % 10
			for i := uint32(group); i < tails.InstanceCount(); i += 10 {
				snap, _ := tails.InstanceState(i)
				target := swayClip
				if snap.ClipIndex == swayClip {
					target = 0
				}
				tails.BlendToAnimation(i, target, 0.5)
			}
		}
	})
	eng.SetFrameCallback(func(float32) {
		writes := sc.StageUpload(upload, bindings)
		submitted, err := bgp.WriteBuffers(queue, writes)
		if err != nil {
			log.Fatalf("[Demo] upload failed: %v", err)
		}
		stats.stagedWrites += len(writes)
		stats.submittedWrites += submitted
		stats.stagedBytes += bgp.StagedBytes(writes)
		frame++
		if *realtime && frame >= *frames {
			eng.Quit()
		}
	})

	start := time.Now()
	if *realtime {
		eng.Run()
	} else {
		dt := float32(1 / *tickRate)
		for range *frames {
			eng.Step(dt)
		}
	}

	batch := sc.Batch()
	pos, _ := tails.InstanceTransform(0)
	log.Printf("[Demo] %d frames in %v | %d instances | %d matrices/frame | %.1f MB staged | leader at (%.2f, %.2f, %.2f)",
		frame, time.Since(start).Round(time.Millisecond), sc.InstanceCount(), len(batch.Matrices),
		float64(stats.stagedBytes)/(1024*1024), pos[0], pos[1], pos[2])
	log.Printf("[Demo] %d/%d writes submitted (%.1f MB); headless runs create no device buffers",
		stats.submittedWrites, stats.stagedWrites, float64(queue.bytes)/(1024*1024))
}

// tailModel builds a chain of tailBones bones with two clips: "wave" bends every joint about Z
// with a phase offset, "sway" swings the root about Y.
func tailModel() *model.ImportedModel {
	bones := make([]model.ImportedBone, tailBones)
	for i := range bones {
		bones[i] = model.ImportedBone{
			ID:              int32(i),
			Name:            boneName(i),
			ParentID:        int32(i - 1),
			RestTranslation: [3]float32{0, 0.5, 0},
		}
	}
	bones[0].RestTranslation = [3]float32{}

	const duration, tps = 48, 24
	wave := model.ImportedAnimation{Name: "wave", DurationTicks: duration, TicksPerSecond: tps}
	for i := range bones {
		var rot []model.QuaternionKeyframe
		for k := 0; k <= 8; k++ {
			t := float32(k) * duration / 8
			angle := 0.25 * float32(math.Sin(float64(t)/duration*2*math.Pi+float64(i)*0.4))
			rot = append(rot, quatKey(t, mgl32.QuatRotate(angle, mgl32.Vec3{0, 0, 1})))
		}
		wave.Channels = append(wave.Channels, model.ImportedChannel{
			NodeName:     boneName(i),
			PositionKeys: []model.VectorKeyframe{{Time: 0, Value: bones[i].RestTranslation}},
			RotationKeys: rot,
			ScaleKeys:    []model.VectorKeyframe{{Time: 0, Value: [3]float32{1, 1, 1}}},
		})
	}

	sway := model.ImportedAnimation{Name: "sway", DurationTicks: duration, TicksPerSecond: tps}
	sway.Channels = []model.ImportedChannel{{
		NodeName: boneName(0),
		PositionKeys: []model.VectorKeyframe{
			{Time: 0, Value: [3]float32{0, 0, 0}},
			{Time: duration / 2, Value: [3]float32{0, 0.3, 0}},
			{Time: duration, Value: [3]float32{0, 0, 0}},
		},
		RotationKeys: []model.QuaternionKeyframe{
			quatKey(0, mgl32.QuatRotate(-0.6, mgl32.Vec3{0, 1, 0})),
			quatKey(duration/2, mgl32.QuatRotate(0.6, mgl32.Vec3{0, 1, 0})),
			quatKey(duration, mgl32.QuatRotate(-0.6, mgl32.Vec3{0, 1, 0})),
		},
		ScaleKeys: []model.VectorKeyframe{{Time: 0, Value: [3]float32{1, 1, 1}}},
	}}

	return &model.ImportedModel{
		Name:       "tail",
		Bones:      bones,
		Animations: []model.ImportedAnimation{wave, sway},
	}
}

func boneName(i int) string {
	return "tail_" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}

func quatKey(t float32, q mgl32.Quat) model.QuaternionKeyframe {
	return model.QuaternionKeyframe{Time: t, Value: [4]float32{q.V[0], q.V[1], q.V[2], q.W}}
}
