// Live particle viewer - interactive visualization with parameter sliders.
//
// Usage: go run ./cmd/view [-config config.yaml] [-seed N]
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/abp2d/config"
	"github.com/pthm-cable/abp2d/sim"
)

const (
	windowWidth  = 1020
	windowHeight = 720
	viewSize     = 700
	panelWidth   = windowWidth - viewSize - 30
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	state, err := newState(cfg, uint64(*seed))
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	rl.InitWindow(windowWidth, windowHeight, "Active Brownian Particles")
	defer rl.CloseWindow()
	rl.SetTargetFPS(60)

	// Live-tunable copies of the physical parameters.
	pot := float32(cfg.Physics.PotStrength)
	temp := float32(cfg.Physics.Temperature)
	rotDif := float32(cfg.Physics.RotDif)
	activity := float32(cfg.Physics.Activity)

	stepsPerFrame := float32(10)
	paused := false
	iter := 0

	length := state.Params().Length
	scale := float32(viewSize) / float32(length)
	radius := 0.5 * scale // particle diameter equals the interaction cutoff
	if radius < 1 {
		radius = 1
	}

	for !rl.WindowShouldClose() {
		if rl.IsKeyPressed(rl.KeySpace) {
			paused = !paused
		}

		if !paused {
			for s := 0; s < int(stepsPerFrame); s++ {
				state.Evolve()
				iter++
			}
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.Black)

		// Particles, hue from orientation
		snap := state.Snapshot()
		for i := range snap.X {
			hue := float32(snap.Theta[i] * 180 / math.Pi)
			c := rl.ColorFromHSV(hue, 0.8, 0.95)
			rl.DrawCircleV(rl.Vector2{
				X: 10 + float32(snap.X[i])*scale,
				Y: 10 + float32(snap.Y[i])*scale,
			}, radius, c)
		}
		rl.DrawRectangleLines(10, 10, viewSize, viewSize, rl.DarkGray)

		// Control panel
		panelX := float32(viewSize + 20)
		panelY := float32(10)

		rl.DrawText("Simulation Parameters", int32(panelX), int32(panelY), 20, rl.RayWhite)
		panelY += 35

		newPot := drawSlider(panelX, &panelY, "Potential strength", pot, 0.1, 50)
		newTemp := drawSlider(panelX, &panelY, "Temperature", temp, 0, 2)
		newRotDif := drawSlider(panelX, &panelY, "Rotational diffusivity", rotDif, 0, 5)
		newActivity := drawSlider(panelX, &panelY, "Activity", activity, 0, 5)

		if newPot != pot || newTemp != temp || newRotDif != rotDif || newActivity != activity {
			if err := state.Tune(float64(newPot), float64(newTemp),
				float64(newRotDif), float64(newActivity)); err == nil {
				pot, temp, rotDif, activity = newPot, newTemp, newRotDif, newActivity
			}
		}

		stepsPerFrame = drawSlider(panelX, &panelY, "Steps per frame", stepsPerFrame, 1, 100)
		panelY += 10

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, toggleText(paused, "Resume", "Pause")) {
			paused = !paused
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Reset") {
			state.Close()
			if s, err := newState(cfg, uint64(*seed)); err == nil {
				state = s
				iter = 0
			}
		}
		panelY += 50

		rl.DrawText(fmt.Sprintf("N = %d  L = %.1f", len(snap.X), length), int32(panelX), int32(panelY), 16, rl.Gray)
		panelY += 22
		rl.DrawText(fmt.Sprintf("iter %d  t = %.2f", iter, float64(iter)*state.Params().DT), int32(panelX), int32(panelY), 16, rl.Gray)
		panelY += 22
		rl.DrawText(fmt.Sprintf("FPS %d", rl.GetFPS()), int32(panelX), int32(panelY), 16, rl.Gray)

		rl.DrawText("Space: pause/resume", int32(panelX), windowHeight-30, 12, rl.LightGray)

		rl.EndDrawing()
	}
}

func newState(cfg *config.Config, seed uint64) (*sim.State, error) {
	noise, err := sim.NewNoiseSource(cfg.Noise.Backend, seed)
	if err != nil {
		return nil, err
	}
	return sim.NewState(sim.Params{
		Length:            cfg.Derived.Length,
		NParts:            cfg.Physics.NParts,
		PotStrength:       cfg.Physics.PotStrength,
		Temperature:       cfg.Physics.Temperature,
		RotDif:            cfg.Physics.RotDif,
		Activity:          cfg.Physics.Activity,
		DT:                cfg.Physics.DT,
		Workers:           cfg.Parallel.Workers,
		ParallelThreshold: cfg.Parallel.Threshold,
	}, noise)
}

// drawSlider draws a labeled slider and advances the panel cursor.
func drawSlider(x float32, y *float32, label string, value, minVal, maxVal float32) float32 {
	rl.DrawText(label, int32(x), int32(*y), 14, rl.Gray)
	*y += 18
	v := gui.SliderBar(
		rl.Rectangle{X: x, Y: *y, Width: float32(panelWidth - 80), Height: 20},
		"", "",
		value, minVal, maxVal,
	)
	rl.DrawText(fmt.Sprintf("%.2f", v), int32(x+float32(panelWidth-70)), int32(*y+2), 16, rl.RayWhite)
	*y += 35
	return v
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
