// Package teleop turns pilot gamepad samples into vehicle actuator commands.
//
// Engine runs the allocation pipeline once per sample and keeps the latest
// thruster command. It never sends thrust itself: a Dispatcher re-sends the
// stored command at a fixed period so the serial link to the vehicle is not
// flooded at the gamepad rate. Light and laser commands are sent from the
// sample path, and only when they change.
package teleop

import (
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/rov.teleop/internal/allocation"
	"github.com/banshee-data/rov.teleop/internal/auxiliary"
	"github.com/banshee-data/rov.teleop/internal/input"
	"github.com/banshee-data/rov.teleop/internal/monitoring"
)

// Gains scale unit stick deflection into wrench components.
type Gains struct {
	Surge float64 `json:"surge"` // N
	Heave float64 `json:"heave"` // N
	Yaw   float64 `json:"yaw"`   // N·m
}

// Config holds everything the engine needs at construction.
type Config struct {
	Mapping        input.Mapping
	Gains          Gains
	ThrusterOffset float64 // m
	LightRate      float64
}

// Allocation is the full result of one pipeline pass.
type Allocation struct {
	Wrench   allocation.Wrench   `json:"wrench"`
	Forces   allocation.Forces   `json:"forces"`
	Percents allocation.Percents `json:"percents"` // before scaling
	Scale    float64             `json:"scale"`
	Command  allocation.Command  `json:"command"`
}

// Mix runs wrench construction, solve, calibration, saturation limiting and
// encoding for one set of controls.
func Mix(solver *allocation.Solver, gains Gains, c input.Controls) (Allocation, error) {
	w := allocation.Wrench{
		Surge: gains.Surge * c.Surge,
		Heave: gains.Heave * c.Heave,
		Yaw:   gains.Yaw * c.Yaw,
	}

	f, err := solver.Solve(w)
	if err != nil {
		return Allocation{}, err
	}

	p := allocation.Calibrate(f)
	scaled, k := p.Limited()

	return Allocation{
		Wrench:   w,
		Forces:   f,
		Percents: p,
		Scale:    k,
		Command:  allocation.EncodeAll(scaled),
	}, nil
}

// Snapshot is a consistent copy of the engine state.
type Snapshot struct {
	Command    allocation.Command   `json:"command"`
	Last       *Allocation          `json:"last,omitempty"`
	Controls   *input.Controls      `json:"controls,omitempty"`
	Light      float64              `json:"light"`
	Laser      auxiliary.LaserState `json:"laser"`
	Samples    uint64               `json:"samples"`
	Rejected   uint64               `json:"rejected"`
	Resends    uint64               `json:"resends"`
	LastError  string               `json:"last_error,omitempty"`
	LastSample time.Time            `json:"last_sample,omitempty"`
}

// Engine owns the allocation pipeline and the auxiliary actuator state.
// It is safe for concurrent use: samples and resends typically arrive on
// different goroutines.
type Engine struct {
	mapping input.Mapping
	gains   Gains
	solver  *allocation.Solver
	pub     Publisher
	now     func() time.Time

	// emitMu is held from the auxiliary state update through its publish so
	// light and laser commands reach the board in the order they were applied.
	emitMu sync.Mutex

	mu         sync.Mutex
	command    allocation.Command
	last       *Allocation
	controls   *input.Controls
	dimmer     *auxiliary.Dimmer
	latch      *auxiliary.Latch
	samples    uint64
	rejected   uint64
	resends    uint64
	lastErr    string
	lastSample time.Time
}

// NewEngine validates the configuration and builds the solver. A singular
// thruster geometry is reported here, before any sample is processed.
func NewEngine(cfg Config, pub Publisher) (*Engine, error) {
	if err := cfg.Mapping.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gamepad mapping: %w", err)
	}
	solver, err := allocation.NewSolver(cfg.ThrusterOffset)
	if err != nil {
		return nil, err
	}
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Engine{
		mapping: cfg.Mapping,
		gains:   cfg.Gains,
		solver:  solver,
		pub:     pub,
		now:     time.Now,
		command: allocation.NeutralCommand(),
		dimmer:  auxiliary.NewDimmer(cfg.LightRate),
		latch:   auxiliary.NewLatch(),
	}, nil
}

// HandleSample runs the pipeline for one gamepad sample and stores the new
// thruster command. A rejected sample leaves the stored command untouched.
// Light and laser commands are published when their state changes.
func (e *Engine) HandleSample(s input.RawSample) error {
	_, err := e.Process(s)
	return err
}

// Process is HandleSample returning the allocation computed for s.
func (e *Engine) Process(s input.RawSample) (Allocation, error) {
	c, err := e.mapping.Extract(s)
	if err != nil {
		e.reject(err)
		return Allocation{}, err
	}

	a, err := Mix(e.solver, e.gains, c)
	if err != nil {
		err = fmt.Errorf("allocation failed: %w", err)
		e.reject(err)
		return Allocation{}, err
	}

	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	e.command = a.Command
	e.last = &a
	e.controls = &c
	e.samples++
	e.lastSample = e.now()
	light, lightChanged := e.dimmer.Update(c.Light)
	laser, laserToggled := e.latch.Update(c.Laser)
	e.mu.Unlock()

	monitoring.Debugf("[engine] ESC vals: [%d,%d,%d] scale=%.3f",
		a.Command.Port, a.Command.Vertical, a.Command.Starboard, a.Scale)

	if lightChanged {
		if err := e.pub.PublishLight(light); err != nil {
			monitoring.Logf("[engine] failed to publish light %.2f: %v", light, err)
		}
	}
	if laserToggled {
		monitoring.Logf("[engine] laser %s", laser)
		if err := e.pub.PublishLaser(laser); err != nil {
			monitoring.Logf("[engine] failed to publish laser %s: %v", laser, err)
		}
	}
	return a, nil
}

func (e *Engine) reject(err error) {
	e.mu.Lock()
	e.rejected++
	e.lastErr = err.Error()
	e.mu.Unlock()
	monitoring.Logf("[engine] dropped sample: %v", err)
}

// Resend publishes the stored thruster command whether or not it changed.
// It does not recompute anything.
func (e *Engine) Resend() error {
	e.mu.Lock()
	cmd := e.command
	e.resends++
	e.mu.Unlock()
	return e.pub.PublishThrust(cmd)
}

// Command returns the stored thruster command.
func (e *Engine) Command() allocation.Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.command
}

// Snapshot returns a copy of the engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		Command:    e.command,
		Light:      e.dimmer.Level(),
		Laser:      e.latch.State(),
		Samples:    e.samples,
		Rejected:   e.rejected,
		Resends:    e.resends,
		LastError:  e.lastErr,
		LastSample: e.lastSample,
	}
	if e.last != nil {
		a := *e.last
		s.Last = &a
	}
	if e.controls != nil {
		c := *e.controls
		s.Controls = &c
	}
	return s
}
