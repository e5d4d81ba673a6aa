package events

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SubscribeEmitUnsubscribe(t *testing.T) {
	bus := NewBus()
	var got []string

	unsub := bus.Subscribe(SimulationCompleted, func(e *Event) {
		got = append(got, "first:"+e.Module)
	})
	bus.Subscribe(SimulationCompleted, func(e *Event) {
		got = append(got, "second:"+e.Module)
	})
	bus.Subscribe(SimulationFailed, func(e *Event) {
		got = append(got, "failed")
	})

	bus.Emit(SimulationCompleted, "engine", nil)
	assert.Equal(t, []string{"first:engine", "second:engine"}, got)

	unsub()
	got = nil
	bus.Emit(SimulationCompleted, "engine", nil)
	assert.Equal(t, []string{"second:engine"}, got)
}

func TestManager_EmitTyped(t *testing.T) {
	bus := NewBus()
	manager := NewManager(bus, zerolog.Nop())

	var received *Event
	bus.Subscribe(SimulationCompleted, func(e *Event) { received = e })

	manager.EmitTyped("engine", &SimulationCompletedData{
		RunID:       "run-1",
		Method:      "monte_carlo",
		Simulations: 1000,
		VaR95:       0.12,
	})

	require.NotNil(t, received)
	assert.Equal(t, SimulationCompleted, received.Type)
	assert.Equal(t, "engine", received.Module)
	assert.Equal(t, "run-1", received.Data["run_id"])
	assert.Equal(t, float64(1000), received.Data["simulations"])
	assert.Equal(t, 0.12, received.Data["var_95"])
	assert.False(t, received.Timestamp.IsZero())
}

func TestManager_EmitError(t *testing.T) {
	bus := NewBus()
	manager := NewManager(bus, zerolog.Nop())

	var received *Event
	bus.Subscribe(ErrorOccurred, func(e *Event) { received = e })

	manager.EmitError("scheduler", errors.New("boom"), map[string]interface{}{"job": "sweep"})
	require.NotNil(t, received)
	assert.Equal(t, "boom", received.Data["error"])
}

func TestMsgpackSink_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus()
	manager := NewManager(bus, zerolog.Nop())
	sink := NewMsgpackSink(&buf, zerolog.Nop())
	sink.Attach(bus, SimulationCompleted, SimulationFailed)

	manager.EmitTyped("engine", &SimulationCompletedData{RunID: "a", Simulations: 10})
	manager.EmitTyped("engine", &SimulationFailedData{RunID: "b", Stage: "adjustment"})
	manager.EmitTyped("engine", &OptimizationCompletedData{Objective: "max_sharpe"})

	sink.Detach()
	manager.EmitTyped("engine", &SimulationCompletedData{RunID: "c"})

	frames, err := ReadFrames(&buf)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, SimulationCompleted, frames[0].Type)
	assert.Equal(t, "a", frames[0].Data["run_id"])
	assert.Equal(t, SimulationFailed, frames[1].Type)
	assert.Equal(t, "adjustment", frames[1].Data["stage"])
}

func TestReadFrames_Truncated(t *testing.T) {
	var buf bytes.Buffer
	sink := NewMsgpackSink(&buf, zerolog.Nop())
	require.NoError(t, sink.Write(&Event{Type: SimulationCompleted, Module: "engine"}))

	truncated := buf.Bytes()[:buf.Len()-2]
	_, err := ReadFrames(bytes.NewReader(truncated))
	assert.Error(t, err)
}
