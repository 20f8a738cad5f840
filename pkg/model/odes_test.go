package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oneCompartment(t *testing.T) *CompartmentalSystem {
	t.Helper()
	sys := NewCompartmentalSystem()
	require.NoError(t, sys.AddCompartment(Compartment{Name: "CENTRAL", Dose: true, Observation: true}))
	require.NoError(t, sys.AddFlow("CENTRAL", "", "CL/V"))
	return sys
}

func TestCompartmentalSystemBasics(t *testing.T) {
	sys := oneCompartment(t)

	assert.Error(t, sys.AddCompartment(Compartment{Name: "CENTRAL"}), "duplicate")
	assert.Error(t, sys.AddFlow("CENTRAL", "NOWHERE", "K"), "unknown target")

	require.NoError(t, sys.AddCompartment(Compartment{Name: "DEPOT"}))
	require.NoError(t, sys.AddFlow("DEPOT", "CENTRAL", "KA"))

	// re-adding an existing flow updates the rate
	require.NoError(t, sys.AddFlow("DEPOT", "CENTRAL", "KA*2"))
	var rate string
	for _, f := range sys.Flows() {
		if f.From == "DEPOT" {
			rate = f.Rate
		}
	}
	assert.Equal(t, "KA*2", rate)
}

func TestRemoveCompartmentDropsFlows(t *testing.T) {
	sys := oneCompartment(t)
	require.NoError(t, sys.AddCompartment(Compartment{Name: "PERIPHERAL1"}))
	require.NoError(t, sys.AddFlow("CENTRAL", "PERIPHERAL1", "Q/V1"))
	require.NoError(t, sys.AddFlow("PERIPHERAL1", "CENTRAL", "Q/V2"))

	require.NoError(t, sys.RemoveCompartment("PERIPHERAL1"))
	assert.Len(t, sys.Flows(), 1)
	assert.Error(t, sys.RemoveFlow("CENTRAL", "PERIPHERAL1"))
}

func TestPeripheralRecognition(t *testing.T) {
	sys := oneCompartment(t)
	require.NoError(t, sys.AddCompartment(Compartment{Name: "PERIPHERAL1"}))
	require.NoError(t, sys.AddFlow("CENTRAL", "PERIPHERAL1", "Q/V1"))
	require.NoError(t, sys.AddFlow("PERIPHERAL1", "CENTRAL", "Q/V2"))

	periph := sys.PeripheralCompartments()
	require.Len(t, periph, 1)
	assert.Equal(t, "PERIPHERAL1", periph[0].Name)
	assert.Equal(t, "ADVAN3", sys.Advan())
}

func TestAbsorptionCompartment(t *testing.T) {
	sys := NewCompartmentalSystem()
	require.NoError(t, sys.AddCompartment(Compartment{Name: "DEPOT", Dose: true}))
	require.NoError(t, sys.AddCompartment(Compartment{Name: "CENTRAL", Observation: true}))
	require.NoError(t, sys.AddFlow("DEPOT", "CENTRAL", "KA"))
	require.NoError(t, sys.AddFlow("CENTRAL", "", "CL/V"))

	depot, ok := sys.AbsorptionCompartment()
	require.True(t, ok)
	assert.Equal(t, "DEPOT", depot.Name)
	assert.Equal(t, "ADVAN2", sys.Advan())

	// one compartment bolus model has no absorption compartment
	_, ok = oneCompartment(t).AbsorptionCompartment()
	assert.False(t, ok)
}

func TestTransitChain(t *testing.T) {
	sys := NewCompartmentalSystem()
	for _, name := range []string{"TRANSIT1", "TRANSIT2", "DEPOT", "CENTRAL"} {
		require.NoError(t, sys.AddCompartment(Compartment{Name: name}))
	}
	require.NoError(t, sys.SetCompartment(Compartment{Name: "TRANSIT1", Dose: true}))
	require.NoError(t, sys.SetCompartment(Compartment{Name: "CENTRAL", Observation: true}))
	require.NoError(t, sys.AddFlow("TRANSIT1", "TRANSIT2", "KTR"))
	require.NoError(t, sys.AddFlow("TRANSIT2", "DEPOT", "KTR"))
	require.NoError(t, sys.AddFlow("DEPOT", "CENTRAL", "KA"))
	require.NoError(t, sys.AddFlow("CENTRAL", "", "CL/V"))

	assert.Equal(t, []string{"TRANSIT1", "TRANSIT2"}, sys.TransitChain())
}

func TestAdvanRecognition(t *testing.T) {
	build := func(depot bool, peripherals int) *CompartmentalSystem {
		sys := closedFormSystem(depot, peripherals, "TRANS2")
		return sys
	}
	assert.Equal(t, "ADVAN1", build(false, 0).Advan())
	assert.Equal(t, "ADVAN2", build(true, 0).Advan())
	assert.Equal(t, "ADVAN3", build(false, 1).Advan())
	assert.Equal(t, "ADVAN4", build(true, 1).Advan())
	assert.Equal(t, "ADVAN11", build(false, 2).Advan())
	assert.Equal(t, "ADVAN12", build(true, 2).Advan())
}
