package augment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		IncomeWeight:   0.20,
		SavingsWeight:  0.02,
		GridPoints:     12,
		IncomeMin:      300,
		IncomeMax:      20000,
		SavingsMin:     0,
		SavingsMax:     500000,
		MultiplierStep: 0.05,
	}
}

func TestTargetScenario(t *testing.T) {
	e, err := NewEngine(testConfig())
	require.NoError(t, err)
	assert.Equal(t, 1.0, e.CategoryMultiplier(0))
	assert.InDelta(t, 6144.0, e.Target(720, 300000, 0), 1e-9)
	assert.InDelta(t, 6144.0*1.1, e.Target(720, 300000, 2), 1e-9)
}

func TestGenerateSize(t *testing.T) {
	e, err := NewEngine(testConfig())
	require.NoError(t, err)

	rows := e.Generate([]int{0, 1, 2})
	assert.Len(t, rows, 12*12*3)
	for _, r := range rows {
		assert.True(t, r.Synthetic)
		assert.InDelta(t, e.Target(r.Income, r.Savings, r.CategoryCode), r.Target, 1e-9)
	}
}

func TestGridSpansAbsoluteRange(t *testing.T) {
	e, err := NewEngine(testConfig())
	require.NoError(t, err)

	inc, sav := e.Grid()
	assert.Equal(t, 300.0, inc[0])
	assert.Equal(t, 20000.0, inc[len(inc)-1])
	assert.Equal(t, 0.0, sav[0])
	assert.Equal(t, 500000.0, sav[len(sav)-1])

	inc, sav = e.Grid(WithObservedMax(50000, 100))
	assert.Equal(t, 50000.0, inc[len(inc)-1])
	assert.Equal(t, 500000.0, sav[len(sav)-1])
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	c := testConfig()
	c.GridPoints = 1
	_, err := NewEngine(c)
	assert.Error(t, err)

	c = testConfig()
	c.IncomeMax = c.IncomeMin
	_, err = NewEngine(c)
	assert.Error(t, err)
}
