package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputePNL(t *testing.T) {
	p := &Position{Quantity: 100, CostBasis: 10}

	pnl, pct := p.ComputePNL(0.15)
	assert.InDelta(t, 5.0, pnl, 1e-9)
	assert.InDelta(t, 50.0, pct, 1e-9)

	pnl, pct = p.ComputePNL(0.05)
	assert.InDelta(t, -5.0, pnl, 1e-9)
	assert.InDelta(t, -50.0, pct, 1e-9)
}

func TestComputePNLZeroCostBasis(t *testing.T) {
	p := &Position{Quantity: 100, CostBasis: 0}

	pnl, pct := p.ComputePNL(0.15)
	assert.InDelta(t, 15.0, pnl, 1e-9)
	// Percentage is 0 by convention when there is no cost basis.
	assert.Zero(t, pct)
}

func TestMergeTriggeredIdempotent(t *testing.T) {
	p := &Position{}

	p.MergeTriggered(LevelTakeProfit, []int{0, 1})
	p.MergeTriggered(LevelTakeProfit, []int{1, 2})
	p.MergeTriggered(LevelStopLoss, []int{0})
	p.MergeTriggered(LevelStopLoss, []int{0})

	assert.ElementsMatch(t, []int{0, 1, 2}, p.TriggeredTP)
	assert.ElementsMatch(t, []int{0}, p.TriggeredSL)

	assert.True(t, p.HasTriggered(LevelTakeProfit, 2))
	assert.False(t, p.HasTriggered(LevelTakeProfit, 3))
	assert.True(t, p.HasTriggered(LevelStopLoss, 0))
	assert.False(t, p.HasTriggered(LevelStopLoss, 1))
}

func TestPositionAge(t *testing.T) {
	opened := time.Now().Add(-90 * time.Second)
	p := &Position{OpenedAt: opened}
	assert.InDelta(t, 90.0, p.Age(time.Now()).Seconds(), 1.0)
}

func TestPositionValue(t *testing.T) {
	p := &Position{Quantity: 250, CurrentPrice: 0.004}
	assert.InDelta(t, 1.0, p.Value(), 1e-9)
}

func TestLevels(t *testing.T) {
	p := &Position{
		TakeProfits: []ExitLevel{{TriggerPercent: 50, SellPercent: 25}},
		StopLosses:  []ExitLevel{{TriggerPercent: 20, SellPercent: 100}},
	}
	assert.Len(t, p.Levels(LevelTakeProfit), 1)
	assert.Equal(t, 50.0, p.Levels(LevelTakeProfit)[0].TriggerPercent)
	assert.Equal(t, 20.0, p.Levels(LevelStopLoss)[0].TriggerPercent)
}
