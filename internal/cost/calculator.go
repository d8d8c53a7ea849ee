// Package cost computes USD cost breakdowns from token totals and
// per-million-token prices.
package cost

import (
	"sync"

	"bookpipe/internal/core"
)

const tokensPerPriceUnit = 1_000_000

// Calculator turns token totals into a cost breakdown. The price table
// can be swapped atomically; past results are never recomputed.
type Calculator struct {
	mu     sync.RWMutex
	prices core.PriceTable
}

// New creates a Calculator with the given price table. A missing category
// (zero price) contributes zero cost, never an error.
func New(prices core.PriceTable) *Calculator {
	return &Calculator{prices: prices}
}

// Calculate returns the cost breakdown for the given token counts.
// No rounding is applied; callers format for display.
func (c *Calculator) Calculate(inputTokens, outputTokens, thinkingTokens int) core.CostBreakdown {
	c.mu.RLock()
	prices := c.prices
	c.mu.RUnlock()

	breakdown := core.CostBreakdown{
		InputCost:    float64(inputTokens) / tokensPerPriceUnit * prices.InputPerMtok,
		OutputCost:   float64(outputTokens) / tokensPerPriceUnit * prices.OutputPerMtok,
		ThinkingCost: float64(thinkingTokens) / tokensPerPriceUnit * prices.ThinkingPerMtok,
	}
	breakdown.TotalCost = breakdown.InputCost + breakdown.OutputCost + breakdown.ThinkingCost
	return breakdown
}

// CalculateTotals is a convenience wrapper over Calculate for a run's
// accumulated totals.
func (c *Calculator) CalculateTotals(totals core.TokenTotals) core.CostBreakdown {
	return c.Calculate(totals.Input, totals.Output, totals.Thinking)
}

// UpdatePrices replaces the price table. Subsequent calls use the new
// table; previously computed breakdowns are unaffected.
func (c *Calculator) UpdatePrices(prices core.PriceTable) {
	c.mu.Lock()
	c.prices = prices
	c.mu.Unlock()
}
