package config

import (
	"fmt"
	"math/big"
)

var (
	minCollateralizationLimit = big.NewInt(1e18)
	maxCollateralizationLimit = new(big.Int).Mul(big.NewInt(4), big.NewInt(1e18))
)

const maxBps = uint64(10_000)

// Validate checks the protocol parameters before they are seeded at genesis.
func (c *Config) Validate() error {
	p := c.Protocol

	if p.MintFeeBps > maxBps {
		return fmt.Errorf("protocol: MintFeeBps %d exceeds %d", p.MintFeeBps, maxBps)
	}
	if p.WithdrawFeeBps > maxBps {
		return fmt.Errorf("protocol: WithdrawFeeBps %d exceeds %d", p.WithdrawFeeBps, maxBps)
	}
	if p.HarvestFeeBps > maxBps {
		return fmt.Errorf("protocol: HarvestFeeBps %d exceeds %d", p.HarvestFeeBps, maxBps)
	}
	if p.PlantableMarginBps > maxBps {
		return fmt.Errorf("protocol: PlantableMarginBps %d exceeds %d", p.PlantableMarginBps, maxBps)
	}
	if p.TransmutationPeriod == 0 {
		return fmt.Errorf("protocol: TransmutationPeriod must be positive")
	}
	if len(p.RewardTokens) != len(p.RewardVesting) {
		return fmt.Errorf("protocol: RewardTokens and RewardVesting must have equal length")
	}

	limit, err := ParseAmount(p.CollateralizationLimit)
	if err != nil {
		return fmt.Errorf("protocol: %w", err)
	}
	if limit != nil {
		if limit.Cmp(minCollateralizationLimit) < 0 || limit.Cmp(maxCollateralizationLimit) > 0 {
			return fmt.Errorf("protocol: CollateralizationLimit %s outside [1e18, 4e18]", limit)
		}
	}
	for field, raw := range map[string]string{
		"FlushActivator":     p.FlushActivator,
		"WaTokenCeiling":     p.WaTokenCeiling,
		"PlantableThreshold": p.PlantableThreshold,
		"WasabiRatePerBlock": p.WasabiRatePerBlock,
	} {
		if _, err := ParseAmount(raw); err != nil {
			return fmt.Errorf("protocol: %s: %w", field, err)
		}
	}
	for field, raw := range map[string]string{
		"Governance":   p.Governance,
		"Rewards":      p.Rewards,
		"FeeCollector": p.FeeCollector,
		"Collector":    p.Collector,
	} {
		if _, err := ParseAddress(raw); err != nil {
			return fmt.Errorf("protocol: %s: %w", field, err)
		}
	}
	return nil
}
