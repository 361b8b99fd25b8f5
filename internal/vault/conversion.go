package vault

import "cosmossdk.io/math"

// Conversion math between shares and assets.
//
// Both directions work on offset bases: the share base gets +1 and the value
// base gets +virtualOffset. A near-zero-supply actor therefore cannot set an
// extreme initial share price and profit from later roundings: the first
// deposit is discounted by the offset constant instead of minting 1:1.
//
// Rounding always favors the pool, never the caller: shares minted for a
// deposit round down, assets required for a mint round up, shares required
// for a withdrawal round up, assets paid for a redemption round down. The
// pool can never lose value purely from truncation.

// TotalValue derives the pool valuation from the reported per-share price
// and the current share supply.
func TotalValue(price math.LegacyDec, supply math.Int) math.Int {
	return price.MulInt(supply).TruncateInt()
}

// SharesForDeposit is floor(assets * (supply+1) / (value+offset)).
func SharesForDeposit(assets, supply, totalValue, offset math.Int) math.Int {
	return assets.Mul(shareBase(supply)).Quo(valueBase(totalValue, offset))
}

// AssetsForMint is ceil(shares * (value+offset) / (supply+1)).
func AssetsForMint(shares, supply, totalValue, offset math.Int) math.Int {
	return ceilDiv(shares.Mul(valueBase(totalValue, offset)), shareBase(supply))
}

// SharesForWithdraw is ceil(assets * (supply+1) / (value+offset)).
func SharesForWithdraw(assets, supply, totalValue, offset math.Int) math.Int {
	return ceilDiv(assets.Mul(shareBase(supply)), valueBase(totalValue, offset))
}

// AssetsForRedeem is floor(shares * (value+offset) / (supply+1)).
func AssetsForRedeem(shares, supply, totalValue, offset math.Int) math.Int {
	return shares.Mul(valueBase(totalValue, offset)).Quo(shareBase(supply))
}

func shareBase(supply math.Int) math.Int {
	return supply.Add(math.OneInt())
}

func valueBase(totalValue, offset math.Int) math.Int {
	return totalValue.Add(offset)
}

func ceilDiv(num, den math.Int) math.Int {
	return num.Add(den).Sub(math.OneInt()).Quo(den)
}
