package util

import (
	"math/big"

	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

// ExtractGasCost computes gasUsed * effectiveGasPrice from a transaction
// receipt, mirroring the teacher's `blackhole.go` gas-cost bookkeeping after
// every submitted transaction.
func ExtractGasCost(receipt types.TxReceipt) (*big.Int, error) {
	gasUsed, err := receipt.GasUsedBig()
	if err != nil {
		return nil, err
	}
	gasPrice, err := receipt.EffectiveGasPriceBig()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Mul(gasUsed, gasPrice), nil
}
