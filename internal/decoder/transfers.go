package decoder

import (
	"encoding/binary"

	solanago "github.com/gagliardetto/solana-go"

	"dlmm-profit-lab/internal/domain"
)

const transferCheckedOpcode = 12

// parseTransferChecked extracts the mint, raw amount and decimals from a
// token program transferChecked instruction. Account order is fixed by the
// token program: source, mint, destination, authority.
func parseTransferChecked(keys []solanago.PublicKey, inst solanago.CompiledInstruction) (domain.TokenTransfer, bool) {
	if int(inst.ProgramIDIndex) >= len(keys) || !isTokenProgram(keys[inst.ProgramIDIndex]) {
		return domain.TokenTransfer{}, false
	}
	data := []byte(inst.Data)
	if len(data) < 10 || data[0] != transferCheckedOpcode {
		return domain.TokenTransfer{}, false
	}
	if len(inst.Accounts) < 4 || int(inst.Accounts[1]) >= len(keys) {
		return domain.TokenTransfer{}, false
	}
	return domain.TokenTransfer{
		Mint:     keys[inst.Accounts[1]].String(),
		Amount:   binary.LittleEndian.Uint64(data[1:9]),
		Decimals: data[9],
	}, true
}
