package decoder

import solanago "github.com/gagliardetto/solana-go"

// Program addresses the decoder recognizes.
var (
	// DLMMProgramID is the Meteora DLMM program.
	DLMMProgramID = solanago.MustPublicKeyFromBase58("LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo")

	// HawksightProgramID is the yield-automation wrapper that opens and
	// manages DLMM positions on a user's behalf. Transactions it touches are
	// flagged so the sender can be attributed correctly downstream.
	HawksightProgramID = solanago.MustPublicKeyFromBase58("HAWK3BVnwptKRFYfVoVGhBc2TYxpyG9jmAbkHeW9tyKE")
)

func isTokenProgram(pk solanago.PublicKey) bool {
	return pk.Equals(solanago.TokenProgramID) || pk.Equals(solanago.Token2022ProgramID)
}
