// Package escrow implements the lifecycle engine for AI-verified freelance
// jobs: a client stakes a principal, a freelancer counter-stakes, submitted
// work is scored by an external grader and funds are released, refunded or
// slashed depending on the score and deadline. The engine owns every status
// transition and emits the ledger movements each transition implies; wallet
// broadcast, persistence and the grader itself live behind interfaces.
package escrow

// SatoshisPerBTC is the scaling factor between API-facing decimal BTC
// strings and the integer satoshi amounts used everywhere internally.
const SatoshisPerBTC = 100_000_000
