// Package keys loads and stores the ed25519 keypairs that sign ledger
// transactions.
//
// Keypairs are read from solana-keygen JSON files, base58 secret keys or hex
// seeds. KeyStore keeps a root keypair per identifier on the local filesystem
// and derives per-role agent wallets from it deterministically.
package keys
