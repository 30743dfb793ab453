// Package grpcledger carries the ledger.Ledger interface over gRPC, so one
// process (noema-ledgerd) can own a backend that many clients share.
//
// Definite rejections keep their classification across the wire: the server
// answers FailedPrecondition and attaches the reason and program logs as
// trailer metadata.
package grpcledger
