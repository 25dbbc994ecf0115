// Package commitment implements the invoice commitment scheme.
//
// Overview:
//   - An invoice commitment binds (merchant, amount, salt) into a single
//     public field element without revealing any of the three inputs
//   - The commitment is H(merchant) + H(amount) + H(salt), where H is a
//     MiMC hash-to-field over the BW6-761 scalar field and + is field
//     addition
//   - Salts are 128-bit values from crypto/rand; per-payment receipt keys
//     are derived from (payment secret, salt) with the same PRF shape
//
// Determinism:
//   - Any party holding the same three inputs reproduces the commitment
//     bit for bit. That is the integrity mechanism: payment links carry
//     the inputs, never the commitment, and a tampered input yields a
//     hash that does not exist on chain.
//
// The scheme is pinned by SchemeVersion. Creation-time and
// verification-time hashing must use the same version; mixing versions
// breaks verification.
package commitment
