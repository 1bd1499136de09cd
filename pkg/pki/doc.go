/*
Package pki implements Keysas's hybrid (classical + post-quantum) public key
infrastructure: password-wrapped keypair storage, X.509-profile certificate
issuance, and CSR construction/parsing.

# Why hybrid

A Keysas device signature must survive both a classical cryptanalytic break
and a future quantum one, so every signature, every keypair, and every
certificate described by this package comes in two independent halves:

	┌─────────────────────── HybridKeyPair ───────────────────────┐
	│                                                               │
	│   ┌───────────────────┐        ┌──────────────────────┐     │
	│   │   classicalSigner  │        │      pqSigner         │     │
	│   │   Ed25519, 32-byte │        │   ML-DSA/Dilithium5,   │     │
	│   │   secret           │        │   scheme-defined sizes │     │
	│   └─────────┬─────────┘        └───────────┬──────────┘     │
	│             │                                │                │
	│             ▼                                ▼                │
	│      Certificate (cl)                 Certificate (pq)        │
	└───────────────────────────────────────────────────────────────┘

Both halves are always generated, stored, and used together; a HybridKeyPair
with only one half populated is an invariant violation (see
[InvariantViolation] in pkg/kerrors), never a valid partial state.

# Storage format

Private keys are stored as password-encrypted PKCS#8-shaped envelopes
(EncryptedPrivateKeyInfo wrapping a PrivateKeyInfo carrying the algorithm OID,
the private key, and — for the PQ half, where the public key cannot be
cheaply re-derived from the private key alone — the public key too).
Encryption is scrypt(password, salt) -> AES-256-CBC(iv), with a fresh
16-byte salt and IV per save. See pkg/pki/keystore.go.

# Certificates

Certificates follow one TBS template across all four profiles (root CA,
station CA, station file-signing, USB signing): version 3, an explicit
signature AlgorithmIdentifier whose OID selects classical vs PQ, and — for
non-root certificates — BasicConstraints(cA=false) and
KeyUsage(digitalSignature). The outer signature_algorithm.oid is always set
from the key that actually produced the signature; the original
implementation's bug of labeling an Ed25519-signed certificate with the
Dilithium OID is not reproduced here (see DESIGN.md).
*/
package pki
