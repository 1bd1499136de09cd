package pki

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/asn1"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/scrypt"

	"github.com/keysas-fr/keysas-io/pkg/kerrors"
)

// Scrypt cost parameters. N is intentionally conservative (not the scrypt
// interactive-login default of 1<<14) because key loading happens rarely
// (daemon start, provisioning) and never on a hot path.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32 // AES-256

	saltSize = 16
	ivSize   = 16
)

// privateKeyInfo is the plaintext payload once decrypted: the algorithm OID
// that identifies which half of the hybrid pair this is, the private key
// bytes, and (required for the PQ half, optional convenience for the
// classical half) the matching public key bytes.
type privateKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	PrivateKey []byte
	PublicKey  []byte `asn1:"optional"`
}

type kdfParams struct {
	Salt []byte
	N    int
	R    int
	P    int
}

type encryptedPrivateKeyInfo struct {
	KDF        kdfParams
	IV         []byte
	Ciphertext []byte
}

// saveKeyFile writes priv/pub, encrypted under password, to path as a DER
// file. A fresh salt and IV are drawn from the OS CSPRNG on every call.
func saveKeyFile(path string, alg Algorithm, priv, pub []byte, password string) error {
	plain, err := asn1.Marshal(privateKeyInfo{
		Algorithm:  OIDFor(alg),
		PrivateKey: priv,
		PublicKey:  pub,
	})
	if err != nil {
		return kerrors.New(kerrors.IoFatal, "pki.saveKeyFile.marshal", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return kerrors.New(kerrors.IoFatal, "pki.saveKeyFile.salt", err)
	}
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return kerrors.New(kerrors.IoFatal, "pki.saveKeyFile.iv", err)
	}

	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return kerrors.New(kerrors.IoFatal, "pki.saveKeyFile.scrypt", err)
	}

	ciphertext, err := aesCBCEncrypt(key, iv, plain)
	if err != nil {
		return kerrors.New(kerrors.IoFatal, "pki.saveKeyFile.encrypt", err)
	}

	der, err := asn1.Marshal(encryptedPrivateKeyInfo{
		KDF:        kdfParams{Salt: salt, N: scryptN, R: scryptR, P: scryptP},
		IV:         iv,
		Ciphertext: ciphertext,
	})
	if err != nil {
		return kerrors.New(kerrors.IoFatal, "pki.saveKeyFile.marshal_envelope", err)
	}

	if err := os.WriteFile(path, der, 0o600); err != nil {
		return kerrors.New(kerrors.IoFatal, "pki.saveKeyFile.write", err)
	}
	return nil
}

// loadKeyFile decrypts and parses path, requiring that the embedded
// algorithm OID match alg and that the private key length match the
// algorithm's fixed size. For the PQ algorithm, a missing public key is a
// fatal asymmetry: unlike a classical seed, a Dilithium private key cannot
// recompute its public half.
func loadKeyFile(path string, alg Algorithm, password string, privLen int) (priv, pub []byte, err error) {
	der, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, kerrors.New(kerrors.IoFatal, "pki.loadKeyFile.read", err)
	}

	var envelope encryptedPrivateKeyInfo
	if _, err := asn1.Unmarshal(der, &envelope); err != nil {
		return nil, nil, kerrors.New(kerrors.InvariantViolation, "pki.loadKeyFile.parse_envelope", err)
	}

	key, err := scrypt.Key([]byte(password), envelope.KDF.Salt, envelope.KDF.N, envelope.KDF.R, envelope.KDF.P, scryptKeyLen)
	if err != nil {
		return nil, nil, kerrors.New(kerrors.IoFatal, "pki.loadKeyFile.scrypt", err)
	}

	plain, err := aesCBCDecrypt(key, envelope.IV, envelope.Ciphertext)
	if err != nil {
		return nil, nil, kerrors.New(kerrors.CryptoReject, "pki.loadKeyFile.decrypt", err)
	}

	var info privateKeyInfo
	if _, err := asn1.Unmarshal(plain, &info); err != nil {
		return nil, nil, kerrors.New(kerrors.InvariantViolation, "pki.loadKeyFile.parse_key", err)
	}

	wantOID := OIDFor(alg)
	if !info.Algorithm.Equal(wantOID) {
		return nil, nil, kerrors.New(kerrors.InvariantViolation, "pki.loadKeyFile.algorithm_mismatch",
			fmt.Errorf("expected OID %s, got %s", wantOID, info.Algorithm))
	}

	if len(info.PrivateKey) != privLen {
		return nil, nil, kerrors.New(kerrors.InvariantViolation, "pki.loadKeyFile.private_key_length",
			fmt.Errorf("expected %d bytes, got %d", privLen, len(info.PrivateKey)))
	}

	if alg == PostQuantum && len(info.PublicKey) == 0 {
		return nil, nil, kerrors.New(kerrors.InvariantViolation, "pki.loadKeyFile.missing_public_key",
			fmt.Errorf("post-quantum private key file %s has no embedded public key", path))
	}

	return info.PrivateKey, info.PublicKey, nil
}

func aesCBCEncrypt(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, block.BlockSize())
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

func aesCBCDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("ciphertext is not a multiple of the block size")
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)
	return pkcs7Unpad(plain)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(append([]byte{}, data...), padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	if !bytes.Equal(data[len(data)-padLen:], bytes.Repeat([]byte{byte(padLen)}, padLen)) {
		return nil, fmt.Errorf("invalid padding")
	}
	return data[:len(data)-padLen], nil
}
