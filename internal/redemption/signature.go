package redemption

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/fundlabs-io/vault-engine/internal/types"
)

// Domain separates signatures between deployments. Two funds running the
// same engine must never accept each other's redemption authorizations.
type Domain struct {
	Name    string
	Version string
	FundID  string
}

func (d Domain) hash() chainhash.Hash {
	var buf []byte
	buf = appendLenPrefixed(buf, []byte(d.Name))
	buf = appendLenPrefixed(buf, []byte(d.Version))
	buf = appendLenPrefixed(buf, []byte(d.FundID))
	return chainhash.HashH(buf)
}

// RequestMessage is the owner-signed payload authorizing a redemption.
// Owner is the lowercase hex encoding of the signer's x-only public key.
type RequestMessage struct {
	Owner        string
	ShareAmount  math.Int
	MinAssetsOut math.Int
	Deadline     time.Time
	Nonce        uint64
}

// Digest is the value actually signed: a tagged hash binding the request
// fields to the deployment domain.
func (m RequestMessage) Digest(domain Domain) chainhash.Hash {
	var buf []byte
	buf = appendLenPrefixed(buf, []byte(m.Owner))
	buf = appendLenPrefixed(buf, []byte(m.ShareAmount.String()))
	buf = appendLenPrefixed(buf, []byte(m.MinAssetsOut.String()))
	buf = binary.BigEndian.AppendUint64(buf, uint64(m.Deadline.Unix()))
	buf = binary.BigEndian.AppendUint64(buf, m.Nonce)
	msgHash := chainhash.HashH(buf)

	domainHash := domain.hash()
	return chainhash.HashH(append(domainHash[:], msgHash[:]...))
}

// Sign produces the hex-encoded schnorr signature for a request. Test and
// client helper; the engine itself only verifies.
func Sign(privKey *btcec.PrivateKey, domain Domain, msg RequestMessage) (string, error) {
	digest := msg.Digest(domain)
	sig, err := schnorr.Sign(privKey, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign redemption request: %w", err)
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

// AccountID derives the ledger account id for a key, the lowercase hex
// x-only public key.
func AccountID(privKey *btcec.PrivateKey) string {
	return hex.EncodeToString(schnorr.SerializePubKey(privKey.PubKey()))
}

// Verify checks the signature against the key embedded in the message's
// owner id.
func Verify(domain Domain, msg RequestMessage, signatureHex string) *types.Error {
	pkBytes, err := hex.DecodeString(msg.Owner)
	if err != nil {
		return badSignatureError(fmt.Errorf("owner is not a hex public key: %w", err))
	}
	pubKey, err := schnorr.ParsePubKey(pkBytes)
	if err != nil {
		return badSignatureError(fmt.Errorf("failed to parse owner public key: %w", err))
	}

	sigBytes, err := hex.DecodeString(signatureHex)
	if err != nil {
		return badSignatureError(fmt.Errorf("signature is not hex: %w", err))
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return badSignatureError(fmt.Errorf("failed to parse signature: %w", err))
	}

	digest := msg.Digest(domain)
	if !sig.Verify(digest[:], pubKey) {
		return badSignatureError(fmt.Errorf("signature does not match owner %s", msg.Owner))
	}
	return nil
}

func badSignatureError(err error) *types.Error {
	return types.NewError(types.ErrorAuthorization, types.BadSignature, err)
}

func appendLenPrefixed(buf, data []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}
