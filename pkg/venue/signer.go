package venue

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// agentSource is the "source" field of the Agent struct the venue expects.
const agentSource = "a"

// Wallet owns the private key for the life of the process. Only its address
// ever leaves this package.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewWallet parses a hex private key, with or without 0x prefix.
func NewWallet(hexKey string) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		// the parse error can echo key material
		return nil, fmt.Errorf("invalid private key")
	}
	return &Wallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (w *Wallet) Address() common.Address { return w.address }

func (w *Wallet) String() string { return "wallet(" + w.address.Hex() + ")" }

func (w *Wallet) GoString() string { return w.String() }

// Domain is the EIP-712 domain separator input.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

func ExchangeDomain() Domain {
	return Domain{
		Name:              "Exchange",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: common.Address{},
	}
}

// Signature is the {r, s, v} triple the exchange endpoint takes.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V byte   `json:"v"`
}

// Bytes reassembles the 65-byte [R || S || V] form.
func (s Signature) Bytes() ([]byte, error) {
	r, err := hexutil.Decode(s.R)
	if err != nil {
		return nil, fmt.Errorf("decode r: %w", err)
	}
	sv, err := hexutil.Decode(s.S)
	if err != nil {
		return nil, fmt.Errorf("decode s: %w", err)
	}
	if len(r) > 32 || len(sv) > 32 {
		return nil, fmt.Errorf("signature component longer than 32 bytes")
	}
	out := make([]byte, 65)
	copy(out[32-len(r):32], r)
	copy(out[64-len(sv):64], sv)
	out[64] = s.V
	return out, nil
}

// Signer signs connection ids as EIP-712 Agent messages.
type Signer struct {
	wallet *Wallet
	domain Domain
}

func NewSigner(wallet *Wallet, domain Domain) *Signer {
	return &Signer{wallet: wallet, domain: domain}
}

func (s *Signer) Address() common.Address { return s.wallet.Address() }

func (s *Signer) typedData(connectionID common.Hash) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Agent": []apitypes.Type{
				{Name: "source", Type: "string"},
				{Name: "connectionId", Type: "bytes32"},
			},
		},
		PrimaryType: "Agent",
		Domain: apitypes.TypedDataDomain{
			Name:              s.domain.Name,
			Version:           s.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(s.domain.ChainID),
			VerifyingContract: s.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"source":       agentSource,
			"connectionId": connectionID.Hex(),
		},
	}
}

// AgentDigest returns keccak256(0x1901 || domainSeparator || hashStruct(Agent)).
func (s *Signer) AgentDigest(connectionID common.Hash) ([]byte, error) {
	typedData := s.typedData(connectionID)

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	agentHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash agent: %w", err)
	}

	rawData := []byte{0x19, 0x01}
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, agentHash...)
	return crypto.Keccak256Hash(rawData).Bytes(), nil
}

// SignConnectionID signs the Agent digest for connectionID. The result is
// deterministic (RFC 6979) for a given key and connection id.
func (s *Signer) SignConnectionID(connectionID common.Hash) (Signature, error) {
	digest, err := s.AgentDigest(connectionID)
	if err != nil {
		return Signature{}, err
	}
	sig, err := crypto.Sign(digest, s.wallet.key)
	if err != nil {
		return Signature{}, fmt.Errorf("failed to sign: %w", err)
	}
	return Signature{
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
		V: sig[64] + 27,
	}, nil
}

// RecoverAgentSigner returns the address that produced sig over connectionID.
func (s *Signer) RecoverAgentSigner(connectionID common.Hash, sig Signature) (common.Address, error) {
	digest, err := s.AgentDigest(connectionID)
	if err != nil {
		return common.Address{}, err
	}
	raw, err := sig.Bytes()
	if err != nil {
		return common.Address{}, err
	}
	if raw[64] < 27 {
		return common.Address{}, fmt.Errorf("invalid recovery id %d", raw[64])
	}
	raw[64] -= 27
	pub, err := crypto.SigToPub(digest, raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
