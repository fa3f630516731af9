package venue

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/gregtusar/perptrader/pkg/models"
)

// Known-answer vectors for the Agent signing path. The expected values were
// computed independently of go-ethereum from the raw ABI words, keccak256 and
// RFC 6979 secp256k1 signing.
const (
	vectorKey     = "0x0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	vectorAddress = "0xfCAd0B19bB29D4674531d6f115237E16AfCE377c"
	vectorVault   = "0x1111111111111111111111111111111111111111"
	vectorNonce   = uint64(1700000000000)
)

func vectorSigner(t *testing.T) *Signer {
	t.Helper()
	wallet, err := NewWallet(vectorKey)
	if err != nil {
		t.Fatalf("NewWallet() error: %v", err)
	}
	return NewSigner(wallet, ExchangeDomain())
}

func TestSigner_KnownDomain(t *testing.T) {
	signer := vectorSigner(t)

	if got, want := signer.Address(), common.HexToAddress(vectorAddress); got != want {
		t.Errorf("Address() = %s, want %s", got.Hex(), want.Hex())
	}

	td := signer.typedData(common.Hash{})
	sep, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		t.Fatalf("HashStruct() error: %v", err)
	}
	if got, want := hexutil.Encode(sep), "0xd79297fcdf2ffcd4ae223d01edaa2ba214ff8f401d7c9300d995d17c82aa4040"; got != want {
		t.Errorf("domain separator = %s, want %s", got, want)
	}

	digest, err := signer.AgentDigest(common.Hash{})
	if err != nil {
		t.Fatalf("AgentDigest() error: %v", err)
	}
	if got, want := hexutil.Encode(digest), "0x275f46c0e96756f074f6b17f230a3edfc0a904609b6af8d6fc2ecf198358802d"; got != want {
		t.Errorf("AgentDigest(zero) = %s, want %s", got, want)
	}
}

func TestSigner_KnownVectors(t *testing.T) {
	buy := func(tif models.TimeInForce) models.OrderIntent {
		return models.OrderIntent{Asset: 1, IsBuy: true, LimitPx: "1900", Sz: "0.0526", OrderType: models.LimitType(tif)}
	}
	exit := func(px string, isMarket bool, tpsl models.TPSL) models.OrderIntent {
		return models.OrderIntent{Asset: 1, LimitPx: px, Sz: "0.0526", ReduceOnly: true, OrderType: models.TriggerType(px, isMarket, tpsl)}
	}

	tests := []struct {
		name         string
		order        models.OrderIntent
		connectionID string
		digest       string
		r, s         string
		v            byte
	}{
		{
			name:         "limit alo",
			order:        buy(models.TifAlo),
			connectionID: "0x1cf2d705b1600bae851801896e97251a278a10f331c3969bcc53c27ac4c90721",
			digest:       "0x6d4ddc505bda8cd4fcdd1ae44b4fcd29744f4b4075d2d10fc12e994a559fa62b",
			r:            "0x216028f96cc07a021b3bf8fcacb9916a488611dff92451b59f42f255d495c803",
			s:            "0x4a86888927416c37ce52da55e2f29a2919df6a43c75188e10988410ec4514eeb",
			v:            27,
		},
		{
			name:         "limit gtc",
			order:        buy(models.TifGtc),
			connectionID: "0x9e7972708c0ed4fc5c94825fb19222352c6c4048a0c23f563f0dca5e8e389d67",
			digest:       "0x990e21a5f5036443d46893f6dc1f3210a757733a6583bb3084034ce8b7ed8c69",
			r:            "0x21fb8f411d9bbaef1352f8ba27545a536d777b05b5a88277763fa5a0991fa0b1",
			s:            "0x2abff9d7a5e83a3715534ef1ac0e0ae99e9bff699b7777d8ef9fabafcf1c3893",
			v:            28,
		},
		{
			name:         "limit ioc",
			order:        buy(models.TifIoc),
			connectionID: "0xb6523e8b579bdead8108593ec8bd56390a2102446f0d7f88da1e0f32a5c69643",
			digest:       "0xdad133c6227d073267dbf5a9cd8f372ea3bfdc0355726b26bae59d200b619e9c",
			r:            "0xec63e9367d35cc3143c9398162e82b8923a3b5943a51af10234ca8cac66c3f37",
			s:            "0x5b4fcca685031ee35f9a79f3cbcfa3d9038373863c005ee582f652af9488b9bc",
			v:            27,
		},
		{
			name:         "market take profit",
			order:        exit("2100", true, models.TPSLTakeProfit),
			connectionID: "0x79aa63416f3cb0ba4727de4cac38f1eada0af3e9ca8f988572a229af5bd8caf7",
			digest:       "0x32bf5c06f7a76427bb07ef8d5a9d8be5f392ceb72ec11e91c06f100c71e743d1",
			r:            "0xb5de6f39b0c5f09cd5df8956cab175e95e18a656dade5ed0162ec2373c6de1c2",
			s:            "0x180e98737b0da3acc8f5d3693cf11cd947c38c5a349d26774a6b4090d851d18a",
			v:            28,
		},
		{
			name:         "limit take profit",
			order:        exit("2100", false, models.TPSLTakeProfit),
			connectionID: "0x211cc00ea18bbe33eb56d4952b62f755262dba7a7f9e567ea649f6ff475925f9",
			digest:       "0x011cc325d7f8b88744edf3ed42660a29a92743e433e46cffc7e99e0f1577ff49",
			r:            "0x11d5c6f911794fec63a199ed37dbc215a219fda6aad086b4b2b52063f2b33797",
			s:            "0x63eb1656277136eb7a9fc0dd7b2acd665567c7080930d3138b7e960d7d5de0ed",
			v:            28,
		},
		{
			name:         "market stop loss",
			order:        exit("1800", true, models.TPSLStopLoss),
			connectionID: "0xfb3ff4bb580feeaa50a73181077e8f8a95bc567735dbb95045efe0b85fa9b927",
			digest:       "0xcb7b2eada95bae1b50c075f8958f6e2d7ed1f4977119a68d4be9bb19e98ddcc0",
			r:            "0x25dca0b2c31d4004739c18469b02434bb0c58d78996b00cbbb15b0e1de71d78f",
			s:            "0x3839a33c8073cf215ccfbd15c3feb708b348b92175a5a690b97505ddc252f3d2",
			v:            27,
		},
		{
			name:         "limit stop loss",
			order:        exit("1800", false, models.TPSLStopLoss),
			connectionID: "0x61dfe96729158893da761de8e48e9b97d298f9a3102562bb890eb855305ee200",
			digest:       "0x4d0d19d0568e9d90cfb28a4ab78b40d4f67b4fbae34d81ccf54eecad65037457",
			r:            "0xe76c5c99ad82cc07929dc4b1486624466bfa42e3669ad0bd5f5399696c5fbffe",
			s:            "0x38cd4a0045a477fd928cec68f92fbf9eb7e59ac1d931413eda2871b77c229162",
			v:            27,
		},
	}

	signer := vectorSigner(t)
	vault := common.HexToAddress(vectorVault)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connID, err := OrderConnectionID(models.OrderBatch{tt.order}, vault, vectorNonce)
			if err != nil {
				t.Fatalf("OrderConnectionID() error: %v", err)
			}
			if got := connID.Hex(); got != tt.connectionID {
				t.Errorf("OrderConnectionID() = %s, want %s", got, tt.connectionID)
			}

			digest, err := signer.AgentDigest(connID)
			if err != nil {
				t.Fatalf("AgentDigest() error: %v", err)
			}
			if got := hexutil.Encode(digest); got != tt.digest {
				t.Errorf("AgentDigest() = %s, want %s", got, tt.digest)
			}

			sig, err := signer.SignConnectionID(connID)
			if err != nil {
				t.Fatalf("SignConnectionID() error: %v", err)
			}
			want := Signature{R: tt.r, S: tt.s, V: tt.v}
			if sig != want {
				t.Errorf("SignConnectionID() = %+v, want %+v", sig, want)
			}

			addr, err := signer.RecoverAgentSigner(connID, sig)
			if err != nil {
				t.Fatalf("RecoverAgentSigner() error: %v", err)
			}
			if addr != signer.Address() {
				t.Errorf("RecoverAgentSigner() = %s, want %s", addr.Hex(), signer.Address().Hex())
			}
		})
	}
}
