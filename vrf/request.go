package vrf

import (
	"bytes"
	"fmt"
	"math/big"

	"raffle/domain/entities"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ExtraArgsV1Tag is bytes4(keccak256("VRF ExtraArgsV1"))
var ExtraArgsV1Tag = crypto.Keccak256([]byte("VRF ExtraArgsV1"))[:4]

var (
	boolArgs    = abi.Arguments{{Type: mustType("bool")}}
	uint256Pair = abi.Arguments{{Type: mustType("uint256")}, {Type: mustType("uint256")}}
)

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

// RandomWordsRequest is the payload handed to a coordinator
type RandomWordsRequest struct {
	KeyHash              common.Hash `json:"key_hash"`
	SubID                *big.Int    `json:"sub_id"`
	RequestConfirmations uint16      `json:"request_confirmations"`
	CallbackGasLimit     uint32      `json:"callback_gas_limit"`
	NumWords             uint32      `json:"num_words"`
	ExtraArgs            []byte      `json:"extra_args"`
}

// NewRandomWordsRequest translates engine parameters into a coordinator request
func NewRandomWordsRequest(params entities.RandomnessParams) RandomWordsRequest {
	subID := new(big.Int)
	if params.SubscriptionID != nil {
		subID.Set(params.SubscriptionID)
	}
	return RandomWordsRequest{
		KeyHash:              params.KeyHash,
		SubID:                subID,
		RequestConfirmations: params.RequestConfirmations,
		CallbackGasLimit:     params.CallbackGasLimit,
		NumWords:             params.NumWords,
		ExtraArgs:            ExtraArgsV1(params.NativePayment),
	}
}

// ExtraArgsV1 encodes the payment option as tag ‖ abi.encode(bool)
func ExtraArgsV1(nativePayment bool) []byte {
	encoded, err := boolArgs.Pack(nativePayment)
	if err != nil {
		panic(err) // packing a bool cannot fail
	}
	out := make([]byte, 0, len(ExtraArgsV1Tag)+len(encoded))
	out = append(out, ExtraArgsV1Tag...)
	return append(out, encoded...)
}

// NativePayment decodes ExtraArgsV1. Empty args mean LINK payment.
func NativePayment(extraArgs []byte) (bool, error) {
	if len(extraArgs) == 0 {
		return false, nil
	}
	if len(extraArgs) < len(ExtraArgsV1Tag) || !bytes.Equal(extraArgs[:len(ExtraArgsV1Tag)], ExtraArgsV1Tag) {
		return false, fmt.Errorf("unknown extra args tag %x", extraArgs[:min(len(extraArgs), len(ExtraArgsV1Tag))])
	}
	values, err := boolArgs.Unpack(extraArgs[len(ExtraArgsV1Tag):])
	if err != nil {
		return false, fmt.Errorf("failed to decode extra args: %w", err)
	}
	return values[0].(bool), nil
}

// DeriveRandomWord is keccak256(abi.encode(requestID, index)) as a uint256
func DeriveRandomWord(requestID *big.Int, index int) *big.Int {
	encoded, err := uint256Pair.Pack(requestID, big.NewInt(int64(index)))
	if err != nil {
		panic(err) // both values are non-negative uint256
	}
	return new(big.Int).SetBytes(crypto.Keccak256(encoded))
}
