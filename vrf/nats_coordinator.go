package vrf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"raffle/domain/entities"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	log "github.com/sirupsen/logrus"
)

const (
	// RequestSubject carries randomness requests to an external coordinator
	RequestSubject = "vrf.requests"

	// FulfillmentSubject carries fulfillments back from the coordinator
	FulfillmentSubject = "vrf.fulfillments"
)

// MessageBus is the slice of the NATS client the coordinator bridge needs
type MessageBus interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
	Subscribe(subject string, handler func(ctx context.Context, data []byte) error) error
}

type requestMessage struct {
	Consumer             string        `json:"consumer"`
	KeyHash              string        `json:"key_hash"`
	SubID                string        `json:"sub_id"`
	RequestConfirmations uint16        `json:"request_confirmations"`
	CallbackGasLimit     uint32        `json:"callback_gas_limit"`
	NumWords             uint32        `json:"num_words"`
	ExtraArgs            hexutil.Bytes `json:"extra_args"`
}

type requestReply struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error,omitempty"`
}

// FulfillmentMessage is the JSON body published on FulfillmentSubject
type FulfillmentMessage struct {
	Coordinator string   `json:"coordinator"`
	RequestID   string   `json:"request_id"`
	RandomWords []string `json:"random_words"`
}

// NATSCoordinator forwards requests to an out-of-process coordinator over request/reply
type NATSCoordinator struct {
	bus MessageBus
}

// NewNATSCoordinator creates a coordinator bridge over the message bus
func NewNATSCoordinator(bus MessageBus) *NATSCoordinator {
	return &NATSCoordinator{bus: bus}
}

// RequestRandomWords publishes the request and waits for the assigned id
func (c *NATSCoordinator) RequestRandomWords(ctx context.Context, consumer common.Address, req RandomWordsRequest) (*big.Int, error) {
	subID := "0"
	if req.SubID != nil {
		subID = req.SubID.String()
	}

	data, err := json.Marshal(requestMessage{
		Consumer:             consumer.Hex(),
		KeyHash:              req.KeyHash.Hex(),
		SubID:                subID,
		RequestConfirmations: req.RequestConfirmations,
		CallbackGasLimit:     req.CallbackGasLimit,
		NumWords:             req.NumWords,
		ExtraArgs:            req.ExtraArgs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal randomness request: %w", err)
	}

	replyData, err := c.bus.Request(ctx, RequestSubject, data)
	if err != nil {
		return nil, fmt.Errorf("failed to send randomness request: %w", err)
	}

	var reply requestReply
	if err := json.Unmarshal(replyData, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode coordinator reply: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("coordinator rejected request: %s", reply.Error)
	}

	requestID, ok := new(big.Int).SetString(reply.RequestID, 10)
	if !ok || requestID.Sign() < 0 {
		return nil, fmt.Errorf("coordinator returned invalid request id %q", reply.RequestID)
	}
	return requestID, nil
}

// FulfillmentListener consumes fulfillments from JetStream and hands them to the consumer.
// Rejections are acknowledged and dropped; anything else is returned so the message is redelivered.
type FulfillmentListener struct {
	bus      MessageBus
	receiver FulfillmentReceiver
}

// NewFulfillmentListener creates a listener delivering to receiver
func NewFulfillmentListener(bus MessageBus, receiver FulfillmentReceiver) *FulfillmentListener {
	return &FulfillmentListener{bus: bus, receiver: receiver}
}

// Start subscribes to the fulfillment subject
func (l *FulfillmentListener) Start() error {
	if err := l.bus.Subscribe(FulfillmentSubject, l.HandleFulfillment); err != nil {
		return fmt.Errorf("failed to subscribe to fulfillments: %w", err)
	}
	return nil
}

// HandleFulfillment decodes one message and applies the ack policy
func (l *FulfillmentListener) HandleFulfillment(ctx context.Context, data []byte) error {
	var msg FulfillmentMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		// a malformed message will never succeed
		log.WithError(err).Warn("Dropping malformed fulfillment message")
		return nil
	}

	requestID, ok := new(big.Int).SetString(msg.RequestID, 10)
	if !ok {
		log.WithField("requestId", msg.RequestID).Warn("Dropping fulfillment with invalid request id")
		return nil
	}

	words := make([]*big.Int, 0, len(msg.RandomWords))
	for _, w := range msg.RandomWords {
		word, ok := new(big.Int).SetString(w, 10)
		if !ok || word.Sign() < 0 {
			log.WithFields(log.Fields{
				"requestId": msg.RequestID,
				"word":      w,
			}).Warn("Dropping fulfillment with invalid random word")
			return nil
		}
		words = append(words, word)
	}

	err := l.receiver.RawFulfillRandomWords(ctx, common.HexToAddress(msg.Coordinator), requestID, words)
	if err == nil {
		return nil
	}

	if isDroppable(err) {
		log.WithFields(log.Fields{
			"requestId":   msg.RequestID,
			"coordinator": msg.Coordinator,
			"error":       err,
		}).Warn("Rejected fulfillment")
		return nil
	}

	log.WithFields(log.Fields{
		"requestId": msg.RequestID,
		"error":     err,
	}).Error("Fulfillment failed, leaving message for redelivery")
	return err
}

func isDroppable(err error) bool {
	var (
		onlyCoordinator *OnlyCoordinatorCanFulfillError
		invalid         *entities.InvalidRequestError
	)
	return errors.As(err, &onlyCoordinator) || errors.As(err, &invalid)
}
