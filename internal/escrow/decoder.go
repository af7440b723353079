package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"escrowOracle/internal/model"
)

// ErrUnknownEvent is returned for logs whose topic0 is not an escrow event.
var ErrUnknownEvent = errors.New("unknown escrow event")

const (
	eventCreated  = "EscrowCreated"
	eventResolved = "EscrowResolved"
	eventRefunded = "EscrowRefunded"
)

// Decoder maps raw escrow contract logs to lifecycle events.
type Decoder struct {
	escrowABI abi.ABI
	topics    map[common.Hash]string
}

// NewDecoder builds a decoder for the three lifecycle events.
func NewDecoder() (*Decoder, error) {
	parsed, err := ABI()
	if err != nil {
		return nil, fmt.Errorf("parse escrow abi: %w", err)
	}
	return &Decoder{
		escrowABI: parsed,
		topics: map[common.Hash]string{
			parsed.Events[eventCreated].ID:  eventCreated,
			parsed.Events[eventResolved].ID: eventResolved,
			parsed.Events[eventRefunded].ID: eventRefunded,
		},
	}, nil
}

// Topic0 lists the event signatures to filter logs by.
func (d *Decoder) Topic0() []common.Hash {
	return []common.Hash{
		d.escrowABI.Events[eventCreated].ID,
		d.escrowABI.Events[eventResolved].ID,
		d.escrowABI.Events[eventRefunded].ID,
	}
}

// Decode converts a log into a lifecycle event stamped with the block timestamp.
func (d *Decoder) Decode(log types.Log, timestamp uint64) (model.LifecycleEvent, error) {
	if len(log.Topics) == 0 {
		return model.LifecycleEvent{}, ErrUnknownEvent
	}
	name, ok := d.topics[log.Topics[0]]
	if !ok {
		return model.LifecycleEvent{}, fmt.Errorf("%w: %s", ErrUnknownEvent, log.Topics[0].Hex())
	}

	base := model.LifecycleEvent{
		Timestamp:   timestamp,
		BlockNumber: log.BlockNumber,
		TxHash:      strings.ToLower(log.TxHash.Hex()),
		LogIndex:    uint64(log.Index),
	}

	var (
		event model.LifecycleEvent
		err   error
	)
	switch name {
	case eventCreated:
		event, err = d.decodeCreated(log, base)
	case eventResolved:
		event, err = d.decodeResolved(log, base)
	case eventRefunded:
		event, err = d.decodeRefunded(log, base)
	}
	if err != nil {
		return model.LifecycleEvent{}, fmt.Errorf("decode %s: %w", name, err)
	}
	return event, nil
}

func (d *Decoder) decodeCreated(log types.Log, event model.LifecycleEvent) (model.LifecycleEvent, error) {
	abiEvent := d.escrowABI.Events[eventCreated]
	var indexed struct {
		EscrowId    *big.Int
		Depositor   common.Address
		Beneficiary common.Address
	}
	if err := parseIndexed(&indexed, abiEvent, log.Topics); err != nil {
		return event, err
	}

	values, err := unpackNonIndexed(abiEvent, log.Data)
	if err != nil {
		return event, err
	}
	if len(values) != 3 {
		return event, fmt.Errorf("unexpected created values: %d", len(values))
	}
	amount, err := asBigInt(values[0])
	if err != nil {
		return event, err
	}
	marketID, ok := values[1].(string)
	if !ok {
		return event, fmt.Errorf("unsupported market id type %T", values[1])
	}
	yes, ok := values[2].(bool)
	if !ok {
		return event, fmt.Errorf("unsupported outcome type %T", values[2])
	}

	id, err := escrowID(indexed.EscrowId)
	if err != nil {
		return event, err
	}

	event.Variant = model.VariantCreated
	event.EscrowID = id
	event.Depositor = lowerHex(indexed.Depositor)
	event.Beneficiary = lowerHex(indexed.Beneficiary)
	event.Amount = amount.String()
	event.MarketID = marketID
	event.ExpectedOutcomeYes = yes
	return event, nil
}

func (d *Decoder) decodeResolved(log types.Log, event model.LifecycleEvent) (model.LifecycleEvent, error) {
	abiEvent := d.escrowABI.Events[eventResolved]
	var indexed struct {
		EscrowId    *big.Int
		Beneficiary common.Address
	}
	if err := parseIndexed(&indexed, abiEvent, log.Topics); err != nil {
		return event, err
	}

	values, err := unpackNonIndexed(abiEvent, log.Data)
	if err != nil {
		return event, err
	}
	if len(values) != 2 {
		return event, fmt.Errorf("unexpected resolved values: %d", len(values))
	}
	amount, err := asBigInt(values[0])
	if err != nil {
		return event, err
	}
	outcome, ok := values[1].(bool)
	if !ok {
		return event, fmt.Errorf("unsupported outcome type %T", values[1])
	}

	id, err := escrowID(indexed.EscrowId)
	if err != nil {
		return event, err
	}

	event.Variant = model.VariantResolved
	event.EscrowID = id
	event.Beneficiary = lowerHex(indexed.Beneficiary)
	event.Amount = amount.String()
	event.Outcome = outcome
	return event, nil
}

func (d *Decoder) decodeRefunded(log types.Log, event model.LifecycleEvent) (model.LifecycleEvent, error) {
	abiEvent := d.escrowABI.Events[eventRefunded]
	var indexed struct {
		EscrowId  *big.Int
		Depositor common.Address
	}
	if err := parseIndexed(&indexed, abiEvent, log.Topics); err != nil {
		return event, err
	}

	values, err := unpackNonIndexed(abiEvent, log.Data)
	if err != nil {
		return event, err
	}
	if len(values) != 1 {
		return event, fmt.Errorf("unexpected refunded values: %d", len(values))
	}
	amount, err := asBigInt(values[0])
	if err != nil {
		return event, err
	}

	id, err := escrowID(indexed.EscrowId)
	if err != nil {
		return event, err
	}

	event.Variant = model.VariantRefunded
	event.EscrowID = id
	event.Depositor = lowerHex(indexed.Depositor)
	event.Amount = amount.String()
	return event, nil
}

func parseIndexed(out interface{}, event abi.Event, topics []common.Hash) error {
	indexed := indexedArguments(event.Inputs)
	if len(topics) != len(indexed)+1 {
		return fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(topics))
	}
	if err := abi.ParseTopics(out, indexed, topics[1:]); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}
	return nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, data []byte) ([]interface{}, error) {
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func escrowID(value *big.Int) (uint64, error) {
	if value == nil || value.Sign() < 0 || !value.IsUint64() {
		return 0, fmt.Errorf("escrow id out of range: %v", value)
	}
	return value.Uint64(), nil
}

func lowerHex(address common.Address) string {
	return strings.ToLower(address.Hex())
}
