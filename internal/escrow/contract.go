package escrow

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"escrowOracle/internal/model"
)

// Caller performs read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Contract reads escrow state through eth_call.
type Contract struct {
	address   common.Address
	escrowABI abi.ABI
	caller    Caller
}

// escrowTuple mirrors the getEscrow return struct.
type escrowTuple struct {
	Depositor    common.Address
	Beneficiary  common.Address
	Amount       *big.Int
	PolymarketId string
	YesOutcome   bool
	IsActive     bool
	IsClaimed    bool
	CreatedAt    *big.Int
}

// NewContract binds the escrow contract at address.
func NewContract(address common.Address, caller Caller) (*Contract, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	parsed, err := ABI()
	if err != nil {
		return nil, fmt.Errorf("parse escrow abi: %w", err)
	}
	return &Contract{address: address, escrowABI: parsed, caller: caller}, nil
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// EscrowCount returns the number of escrows ever created. Ids run from 0.
func (c *Contract) EscrowCount(ctx context.Context) (uint64, error) {
	values, err := c.call(ctx, "escrowCount")
	if err != nil {
		return 0, err
	}
	count, err := asBigInt(values[0])
	if err != nil {
		return 0, err
	}
	if !count.IsUint64() {
		return 0, fmt.Errorf("escrow count out of range: %s", count)
	}
	return count.Uint64(), nil
}

// GetEscrow reads one escrow record.
func (c *Contract) GetEscrow(ctx context.Context, id uint64) (model.Escrow, error) {
	values, err := c.call(ctx, "getEscrow", new(big.Int).SetUint64(id))
	if err != nil {
		return model.Escrow{}, err
	}
	tuple, ok := abi.ConvertType(values[0], new(escrowTuple)).(*escrowTuple)
	if !ok {
		return model.Escrow{}, fmt.Errorf("unexpected getEscrow result %T", values[0])
	}

	escrow := model.Escrow{
		ID:                 id,
		Depositor:          strings.ToLower(tuple.Depositor.Hex()),
		Beneficiary:        strings.ToLower(tuple.Beneficiary.Hex()),
		Amount:             "0",
		MarketID:           tuple.PolymarketId,
		ExpectedOutcomeYes: tuple.YesOutcome,
		IsActive:           tuple.IsActive,
		IsClaimed:          tuple.IsClaimed,
	}
	if tuple.Amount != nil {
		escrow.Amount = tuple.Amount.String()
	}
	if tuple.CreatedAt != nil && tuple.CreatedAt.IsUint64() {
		escrow.CreatedAt = tuple.CreatedAt.Uint64()
	}
	return escrow, nil
}

// Username returns the registered username of address, or "" when none is set.
func (c *Contract) Username(ctx context.Context, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid address %q", address)
	}
	values, err := c.call(ctx, "usernames", common.HexToAddress(address))
	if err != nil {
		return "", err
	}
	name, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected username type %T", values[0])
	}
	return strings.TrimSpace(name), nil
}

func (c *Contract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.escrowABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &c.address, Data: data}
	resp, err := c.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := c.escrowABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("empty %s result", method)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return new(big.Int), nil
		}
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
