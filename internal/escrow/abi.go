package escrow

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const escrowABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "escrowId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "depositor", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "beneficiary", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "string", "name": "polymarketId", "type": "string"},
      {"indexed": false, "internalType": "bool", "name": "yesOutcome", "type": "bool"}
    ],
    "name": "EscrowCreated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "escrowId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "beneficiary", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "bool", "name": "outcome", "type": "bool"}
    ],
    "name": "EscrowResolved",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "escrowId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "depositor", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "EscrowRefunded",
    "type": "event"
  },
  {
    "inputs": [],
    "name": "escrowCount",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "escrowId", "type": "uint256"}],
    "name": "getEscrow",
    "outputs": [
      {
        "components": [
          {"internalType": "address", "name": "depositor", "type": "address"},
          {"internalType": "address", "name": "beneficiary", "type": "address"},
          {"internalType": "uint256", "name": "amount", "type": "uint256"},
          {"internalType": "string", "name": "polymarketId", "type": "string"},
          {"internalType": "bool", "name": "yesOutcome", "type": "bool"},
          {"internalType": "bool", "name": "isActive", "type": "bool"},
          {"internalType": "bool", "name": "isClaimed", "type": "bool"},
          {"internalType": "uint256", "name": "createdAt", "type": "uint256"}
        ],
        "internalType": "struct ConditionalEscrow.Escrow",
        "name": "",
        "type": "tuple"
      }
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "address", "name": "", "type": "address"}],
    "name": "usernames",
    "outputs": [{"internalType": "string", "name": "", "type": "string"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "escrowId", "type": "uint256"},
      {"internalType": "bool", "name": "outcome", "type": "bool"}
    ],
    "name": "resolveEscrow",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

var (
	escrowABIOnce sync.Once
	escrowABI     abi.ABI
	escrowABIErr  error
)

// ABI returns the parsed escrow contract ABI.
func ABI() (abi.ABI, error) {
	escrowABIOnce.Do(func() {
		escrowABI, escrowABIErr = abi.JSON(strings.NewReader(escrowABIJSON))
	})
	return escrowABI, escrowABIErr
}
