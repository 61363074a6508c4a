package escrow

// ERC20 approve, the only token call the executor submits itself.
const erc20ApproveABI = `[{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

// Escrow contract surface. deposit pulls pre-approved stable-coin from the
// payer; depositNative takes the amount as transferred value.
const escrowABI = `[
  {
    "name": "deposit",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "requestId", "type": "bytes32" },
      { "name": "counterparty", "type": "address" },
      { "name": "amount", "type": "uint256" }
    ],
    "outputs": []
  },
  {
    "name": "depositNative",
    "type": "function",
    "stateMutability": "payable",
    "inputs": [
      { "name": "requestId", "type": "bytes32" },
      { "name": "counterparty", "type": "address" }
    ],
    "outputs": []
  }
]`
