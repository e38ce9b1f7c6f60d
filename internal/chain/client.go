package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"estatechain/server/internal/models"
)

const defaultPollInterval = time.Second

// rpcCaller is the raw JSON-RPC surface used for node-managed accounts.
type rpcCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// backend is the subset of ethclient.Client used for reads and receipts.
type backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Addresses locates the deployed contracts.
type Addresses struct {
	Verification common.Address
	Registry     common.Address
	Marketplace  common.Address
}

// ParseAddresses converts hex strings into contract addresses.
func ParseAddresses(verification, registry, marketplace string) (Addresses, error) {
	var addrs Addresses
	for _, a := range []struct {
		name  string
		value string
		dst   *common.Address
	}{
		{"verification", verification, &addrs.Verification},
		{"registry", registry, &addrs.Registry},
		{"marketplace", marketplace, &addrs.Marketplace},
	} {
		if !common.IsHexAddress(a.value) {
			return Addresses{}, fmt.Errorf("invalid %s contract address %q", a.name, a.value)
		}
		*a.dst = common.HexToAddress(a.value)
	}
	return addrs, nil
}

// Client talks to the node hosting the verification, registry and marketplace
// contracts. Transactions are sent from accounts unlocked on the node.
type Client struct {
	rpc          rpcCaller
	backend      backend
	contracts    *Contracts
	addresses    Addresses
	pollInterval time.Duration
	logger       *logrus.Logger
	closer       func()
}

// Dial connects to the node at url.
func Dial(ctx context.Context, url string, contracts *Contracts, addresses Addresses, pollInterval time.Duration, logger *logrus.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial node %s: %w", url, err)
	}

	client := NewClient(rpcClient, ethclient.NewClient(rpcClient), contracts, addresses, pollInterval, logger)
	client.closer = rpcClient.Close
	return client, nil
}

// NewClient builds a client over existing connections.
func NewClient(caller rpcCaller, b backend, contracts *Contracts, addresses Addresses, pollInterval time.Duration, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if contracts == nil {
		contracts = DefaultContracts()
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	return &Client{
		rpc:          caller,
		backend:      b,
		contracts:    contracts,
		addresses:    addresses,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Close releases the node connection.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Accounts lists the accounts managed by the node.
func (c *Client) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := c.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", unavailable(ctx, err))
	}
	return accounts, nil
}

// AddProperty submits the deed to the verification contract.
func (c *Client) AddProperty(ctx context.Context, from common.Address, deed string) (common.Hash, error) {
	data, err := c.contracts.Verification.Pack(methodAddProperty, deed)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack %s: %w", methodAddProperty, err)
	}
	return c.transact(ctx, from, c.addresses.Verification, data, nil, 0)
}

// VerifyProperty submits the verification transaction with the given gas limit.
func (c *Client) VerifyProperty(ctx context.Context, from common.Address, propertyID uint64, gas uint64) (common.Hash, error) {
	data, err := c.contracts.Verification.Pack(methodVerifyProperty, new(big.Int).SetUint64(propertyID))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack %s: %w", methodVerifyProperty, err)
	}
	return c.transact(ctx, from, c.addresses.Verification, data, nil, gas)
}

// CreateDetailedToken submits the registry mint call.
func (c *Client) CreateDetailedToken(ctx context.Context, from common.Address, req models.MintRequest, gas uint64) (common.Hash, error) {
	data, err := c.contracts.Registry.Pack(methodMint,
		new(big.Int).SetUint64(req.PropertyID),
		req.Description,
		req.Location,
		req.Price,
		req.TokenURI,
		uint8(req.PropertyType),
		uint8(req.BuildingType),
		new(big.Int).SetUint64(req.Storeys),
		new(big.Int).SetUint64(req.LandSize),
		new(big.Int).SetUint64(req.PropertyTaxes),
		uint8(req.ParkingType),
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack %s: %w", methodMint, err)
	}
	return c.transact(ctx, from, c.addresses.Registry, data, nil, gas)
}

// BuyProperty submits the marketplace purchase paying value.
func (c *Client) BuyProperty(ctx context.Context, from common.Address, propertyID uint64, value *big.Int) (common.Hash, error) {
	data, err := c.contracts.Marketplace.Pack(methodBuyProperty, new(big.Int).SetUint64(propertyID))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack %s: %w", methodBuyProperty, err)
	}
	return c.transact(ctx, from, c.addresses.Marketplace, data, value, 0)
}

type realEstateView struct {
	PropertyId    *big.Int
	Description   string
	Location      string
	Price         *big.Int
	TokenURI      string
	PropertyType  uint8
	BuildingType  uint8
	Storeys       *big.Int
	LandSize      *big.Int
	PropertyTaxes *big.Int
	ParkingType   uint8
	Verified      bool
	Owner         common.Address
}

// ViewProperty reads a property from the registry. Unknown identifiers yield
// models.ErrNotFound.
func (c *Client) ViewProperty(ctx context.Context, propertyID uint64) (*models.Property, error) {
	data, err := c.contracts.Registry.Pack(methodViewRealEstate, new(big.Int).SetUint64(propertyID))
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", methodViewRealEstate, err)
	}

	out, err := c.call(ctx, c.addresses.Registry, data)
	if err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return nil, fmt.Errorf("%w: id %d: %s", models.ErrNotFound, propertyID, revertReason(err))
		}
		return nil, err
	}

	var view realEstateView
	if err := c.contracts.Registry.UnpackIntoInterface(&view, methodViewRealEstate, out); err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", methodViewRealEstate, err)
	}
	if view.Owner == (common.Address{}) && (view.PropertyId == nil || view.PropertyId.Sign() == 0) {
		return nil, fmt.Errorf("%w: id %d", models.ErrNotFound, propertyID)
	}

	property := &models.Property{
		ID:           propertyID,
		Description:  view.Description,
		Location:     view.Location,
		Price:        view.Price,
		TokenURI:     view.TokenURI,
		PropertyType: models.PropertyType(view.PropertyType),
		BuildingType: models.BuildingType(view.BuildingType),
		ParkingType:  models.ParkingType(view.ParkingType),
		Verified:     view.Verified,
		Owner:        view.Owner,
	}
	if property.Storeys, err = toUint64("storeys", view.Storeys); err != nil {
		return nil, err
	}
	if property.LandSize, err = toUint64("landSize", view.LandSize); err != nil {
		return nil, err
	}
	if property.PropertyTaxes, err = toUint64("propertyTaxes", view.PropertyTaxes); err != nil {
		return nil, err
	}
	return property, nil
}

// TotalSupply reads the number of tokens issued by the registry.
func (c *Client) TotalSupply(ctx context.Context) (uint64, error) {
	data, err := c.contracts.Registry.Pack(methodTotalSupply)
	if err != nil {
		return 0, fmt.Errorf("failed to pack %s: %w", methodTotalSupply, err)
	}

	out, err := c.call(ctx, c.addresses.Registry, data)
	if err != nil {
		return 0, err
	}

	values, err := c.contracts.Registry.Unpack(methodTotalSupply, out)
	if err != nil {
		return 0, fmt.Errorf("failed to unpack %s: %w", methodTotalSupply, err)
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("%s returned %d values", methodTotalSupply, len(values))
	}
	supply, ok := values[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("%s returned %T", methodTotalSupply, values[0])
	}
	return toUint64(methodTotalSupply, supply)
}

// AddedPropertyID extracts the identifier from the PropertyAdded event of a
// confirmed addProperty receipt.
func (c *Client) AddedPropertyID(receipt *types.Receipt) (uint64, error) {
	event := c.contracts.Verification.Events[eventPropertyAdded]
	for _, log := range receipt.Logs {
		if log.Address != c.addresses.Verification || len(log.Topics) == 0 || log.Topics[0] != event.ID {
			continue
		}
		values, err := c.contracts.Verification.Unpack(eventPropertyAdded, log.Data)
		if err != nil {
			return 0, fmt.Errorf("failed to unpack %s: %w", eventPropertyAdded, err)
		}
		if len(values) == 0 {
			break
		}
		id, ok := values[0].(*big.Int)
		if !ok {
			return 0, fmt.Errorf("%s carried %T instead of an id", eventPropertyAdded, values[0])
		}
		return toUint64("propertyId", id)
	}
	return 0, fmt.Errorf("no %s event in transaction %s", eventPropertyAdded, receipt.TxHash.Hex())
}

// MintedTokenID looks for the ERC-721 mint Transfer in a registry receipt.
func (c *Client) MintedTokenID(receipt *types.Receipt) (uint64, bool) {
	event, ok := c.contracts.Registry.Events[eventTransfer]
	if !ok {
		return 0, false
	}
	for _, log := range receipt.Logs {
		if log.Address != c.addresses.Registry || len(log.Topics) != 4 || log.Topics[0] != event.ID {
			continue
		}
		if common.BytesToAddress(log.Topics[1].Bytes()) != (common.Address{}) {
			continue
		}
		id := log.Topics[3].Big()
		if !id.IsUint64() {
			return 0, false
		}
		return id.Uint64(), true
	}
	return 0, false
}

// sendTxArgs mirrors the eth_sendTransaction parameter object.
type sendTxArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data"`
}

func (c *Client) transact(ctx context.Context, from, to common.Address, data []byte, value *big.Int, gas uint64) (common.Hash, error) {
	args := sendTxArgs{From: from, To: &to, Data: data}
	if gas > 0 {
		g := hexutil.Uint64(gas)
		args.Gas = &g
	}
	if value != nil {
		args.Value = (*hexutil.Big)(value)
	}

	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"from": from.Hex(),
			"to":   to.Hex(),
		}).Warn("Transaction rejected by node")

		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return common.Hash{}, fmt.Errorf("%w: %s", models.ErrTransactionReverted, revertReason(err))
		}
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", unavailable(ctx, err))
	}

	c.logger.WithFields(logrus.Fields{
		"from":    from.Hex(),
		"to":      to.Hex(),
		"tx_hash": hash.Hex(),
	}).Info("Transaction submitted")
	return hash, nil
}

func (c *Client) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call to %s failed: %w", to.Hex(), unavailable(ctx, err))
	}
	return out, nil
}

// unavailable marks errors that never reached contract execution: the node
// could not be reached or did not answer. JSON-RPC errors and the caller's own
// cancellation pass through unchanged.
func unavailable(ctx context.Context, err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) || ctx.Err() != nil {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrChainUnavailable, err)
}

// revertReason decodes the Error(string) payload a node attaches to a revert,
// falling back to the error text.
func revertReason(err error) string {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if raw, decodeErr := hexutil.Decode(hexData); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return reason
				}
			}
		}
	}
	return err.Error()
}

func toUint64(field string, v *big.Int) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%s value %s does not fit in uint64", field, v.String())
	}
	return v.Uint64(), nil
}
