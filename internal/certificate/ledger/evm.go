package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethsigner"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/hyperledger/firefly-signer/pkg/rpcbackend"
	"github.com/hyperledger/firefly-signer/pkg/secp256k1"

	"skillchain/contracts/credential"
)

// EVMConfig holds real-ledger settings. The signing key is server-held; key
// custody policy is out of scope.
type EVMConfig struct {
	RPCURL          string
	ChainID         int64
	SigningKeyHex   string
	ContractAddress string
	ConfirmTimeout  time.Duration
	PollInterval    time.Duration
}

// EVM submits issuance transactions to the registry contract over JSON-RPC,
// signing with a server-held key and waiting for confirmation. Signing is
// stateless, so the client is safe for concurrent use.
type EVM struct {
	rpc            rpcbackend.Backend
	key            *secp256k1.KeyPair
	contract       *ethtypes.Address0xHex
	chainID        int64
	confirmTimeout time.Duration
	pollInterval   time.Duration
	logger         *slog.Logger

	issueFn    *abi.Entry
	hasFn      *abi.Entry
	issuedEv   *abi.Entry
	issuedSig  []byte
	serializer *abi.Serializer
}

var _ Client = (*EVM)(nil)

// NewEVM creates a real ledger client from configuration.
func NewEVM(cfg EVMConfig, logger *slog.Logger) (*EVM, error) {
	keyBytes, err := hex.DecodeString(strings.TrimPrefix(cfg.SigningKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	key, err := secp256k1.NewSecp256k1KeyPair(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}
	contract, err := ethtypes.NewAddress(cfg.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("parse contract address: %w", err)
	}

	var contractABI abi.ABI
	if err := json.Unmarshal([]byte(credential.RegistryABIJSON), &contractABI); err != nil {
		return nil, fmt.Errorf("parse registry ABI: %w", err)
	}
	c := &EVM{
		rpc:            rpcbackend.NewRPCClient(resty.New().SetBaseURL(cfg.RPCURL)),
		key:            key,
		contract:       contract,
		chainID:        cfg.ChainID,
		confirmTimeout: cfg.ConfirmTimeout,
		pollInterval:   cfg.PollInterval,
		logger:         logger,
		serializer: abi.NewSerializer().
			SetFormattingMode(abi.FormatAsObjects).
			SetIntSerializer(abi.Base10StringIntSerializer),
	}
	if c.confirmTimeout <= 0 {
		c.confirmTimeout = 60 * time.Second
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 2 * time.Second
	}
	for _, entry := range contractABI {
		switch {
		case entry.Type == abi.Function && entry.Name == credential.MethodIssueCredential:
			c.issueFn = entry
		case entry.Type == abi.Function && entry.Name == credential.MethodHasCredential:
			c.hasFn = entry
		case entry.Type == abi.Event && entry.Name == credential.EventCredentialIssued:
			c.issuedEv = entry
		}
	}
	if c.issueFn == nil || c.hasFn == nil || c.issuedEv == nil {
		return nil, fmt.Errorf("registry ABI missing required entries")
	}
	c.issuedSig = c.issuedEv.SignatureHashBytes()
	return c, nil
}

// Submit encodes issueCredential, signs, broadcasts, and waits for the
// receipt. It makes exactly one broadcast attempt.
func (c *EVM) Submit(ctx context.Context, req SubmitRequest) (Receipt, error) {
	if err := validateSubmit(req); err != nil {
		return Receipt{}, err
	}

	// A duplicate would only revert after gas is spent; check first.
	exists, err := c.HasCredential(ctx, req.HolderAddress, req.CourseID)
	if err != nil {
		return Receipt{}, err
	}
	if exists {
		return Receipt{}, &RejectedError{Reason: "credential already issued for holder and course", Duplicate: true}
	}

	params, err := json.Marshal([]any{req.HolderAddress, req.CourseID, req.MetadataURI})
	if err != nil {
		return Receipt{}, &RejectedError{Reason: fmt.Sprintf("encode issuance params: %v", err)}
	}
	callData, err := c.issueFn.EncodeCallDataJSONCtx(ctx, params)
	if err != nil {
		return Receipt{}, &RejectedError{Reason: fmt.Sprintf("encode issuance call: %v", err)}
	}

	rawTX, err := c.buildSignedTransaction(ctx, callData)
	if err != nil {
		return Receipt{}, err
	}

	var txHash ethtypes.HexBytes0xPrefix
	if rpcErr := c.rpc.CallRPC(ctx, &txHash, "eth_sendRawTransaction", ethtypes.HexBytes0xPrefix(rawTX)); rpcErr != nil {
		return Receipt{}, c.classifyRPCError(rpcErr)
	}
	txRef := txHash.String()

	receipt, err := c.waitForReceipt(ctx, txRef)
	if err != nil {
		return Receipt{}, err
	}
	if receipt.Status == nil || receipt.Status.BigInt().Sign() == 0 {
		// The usual revert here is the duplicate-prevention invariant
		// racing a concurrent issuance; confirm before classifying.
		if dup, dupErr := c.HasCredential(ctx, req.HolderAddress, req.CourseID); dupErr == nil && dup {
			return Receipt{}, &RejectedError{Reason: "credential already issued for holder and course", Duplicate: true}
		}
		return Receipt{}, &RejectedError{Reason: "issuance transaction reverted"}
	}

	credentialID, err := c.credentialIDFromLogs(ctx, receipt.Logs)
	if err != nil {
		// The transaction succeeded: the credential exists on-ledger and
		// gas is spent. Never fabricate an id; surface for reconciliation.
		return Receipt{}, &EventParseError{TxRef: txRef, Err: err}
	}
	return Receipt{TxRef: txRef, CredentialID: credentialID}, nil
}

// HasCredential calls the contract's read-only duplicate check.
func (c *EVM) HasCredential(ctx context.Context, holderAddress, courseID string) (bool, error) {
	params, err := json.Marshal([]any{holderAddress, courseID})
	if err != nil {
		return false, &RejectedError{Reason: fmt.Sprintf("encode hasCredential params: %v", err)}
	}
	callData, err := c.hasFn.EncodeCallDataJSONCtx(ctx, params)
	if err != nil {
		return false, &RejectedError{Reason: fmt.Sprintf("encode hasCredential call: %v", err)}
	}

	tx := map[string]any{
		"to":   c.contract.String(),
		"data": ethtypes.HexBytes0xPrefix(callData).String(),
	}
	var out ethtypes.HexBytes0xPrefix
	if rpcErr := c.rpc.CallRPC(ctx, &out, "eth_call", tx, "latest"); rpcErr != nil {
		return false, c.classifyRPCError(rpcErr)
	}

	cv, err := c.hasFn.Outputs.DecodeABIDataCtx(ctx, out, 0)
	if err != nil || len(cv.Children) != 1 {
		return false, &UnavailableError{Err: fmt.Errorf("decode hasCredential result: %w", err)}
	}
	result, ok := cv.Children[0].Value.(bool)
	if !ok {
		return false, &UnavailableError{Err: fmt.Errorf("unexpected hasCredential result type")}
	}
	return result, nil
}

func (c *EVM) buildSignedTransaction(ctx context.Context, callData []byte) ([]byte, error) {
	from := c.key.Address.String()

	var nonce ethtypes.HexUint64
	if rpcErr := c.rpc.CallRPC(ctx, &nonce, "eth_getTransactionCount", from, "pending"); rpcErr != nil {
		return nil, c.classifyRPCError(rpcErr)
	}
	var gasPrice ethtypes.HexInteger
	if rpcErr := c.rpc.CallRPC(ctx, &gasPrice, "eth_gasPrice"); rpcErr != nil {
		return nil, c.classifyRPCError(rpcErr)
	}

	estimateTX := map[string]any{
		"from": from,
		"to":   c.contract.String(),
		"data": ethtypes.HexBytes0xPrefix(callData).String(),
	}
	var gasEstimate ethtypes.HexInteger
	if rpcErr := c.rpc.CallRPC(ctx, &gasEstimate, "eth_estimateGas", estimateTX); rpcErr != nil {
		return nil, c.classifyRPCError(rpcErr)
	}
	// Submit with headroom over the estimate.
	gasLimit := new(big.Int).Div(new(big.Int).Mul(gasEstimate.BigInt(), big.NewInt(3)), big.NewInt(2))

	tx := &ethsigner.Transaction{
		Nonce:    ethtypes.NewHexInteger64(int64(nonce.Uint64())),
		GasPrice: ethtypes.NewHexInteger(gasPrice.BigInt()),
		GasLimit: ethtypes.NewHexInteger(gasLimit),
		To:       c.contract,
		Data:     callData,
	}

	sigPayload := tx.SignaturePayloadLegacyEIP155(c.chainID)
	sig, err := c.key.Sign(sigPayload.Bytes())
	if err != nil {
		return nil, &UnavailableError{Err: fmt.Errorf("sign transaction: %w", err)}
	}
	rawTX, err := tx.FinalizeLegacyEIP155WithSignature(sigPayload, sig, c.chainID)
	if err != nil {
		return nil, &UnavailableError{Err: fmt.Errorf("finalize transaction: %w", err)}
	}
	return rawTX, nil
}

// txReceipt is the JSON-RPC receipt subset the client needs.
type txReceipt struct {
	Status *ethtypes.HexInteger `json:"status"`
	Logs   []*txLog             `json:"logs"`
}

type txLog struct {
	Address *ethtypes.Address0xHex      `json:"address"`
	Topics  []ethtypes.HexBytes0xPrefix `json:"topics"`
	Data    ethtypes.HexBytes0xPrefix   `json:"data"`
}

func (c *EVM) waitForReceipt(ctx context.Context, txRef string) (*txReceipt, error) {
	deadline := time.Now().Add(c.confirmTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var receipt *txReceipt
		if rpcErr := c.rpc.CallRPC(ctx, &receipt, "eth_getTransactionReceipt", txRef); rpcErr != nil {
			return nil, c.classifyRPCError(rpcErr)
		}
		if receipt != nil {
			return receipt, nil
		}
		if time.Now().After(deadline) {
			// Wraps DeadlineExceeded so callers classify this as a timeout,
			// not a generic outage.
			return nil, &UnavailableError{Err: fmt.Errorf("transaction %s not confirmed within %s: %w", txRef, c.confirmTimeout, context.DeadlineExceeded)}
		}
		select {
		case <-ctx.Done():
			return nil, &UnavailableError{Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func (c *EVM) credentialIDFromLogs(ctx context.Context, logs []*txLog) (uint64, error) {
	for _, l := range logs {
		if l.Address == nil || !strings.EqualFold(l.Address.String(), c.contract.String()) {
			continue
		}
		if len(l.Topics) == 0 || !strings.EqualFold(l.Topics[0].String(), ethtypes.HexBytes0xPrefix(c.issuedSig).String()) {
			continue
		}
		cv, err := c.issuedEv.DecodeEventDataCtx(ctx, l.Topics, l.Data)
		if err != nil {
			return 0, fmt.Errorf("decode issuance event: %w", err)
		}
		serialized, err := c.serializer.SerializeJSON(cv)
		if err != nil {
			return 0, fmt.Errorf("serialize issuance event: %w", err)
		}
		var parsed struct {
			CredentialID string `json:"credentialId"`
		}
		if err := json.Unmarshal(serialized, &parsed); err != nil {
			return 0, fmt.Errorf("unmarshal issuance event: %w", err)
		}
		id, err := strconv.ParseUint(parsed.CredentialID, 10, 64)
		if err != nil || id == 0 {
			return 0, fmt.Errorf("invalid credential id %q in issuance event", parsed.CredentialID)
		}
		return id, nil
	}
	return 0, fmt.Errorf("no issuance event in transaction logs")
}

func (c *EVM) classifyRPCError(rpcErr *rpcbackend.RPCError) error {
	msg := strings.ToLower(rpcErr.Message)
	if strings.Contains(msg, "revert") {
		if strings.Contains(msg, "already issued") || strings.Contains(msg, "duplicate") {
			return &RejectedError{Reason: rpcErr.Message, Duplicate: true}
		}
		return &RejectedError{Reason: rpcErr.Message}
	}
	return &UnavailableError{Err: rpcErr.Error()}
}
