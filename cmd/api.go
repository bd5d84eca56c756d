package cmd

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"github.com/strangelove-ventures/permit2-distributor/amount"
	"github.com/strangelove-ventures/permit2-distributor/ledger"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

const defaultDisplayPrecision = 4

type apiHandler struct {
	engine *Engine
}

// NewRouter builds the read-only HTTP API over engine.
func NewRouter(engine *Engine, trustedProxies []string) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		return nil, err
	}

	h := &apiHandler{engine: engine}
	router.GET("/tx/:chainId/:txHash", h.getTxStatus)
	router.GET("/tokens/:chainId", h.getTokens)
	router.GET("/balance/:chainId/:token/:owner", h.getBalance)
	router.GET("/allowance/:chainId/:token/:owner/:spender", h.getAllowance)
	return router, nil
}

func (h *apiHandler) getTxStatus(c *gin.Context) {
	chainID, ok := chainIDParam(c)
	if !ok {
		return
	}
	txHash, ok := txHashParam(c)
	if !ok {
		return
	}

	status, err := h.engine.Monitor.Status(c.Request.Context(), txHash, chainID)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := gin.H{
		"chainId": chainID,
		"txHash":  txHash,
		"status":  status,
	}
	if info, err := h.engine.Registry.Resolve(chainID); err == nil {
		if url := info.TxURL(txHash); url != "" {
			resp["explorerUrl"] = url
		}
	}
	if sqlLedger, ok := h.engine.Ledger.(*ledger.SQLLedger); ok {
		records, err := sqlLedger.FindByTxHash(c.Request.Context(), txHash)
		if err == nil && len(records) > 0 {
			resp["records"] = records
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *apiHandler) getTokens(c *gin.Context) {
	chainID, ok := chainIDParam(c)
	if !ok {
		return
	}
	if _, err := h.engine.Registry.Resolve(chainID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.engine.Catalog.Active(chainID))
}

func (h *apiHandler) getBalance(c *gin.Context) {
	chainID, ok := chainIDParam(c)
	if !ok {
		return
	}
	owner, ok := addressParam(c, "owner")
	if !ok {
		return
	}
	token, err := h.engine.Catalog.Get(c.Param("token"), chainID)
	if err != nil {
		writeError(c, err)
		return
	}

	precision := defaultDisplayPrecision
	if p := c.Query("precision"); p != "" {
		precision, err = strconv.Atoi(p)
		if err != nil || precision < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "unable to parse precision"})
			return
		}
	}

	balance, err := h.engine.Catalog.BalanceOf(c.Request.Context(), token.Address, chainID, owner)
	if err != nil {
		writeError(c, err)
		return
	}
	formatted, err := amount.ToDecimalString(balance, token.Decimals, precision)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token.Address,
		"symbol":    token.Symbol,
		"owner":     owner,
		"balance":   balance,
		"formatted": formatted,
	})
}

func (h *apiHandler) getAllowance(c *gin.Context) {
	chainID, ok := chainIDParam(c)
	if !ok {
		return
	}
	token, ok := addressParam(c, "token")
	if !ok {
		return
	}
	owner, ok := addressParam(c, "owner")
	if !ok {
		return
	}
	spender, ok := addressParam(c, "spender")
	if !ok {
		return
	}

	state, err := h.engine.Tracker.CurrentState(c.Request.Context(), token, owner, spender, chainID)
	if err != nil {
		writeError(c, err)
		return
	}

	if supported, err := h.engine.Catalog.Get(token, chainID); err == nil {
		if whole, err := amount.ToDecimalString(state.Amount.String(), supported.Decimals, int(supported.Decimals)); err == nil {
			if f, err := strconv.ParseFloat(whole, 64); err == nil {
				h.engine.Metrics.SetAllowance(chainLabel(h.engine, chainID), supported.Symbol, owner, f)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"amount":     state.Amount.String(),
		"expiration": state.Expiration,
		"nonce":      state.Nonce,
	})
}

func chainLabel(e *Engine, chainID types.ChainID) string {
	info, err := e.Registry.Resolve(chainID)
	if err != nil {
		return chainID.String()
	}
	return info.MetricsLabel()
}

func chainIDParam(c *gin.Context) (types.ChainID, bool) {
	chainID, err := types.ParseChainID(c.Param("chainId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "unable to parse chain id"})
		return 0, false
	}
	return chainID, true
}

func addressParam(c *gin.Context, name string) (string, bool) {
	addr := types.NormalizeAddress(c.Param(name))
	if addr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid " + name + " address"})
		return "", false
	}
	return addr, true
}

// txHashParam accepts a 0x-prefixed 32-byte hash and returns it lowercased.
func txHashParam(c *gin.Context) (string, bool) {
	b, err := hexutil.Decode(c.Param("txHash"))
	if err != nil || len(b) != common.HashLength {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid transaction hash"})
		return "", false
	}
	return common.BytesToHash(b).Hex(), true
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrUnsupportedChain), errors.Is(err, types.ErrUnknownToken):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrProviderUnavailable),
		errors.Is(err, types.ErrAllowanceFetch),
		errors.Is(err, types.ErrTokenMetadataUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"message": err.Error()})
}
