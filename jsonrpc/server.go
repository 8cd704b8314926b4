package jsonrpc

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/mezonai/starchain/chain"
	"github.com/mezonai/starchain/config"
	"github.com/mezonai/starchain/errors"
	"github.com/mezonai/starchain/interfaces"
	"github.com/mezonai/starchain/jsonx"
	"github.com/mezonai/starchain/logx"
	"github.com/mezonai/starchain/security/validation"
)

// --- Error type used by handlers ---

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func toJRPC2Error(e *rpcError) error {
	if e == nil {
		return nil
	}
	var networkError errors.NetworkError
	err := jsonx.Unmarshal([]byte(e.Message), &networkError)
	if err == nil {
		return jrpc2.Errorf(jrpc2.Code(e.Code), "%s", networkError.Message).WithData(networkError)
	}
	return jrpc2.Errorf(jrpc2.Code(e.Code), "%s", e.Message)
}

func newRPCError(code jrpc2.Code, netCode errors.NetworkErrorCode, message string) *rpcError {
	return &rpcError{Code: int(code), Message: errors.NewError(netCode, message).Error()}
}

// chainRPCError maps a chain error onto the JSON-RPC error space.
func chainRPCError(err error) *rpcError {
	if stderrors.Is(err, chain.ErrClosed) {
		return newRPCError(codeChainClosed, errors.ErrCodeInternal, errors.ErrMsgInternal)
	}
	logx.Error("JSONRPC", "Chain call failed: ", err)
	return newRPCError(jrpc2.InternalError, errors.ErrCodeInternal, errors.ErrMsgInternal)
}

// --- Params/Results ---

type getBlockRequest struct {
	Height *uint64 `json:"height"`
}

type getBlockByHashRequest struct {
	Hash string `json:"hash"`
}

type getStarsByAddressRequest struct {
	Address string `json:"address"`
}

type getBlockCountResponse struct {
	Count uint64 `json:"count"`
}

type validateResponse struct {
	Valid      bool     `json:"valid"`
	HashErrors []uint64 `json:"hashErrors"`
	LinkErrors []uint64 `json:"linkErrors"`
}

type healthResponse struct {
	Status     string `json:"status"`
	BlockCount uint64 `json:"blockCount"`
}

// --- Server ---

// Server exposes the read side of the chain over JSON-RPC 2.0 on HTTP POST.
type Server struct {
	addr       string
	chain      interfaces.ChainReader
	corsConfig config.CORSConfig
}

func NewServer(addr string, chainReader interfaces.ChainReader) *Server {
	return &Server{
		addr:       addr,
		chain:      chainReader,
		corsConfig: config.DefaultNodeConfig().CORS,
	}
}

// SetCORSConfig allows configuring CORS settings
func (s *Server) SetCORSConfig(cfg config.CORSConfig) {
	s.corsConfig = cfg
}

// Handler returns the bridge wrapped in the CORS policy, plus a closer for the bridge.
func (s *Server) Handler() (http.Handler, func() error) {
	bridge := jhttp.NewBridge(s.buildMethodMap(), &jhttp.BridgeOptions{Server: &jrpc2.ServerOptions{}})
	return s.corsConfig.Handler(bridge), bridge.Close
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	h, closeBridge := s.Handler()
	defer closeBridge()

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info("JSONRPC", "JSON-RPC listen on ", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Build jrpc2 method map
func (s *Server) buildMethodMap() handler.Map {
	return handler.Map{
		MethodChainGetBlock: handler.New(func(ctx context.Context, p getBlockRequest) (*chain.BlockView, error) {
			res, err := s.rpcGetBlock(ctx, p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res, nil
		}),
		MethodChainGetBlockByHash: handler.New(func(ctx context.Context, p getBlockByHashRequest) (*chain.BlockView, error) {
			res, err := s.rpcGetBlockByHash(ctx, p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res, nil
		}),
		MethodChainGetBlockCount: handler.New(func(ctx context.Context) (*getBlockCountResponse, error) {
			count, err := s.chain.BlockCount(ctx)
			if err != nil {
				return nil, toJRPC2Error(chainRPCError(err))
			}
			return &getBlockCountResponse{Count: count}, nil
		}),
		MethodChainValidate: handler.New(func(ctx context.Context) (*validateResponse, error) {
			report, err := s.chain.ValidateChain(ctx)
			if err != nil {
				return nil, toJRPC2Error(chainRPCError(err))
			}
			return &validateResponse{Valid: report.Valid(), HashErrors: report.HashErrors, LinkErrors: report.LinkErrors}, nil
		}),
		MethodChainGetStarsByAddress: handler.New(func(ctx context.Context, p getStarsByAddressRequest) ([]*chain.BlockView, error) {
			res, err := s.rpcGetStarsByAddress(ctx, p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res, nil
		}),
		MethodHealthCheck: handler.New(func(ctx context.Context) (*healthResponse, error) {
			count, err := s.chain.BlockCount(ctx)
			if err != nil {
				return &healthResponse{Status: "unavailable"}, nil
			}
			return &healthResponse{Status: "ok", BlockCount: count}, nil
		}),
	}
}

func (s *Server) rpcGetBlock(ctx context.Context, p getBlockRequest) (*chain.BlockView, *rpcError) {
	if p.Height == nil {
		return nil, newRPCError(jrpc2.InvalidParams, errors.ErrCodeInvalidHeight, errors.ErrMsgInvalidHeight)
	}
	blk, err := s.chain.BlockByHeight(ctx, *p.Height)
	if err != nil {
		return nil, chainRPCError(err)
	}
	if blk == nil {
		return nil, newRPCError(codeBlockNotFound, errors.ErrCodeBlockNotFound, errors.ErrMsgBlockNotFound)
	}
	return chain.NewBlockView(blk), nil
}

func (s *Server) rpcGetBlockByHash(ctx context.Context, p getBlockByHashRequest) (*chain.BlockView, *rpcError) {
	if err := validation.ValidateRequired(validation.HashField, p.Hash); err != nil {
		return nil, &rpcError{Code: int(jrpc2.InvalidParams), Message: err.Error()}
	}
	blk, err := s.chain.BlockByHash(ctx, p.Hash)
	if err != nil {
		return nil, chainRPCError(err)
	}
	if blk == nil {
		return nil, newRPCError(codeBlockNotFound, errors.ErrCodeBlockNotFound, errors.ErrMsgBlockNotFound)
	}
	return chain.NewBlockView(blk), nil
}

func (s *Server) rpcGetStarsByAddress(ctx context.Context, p getStarsByAddressRequest) ([]*chain.BlockView, *rpcError) {
	if err := validation.ValidateRequired(validation.AddressField, p.Address); err != nil {
		return nil, &rpcError{Code: int(jrpc2.InvalidParams), Message: err.Error()}
	}
	if err := validation.ValidateShortTextLength(validation.AddressField, p.Address); err != nil {
		return nil, &rpcError{Code: int(jrpc2.InvalidParams), Message: err.Error()}
	}
	blocks, err := s.chain.StarsByAddress(ctx, p.Address)
	if err != nil {
		return nil, chainRPCError(err)
	}
	return chain.NewBlockViews(blocks), nil
}
