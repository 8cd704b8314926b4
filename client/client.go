package client

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mezonai/starchain/api"
	"github.com/mezonai/starchain/chain"
	"github.com/mezonai/starchain/errors"
	"github.com/mezonai/starchain/jsonx"
	"github.com/mezonai/starchain/star"
)

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// APIError is a non-2xx answer from the registry.
type APIError struct {
	Status int
	errors.NetworkError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("registry returned %d: %s (%s)", e.Status, e.Message, e.Code)
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code errors.NetworkErrorCode) bool {
	var apiErr *APIError
	return stderrors.As(err, &apiErr) && apiErr.Code == code
}

// StarClient talks to the REST API of a starchain node.
type StarClient struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) (*StarClient, error) {
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", cfg.Endpoint, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	return &StarClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *StarClient) RequestValidation(ctx context.Context, address string) (*api.SessionStatus, error) {
	var res api.SessionStatus
	if err := c.do(ctx, http.MethodPost, "/requestValidation", api.RequestValidationReq{Address: address}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *StarClient) ValidateSignature(ctx context.Context, address, signature string) (*api.ValidateSignatureResp, error) {
	var res api.ValidateSignatureResp
	req := api.ValidateSignatureReq{Address: address, Signature: signature}
	if err := c.do(ctx, http.MethodPost, "/message-signature/validate", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *StarClient) RegisterStar(ctx context.Context, address string, s star.Star) (*chain.BlockView, error) {
	var res chain.BlockView
	if err := c.do(ctx, http.MethodPost, "/block", api.RegisterStarReq{Address: address, Star: s}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Register runs the whole handshake: request a challenge, sign it, then post the star.
func (c *StarClient) Register(ctx context.Context, signer Signer, s star.Star) (*chain.BlockView, error) {
	status, err := c.RequestValidation(ctx, signer.Address())
	if err != nil {
		return nil, fmt.Errorf("request validation: %w", err)
	}
	if status.MessageSignature == api.MessageSignatureValid {
		return c.RegisterStar(ctx, signer.Address(), s)
	}
	sig, err := signer.Sign(status.Message)
	if err != nil {
		return nil, fmt.Errorf("sign challenge: %w", err)
	}
	if _, err := c.ValidateSignature(ctx, signer.Address(), sig); err != nil {
		return nil, fmt.Errorf("validate signature: %w", err)
	}
	return c.RegisterStar(ctx, signer.Address(), s)
}

func (c *StarClient) GetBlock(ctx context.Context, height uint64) (*chain.BlockView, error) {
	var res chain.BlockView
	if err := c.do(ctx, http.MethodGet, "/block/"+strconv.FormatUint(height, 10), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *StarClient) GetBlockByHash(ctx context.Context, hash string) (*chain.BlockView, error) {
	var res chain.BlockView
	if err := c.do(ctx, http.MethodGet, "/stars/hash:"+url.PathEscape(hash), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *StarClient) GetStarsByAddress(ctx context.Context, address string) ([]*chain.BlockView, error) {
	var res []*chain.BlockView
	if err := c.do(ctx, http.MethodGet, "/stars/address:"+url.PathEscape(address), nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *StarClient) BlockCount(ctx context.Context) (uint64, error) {
	var res api.BlockCountResp
	if err := c.do(ctx, http.MethodGet, "/block/count", nil, &res); err != nil {
		return 0, err
	}
	return res.Count, nil
}

func (c *StarClient) ValidateChain(ctx context.Context) (*api.ChainValidationResp, error) {
	var res api.ChainValidationResp
	if err := c.do(ctx, http.MethodGet, "/chain/validate", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *StarClient) CheckHealth(ctx context.Context) (*api.HealthResp, error) {
	var res api.HealthResp
	if err := c.do(ctx, http.MethodGet, "/health", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *StarClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := jsonx.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.Endpoint+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := jsonx.Unmarshal(raw, &apiErr.NetworkError); err != nil {
			apiErr.Code = errors.ErrCodeInternal
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	return jsonx.Unmarshal(raw, out)
}
