package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mezonai/starchain/block"
	"github.com/mezonai/starchain/chain"
	"github.com/mezonai/starchain/config"
	"github.com/mezonai/starchain/errors"
	"github.com/mezonai/starchain/interfaces"
	"github.com/mezonai/starchain/jsonx"
	"github.com/mezonai/starchain/logx"
	"github.com/mezonai/starchain/monitoring"
	"github.com/mezonai/starchain/security/ratelimit"
	"github.com/mezonai/starchain/security/validation"
	"github.com/mezonai/starchain/star"
	"github.com/mezonai/starchain/stringutil"
)

const (
	selectorHash    = "hash:"
	selectorAddress = "address:"
)

type APIServer struct {
	Chain        interfaces.ChainService
	Sessions     interfaces.SessionService
	Auth         interfaces.Authenticator
	Limiter      *ratelimit.GlobalRateLimiter
	ListenAddr   string
	CORS         config.CORSConfig
	MaxBodyBytes int64

	// addresses with a star write in flight
	writing sync.Map
}

func NewAPIServer(chainSvc interfaces.ChainService, sessions interfaces.SessionService, auth interfaces.Authenticator,
	limiter *ratelimit.GlobalRateLimiter, addr string) *APIServer {
	return &APIServer{
		Chain:        chainSvc,
		Sessions:     sessions,
		Auth:         auth,
		Limiter:      limiter,
		ListenAddr:   addr,
		CORS:         config.DefaultNodeConfig().CORS,
		MaxBodyBytes: validation.DefaultRequestBodyLimit,
	}
}

// Handler builds the routed handler with CORS, rate limiting, body limits and request logging.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /requestValidation", s.handleRequestValidation)
	mux.HandleFunc("POST /message-signature/validate", s.handleValidateSignature)
	mux.HandleFunc("POST /block", s.handleRegisterStar)
	mux.HandleFunc("GET /block/count", s.handleBlockCount)
	mux.HandleFunc("GET /block/{height}", s.handleGetBlock)
	mux.HandleFunc("GET /stars/{selector}", s.handleStars)
	mux.HandleFunc("GET /chain/validate", s.handleValidateChain)
	mux.HandleFunc("GET /health", s.handleHealth)
	monitoring.RegisterMetrics(mux)

	var h http.Handler = mux
	h = withBodyLimit(s.MaxBodyBytes, h)
	if s.Limiter != nil {
		h = s.Limiter.Middleware(h)
	}
	h = s.CORS.Handler(h)
	h = withRecover(h)
	return withRequestLog(h)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *APIServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info("API", "API listen on ", s.ListenAddr)
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
		logx.Info("API", "Shutting down API server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *APIServer) handleRequestValidation(w http.ResponseWriter, r *http.Request) {
	var req RequestValidationReq
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.checkAddress(w, req.Address) {
		return
	}
	if s.Limiter != nil && !s.Limiter.AllowWalletWithContext(r.Context(), req.Address) {
		writeError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimited, errors.ErrMsgRateLimited)
		return
	}

	ts, validated := s.Sessions.CreateOrRefreshPendingSession(req.Address)
	if validated {
		// an already proven session is reported, never replaced
		writeJSON(w, http.StatusOK, SessionStatus{
			Address:          req.Address,
			RequestTimeStamp: ts,
			Message:          s.Auth.GenerateChallenge(req.Address, ts),
			ValidationWindow: s.Sessions.Remaining(ts, s.Sessions.ValidatedWindow()),
			MessageSignature: MessageSignatureValid,
		})
		return
	}
	logx.Info("API", "Validation requested by ", stringutil.ShortenLog(req.Address))

	writeJSON(w, http.StatusOK, SessionStatus{
		Address:          req.Address,
		RequestTimeStamp: ts,
		Message:          s.Auth.GenerateChallenge(req.Address, ts),
		ValidationWindow: s.Sessions.Remaining(ts, s.Sessions.PendingWindow()),
	})
}

func (s *APIServer) handleValidateSignature(w http.ResponseWriter, r *http.Request) {
	var req ValidateSignatureReq
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.checkAddress(w, req.Address) {
		return
	}
	if err := validation.ValidateRequired(validation.SignatureField, req.Signature); err != nil {
		writeNetworkError(w, http.StatusBadRequest, err)
		return
	}

	ts, ok := s.Sessions.GetPendingSession(req.Address)
	if !ok {
		writeError(w, http.StatusNotFound, errors.ErrCodeSessionNotFound, errors.ErrMsgSessionNotFound)
		return
	}

	if !s.Auth.Verify(req.Address, ts, req.Signature) {
		logx.Warn("API", "Invalid signature from ", stringutil.ShortenLog(req.Address))
		writeError(w, http.StatusUnauthorized, errors.ErrCodeInvalidSignature, errors.ErrMsgInvalidSignature)
		return
	}

	validatedAt, ok := s.Sessions.ApproveSession(req.Address)
	if !ok {
		// expired between the lookup and the approval
		writeError(w, http.StatusNotFound, errors.ErrCodeSessionNotFound, errors.ErrMsgSessionNotFound)
		return
	}

	writeJSON(w, http.StatusOK, ValidateSignatureResp{
		RegisterStar: true,
		Status: SessionStatus{
			Address:          req.Address,
			RequestTimeStamp: ts,
			Message:          s.Auth.GenerateChallenge(req.Address, ts),
			ValidationWindow: s.Sessions.Remaining(validatedAt, s.Sessions.ValidatedWindow()),
			MessageSignature: MessageSignatureValid,
		},
	})
}

func (s *APIServer) handleRegisterStar(w http.ResponseWriter, r *http.Request) {
	var req RegisterStarReq
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validation.ValidateRequired(validation.AddressField, req.Address); err != nil {
		monitoring.RecordRejectedStar(monitoring.StarInvalidPayload)
		writeNetworkError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.Star.Validate(); err != nil {
		monitoring.RecordRejectedStar(monitoring.StarInvalidPayload)
		writeNetworkError(w, http.StatusBadRequest, err)
		return
	}

	// one write per address at a time, so a validated session is spent at most once
	if _, busy := s.writing.LoadOrStore(req.Address, struct{}{}); busy {
		writeError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimited, errors.ErrMsgRateLimited)
		return
	}
	defer s.writing.Delete(req.Address)

	if _, ok := s.Sessions.GetValidatedSession(req.Address); !ok {
		monitoring.RecordRejectedStar(monitoring.StarSessionMissing)
		writeError(w, http.StatusForbidden, errors.ErrCodeSessionNotValidated, errors.ErrMsgSessionNotValidated)
		return
	}

	body, err := star.StarRecord{Address: req.Address, Star: req.Star}.Encoded().Body()
	if err != nil {
		writeInternalError(w)
		return
	}

	blk, err := s.Chain.Append(r.Context(), block.New(body))
	if err != nil {
		if stderrors.Is(err, chain.ErrDuplicateStar) {
			writeError(w, http.StatusConflict, errors.ErrCodeDuplicateStar, errors.ErrMsgDuplicateStar)
			return
		}
		logx.Error("API", "Failed to append star block: ", err)
		writeInternalError(w)
		return
	}
	s.Sessions.Evict(req.Address)

	writeJSON(w, http.StatusCreated, chain.NewBlockView(blk))
}

func (s *APIServer) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseUint(r.PathValue("height"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.ErrCodeInvalidHeight, errors.ErrMsgInvalidHeight)
		return
	}

	blk, err := s.Chain.BlockByHeight(r.Context(), height)
	if err != nil {
		logx.Error("API", "Failed to read block ", height, ": ", err)
		writeInternalError(w)
		return
	}
	if blk == nil {
		writeError(w, http.StatusNotFound, errors.ErrCodeBlockNotFound, errors.ErrMsgBlockNotFound)
		return
	}
	writeJSON(w, http.StatusOK, chain.NewBlockView(blk))
}

func (s *APIServer) handleBlockCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.Chain.BlockCount(r.Context())
	if err != nil {
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, BlockCountResp{Count: count})
}

// handleStars serves /stars/hash:{hash} and /stars/address:{address}.
func (s *APIServer) handleStars(w http.ResponseWriter, r *http.Request) {
	selector := r.PathValue("selector")

	switch {
	case strings.HasPrefix(selector, selectorHash):
		blk, err := s.Chain.BlockByHash(r.Context(), strings.TrimPrefix(selector, selectorHash))
		if err != nil {
			logx.Error("API", "Failed to read block by hash: ", err)
			writeInternalError(w)
			return
		}
		if blk == nil {
			writeError(w, http.StatusNotFound, errors.ErrCodeBlockNotFound, errors.ErrMsgBlockNotFound)
			return
		}
		writeJSON(w, http.StatusOK, chain.NewBlockView(blk))

	case strings.HasPrefix(selector, selectorAddress):
		blocks, err := s.Chain.StarsByAddress(r.Context(), strings.TrimPrefix(selector, selectorAddress))
		if err != nil {
			logx.Error("API", "Failed to scan stars by address: ", err)
			writeInternalError(w)
			return
		}
		writeJSON(w, http.StatusOK, chain.NewBlockViews(blocks))

	default:
		writeError(w, http.StatusBadRequest, errors.ErrCodeInvalidRequest, errors.ErrMsgInvalidRequest)
	}
}

func (s *APIServer) handleValidateChain(w http.ResponseWriter, r *http.Request) {
	report, err := s.Chain.ValidateChain(r.Context())
	if err != nil {
		logx.Error("API", "Chain validation failed: ", err)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, ChainValidationResp{
		Valid:      report.Valid(),
		HashErrors: report.HashErrors,
		LinkErrors: report.LinkErrors,
	})
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.Chain.BlockCount(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResp{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResp{Status: "ok", BlockCount: count})
}

func (s *APIServer) checkAddress(w http.ResponseWriter, address string) bool {
	if err := validation.ValidateRequired(validation.AddressField, address); err != nil {
		writeNetworkError(w, http.StatusBadRequest, err)
		return false
	}
	if err := validation.ValidateShortTextLength(validation.AddressField, address); err != nil {
		writeNetworkError(w, http.StatusBadRequest, err)
		return false
	}
	if err := s.Auth.ValidateAddress(address); err != nil {
		writeError(w, http.StatusBadRequest, errors.ErrCodeInvalidAddress, errors.ErrMsgInvalidAddress)
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := jsonx.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, errors.ErrCodeInvalidRequest,
				fmt.Sprintf(errors.ErrMsgRequestBodyTooLarge, maxErr.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, errors.ErrCodeInvalidRequest, errors.ErrMsgInvalidRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsonx.NewEncoder(w).Encode(v); err != nil {
		logx.Error("API", "Failed to encode response: ", err)
	}
}

func writeError(w http.ResponseWriter, status int, code errors.NetworkErrorCode, message string) {
	writeJSON(w, status, errors.NetworkError{Code: code, Message: message})
}

// writeNetworkError writes err as is when it already is a NetworkError.
func writeNetworkError(w http.ResponseWriter, status int, err error) {
	var netErr *errors.NetworkError
	if stderrors.As(err, &netErr) {
		writeJSON(w, status, netErr)
		return
	}
	writeError(w, status, errors.ErrCodeInvalidRequest, errors.ErrMsgInvalidRequest)
}

func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, errors.ErrCodeInternal, errors.ErrMsgInternal)
}
