package api

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/starchain/block"
	"github.com/mezonai/starchain/chain"
	"github.com/mezonai/starchain/db"
	"github.com/mezonai/starchain/errors"
	"github.com/mezonai/starchain/jsonx"
	"github.com/mezonai/starchain/mempool"
	"github.com/mezonai/starchain/security/auth"
	"github.com/mezonai/starchain/security/ratelimit"
	"github.com/mezonai/starchain/star"
	"github.com/mezonai/starchain/store"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type wallet struct {
	seed    []byte
	address string
}

func newWallet(t *testing.T, b byte) wallet {
	t.Helper()
	seed := bytes.Repeat([]byte{b}, ed25519.SeedSize)
	_, address, err := auth.SignEd25519(seed, "")
	require.NoError(t, err)
	return wallet{seed: seed, address: address}
}

func (w wallet) sign(t *testing.T, message string) string {
	t.Helper()
	sig, _, err := auth.SignEd25519(w.seed, message)
	require.NoError(t, err)
	return sig
}

type testEnv struct {
	server   *APIServer
	handler  http.Handler
	chain    *chain.Manager
	sessions *mempool.SessionStore
	clock    *manualClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	provider, err := db.NewMemLevelDBProvider()
	require.NoError(t, err)
	bs, err := store.NewBlockStore(provider)
	require.NoError(t, err)

	clock := &manualClock{now: time.Unix(1700000000, 0)}
	m := chain.NewManager(bs, chain.WithClock(clock.Now))
	require.NoError(t, m.Ready(context.Background()))
	t.Cleanup(func() { _ = m.Close() })

	sessions := mempool.NewSessionStore(&mempool.SessionConfig{Now: clock.Now})
	t.Cleanup(sessions.Shutdown)

	s := NewAPIServer(m, sessions, auth.NewAuthenticator(auth.NewEd25519Verifier()), nil, ":0")
	return &testEnv{server: s, handler: s.Handler(), chain: m, sessions: sessions, clock: clock}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := jsonx.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, jsonx.Unmarshal(rec.Body.Bytes(), v))
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code errors.NetworkErrorCode) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	var netErr errors.NetworkError
	decode(t, rec, &netErr)
	assert.Equal(t, code, netErr.Code)
}

type starBlockView struct {
	Hash         string `json:"hash"`
	Height       uint64 `json:"height"`
	Time         int64  `json:"time"`
	PreviousHash string `json:"previousBlockHash"`
	Body         struct {
		Address string `json:"address"`
		Star    struct {
			RA           string `json:"ra"`
			Dec          string `json:"dec"`
			Story        string `json:"story"`
			StoryDecoded string `json:"storyDecoded"`
		} `json:"star"`
	} `json:"body"`
}

// validate walks a wallet through requestValidation and signature validation.
func (e *testEnv) validate(t *testing.T, w wallet) SessionStatus {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/requestValidation", RequestValidationReq{Address: w.address})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var status SessionStatus
	decode(t, rec, &status)

	rec = e.do(t, http.MethodPost, "/message-signature/validate", ValidateSignatureReq{
		Address:   w.address,
		Signature: w.sign(t, status.Message),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return status
}

func testStar(ra string) star.Star {
	return star.Star{RA: ra, Dec: "-26° 29' 24.9", Mag: "1.06", Cen: "Scorpius", Story: "Found star using https://www.google.com/sky/"}
}

func TestAPI_RegisterStarFlow(t *testing.T) {
	env := newTestEnv(t)
	w := newWallet(t, 7)

	rec := env.do(t, http.MethodPost, "/requestValidation", RequestValidationReq{Address: w.address})
	require.Equal(t, http.StatusOK, rec.Code)
	var status SessionStatus
	decode(t, rec, &status)
	assert.Equal(t, w.address, status.Address)
	assert.Equal(t, int64(1700000000), status.RequestTimeStamp)
	assert.Equal(t, auth.GenerateChallenge(w.address, 1700000000), status.Message)
	assert.Equal(t, int64(300), status.ValidationWindow)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	// a repeated request keeps the original timestamp
	env.clock.Advance(20 * time.Second)
	rec = env.do(t, http.MethodPost, "/requestValidation", RequestValidationReq{Address: w.address})
	var again SessionStatus
	decode(t, rec, &again)
	assert.Equal(t, status.RequestTimeStamp, again.RequestTimeStamp)
	assert.Equal(t, int64(280), again.ValidationWindow)

	rec = env.do(t, http.MethodPost, "/message-signature/validate", ValidateSignatureReq{
		Address:   w.address,
		Signature: w.sign(t, status.Message),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var validated ValidateSignatureResp
	decode(t, rec, &validated)
	assert.True(t, validated.RegisterStar)
	assert.Equal(t, "valid", validated.Status.MessageSignature)
	assert.Equal(t, int64(1800), validated.Status.ValidationWindow)

	rec = env.do(t, http.MethodPost, "/block", RegisterStarReq{Address: w.address, Star: testStar("16h 29m 1.0s")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created starBlockView
	decode(t, rec, &created)
	assert.Equal(t, uint64(1), created.Height)
	assert.Equal(t, w.address, created.Body.Address)
	assert.Equal(t, star.EncodeStory(testStar("").Story), created.Body.Star.Story)
	assert.Equal(t, testStar("").Story, created.Body.Star.StoryDecoded)

	genesis, err := env.chain.BlockByHeight(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, genesis.Hash, created.PreviousHash)

	// the session is spent
	_, ok := env.sessions.GetValidatedSession(w.address)
	assert.False(t, ok)
	rec = env.do(t, http.MethodPost, "/block", RegisterStarReq{Address: w.address, Star: testStar("17h")})
	assertErrorCode(t, rec, http.StatusForbidden, errors.ErrCodeSessionNotValidated)

	rec = env.do(t, http.MethodGet, "/block/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched starBlockView
	decode(t, rec, &fetched)
	assert.Equal(t, created, fetched)

	rec = env.do(t, http.MethodGet, "/stars/hash:"+created.Hash, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &fetched)
	assert.Equal(t, created, fetched)

	rec = env.do(t, http.MethodGet, "/stars/address:"+w.address, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var owned []starBlockView
	decode(t, rec, &owned)
	require.Len(t, owned, 1)
	assert.Equal(t, created.Hash, owned[0].Hash)

	rec = env.do(t, http.MethodGet, "/block/count", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var count BlockCountResp
	decode(t, rec, &count)
	assert.Equal(t, uint64(2), count.Count)

	rec = env.do(t, http.MethodGet, "/chain/validate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report ChainValidationResp
	decode(t, rec, &report)
	assert.True(t, report.Valid)
	assert.Empty(t, report.HashErrors)
	assert.Empty(t, report.LinkErrors)
}

func TestAPI_RequestValidationRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/requestValidation", RequestValidationReq{})
	assertErrorCode(t, rec, http.StatusBadRequest, errors.ErrCodeInvalidRequest)

	rec = env.do(t, http.MethodPost, "/requestValidation", RequestValidationReq{Address: "not-a-key"})
	assertErrorCode(t, rec, http.StatusBadRequest, errors.ErrCodeInvalidAddress)

	req := httptest.NewRequest(http.MethodPost, "/requestValidation", strings.NewReader("{"))
	out := httptest.NewRecorder()
	env.handler.ServeHTTP(out, req)
	assertErrorCode(t, out, http.StatusBadRequest, errors.ErrCodeInvalidRequest)
}

func TestAPI_RequestValidationWalletLimit(t *testing.T) {
	env := newTestEnv(t)
	limiter := ratelimit.NewGlobalRateLimiter(&ratelimit.GlobalRateLimiterConfig{
		IPConfig:     &ratelimit.RateLimiterConfig{MaxRequests: 100, WindowSize: time.Hour, CleanupInterval: time.Hour},
		WalletConfig: &ratelimit.RateLimiterConfig{MaxRequests: 1, WindowSize: time.Hour, CleanupInterval: time.Hour},
	})
	t.Cleanup(limiter.Stop)
	env.server.Limiter = limiter
	env.handler = env.server.Handler()

	w := newWallet(t, 3)
	rec := env.do(t, http.MethodPost, "/requestValidation", RequestValidationReq{Address: w.address})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/requestValidation", RequestValidationReq{Address: w.address})
	assertErrorCode(t, rec, http.StatusTooManyRequests, errors.ErrCodeRateLimited)
}

func TestAPI_ValidateSignatureErrors(t *testing.T) {
	env := newTestEnv(t)
	w := newWallet(t, 1)
	other := newWallet(t, 2)

	// no pending session
	rec := env.do(t, http.MethodPost, "/message-signature/validate", ValidateSignatureReq{
		Address:   w.address,
		Signature: w.sign(t, auth.GenerateChallenge(w.address, 1700000000)),
	})
	assertErrorCode(t, rec, http.StatusNotFound, errors.ErrCodeSessionNotFound)

	rec = env.do(t, http.MethodPost, "/requestValidation", RequestValidationReq{Address: w.address})
	require.Equal(t, http.StatusOK, rec.Code)
	var status SessionStatus
	decode(t, rec, &status)

	rec = env.do(t, http.MethodPost, "/message-signature/validate", ValidateSignatureReq{Address: w.address})
	assertErrorCode(t, rec, http.StatusBadRequest, errors.ErrCodeInvalidRequest)

	// signed by the wrong key
	rec = env.do(t, http.MethodPost, "/message-signature/validate", ValidateSignatureReq{
		Address:   w.address,
		Signature: other.sign(t, status.Message),
	})
	assertErrorCode(t, rec, http.StatusUnauthorized, errors.ErrCodeInvalidSignature)

	// pending window elapsed
	env.clock.Advance(301 * time.Second)
	rec = env.do(t, http.MethodPost, "/message-signature/validate", ValidateSignatureReq{
		Address:   w.address,
		Signature: w.sign(t, status.Message),
	})
	assertErrorCode(t, rec, http.StatusNotFound, errors.ErrCodeSessionNotFound)
}

func TestAPI_RegisterStarErrors(t *testing.T) {
	env := newTestEnv(t)
	w := newWallet(t, 4)

	rec := env.do(t, http.MethodPost, "/block", RegisterStarReq{Address: w.address, Star: testStar("1h")})
	assertErrorCode(t, rec, http.StatusForbidden, errors.ErrCodeSessionNotValidated)

	rec = env.do(t, http.MethodPost, "/block", RegisterStarReq{Address: w.address, Star: star.Star{Dec: "1"}})
	assertErrorCode(t, rec, http.StatusBadRequest, errors.ErrCodeInvalidRequest)

	long := testStar("1h")
	long.Story = strings.Repeat("a", 501)
	rec = env.do(t, http.MethodPost, "/block", RegisterStarReq{Address: w.address, Star: long})
	assertErrorCode(t, rec, http.StatusBadRequest, errors.ErrCodeInvalidStar)

	// validated window elapsed
	env.validate(t, w)
	env.clock.Advance(1801 * time.Second)
	rec = env.do(t, http.MethodPost, "/block", RegisterStarReq{Address: w.address, Star: testStar("1h")})
	assertErrorCode(t, rec, http.StatusForbidden, errors.ErrCodeSessionNotValidated)

	count, err := env.chain.BlockCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestAPI_DuplicateStarConflict(t *testing.T) {
	env := newTestEnv(t)
	first := newWallet(t, 5)
	second := newWallet(t, 6)

	env.validate(t, first)
	rec := env.do(t, http.MethodPost, "/block", RegisterStarReq{Address: first.address, Star: testStar("2h")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// same coordinates with a different story is the same star
	env.validate(t, second)
	dup := testStar("2h")
	dup.Story = "mine now"
	rec = env.do(t, http.MethodPost, "/block", RegisterStarReq{Address: second.address, Star: dup})
	assertErrorCode(t, rec, http.StatusConflict, errors.ErrCodeDuplicateStar)

	// the session survives a rejected write
	_, ok := env.sessions.GetValidatedSession(second.address)
	assert.True(t, ok)

	count, err := env.chain.BlockCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestAPI_RequestValidationKeepsValidatedSession(t *testing.T) {
	env := newTestEnv(t)
	owner := newWallet(t, 12)
	env.validate(t, owner)

	// anyone may ask for a challenge on the owner's address
	env.clock.Advance(100 * time.Second)
	rec := env.do(t, http.MethodPost, "/requestValidation", RequestValidationReq{Address: owner.address})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var status SessionStatus
	decode(t, rec, &status)
	assert.Equal(t, MessageSignatureValid, status.MessageSignature)
	assert.Equal(t, int64(1700000000), status.RequestTimeStamp)
	assert.Equal(t, int64(1700), status.ValidationWindow)

	_, ok := env.sessions.GetPendingSession(owner.address)
	assert.False(t, ok)

	rec = env.do(t, http.MethodPost, "/block", RegisterStarReq{Address: owner.address, Star: testStar("3h")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestAPI_OneStarPerValidatedSession(t *testing.T) {
	env := newTestEnv(t)
	w := newWallet(t, 8)
	env.validate(t, w)

	const writers = 8
	codes := make([]int, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ra := string(rune('a' + i))
			codes[i] = env.do(t, http.MethodPost, "/block", RegisterStarReq{Address: w.address, Star: testStar(ra)}).Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		if code == http.StatusCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)

	count, err := env.chain.BlockCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestAPI_BlockLookups(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.chain.Append(context.Background(), block.New("plain body"))
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/block/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view chain.BlockView
	decode(t, rec, &view)
	assert.Equal(t, block.GenesisBody, view.Body)
	assert.Equal(t, "", view.PreviousHash)

	rec = env.do(t, http.MethodGet, "/block/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	assert.Equal(t, "plain body", view.Body)

	rec = env.do(t, http.MethodGet, "/block/2", nil)
	assertErrorCode(t, rec, http.StatusNotFound, errors.ErrCodeBlockNotFound)

	rec = env.do(t, http.MethodGet, "/block/-1", nil)
	assertErrorCode(t, rec, http.StatusBadRequest, errors.ErrCodeInvalidHeight)

	rec = env.do(t, http.MethodGet, "/stars/hash:deadbeef", nil)
	assertErrorCode(t, rec, http.StatusNotFound, errors.ErrCodeBlockNotFound)

	rec = env.do(t, http.MethodGet, "/stars/name:sirius", nil)
	assertErrorCode(t, rec, http.StatusBadRequest, errors.ErrCodeInvalidRequest)

	rec = env.do(t, http.MethodGet, "/stars/address:nobody", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResp
	decode(t, rec, &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, uint64(1), health.BlockCount)

	rec = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "starchain_block_height")

	require.NoError(t, env.chain.Close())
	rec = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPI_BodyLimit(t *testing.T) {
	env := newTestEnv(t)
	env.server.MaxBodyBytes = 64
	env.handler = env.server.Handler()

	rec := env.do(t, http.MethodPost, "/requestValidation", RequestValidationReq{Address: strings.Repeat("x", 200)})
	assertErrorCode(t, rec, http.StatusRequestEntityTooLarge, errors.ErrCodeInvalidRequest)
}

func TestAPI_RecoversFromPanics(t *testing.T) {
	h := withRecover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assertErrorCode(t, rec, http.StatusInternalServerError, errors.ErrCodeInternal)
}

func TestAPI_CORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/block", nil)
	req.Header.Set("Origin", "https://stars.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
