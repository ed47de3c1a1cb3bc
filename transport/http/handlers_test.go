package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"

	"github.com/sproutgame/sprout-server/adapters/events"
	"github.com/sproutgame/sprout-server/adapters/store"
	"github.com/sproutgame/sprout-server/adapters/tokenizer"
	"github.com/sproutgame/sprout-server/adapters/verifier"
	"github.com/sproutgame/sprout-server/core"
	"github.com/sproutgame/sprout-server/protocol"
	"github.com/sproutgame/sprout-server/service"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var (
	testDailyBonusWei = big.NewInt(1e18)
	testMultiplierWei = big.NewInt(1e15)
)

// contractChain serves the ChainReader port from the in-process verifier
// contract so claim flows can be settled end to end.
type contractChain struct {
	contract *protocol.VerifierContract
}

func (c *contractChain) ClaimNonce(_ context.Context, claimant common.Address) (*big.Int, error) {
	return c.contract.Nonce(claimant), nil
}

func (c *contractChain) IsValidSignature(context.Context, common.Address, common.Hash, []byte) (bool, error) {
	return false, nil
}

type serverFixture struct {
	router   *gin.Engine
	contract *protocol.VerifierContract
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tok, err := tokenizer.NewJWTTokenizer([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("new tokenizer: %v", err)
	}

	pub := events.NewWatermillPublisher(gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}))

	auth := service.NewAuthService(
		store.NewMemoryNonceStore(5*time.Minute),
		store.NewMemoryUserStore(),
		store.NewMemorySessionStore(),
		tok,
		verifier.New(log, verifier.NewEOAStrategy()),
		pub,
		log,
		7*24*time.Hour,
	)

	signerKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate signer key: %v", err)
	}
	chainID := big.NewInt(84532)
	contractAddr := common.HexToAddress("0x00000000000000000000000000000000000c0ffe")
	treasury := new(big.Int).Mul(big.NewInt(100), testDailyBonusWei)
	contract := protocol.NewVerifierContract(chainID, contractAddr, crypto.PubkeyToAddress(signerKey.PublicKey), treasury)

	claims, err := service.NewClaimService(
		store.NewMemoryClaimStore(),
		&contractChain{contract: contract},
		pub,
		log,
		service.ClaimConfig{
			SignerKey:           signerKey,
			ChainID:             chainID,
			ContractAddress:     contractAddr,
			DeadlineTTL:         5 * time.Minute,
			DailyBonusWei:       testDailyBonusWei,
			RewardMultiplierWei: testMultiplierWei,
		},
	)
	if err != nil {
		t.Fatalf("new claim service: %v", err)
	}

	return &serverFixture{
		router:   SetupRouter(auth, claims, log),
		contract: contract,
	}
}

func (f *serverFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	decode(t, w, &body)
	if body.Code == "" {
		t.Fatalf("error response %q has no code", w.Body.String())
	}
	return body.Code
}

func newWallet(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate wallet key: %v", err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func personalSign(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		t.Fatalf("sign message: %v", err)
	}
	sig[64] += 27
	return hexutil.Encode(sig)
}

// authenticate drives the whole nonce-sign-verify flow over HTTP and
// returns the issued bearer token.
func (f *serverFixture) authenticate(t *testing.T, key *ecdsa.PrivateKey, address string) string {
	t.Helper()

	w := f.do(t, http.MethodGet, "/auth/siwe/nonce", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("nonce request status = %d: %s", w.Code, w.Body.String())
	}
	var nonceResp struct {
		Nonce     string `json:"nonce"`
		ExpiresIn int    `json:"expiresIn"`
	}
	decode(t, w, &nonceResp)
	if len(nonceResp.Nonce) != 2*core.NonceByteLength {
		t.Fatalf("nonce %q has %d chars, want %d", nonceResp.Nonce, len(nonceResp.Nonce), 2*core.NonceByteLength)
	}
	if nonceResp.ExpiresIn != 300 {
		t.Fatalf("expiresIn = %d, want 300", nonceResp.ExpiresIn)
	}

	message := fmt.Sprintf("sprout.game wants you to sign in with your Ethereum account:\n%s\n\nNonce: %s", address, nonceResp.Nonce)
	w = f.do(t, http.MethodPost, "/auth/siwe/verify", "", map[string]string{
		"message":   message,
		"signature": personalSign(t, key, message),
		"address":   address,
		"nonce":     nonceResp.Nonce,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d: %s", w.Code, w.Body.String())
	}
	var verifyResp struct {
		Token string `json:"token"`
	}
	decode(t, w, &verifyResp)
	if verifyResp.Token == "" {
		t.Fatal("verify returned no token")
	}
	return verifyResp.Token
}

func TestRouter_LoginAndClaimFlow(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	key, address := newWallet(t)

	token := f.authenticate(t, key, address)

	// The session works against protected routes.
	w := f.do(t, http.MethodGet, "/auth/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me status = %d: %s", w.Code, w.Body.String())
	}
	var me core.User
	decode(t, w, &me)
	if me.WalletAddress != core.NormalizeAddress(address) {
		t.Fatalf("me wallet = %q, want %q", me.WalletAddress, core.NormalizeAddress(address))
	}

	// Authorize a game reward and settle it against the verifier contract.
	w = f.do(t, http.MethodPost, "/claim/signature", token, map[string]any{
		"claimType": "game_reward",
		"score":     50,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("claim signature status = %d: %s", w.Code, w.Body.String())
	}
	var claimResp struct {
		Signature       string `json:"signature"`
		Amount          string `json:"amount"`
		ClaimType       string `json:"claimType"`
		Nonce           string `json:"nonce"`
		Deadline        string `json:"deadline"`
		ContractAddress string `json:"contractAddress"`
	}
	decode(t, w, &claimResp)
	if claimResp.Amount != "50000000000000000" {
		t.Fatalf("amount = %q, want 50 * 1e15", claimResp.Amount)
	}
	if claimResp.Nonce != "0" {
		t.Fatalf("nonce = %q, want 0", claimResp.Nonce)
	}
	if claimResp.ClaimType != "game_reward" {
		t.Fatalf("claimType = %q, want game_reward", claimResp.ClaimType)
	}
	if claimResp.ContractAddress != f.contract.Address().Hex() {
		t.Fatalf("contractAddress = %q, want %q", claimResp.ContractAddress, f.contract.Address().Hex())
	}

	deadline, err := strconv.ParseInt(claimResp.Deadline, 10, 64)
	if err != nil {
		t.Fatalf("deadline %q does not parse: %v", claimResp.Deadline, err)
	}
	amount, ok := new(big.Int).SetString(claimResp.Amount, 10)
	if !ok {
		t.Fatalf("amount %q does not parse", claimResp.Amount)
	}
	payout, err := f.contract.Claim(
		common.HexToAddress(address),
		amount,
		protocol.KindGameReward,
		big.NewInt(deadline),
		hexutil.MustDecode(claimResp.Signature),
		time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("on-chain settlement: %v", err)
	}
	if payout.Amount.Cmp(amount) != 0 {
		t.Fatalf("payout = %s, want %s", payout.Amount, amount)
	}

	// Report the transaction back and find it in the history.
	txHash := "0x" + strings.Repeat("ab", 32)
	w = f.do(t, http.MethodPost, "/claim/record", token, map[string]string{
		"claimType": "game_reward",
		"amount":    claimResp.Amount,
		"txHash":    txHash,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("claim record status = %d: %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/claim/history", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d: %s", w.Code, w.Body.String())
	}
	var historyResp struct {
		Claims []core.ClaimTransaction `json:"claims"`
	}
	decode(t, w, &historyResp)
	if len(historyResp.Claims) != 1 {
		t.Fatalf("history has %d rows, want 1", len(historyResp.Claims))
	}
	if historyResp.Claims[0].Status != core.ClaimStatusSubmitted || historyResp.Claims[0].TxHash != txHash {
		t.Fatalf("history row = %+v, want submitted with tx hash", historyResp.Claims[0])
	}

	// Logout kills the session even though the token itself has not expired.
	w = f.do(t, http.MethodPost, "/auth/logout", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d: %s", w.Code, w.Body.String())
	}
	w = f.do(t, http.MethodGet, "/auth/me", token, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout status = %d, want 401", w.Code)
	}
	if code := errorCode(t, w); code != string(core.CodeSessionExpired) {
		t.Fatalf("me after logout code = %q, want %s", code, core.CodeSessionExpired)
	}
}

func TestRouter_VerifyIsNewUserOnlyOnce(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	key, address := newWallet(t)

	isNew := func() bool {
		w := f.do(t, http.MethodGet, "/auth/siwe/nonce", "", nil)
		var nonceResp struct {
			Nonce string `json:"nonce"`
		}
		decode(t, w, &nonceResp)

		message := fmt.Sprintf("Sign in\nNonce: %s", nonceResp.Nonce)
		w = f.do(t, http.MethodPost, "/auth/siwe/verify", "", map[string]string{
			"message":   message,
			"signature": personalSign(t, key, message),
			"address":   address,
			"nonce":     nonceResp.Nonce,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("verify status = %d: %s", w.Code, w.Body.String())
		}
		var resp struct {
			IsNewUser bool `json:"isNewUser"`
		}
		decode(t, w, &resp)
		return resp.IsNewUser
	}

	if !isNew() {
		t.Fatal("first login should report isNewUser=true")
	}
	if isNew() {
		t.Fatal("second login should report isNewUser=false")
	}
}

func TestRouter_VerifyRejectsWrongSigner(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	_, address := newWallet(t)
	strangerKey, _ := newWallet(t)

	w := f.do(t, http.MethodGet, "/auth/siwe/nonce", "", nil)
	var nonceResp struct {
		Nonce string `json:"nonce"`
	}
	decode(t, w, &nonceResp)

	message := fmt.Sprintf("Sign in\nNonce: %s", nonceResp.Nonce)
	w = f.do(t, http.MethodPost, "/auth/siwe/verify", "", map[string]string{
		"message":   message,
		"signature": personalSign(t, strangerKey, message),
		"address":   address,
		"nonce":     nonceResp.Nonce,
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("verify status = %d, want 401", w.Code)
	}
	if code := errorCode(t, w); code != string(core.CodeInvalidSignature) {
		t.Fatalf("verify code = %q, want %s", code, core.CodeInvalidSignature)
	}
}

func TestRouter_VerifyRejectsReplayedNonce(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	key, address := newWallet(t)

	w := f.do(t, http.MethodGet, "/auth/siwe/nonce", "", nil)
	var nonceResp struct {
		Nonce string `json:"nonce"`
	}
	decode(t, w, &nonceResp)

	message := fmt.Sprintf("Sign in\nNonce: %s", nonceResp.Nonce)
	body := map[string]string{
		"message":   message,
		"signature": personalSign(t, key, message),
		"address":   address,
		"nonce":     nonceResp.Nonce,
	}

	if w := f.do(t, http.MethodPost, "/auth/siwe/verify", "", body); w.Code != http.StatusOK {
		t.Fatalf("first verify status = %d: %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/auth/siwe/verify", "", body)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("replayed verify status = %d, want 401", w.Code)
	}
	if code := errorCode(t, w); code != string(core.CodeInvalidNonce) {
		t.Fatalf("replayed verify code = %q, want %s", code, core.CodeInvalidNonce)
	}
}

func TestRouter_ProtectedRoutesRequireBearer(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/auth/logout"},
		{http.MethodPost, "/auth/logout-all"},
		{http.MethodGet, "/auth/me"},
		{http.MethodPost, "/claim/signature"},
		{http.MethodPost, "/claim/record"},
		{http.MethodGet, "/claim/history"},
	}
	for _, route := range routes {
		w := f.do(t, route.method, route.path, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s without token status = %d, want 401", route.method, route.path, w.Code)
		}
		if code := errorCode(t, w); code != string(core.CodeUnauthorized) {
			t.Fatalf("%s %s code = %q, want %s", route.method, route.path, code, core.CodeUnauthorized)
		}
	}

	// A malformed scheme is as good as no header.
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Token abcdef")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong scheme status = %d, want 401", w.Code)
	}

	// A well-formed but forged token fails the cryptographic check.
	w = f.do(t, http.MethodGet, "/auth/me", "not-a-real-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want 401", w.Code)
	}
}

func TestRouter_DailyBonusConflict(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	key, address := newWallet(t)
	token := f.authenticate(t, key, address)

	body := map[string]string{"claimType": "daily_bonus"}
	if w := f.do(t, http.MethodPost, "/claim/signature", token, body); w.Code != http.StatusOK {
		t.Fatalf("first daily bonus status = %d: %s", w.Code, w.Body.String())
	}

	w := f.do(t, http.MethodPost, "/claim/signature", token, body)
	if w.Code != http.StatusConflict {
		t.Fatalf("second daily bonus status = %d, want 409", w.Code)
	}
	if code := errorCode(t, w); code != string(core.CodeDuplicateClaim) {
		t.Fatalf("second daily bonus code = %q, want %s", code, core.CodeDuplicateClaim)
	}
}

func TestRouter_InvalidScore(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	key, address := newWallet(t)
	token := f.authenticate(t, key, address)

	w := f.do(t, http.MethodPost, "/claim/signature", token, map[string]any{
		"claimType": "game_reward",
		"score":     0,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("zero score status = %d, want 400", w.Code)
	}
	if code := errorCode(t, w); code != string(core.CodeInvalidScore) {
		t.Fatalf("zero score code = %q, want %s", code, core.CodeInvalidScore)
	}
}

func TestRouter_MalformedBodies(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	key, address := newWallet(t)
	token := f.authenticate(t, key, address)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
	}{
		{"verify missing fields", http.MethodPost, "/auth/siwe/verify", "", map[string]string{"message": "hi"}},
		{"claim missing type", http.MethodPost, "/claim/signature", token, map[string]int{"score": 5}},
		{"record missing tx", http.MethodPost, "/claim/record", token, map[string]string{"claimType": "game_reward", "amount": "1"}},
	}
	for _, tc := range cases {
		w := f.do(t, tc.method, tc.path, tc.token, tc.body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s status = %d, want 400", tc.name, w.Code)
		}
		if code := errorCode(t, w); code != string(core.CodeInvalidRequest) {
			t.Fatalf("%s code = %q, want %s", tc.name, code, core.CodeInvalidRequest)
		}
	}
}

func TestRouter_Healthz(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)

	w := f.do(t, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", w.Code)
	}
	var resp struct {
		Status string `json:"status"`
	}
	decode(t, w, &resp)
	if resp.Status != "ok" {
		t.Fatalf("healthz status field = %q, want ok", resp.Status)
	}
}

func TestRouter_LogoutAllKillsEverySession(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t)
	key, address := newWallet(t)

	first := f.authenticate(t, key, address)
	second := f.authenticate(t, key, address)

	if w := f.do(t, http.MethodPost, "/auth/logout-all", first, nil); w.Code != http.StatusOK {
		t.Fatalf("logout-all status = %d: %s", w.Code, w.Body.String())
	}

	for name, token := range map[string]string{"first": first, "second": second} {
		if w := f.do(t, http.MethodGet, "/auth/me", token, nil); w.Code != http.StatusUnauthorized {
			t.Fatalf("%s session after logout-all status = %d, want 401", name, w.Code)
		}
	}
}
