package httptransport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appaccount "github.com/airstudent2/Tournament-200-26/internal/app/account"
	apptournament "github.com/airstudent2/Tournament-200-26/internal/app/tournament"
	"github.com/airstudent2/Tournament-200-26/internal/capacity"
	"github.com/airstudent2/Tournament-200-26/internal/catalog"
	"github.com/airstudent2/Tournament-200-26/internal/changefeed"
	"github.com/airstudent2/Tournament-200-26/internal/compensate"
	"github.com/airstudent2/Tournament-200-26/internal/config"
	"github.com/airstudent2/Tournament-200-26/internal/events"
	"github.com/airstudent2/Tournament-200-26/internal/identity"
	"github.com/airstudent2/Tournament-200-26/internal/join"
	"github.com/airstudent2/Tournament-200-26/internal/ledger"
	"github.com/airstudent2/Tournament-200-26/internal/reconcile"
	"github.com/airstudent2/Tournament-200-26/internal/store"
	"github.com/airstudent2/Tournament-200-26/internal/testutil"
	"github.com/airstudent2/Tournament-200-26/internal/withdrawal"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "test-secret"
	testAdminKey = "admin-key"
)

type testServer struct {
	rs  store.RecordStore
	hub *changefeed.Hub
	r   *chi.Mux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hub := changefeed.NewHub(100)
	t.Cleanup(hub.Close)
	rs := changefeed.Wrap(store.NewMemory(), hub)

	rec := &events.Recorder{}
	comp := &compensate.Runner{MaxAttempts: 3, BaseDelay: time.Millisecond, Events: rec}
	l := ledger.New(rs, comp)
	idp, err := identity.NewJWTProvider(testSecret, "")
	require.NoError(t, err)

	deps := Deps{
		Store:       rs,
		Hub:         hub,
		Identity:    idp,
		Accounts:    appaccount.NewService(rs, l, 0),
		Tournaments: apptournament.NewService(rs, catalog.New(rs, 0)),
		Joins:       join.NewOrchestrator(rs, capacity.NewManager(rs), l, comp, rec),
		Withdrawals: withdrawal.NewService(rs, l, comp, rec, config.SagaConfig{DefaultMinWithdraw: 50, DefaultWithdrawFeePercent: 10}),
		Reconciler:  reconcile.New(rs, l, comp, time.Minute),
	}
	return &testServer{rs: rs, hub: hub, r: NewRouter(deps, config.ServerConfig{AdminAPIKey: testAdminKey})}
}

func (s *testServer) do(t *testing.T, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func userToken(t *testing.T, uid string) string {
	t.Helper()
	tok, err := identity.IssueToken(testSecret, "", uid, time.Hour)
	require.NoError(t, err)
	return tok
}

func errorCodeOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	code, _ := body["error"].(string)
	return code
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"up"`)
}

func TestUserRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/me", "/api/wallet/history"} {
		w := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		w = s.do(t, http.MethodGet, path, "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestAdminRoutesRequireKey(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/admin/reconcile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(t, http.MethodPost, "/api/admin/reconcile", userToken(t, "u1"), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(t, http.MethodPost, "/api/admin/reconcile", testAdminKey, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProfileThenMe(t *testing.T) {
	s := newTestServer(t)
	tok := userToken(t, "u1")

	w := s.do(t, http.MethodGet, "/api/me", tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "profile_missing", errorCodeOf(t, w))

	profile := map[string]any{"display_name": "Ada", "phone": "+15551234567", "game_handle": "ada#1"}
	w = s.do(t, http.MethodPut, "/api/profile", tok, profile)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPut, "/api/profile", tok, profile)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/me", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var u store.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	assert.Equal(t, "Ada", u.DisplayName)
}

func TestProfileValidation(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPut, "/api/profile", userToken(t, "u1"), map[string]any{"display_name": "A", "phone": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", errorCodeOf(t, w))
}

func TestJoinStatusCodes(t *testing.T) {
	s := newTestServer(t)
	testutil.SeedUser(t, s.rs, "rich", 500)
	testutil.SeedUser(t, s.rs, "poor", 10)
	testutil.SeedUser(t, s.rs, "late", 500)
	testutil.SeedTournament(t, s.rs, "cup", 100, 1)

	w := s.do(t, http.MethodPost, "/api/tournaments/cup/join", userToken(t, "poor"), nil)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "insufficient_funds", errorCodeOf(t, w))

	w = s.do(t, http.MethodPost, "/api/tournaments/cup/join", userToken(t, "rich"), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var m store.Membership
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, "rich", m.UID)

	w = s.do(t, http.MethodPost, "/api/tournaments/cup/join", userToken(t, "rich"), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_joined", errorCodeOf(t, w))

	w = s.do(t, http.MethodPost, "/api/tournaments/cup/join", userToken(t, "late"), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "tournament_full", errorCodeOf(t, w))

	w = s.do(t, http.MethodPost, "/api/tournaments/missing/join", userToken(t, "rich"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "tournament_not_found", errorCodeOf(t, w))

	w = s.do(t, http.MethodPost, "/api/tournaments/cup/join", userToken(t, "ghost"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "profile_missing", errorCodeOf(t, w))

	w = s.do(t, http.MethodGet, "/api/tournaments/cup/members", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"display_name":"Player rich"`)
}

func TestMemberListingHidesContactAndPaymentFields(t *testing.T) {
	s := newTestServer(t)
	testutil.SeedUser(t, s.rs, "u1", 500)
	testutil.SeedTournament(t, s.rs, "cup", 100, 4)
	w := s.do(t, http.MethodPost, "/api/tournaments/cup/join", userToken(t, "u1"), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/tournaments/cup/members", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"game_handle":"u1#1"`)
	for _, field := range []string{`"phone"`, `"debit_id"`, `"reservation"`, "+10000000000"} {
		assert.NotContains(t, body, field)
	}

	w = s.do(t, http.MethodGet, "/api/admin/tournaments/cup/members", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(t, http.MethodGet, "/api/admin/tournaments/cup/members", testAdminKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"phone":"+10000000000"`)
	assert.Contains(t, w.Body.String(), `"debit_id"`)
}

func TestBlockedUserCannotJoin(t *testing.T) {
	s := newTestServer(t)
	testutil.SeedUser(t, s.rs, "u1", 500)
	testutil.SeedTournament(t, s.rs, "cup", 100, 4)

	w := s.do(t, http.MethodPost, "/api/admin/users/u1/block", testAdminKey, map[string]any{"blocked": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/tournaments/cup/join", userToken(t, "u1"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "user_blocked", errorCodeOf(t, w))
}

func TestAdminCreateThenPublicList(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/admin/tournaments", testAdminKey, map[string]any{
		"title":     "Friday Night Blitz",
		"game":      "chess",
		"entry_fee": 25,
		"max_slots": 16,
		"starts_at": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created store.Tournament
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, strings.HasPrefix(created.ID, "friday-night-blitz-"))

	w = s.do(t, http.MethodGet, "/api/tournaments?status=open", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.ID)

	w = s.do(t, http.MethodPatch, "/api/admin/tournaments/"+created.ID, testAdminKey, map[string]any{"status": "closed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/tournaments?status=open", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), created.ID)

	w = s.do(t, http.MethodPatch, "/api/admin/tournaments/"+created.ID, testAdminKey, map[string]any{"status": "paused"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWithdrawalFlow(t *testing.T) {
	s := newTestServer(t)
	testutil.SeedUser(t, s.rs, "u1", 300)
	tok := userToken(t, "u1")

	w := s.do(t, http.MethodPost, "/api/withdrawals", tok, map[string]any{"amount": 20, "method": "bank", "account": "NL00"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "below_minimum", errorCodeOf(t, w))

	w = s.do(t, http.MethodPost, "/api/withdrawals", tok, map[string]any{"amount": 1000, "method": "bank", "account": "NL00"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = s.do(t, http.MethodPost, "/api/withdrawals", tok, map[string]any{"amount": 100, "method": "bank", "account": "NL00"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var wd store.Withdrawal
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &wd))

	w = s.do(t, http.MethodGet, "/api/withdrawals/"+wd.ID, userToken(t, "other"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/withdrawals/"+wd.ID+"/decision", testAdminKey, map[string]any{"approve": false, "note": "kyc"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/admin/withdrawals/"+wd.ID+"/decision", testAdminKey, map[string]any{"approve": true})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", errorCodeOf(t, w))

	assert.Equal(t, int64(300), testutil.MustUser(t, s.rs, "u1").Wallet.Balance)
}

func TestAdminSettingsAndCredit(t *testing.T) {
	s := newTestServer(t)
	testutil.SeedUser(t, s.rs, "u1", 0)

	w := s.do(t, http.MethodPut, "/api/admin/settings", testAdminKey, map[string]any{"min_withdraw": 5, "withdraw_fee_percent": 200})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/admin/settings", testAdminKey, map[string]any{"min_withdraw": 5, "withdraw_fee_percent": 2})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/admin/settings", testAdminKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"withdraw_fee_percent":2`)

	w = s.do(t, http.MethodPost, "/api/admin/credit", testAdminKey, map[string]any{"uid": "u1", "amount": 75})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(75), testutil.MustUser(t, s.rs, "u1").Wallet.Balance)

	w = s.do(t, http.MethodGet, "/api/wallet/history", userToken(t, "u1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"amount":75`)
}

func TestTournamentEventsStream(t *testing.T) {
	s := newTestServer(t)
	testutil.SeedUser(t, s.rs, "u1", 500)
	testutil.SeedTournament(t, s.rs, "cup", 100, 4)

	srv := httptest.NewServer(s.r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/tournaments/cup/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	w := s.do(t, http.MethodPost, "/api/tournaments/cup/join", userToken(t, "u1"), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	sc := bufio.NewScanner(resp.Body)
	var data string
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, `"key":"tournaments/cup"`) {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, data)
	var ev changefeed.Change
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, changefeed.OpUpdate, ev.Op)
	assert.Contains(t, string(ev.Data), `"joined_count":1`)
}

func TestMemberEventsStreamHidesContactFields(t *testing.T) {
	s := newTestServer(t)
	testutil.SeedUser(t, s.rs, "u1", 500)
	testutil.SeedTournament(t, s.rs, "cup", 100, 4)

	srv := httptest.NewServer(s.r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/tournaments/cup/events?scope=members", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	w := s.do(t, http.MethodPost, "/api/tournaments/cup/join", userToken(t, "u1"), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	sc := bufio.NewScanner(resp.Body)
	var data string
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, data)
	var ev changefeed.Change
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, store.MembershipKey("cup", "u1"), ev.Key)
	assert.Contains(t, string(ev.Data), `"game_handle":"u1#1"`)
	assert.NotContains(t, string(ev.Data), "phone")
	assert.NotContains(t, string(ev.Data), "debit_id")
}

func TestFeedWriterSkipsAlreadySentChanges(t *testing.T) {
	rec := httptest.NewRecorder()
	fw := &feedWriter{w: rec}
	fw.resumeAfter("2")
	for _, id := range []string{"1", "2", "3", "3", "4", "2"} {
		require.NoError(t, fw.write(changefeed.Change{EventID: id, Op: changefeed.OpUpdate, Key: "tournaments/cup"}))
	}
	body := rec.Body.String()
	assert.Equal(t, 2, strings.Count(body, "id: "))
	assert.Contains(t, body, "id: 3\n")
	assert.Contains(t, body, "id: 4\n")
	assert.NotContains(t, body, "id: 2\n")
}

func TestTournamentEventsReplayDoesNotRepeat(t *testing.T) {
	s := newTestServer(t)
	testutil.SeedTournament(t, s.rs, "cup", 0, 4)
	first := s.hub.Publish(changefeed.OpUpdate, store.TournamentKey("cup"), 2, []byte(`{"id":"cup"}`))
	s.hub.Publish(changefeed.OpUpdate, store.TournamentKey("cup"), 3, []byte(`{"id":"cup"}`))

	srv := httptest.NewServer(s.r)
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/tournaments/cup/events", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", first.EventID)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	third := s.hub.Publish(changefeed.OpUpdate, store.TournamentKey("cup"), 4, []byte(`{"id":"cup"}`))

	sc := bufio.NewScanner(resp.Body)
	var ids []string
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "id: ") {
			ids = append(ids, strings.TrimPrefix(line, "id: "))
		}
		if line == "id: "+third.EventID {
			break
		}
	}
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
}

func TestTournamentEventsUnknownTournament(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/tournaments/nope/events", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestParsePaginationClamps(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?limit=9999&offset=-4", nil)
	limit, offset := ParsePagination(req)
	assert.Equal(t, 500, limit)
	assert.Equal(t, 0, offset)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := bearerToken(req)
	assert.False(t, ok)
	req.Header.Set("Authorization", "bearer abc ")
	tok, ok := bearerToken(req)
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)
}
