package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/groupsplit/internal/auth"
	"github.com/mmynk/groupsplit/internal/events"
	"github.com/mmynk/groupsplit/internal/metrics"
	"github.com/mmynk/groupsplit/internal/storage/sqlstore"
	"github.com/mmynk/groupsplit/pkg/api"
)

type testEnv struct {
	server   *httptest.Server
	auth     api.AuthServiceClient
	groups   api.GroupServiceClient
	expenses api.ExpenseServiceClient
	events   *events.Recorder
	metrics  *metrics.Metrics
	jwt      *auth.JWTManager
}

// setupTestServer starts the full mux against a temporary SQLite database.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlstore.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	env := &testEnv{
		events:  &events.Recorder{},
		metrics: metrics.New(),
		jwt:     auth.NewJWTManager("test-secret", 5*time.Minute, 24*time.Hour),
	}
	mux := NewMux(Options{
		Store:        store,
		JWT:          env.jwt,
		Publisher:    env.events,
		Metrics:      env.metrics,
		CookieSecure: true,
	})
	env.server = httptest.NewServer(mux)
	t.Cleanup(func() {
		env.server.Close()
		store.Close()
	})

	env.auth = api.NewAuthServiceClient(http.DefaultClient, env.server.URL)
	env.groups = api.NewGroupServiceClient(http.DefaultClient, env.server.URL)
	env.expenses = api.NewExpenseServiceClient(http.DefaultClient, env.server.URL)
	return env
}

// signUp registers username and returns an access token for it.
func (e *testEnv) signUp(t *testing.T, username string) string {
	t.Helper()
	ctx := context.Background()

	_, err := e.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Username:  username,
		FirstName: strings.ToUpper(username[:1]) + username[1:],
		Email:     username + "@example.com",
		Password:  "secret-password",
		Password1: "secret-password",
	}))
	require.NoError(t, err)

	resp, err := e.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    username + "@example.com",
		Password: "secret-password",
	}))
	require.NoError(t, err)
	return resp.Msg.Access
}

func authed[T any](token string, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+token)
	return req
}

func requireCode(t *testing.T, err error, code connect.Code) *connect.Error {
	t.Helper()
	require.Error(t, err)
	var cerr *connect.Error
	require.True(t, errors.As(err, &cerr), "expected connect.Error, got %T", err)
	require.Equal(t, code, cerr.Code(), cerr.Message())
	return cerr
}

func TestAuthService(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	t.Run("register and login", func(t *testing.T) {
		reg, err := env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
			Username:  "alice",
			FirstName: "Alice",
			LastName:  "Liddell",
			Email:     "alice@example.com",
			Password:  "wonderland",
			Password1: "wonderland",
		}))
		require.NoError(t, err)
		assert.Equal(t, "User registered successfully.", reg.Msg.Message)
		assert.Equal(t, "alice", reg.Msg.User.Username)

		login, err := env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
			Email:    "alice@example.com",
			Password: "wonderland",
		}))
		require.NoError(t, err)
		assert.True(t, login.Msg.Success)
		assert.NotEmpty(t, login.Msg.Access)
		assert.NotEmpty(t, login.Msg.User.LastLogin)

		cookie := login.Header().Get("Set-Cookie")
		assert.Contains(t, cookie, "refresh_token="+login.Msg.Refresh)
		assert.Contains(t, cookie, "Max-Age=86400")
		assert.Contains(t, cookie, "HttpOnly")
		assert.Contains(t, cookie, "Secure")
		assert.Contains(t, cookie, "SameSite=Lax")

		claims, err := env.jwt.Validate(login.Msg.Access)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", claims.Email)
		assert.Equal(t, "Alice", claims.FirstName)
		assert.Equal(t, "Liddell", claims.LastName)

		me, err := env.auth.GetCurrentUser(ctx, authed(login.Msg.Access, &api.GetCurrentUserRequest{}))
		require.NoError(t, err)
		assert.Equal(t, "alice", me.Msg.User.Username)
	})

	t.Run("GetCurrentUser without token", func(t *testing.T) {
		_, err := env.auth.GetCurrentUser(ctx, connect.NewRequest(&api.GetCurrentUserRequest{}))
		requireCode(t, err, connect.CodeUnauthenticated)
	})

	t.Run("registration field errors", func(t *testing.T) {
		_, err := env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
			Username:  "bob",
			Email:     "bob@example.com",
			Password:  "one",
			Password1: "two",
		}))
		cerr := requireCode(t, err, connect.CodeInvalidArgument)
		assert.Equal(t, "Passwords do not match.", cerr.Message())
		assert.Equal(t, map[string]string{"password1": "Passwords do not match."}, FieldErrors(err))

		_, err = env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
			Username:  "alice2",
			Email:     "alice@example.com",
			Password:  "pw",
			Password1: "pw",
		}))
		requireCode(t, err, connect.CodeInvalidArgument)
		assert.Equal(t, map[string]string{"email": "Email is already registered."}, FieldErrors(err))
	})

	t.Run("login failures", func(t *testing.T) {
		_, err := env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "ghost@example.com", Password: "x"}))
		requireCode(t, err, connect.CodeUnauthenticated)
		assert.Equal(t, map[string]string{"email": "Email does not exist."}, FieldErrors(err))

		_, err = env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "alice@example.com", Password: "x"}))
		requireCode(t, err, connect.CodeUnauthenticated)
		assert.Equal(t, map[string]string{"password": "Invalid password."}, FieldErrors(err))
	})

	t.Run("refresh from body and cookie", func(t *testing.T) {
		login, err := env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
			Email:    "alice@example.com",
			Password: "wonderland",
		}))
		require.NoError(t, err)

		resp, err := env.auth.Refresh(ctx, connect.NewRequest(&api.RefreshRequest{Refresh: login.Msg.Refresh}))
		require.NoError(t, err)
		_, err = env.jwt.Validate(resp.Msg.Access)
		assert.NoError(t, err)

		req := connect.NewRequest(&api.RefreshRequest{})
		req.Header().Set("Cookie", auth.RefreshCookieName+"="+login.Msg.Refresh)
		resp, err = env.auth.Refresh(ctx, req)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Msg.Access)

		// An access token is not a refresh token.
		_, err = env.auth.Refresh(ctx, connect.NewRequest(&api.RefreshRequest{Refresh: login.Msg.Access}))
		requireCode(t, err, connect.CodeUnauthenticated)

		_, err = env.auth.Refresh(ctx, connect.NewRequest(&api.RefreshRequest{}))
		requireCode(t, err, connect.CodeUnauthenticated)
	})

	t.Run("refresh token rejected as access token", func(t *testing.T) {
		login, err := env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
			Email:    "alice@example.com",
			Password: "wonderland",
		}))
		require.NoError(t, err)

		_, err = env.groups.ListGroups(ctx, authed(login.Msg.Refresh, &api.ListGroupsRequest{}))
		requireCode(t, err, connect.CodeUnauthenticated)
	})

	t.Run("logout clears cookie", func(t *testing.T) {
		resp, err := env.auth.Logout(ctx, connect.NewRequest(&api.LogoutRequest{}))
		require.NoError(t, err)
		assert.Contains(t, resp.Header().Get("Set-Cookie"), "Max-Age=0")
	})
}

func TestGroupService(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	token := env.signUp(t, "alice")
	env.signUp(t, "bob")
	env.signUp(t, "carol")

	t.Run("requires authentication", func(t *testing.T) {
		_, err := env.groups.ListGroups(ctx, connect.NewRequest(&api.ListGroupsRequest{}))
		requireCode(t, err, connect.CodeUnauthenticated)
	})

	var groupID string

	t.Run("CreateGroup", func(t *testing.T) {
		resp, err := env.groups.CreateGroup(ctx, authed(token, &api.CreateGroupRequest{
			Name:        "Roommates",
			Description: "Flat 4B",
			Members:     []string{"bob", "alice"},
		}))
		require.NoError(t, err)
		groupID = resp.Msg.Group.ID
		assert.NotEmpty(t, groupID)
		assert.Equal(t, []string{"alice", "bob"}, resp.Msg.Group.Members)
		assert.NotEmpty(t, resp.Msg.Group.CreatedAt)
	})

	t.Run("CreateGroup with unknown member", func(t *testing.T) {
		_, err := env.groups.CreateGroup(ctx, authed(token, &api.CreateGroupRequest{
			Name:    "Ghosts",
			Members: []string{"zed"},
		}))
		requireCode(t, err, connect.CodeInvalidArgument)
		assert.Equal(t, map[string]string{"members": "Object with username=zed does not exist."}, FieldErrors(err))
	})

	t.Run("GetGroup", func(t *testing.T) {
		resp, err := env.groups.GetGroup(ctx, authed(token, &api.GetGroupRequest{GroupID: groupID}))
		require.NoError(t, err)
		assert.Equal(t, "Roommates", resp.Msg.Group.Name)
		assert.Equal(t, "Flat 4B", resp.Msg.Group.Description)

		_, err = env.groups.GetGroup(ctx, authed(token, &api.GetGroupRequest{GroupID: "nonexistent-id"}))
		requireCode(t, err, connect.CodeNotFound)
	})

	t.Run("UpdateGroup keeps members", func(t *testing.T) {
		resp, err := env.groups.UpdateGroup(ctx, authed(token, &api.UpdateGroupRequest{
			GroupID: groupID,
			Name:    "Housemates",
		}))
		require.NoError(t, err)
		assert.Equal(t, "Housemates", resp.Msg.Group.Name)
		assert.Empty(t, resp.Msg.Group.Description)
		assert.Len(t, resp.Msg.Group.Members, 2)

		_, err = env.groups.UpdateGroup(ctx, authed(token, &api.UpdateGroupRequest{GroupID: groupID}))
		requireCode(t, err, connect.CodeInvalidArgument)
		assert.Equal(t, map[string]string{"name": "This field may not be blank."}, FieldErrors(err))
	})

	t.Run("AddMember and RemoveMember", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			resp, err := env.groups.AddMember(ctx, authed(token, &api.AddMemberRequest{GroupID: groupID, Username: "carol"}))
			require.NoError(t, err)
			assert.Equal(t, []string{"alice", "bob", "carol"}, resp.Msg.Group.Members)
		}

		resp, err := env.groups.RemoveMember(ctx, authed(token, &api.RemoveMemberRequest{GroupID: groupID, Username: "carol"}))
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, resp.Msg.Group.Members)

		_, err = env.groups.AddMember(ctx, authed(token, &api.AddMemberRequest{GroupID: groupID, Username: "zed"}))
		requireCode(t, err, connect.CodeInvalidArgument)

		_, err = env.groups.AddMember(ctx, authed(token, &api.AddMemberRequest{GroupID: "missing", Username: "carol"}))
		requireCode(t, err, connect.CodeNotFound)
	})

	t.Run("ListGroups", func(t *testing.T) {
		resp, err := env.groups.ListGroups(ctx, authed(token, &api.ListGroupsRequest{}))
		require.NoError(t, err)
		require.Len(t, resp.Msg.Groups, 1)
		assert.Equal(t, groupID, resp.Msg.Groups[0].ID)
	})

	t.Run("DeleteGroup publishes an event", func(t *testing.T) {
		_, err := env.groups.DeleteGroup(ctx, authed(token, &api.DeleteGroupRequest{GroupID: groupID}))
		require.NoError(t, err)

		_, err = env.groups.GetGroup(ctx, authed(token, &api.GetGroupRequest{GroupID: groupID}))
		requireCode(t, err, connect.CodeNotFound)

		published := env.events.Events()
		require.NotEmpty(t, published)
		last := published[len(published)-1]
		assert.Equal(t, events.GroupDeleted, last.Type)
		assert.Equal(t, groupID, last.GroupID)
	})
}

func TestExpenseService(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	tokens := map[string]string{}
	for _, name := range []string{"alice", "bob", "carol", "dave", "erin"} {
		tokens[name] = env.signUp(t, name)
	}

	t.Run("no groups is not found", func(t *testing.T) {
		_, err := env.expenses.ListUserExpenses(ctx, authed(tokens["dave"], &api.ListUserExpensesRequest{}))
		cerr := requireCode(t, err, connect.CodeNotFound)
		assert.Equal(t, "User is not part of any groups.", cerr.Message())

		_, err = env.expenses.GetUserBalance(ctx, authed(tokens["dave"], &api.GetUserBalanceRequest{}))
		requireCode(t, err, connect.CodeNotFound)
	})

	group, err := env.groups.CreateGroup(ctx, authed(tokens["alice"], &api.CreateGroupRequest{
		Name:    "Trip",
		Members: []string{"alice", "bob", "carol", "dave"},
	}))
	require.NoError(t, err)
	groupID := group.Msg.Group.ID

	t.Run("groups without expenses is empty", func(t *testing.T) {
		resp, err := env.expenses.ListUserExpenses(ctx, authed(tokens["dave"], &api.ListUserExpensesRequest{}))
		require.NoError(t, err)
		assert.Empty(t, resp.Msg.Expenses)
	})

	var expenseID string

	t.Run("CreateExpense", func(t *testing.T) {
		resp, err := env.expenses.CreateExpense(ctx, authed(tokens["alice"], &api.CreateExpenseRequest{
			GroupID:     groupID,
			Description: "Dinner",
			Amount:      "90",
			PaidBy:      "alice",
			SplitAmong:  []string{"bob", "carol"},
		}))
		require.NoError(t, err)

		e := resp.Msg.Expense
		expenseID = e.ID
		assert.Equal(t, "90.00", e.Amount)
		assert.Equal(t, "Trip", e.GroupName)
		assert.Equal(t, []string{"bob", "carol"}, e.SplitAmong)
		require.Len(t, e.Shares, 3)
		assert.Equal(t, &api.Share{Username: "alice", Role: "payer", Share: "30.00", Net: "60.00"}, e.Shares[0])
		assert.Equal(t, &api.Share{Username: "bob", Role: "participant", Share: "30.00", Net: "30.00"}, e.Shares[1])

		published := env.events.Events()
		require.Len(t, published, 1)
		assert.Equal(t, events.ExpenseRecorded, published[0].Type)
		assert.Equal(t, expenseID, published[0].ExpenseID)
	})

	t.Run("viewer projections", func(t *testing.T) {
		cases := []struct {
			viewer    string
			share     string
			direction *string
			net       string
			role      string
		}{
			{"alice", "30.00", strPtr("Paid By"), "60.00", "payer"},
			{"bob", "30.00", strPtr("Paid To alice"), "30.00", "participant"},
			{"carol", "30.00", strPtr("Paid To alice"), "30.00", "participant"},
			{"dave", "0.00", nil, "0.00", "uninvolved"},
		}
		for _, tc := range cases {
			resp, err := env.expenses.ListUserExpenses(ctx, authed(tokens[tc.viewer], &api.ListUserExpensesRequest{}))
			require.NoError(t, err, tc.viewer)
			require.Len(t, resp.Msg.Expenses, 1, tc.viewer)

			got := resp.Msg.Expenses[0]
			assert.Equal(t, "Trip", got.Group, tc.viewer)
			assert.Equal(t, tc.share, got.UserShare, tc.viewer)
			assert.Equal(t, tc.direction, got.PaidToOrBy, tc.viewer)
			assert.Equal(t, tc.net, got.AmountToReceiveOrPay, tc.viewer)
			assert.Equal(t, tc.role, got.Role, tc.viewer)
		}
	})

	t.Run("validation errors", func(t *testing.T) {
		tests := []struct {
			name   string
			req    *api.CreateExpenseRequest
			fields map[string]string
		}{
			{
				name:   "zero amount",
				req:    &api.CreateExpenseRequest{GroupID: groupID, Description: "x", Amount: "0", PaidBy: "alice", SplitAmong: []string{"bob"}},
				fields: map[string]string{"amount": "Amount must be greater than zero."},
			},
			{
				name:   "payer outside group",
				req:    &api.CreateExpenseRequest{GroupID: groupID, Description: "x", Amount: "5", PaidBy: "erin", SplitAmong: []string{"bob"}},
				fields: map[string]string{"paid_by": "erin is not a member of the selected group."},
			},
			{
				name:   "split member outside group",
				req:    &api.CreateExpenseRequest{GroupID: groupID, Description: "x", Amount: "5", PaidBy: "alice", SplitAmong: []string{"bob", "erin"}},
				fields: map[string]string{"split_among": "erin is not a member of the selected group."},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := env.expenses.CreateExpense(ctx, authed(tokens["alice"], tt.req))
				requireCode(t, err, connect.CodeInvalidArgument)
				assert.Equal(t, tt.fields, FieldErrors(err))
			})
		}
	})

	t.Run("GetUserBalance", func(t *testing.T) {
		_, err := env.expenses.CreateExpense(ctx, authed(tokens["bob"], &api.CreateExpenseRequest{
			GroupID:     groupID,
			Description: "Taxi",
			Amount:      "40.00",
			PaidBy:      "bob",
			SplitAmong:  []string{"alice"},
		}))
		require.NoError(t, err)

		resp, err := env.expenses.GetUserBalance(ctx, authed(tokens["alice"], &api.GetUserBalanceRequest{}))
		require.NoError(t, err)
		assert.Equal(t, "60.00", resp.Msg.Receivable)
		assert.Equal(t, "20.00", resp.Msg.Payable)
		assert.Equal(t, "40.00", resp.Msg.Net)
		assert.Equal(t, int32(2), resp.Msg.ExpenseCount)
	})

	t.Run("ListExpenses", func(t *testing.T) {
		resp, err := env.expenses.ListExpenses(ctx, authed(tokens["alice"], &api.ListExpensesRequest{GroupID: groupID}))
		require.NoError(t, err)
		require.Len(t, resp.Msg.Expenses, 2)
		assert.Equal(t, expenseID, resp.Msg.Expenses[0].ID)

		_, err = env.expenses.ListExpenses(ctx, authed(tokens["alice"], &api.ListExpensesRequest{GroupID: "missing"}))
		requireCode(t, err, connect.CodeNotFound)
	})

	t.Run("DeleteExpense", func(t *testing.T) {
		_, err := env.expenses.DeleteExpense(ctx, authed(tokens["erin"], &api.DeleteExpenseRequest{ExpenseID: expenseID}))
		requireCode(t, err, connect.CodePermissionDenied)

		_, err = env.expenses.DeleteExpense(ctx, authed(tokens["bob"], &api.DeleteExpenseRequest{ExpenseID: expenseID}))
		require.NoError(t, err)

		_, err = env.expenses.GetExpense(ctx, authed(tokens["bob"], &api.GetExpenseRequest{ExpenseID: expenseID}))
		requireCode(t, err, connect.CodeNotFound)
	})
}

// postJSON sends body to a Connect procedure the way a browser would.
func (e *testEnv) postJSON(t *testing.T, procedure, token, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.server.URL+procedure, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

// detailFields decodes the Struct detail of a Connect JSON error body.
func detailFields(t *testing.T, body map[string]any) map[string]string {
	t.Helper()
	details, _ := body["details"].([]any)
	require.Len(t, details, 1)
	detail := details[0].(map[string]any)
	assert.Equal(t, "google.protobuf.Struct", detail["type"])

	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(detail["value"].(string), "="))
	require.NoError(t, err)
	var s structpb.Struct
	require.NoError(t, proto.Unmarshal(raw, &s))

	out := map[string]string{}
	for k, v := range s.GetFields() {
		out[k] = v.GetStringValue()
	}
	return out
}

func TestCreateExpense_RawJSONAmount(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	token := env.signUp(t, "alice")
	env.signUp(t, "bob")

	group, err := env.groups.CreateGroup(ctx, authed(token, &api.CreateGroupRequest{
		Name:    "Trip",
		Members: []string{"alice", "bob"},
	}))
	require.NoError(t, err)
	groupID := group.Msg.Group.ID

	expenseBody := func(amount string) string {
		return `{"group_id":"` + groupID + `","description":"Dinner","amount":` + amount +
			`,"paid_by":"alice","split_among":["bob"]}`
	}

	t.Run("number is accepted", func(t *testing.T) {
		status, body := env.postJSON(t, api.ExpenseServiceCreateExpenseProcedure, token, expenseBody("90"))
		require.Equal(t, http.StatusOK, status, body)
		expense := body["expense"].(map[string]any)
		assert.Equal(t, "90.00", expense["amount"])
	})

	t.Run("fractional number is accepted", func(t *testing.T) {
		status, body := env.postJSON(t, api.ExpenseServiceCreateExpenseProcedure, token, expenseBody("12.5"))
		require.Equal(t, http.StatusOK, status, body)
		assert.Equal(t, "12.50", body["expense"].(map[string]any)["amount"])
	})

	t.Run("non-numeric value is a field error", func(t *testing.T) {
		status, body := env.postJSON(t, api.ExpenseServiceCreateExpenseProcedure, token, expenseBody("true"))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid_argument", body["code"])
		assert.Equal(t, map[string]string{"amount": "A valid number is required."}, detailFields(t, body))
	})

	t.Run("huge exponent is rejected quickly", func(t *testing.T) {
		start := time.Now()
		status, body := env.postJSON(t, api.ExpenseServiceCreateExpenseProcedure, token, expenseBody("1e20000000"))
		assert.Less(t, time.Since(start), 2*time.Second)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t,
			map[string]string{"amount": "Ensure that there are no more than 8 digits before the decimal point."},
			detailFields(t, body))
	})
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupTestServer(t)
	env.signUp(t, "alice")

	resp, err := http.Get(env.server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `groupsplit_rpc_requests_total{code="ok",procedure="/groupsplit.v1.AuthService/Login"} 1`)
}

func strPtr(s string) *string { return &s }
