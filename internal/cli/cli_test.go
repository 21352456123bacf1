package cli

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erauner12/shopsync/internal/auth"
	"github.com/erauner12/shopsync/internal/httpapi"
	"github.com/erauner12/shopsync/internal/service/collectionsvc"
	"github.com/erauner12/shopsync/internal/store/memory"
	"github.com/erauner12/shopsync/internal/summary"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "shopctl", cmd.Use)
	assert.Contains(t, cmd.Long, "rolled back")
}

func TestRootCommand_SignedTokensAreForTrustedSetups(t *testing.T) {
	long := NewRootCommand().Long
	assert.Contains(t, long, "SHOPSYNC_TOKEN")
	assert.Contains(t, long, "SHOPSYNC_JWT_SECRET")
	assert.Contains(t, long, "trusted setup")
}

func TestSignedCredentialsWarn(t *testing.T) {
	clearEnv(t)
	api := newTestServer(t)
	t.Setenv("SHOPSYNC_JWT_SECRET", "s3cret")
	t.Setenv("SHOPSYNC_JWT_SUBJECT", "alice")

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--log-level", "warn", "--api", api, "cart", "list"})
	_ = cmd.Execute()

	assert.Contains(t, stderr.String(), "shared server secret")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"cart", "list"}, {"cart", "add"}, {"cart", "remove"}, {"cart", "update"}, {"cart", "clear"},
		{"wishlist", "list"}, {"wishlist", "add"}, {"wishlist", "remove"}, {"wishlist", "move"},
	}

	for _, path := range commands {
		t.Run(path[0]+" "+path[1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[1], subCmd.Name())
		})
	}

	subCmd, _, _ := cmd.Find([]string{"cart", "move"})
	assert.NotEqual(t, "move", subCmd.Name(), "move only exists on the wishlist")
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	for _, name := range []string{"api", "dev-sub", "log-level"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestAddCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	addCmd, _, err := cmd.Find([]string{"cart", "add"})
	require.NoError(t, err)

	qty := addCmd.Flags().Lookup("qty")
	require.NotNil(t, qty)
	assert.Equal(t, "1", qty.DefValue)
	assert.Equal(t, "q", qty.Shorthand)
	assert.NotNil(t, addCmd.Flags().Lookup("price"))
	assert.NotNil(t, addCmd.Flags().Lookup("name"))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "12.05", formatCents(1205))
	assert.Equal(t, "0.00", formatCents(0))
	assert.Equal(t, "-1.50", formatCents(-150))
}

// clearEnv blanks the variables config.Load reads
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SHOPSYNC_API_BASE_URL", "SHOPSYNC_DEV_MODE", "SHOPSYNC_DEV_SUB", "SHOPSYNC_DEBUG",
		"SHOPSYNC_LOG_LEVEL", "SHOPSYNC_TOKEN", "SHOPSYNC_JWT_SECRET", "SHOPSYNC_JWT_SUBJECT",
		"SHOPSYNC_JWT_ISSUER", "SHOPSYNC_JWT_AUDIENCE", "SHOPSYNC_TAX_RATE",
	} {
		t.Setenv(key, "")
	}
}

// newTestServer runs a dev-mode server over an in-memory store
func newTestServer(t *testing.T) string {
	t.Helper()

	store := memory.New()
	srv := &httpapi.Server{
		Svc:             collectionsvc.New(store, summary.DefaultRules()),
		Users:           store,
		RateLimitConfig: httpapi.DefaultRateLimitConfig,
	}
	ts := httptest.NewServer(srv.Routes(auth.JWTCfg{DevMode: true}))
	t.Cleanup(ts.Close)
	return ts.URL
}

// run executes shopctl with args and returns stdout, stderr and the error
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--log-level", "off"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func listJSON(t *testing.T, api, collection string) CollectionView {
	t.Helper()

	out, _, err := run(t, "--api", api, "--dev-sub", "alice", "--format", "json", collection, "list")
	require.NoError(t, err)

	var view CollectionView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	return view
}

func TestInvalidFormat(t *testing.T) {
	clearEnv(t)
	_, _, err := run(t, "--format", "yaml", "cart", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMissingCredentials(t *testing.T) {
	clearEnv(t)
	_, _, err := run(t, "cart", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCart_AddThenList(t *testing.T) {
	clearEnv(t)
	api := newTestServer(t)

	out, stderr, err := run(t, "--api", api, "--dev-sub", "alice",
		"cart", "add", "p1", "--name", "Mug", "--price", "1250", "--qty", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Mug")
	assert.Contains(t, out, "subtotal 25.00")
	assert.Contains(t, stderr, "success [cart]")

	view := listJSON(t, api, "cart")
	require.Len(t, view.Items, 1)
	assert.Equal(t, "p1", view.Items[0].Payload.ProductID)
	assert.Equal(t, 2, view.Items[0].Payload.Quantity)
	assert.Equal(t, int64(2500), view.Summary.Subtotal)
	assert.Equal(t, 2, view.Summary.ItemCount)
}

func TestCart_AddExistingProductIsNoop(t *testing.T) {
	clearEnv(t)
	api := newTestServer(t)

	_, _, err := run(t, "--api", api, "--dev-sub", "alice", "cart", "add", "p1", "--price", "100")
	require.NoError(t, err)

	_, stderr, err := run(t, "--api", api, "--dev-sub", "alice", "cart", "add", "p1", "--price", "100")
	require.NoError(t, err)
	assert.Contains(t, stderr, "info [cart]")
	assert.Len(t, listJSON(t, api, "cart").Items, 1)
}

func TestCart_UpdateRemoveClear(t *testing.T) {
	clearEnv(t)
	api := newTestServer(t)

	for _, p := range []string{"p1", "p2"} {
		_, _, err := run(t, "--api", api, "--dev-sub", "alice", "cart", "add", p, "--price", "500")
		require.NoError(t, err)
	}
	view := listJSON(t, api, "cart")
	require.Len(t, view.Items, 2)

	_, _, err := run(t, "--api", api, "--dev-sub", "alice", "cart", "update", view.Items[0].ID, "4")
	require.NoError(t, err)
	assert.Equal(t, 4, listJSON(t, api, "cart").Items[0].Payload.Quantity)

	_, _, err = run(t, "--api", api, "--dev-sub", "alice", "cart", "remove", "p2")
	require.NoError(t, err)
	assert.Len(t, listJSON(t, api, "cart").Items, 1)

	out, _, err := run(t, "--api", api, "--dev-sub", "alice", "cart", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "cart is empty")
	assert.Empty(t, listJSON(t, api, "cart").Items)
}

func TestCart_UpdateRejections(t *testing.T) {
	clearEnv(t)
	api := newTestServer(t)

	_, _, err := run(t, "--api", api, "--dev-sub", "alice", "cart", "add", "p1", "--price", "500")
	require.NoError(t, err)
	id := listJSON(t, api, "cart").Items[0].ID

	_, _, err = run(t, "--api", api, "--dev-sub", "alice", "cart", "update", id, "many")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, stderr, err := run(t, "--api", api, "--dev-sub", "alice", "--format", "json", "cart", "update", id, "0")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stderr, "error [cart]")

	var view CollectionView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.NotNil(t, view.Error)
	assert.Equal(t, 1, view.Items[0].Payload.Quantity, "quantity must be unchanged")
}

func TestWishlist_Move(t *testing.T) {
	clearEnv(t)
	api := newTestServer(t)

	for _, p := range []string{"p1", "p2"} {
		_, _, err := run(t, "--api", api, "--dev-sub", "alice", "wishlist", "add", p, "--price", "1000")
		require.NoError(t, err)
	}
	wish := listJSON(t, api, "wishlist")
	require.Len(t, wish.Items, 2)

	var moved string
	for _, it := range wish.Items {
		if it.Payload.ProductID == "p1" {
			moved = it.ID
		}
	}
	require.NotEmpty(t, moved)

	out, _, err := run(t, "--api", api, "--dev-sub", "alice", "wishlist", "move", moved)
	require.NoError(t, err)
	assert.Contains(t, out, "moved 1")
	assert.Contains(t, out, "p1")

	cart := listJSON(t, api, "cart")
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "p1", cart.Items[0].Payload.ProductID)

	wish = listJSON(t, api, "wishlist")
	require.Len(t, wish.Items, 1)
	assert.Equal(t, "p2", wish.Items[0].Payload.ProductID)
}

func TestOwnersAreIsolated(t *testing.T) {
	clearEnv(t)
	api := newTestServer(t)

	_, _, err := run(t, "--api", api, "--dev-sub", "bob", "cart", "add", "p1", "--price", "100")
	require.NoError(t, err)

	assert.Empty(t, listJSON(t, api, "cart").Items, "alice must not see bob's cart")
}
