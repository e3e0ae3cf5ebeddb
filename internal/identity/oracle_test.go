package identity

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivedao/hivedao/internal/config"
)

func encodeWord(v int64) string {
	s := strconv.FormatInt(v, 16)
	return strings.Repeat("0", 64-len(s)) + s
}

// encodeIdentityResult builds ABI return data for
// (uint256 tokenId, string name, uint256 registeredAt).
func encodeIdentityResult(tokenID int64, name string, registeredAt int64) string {
	nameHex := hex.EncodeToString([]byte(name))
	padded := nameHex + strings.Repeat("0", 64-len(nameHex)%64)
	return "0x" +
		encodeWord(tokenID) +
		encodeWord(96) + // offset of the dynamic string
		encodeWord(registeredAt) +
		encodeWord(int64(len(name))) +
		padded
}

func newRPCServer(t *testing.T, result string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "eth_call", req.Method)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  result,
		})
	}))
}

func TestOracle_GetIdentity(t *testing.T) {
	srv := newRPCServer(t, encodeIdentityResult(7, "worker-bee", 1700000000))
	defer srv.Close()

	o := NewOracle(config.IdentityConfig{
		RPCEndpoint:      srv.URL,
		IdentityRegistry: "0x1111111111111111111111111111111111111111",
	})

	id := o.GetIdentity(context.Background(), "0xabc")
	require.NotNil(t, id)
	assert.Equal(t, int64(7), id.TokenID)
	assert.Equal(t, "worker-bee", id.Name)
	assert.Equal(t, "0xabc", id.Wallet)
	assert.Equal(t, int64(1700000000), id.RegisteredAt.Unix())
}

func TestOracle_GetIdentity_EmptyResult(t *testing.T) {
	srv := newRPCServer(t, "0x")
	defer srv.Close()

	o := NewOracle(config.IdentityConfig{
		RPCEndpoint:      srv.URL,
		IdentityRegistry: "0x1111111111111111111111111111111111111111",
	})

	assert.Nil(t, o.GetIdentity(context.Background(), "0xabc"))
}

func TestOracle_Unconfigured(t *testing.T) {
	o := NewOracle(config.IdentityConfig{RPCEndpoint: "http://localhost:1"})

	assert.False(t, o.Enabled())
	assert.Nil(t, o.GetIdentity(context.Background(), "0xabc"))
	assert.Zero(t, o.GetReputation(context.Background(), "0xabc").Score)
}

func TestOracle_GetReputation(t *testing.T) {
	srv := newRPCServer(t, "0x"+encodeWord(42)+encodeWord(9)+encodeWord(1700000000))
	defer srv.Close()

	o := NewOracle(config.IdentityConfig{
		RPCEndpoint:        srv.URL,
		ReputationRegistry: "0x2222222222222222222222222222222222222222",
	})

	rep := o.GetReputation(context.Background(), "0xabc")
	assert.Equal(t, 42, rep.Score)
	assert.Equal(t, 9, rep.Contributions)
}

func TestOracle_GetReputation_RPCDown(t *testing.T) {
	o := NewOracle(config.IdentityConfig{
		RPCEndpoint:        "http://127.0.0.1:1",
		ReputationRegistry: "0x2222222222222222222222222222222222222222",
	})

	rep := o.GetReputation(context.Background(), "0xabc")
	assert.Zero(t, rep.Score, "chain failures degrade to zero reputation")
}

func TestOracle_VerifyAgent(t *testing.T) {
	srv := newRPCServer(t, encodeIdentityResult(7, "worker-bee", 1700000000))
	defer srv.Close()

	o := NewOracle(config.IdentityConfig{
		RPCEndpoint:      srv.URL,
		IdentityRegistry: "0x1111111111111111111111111111111111111111",
	})
	ctx := context.Background()

	v := o.VerifyAgent(ctx, "Worker-Bee", "0xabc")
	assert.True(t, v.Verified, "name match is case-insensitive")

	v = o.VerifyAgent(ctx, "drone", "0xabc")
	assert.False(t, v.Verified)
	assert.Contains(t, v.Reason, "does not match")
}

func TestPadAddress(t *testing.T) {
	got := padAddress("0xAbC123")
	assert.Len(t, got, 64)
	assert.True(t, strings.HasSuffix(got, "abc123"))
}
