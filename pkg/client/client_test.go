package client

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberworks/ember-store/internal/api"
	"github.com/emberworks/ember-store/internal/engine"
)

func newTestDaemon(t *testing.T) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &api.Handler{Store: engine.NewFileStore(nil, nil)}
	r := gin.New()
	h.Register(r.Group("/api"))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestClientCRUD(t *testing.T) {
	c := newTestDaemon(t)

	record, err := c.Create("User", map[string]any{"email": "remote@example.com"})
	require.NoError(t, err)
	id, _ := record["id"].(string)
	require.NotEmpty(t, id)

	got, err := c.Get("User", id)
	require.NoError(t, err)
	assert.Equal(t, "remote@example.com", got["email"])

	updated, err := c.Update("User", id, map[string]any{"first_name": "Remy"})
	require.NoError(t, err)
	assert.Equal(t, "Remy", updated["first_name"])

	all, err := c.All("User")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Contains(t, all, engine.Key("User", id))

	total, counts, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, counts["User"])

	require.NoError(t, c.Delete("User", id))
	_, err = c.Get("User", id)
	assert.Error(t, err)
}

func TestClientTypes(t *testing.T) {
	c := newTestDaemon(t)

	names, err := c.Types()
	require.NoError(t, err)
	assert.Contains(t, names, "User")
}

func TestClientUnknownType(t *testing.T) {
	c := newTestDaemon(t)

	_, err := c.Create("Ghost", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestClientSaveReload(t *testing.T) {
	c := newTestDaemon(t)

	require.NoError(t, c.Save())
	require.NoError(t, c.Reload())
}
