package jwt

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"koo/pkg/back"
	"koo/pkg/util/myjwt"
	"koo/pkg/xerr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) (*gin.Engine, *myjwt.Signer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	signer, err := myjwt.NewSigner("secret", "koo", 1)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", Auth(signer), func(c *gin.Context) {
		back.Success(c, gin.H{"subject": c.GetString(CtxSubject), "username": c.GetString(CtxUsername)})
	})
	return r, signer
}

func call(r *gin.Engine, header string) back.Response {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var resp back.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func TestAuth(t *testing.T) {
	r, signer := newEngine(t)

	assert.Equal(t, xerr.Unauthorized, call(r, "").Code)
	assert.Equal(t, xerr.Unauthorized, call(r, "Token abc").Code)
	assert.Equal(t, xerr.Unauthorized, call(r, "Bearer not-a-jwt").Code)

	tok, err := signer.GenerateToken("u-1", "ops")
	require.NoError(t, err)
	resp := call(r, "Bearer "+tok)
	assert.Equal(t, xerr.OK, resp.Code)
	assert.Equal(t, map[string]any{"subject": "u-1", "username": "ops"}, resp.Data)
}
