package e2e

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// E2ETestSuite drives the running server over HTTP
type E2ETestSuite struct {
	suite.Suite
	client *http.Client
}

type response struct {
	Status int
	Body   map[string]any
}

// SetupSuite runs once before all tests
func (suite *E2ETestSuite) SetupSuite() {
	suite.client = &http.Client{}
}

func (suite *E2ETestSuite) do(method, path, token string, body any) response {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(suite.T(), err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, appURL+path, reader)
	require.NoError(suite.T(), err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := suite.client.Do(req)
	require.NoError(suite.T(), err, "%s %s failed", method, path)
	defer resp.Body.Close()

	res := response{Status: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(suite.T(), err)
	if len(raw) > 0 {
		require.NoError(suite.T(), json.Unmarshal(raw, &res.Body), "body: %s", raw)
	}
	return res
}

func (suite *E2ETestSuite) login(name, password string) string {
	res := suite.do("POST", "/auth/login", "", map[string]string{"name": name, "password": password})
	require.Equal(suite.T(), http.StatusOK, res.Status, "login %s: %v", name, res.Body)
	token, ok := res.Body["access_token"].(string)
	require.True(suite.T(), ok, "login response has no token")
	return token
}

// signup registers a fresh user with a unique name and returns its id and token.
func (suite *E2ETestSuite) signup(prefix string) (string, string) {
	name := prefix + "-" + uuid.NewString()[:8]
	res := suite.do("POST", "/auth/register", "", map[string]string{"name": name, "password": "secret"})
	require.Equal(suite.T(), http.StatusCreated, res.Status, "register %s: %v", name, res.Body)
	id := strconv.FormatFloat(res.Body["id"].(float64), 'f', -1, 64)
	return id, suite.login(name, "secret")
}

func (suite *E2ETestSuite) createCategory(token, name string, global bool) string {
	res := suite.do("POST", "/category", token, map[string]any{"name": name, "is_global": global})
	require.Equal(suite.T(), http.StatusCreated, res.Status, "create category: %v", res.Body)
	return strconv.FormatFloat(res.Body["id"].(float64), 'f', -1, 64)
}

func categoryNames(res response) []string {
	items, _ := res.Body["items"].([]any)
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.(map[string]any)["name"].(string))
	}
	return names
}

func (suite *E2ETestSuite) TestAdminBootstrap() {
	token := suite.login(adminUser, adminPassword)

	res := suite.do("GET", "/auth/me", token, nil)
	assert.Equal(suite.T(), http.StatusOK, res.Status)
	assert.Equal(suite.T(), adminUser, res.Body["name"])
	assert.Equal(suite.T(), true, res.Body["is_admin"])
}

func (suite *E2ETestSuite) TestPrivateCategoryLifecycle() {
	aliceID, alice := suite.signup("alice")
	bobID, bob := suite.signup("bob")

	food := suite.createCategory(alice, "Food", false)
	transport := suite.createCategory(alice, "Transport", true)

	// Bob cannot see or use Alice's private category.
	list := suite.do("GET", "/category", bob, nil)
	require.Equal(suite.T(), http.StatusOK, list.Status)
	assert.NotContains(suite.T(), categoryNames(list), "Food")
	assert.Contains(suite.T(), categoryNames(list), "Transport")

	res := suite.do("POST", "/record", bob, map[string]any{"user_id": mustInt(bobID), "category_id": mustInt(food), "amount": 10})
	assert.Equal(suite.T(), http.StatusBadRequest, res.Status)
	assert.Equal(suite.T(), "forbidden_category", res.Body["error"])

	res = suite.do("POST", "/record", bob, map[string]any{"category_id": mustInt(transport), "amount": 12.5})
	require.Equal(suite.T(), http.StatusCreated, res.Status, "%v", res.Body)
	assert.Equal(suite.T(), 12.5, res.Body["amount"])

	// Alice's own record goes away with her category.
	res = suite.do("POST", "/record", alice, map[string]any{"user_id": mustInt(aliceID), "category_id": mustInt(food), "amount": 4})
	require.Equal(suite.T(), http.StatusCreated, res.Status, "%v", res.Body)

	res = suite.do("DELETE", "/category/"+food, alice, nil)
	assert.Equal(suite.T(), http.StatusOK, res.Status)

	records := suite.do("GET", "/record?category_id="+food, alice, nil)
	require.Equal(suite.T(), http.StatusOK, records.Status)
	assert.Equal(suite.T(), []any{}, records.Body["items"])
}

func (suite *E2ETestSuite) TestLogoutRevokesToken() {
	_, token := suite.signup("carol")

	res := suite.do("POST", "/auth/logout", token, nil)
	require.Equal(suite.T(), http.StatusOK, res.Status)

	res = suite.do("GET", "/category", token, nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, res.Status)
}

func (suite *E2ETestSuite) TestUnauthenticatedAccess() {
	res := suite.do("GET", "/record", "", nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, res.Status)
	assert.Equal(suite.T(), "missing_token", res.Body["error"])
}

func mustInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		panic(err)
	}
	return n
}

// TestE2ESuite runs the end-to-end test suite
func TestE2ESuite(t *testing.T) {
	suite.Run(t, new(E2ETestSuite))
}
