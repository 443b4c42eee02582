package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/menu-bot/internal/config"
	"github.com/Sternrassler/menu-bot/internal/testutil"
)

func newCatalogOptions(t *testing.T, mock *testutil.MockUpstream, format string) *RootOptions {
	t.Helper()
	t.Setenv("API_BASE_URL", mock.URL())
	t.Setenv("STORE_SLUG", "ysg")
	t.Setenv("FETCH_ATTEMPTS", "1")

	cfg, err := config.Load()
	require.NoError(t, err)
	return &RootOptions{Format: format, Config: cfg}
}

func TestCatalogCommandText(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetCatalog("ysg", testutil.SampleStore, testutil.SampleCategories, testutil.SampleProducts)

	buf := &bytes.Buffer{}
	cmd := NewCatalogCommand(newCatalogOptions(t, mock, "text"))
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "YSG Store")
	assert.Contains(t, output, "📂 Drinks (2)")
	assert.Contains(t, output, "📂 Food (1)")
	assert.Contains(t, output, "📂 Uncategorized (1)")
	assert.Contains(t, output, "  Tea - 3")
	assert.Contains(t, output, "  Coffee - 4 (unavailable)")
	assert.Equal(t, "YSGTelegramBot/1.0", mock.LastUserAgent)
}

func TestCatalogCommandJSON(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetCatalog("ysg", testutil.SampleStore, testutil.SampleCategories, testutil.SampleProducts)

	buf := &bytes.Buffer{}
	cmd := NewCatalogCommand(newCatalogOptions(t, mock, "json"))
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--category", "Food"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string        `json:"status"`
		Data   CatalogOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "YSG Store", resp.Data.Store.Name)
	assert.Equal(t, []string{"Drinks", "Food"}, resp.Data.Categories)
	require.Len(t, resp.Data.Groups, 1)
	assert.Equal(t, "Food", resp.Data.Groups[0].Name)
	require.Len(t, resp.Data.Groups[0].Products, 1)
	assert.Equal(t, "Burger", resp.Data.Groups[0].Products[0].Title)
	assert.Equal(t, "9.50", resp.Data.Groups[0].Products[0].Price)
}

func TestCatalogCommandUnknownCategoryListsEverything(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetCatalog("ysg", testutil.SampleStore, testutil.SampleCategories, testutil.SampleProducts)

	buf := &bytes.Buffer{}
	cmd := NewCatalogCommand(newCatalogOptions(t, mock, "text"))
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--category", "Desserts"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "📂 Desserts (4)")
}

func TestCatalogCommandUpstreamFailure(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse(testutil.StorePath("ysg"), testutil.NewServerErrorResponse())
	mock.SetResponse(testutil.CategoriesPath("ysg"), testutil.NewJSONResponse(testutil.SampleCategories))
	mock.SetResponse(testutil.ProductsPath("ysg"), testutil.NewJSONResponse(testutil.SampleProducts))

	buf := &bytes.Buffer{}
	cmd := NewCatalogCommand(newCatalogOptions(t, mock, "json"))
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	require.Error(t, cmd.Execute())

	var resp Response
	require.NoError(t, json.NewDecoder(buf).Decode(&resp))
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "catalog unavailable")
}
