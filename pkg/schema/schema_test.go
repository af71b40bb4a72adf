package schema

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseTestSchema(t *testing.T) *Schema {
	t.Helper()
	sch, err := ParseFile(filepath.Join("testdata", "orders.proto"), []string{"testdata"})
	require.NoError(t, err)
	return sch
}

func TestParseFile(t *testing.T) {
	sch := parseTestSchema(t)
	assert.Equal(t, 2, sch.ServiceCount())
	assert.Equal(t, 5, sch.MethodCount())
}

func TestParseEmpty(t *testing.T) {
	sch, err := Parse(nil, nil)
	assert.ErrorIs(t, err, ErrNoProtoFiles)
	assert.Nil(t, sch)
}

func TestParseFileNotFound(t *testing.T) {
	sch, err := ParseFile("/nonexistent/path/to/file.proto", nil)
	assert.Error(t, err)
	assert.Nil(t, sch)
}

func TestListServices(t *testing.T) {
	sch := parseTestSchema(t)

	services := sch.ListServices()
	assert.Equal(t, []string{"orders.HealthService", "orders.OrderService"}, services)
}

func TestGetService(t *testing.T) {
	sch := parseTestSchema(t)

	svc := sch.GetService("orders.OrderService")
	require.NotNil(t, svc)
	assert.Equal(t, "orders.OrderService", svc.Name)

	assert.Nil(t, sch.GetService("orders.NoSuchService"))
}

func TestMethodStreamingFlags(t *testing.T) {
	sch := parseTestSchema(t)
	svc := sch.GetService("orders.OrderService")
	require.NotNil(t, svc)

	tests := []struct {
		method string
		kind   string
		unary  bool
		client bool
		server bool
		bidi   bool
	}{
		{"GetOrder", "unary", true, false, false, false},
		{"WatchOrders", "server_streaming", false, false, true, false},
		{"UploadOrders", "client_streaming", false, true, false, false},
		{"SyncOrders", "bidirectional", false, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			m := svc.GetMethod(tt.method)
			require.NotNil(t, m)
			assert.Equal(t, tt.kind, m.StreamKind())
			assert.Equal(t, tt.unary, m.IsUnary())
			assert.Equal(t, tt.client, m.IsClientStreaming())
			assert.Equal(t, tt.server, m.IsServerStreaming())
			assert.Equal(t, tt.bidi, m.IsBidirectional())
		})
	}
}

func TestMethodTypes(t *testing.T) {
	sch := parseTestSchema(t)
	m := sch.GetService("orders.OrderService").GetMethod("GetOrder")
	require.NotNil(t, m)

	assert.Equal(t, "orders.GetOrderRequest", m.InputType)
	assert.Equal(t, "orders.Order", m.OutputType)
	require.NotNil(t, m.Input())
	require.NotNil(t, m.Output())
	assert.Equal(t, "orders.Order", string(m.Output().FullName()))
}

func TestListMethodsSorted(t *testing.T) {
	sch := parseTestSchema(t)
	svc := sch.GetService("orders.OrderService")

	assert.Equal(t, []string{"GetOrder", "SyncOrders", "UploadOrders", "WatchOrders"}, svc.ListMethods())
}

func TestFindMessage(t *testing.T) {
	sch := parseTestSchema(t)

	md := sch.FindMessage("orders.Order")
	require.NotNil(t, md)
	assert.Equal(t, "orders.Order", string(md.FullName()))

	// Imported types resolve through the compiled file set.
	money := sch.FindMessage("common.Money")
	require.NotNil(t, money)

	assert.Nil(t, sch.FindMessage("orders.NoSuchMessage"))
}

func TestImportResolution(t *testing.T) {
	sch := parseTestSchema(t)

	order := sch.FindMessage("orders.Order")
	require.NotNil(t, order)
	total := order.Fields().ByName("total")
	require.NotNil(t, total)
	assert.Equal(t, "common.Money", string(total.Message().FullName()))
}
