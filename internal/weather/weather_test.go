package weather

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

func TestStaticLookupKnownPlaceIgnoresCaseAndSpace(t *testing.T) {
	p := NewStatic(0)
	for _, in := range []string{"Gondar", "gondar", "  GONDAR\t", "gOnDaR "} {
		d, err := p.Lookup(context.Background(), in)
		require.NoError(t, err)
		require.Equal(t, "Gondar", d.Location)
		require.Equal(t, "26°C", d.Temperature)
		require.Equal(t, "Partly cloudy", d.Condition)
	}
}

func TestStaticLookupUnknownPlaceFallsBack(t *testing.T) {
	p := NewStatic(0)
	for _, in := range []string{"Mekele", "Atlantis", "x"} {
		d, err := p.Lookup(context.Background(), in)
		require.NoError(t, err)
		require.Equal(t, DefaultLocation, d.Location)
		require.NoError(t, d.Check())
	}
}

func TestStaticLookupEmpty(t *testing.T) {
	_, err := NewStatic(0).Lookup(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyLocation)
}

func TestStaticLookupHonoursContext(t *testing.T) {
	p := NewStatic(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Lookup(ctx, "Axum")
	require.ErrorIs(t, err, context.Canceled)
}

func TestStaticLookupReturnsCopies(t *testing.T) {
	p := NewStatic(0)
	d, err := p.Lookup(context.Background(), "Lalibela")
	require.NoError(t, err)
	d.Forecast[0].Condition = "Snow"

	again, err := p.Lookup(context.Background(), "Lalibela")
	require.NoError(t, err)
	require.Equal(t, "Clear", again.Forecast[0].Condition)
}

func TestExtractLocation(t *testing.T) {
	cases := []struct {
		in    string
		want  string
		found bool
	}{
		{"What's the weather in Lalibela?", "Lalibela", true},
		{"weather in bahir   dar please", "Bahir Dar", true},
		{"Is it hot in the Danakil?", "Danakil Depression", true},
		{"forecast for Mekele tomorrow", "mekele", true},
		{"Check weather", "", false},
		{"What's the weather like today?", "", false},
		{"weather in the afternoon", "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractLocation(tc.in)
		require.Equal(t, tc.found, ok, "ExtractLocation(%q)", tc.in)
		require.Equal(t, tc.want, got, "ExtractLocation(%q)", tc.in)
	}
}

func TestLocationsOrder(t *testing.T) {
	locs := Locations()
	require.Equal(t, "Addis Ababa", locs[0])
	require.Len(t, locs, 8)
}

type fakeCaller struct {
	result *mcp.CallToolResult
	err    error
	got    mcp.CallToolRequest
	closed bool
}

func (f *fakeCaller) CallTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.got = req
	return f.result, f.err
}

func (f *fakeCaller) Close() error {
	f.closed = true
	return nil
}

func TestMCPLookupDecodesToolResult(t *testing.T) {
	caller := &fakeCaller{result: &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: `{"location":"Harar","temperature":"29°C","condition":"Windy","humidity":"20%"}`}},
	}}
	p := NewMCP(caller, "", NewStatic(0))

	d, err := p.Lookup(context.Background(), "Harar")
	require.NoError(t, err)
	require.Equal(t, "Windy", d.Condition)
	require.Equal(t, "get_weather", caller.got.Params.Name)
	require.Equal(t, map[string]any{"location": "Harar"}, caller.got.Params.Arguments)

	require.NoError(t, p.Close())
	require.True(t, caller.closed)
}

func TestMCPLookupFallsBack(t *testing.T) {
	cases := map[string]*fakeCaller{
		"call error": {err: errors.New("boom")},
		"tool error": {result: &mcp.CallToolResult{IsError: true, Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "quota"}}}},
		"bad json":   {result: &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "sunny"}}}},
		"nil result": {},
	}
	for name, caller := range cases {
		t.Run(name, func(t *testing.T) {
			d, err := NewMCP(caller, "weather", NewStatic(0)).Lookup(context.Background(), "Gondar")
			require.NoError(t, err)
			require.Equal(t, "Gondar", d.Location)
			require.Equal(t, "26°C", d.Temperature)
		})
	}
}

func TestMCPLookupWithoutFallback(t *testing.T) {
	_, err := NewMCP(&fakeCaller{err: errors.New("down")}, "", nil).Lookup(context.Background(), "Gondar")
	require.Error(t, err)
}
