package binance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectEventTypeRecognizesEveryStream(t *testing.T) {
	c := NewWSClient(nil)
	cases := map[string]string{
		"btcusdt@kline_1m":   "kline",
		"btcusdt@trade":      "trade",
		"btcusdt@depth20":    "depthUpdate",
		"btcusdt@miniTicker": "24hrMiniTicker",
		"!miniTicker@arr":    "24hrMiniTicker",
		"no-at-sign":         "",
	}
	for stream, want := range cases {
		assert.Equal(t, want, c.detectEventType(stream), "stream %s", stream)
	}
}

func TestNewWSClientUsesDefaultHandlerWhenNil(t *testing.T) {
	c := NewWSClient(nil)
	require.NotNil(t, c)
	assert.False(t, c.IsConnected())
	assert.Empty(t, c.GetSubscriptions())
}

func TestNewKlineWSClientBuildsLowercaseStreamNames(t *testing.T) {
	c := NewKlineWSClient("BTCUSDT", []string{"1m", "5m"}, nil)
	subs := c.GetSubscriptions()
	assert.ElementsMatch(t, []string{"btcusdt@kline_1m", "btcusdt@kline_5m"}, subs)
}

func TestNewMultiSymbolKlineWSClientBuildsCrossProductOfStreams(t *testing.T) {
	c := NewMultiSymbolKlineWSClient([]string{"BTCUSDT", "ETHUSDT"}, []string{"1m"}, nil)
	subs := c.GetSubscriptions()
	assert.ElementsMatch(t, []string{"btcusdt@kline_1m", "ethusdt@kline_1m"}, subs)
}

func TestKlineHandlerInvokesConfiguredCallback(t *testing.T) {
	var got KlineEvent
	called := false
	h := &KlineHandler{OnKlineFunc: func(e KlineEvent) {
		called = true
		got = e
	}}
	h.OnKline(KlineEvent{Symbol: "BTCUSDT"})
	assert.True(t, called)
	assert.Equal(t, "BTCUSDT", got.Symbol)
}

func TestKlineHandlerToleratesNilCallback(t *testing.T) {
	h := &KlineHandler{}
	assert.NotPanics(t, func() { h.OnKline(KlineEvent{}) })
}

func TestMultiSymbolKlineHandlerPassesSymbolThrough(t *testing.T) {
	var gotSymbol string
	h := &MultiSymbolKlineHandler{OnKlineFunc: func(symbol string, e KlineEvent) {
		gotSymbol = symbol
	}}
	h.OnKline(KlineEvent{Symbol: "ETHUSDT"})
	assert.Equal(t, "ETHUSDT", gotSymbol)
}

func TestWithWSTestnetSwitchesBaseURL(t *testing.T) {
	c := NewWSClient(nil, WithWSTestnet(true))
	assert.Equal(t, WSBaseURLTestnet, c.baseURL)
}

func TestWithListenKeySetsField(t *testing.T) {
	c := NewWSClient(nil, WithListenKey("abc123"))
	assert.Equal(t, "abc123", c.listenKey)
}
