package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

type ReplayProviderTestSuite struct {
	suite.Suite
	dir      string
	provider *ReplayProvider
}

func TestReplayProviderSuite(t *testing.T) {
	suite.Run(t, new(ReplayProviderTestSuite))
}

func (suite *ReplayProviderTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
	suite.provider = NewReplayProvider(suite.dir)

	suite.writeCSV("BTCUSDT.csv", `time,open,high,low,close,volume
2024-01-01 00:00:00,42000,42100,41900,42050,10
2024-01-01 00:01:00,42050,42200,42000,42150,12
2024-01-01 00:02:00,42150,42300,42100,42250,8
`)
	suite.writeCSV("ETHUSDT.csv", `time,open,high,low,close,volume
2024-01-01 00:00:00,2300,2310,2290,2305,100
2024-01-01 00:01:00,2305,2320,2300,2315,120
`)
}

func (suite *ReplayProviderTestSuite) writeCSV(name, content string) {
	err := os.WriteFile(filepath.Join(suite.dir, name), []byte(content), 0o644)
	suite.Require().NoError(err)
}

func (suite *ReplayProviderTestSuite) TestHistoryReturnsOrderedRange() {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)

	candles, err := suite.provider.History(context.Background(), "BTCUSDT", from, to, types.Interval1m)
	suite.Require().NoError(err)

	suite.Len(candles, 2)
	suite.Equal("BTCUSDT", candles[0].Symbol)
	suite.InDelta(42050.0, candles[0].Close, 0.01)
	suite.InDelta(42150.0, candles[1].Close, 0.01)
	suite.True(candles[0].Time.Before(candles[1].Time))
}

func (suite *ReplayProviderTestSuite) TestHistoryMissingSymbol() {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	_, err := suite.provider.History(context.Background(), "SOLUSDT", from, to, types.Interval1m)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNoMarketData))
}

func (suite *ReplayProviderTestSuite) TestStreamMergesSymbolsInTimeOrder() {
	var received []types.Candle

	for candle, err := range suite.provider.Stream(context.Background(), []string{"BTCUSDT", "ETHUSDT"}, types.Interval1m) {
		suite.Require().NoError(err)

		received = append(received, candle)
	}

	suite.Len(received, 5)

	for i := 1; i < len(received); i++ {
		suite.False(received[i].Time.Before(received[i-1].Time),
			"candles must be yielded in non-decreasing time order")
	}

	// Same timestamp orders by symbol, so BTCUSDT leads each pair.
	suite.Equal("BTCUSDT", received[0].Symbol)
	suite.Equal("ETHUSDT", received[1].Symbol)
}

func (suite *ReplayProviderTestSuite) TestStreamStopsWhenConsumerBreaks() {
	count := 0

	for _, err := range suite.provider.Stream(context.Background(), []string{"BTCUSDT"}, types.Interval1m) {
		suite.Require().NoError(err)

		count++
		if count == 1 {
			break
		}
	}

	suite.Equal(1, count)
}

func (suite *ReplayProviderTestSuite) TestStreamNoSymbols() {
	var streamErr error

	for _, err := range suite.provider.Stream(context.Background(), nil, types.Interval1m) {
		streamErr = err
	}

	suite.Require().Error(streamErr)
	suite.True(errors.HasCode(streamErr, errors.ErrCodeNoSymbols))
}
