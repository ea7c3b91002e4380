package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordStreamWriteIncrementsByLabel(t *testing.T) {
	before := testutil.ToFloat64(streamWritesTotal.WithLabelValues("messages"))
	RecordStreamWrite("messages")
	require.Equal(t, before+1, testutil.ToFloat64(streamWritesTotal.WithLabelValues("messages")))
}

func TestRecordDownloadTracksOutcomesSeparately(t *testing.T) {
	beforeDone := testutil.ToFloat64(downloadsTotal.WithLabelValues("done"))
	beforeFailed := testutil.ToFloat64(downloadsTotal.WithLabelValues("failed"))
	RecordDownload("done")
	RecordDownload("failed")
	RecordDownload("failed")
	require.Equal(t, beforeDone+1, testutil.ToFloat64(downloadsTotal.WithLabelValues("done")))
	require.Equal(t, beforeFailed+2, testutil.ToFloat64(downloadsTotal.WithLabelValues("failed")))
}

func TestUpdateTrackerPendingSetsGauge(t *testing.T) {
	UpdateTrackerPending(7)
	require.Equal(t, float64(7), testutil.ToFloat64(trackerPending))
	UpdateTrackerPending(0)
	require.Equal(t, float64(0), testutil.ToFloat64(trackerPending))
}

func TestCatchupChannelsActiveTracksDeltas(t *testing.T) {
	SetCatchupChannelsActive(0)
	IncCatchupChannelsActive(1)
	IncCatchupChannelsActive(1)
	IncCatchupChannelsActive(-1)
	require.Equal(t, float64(1), testutil.ToFloat64(catchupChannelsActive))
}

func TestRecordCatchupMessageAccumulatesPerGuild(t *testing.T) {
	before := testutil.ToFloat64(catchupMessagesTotal.WithLabelValues("123"))
	RecordCatchupMessage("123", 5)
	RecordCatchupMessage("123", 3)
	require.Equal(t, before+8, testutil.ToFloat64(catchupMessagesTotal.WithLabelValues("123")))
}
