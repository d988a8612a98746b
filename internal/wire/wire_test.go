package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip_Sizes(t *testing.T) {
	sizes := []int{0, 1, 15, 4096, 64 << 10, (64 << 10) + 7, 1 << 20}

	for _, n := range sizes {
		payload := bytes.Repeat([]byte("x"), n)

		var buf bytes.Buffer
		require.NoError(t, WriteFrame(&buf, payload))

		got, err := ReadFrame(&buf)
		require.NoError(t, err, "size %d", n)
		assert.Equal(t, payload, got, "size %d", n)
	}
}

func TestFrameRoundTrip_MultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	frames := [][]byte{
		[]byte(`{"command":"get_stats"}`),
		{},
		bytes.Repeat([]byte("a"), 70000),
		[]byte(`{"command":"clear_data"}`),
	}
	for _, f := range frames {
		require.NoError(t, WriteFrame(&buf, f))
	}

	for i, want := range frames {
		got, err := ReadFrame(&buf)
		require.NoError(t, err, "frame %d", i)
		assert.Equal(t, want, got, "frame %d boundary", i)
	}

	_, err := ReadFrame(&buf)
	assert.Equal(t, io.EOF, err, "clean EOF after last frame")
}

func TestReadFrame_TruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], 100)
	buf.Write(hdr[:])
	buf.WriteString("short")

	_, err := ReadFrame(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload")
}

func TestReadFrame_OversizedLength(t *testing.T) {
	var buf bytes.Buffer
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], MaxFrameSize+1)
	buf.Write(hdr[:])

	_, err := ReadFrame(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds limit")
}

func TestEncodeDecodeMessage(t *testing.T) {
	enq := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	visit := Visit{
		URL:             "https://example.com/doc",
		Title:           "Doc",
		VisitTime:       enq.Add(-90 * time.Second),
		LeaveTime:       enq,
		DurationSeconds: 90,
		TabID:           7,
		IsActive:        true,
		ActiveSeconds:   90,
	}
	item, err := NewItem(KindVisit, visit, enq)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &Message{Command: CmdSaveBrowserData, Data: []Item{item}}))

	got, err := DecodeMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, CmdSaveBrowserData, got.Command)
	require.Len(t, got.Data, 1)
	assert.Equal(t, KindVisit, got.Data[0].Kind)

	var gotVisit Visit
	require.NoError(t, got.Data[0].DecodePayload(&gotVisit))
	assert.Equal(t, visit, gotVisit)
}

func TestEncodeDecodeResponse_StatsFlattened(t *testing.T) {
	resp := &Response{
		Status:  StatusSuccess,
		Command: CmdGetStats,
		Stats: &Stats{
			SitesVisited:     12,
			TotalTimeSeconds: 3600,
			SearchQueries:    4,
			ApplicationsUsed: 3,
			TopSites:         []TopSite{{URL: "https://example.com", Title: "Example", Time: 1200}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, resp))

	// Stats fields are flattened into the response object, matching the
	// documented get_stats result shape.
	payload, err := ReadFrame(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.Equal(t, float64(12), raw["sites_visited"])
	assert.Equal(t, float64(3600), raw["total_time_seconds"])

	got, err := DecodeResponse(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, got.Status)
	require.NotNil(t, got.Stats)
	assert.Equal(t, 12, got.SitesVisited)
	require.Len(t, got.TopSites, 1)
	assert.Equal(t, int64(1200), got.TopSites[0].Time)
}

func TestCommandKnown(t *testing.T) {
	for _, c := range []Command{
		CmdSaveBrowserData, CmdGetStats, CmdUpdateSettings,
		CmdClearData, CmdExportData, CmdStartAppTracking, CmdStopAppTracking,
	} {
		assert.True(t, c.Known(), string(c))
	}
	assert.False(t, Command("reboot").Known())
	assert.False(t, Command("").Known())
}

func TestWriteFrame_RejectsOversized(t *testing.T) {
	err := WriteFrame(io.Discard, make([]byte, MaxFrameSize+1))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "too large"))
}
