// Package wire implements the framed message protocol spoken between the
// capture side and the ingestion host: a 4-byte little-endian length prefix
// followed by that many bytes of UTF-8 JSON. Both directions use the same
// framing.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MaxFrameSize caps a single frame payload. A length prefix above this is
// treated as a corrupt stream rather than an allocation request.
const MaxFrameSize = 32 << 20 // 32 MiB

// Command identifies one of the enumerated host commands. The set is closed;
// dispatch switches over these constants exhaustively and anything else is
// answered with an error status.
type Command string

const (
	CmdSaveBrowserData  Command = "save_browser_data"
	CmdGetStats         Command = "get_stats"
	CmdUpdateSettings   Command = "update_settings"
	CmdClearData        Command = "clear_data"
	CmdExportData       Command = "export_data"
	CmdStartAppTracking Command = "start_app_tracking"
	CmdStopAppTracking  Command = "stop_app_tracking"
)

// Known reports whether c is one of the enumerated commands.
func (c Command) Known() bool {
	switch c {
	case CmdSaveBrowserData, CmdGetStats, CmdUpdateSettings,
		CmdClearData, CmdExportData, CmdStartAppTracking, CmdStopAppTracking:
		return true
	}
	return false
}

// Message is one request frame from the capture side to the host.
type Message struct {
	Command  Command        `json:"command"`
	Data     []Item         `json:"data,omitempty"`
	Settings *SettingsPatch `json:"settings,omitempty"`
}

// Status is the outcome field carried on every response frame.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusBusy    Status = "busy"
)

// Response is one reply frame from the host. The host answers every request,
// echoing the command so the sender can match replies to its single
// outstanding request/response call.
type Response struct {
	Status  Status  `json:"status"`
	Command Command `json:"command,omitempty"`
	Message string  `json:"message,omitempty"`
	Saved   int     `json:"saved,omitempty"`

	*Stats
}

// Stats is the get_stats result: aggregates over the current local day.
type Stats struct {
	SitesVisited     int       `json:"sites_visited"`
	TotalTimeSeconds int64     `json:"total_time_seconds"`
	SearchQueries    int       `json:"search_queries"`
	ApplicationsUsed int       `json:"applications_used"`
	TopSites         []TopSite `json:"top_sites"`
}

// TopSite is one entry of the by-time site ranking.
type TopSite struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Time  int64  `json:"time"`
}

// SettingsPatch carries the fields of an update_settings request. Nil fields
// are left unchanged.
type SettingsPatch struct {
	TrackingEnabled *bool `json:"tracking_enabled,omitempty"`
	RetentionDays   *int  `json:"data_retention_days,omitempty"`
}

// WriteFrame writes one length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", len(payload))
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame. io.EOF is returned unchanged
// when the stream ends cleanly on a frame boundary.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("frame length %d exceeds limit", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}

// Encode marshals v and writes it as one frame.
func Encode(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return WriteFrame(w, payload)
}

// DecodeMessage reads one frame and unmarshals it as a request Message.
func DecodeMessage(r io.Reader) (*Message, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &msg, nil
}

// DecodeResponse reads one frame and unmarshals it as a Response.
func DecodeResponse(r io.Reader) (*Response, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}

// ErrorResponse builds an error reply for a command.
func ErrorResponse(cmd Command, err error) *Response {
	return &Response{Status: StatusError, Command: cmd, Message: err.Error()}
}
