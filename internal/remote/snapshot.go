package remote

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/joescharf/pomo/internal/models"
)

// DecodeSnapshot parses a timer status body. Missing or malformed fields fall
// back to WORK, STOPPED and 0 instead of failing; a body that is not a JSON
// object yields the zero session. A missing total stays 0 so the caller can
// fill it from the configured durations.
func DecodeSnapshot(data []byte) models.Snapshot {
	var raw map[string]json.RawMessage
	_ = json.Unmarshal(data, &raw)

	snap := models.Snapshot{
		SessionType: models.SessionWork,
		State:       models.StateStopped,
		Source:      models.SourceRemote,
	}

	if t := models.SessionType(rawString(raw["sessionType"])); t.Valid() {
		snap.SessionType = t
	}

	total, hasTotal := rawInt(raw["totalDurationSeconds"])
	remaining, _ := rawInt(raw["remainingSeconds"])
	completed, _ := rawInt(raw["completedWorkSessions"])

	state := rawString(raw["state"])
	switch {
	case state == "COMPLETED":
		remaining = 0
	case models.TimerState(state).Valid():
		snap.State = models.TimerState(state)
	}

	if hasTotal && total < remaining {
		total = remaining
	}
	snap.TotalDurationSeconds = total
	snap.RemainingSeconds = remaining
	snap.CompletedWorkSessions = completed
	return snap
}

func rawString(msg json.RawMessage) string {
	var s string
	if len(msg) == 0 || json.Unmarshal(msg, &s) != nil {
		return ""
	}
	return s
}

// rawInt accepts JSON numbers and numeric strings. Negative and non-finite
// values clamp to 0.
func rawInt(msg json.RawMessage) (int, bool) {
	if len(msg) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(msg, &f); err != nil {
		var s string
		if json.Unmarshal(msg, &s) != nil {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, true
	}
	if f > math.MaxInt32 {
		f = math.MaxInt32
	}
	return int(f), true
}
