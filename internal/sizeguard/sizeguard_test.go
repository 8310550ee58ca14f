package sizeguard

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/sv-lint/internal/protocol"
	"github.com/robert-at-pretension-io/sv-lint/internal/source"
)

func requestOf(n int) (protocol.Request, int) {
	req := protocol.NewRequest(protocol.RawText, "a.sv", map[string]string{"text": strings.Repeat("x", n)})
	b, _ := json.Marshal(req)
	return req, len(b)
}

func TestRequestAtLimitIsSent(t *testing.T) {
	req, size := requestOf(100)
	lim := Limits{MaxRequestBytes: size, WarnMarginBytes: 0, MaxResponseBytes: 10, OnExceed: Skip}

	got, out := lim.CheckRequest(protocol.RawText, req, false)
	require.Nil(t, out)
	assert.Len(t, got.Body, size)
	assert.True(t, got.NearLimit)
}

func TestRequestOneByteOver(t *testing.T) {
	req, size := requestOf(100)
	tests := []struct {
		name     string
		required bool
		onExceed OnExceed
		failSkip bool
		sev      protocol.Severity
		status   Status
		failCI   bool
	}{
		{"optional skip", false, Skip, false, protocol.SeverityWarning, Skipped, false},
		{"optional skip fails ci", false, Skip, true, protocol.SeverityWarning, Skipped, true},
		{"policy error", false, Error, false, protocol.SeverityError, Failed, true},
		{"required stage", true, Skip, false, protocol.SeverityError, Failed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lim := Limits{MaxRequestBytes: size - 1, MaxResponseBytes: 10, OnExceed: tt.onExceed, FailCIOnSkip: tt.failSkip}
			got, out := lim.CheckRequest(protocol.RawText, req, tt.required)
			require.NotNil(t, out)
			assert.Nil(t, got.Body)
			assert.Equal(t, tt.status, out.Status)
			assert.Equal(t, tt.failCI, out.FailCI)
			require.Len(t, out.Violations, 1)
			v := out.Violations[0]
			assert.Equal(t, RuleSkippedSize, v.RuleID)
			assert.Equal(t, tt.sev, v.Severity)
			assert.Equal(t, source.FileStart, v.Location)
			assert.Contains(t, v.Message, "Stage 'raw_text' skipped")
			assert.Contains(t, v.Message, "exceeds limit")
		})
	}
}

func TestNearLimit(t *testing.T) {
	req, size := requestOf(10)
	lim := Limits{MaxRequestBytes: size + 10, WarnMarginBytes: 10, MaxResponseBytes: 1, OnExceed: Skip}
	got, out := lim.CheckRequest(protocol.PpText, req, false)
	require.Nil(t, out)
	assert.True(t, got.NearLimit)

	lim.WarnMarginBytes = 9
	got, out = lim.CheckRequest(protocol.PpText, req, false)
	require.Nil(t, out)
	assert.False(t, got.NearLimit)
}

func TestSerializeFailure(t *testing.T) {
	req := protocol.NewRequest(protocol.Ast, "a.sv", math.NaN())
	_, out := DefaultLimits().CheckRequest(protocol.Ast, req, false)
	require.NotNil(t, out)
	assert.Equal(t, Failed, out.Status)
	assert.True(t, out.FailCI)
	assert.Equal(t, RuleSerializeError, out.Violations[0].RuleID)
}

func TestResponseBoundary(t *testing.T) {
	lim := Limits{MaxRequestBytes: 1, MaxResponseBytes: 64, OnExceed: Skip}
	assert.Nil(t, lim.CheckResponse(protocol.Cst, 64))

	out := lim.CheckResponse(protocol.Cst, 65)
	require.NotNil(t, out)
	assert.Equal(t, Failed, out.Status)
	assert.True(t, out.FailCI)
	assert.Equal(t, RuleOutputTooLarge, out.Violations[0].RuleID)
	assert.Equal(t, "Stage 'cst' output 65 bytes exceeds limit 64 bytes.", out.Violations[0].Message)
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultLimits().Validate())

	bad := []Limits{
		{MaxRequestBytes: 0, MaxResponseBytes: 1, OnExceed: Skip},
		{MaxRequestBytes: 1, MaxResponseBytes: 0, OnExceed: Skip},
		{MaxRequestBytes: 1, WarnMarginBytes: 2, MaxResponseBytes: 1, OnExceed: Skip},
		{MaxRequestBytes: 1, MaxResponseBytes: 1, OnExceed: "drop"},
	}
	for _, l := range bad {
		if err := l.Validate(); err == nil {
			t.Fatalf("expected error for %+v", l)
		}
	}
}
