package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pans-scales-server/internal/config"
	"github.com/pans-scales-server/internal/domain"
	"github.com/pans-scales-server/pkg/scales"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func newLiteServer(t *testing.T, persist bool) *LiteServer {
	t.Helper()
	cfg := &config.LiteConfig{
		DataDir:       t.TempDir(),
		Persist:       persist,
		SaveTimeout:   time.Second,
		CacheMaxItems: 16,
		CacheTTL:      time.Minute,
		LogLevel:      "error",
		LogFormat:     "text",
	}
	s, err := NewLiteServer(cfg, testLogger(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func cbiForm(v int) scales.CBIForm {
	form := scales.CBIForm{Ratings: map[string]int{}}
	for _, item := range scales.CBICatalog.Items {
		form.Ratings[item.Key] = v
	}
	return form
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestNewServer_RegistersTools(t *testing.T) {
	s := newLiteServer(t, false)

	assert.Equal(t, []string{
		ToolScoreSymptomScale,
		ToolScoreDiagnosticCriteria,
		ToolScorePANS31,
		ToolScorePTEC,
		ToolScoreCBI,
		ToolListInstruments,
		ToolGetResult,
		ToolListResults,
		ToolExportResults,
	}, s.ToolNames())
	assert.NotNil(t, s.MCPServer())
}

func TestScoreCBI_PersistsByDefault(t *testing.T) {
	s := newLiteServer(t, true)
	ctx := context.Background()

	res, _, err := s.handleScoreCBI(ctx, nil, CBIInput{Answers: cbiForm(2), SubjectID: "s-1"})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var resp struct {
		ResultID string `json:"result_id"`
		Summary  struct {
			Total    int    `json:"total"`
			Severity string `json:"severity"`
		} `json:"summary"`
		Save struct {
			Saved bool `json:"saved"`
		} `json:"save"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &resp))
	assert.Equal(t, 48, resp.Summary.Total)
	assert.Equal(t, "high", resp.Summary.Severity)
	assert.True(t, resp.Save.Saved)
	require.NotEmpty(t, resp.ResultID)

	got, _, err := s.handleGetResult(ctx, nil, GetResultInput{ID: resp.ResultID})
	require.NoError(t, err)
	assert.False(t, got.IsError)
	assert.Contains(t, resultText(t, got), `"subject_id": "s-1"`)

	list, _, err := s.handleListResults(ctx, nil, ListResultsInput{Instrument: "cbi"})
	require.NoError(t, err)
	assert.Contains(t, resultText(t, list), `"count": 1`)
}

func TestScoreCBI_PersistOverride(t *testing.T) {
	s := newLiteServer(t, true)
	off := false

	res, _, err := s.handleScoreCBI(context.Background(), nil, CBIInput{Answers: cbiForm(1), Persist: &off})
	require.NoError(t, err)
	assert.NotContains(t, resultText(t, res), "result_id")

	list, _, err := s.handleListResults(context.Background(), nil, ListResultsInput{})
	require.NoError(t, err)
	assert.Contains(t, resultText(t, list), `"count": 0`)
}

func TestScoreTools_InputErrors(t *testing.T) {
	s := newLiteServer(t, false)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() (*mcp.CallToolResult, any, error)
		want string
	}{
		{
			name: "missing cbi items",
			call: func() (*mcp.CallToolResult, any, error) {
				return s.handleScoreCBI(ctx, nil, CBIInput{Answers: scales.CBIForm{Ratings: map[string]int{}}})
			},
			want: "required answer(s) missing",
		},
		{
			name: "cbi rating out of range",
			call: func() (*mcp.CallToolResult, any, error) {
				return s.handleScoreCBI(ctx, nil, CBIInput{Answers: cbiForm(5)})
			},
			want: "expected 0-4",
		},
		{
			name: "unknown instrument description",
			call: func() (*mcp.CallToolResult, any, error) {
				return s.handleListInstruments(ctx, nil, ListInstrumentsInput{Kind: "ybocs"})
			},
			want: "unknown instrument",
		},
		{
			name: "empty result id",
			call: func() (*mcp.CallToolResult, any, error) {
				return s.handleGetResult(ctx, nil, GetResultInput{})
			},
			want: "id",
		},
		{
			name: "missing result",
			call: func() (*mcp.CallToolResult, any, error) {
				return s.handleGetResult(ctx, nil, GetResultInput{ID: "nope"})
			},
			want: "not found",
		},
		{
			name: "bad list filter",
			call: func() (*mcp.CallToolResult, any, error) {
				return s.handleListResults(ctx, nil, ListResultsInput{Instrument: "ybocs"})
			},
			want: "unknown instrument",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _, err := tt.call()
			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Contains(t, resultText(t, res), tt.want)
		})
	}
}

func TestListInstruments(t *testing.T) {
	s := newLiteServer(t, false)

	res, _, err := s.handleListInstruments(context.Background(), nil, ListInstrumentsInput{})
	require.NoError(t, err)
	var all struct {
		Instruments []scales.InstrumentInfo `json:"instruments"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &all))
	assert.Len(t, all.Instruments, 5)

	res, _, err = s.handleListInstruments(context.Background(), nil, ListInstrumentsInput{Kind: "ptec"})
	require.NoError(t, err)
	var one scales.InstrumentInfo
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &one))
	assert.Equal(t, 102, one.ItemCount)
	assert.Equal(t, 306, one.MaxTotal)
}

func TestExportResults(t *testing.T) {
	s := newLiteServer(t, true)
	ctx := context.Background()

	_, _, err := s.handleScoreCBI(ctx, nil, CBIInput{Answers: cbiForm(3)})
	require.NoError(t, err)

	res, _, err := s.handleExportResults(ctx, nil, ExportResultsInput{FileName: "out.json"})
	require.NoError(t, err)
	require.False(t, res.IsError)

	var out struct {
		Path string `json:"path"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"count": 1`)

	bad, _, err := s.handleExportResults(ctx, nil, ExportResultsInput{FileName: "../escape.json"})
	require.NoError(t, err)
	assert.True(t, bad.IsError)
}

func TestScoreTools_AdvertiseRatingRange(t *testing.T) {
	s := newLiteServer(t, false)

	tests := []struct {
		tool  string
		input any
		scale domain.Scale
	}{
		{ToolScoreSymptomScale, SymptomScaleInput{}, domain.SymptomScaleRating},
		{ToolScoreDiagnosticCriteria, DiagnosticInput{}, domain.CriterionSeverity},
		{ToolScorePANS31, PANS31Input{}, domain.PANS31Rating},
		{ToolScorePTEC, PTECInput{}, domain.PTECRating},
		{ToolScoreCBI, CBIInput{}, domain.CBIRating},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			want := fmt.Sprintf("0-%d", tt.scale.Max)

			desc, ok := s.ToolDescription(tt.tool)
			require.True(t, ok)
			assert.Contains(t, desc, want)

			field, ok := reflect.TypeOf(tt.input).FieldByName("Answers")
			require.True(t, ok)
			assert.Contains(t, field.Tag.Get("jsonschema"), want)
		})
	}

	assert.Contains(t, symptomScaleDescription(), "0-5")
	_, ok := s.ToolDescription("missing")
	assert.False(t, ok)
}
