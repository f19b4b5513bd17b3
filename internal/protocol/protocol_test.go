package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"Beacon/internal/models"
	apperrors "Beacon/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"type":"acknowledge_alert","alert_id":"a-1"}`))
	require.NoError(t, err)
	assert.Equal(t, CommandAcknowledge, cmd.Type)

	var p AlertIDPayload
	require.NoError(t, cmd.Decode(&p))
	assert.Equal(t, "a-1", p.AlertID)
}

func TestParseCommandRejects(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":     `{"type":`,
		"missing type": `{"alert_id":"a-1"}`,
		"empty type":   `{"type":""}`,
	} {
		_, err := ParseCommand([]byte(raw))
		assert.True(t, apperrors.HasCode(err, apperrors.CodeMalformedCommand), name)
	}
}

func TestDecodeWrongShape(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"type":"chat_message","message":42}`))
	require.NoError(t, err)
	var p ChatPayload
	err = cmd.Decode(&p)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMalformedCommand))
}

func TestErrorReplyHidesInternalDetail(t *testing.T) {
	data, err := Error("resolve_alert", errors.New("pq: connection refused")).Encode()
	require.NoError(t, err)

	var out struct {
		Type string    `json:"type"`
		Data ErrorData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, ReplyError, out.Type)
	assert.Equal(t, apperrors.CodeInternal, out.Data.Code)
	assert.NotContains(t, out.Data.Message, "pq")
	assert.Equal(t, "resolve_alert", out.Data.Command)
}

func TestListsAreNeverNull(t *testing.T) {
	data, err := json.Marshal(MapList(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"alerts":[],"count":0}`, string(data))

	data, err = json.Marshal(AlertList(nil, time.Now()))
	require.NoError(t, err)
	assert.JSONEq(t, `{"alerts":[],"count":0}`, string(data))

	h := ChatHistory("a-1", []models.ChatMessage{{ID: "m-1", AlertID: "a-1", Text: "hi"}})
	require.Len(t, h.Messages, 1)
	assert.Equal(t, "hi", h.Messages[0].Message)
}
