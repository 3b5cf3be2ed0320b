package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePayload(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestUsage_ListsCommands(t *testing.T) {
	var buf bytes.Buffer
	usage(&buf)

	out := buf.String()
	for _, cmd := range []string{"validate", "list", "check", "publish", "help"} {
		assert.Contains(t, out, "  "+cmd+" ")
	}
	assert.Contains(t, out, "Usage: subject-registry <command> [flags]")
}

func TestValidateRegistry_Embedded(t *testing.T) {
	registryPath = ""
	require.NoError(t, validateRegistry())
}

func TestCheckPayload(t *testing.T) {
	registryPath = ""

	tests := []struct {
		name    string
		subject string
		body    string
		wantErr string
	}{
		{
			name:    "single object",
			subject: "notifications.email.invite",
			body:    `{"email":"a@example.com","tempPassword":"x"}`,
		},
		{
			name:    "array of objects",
			subject: "notifications.email.password-reset",
			body:    `[{"email":"a@example.com","otp":"1"},{"email":"b@example.com","otp":"2"}]`,
		},
		{
			name:    "missing required field",
			subject: "notifications.email.invite",
			body:    `{"email":"a@example.com"}`,
			wantErr: "item 0",
		},
		{
			name:    "second item invalid",
			subject: "notifications.email.password-reset",
			body:    `[{"email":"a@example.com","otp":"1"},{"otp":"2"}]`,
			wantErr: "item 1",
		},
		{
			name:    "unknown subject",
			subject: "notifications.email.nope",
			body:    `{}`,
			wantErr: "unknown subject",
		},
		{
			name:    "not json",
			subject: "notifications.email.invite",
			body:    `{oops`,
			wantErr: "not JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkPayload(tt.subject, writePayload(t, tt.body))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadItems(t *testing.T) {
	items, err := readItems(writePayload(t, `{"a":1}`))
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = readItems(writePayload(t, `[{"a":1},{"a":2},{"a":3}]`))
	require.NoError(t, err)
	assert.Len(t, items, 3)

	_, err = readItems(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
