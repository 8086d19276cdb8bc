// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package redact

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/cosmos/internal/commands/shared"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(shared.ResetFlagsForTest)
	t.Setenv("COSMOS_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("COSMOS_FILTER_PARAMETERS", "")

	root := &cobra.Command{Use: "cosmos", SilenceUsage: true, SilenceErrors: true}
	shared.RegisterFlags(root.PersistentFlags())
	root.AddCommand(NewCommand())

	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), err
}

func TestRedact_Defaults(t *testing.T) {
	out, err := execute(t, "", "redact", "--data", `{"password":"x","nested":{"token":"y","ok":"z"}}`)
	require.NoError(t, err)

	assert.JSONEq(t, `{"password":"[FILTERED]","nested":{"token":"[FILTERED]","ok":"z"}}`, out)
}

func TestRedact_ConfiguredKeysAndExtra(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("filter_parameters: [ssn]\n"), 0600))

	out, err := execute(t, `{"ssn":"1","pin":"2","password":"3"}`, "--config", path, "redact", "--key", "pin")
	require.NoError(t, err)

	assert.JSONEq(t, `{"ssn":"[FILTERED]","pin":"[FILTERED]","password":"3"}`, out)
}

func TestRedact_JSONEnvelope(t *testing.T) {
	out, err := execute(t, `[{"token":"t"}]`, "--json", "redact")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "redact", got["command"])
	assert.Equal(t, []any{map[string]any{"token": "[FILTERED]"}}, got["result"])
	assert.Contains(t, got["filter_parameters"], "token")
}

func TestRedact_InvalidPayload(t *testing.T) {
	_, err := execute(t, "not json", "redact")

	var exitErr *shared.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, shared.ExitInvalidInput, exitErr.Code)
}
