package cli_test

import (
	"strings"
	"testing"

	"github.com/calvinalkan/buildstate/internal/cli"
)

func TestGetCommand(t *testing.T) {
	t.Parallel()

	const doc = `{"compile": {"hash": "abc", "inputs": [{"path": "main.go"}], "ok": true}, "lint": 3}`

	for _, tt := range []struct {
		name       string
		args       []string
		wantExit   int
		wantStdout string
		wantStderr string
	}{
		{
			name:       "missing job returns error",
			args:       []string{"get", "build"},
			wantExit:   1,
			wantStderr: "job name is required",
		},
		{
			name:       "unknown job returns error",
			args:       []string{"get", "build", "test"},
			wantExit:   1,
			wantStderr: "job not found: test",
		},
		{
			name:       "too many args returns error",
			args:       []string{"get", "build", "lint", "extra"},
			wantExit:   1,
			wantStderr: "too many arguments: extra",
		},
		{
			name:       "scalar state prints as is",
			args:       []string{"get", "build", "lint"},
			wantStdout: "3",
		},
		{
			name:       "path selects a nested value",
			args:       []string{"get", "build", "compile", "--path", "inputs.0.path"},
			wantStdout: `"main.go"`,
		},
		{
			name:       "raw flag unquotes strings",
			args:       []string{"get", "build", "compile", "-p", "hash", "--raw"},
			wantStdout: "abc",
		},
		{
			name:       "unknown path returns error",
			args:       []string{"get", "build", "compile", "--path", "nope"},
			wantExit:   1,
			wantStderr: "path not found in job state: nope",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			c.WriteState("build", doc)

			stdout, stderr, exitCode := c.Run(tt.args...)

			if got, want := exitCode, tt.wantExit; got != want {
				t.Errorf("exitCode=%d, want=%d, stderr=%s", got, want, stderr)
			}

			if got, want := strings.TrimSpace(stdout), tt.wantStdout; got != want {
				t.Errorf("stdout=%q, want=%q", got, want)
			}

			if tt.wantStderr != "" {
				cli.AssertContains(t, stderr, tt.wantStderr)
			}
		})
	}
}

func Test_Get_Pretty_Prints_Object_State_When_Job_Exists(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteState("build", `{"compile":{"hash":"abc","ok":true}}`)

	got := c.MustRun("get", "build", "compile")
	want := "{\n  \"hash\": \"abc\",\n  \"ok\": true\n}"

	if got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}
}
