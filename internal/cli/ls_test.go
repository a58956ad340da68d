package cli_test

import (
	"strings"
	"testing"

	"github.com/calvinalkan/buildstate/internal/cli"
)

func Test_Ls_Lists_Jobs_In_Document_Order_When_State_Exists(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteState("build", `{"zeta": {"hash": "z"}, "alpha": [1, 2], "mid": true}`)

	got := c.MustRun("ls", "build")
	want := "zeta\t{\"hash\":\"z\"}\nalpha\t[1,2]\nmid\ttrue"

	if got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}
}

func Test_Ls_Prints_Nothing_When_State_Is_Missing(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	if got, want := c.MustRun("ls", "build"), ""; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}
}

func Test_Ls_Prints_Names_Only_When_Names_Flag_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteState("build", `{"b": 1, "a": 2}`)

	if got, want := c.MustRun("ls", "build", "--names"), "b\na"; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}
}

func Test_Ls_Prints_Whole_Document_When_Json_Flag_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteState("build", `{"b": {"x": 1}, "a": "s"}`)

	got := c.MustRun("ls", "build", "--json")
	want := "{\n  \"b\": {\n    \"x\": 1\n  },\n  \"a\": \"s\"\n}"

	if got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}
}

func Test_Ls_Warns_And_Exits_Nonzero_When_State_Is_Corrupt(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteState("build", `{"a": 1`)

	stdout, stderr, exitCode := c.Run("ls", "build")

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if got, want := stdout, ""; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stderr, "warning:")
	cli.AssertContains(t, stderr, "is corrupt")
}

func Test_Ls_Fails_When_Task_Name_Is_Invalid(t *testing.T) {
	t.Parallel()

	for _, task := range []string{"..", ".", "a/b", `a\b`} {
		t.Run(strings.ReplaceAll(task, "/", "_"), func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			stderr := c.MustFail("ls", task)

			cli.AssertContains(t, stderr, "invalid task name")
		})
	}
}

func Test_Ls_Fails_When_Task_Is_Missing(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("ls")

	cli.AssertContains(t, stderr, "task name is required")
}
