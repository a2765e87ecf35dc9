package cli

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func silencePrintln(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		parts := make([]string, len(a))
		for i, v := range a {
			parts[i] = strings.TrimSpace(strings.TrimSuffix(toString(v), "\n"))
		}
		lines = append(lines, strings.Join(parts, " "))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case error:
		return x.Error()
	default:
		return ""
	}
}

func TestRunREPL_DispatchesLines(t *testing.T) {
	silencePrintln(t)

	input := strings.NewReader(strings.Join([]string{
		"login alice",
		"",
		"   ",
		"ls --scope space/1",
		"exit",
		"never reached",
	}, "\n"))

	var got [][]string
	exec := func(ctx context.Context, args []string) error {
		got = append(got, args)
		return nil
	}

	runREPL(context.Background(), exec, func() string { return "status" }, bufio.NewScanner(input))

	assert.Equal(t, [][]string{{"login", "alice"}, {"ls", "--scope", "space/1"}}, got)
}

func TestRunREPL_ErrorsArePrintedAndLoopContinues(t *testing.T) {
	lines := silencePrintln(t)

	input := strings.NewReader("bad\nquit\n")
	calls := 0
	exec := func(ctx context.Context, args []string) error {
		calls++
		return errors.New("boom")
	}

	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewScanner(input))

	assert.Equal(t, 1, calls)
	assert.Contains(t, *lines, "Error: boom")
	assert.Equal(t, "Bye!", (*lines)[len(*lines)-1])
}

func TestRunREPL_StopsOnEOFAndCancel(t *testing.T) {
	silencePrintln(t)

	exec := func(ctx context.Context, args []string) error {
		t.Fatal("exec should not be called")
		return nil
	}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewScanner(strings.NewReader("")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runREPL(ctx, exec, func() string { return "" }, bufio.NewScanner(strings.NewReader("ls\n")))
}
