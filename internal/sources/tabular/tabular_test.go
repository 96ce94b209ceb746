package tabular

import (
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/bio2bel/internal/testutil/testlog"
)

func TestReadKeysRowsByHeader(t *testing.T) {
	testlog.Start(t)
	input := "\ufeffcategory\tmir\tdisease\n" +
		"circulation\thsa-mir-21\tNeoplasms\n" +
		"\n" +
		"genetics\t hsa-mir-155 \n"

	var rows []Row
	var lines []int
	err := Read(strings.NewReader(input), []string{"mir", "disease"}, func(line int, row Row) error {
		rows = append(rows, row)
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Get("category") != "circulation" || rows[0].Get("disease") != "Neoplasms" {
		t.Fatalf("unexpected first row %v", rows[0])
	}
	if rows[1].Get("mir") != "hsa-mir-155" || rows[1].Get("disease") != "" {
		t.Fatalf("unexpected short row %v", rows[1])
	}
	if lines[0] != 2 {
		t.Fatalf("expected first data line 2, got %d", lines[0])
	}
}

func TestReadRequiresColumns(t *testing.T) {
	testlog.Start(t)
	err := Read(strings.NewReader("a\tb\n1\t2\n"), []string{"a", "c"}, func(int, Row) error { return nil })
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	if err := Read(strings.NewReader(""), nil, func(int, Row) error { return nil }); err == nil {
		t.Fatalf("expected error on empty input")
	}
}

func TestReadStopsOnCallbackError(t *testing.T) {
	testlog.Start(t)
	stop := errors.New("stop")
	calls := 0
	err := Read(strings.NewReader("a\n1\n2\n3\n"), nil, func(int, Row) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("expected stop after 1 call, got err=%v calls=%d", err, calls)
	}
}
