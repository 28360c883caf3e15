package review

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/qgenlab/qgen/internal/model"
)

func sampleGroups() model.QAGroups {
	return model.QAGroups{
		{Level: "Remember", Items: []model.QAItem{
			{Question: "What controls entry to the cell?", Answer: "The membrane.", Rubric: &model.Rubric{Text: "Names the membrane."}},
			{Question: "Name an organelle.", Answer: "Nucleus.",
				Rubric:     &model.Rubric{Levels: []model.RubricLevel{{Level: "Full", Description: "Any correct organelle"}}},
				SourceText: "The nucleus holds DNA."},
		}},
		{Level: "Apply", Items: []model.QAItem{
			{Question: "Why does salted lettuce wilt?", Answer: "Osmosis."},
		}},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, m tea.Model, msgs ...tea.Msg) reviewModel {
	t.Helper()
	for _, msg := range msgs {
		m, _ = m.Update(msg)
	}
	return m.(reviewModel)
}

func TestReview_NavigateToDetail(t *testing.T) {
	m := send(t, newReviewModel("biology/run1", sampleGroups()),
		tea.WindowSizeMsg{Width: 120, Height: 40},
		key("enter"), // levels -> questions pane
		key("j"),     // second Remember question
		key("enter"), // open detail
	)

	if m.view != viewDetail {
		t.Fatalf("view = %v, want detail", m.view)
	}
	if m.detailItem.Question != "Name an organelle." {
		t.Errorf("detail question = %q", m.detailItem.Question)
	}
	if m.detailLevel != "Remember" {
		t.Errorf("detail level = %q", m.detailLevel)
	}

	body := m.renderDetail()
	for _, want := range []string{"Nucleus.", "Any correct organelle", "press s"} {
		if !strings.Contains(body, want) {
			t.Errorf("detail missing %q", want)
		}
	}

	m = send(t, m, key("s"))
	if !m.showSource || !strings.Contains(m.renderDetail(), "The nucleus holds DNA.") {
		t.Error("s should reveal the source text")
	}

	m = send(t, m, key("esc"))
	if m.view != viewList {
		t.Errorf("esc should return to the list, view = %v", m.view)
	}
}

func TestReview_LevelChangeResetsItemCursor(t *testing.T) {
	m := send(t, newReviewModel("run", sampleGroups()),
		tea.WindowSizeMsg{Width: 100, Height: 30},
		key("tab"), key("j"), // item cursor on the second question
		key("tab"), key("j"), // next level
	)

	if m.levelCursor != 1 {
		t.Fatalf("level cursor = %d, want 1", m.levelCursor)
	}
	if m.itemCursor != 0 {
		t.Errorf("item cursor = %d, want reset to 0", m.itemCursor)
	}
	if !strings.Contains(m.View(), "Apply (1)") {
		t.Error("view should show the selected level header")
	}
}

func TestReview_CursorClamped(t *testing.T) {
	m := send(t, newReviewModel("run", sampleGroups()),
		tea.WindowSizeMsg{Width: 100, Height: 30},
		key("k"), key("j"), key("j"), key("j"),
	)
	if m.levelCursor != 1 {
		t.Errorf("level cursor = %d, want clamped to 1", m.levelCursor)
	}
}

func TestReview_EmptyGroups(t *testing.T) {
	m := send(t, newReviewModel("run", nil),
		tea.WindowSizeMsg{Width: 80, Height: 24},
		key("tab"), key("enter"),
	)
	if m.view != viewList {
		t.Error("enter with no questions should stay on the list")
	}
	if !strings.Contains(m.View(), "(no levels)") {
		t.Error("expected empty-state text")
	}
}

func TestReview_QuitKeys(t *testing.T) {
	m := send(t, newReviewModel("run", sampleGroups()), tea.WindowSizeMsg{Width: 80, Height: 24}, key("q"))
	if !m.wantQuit {
		t.Error("q should request quit")
	}
	m = send(t, newReviewModel("run", sampleGroups()), tea.WindowSizeMsg{Width: 80, Height: 24}, key("b"))
	if m.wantQuit {
		t.Error("b should go back to the picker, not quit")
	}
}

func TestPicker(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "biology", "results", "run1", "output.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"Output": {}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := runLabel(root, path); !strings.HasPrefix(got, "biology/run1 (") {
		t.Errorf("runLabel = %q", got)
	}

	var m tea.Model = pickerModel{root: root, runs: []string{path, path}, chosen: -1}
	m, _ = m.Update(key("j"))
	m, _ = m.Update(key("enter"))
	if got := m.(pickerModel).chosen; got != 1 {
		t.Errorf("chosen = %d, want 1", got)
	}

	var empty tea.Model = pickerModel{root: root, chosen: -1}
	empty, _ = empty.Update(key("enter"))
	if got := empty.(pickerModel).chosen; got != -1 {
		t.Errorf("enter on empty picker chose %d", got)
	}
}

func TestLoader_Update(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := loaderModel{label: "Generating", ctx: ctx, cancel: cancel}

	next, _ := m.Update(spinnerTickMsg{})
	if next.(loaderModel).frame != 1 {
		t.Error("tick should advance the spinner")
	}

	want := model.RunSummary{Generated: 3}
	next, cmd := next.Update(runDoneMsg{summary: want})
	final := next.(loaderModel)
	if !final.done || final.result.Generated != 3 || cmd == nil {
		t.Errorf("done message not handled: %+v", final)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !errors.Is(next.(loaderModel).err, errCancelled) || ctx.Err() == nil {
		t.Error("ctrl+c should cancel the run")
	}
}

func TestWordWrapAndTruncate(t *testing.T) {
	if got := wordWrap("one two three four", 9); got != "one two\nthree\nfour" {
		t.Errorf("wordWrap = %q", got)
	}
	if got := truncate("membrane", 5); got != "memb…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("cell", 5); got != "cell" {
		t.Errorf("truncate short = %q", got)
	}
}
