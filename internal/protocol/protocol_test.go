package protocol

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"toto-gobet/internal/audit"
	"toto-gobet/internal/session"
)

func sixTriples() Section {
	sec := Section{Name: "s[]"}
	for i := 0; i < 6; i++ {
		sec.Triples = append(sec.Triples, []string{
			fmt.Sprintf("t%d-a", i),
			fmt.Sprintf("t%d-b", i),
			fmt.Sprintf("t%d-c", i),
		})
	}
	return sec
}

func TestFillSectionMarkMapping(t *testing.T) {
	got, err := FillSection("1,X,2,1,x,2", sixTriples())
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	want := []string{"t0-a", "t1-b", "t2-c", "t3-a", "t4-b", "t5-c"}
	if len(got) != len(want) {
		t.Fatalf("selection count mismatch: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("selection %d mismatch: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestFillSectionTrimsAndSkipsEmptyTokens(t *testing.T) {
	sec := Section{Name: "s[]", Triples: [][]string{{"a", "b", "c"}, {"d", "e", "f"}}}
	got, err := FillSection(" 1 , , 2 ", sec)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if got[0] != "a" || got[1] != "f" {
		t.Fatalf("selection mismatch: got %v", got)
	}
}

func TestFillSectionCountMismatch(t *testing.T) {
	_, err := FillSection("1,X,2,1,x", sixTriples())
	if err == nil {
		t.Fatalf("expected mismatch error")
	}
	var ce *CombinationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CombinationError, got %T", err)
	}
	if !strings.Contains(err.Error(), "6") || !strings.Contains(err.Error(), "5") {
		t.Fatalf("error must name both counts: %v", err)
	}
}

func TestFillSectionUnknownMark(t *testing.T) {
	sec := Section{Name: "s[]", Triples: [][]string{{"a", "b", "c"}}}
	_, err := FillSection("3", sec)
	var ce *CombinationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CombinationError for unknown mark, got %v", err)
	}
}

func TestGuardPrice(t *testing.T) {
	if err := guardPrice("Total price: 1.15 lv.", 1.2); err != nil {
		t.Fatalf("price below ceiling must pass: %v", err)
	}
	if err := guardPrice("Total price: 1 lv.", 1.2); err != nil {
		t.Fatalf("integer price below ceiling must pass: %v", err)
	}

	err := guardPrice("Total price: 1.25 lv.", 1.2)
	var pe *PriceTooHighError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PriceTooHighError, got %v", err)
	}
	if pe.Price != 1.25 || pe.Limit != 1.2 {
		t.Fatalf("guard values mismatch: got %+v", pe)
	}

	err = guardPrice("Total price: unavailable", 1.2)
	var se *StructureError
	if !errors.As(err, &se) {
		t.Fatalf("price text without a number must be a structure error, got %v", err)
	}
}

// gamePage renders a betting page with n sections of one triple each.
func gamePage(n int) string {
	var b strings.Builder
	b.WriteString(`<html><body><form action="submit.php">`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<div class="area area-%d">`, i)
		for _, opt := range []string{"a", "b", "c"} {
			fmt.Fprintf(&b, `<input name="s%d[]" value="%d-%s">`, i, i, opt)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</form></body></html>`)
	return b.String()
}

const submitPage = `<html><body>
<button id="submit-bet">Place bet</button>
<div class="form-group"><b>Total price: 1.15 lv.</b></div>
<form name="talon-bet" action="confirm.php">
<input name="talon_id" value="42"><input name="csrf" value="tok">
</form>
</body></html>`

const confirmPage = `<html><body>
<div class="confirm_talon_container"><p>talon 42 accepted</p></div>
</body></html>`

func newTestSession(t *testing.T, ts *httptest.Server) *session.Session {
	t.Helper()
	s, err := session.New(ts.URL + "/")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	return s
}

func TestPlayBatchFullFlow(t *testing.T) {
	var submitted url.Values
	var confirmed url.Values

	mux := http.NewServeMux()
	mux.HandleFunc("/game", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, gamePage(6))
	})
	mux.HandleFunc("/submit.php", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		r.ParseForm()
		submitted = r.PostForm
		fmt.Fprint(w, submitPage)
	})
	mux.HandleFunc("/confirm.php", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		confirmed = r.PostForm
		fmt.Fprint(w, confirmPage)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	auditPath := filepath.Join(t.TempDir(), "audit.html")
	client := NewClient(newTestSession(t, ts), 1.2, audit.New(auditPath))

	combos := []string{"1", "X", "2", "1", "x", "2"}
	if err := client.PlayBatch(context.Background(), ts.URL+"/game", combos, "secret"); err != nil {
		t.Fatalf("play batch: %v", err)
	}

	wantSelections := map[string]string{
		"s1[]": "1-a", "s2[]": "2-b", "s3[]": "3-c",
		"s4[]": "4-a", "s5[]": "5-b", "s6[]": "6-c",
	}
	for name, want := range wantSelections {
		if got := submitted.Get(name); got != want {
			t.Fatalf("submission %s mismatch: got %q want %q", name, got, want)
		}
	}

	if got := confirmed.Get("talon_password"); got != "secret" {
		t.Fatalf("confirm password mismatch: got %q", got)
	}
	if got := confirmed.Get("talon_id"); got != "42" {
		t.Fatalf("confirm talon_id mismatch: got %q", got)
	}

	b, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("audit log: %v", err)
	}
	if !strings.Contains(string(b), "talon 42 accepted") {
		t.Fatalf("audit log missing confirmation container: %s", b)
	}
}

func TestPlayBatchPartialBatch(t *testing.T) {
	var submitted url.Values
	mux := http.NewServeMux()
	mux.HandleFunc("/game", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, gamePage(6))
	})
	mux.HandleFunc("/submit.php", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		submitted = r.PostForm
		fmt.Fprint(w, submitPage)
	})
	mux.HandleFunc("/confirm.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, confirmPage)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client := NewClient(newTestSession(t, ts), 1.2, nil)
	if err := client.PlayBatch(context.Background(), ts.URL+"/game", []string{"1", "2"}, "secret"); err != nil {
		t.Fatalf("partial batch: %v", err)
	}
	if got := submitted.Get("s1[]"); got != "1-a" {
		t.Fatalf("s1 mismatch: got %q", got)
	}
	if _, ok := submitted["s3[]"]; ok {
		t.Fatalf("unfilled section must not be submitted")
	}
}

func TestLoadGameSessionExpired(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<body><div class="error">Please log in</div><form id="login-form"></form></body>`)
	}))
	defer ts.Close()

	client := NewClient(newTestSession(t, ts), 1.2, nil)
	_, err := client.LoadGame(context.Background(), ts.URL+"/game")
	var se *SessionExpiredError
	if !errors.As(err, &se) {
		t.Fatalf("expected SessionExpiredError, got %v", err)
	}
}

func TestLoadGameError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<body><div class="error">Game closed</div></body>`)
	}))
	defer ts.Close()

	client := NewClient(newTestSession(t, ts), 1.2, nil)
	_, err := client.LoadGame(context.Background(), ts.URL+"/game")
	var ge *GameLoadError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GameLoadError, got %v", err)
	}
	if ge.Reason != "Game closed" {
		t.Fatalf("banner text lost: got %q", ge.Reason)
	}
}

func TestPlayBatchSubmitRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/game", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, gamePage(6))
	})
	mux.HandleFunc("/submit.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<body><div class="error">Combination rejected</div></body>`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client := NewClient(newTestSession(t, ts), 1.2, nil)
	err := client.PlayBatch(context.Background(), ts.URL+"/game", []string{"1"}, "secret")
	var ce *CombinationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CombinationError, got %v", err)
	}
	if !strings.Contains(ce.Reason, "Combination rejected") {
		t.Fatalf("banner text lost: %q", ce.Reason)
	}
}

func TestPlayBatchPriceTooHigh(t *testing.T) {
	expensive := strings.Replace(submitPage, "1.15", "1.25", 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/game", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, gamePage(6))
	})
	mux.HandleFunc("/submit.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, expensive)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client := NewClient(newTestSession(t, ts), 1.2, nil)
	err := client.PlayBatch(context.Background(), ts.URL+"/game", []string{"1"}, "secret")
	var pe *PriceTooHighError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PriceTooHighError, got %v", err)
	}
}

func TestPlayBatchMissingPriceElement(t *testing.T) {
	noPrice := strings.Replace(submitPage, `<div class="form-group"><b>Total price: 1.15 lv.</b></div>`, "", 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/game", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, gamePage(6))
	})
	mux.HandleFunc("/submit.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, noPrice)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client := NewClient(newTestSession(t, ts), 1.2, nil)
	err := client.PlayBatch(context.Background(), ts.URL+"/game", []string{"1"}, "secret")
	var se *StructureError
	if !errors.As(err, &se) {
		t.Fatalf("expected StructureError for missing price element, got %v", err)
	}
}

func TestPlayBatchConfirmRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/game", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, gamePage(6))
	})
	mux.HandleFunc("/submit.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, submitPage)
	})
	mux.HandleFunc("/confirm.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<body><div class="error">Wrong password</div></body>`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client := NewClient(newTestSession(t, ts), 1.2, nil)
	err := client.PlayBatch(context.Background(), ts.URL+"/game", []string{"1"}, "bad")
	var ce *ConfirmError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfirmError, got %v", err)
	}
}

func TestPlayBatchWrongSectionCount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/game", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, gamePage(4))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client := NewClient(newTestSession(t, ts), 1.2, nil)
	err := client.PlayBatch(context.Background(), ts.URL+"/game", []string{"1"}, "secret")
	var se *StructureError
	if !errors.As(err, &se) {
		t.Fatalf("expected StructureError for wrong section count, got %v", err)
	}
}
