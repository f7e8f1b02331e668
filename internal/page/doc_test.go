package page

import (
	"net/url"
	"regexp"
	"strings"
	"testing"
)

func parse(t *testing.T, html, base string) *Doc {
	t.Helper()
	var u *url.URL
	if base != "" {
		var err error
		u, err = url.Parse(base)
		if err != nil {
			t.Fatalf("base url: %v", err)
		}
	}
	doc, err := Parse(strings.NewReader(html), u)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestErrorText(t *testing.T) {
	doc := parse(t, `<body><div class="error"> Wrong password </div></body>`, "")
	text, ok := doc.ErrorText()
	if !ok {
		t.Fatalf("expected an error banner")
	}
	if text != "Wrong password" {
		t.Fatalf("banner mismatch: got %q", text)
	}

	doc = parse(t, `<body><p>fine</p></body>`, "")
	if _, ok := doc.ErrorText(); ok {
		t.Fatalf("unexpected error banner")
	}
}

func TestHasLoginForm(t *testing.T) {
	doc := parse(t, `<body><form id="login-form"></form></body>`, "")
	if !doc.HasLoginForm() {
		t.Fatalf("expected login form marker")
	}
	doc = parse(t, `<body><form id="other"></form></body>`, "")
	if doc.HasLoginForm() {
		t.Fatalf("unexpected login form marker")
	}
}

func TestMatchClassOrderAndInputs(t *testing.T) {
	html := `<body>
		<div class="area area-1"><input name="s1[]" value="a"><input name="s1[]" value="b"></div>
		<div class="sidebar"><input name="x" value="y"></div>
		<div class="area area-2"><input name="s2[]" value="c"></div>
	</body>`
	doc := parse(t, html, "")

	nodes := doc.MatchClass(regexp.MustCompile(`\barea area-\d+\b`))
	if len(nodes) != 2 {
		t.Fatalf("section count mismatch: got %d want 2", len(nodes))
	}

	inputs := nodes[0].Inputs()
	if len(inputs) != 2 || inputs[0].Value != "a" || inputs[1].Value != "b" {
		t.Fatalf("inputs mismatch: got %+v", inputs)
	}
	if inputs[0].Name != "s1[]" {
		t.Fatalf("input name mismatch: got %q", inputs[0].Name)
	}
}

func TestResolve(t *testing.T) {
	doc := parse(t, `<form action="submit.php"></form>`, "https://example.org/game/index.php?pid=1")
	got, err := doc.Resolve("submit.php")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if want := "https://example.org/game/submit.php"; got != want {
		t.Fatalf("resolve mismatch: got %s want %s", got, want)
	}
}

func TestNodeHTML(t *testing.T) {
	doc := parse(t, `<body><div class="confirm_talon_container"><p>ok</p></div></body>`, "")
	node, ok := doc.First(".confirm_talon_container")
	if !ok {
		t.Fatalf("container not found")
	}
	html, err := node.HTML()
	if err != nil {
		t.Fatalf("outer html: %v", err)
	}
	if !strings.Contains(html, "confirm_talon_container") || !strings.Contains(html, "<p>ok</p>") {
		t.Fatalf("outer html mismatch: %s", html)
	}
}
