// Package protocol speaks the betting form's multi-step flow: load the
// game page, fill its sections from combination strings, submit, guard the
// confirmed price, then post the final confirmation.
package protocol

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"toto-gobet/internal/audit"
	"toto-gobet/internal/page"
	"toto-gobet/internal/session"
)

// SectionCount is how many betting sections one game page carries, which
// is also the batch size: one combination per section.
const SectionCount = 6

// DefaultMaxPrice is the default bet price ceiling.
const DefaultMaxPrice = 1.2

var (
	sectionClassRe = regexp.MustCompile(`\barea area-\d+\b`)
	priceRe        = regexp.MustCompile(`\d+\.\d+|\d+`)
)

// markIndex maps a combination mark to the option index inside a triple.
var markIndex = map[string]int{
	"1": 0,
	"X": 1,
	"x": 1,
	"2": 2,
}

// Section is one event group on the form: the shared input name and the
// option values grouped in triples (one triple per event).
type Section struct {
	Name    string
	Triples [][]string
}

// Game is a loaded betting page: its sections and the resolved submission
// URL.
type Game struct {
	Sections []Section
	FormURL  string
}

// Client drives the form protocol over an authenticated session.
type Client struct {
	sess     *session.Session
	maxPrice float64
	audit    *audit.Writer
}

// NewClient wires a protocol client. maxPrice <= 0 falls back to
// DefaultMaxPrice; auditLog may be nil.
func NewClient(sess *session.Session, maxPrice float64, auditLog *audit.Writer) *Client {
	if maxPrice <= 0 {
		maxPrice = DefaultMaxPrice
	}
	return &Client{sess: sess, maxPrice: maxPrice, audit: auditLog}
}

// LoadGame fetches and parses the betting page. An error banner plus the
// login-form marker means the session expired; any other banner fails the
// load outright.
func (c *Client) LoadGame(ctx context.Context, gameURL string) (*Game, error) {
	resp, err := c.sess.Get(ctx, gameURL)
	if err != nil {
		return nil, fmt.Errorf("game page: %w", err)
	}
	defer resp.Body.Close()

	doc, err := page.Parse(resp.Body, resp.Request.URL)
	if err != nil {
		return nil, err
	}
	if banner, ok := doc.ErrorText(); ok {
		if doc.HasLoginForm() {
			return nil, &SessionExpiredError{}
		}
		return nil, &GameLoadError{Reason: banner}
	}

	var sections []Section
	for _, node := range doc.MatchClass(sectionClassRe) {
		sec, err := parseSection(node)
		if err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}

	form, ok := doc.First("form")
	if !ok {
		return nil, &StructureError{Reason: "no form element on the game page"}
	}
	action := form.Attr("action")
	if action == "" {
		return nil, &StructureError{Reason: "game form has no action attribute"}
	}
	formURL, err := doc.Resolve(action)
	if err != nil {
		return nil, err
	}

	return &Game{Sections: sections, FormURL: formURL}, nil
}

// parseSection reads a section's inputs: the (shared) input name and the
// option values chunked into triples.
func parseSection(node *page.Node) (Section, error) {
	inputs := node.Inputs()
	if len(inputs) == 0 {
		return Section{}, &StructureError{Reason: "no input tags in a betting section"}
	}

	sec := Section{Name: inputs[len(inputs)-1].Name}
	for i := 0; i < len(inputs); i += 3 {
		end := i + 3
		if end > len(inputs) {
			end = len(inputs)
		}
		triple := make([]string, 0, 3)
		for _, in := range inputs[i:end] {
			triple = append(triple, in.Value)
		}
		sec.Triples = append(sec.Triples, triple)
	}
	return sec, nil
}

// FillSection maps a combination string onto a section's option values:
// marks split on commas, "1" picks the first value of each triple, "X"/"x"
// the second, "2" the third. The mark count must equal the triple count.
func FillSection(combination string, sec Section) ([]string, error) {
	var marks []string
	for _, m := range strings.Split(combination, ",") {
		if m = strings.TrimSpace(m); m != "" {
			marks = append(marks, m)
		}
	}
	if len(marks) != len(sec.Triples) {
		return nil, &CombinationError{
			Reason: fmt.Sprintf("the game on the website has %d events but the sheet combination has %d marks", len(sec.Triples), len(marks)),
		}
	}

	selected := make([]string, 0, len(marks))
	for i, mark := range marks {
		idx, ok := markIndex[mark]
		if !ok {
			return nil, &CombinationError{Reason: fmt.Sprintf("unknown mark %q at position %d", mark, i+1)}
		}
		if idx >= len(sec.Triples[i]) {
			return nil, &StructureError{Reason: fmt.Sprintf("section %s triple %d has only %d values", sec.Name, i+1, len(sec.Triples[i]))}
		}
		selected = append(selected, sec.Triples[i][idx])
	}
	return selected, nil
}

// PlayBatch runs the full protocol for one batch of combinations: load,
// fill, submit, price guard, confirmation extraction and the final
// password-confirmed post. Only a nil return means the wagers are placed.
func (c *Client) PlayBatch(ctx context.Context, gameURL string, combinations []string, password string) error {
	game, err := c.LoadGame(ctx, gameURL)
	if err != nil {
		return err
	}
	if len(game.Sections) != SectionCount {
		return &StructureError{Reason: fmt.Sprintf("expected %d sections on the game page, got %d", SectionCount, len(game.Sections))}
	}
	if len(combinations) > SectionCount {
		return &CombinationError{Reason: fmt.Sprintf("batch has %d combinations, the page takes at most %d", len(combinations), SectionCount)}
	}

	payload := url.Values{}
	for i, comb := range combinations {
		values, err := FillSection(comb, game.Sections[i])
		if err != nil {
			return err
		}
		payload[game.Sections[i].Name] = values
		log.Printf("Combination %s", comb)
	}

	resp, err := c.sess.PostForm(ctx, game.FormURL, payload)
	if err != nil {
		return fmt.Errorf("submit form: %w", err)
	}
	doc, err := page.Parse(resp.Body, resp.Request.URL)
	resp.Body.Close()
	if err != nil {
		return err
	}

	if err := checkSubmission(doc); err != nil {
		return err
	}
	if err := c.checkPrice(doc); err != nil {
		return err
	}

	confirmURL, confirmData, err := extractConfirmForm(doc)
	if err != nil {
		return err
	}
	confirmData.Set("talon_password", password)

	log.Printf("Verifying the bet")
	if err := c.confirm(ctx, confirmURL, confirmData); err != nil {
		return err
	}
	log.Printf("Successfully verified the bet")
	return nil
}

// checkSubmission requires the submit-confirmation marker; without it the
// form rejected the batch and the banner (if any) says why.
func checkSubmission(doc *page.Doc) error {
	if _, ok := doc.First("button#submit-bet"); ok {
		return nil
	}
	if banner, ok := doc.ErrorText(); ok {
		return &CombinationError{Reason: banner}
	}
	return &CombinationError{Reason: "unable to find the submit button"}
}

// checkPrice reads the confirmation price from the bold text and fails
// when it exceeds the ceiling. A missing element or a price with no
// numeric token is a structure error, not a business condition.
func (c *Client) checkPrice(doc *page.Doc) error {
	bold, ok := doc.First(".form-group b")
	if !ok {
		return &StructureError{Reason: "unable to find the bet price text"}
	}
	return guardPrice(bold.Text(), c.maxPrice)
}

func guardPrice(text string, limit float64) error {
	match := priceRe.FindString(text)
	if match == "" {
		return &StructureError{Reason: fmt.Sprintf("no numeric price in %q", text)}
	}
	price, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return &StructureError{Reason: fmt.Sprintf("bad price token %q", match)}
	}
	log.Printf("Current price %g", price)
	if price > limit {
		return &PriceTooHighError{Limit: limit, Price: price}
	}
	return nil
}

// extractConfirmForm collects the named confirmation form's inputs and its
// resolved action URL.
func extractConfirmForm(doc *page.Doc) (string, url.Values, error) {
	form, ok := doc.First(`form[name="talon-bet"]`)
	if !ok {
		return "", nil, &StructureError{Reason: "confirmation form not found"}
	}

	data := url.Values{}
	for _, in := range form.Inputs() {
		data.Set(in.Name, in.Value)
	}
	confirmURL, err := doc.Resolve(form.Attr("action"))
	if err != nil {
		return "", nil, err
	}
	return confirmURL, data, nil
}

// confirm posts the password-carrying payload and requires the
// confirmation container, which is appended to the audit log.
func (c *Client) confirm(ctx context.Context, confirmURL string, data url.Values) error {
	resp, err := c.sess.PostForm(ctx, confirmURL, data)
	if err != nil {
		return fmt.Errorf("confirm post: %w", err)
	}
	doc, err := page.Parse(resp.Body, resp.Request.URL)
	resp.Body.Close()
	if err != nil {
		return err
	}

	if banner, ok := doc.ErrorText(); ok {
		return &ConfirmError{Reason: banner}
	}
	container, ok := doc.First(".confirm_talon_container")
	if !ok {
		return &ConfirmError{Reason: "unable to find the confirm talon container"}
	}

	if html, err := container.HTML(); err == nil {
		if err := c.audit.Append(html); err != nil {
			log.Printf("[warn] audit log append: %v", err)
		}
	}
	return nil
}
